package resolve

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/normalize"
)

// Decision is a reviewer's verdict on a flagged record.
type Decision string

const (
	// DecisionConfirm accepts the fuzzy match: the raw spelling becomes a
	// variant of the matched entity.
	DecisionConfirm Decision = "confirm"
	// DecisionReject rejects the match: a new entity is created from the raw
	// spelling and the record moves to it.
	DecisionReject Decision = "reject"
	// DecisionMergeInto declares the matched entity a duplicate of another:
	// all of its records move to the merge target.
	DecisionMergeInto Decision = "mergeInto"
)

// ResolvePersonReview applies a reviewer decision to one flagged person
// history row. targetID is required for DecisionMergeInto and ignored
// otherwise. Counters are bumped here, not at append time: flagged rows only
// count once a human (or the auto-confirm sweep) stands behind them.
func (e *Engine) ResolvePersonReview(ctx context.Context, historyID string, decision Decision, targetID string) error {
	h, err := e.store.GetPersonHistoryByID(ctx, historyID)
	if err != nil {
		return eris.Wrapf(err, "review: load person history %s", historyID)
	}
	if h == nil {
		return eris.Errorf("review: person history %s not found", historyID)
	}
	if !h.NeedsReview {
		return eris.Errorf("review: person history %s is not flagged", historyID)
	}

	report, err := e.store.GetReport(ctx, h.ReportID)
	if err != nil {
		return eris.Wrapf(err, "review: load report %s", h.ReportID)
	}
	if report == nil {
		return eris.Errorf("review: report %s not found", h.ReportID)
	}
	hours := h.HoursWorked + h.OvertimeHours

	switch decision {
	case DecisionConfirm:
		if err := e.store.ClearPersonHistoryReview(ctx, historyID); err != nil {
			return eris.Wrap(err, "review: clear person flag")
		}
		if err := e.store.AddPersonVariant(ctx, h.PersonID, h.RawName, normalize.Name(h.RawName)); err != nil {
			return eris.Wrap(err, "review: add confirmed variant")
		}
		return e.store.UpdatePersonSeen(ctx, h.PersonID, report.ReportDate, hours, "")

	case DecisionReject:
		p := &model.Person{
			CanonicalName: h.RawName,
			NameVariants:  []string{h.RawName},
			DateFirstSeen: report.ReportDate,
			DateLastSeen:  report.ReportDate,
			Status:        model.EntityStatusActive,
		}
		created, isNew, err := e.store.CreatePersonIfAbsent(ctx, p, normalize.Name(h.RawName))
		if err != nil {
			return eris.Wrapf(err, "review: create person %q", h.RawName)
		}
		if err := e.store.ReassignPersonHistory(ctx, historyID, created.ID); err != nil {
			return eris.Wrap(err, "review: reassign person history")
		}
		zap.L().Info("review rejected person match",
			zap.String("history_id", historyID),
			zap.String("old_person_id", h.PersonID),
			zap.String("new_person_id", created.ID),
			zap.Bool("created", isNew),
		)
		return e.store.UpdatePersonSeen(ctx, created.ID, report.ReportDate, hours, "")

	case DecisionMergeInto:
		if targetID == "" {
			return eris.New("review: mergeInto requires a target person")
		}
		target, err := e.store.GetPerson(ctx, targetID)
		if err != nil {
			return eris.Wrapf(err, "review: load merge target %s", targetID)
		}
		if target == nil {
			return eris.Errorf("review: merge target %s not found", targetID)
		}
		if targetID == h.PersonID {
			return eris.New("review: cannot merge a person into itself")
		}
		if err := e.store.ClearPersonHistoryReview(ctx, historyID); err != nil {
			return eris.Wrap(err, "review: clear person flag")
		}
		if err := e.store.ReassignAllPersonHistory(ctx, h.PersonID, targetID); err != nil {
			return eris.Wrap(err, "review: move person history")
		}
		if err := e.store.MarkPersonMerged(ctx, h.PersonID, targetID); err != nil {
			return eris.Wrap(err, "review: mark person merged")
		}
		if err := e.store.AddPersonVariant(ctx, targetID, h.RawName, normalize.Name(h.RawName)); err != nil {
			return eris.Wrap(err, "review: add merged variant")
		}
		zap.L().Info("person merged",
			zap.String("from_person_id", h.PersonID),
			zap.String("into_person_id", targetID),
		)
		return e.store.UpdatePersonSeen(ctx, targetID, report.ReportDate, hours, "")

	default:
		return eris.Errorf("review: unknown decision %q", decision)
	}
}

// ResolveVendorReview applies a reviewer decision to one flagged vendor
// delivery. Mirrors ResolvePersonReview.
func (e *Engine) ResolveVendorReview(ctx context.Context, deliveryID string, decision Decision, targetID string) error {
	d, err := e.store.GetVendorDeliveryByID(ctx, deliveryID)
	if err != nil {
		return eris.Wrapf(err, "review: load vendor delivery %s", deliveryID)
	}
	if d == nil {
		return eris.Errorf("review: vendor delivery %s not found", deliveryID)
	}
	if !d.NeedsReview {
		return eris.Errorf("review: vendor delivery %s is not flagged", deliveryID)
	}

	report, err := e.store.GetReport(ctx, d.ReportID)
	if err != nil {
		return eris.Wrapf(err, "review: load report %s", d.ReportID)
	}
	if report == nil {
		return eris.Errorf("review: report %s not found", d.ReportID)
	}

	switch decision {
	case DecisionConfirm:
		if err := e.store.ClearVendorDeliveryReview(ctx, deliveryID); err != nil {
			return eris.Wrap(err, "review: clear vendor flag")
		}
		if err := e.store.AddVendorVariant(ctx, d.VendorID, d.RawName, normalize.Company(d.RawName)); err != nil {
			return eris.Wrap(err, "review: add confirmed variant")
		}
		return e.store.UpdateVendorSeen(ctx, d.VendorID, report.ReportDate, "")

	case DecisionReject:
		v := &model.Vendor{
			CanonicalName: d.RawName,
			NameVariants:  []string{d.RawName},
			DateFirstSeen: report.ReportDate,
			DateLastSeen:  report.ReportDate,
			Status:        model.EntityStatusActive,
		}
		created, _, err := e.store.CreateVendorIfAbsent(ctx, v, normalize.Company(d.RawName))
		if err != nil {
			return eris.Wrapf(err, "review: create vendor %q", d.RawName)
		}
		if err := e.store.ReassignVendorDelivery(ctx, deliveryID, created.ID); err != nil {
			return eris.Wrap(err, "review: reassign vendor delivery")
		}
		return e.store.UpdateVendorSeen(ctx, created.ID, report.ReportDate, "")

	case DecisionMergeInto:
		if targetID == "" {
			return eris.New("review: mergeInto requires a target vendor")
		}
		target, err := e.store.GetVendor(ctx, targetID)
		if err != nil {
			return eris.Wrapf(err, "review: load merge target %s", targetID)
		}
		if target == nil {
			return eris.Errorf("review: merge target %s not found", targetID)
		}
		if targetID == d.VendorID {
			return eris.New("review: cannot merge a vendor into itself")
		}
		if err := e.store.ClearVendorDeliveryReview(ctx, deliveryID); err != nil {
			return eris.Wrap(err, "review: clear vendor flag")
		}
		if err := e.store.ReassignAllVendorDeliveries(ctx, d.VendorID, targetID); err != nil {
			return eris.Wrap(err, "review: move vendor deliveries")
		}
		if err := e.store.MarkVendorMerged(ctx, d.VendorID, targetID); err != nil {
			return eris.Wrap(err, "review: mark vendor merged")
		}
		if err := e.store.AddVendorVariant(ctx, targetID, d.RawName, normalize.Company(d.RawName)); err != nil {
			return eris.Wrap(err, "review: add merged variant")
		}
		return e.store.UpdateVendorSeen(ctx, targetID, report.ReportDate, "")

	default:
		return eris.Errorf("review: unknown decision %q", decision)
	}
}

// SweepResult counts what an auto-confirm sweep touched.
type SweepResult struct {
	PersonsConfirmed int `json:"persons_confirmed"`
	VendorsConfirmed int `json:"vendors_confirmed"`
	Failures         int `json:"failures"`
}

// AutoConfirmSweep confirms every flagged record created before the cutoff.
// Flags that nobody acted on within the review window are treated as
// accepted: the fuzzy match stood unchallenged.
func (e *Engine) AutoConfirmSweep(ctx context.Context, cutoff time.Time) (SweepResult, error) {
	var res SweepResult

	flaggedPersons, err := e.store.ListFlaggedPersonHistory(ctx, cutoff)
	if err != nil {
		return res, eris.Wrap(err, "sweep: list flagged person history")
	}
	for _, h := range flaggedPersons {
		if err := e.ResolvePersonReview(ctx, h.ID, DecisionConfirm, ""); err != nil {
			res.Failures++
			zap.L().Warn("auto-confirm failed",
				zap.String("history_id", h.ID),
				zap.Error(err),
			)
			continue
		}
		res.PersonsConfirmed++
	}

	flaggedDeliveries, err := e.store.ListFlaggedVendorDeliveries(ctx, cutoff)
	if err != nil {
		return res, eris.Wrap(err, "sweep: list flagged vendor deliveries")
	}
	for _, d := range flaggedDeliveries {
		if err := e.ResolveVendorReview(ctx, d.ID, DecisionConfirm, ""); err != nil {
			res.Failures++
			zap.L().Warn("auto-confirm failed",
				zap.String("delivery_id", d.ID),
				zap.Error(err),
			)
			continue
		}
		res.VendorsConfirmed++
	}

	if res.PersonsConfirmed+res.VendorsConfirmed > 0 {
		zap.L().Info("auto-confirm sweep finished",
			zap.Time("cutoff", cutoff),
			zap.Int("persons_confirmed", res.PersonsConfirmed),
			zap.Int("vendors_confirmed", res.VendorsConfirmed),
			zap.Int("failures", res.Failures),
		)
	}
	return res, nil
}
