// Package recorder turns a validated extraction into durable records. Every
// identity passes through the resolution engine first; nothing below this
// layer ever stores a raw extracted name as an entity reference.
package recorder

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/normalize"
	"github.com/blueline-build/fieldreport-cli/internal/resilience"
	"github.com/blueline-build/fieldreport-cli/internal/resolve"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

// Recorder writes resolved extraction records for one report.
type Recorder struct {
	store  store.Store
	engine *resolve.Engine
}

// New creates a Recorder.
func New(st store.Store, engine *resolve.Engine) *Recorder {
	return &Recorder{store: st, engine: engine}
}

// Result tallies what recording one report touched.
type Result struct {
	EntitiesCreated int `json:"entities_created"`
	EntitiesFlagged int `json:"entities_flagged"`
}

// Record persists all records of one extraction: personnel history, work
// logs, constraints, and vendor deliveries. Personnel run first so work logs
// can reference their resolved ids. The whole operation is idempotent per
// report: history appends are keyed (entity, report) and work logs and
// constraints are replaced wholesale.
func (r *Recorder) Record(ctx context.Context, report *model.Report, x *model.Extraction) (Result, error) {
	var res Result

	personsByName, err := r.recordPersonnel(ctx, report, x.Personnel, &res)
	if err != nil {
		return res, err
	}
	if err := r.recordWorkLogs(ctx, report, x.WorkLogs, personsByName, &res); err != nil {
		return res, err
	}
	if err := r.recordConstraints(ctx, report, x.Constraints); err != nil {
		return res, err
	}
	if err := r.recordDeliveries(ctx, report, x.Vendors, &res); err != nil {
		return res, err
	}
	return res, nil
}

// recordPersonnel resolves each mentioned worker and appends one history row
// per (person, report). It returns resolved ids keyed by normalized raw name
// for work-log linking.
func (r *Recorder) recordPersonnel(ctx context.Context, report *model.Report, personnel []model.ExtractedPerson, res *Result) (map[string]string, error) {
	byName := make(map[string]string, len(personnel))

	for _, p := range personnel {
		resolution, err := r.engine.ResolvePerson(ctx, p.Name, report.ReportDate)
		if err != nil {
			return nil, eris.Wrapf(err, "recorder: resolve person %q", p.Name)
		}
		if resolution.Created {
			res.EntitiesCreated++
		}
		if resolution.NeedsReview {
			res.EntitiesFlagged++
		}
		byName[normalize.Name(p.Name)] = resolution.EntityID

		h := &model.PersonHistory{
			PersonID:       resolution.EntityID,
			ReportID:       report.ID,
			RawName:        p.Name,
			HoursWorked:    p.HoursWorked,
			OvertimeHours:  p.OvertimeHours,
			TeamAssignment: p.Team,
			HealthStatus:   p.HealthStatus,
			SourceExcerpt:  p.ExtractedFromText,
			MatchScore:     resolution.Score,
			NeedsReview:    resolution.NeedsReview,
		}
		inserted, err := r.store.AppendPersonHistory(ctx, h)
		if err != nil {
			return nil, eris.Wrapf(err, "recorder: append history for %q", p.Name)
		}
		if !inserted {
			// Reprocess or duplicate mention: the fact already exists.
			continue
		}

		// Flagged rows defer their counter bumps to review confirmation.
		if !resolution.NeedsReview {
			if err := r.store.UpdatePersonSeen(ctx, resolution.EntityID, report.ReportDate, p.HoursWorked+p.OvertimeHours, p.Position); err != nil {
				return nil, eris.Wrapf(err, "recorder: update person %s", resolution.EntityID)
			}
		}
		if p.Team != "" {
			if err := r.store.UpsertTeamMember(ctx, report.ProjectID, p.Team, resolution.EntityID); err != nil {
				return nil, eris.Wrapf(err, "recorder: roster upsert for %q", p.Name)
			}
		}
	}
	return byName, nil
}

// recordWorkLogs replaces the report's work logs with entries holding
// resolved personnel ids. A log naming a team with no personnel expands to
// the project's known roster for that team. Names that resolve through the
// fuzzy path mark the entry for review.
func (r *Recorder) recordWorkLogs(ctx context.Context, report *model.Report, logs []model.ExtractedWorkLog, personsByName map[string]string, res *Result) error {
	entries := make([]model.WorkLogEntry, 0, len(logs))

	for _, wl := range logs {
		entry := model.WorkLogEntry{
			ReportID:      report.ID,
			Team:          wl.Team,
			Level:         wl.Level,
			Description:   wl.Description,
			HoursWorked:   wl.HoursWorked,
			SourceExcerpt: wl.ExtractedFromText,
		}

		seen := make(map[string]bool)
		for _, rawName := range wl.Personnel {
			id, ok := personsByName[normalize.Name(rawName)]
			if !ok {
				// Mentioned in a work log but missing from the personnel
				// section; resolve it like any other mention.
				resolution, err := r.engine.ResolvePerson(ctx, rawName, report.ReportDate)
				if err != nil {
					return eris.Wrapf(err, "recorder: resolve work-log name %q", rawName)
				}
				if resolution.Created {
					res.EntitiesCreated++
				}
				if resolution.NeedsReview {
					res.EntitiesFlagged++
					entry.NeedsReview = true
				}
				id = resolution.EntityID
				personsByName[normalize.Name(rawName)] = id
			}
			if !seen[id] {
				seen[id] = true
				entry.PersonnelIDs = append(entry.PersonnelIDs, id)
			}
		}

		if len(entry.PersonnelIDs) == 0 && wl.Team != "" {
			roster, err := r.store.GetTeamRoster(ctx, report.ProjectID, wl.Team)
			if err != nil {
				return eris.Wrapf(err, "recorder: roster for team %q", wl.Team)
			}
			entry.PersonnelIDs = roster
			if len(roster) > 0 {
				zap.L().Debug("work log expanded from roster",
					zap.String("report_id", report.ID),
					zap.String("team", wl.Team),
					zap.Int("members", len(roster)),
				)
			}
		}

		entries = append(entries, entry)
	}

	if err := r.store.ReplaceWorkLogs(ctx, report.ID, entries); err != nil {
		return eris.Wrapf(err, "recorder: replace work logs for %s", report.ID)
	}
	return nil
}

// recordConstraints replaces the report's constraints, coercing out-of-enum
// categories and severities instead of failing the report.
func (r *Recorder) recordConstraints(ctx context.Context, report *model.Report, constraints []model.ExtractedConstraint) error {
	recs := make([]model.ConstraintRecord, 0, len(constraints))

	for _, c := range constraints {
		rec := model.ConstraintRecord{
			ReportID:      report.ID,
			CostImpact:    c.CostImpact,
			Status:        c.Status,
			SourceExcerpt: c.ExtractedFromText,
		}
		if rec.Status == "" {
			rec.Status = "open"
		}

		category, vErr := coerceCategory(c.Category)
		rec.Category = category
		if vErr != nil {
			rec.NeedsReview = true
			zap.L().Warn("constraint category coerced",
				zap.String("report_id", report.ID),
				zap.Error(vErr),
			)
		}

		severity, vErr := coerceSeverity(c.Severity)
		rec.Severity = severity
		if vErr != nil {
			rec.NeedsReview = true
			zap.L().Warn("constraint severity coerced",
				zap.String("report_id", report.ID),
				zap.Error(vErr),
			)
		}

		recs = append(recs, rec)
	}

	if err := r.store.ReplaceConstraints(ctx, report.ID, recs); err != nil {
		return eris.Wrapf(err, "recorder: replace constraints for %s", report.ID)
	}
	return nil
}

// recordDeliveries resolves each vendor mention and appends one delivery row
// per (vendor, report).
func (r *Recorder) recordDeliveries(ctx context.Context, report *model.Report, vendors []model.ExtractedVendor, res *Result) error {
	for _, v := range vendors {
		resolution, err := r.engine.ResolveVendor(ctx, v.Company, report.ReportDate)
		if err != nil {
			return eris.Wrapf(err, "recorder: resolve vendor %q", v.Company)
		}
		if resolution.Created {
			res.EntitiesCreated++
		}
		if resolution.NeedsReview {
			res.EntitiesFlagged++
		}

		d := &model.VendorDelivery{
			VendorID:      resolution.EntityID,
			ReportID:      report.ID,
			RawName:       v.Company,
			Materials:     v.Materials,
			DeliveryTime:  v.DeliveryTime,
			Issues:        v.Issues,
			CostImpact:    v.CostImpact,
			OnTime:        v.OnTime,
			SourceExcerpt: v.ExtractedFromText,
			MatchScore:    resolution.Score,
			NeedsReview:   resolution.NeedsReview,
		}
		inserted, err := r.store.AppendVendorDelivery(ctx, d)
		if err != nil {
			return eris.Wrapf(err, "recorder: append delivery for %q", v.Company)
		}
		if inserted && !resolution.NeedsReview {
			if err := r.store.UpdateVendorSeen(ctx, resolution.EntityID, report.ReportDate, v.VendorType); err != nil {
				return eris.Wrapf(err, "recorder: update vendor %s", resolution.EntityID)
			}
		}
	}
	return nil
}

// coerceCategory maps a raw category onto the allowed enumeration. Out-of-enum
// values fall back to "other" with a SchemaViolationError describing the
// rejected value.
func coerceCategory(raw string) (model.ConstraintCategory, error) {
	switch model.ConstraintCategory(raw) {
	case model.CategoryDesign, model.CategoryMaterial, model.CategoryLabor,
		model.CategoryEquipment, model.CategoryWeather, model.CategoryCoordination,
		model.CategoryInspection, model.CategoryOther:
		return model.ConstraintCategory(raw), nil
	}
	return model.CategoryOther, &resilience.SchemaViolationError{Field: "category", Value: raw}
}

// coerceSeverity maps a raw severity onto the allowed enumeration, falling
// back to "medium".
func coerceSeverity(raw string) (model.ConstraintSeverity, error) {
	switch model.ConstraintSeverity(raw) {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical:
		return model.ConstraintSeverity(raw), nil
	}
	return model.SeverityMedium, &resilience.SchemaViolationError{Field: "severity", Value: raw}
}
