// Package aggregate recomputes project rollups from the append-only history
// tables. A recompute reads only committed history and never its own prior
// output, so it is safe to rerun at any time, including concurrently with
// report ingestion.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

// doubleTimeAfter is the overtime threshold beyond which hours are paid at
// the double-time multiplier, per prevailing-wage convention: the first four
// overtime hours pay time-and-a-half, the rest double.
const doubleTimeAfter = 4.0

// Engine computes and persists project rollups.
type Engine struct {
	store  store.Store
	rates  config.RatesConfig
	grades config.GradesConfig
}

// New creates an aggregation engine. Zero-valued rate and grade settings fall
// back to the configuration defaults.
func New(st store.Store, rates config.RatesConfig, grades config.GradesConfig) *Engine {
	if rates.DefaultHourly <= 0 {
		rates.DefaultHourly = 45.0
	}
	if rates.OvertimeMultiplier <= 0 {
		rates.OvertimeMultiplier = 1.5
	}
	if rates.DoubleTimeMultiplier <= 0 {
		rates.DoubleTimeMultiplier = 2.0
	}
	if grades.OnTimeWeight <= 0 {
		grades.OnTimeWeight = 0.6
	}
	if grades.IncidentWeight <= 0 {
		grades.IncidentWeight = 0.4
	}
	if grades.ChargebackCap <= 0 {
		grades.ChargebackCap = 10000.0
	}
	if len(rates.Hourly) > 0 {
		hourly := make(map[string]float64, len(rates.Hourly))
		for position, rate := range rates.Hourly {
			hourly[strings.ToLower(position)] = rate
		}
		rates.Hourly = hourly
	}
	return &Engine{store: st, rates: rates, grades: grades}
}

// Recompute rebuilds the rollup for one project window from scratch and
// persists it, replacing any previous rollup for the same window.
func (e *Engine) Recompute(ctx context.Context, projectID string, w store.Window) (*model.ProjectRollup, error) {
	rollup := &model.ProjectRollup{
		ProjectID:   projectID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		ComputedAt:  time.Now().UTC(),
	}
	reportIDs := make(map[string]struct{})

	if err := e.rollupLabor(ctx, projectID, w, rollup, reportIDs); err != nil {
		return nil, err
	}
	if err := e.rollupVendors(ctx, projectID, w, rollup, reportIDs); err != nil {
		return nil, err
	}
	if err := e.rollupConstraints(ctx, projectID, w, rollup, reportIDs); err != nil {
		return nil, err
	}
	rollup.ReportCount = len(reportIDs)

	if err := e.store.SaveRollup(ctx, rollup); err != nil {
		return nil, eris.Wrapf(err, "aggregate: save rollup for %s", projectID)
	}

	zap.L().Info("rollup recomputed",
		zap.String("project_id", projectID),
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End),
		zap.Int("report_count", rollup.ReportCount),
		zap.Float64("labor_cost", rollup.Labor.LaborCost),
		zap.Int("vendors", len(rollup.Vendors)),
	)
	return rollup, nil
}

func (e *Engine) rollupLabor(ctx context.Context, projectID string, w store.Window, rollup *model.ProjectRollup, reportIDs map[string]struct{}) error {
	history, err := e.store.ListPersonHistory(ctx, projectID, w)
	if err != nil {
		return eris.Wrapf(err, "aggregate: list person history for %s", projectID)
	}

	rateByPerson := make(map[string]float64)
	for _, h := range history {
		reportIDs[h.ReportID] = struct{}{}

		rate, ok := rateByPerson[h.PersonID]
		if !ok {
			rate, err = e.hourlyRate(ctx, h.PersonID)
			if err != nil {
				return err
			}
			rateByPerson[h.PersonID] = rate
		}

		regular := h.HoursWorked
		overtime := h.OvertimeHours
		double := 0.0
		if overtime > doubleTimeAfter {
			double = overtime - doubleTimeAfter
			overtime = doubleTimeAfter
		}

		rollup.Labor.RegularHours += regular
		rollup.Labor.OvertimeHours += overtime
		rollup.Labor.DoubleTimeHours += double
		rollup.Labor.LaborCost += regular*rate +
			overtime*rate*e.rates.OvertimeMultiplier +
			double*rate*e.rates.DoubleTimeMultiplier
	}
	rollup.Labor.PersonCount = len(rateByPerson)
	return nil
}

// hourlyRate looks up the person's rate by current position, falling back to
// the default when the position is unknown or unlisted.
func (e *Engine) hourlyRate(ctx context.Context, personID string) (float64, error) {
	p, err := e.store.GetPerson(ctx, personID)
	if err != nil {
		return 0, eris.Wrapf(err, "aggregate: load person %s", personID)
	}
	if p == nil {
		return e.rates.DefaultHourly, nil
	}
	if rate, ok := e.rates.Hourly[strings.ToLower(p.CurrentPosition)]; ok && rate > 0 {
		return rate, nil
	}
	return e.rates.DefaultHourly, nil
}

func (e *Engine) rollupVendors(ctx context.Context, projectID string, w store.Window, rollup *model.ProjectRollup, reportIDs map[string]struct{}) error {
	deliveries, err := e.store.ListVendorDeliveries(ctx, projectID, w)
	if err != nil {
		return eris.Wrapf(err, "aggregate: list deliveries for %s", projectID)
	}

	type vendorAcc struct {
		deliveries int
		onTime     int
		incident   float64
	}
	acc := make(map[string]*vendorAcc)
	for _, d := range deliveries {
		reportIDs[d.ReportID] = struct{}{}
		a := acc[d.VendorID]
		if a == nil {
			a = &vendorAcc{}
			acc[d.VendorID] = a
		}
		a.deliveries++
		if d.OnTime {
			a.onTime++
		}
		a.incident += d.CostImpact
	}

	for vendorID, a := range acc {
		v, err := e.store.GetVendor(ctx, vendorID)
		if err != nil {
			return eris.Wrapf(err, "aggregate: load vendor %s", vendorID)
		}
		name := vendorID
		if v != nil {
			name = v.CanonicalName
		}

		onTimeRate := float64(a.onTime) / float64(a.deliveries)
		rollup.Vendors = append(rollup.Vendors, model.VendorRollup{
			VendorID:     vendorID,
			VendorName:   name,
			Deliveries:   a.deliveries,
			OnTimeRate:   onTimeRate,
			IncidentCost: a.incident,
			Grade:        e.letterGrade(onTimeRate, a.incident),
		})
	}

	sort.Slice(rollup.Vendors, func(i, j int) bool {
		return rollup.Vendors[i].VendorName < rollup.Vendors[j].VendorName
	})
	return nil
}

// letterGrade scores a vendor from its on-time rate and chargeback history.
// The incident component degrades linearly up to the chargeback cap.
func (e *Engine) letterGrade(onTimeRate, incidentCost float64) string {
	incidentRatio := incidentCost / e.grades.ChargebackCap
	if incidentRatio > 1 {
		incidentRatio = 1
	}
	score := e.grades.OnTimeWeight*onTimeRate + e.grades.IncidentWeight*(1-incidentRatio)

	switch {
	case score >= 0.9:
		return "A"
	case score >= 0.75:
		return "B"
	case score >= 0.6:
		return "C"
	default:
		return "D"
	}
}

func (e *Engine) rollupConstraints(ctx context.Context, projectID string, w store.Window, rollup *model.ProjectRollup, reportIDs map[string]struct{}) error {
	constraints, err := e.store.ListProjectConstraints(ctx, projectID, w)
	if err != nil {
		return eris.Wrapf(err, "aggregate: list constraints for %s", projectID)
	}

	byCategory := make(map[model.ConstraintCategory]*model.ConstraintRollup)
	for _, c := range constraints {
		reportIDs[c.ReportID] = struct{}{}
		cr := byCategory[c.Category]
		if cr == nil {
			cr = &model.ConstraintRollup{Category: c.Category}
			byCategory[c.Category] = cr
		}
		cr.Count++
		cr.CostImpact += c.CostImpact
	}

	for _, cr := range byCategory {
		rollup.Constraints = append(rollup.Constraints, *cr)
	}
	sort.Slice(rollup.Constraints, func(i, j int) bool {
		return rollup.Constraints[i].Category < rollup.Constraints[j].Category
	})
	return nil
}
