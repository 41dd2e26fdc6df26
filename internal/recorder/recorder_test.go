package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/resilience"
	"github.com/blueline-build/fieldreport-cli/internal/resolve"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

var reportDate = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

func newTestRecorder(t *testing.T) (*Recorder, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "recorder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	engine := resolve.NewEngine(st, nil, config.ResolutionConfig{AutoMatchThreshold: 95, ReviewThreshold: 80})
	return New(st, engine), st
}

func seedReport(t *testing.T, st store.Store, id string) *model.Report {
	t.Helper()
	r := &model.Report{
		ID:            id,
		ProjectID:     "proj-1",
		SubmitterID:   "foreman-1",
		ReportDate:    reportDate,
		RawTranscript: "transcript",
	}
	require.NoError(t, st.CreateReport(context.Background(), r))
	return r
}

func sampleExtraction() *model.Extraction {
	return &model.Extraction{
		Personnel: []model.ExtractedPerson{
			{Name: "Owen Glassburn", Position: "foreman", Team: "concrete", HoursWorked: 8, OvertimeHours: 2, ExtractedFromText: "Owen ran the pour"},
			{Name: "Maria Santos", Team: "concrete", HoursWorked: 8, ExtractedFromText: "Maria finished the screed"},
		},
		WorkLogs: []model.ExtractedWorkLog{
			{Team: "concrete", Level: "3", Description: "poured deck", Personnel: []string{"Owen Glassburn", "Maria Santos"}, HoursWorked: 8, ExtractedFromText: "poured the level three deck"},
		},
		Constraints: []model.ExtractedConstraint{
			{Category: "weather", Severity: "medium", CostImpact: 500, ExtractedFromText: "rain pushed the pour"},
		},
		Vendors: []model.ExtractedVendor{
			{Company: "Ozinga", VendorType: "supplier", Materials: "ready-mix", OnTime: false, CostImpact: 450, ExtractedFromText: "Ozinga showed up late"},
		},
		TimeSummary: model.TimeSummary{RegularHours: 16, OvertimeHours: 2},
	}
}

func TestRecorder_Record_FullExtraction(t *testing.T) {
	rec, st := newTestRecorder(t)
	report := seedReport(t, st, "r-1")

	res, err := rec.Record(context.Background(), report, sampleExtraction())
	require.NoError(t, err)
	assert.Equal(t, 3, res.EntitiesCreated, "two persons and one vendor")
	assert.Zero(t, res.EntitiesFlagged)

	history, err := st.ListPersonHistoryByReport(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, history, 2)

	logs, err := st.ListWorkLogs(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].PersonnelIDs, 2, "work log references resolved ids")
	for _, id := range logs[0].PersonnelIDs {
		p, err := st.GetPerson(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, p, "personnel id %s must be a canonical person", id)
	}

	constraints, err := st.ListConstraints(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, constraints, 1)
	assert.Equal(t, model.CategoryWeather, constraints[0].Category)
	assert.Equal(t, "open", constraints[0].Status)
	assert.False(t, constraints[0].NeedsReview)

	deliveries, err := st.ListDeliveriesByReport(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].OnTime)
}

func TestRecorder_Record_IsIdempotent(t *testing.T) {
	rec, st := newTestRecorder(t)
	report := seedReport(t, st, "r-1")
	x := sampleExtraction()

	_, err := rec.Record(context.Background(), report, x)
	require.NoError(t, err)
	second, err := rec.Record(context.Background(), report, x)
	require.NoError(t, err)
	assert.Zero(t, second.EntitiesCreated, "second run matches, never creates")

	history, err := st.ListPersonHistoryByReport(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)

	logs, err := st.ListWorkLogs(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	// Counters did not double.
	owen, err := st.FindPersonByName(context.Background(), "owen glassburn")
	require.NoError(t, err)
	require.NotNil(t, owen)
	assert.Equal(t, 1, owen.TotalReports)
	assert.Equal(t, float64(10), owen.TotalHours)
}

func TestRecorder_Record_CountersAccumulateAcrossReports(t *testing.T) {
	rec, st := newTestRecorder(t)
	x := sampleExtraction()

	_, err := rec.Record(context.Background(), seedReport(t, st, "r-1"), x)
	require.NoError(t, err)
	_, err = rec.Record(context.Background(), seedReport(t, st, "r-2"), x)
	require.NoError(t, err)

	owen, err := st.FindPersonByName(context.Background(), "owen glassburn")
	require.NoError(t, err)
	require.NotNil(t, owen)
	assert.Equal(t, 2, owen.TotalReports)
	assert.Equal(t, float64(20), owen.TotalHours)
	assert.Equal(t, "foreman", owen.CurrentPosition)

	ozinga, err := st.FindVendorByName(context.Background(), "ozinga")
	require.NoError(t, err)
	require.NotNil(t, ozinga)
	assert.Equal(t, 2, ozinga.TotalDeliveries)
	assert.Equal(t, "supplier", ozinga.VendorType)
}

func TestRecorder_Record_CoercesUnknownEnums(t *testing.T) {
	rec, st := newTestRecorder(t)
	report := seedReport(t, st, "r-1")

	x := &model.Extraction{
		Constraints: []model.ExtractedConstraint{
			{Category: "paperwork", Severity: "catastrophic", CostImpact: 100, ExtractedFromText: "permit got rejected"},
		},
	}
	_, err := rec.Record(context.Background(), report, x)
	require.NoError(t, err)

	constraints, err := st.ListConstraints(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, constraints, 1)
	assert.Equal(t, model.CategoryOther, constraints[0].Category)
	assert.Equal(t, model.SeverityMedium, constraints[0].Severity)
	assert.True(t, constraints[0].NeedsReview)
}

func TestRecorder_Record_WorkLogExpandsTeamRoster(t *testing.T) {
	rec, st := newTestRecorder(t)

	// First report establishes the concrete roster.
	_, err := rec.Record(context.Background(), seedReport(t, st, "r-1"), sampleExtraction())
	require.NoError(t, err)

	// Second report logs team work without naming anyone.
	x := &model.Extraction{
		WorkLogs: []model.ExtractedWorkLog{
			{Team: "concrete", Description: "stripped forms", HoursWorked: 4, ExtractedFromText: "concrete crew stripped forms"},
		},
	}
	_, err = rec.Record(context.Background(), seedReport(t, st, "r-2"), x)
	require.NoError(t, err)

	logs, err := st.ListWorkLogs(context.Background(), "r-2")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Len(t, logs[0].PersonnelIDs, 2, "roster expansion fills in the crew")
}

func TestRecorder_Record_WorkLogOnlyNameGetsResolved(t *testing.T) {
	rec, st := newTestRecorder(t)
	report := seedReport(t, st, "r-1")

	x := &model.Extraction{
		WorkLogs: []model.ExtractedWorkLog{
			{Description: "set rebar", Personnel: []string{"Dan Kowalski"}, HoursWorked: 6, ExtractedFromText: "Dan set rebar all day"},
		},
	}
	res, err := rec.Record(context.Background(), report, x)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntitiesCreated)

	dan, err := st.FindPersonByName(context.Background(), "dan kowalski")
	require.NoError(t, err)
	require.NotNil(t, dan)

	logs, err := st.ListWorkLogs(context.Background(), "r-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{dan.ID}, logs[0].PersonnelIDs)
}

func TestRecorder_Record_FlaggedMatchDefersCounters(t *testing.T) {
	rec, st := newTestRecorder(t)

	// Establish the canonical person.
	_, err := rec.Record(context.Background(), seedReport(t, st, "r-1"), sampleExtraction())
	require.NoError(t, err)

	// Force the review band with a high auto threshold.
	engine := resolve.NewEngine(st, nil, config.ResolutionConfig{AutoMatchThreshold: 100, ReviewThreshold: 50})
	flaggingRec := New(st, engine)

	x := &model.Extraction{
		Personnel: []model.ExtractedPerson{
			{Name: "Owen Glasburn", HoursWorked: 8, ExtractedFromText: "Owen worked the deck"},
		},
	}
	res, err := flaggingRec.Record(context.Background(), seedReport(t, st, "r-2"), x)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EntitiesFlagged)
	assert.Zero(t, res.EntitiesCreated)

	owen, err := st.FindPersonByName(context.Background(), "owen glassburn")
	require.NoError(t, err)
	require.NotNil(t, owen)
	assert.Equal(t, 1, owen.TotalReports, "flagged rows do not count until confirmed")

	flagged, err := st.ListFlaggedPersonHistory(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "Owen Glasburn", flagged[0].RawName)
}

func TestCoerceConstraintEnums_ReportSchemaViolations(t *testing.T) {
	cat, err := coerceCategory("vibes")
	assert.Equal(t, model.CategoryOther, cat)
	var sv *resilience.SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "category", sv.Field)
	assert.Equal(t, "vibes", sv.Value)

	sev, err := coerceSeverity("catastrophic")
	assert.Equal(t, model.SeverityMedium, sev)
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "severity", sv.Field)

	cat, err = coerceCategory("weather")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryWeather, cat)

	sev, err = coerceSeverity("high")
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, sev)
}
