package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline-build/fieldreport-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedReport(t *testing.T, st *SQLiteStore, id, projectID string, date time.Time) *model.Report {
	t.Helper()
	r := &model.Report{
		ID:            id,
		ProjectID:     projectID,
		SubmitterID:   "foreman-1",
		ReportDate:    date,
		RawTranscript: "crew poured deck on level three",
	}
	require.NoError(t, st.CreateReport(context.Background(), r))
	return r
}

// --- Reports ---

func TestSQLite_Report_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	r, err := st.GetReport(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, model.ReportStatusPending, r.Status)
	assert.Equal(t, 1, r.ExtractionVersion)
}

func TestSQLite_Report_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	r, err := st.GetReport(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestSQLite_Report_StatusTransition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())

	require.NoError(t, st.UpdateReportStatus(ctx, "r-1", model.ReportStatusFailed, "completion service returned malformed JSON"))

	r, err := st.GetReport(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusFailed, r.Status)
	assert.Equal(t, "completion service returned malformed JSON", r.FailureReason)
}

func TestSQLite_Report_StatusUnknownID(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateReportStatus(context.Background(), "ghost", model.ReportStatusAnalyzed, "")
	assert.Error(t, err)
}

func TestSQLite_Report_BumpExtractionVersion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())

	v, err := st.BumpExtractionVersion(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestSQLite_Report_ListByProjectAndStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	seedReport(t, st, "r-2", "proj-2", time.Now().UTC())
	require.NoError(t, st.UpdateReportStatus(ctx, "r-2", model.ReportStatusPublished, ""))

	reports, err := st.ListReports(ctx, ReportFilter{ProjectID: "proj-1"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "r-1", reports[0].ID)

	reports, err = st.ListReports(ctx, ReportFilter{Status: model.ReportStatusPublished})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "r-2", reports[0].ID)
}

// --- Persons ---

func TestSQLite_Person_CreateIfAbsent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	p := &model.Person{CanonicalName: "Owen Glassburn", NameVariants: []string{"Owen Glassburn"}, DateFirstSeen: now, DateLastSeen: now}
	created, isNew, err := st.CreatePersonIfAbsent(ctx, p, "owen glassburn")
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, created.ID)

	// Second create with the same normalized name lands on the first row.
	dup := &model.Person{CanonicalName: "owen glassburn", DateFirstSeen: now, DateLastSeen: now}
	existing, isNew, err := st.CreatePersonIfAbsent(ctx, dup, "owen glassburn")
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, created.ID, existing.ID)
}

func TestSQLite_Person_FindByVariant(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	p := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, p, "owen glassburn")
	require.NoError(t, err)

	require.NoError(t, st.AddPersonVariant(ctx, p.ID, "Owen glass burner", "owen glass burner"))

	found, err := st.FindPersonByName(ctx, "owen glass burner")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)
	assert.Contains(t, found.NameVariants, "Owen glass burner")
}

func TestSQLite_Person_FindFollowsMergePointer(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	a := &model.Person{CanonicalName: "Owen Glasburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, a, "owen glasburn")
	require.NoError(t, err)
	b := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err = st.CreatePersonIfAbsent(ctx, b, "owen glassburn")
	require.NoError(t, err)

	require.NoError(t, st.MarkPersonMerged(ctx, a.ID, b.ID))

	found, err := st.FindPersonByName(ctx, "owen glasburn")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, b.ID, found.ID)
}

func TestSQLite_Person_UpdateSeen(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	p := &model.Person{CanonicalName: "Maria Delgado", DateFirstSeen: first, DateLastSeen: first}
	_, _, err := st.CreatePersonIfAbsent(ctx, p, "maria delgado")
	require.NoError(t, err)

	later := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpdatePersonSeen(ctx, p.ID, later, 10, "electrician"))
	require.NoError(t, st.UpdatePersonSeen(ctx, p.ID, first, 8, ""))

	got, err := st.GetPerson(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalReports)
	assert.InDelta(t, 18, got.TotalHours, 0.001)
	assert.Equal(t, "electrician", got.CurrentPosition)
	// An earlier report never rolls last-seen backwards.
	assert.True(t, got.DateLastSeen.Equal(later))
}

// --- Person history ---

func TestSQLite_PersonHistory_AppendIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	now := time.Now().UTC()
	p := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, p, "owen glassburn")
	require.NoError(t, err)

	h := &model.PersonHistory{PersonID: p.ID, ReportID: "r-1", RawName: "Owen Glassburn", HoursWorked: 8, SourceExcerpt: "Owen worked the deck", MatchScore: 100}
	inserted, err := st.AppendPersonHistory(ctx, h)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := &model.PersonHistory{PersonID: p.ID, ReportID: "r-1", RawName: "Owen Glassburn", HoursWorked: 8, SourceExcerpt: "Owen worked the deck", MatchScore: 100}
	inserted, err = st.AppendPersonHistory(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	history, err := st.ListPersonHistoryByReport(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSQLite_PersonHistory_WindowQuery(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-early", "proj-1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	seedReport(t, st, "r-late", "proj-1", time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	seedReport(t, st, "r-other", "proj-2", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	now := time.Now().UTC()
	p := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, p, "owen glassburn")
	require.NoError(t, err)

	for _, reportID := range []string{"r-early", "r-late", "r-other"} {
		_, err := st.AppendPersonHistory(ctx, &model.PersonHistory{PersonID: p.ID, ReportID: reportID, RawName: "Owen", SourceExcerpt: "x", MatchScore: 100})
		require.NoError(t, err)
	}

	history, err := st.ListPersonHistory(ctx, "proj-1", Window{
		Start: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "r-late", history[0].ReportID)
}

func TestSQLite_PersonHistory_ReviewLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	now := time.Now().UTC()
	p := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, p, "owen glassburn")
	require.NoError(t, err)

	h := &model.PersonHistory{PersonID: p.ID, ReportID: "r-1", RawName: "Owen Glasburn", SourceExcerpt: "x", MatchScore: 88, NeedsReview: true}
	_, err = st.AppendPersonHistory(ctx, h)
	require.NoError(t, err)

	flagged, err := st.ListFlaggedPersonHistory(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, flagged, 1)

	require.NoError(t, st.ClearPersonHistoryReview(ctx, h.ID))

	flagged, err = st.ListFlaggedPersonHistory(ctx, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, flagged)
}

func TestSQLite_PersonHistory_ReassignAllDropsDuplicates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	seedReport(t, st, "r-2", "proj-1", time.Now().UTC())

	now := time.Now().UTC()
	a := &model.Person{CanonicalName: "Owen Glasburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err := st.CreatePersonIfAbsent(ctx, a, "owen glasburn")
	require.NoError(t, err)
	b := &model.Person{CanonicalName: "Owen Glassburn", DateFirstSeen: now, DateLastSeen: now}
	_, _, err = st.CreatePersonIfAbsent(ctx, b, "owen glassburn")
	require.NoError(t, err)

	// Both persons appear on r-1; only the duplicate appears on r-2.
	for _, h := range []*model.PersonHistory{
		{PersonID: a.ID, ReportID: "r-1", RawName: "Owen Glasburn", SourceExcerpt: "x", MatchScore: 90},
		{PersonID: b.ID, ReportID: "r-1", RawName: "Owen Glassburn", SourceExcerpt: "x", MatchScore: 100},
		{PersonID: a.ID, ReportID: "r-2", RawName: "Owen Glasburn", SourceExcerpt: "x", MatchScore: 90},
	} {
		_, err := st.AppendPersonHistory(ctx, h)
		require.NoError(t, err)
	}

	require.NoError(t, st.ReassignAllPersonHistory(ctx, a.ID, b.ID))

	h1, err := st.ListPersonHistoryByReport(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, h1, 1)
	assert.Equal(t, b.ID, h1[0].PersonID)

	h2, err := st.ListPersonHistoryByReport(ctx, "r-2")
	require.NoError(t, err)
	require.Len(t, h2, 1)
	assert.Equal(t, b.ID, h2[0].PersonID)
}

// --- Vendors ---

func TestSQLite_Vendor_CreateIfAbsentAndDeliveries(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())

	now := time.Now().UTC()
	v := &model.Vendor{CanonicalName: "ABC Supply Co", DateFirstSeen: now, DateLastSeen: now}
	_, isNew, err := st.CreateVendorIfAbsent(ctx, v, "abc supply")
	require.NoError(t, err)
	assert.True(t, isNew)

	d := &model.VendorDelivery{VendorID: v.ID, ReportID: "r-1", RawName: "ABC Supply Inc", Materials: "rebar", OnTime: false, SourceExcerpt: "abc showed up late", MatchScore: 100}
	inserted, err := st.AppendVendorDelivery(ctx, d)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = st.AppendVendorDelivery(ctx, &model.VendorDelivery{VendorID: v.ID, ReportID: "r-1", RawName: "ABC Supply Inc", SourceExcerpt: "abc showed up late", MatchScore: 100})
	require.NoError(t, err)
	assert.False(t, inserted)

	deliveries, err := st.ListDeliveriesByReport(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].OnTime)
}

// --- Work logs and constraints ---

func TestSQLite_WorkLogs_ReplaceIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())

	first := []model.WorkLogEntry{
		{Team: "concrete", Description: "poured deck", PersonnelIDs: []string{"p-1", "p-2"}, HoursWorked: 16, SourceExcerpt: "x"},
		{Team: "electrical", Description: "rough-in", PersonnelIDs: []string{"p-3"}, HoursWorked: 8, SourceExcerpt: "y"},
	}
	require.NoError(t, st.ReplaceWorkLogs(ctx, "r-1", first))

	second := []model.WorkLogEntry{
		{Team: "concrete", Description: "poured deck", PersonnelIDs: []string{"p-1", "p-2"}, HoursWorked: 16, SourceExcerpt: "x"},
	}
	require.NoError(t, st.ReplaceWorkLogs(ctx, "r-1", second))

	logs, err := st.ListWorkLogs(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, []string{"p-1", "p-2"}, logs[0].PersonnelIDs)
}

func TestSQLite_Constraints_ProjectWindow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))

	recs := []model.ConstraintRecord{
		{Category: model.CategoryMaterial, Severity: model.SeverityHigh, CostImpact: 4200, SourceExcerpt: "rebar delivery missed"},
		{Category: model.CategoryOther, Severity: model.SeverityMedium, SourceExcerpt: "unclear delay", NeedsReview: true},
	}
	require.NoError(t, st.ReplaceConstraints(ctx, "r-1", recs))

	got, err := st.ListProjectConstraints(ctx, "proj-1", Window{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.CategoryMaterial, got[0].Category)
}

// --- Team rosters ---

func TestSQLite_TeamRoster_Upsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertTeamMember(ctx, "proj-1", "concrete", "p-1"))
	require.NoError(t, st.UpsertTeamMember(ctx, "proj-1", "concrete", "p-2"))
	require.NoError(t, st.UpsertTeamMember(ctx, "proj-1", "concrete", "p-1"))

	roster, err := st.GetTeamRoster(ctx, "proj-1", "concrete")
	require.NoError(t, err)
	assert.Equal(t, []string{"p-1", "p-2"}, roster)
}

// --- Extraction attempts ---

func TestSQLite_Attempt_CacheKeyLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())

	a := &model.ExtractionAttempt{
		ReportID:         "r-1",
		CacheKey:         "abc123",
		PromptVersion:    "v3",
		Model:            "claude-sonnet-4-5",
		RawResponse:      `{"personnel":[]}`,
		Payload:          &model.Extraction{TimeSummary: model.TimeSummary{RegularHours: 40}},
		ValidationPassed: true,
	}
	require.NoError(t, st.CreateAttempt(ctx, a))

	hit, err := st.FindAttemptByCacheKey(ctx, "abc123")
	require.NoError(t, err)
	require.NotNil(t, hit)
	require.NotNil(t, hit.Payload)
	assert.InDelta(t, 40, hit.Payload.TimeSummary.RegularHours, 0.001)

	miss, err := st.FindAttemptByCacheKey(ctx, "other-key")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLite_Attempt_SupersededNotReturned(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	a := &model.ExtractionAttempt{ReportID: "r-1", CacheKey: "abc123", PromptVersion: "v3", Model: "m", RawResponse: "{}", ValidationPassed: true}
	require.NoError(t, st.CreateAttempt(ctx, a))

	require.NoError(t, st.SupersedeAttempts(ctx, "r-1"))

	hit, err := st.FindAttemptByCacheKey(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

func TestSQLite_Attempt_FailedValidationNotReturned(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedReport(t, st, "r-1", "proj-1", time.Now().UTC())
	a := &model.ExtractionAttempt{ReportID: "r-1", CacheKey: "abc123", PromptVersion: "v3", Model: "m", RawResponse: "not json", ValidationPassed: false}
	require.NoError(t, st.CreateAttempt(ctx, a))

	hit, err := st.FindAttemptByCacheKey(ctx, "abc123")
	require.NoError(t, err)
	assert.Nil(t, hit)
}

// --- Rollups ---

func TestSQLite_Rollup_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	w := Window{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	r := &model.ProjectRollup{
		ProjectID:   "proj-1",
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Labor:       model.LaborRollup{RegularHours: 320, LaborCost: 14400, PersonCount: 8},
		ReportCount: 5,
		ComputedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.SaveRollup(ctx, r))

	// Recompute overwrites in place.
	r.Labor.RegularHours = 328
	r.ReportCount = 6
	require.NoError(t, st.SaveRollup(ctx, r))

	got, err := st.GetRollup(ctx, "proj-1", w)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 328, got.Labor.RegularHours, 0.001)
	assert.Equal(t, 6, got.ReportCount)
}

func TestSQLite_Rollup_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetRollup(context.Background(), "proj-none", Window{})
	require.NoError(t, err)
	assert.Nil(t, got)
}
