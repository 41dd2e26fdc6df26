package resolve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/blueline-build/fieldreport-cli/internal/config"
	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

var reportDate = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "resolve.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestEngine(st store.Store) *Engine {
	return NewEngine(st, nil, config.ResolutionConfig{AutoMatchThreshold: 95, ReviewThreshold: 80})
}

// reviewOnlyEngine never auto-matches: the scorer caps fuzzy scores at 99, so
// a threshold of 100 forces every non-exact match into the review band.
func reviewOnlyEngine(st store.Store) *Engine {
	return NewEngine(st, nil, config.ResolutionConfig{AutoMatchThreshold: 100, ReviewThreshold: 50})
}

func seedReport(t *testing.T, st store.Store, id string) {
	t.Helper()
	require.NoError(t, st.CreateReport(context.Background(), &model.Report{
		ID:            id,
		ProjectID:     "proj-1",
		SubmitterID:   "foreman-1",
		ReportDate:    reportDate,
		RawTranscript: "transcript",
	}))
}

func TestEngine_ResolvePerson_CreatesWhenRegistryIsEmpty(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	res, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.False(t, res.NeedsReview)
	assert.Equal(t, "Owen Glassburn", res.DisplayName)
	assert.NotEmpty(t, res.EntityID)
}

func TestEngine_ResolvePerson_ExactNormalizedMatch(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	first, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)

	// Case, punctuation, and diacritics all normalize away.
	second, err := e.ResolvePerson(context.Background(), "  OWEN   GLASSBURN. ", reportDate)
	require.NoError(t, err)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.False(t, second.Created)
	assert.Equal(t, 100, second.Score)
}

func TestEngine_ResolvePerson_HighScoreAutoMatchesAndLearnsVariant(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)

	res, err := e.ResolvePerson(context.Background(), "Owen Glasburn", reportDate)
	require.NoError(t, err)
	assert.Equal(t, owen.EntityID, res.EntityID)
	assert.False(t, res.Created)
	assert.False(t, res.NeedsReview)
	assert.GreaterOrEqual(t, res.Score, 95)

	// The misspelling is now a learned variant: the next resolve is exact.
	again, err := e.ResolvePerson(context.Background(), "Owen Glasburn", reportDate)
	require.NoError(t, err)
	assert.Equal(t, owen.EntityID, again.EntityID)
	assert.Equal(t, 100, again.Score)
}

func TestEngine_ResolvePerson_NicknameMatchesCanonical(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	robert, err := e.ResolvePerson(context.Background(), "Robert Smith", reportDate)
	require.NoError(t, err)

	bob, err := e.ResolvePerson(context.Background(), "Bob Smith", reportDate)
	require.NoError(t, err)
	assert.Equal(t, robert.EntityID, bob.EntityID)
	assert.False(t, bob.Created)
}

func TestEngine_ResolvePerson_MidBandFlagsForReview(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)

	res, err := e.ResolvePerson(context.Background(), "Owen Glasburn", reportDate)
	require.NoError(t, err)
	assert.True(t, res.NeedsReview)
	assert.False(t, res.Created)
	assert.Equal(t, owen.EntityID, res.EntityID, "review points at the best candidate")
	assert.Less(t, res.Score, 100)

	// Flagged matches never learn variants: the spelling stays unresolved
	// until a reviewer decides.
	again, err := e.ResolvePerson(context.Background(), "Owen Glasburn", reportDate)
	require.NoError(t, err)
	assert.True(t, again.NeedsReview)
}

func TestEngine_ResolvePerson_LowScoreCreatesNewEntity(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)

	maria, err := e.ResolvePerson(context.Background(), "Maria Santos", reportDate)
	require.NoError(t, err)
	assert.True(t, maria.Created)
	assert.NotEqual(t, owen.EntityID, maria.EntityID)
}

func TestEngine_ResolvePerson_EmptyNameIsAnError(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	_, err := e.ResolvePerson(context.Background(), "   ", reportDate)
	require.Error(t, err)
}

func TestEngine_ResolveVendor_LegalSuffixesNormalizeAway(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	first, err := e.ResolveVendor(context.Background(), "ABC Supply Co", reportDate)
	require.NoError(t, err)
	assert.True(t, first.Created)

	second, err := e.ResolveVendor(context.Background(), "ABC Supply Inc.", reportDate)
	require.NoError(t, err)
	assert.Equal(t, first.EntityID, second.EntityID)
	assert.False(t, second.Created)
	assert.Equal(t, 100, second.Score)
}

func TestEngine_ResolveVendor_LowScoreCreatesNew(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	ozinga, err := e.ResolveVendor(context.Background(), "Ozinga", reportDate)
	require.NoError(t, err)

	sunbelt, err := e.ResolveVendor(context.Background(), "Sunbelt Rentals", reportDate)
	require.NoError(t, err)
	assert.True(t, sunbelt.Created)
	assert.NotEqual(t, ozinga.EntityID, sunbelt.EntityID)
}

// flagPersonHistory resolves a near-miss under a review-only engine and
// appends the flagged history row the recorder would have written.
func flagPersonHistory(t *testing.T, st store.Store, e *Engine, reportID, rawName string) (*model.Resolution, *model.PersonHistory) {
	t.Helper()
	res, err := e.ResolvePerson(context.Background(), rawName, reportDate)
	require.NoError(t, err)
	require.True(t, res.NeedsReview)

	h := &model.PersonHistory{
		PersonID:      res.EntityID,
		ReportID:      reportID,
		RawName:       rawName,
		HoursWorked:   8,
		SourceExcerpt: rawName + " worked the deck",
		MatchScore:    res.Score,
		NeedsReview:   true,
	}
	inserted, err := st.AppendPersonHistory(context.Background(), h)
	require.NoError(t, err)
	require.True(t, inserted)
	return res, h
}

func TestEngine_ResolvePersonReview_Confirm(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	_, h := flagPersonHistory(t, st, e, "r-1", "Owen Glasburn")

	require.NoError(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionConfirm, ""))

	got, err := st.GetPersonHistoryByID(context.Background(), h.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsReview)

	// Confirmation teaches the spelling and bumps the deferred counters.
	res, err := e.ResolvePerson(context.Background(), "Owen Glasburn", reportDate)
	require.NoError(t, err)
	assert.Equal(t, owen.EntityID, res.EntityID)
	assert.Equal(t, 100, res.Score)

	p, err := st.GetPerson(context.Background(), owen.EntityID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalReports)
	assert.Equal(t, float64(8), p.TotalHours)
}

func TestEngine_ResolvePersonReview_RejectCreatesSeparatePerson(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	_, h := flagPersonHistory(t, st, e, "r-1", "Owen Glasburn")

	require.NoError(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionReject, ""))

	got, err := st.GetPersonHistoryByID(context.Background(), h.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsReview)
	assert.NotEqual(t, owen.EntityID, got.PersonID, "record moved off the rejected candidate")

	created, err := st.GetPerson(context.Background(), got.PersonID)
	require.NoError(t, err)
	assert.Equal(t, "Owen Glasburn", created.CanonicalName)
	assert.Equal(t, 1, created.TotalReports)
}

func TestEngine_ResolvePersonReview_MergeInto(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")

	dup, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	survivor, err := e.ResolvePerson(context.Background(), "O. Glassburn Sr", reportDate)
	require.NoError(t, err)

	_, h := flagPersonHistory(t, st, e, "r-1", "Owen Glasburn")
	require.Equal(t, dup.EntityID, h.PersonID)

	require.NoError(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionMergeInto, survivor.EntityID))

	merged, err := st.GetPerson(context.Background(), dup.EntityID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityStatusMerged, merged.Status)
	assert.Equal(t, survivor.EntityID, merged.MergedInto)

	got, err := st.GetPersonHistoryByID(context.Background(), h.ID)
	require.NoError(t, err)
	assert.Equal(t, survivor.EntityID, got.PersonID)

	// Spellings of the merged person now land on the survivor.
	res, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	assert.Equal(t, survivor.EntityID, res.EntityID)
}

func TestEngine_ResolvePersonReview_MergeIntoRequiresTarget(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")

	_, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	_, h := flagPersonHistory(t, st, e, "r-1", "Owen Glasburn")

	require.Error(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionMergeInto, ""))
	require.Error(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionMergeInto, "nonexistent"))
	require.Error(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionMergeInto, h.PersonID))
}

func TestEngine_ResolvePersonReview_UnflaggedRecordIsAnError(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)
	seedReport(t, st, "r-1")

	owen, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)
	h := &model.PersonHistory{PersonID: owen.EntityID, ReportID: "r-1", RawName: "Owen Glassburn", MatchScore: 100}
	_, err = st.AppendPersonHistory(context.Background(), h)
	require.NoError(t, err)

	require.Error(t, e.ResolvePersonReview(context.Background(), h.ID, DecisionConfirm, ""))
	require.Error(t, e.ResolvePersonReview(context.Background(), "missing-id", DecisionConfirm, ""))
}

func TestEngine_ResolveVendorReview_Confirm(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")

	ozinga, err := e.ResolveVendor(context.Background(), "Ozinga Ready Mix", reportDate)
	require.NoError(t, err)

	res, err := e.ResolveVendor(context.Background(), "Ozinga Redi Mix", reportDate)
	require.NoError(t, err)
	require.True(t, res.NeedsReview)

	d := &model.VendorDelivery{
		VendorID:      res.EntityID,
		ReportID:      "r-1",
		RawName:       "Ozinga Redi Mix",
		Materials:     "ready-mix",
		OnTime:        true,
		SourceExcerpt: "Ozinga showed up at seven",
		MatchScore:    res.Score,
		NeedsReview:   true,
	}
	inserted, err := st.AppendVendorDelivery(context.Background(), d)
	require.NoError(t, err)
	require.True(t, inserted)

	require.NoError(t, e.ResolveVendorReview(context.Background(), d.ID, DecisionConfirm, ""))

	got, err := st.GetVendorDeliveryByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.False(t, got.NeedsReview)

	again, err := e.ResolveVendor(context.Background(), "Ozinga Redi Mix", reportDate)
	require.NoError(t, err)
	assert.Equal(t, ozinga.EntityID, again.EntityID)
	assert.Equal(t, 100, again.Score)
}

func TestEngine_AutoConfirmSweep(t *testing.T) {
	st := newTestStore(t)
	e := reviewOnlyEngine(st)
	seedReport(t, st, "r-1")
	seedReport(t, st, "r-2")

	_, err := e.ResolvePerson(context.Background(), "Owen Glassburn", reportDate)
	require.NoError(t, err)

	// One stale flag, one fresh flag.
	_, stale := flagPersonHistory(t, st, e, "r-1", "Owen Glasburn")
	_, fresh := flagPersonHistory(t, st, e, "r-2", "Owen Glassbern")

	// Age the stale flag past the cutoff.
	cutoff := time.Now().UTC().Add(-time.Minute)
	agedOut := *stale
	require.NoError(t, st.DeletePersonHistory(context.Background(), stale.ID))
	agedOut.ID = ""
	agedOut.CreatedAt = cutoff.Add(-24 * time.Hour)
	inserted, err := st.AppendPersonHistory(context.Background(), &agedOut)
	require.NoError(t, err)
	require.True(t, inserted)

	res, err := e.AutoConfirmSweep(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PersonsConfirmed)
	assert.Zero(t, res.VendorsConfirmed)
	assert.Zero(t, res.Failures)

	// The fresh flag is untouched.
	got, err := st.GetPersonHistoryByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.True(t, got.NeedsReview)
}

// Two reports mentioning the same new name can be processed in parallel, so
// concurrent resolution of an unknown name must converge on one canonical row.
func TestEngine_ResolvePerson_ConcurrentCreateConverges(t *testing.T) {
	st := newTestStore(t)
	e := newTestEngine(st)

	const workers = 8
	results := make([]*model.Resolution, workers)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			res, err := e.ResolvePerson(ctx, "Dan Kowalski", reportDate)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].EntityID, res.EntityID)
		assert.False(t, res.NeedsReview)
		if res.Created {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one resolution should create the row")

	persons, err := st.ListActivePersons(context.Background())
	require.NoError(t, err)
	require.Len(t, persons, 1)
	assert.Equal(t, "Dan Kowalski", persons[0].CanonicalName)
}
