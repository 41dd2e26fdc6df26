package normalize

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestScorer() *Scorer {
	return NewScorer(NewNicknameTable())
}

func TestScore_ExactMatch(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, 100, s.Score("owen glassburn", "owen glassburn"))
}

func TestScore_Empty(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, 0, s.Score("", "owen"))
	assert.Equal(t, 0, s.Score("owen", ""))
}

func TestScore_NicknameMatch(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, 100, s.Score("bob smith", "robert smith"))
	assert.Equal(t, 100, s.Score("mike torres", "michael torres"))
}

func TestScore_NicknameRequiresSameSurname(t *testing.T) {
	s := newTestScorer()
	assert.Less(t, s.Score("bob smith", "robert jones"), 100)
}

func TestScore_TranscriptionSplit(t *testing.T) {
	// "Owen glass burner" heard for "Owen Glassburn" must clear the default
	// auto-match threshold of 95.
	s := newTestScorer()
	score := s.Score(Name("Owen glass burner"), Name("Owen Glassburn"))
	assert.GreaterOrEqual(t, score, 95)
	assert.Less(t, score, 100)
}

func TestScore_UnrelatedNamesStayLow(t *testing.T) {
	s := newTestScorer()
	assert.Less(t, s.Score("owen glassburn", "maria delgado"), 80)
}

func TestScore_MinorTypoInReviewBand(t *testing.T) {
	s := newTestScorer()
	score := s.Score("jon carpenter", "juan carpintero")
	assert.Less(t, score, 95)
}

func TestScore_NeverExceedsExact(t *testing.T) {
	s := newTestScorer()
	assert.LessOrEqual(t, s.Score("owen glasburn", "owen glassburn"), 99)
}

func TestScore_Symmetric(t *testing.T) {
	s := newTestScorer()
	assert.Equal(t, s.Score("owen glassburn", "owen glasburn"), s.Score("owen glasburn", "owen glassburn"))
}

func TestLoadNicknameTable_DefaultWhenEmptyPath(t *testing.T) {
	tbl, err := LoadNicknameTable("")
	assert.NoError(t, err)
	assert.True(t, tbl.Equivalent("bob", "robert"))
}

func TestLoadNicknameTable_MergesFile(t *testing.T) {
	path := t.TempDir() + "/nicknames.yaml"
	writeFile(t, path, "paco: francisco\n")

	tbl, err := LoadNicknameTable(path)
	assert.NoError(t, err)
	assert.True(t, tbl.Equivalent("paco", "francisco"))
	// Defaults survive the merge.
	assert.True(t, tbl.Equivalent("bob", "robert"))
}

func TestLoadNicknameTable_MissingFile(t *testing.T) {
	_, err := LoadNicknameTable("/nonexistent/nicknames.yaml")
	assert.Error(t, err)
}
