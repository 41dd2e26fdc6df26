package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueline-build/fieldreport-cli/internal/resolve"
)

func TestParseMonthWindow(t *testing.T) {
	w, err := parseMonthWindow("2026-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), w.End)

	_, err = parseMonthWindow("march 2026")
	require.Error(t, err)

	_, err = parseMonthWindow("")
	require.Error(t, err)
}

func TestParseDecision(t *testing.T) {
	for _, ok := range []string{"confirm", "reject", "mergeInto"} {
		d, err := parseDecision(ok)
		require.NoError(t, err)
		assert.Equal(t, resolve.Decision(ok), d)
	}

	_, err := parseDecision("merge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown --decision")
}
