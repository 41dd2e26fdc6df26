package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRateTable_MergesFileOverConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Foreman: 62.5\noperator: 55\n"), 0o644))

	cfg, err := LoadRateTable(RatesConfig{
		RateFile:      path,
		Hourly:        map[string]float64{"foreman": 60, "laborer": 38},
		DefaultHourly: 45,
	})
	require.NoError(t, err)

	assert.Equal(t, 62.5, cfg.Hourly["foreman"], "file entry wins, key lowercased")
	assert.Equal(t, 55.0, cfg.Hourly["operator"])
	assert.Equal(t, 38.0, cfg.Hourly["laborer"], "config entry untouched")
}

func TestLoadRateTable_NoFileConfigured(t *testing.T) {
	cfg, err := LoadRateTable(RatesConfig{Hourly: map[string]float64{"foreman": 60}})
	require.NoError(t, err)
	assert.Equal(t, 60.0, cfg.Hourly["foreman"])
}

func TestLoadRateTable_MissingFile(t *testing.T) {
	_, err := LoadRateTable(RatesConfig{RateFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}

func TestLoadRateTable_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("foreman: [not a number"), 0o644))

	_, err := LoadRateTable(RatesConfig{RateFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse rate file")
}
