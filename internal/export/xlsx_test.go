package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/blueline-build/fieldreport-cli/internal/model"
	"github.com/blueline-build/fieldreport-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestExporter_ExportRollup(t *testing.T) {
	st := newTestStore(t)
	w := store.Window{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	rollup := &model.ProjectRollup{
		ProjectID:   "proj-1",
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Labor:       model.LaborRollup{RegularHours: 160, OvertimeHours: 12, LaborCost: 8010, PersonCount: 5},
		Vendors: []model.VendorRollup{
			{VendorID: "v-1", VendorName: "Ozinga", Deliveries: 4, OnTimeRate: 0.75, IncidentCost: 500, Grade: "B"},
		},
		Constraints: []model.ConstraintRollup{
			{Category: model.CategoryWeather, Count: 2, CostImpact: 2000},
		},
		ReportCount: 20,
		ComputedAt:  time.Now().UTC(),
	}
	require.NoError(t, st.SaveRollup(context.Background(), rollup))

	var buf bytes.Buffer
	require.NoError(t, New(st).ExportRollup(context.Background(), "proj-1", w, &buf))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 3)
	assert.Equal(t, "Labor", f.Sheets[0].Name)
	assert.Equal(t, "Vendors", f.Sheets[1].Name)
	assert.Equal(t, "Constraints", f.Sheets[2].Name)

	vendors := f.Sheets[1]
	require.GreaterOrEqual(t, len(vendors.Rows), 2)
	assert.Equal(t, "Ozinga", vendors.Rows[1].Cells[0].String())
	assert.Equal(t, "B", vendors.Rows[1].Cells[4].String())

	constraints := f.Sheets[2]
	require.GreaterOrEqual(t, len(constraints.Rows), 2)
	assert.Equal(t, "weather", constraints.Rows[1].Cells[0].String())
}

func TestExporter_ExportRollup_MissingRollup(t *testing.T) {
	st := newTestStore(t)
	w := store.Window{
		Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	err := New(st).ExportRollup(context.Background(), "proj-1", w, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rollup")
}
