package gridstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteReader(t *testing.T) *SQLiteReader {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "grid.db")
	r, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() }) //nolint:errcheck
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func TestSQLiteReader_StoreRecords(t *testing.T) {
	r := newTestSQLiteReader(t)
	ctx := context.Background()

	r.DB().MustExecContext(ctx,
		`INSERT INTO store_cells (cell_id, counts, closure_count, opening_count, prev_period_count) VALUES (?, ?, ?, ?, ?)`,
		"a", `{"cafe":2,"laundry":5}`, 1, 3, 10)
	r.DB().MustExecContext(ctx,
		`INSERT INTO store_cells (cell_id, counts) VALUES (?, ?)`, "b", `{"cafe":1}`)
	r.DB().MustExecContext(ctx,
		`INSERT INTO store_cells (cell_id, counts) VALUES (?, ?)`, "z", `{"cafe":9}`)

	recs, err := r.StoreRecords(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "a", recs[0].CellID)
	assert.Equal(t, 7, recs[0].Total())
	require.NotNil(t, recs[0].ClosureCount)
	assert.Equal(t, 1, *recs[0].ClosureCount)
	assert.Equal(t, 3, *recs[0].OpeningCount)
	assert.Equal(t, 10, *recs[0].PrevPeriodCount)

	assert.Equal(t, "b", recs[1].CellID)
	assert.False(t, recs[1].HasChurn())
}

func TestSQLiteReader_TrafficRecords(t *testing.T) {
	r := newTestSQLiteReader(t)
	ctx := context.Background()

	r.DB().MustExecContext(ctx,
		`INSERT INTO traffic_cells (cell_id, traffic_index, morning_pct, day_pct, night_pct, weekend_ratio) VALUES (?, ?, ?, ?, ?, ?)`,
		"a", 64.0, 30.0, 45.0, 25.0, 1.2)
	r.DB().MustExecContext(ctx, `INSERT INTO traffic_cells (cell_id) VALUES (?)`, "b")

	recs, err := r.TrafficRecords(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.NotNil(t, recs[0].Index)
	assert.InDelta(t, 64.0, *recs[0].Index, 1e-9)
	assert.InDelta(t, 1.2, *recs[0].WeekendRatio, 1e-9)

	assert.Nil(t, recs[1].Index)
	assert.True(t, recs[1].IsPlaceholder())
}

func TestSQLiteReader_EmptyCells(t *testing.T) {
	r := newTestSQLiteReader(t)
	recs, err := r.StoreRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestSQLiteReader_Unmigrated(t *testing.T) {
	r, err := NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	_, err = r.TrafficRecords(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: select traffic cells")
}
