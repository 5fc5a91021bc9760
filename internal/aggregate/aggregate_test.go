package aggregate

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siterisk/internal/gridstore"
)

type mockReader struct {
	stores     []gridstore.StoreRecord
	traffic    []gridstore.TrafficRecord
	storeErr   error
	trafficErr error
	calls      atomic.Int32
}

func (m *mockReader) StoreRecords(_ context.Context, _ []string) ([]gridstore.StoreRecord, error) {
	m.calls.Add(1)
	return m.stores, m.storeErr
}

func (m *mockReader) TrafficRecords(_ context.Context, _ []string) ([]gridstore.TrafficRecord, error) {
	m.calls.Add(1)
	return m.traffic, m.trafficErr
}

func ip(v int) *int { return &v }
func fp(v float64) *float64 { return &v }

func TestAggregate_EmptyCells(t *testing.T) {
	_, err := New(&mockReader{}).Aggregate(context.Background(), nil)
	require.Error(t, err)
}

func TestAggregate_MergesStores(t *testing.T) {
	r := &mockReader{
		stores: []gridstore.StoreRecord{
			{CellID: "a", Counts: map[string]int{"cafe": 2, "laundry": 3}, ClosureCount: ip(1), OpeningCount: ip(2), PrevPeriodCount: ip(4)},
			{CellID: "b", Counts: map[string]int{"cafe": 1, "bad": -5}},
			{CellID: "a", Counts: map[string]int{"cafe": 100}},
			{CellID: "not-requested", Counts: map[string]int{"cafe": 100}},
		},
	}
	agg, err := New(r).Aggregate(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), r.calls.Load())
	assert.Equal(t, 4, agg.CellsRequested)
	assert.Equal(t, 2, agg.StoreCells)
	assert.Equal(t, 3, agg.Counts["cafe"])
	assert.Equal(t, 6, agg.TotalStores)
	assert.True(t, agg.HasChurn)
	assert.Equal(t, 1, agg.ChurnCells)
	assert.Equal(t, 1, agg.Closures)
	assert.Equal(t, 2, agg.Openings)
	assert.Equal(t, 4, agg.ChurnBase)
	assert.InDelta(t, 0.5, agg.StoreCoverage, 1e-9)
}

func TestAggregate_ChurnBaseMatchesChurnCells(t *testing.T) {
	tests := []struct {
		name      string
		stores    []gridstore.StoreRecord
		closures  int
		openings  int
		churnBase int
	}{
		{
			name: "previous count from a cell without churn is ignored",
			stores: []gridstore.StoreRecord{
				{CellID: "a", Counts: map[string]int{"cafe": 10}, ClosureCount: ip(5)},
				{CellID: "b", Counts: map[string]int{"cafe": 100}, PrevPeriodCount: ip(100)},
			},
			closures:  5,
			churnBase: 10,
		},
		{
			name: "previous count preferred over current total",
			stores: []gridstore.StoreRecord{
				{CellID: "a", Counts: map[string]int{"cafe": 10}, ClosureCount: ip(2), PrevPeriodCount: ip(12)},
				{CellID: "b", Counts: map[string]int{"cafe": 6}, OpeningCount: ip(3)},
				{CellID: "c", Counts: map[string]int{"cafe": 50}},
			},
			closures:  2,
			openings:  3,
			churnBase: 18,
		},
		{
			name: "zero previous count falls back to current total",
			stores: []gridstore.StoreRecord{
				{CellID: "a", Counts: map[string]int{"cafe": 8}, ClosureCount: ip(1), PrevPeriodCount: ip(0)},
			},
			closures:  1,
			churnBase: 8,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := New(&mockReader{stores: tt.stores}).Aggregate(context.Background(), []string{"a", "b", "c"})
			require.NoError(t, err)
			assert.True(t, agg.HasChurn)
			assert.Equal(t, tt.closures, agg.Closures)
			assert.Equal(t, tt.openings, agg.Openings)
			assert.Equal(t, tt.churnBase, agg.ChurnBase)
		})
	}
}

func TestAggregate_RealSharesAveragingToPlaceholder(t *testing.T) {
	r := &mockReader{traffic: []gridstore.TrafficRecord{
		{CellID: "a", Morning: 30, Day: 36, Night: 34},
		{CellID: "b", Morning: 36, Day: 32, Night: 32},
	}}
	agg, err := New(r).Aggregate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, 2, agg.RealTrafficCells)
	assert.True(t, agg.HasRealPattern)
	assert.InDelta(t, 33, agg.Morning, 1e-9)
	assert.InDelta(t, 34, agg.Day, 1e-9)
	assert.InDelta(t, 33, agg.Night, 1e-9)
	assert.False(t, agg.PatternIsPlaceholder())
}

func TestAggregate_ZeroChurnIsNoChurn(t *testing.T) {
	r := &mockReader{stores: []gridstore.StoreRecord{
		{CellID: "a", Counts: map[string]int{"cafe": 1}, ClosureCount: ip(0), OpeningCount: ip(0)},
	}}
	agg, err := New(r).Aggregate(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.False(t, agg.HasChurn)
}

func TestAggregate_TrafficMeanSkipsPlaceholders(t *testing.T) {
	r := &mockReader{traffic: []gridstore.TrafficRecord{
		{CellID: "a", Index: fp(60), Morning: 20, Day: 50, Night: 30, WeekendRatio: fp(0.8)},
		{CellID: "b", Index: fp(80), Morning: 30, Day: 40, Night: 30, WeekendRatio: fp(1.2)},
		{CellID: "c", Morning: 33, Day: 34, Night: 33, WeekendRatio: fp(9)},
	}}
	agg, err := New(r).Aggregate(context.Background(), []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	assert.Equal(t, 3, agg.TrafficCells)
	assert.Equal(t, 2, agg.RealTrafficCells)
	assert.True(t, agg.HasTrafficIndex)
	assert.InDelta(t, 70, agg.TrafficIndex, 1e-9)
	assert.InDelta(t, 25, agg.Morning, 1e-9)
	assert.InDelta(t, 45, agg.Day, 1e-9)
	assert.InDelta(t, 30, agg.Night, 1e-9)
	assert.InDelta(t, 100, agg.Morning+agg.Day+agg.Night, 1e-9)
	assert.InDelta(t, 1.0, agg.WeekendRatio, 1e-9)
	assert.InDelta(t, 0.5, agg.TrafficCoverage, 1e-9)
	assert.False(t, agg.PatternIsPlaceholder())
}

func TestAggregate_OnlyPlaceholderPattern(t *testing.T) {
	r := &mockReader{traffic: []gridstore.TrafficRecord{
		{CellID: "a", Index: fp(40), Morning: 33, Day: 34, Night: 33},
	}}
	agg, err := New(r).Aggregate(context.Background(), []string{"a"})
	require.NoError(t, err)

	assert.True(t, agg.PatternIsPlaceholder())
	assert.True(t, agg.HasTrafficIndex)
	assert.False(t, agg.HasWeekendRatio)
}

func TestAggregate_AllCellsMissing(t *testing.T) {
	agg, err := New(&mockReader{}).Aggregate(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Zero(t, agg.StoreCoverage)
	assert.Zero(t, agg.TrafficCoverage)
	assert.Zero(t, agg.TotalStores)
	assert.False(t, agg.HasTrafficIndex)
	assert.True(t, agg.PatternIsPlaceholder())
	assert.False(t, agg.StoreUnavailable)
}

func TestAggregate_ReaderErrorsBecomeFlags(t *testing.T) {
	r := &mockReader{
		storeErr:   assert.AnError,
		trafficErr: assert.AnError,
	}
	agg, err := New(r).Aggregate(context.Background(), []string{"a"})
	require.NoError(t, err)

	assert.True(t, agg.StoreUnavailable)
	assert.True(t, agg.TrafficUnavailable)
	assert.Zero(t, agg.StoreCoverage)
	assert.True(t, agg.PatternIsPlaceholder())
}

func TestAggregate_NilReader(t *testing.T) {
	agg, err := New(nil).Aggregate(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.True(t, agg.StoreUnavailable)
	assert.True(t, agg.TrafficUnavailable)
}

func TestAggregate_DuplicateRequestedCells(t *testing.T) {
	r := &mockReader{stores: []gridstore.StoreRecord{{CellID: "a", Counts: map[string]int{"cafe": 1}}}}
	agg, err := New(r).Aggregate(context.Background(), []string{"a", "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, agg.CellsRequested)
	assert.InDelta(t, 1.0, agg.StoreCoverage, 1e-9)
}
