package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elevated-systems/caco-planner/pkg/caco/domain"
)

func newTestRecorder(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "grid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndQueryCarbonHistory(t *testing.T) {
	r := newTestRecorder(t)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	carbon := []domain.CarbonPoint{
		{Timestamp: base, ForecastGPerKWh: 90, Index: "low"},
		{Timestamp: base.Add(30 * time.Minute), ForecastGPerKWh: 140, Index: "moderate"},
		{Timestamp: base.Add(60 * time.Minute), ForecastGPerKWh: 200, Index: "high"},
	}
	price := []domain.PricePoint{
		{Timestamp: base, SystemBuyPriceGBPMWh: 110, SystemSellPriceGBPMWh: 80},
	}

	require.NoError(t, r.RecordSeries("GB", carbon, price))

	got, err := r.GetCarbonHistory("GB", base, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2, "window filter should exclude the third point")
	assert.Equal(t, 90.0, got[0].ForecastGPerKWh)
	assert.Equal(t, "moderate", got[1].Index)
}

func TestCarbonHistoryFiltersRegion(t *testing.T) {
	r := newTestRecorder(t)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.RecordSeries("GB", []domain.CarbonPoint{{Timestamp: ts, ForecastGPerKWh: 90}}, nil))
	require.NoError(t, r.RecordSeries("IE", []domain.CarbonPoint{{Timestamp: ts, ForecastGPerKWh: 50}}, nil))

	got, err := r.GetCarbonHistory("IE", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 50.0, got[0].ForecastGPerKWh)
}

func TestRecordEmptySeries(t *testing.T) {
	r := newTestRecorder(t)
	assert.NoError(t, r.RecordSeries("GB", nil, nil))
}
