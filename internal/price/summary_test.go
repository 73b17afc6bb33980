package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptofolio/internal/models"
)

func TestSummarize(t *testing.T) {
	series := []models.PricePoint{
		{Timestamp: 1711929600000, Price: 100},
		{Timestamp: 1711933200000, Price: 90},
		{Timestamp: 1711936800000, Price: 120},
		{Timestamp: 1711940400000, Price: 110},
	}

	sum, ok := Summarize(series, 2)
	require.True(t, ok)

	assert.Equal(t, 4, sum.Points)
	assert.Equal(t, 100.0, sum.First)
	assert.Equal(t, 110.0, sum.Last)
	assert.Equal(t, 90.0, sum.Min)
	assert.Equal(t, 120.0, sum.Max)
	assert.InDelta(t, 10.0, sum.ChangePct, 1e-9)
	assert.InDelta(t, 115.0, sum.SMA, 1e-9)
	assert.Equal(t, 2, sum.SMAPeriod)
	assert.Equal(t, series[0].Time(), sum.From)
}

func TestSummarize_PeriodLongerThanSeries(t *testing.T) {
	sum, ok := Summarize([]models.PricePoint{{Timestamp: 1, Price: 2}, {Timestamp: 2, Price: 4}}, DefaultSMAPeriod)
	require.True(t, ok)
	assert.Equal(t, 2, sum.SMAPeriod)
	assert.InDelta(t, 3.0, sum.SMA, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	_, ok := Summarize(nil, DefaultSMAPeriod)
	assert.False(t, ok)
}
