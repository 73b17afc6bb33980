package price

import (
	"time"

	"github.com/cinar/indicator"

	"cryptofolio/internal/models"
)

// DefaultSMAPeriod is the moving-average window used for chart summaries.
const DefaultSMAPeriod = 20

// SeriesSummary condenses a historical series for text surfaces.
type SeriesSummary struct {
	Points    int       `json:"points"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	First     float64   `json:"first"`
	Last      float64   `json:"last"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	ChangePct float64   `json:"change_pct"`
	SMA       float64   `json:"sma"`
	SMAPeriod int       `json:"sma_period"`
}

// Summarize returns first/last/min/max, the change over the series and the
// simple moving average of the trailing period points. It returns false for
// an empty series.
func Summarize(series []models.PricePoint, period int) (SeriesSummary, bool) {
	if len(series) == 0 {
		return SeriesSummary{}, false
	}
	if period <= 0 || period > len(series) {
		period = len(series)
	}

	closes := make([]float64, len(series))
	sum := SeriesSummary{
		Points:    len(series),
		From:      series[0].Time(),
		To:        series[len(series)-1].Time(),
		First:     series[0].Price,
		Last:      series[len(series)-1].Price,
		Min:       series[0].Price,
		Max:       series[0].Price,
		SMAPeriod: period,
	}
	for i, p := range series {
		closes[i] = p.Price
		if p.Price < sum.Min {
			sum.Min = p.Price
		}
		if p.Price > sum.Max {
			sum.Max = p.Price
		}
	}
	if sum.First != 0 {
		sum.ChangePct = (sum.Last - sum.First) / sum.First * 100
	}

	sma := indicator.Sma(period, closes)
	sum.SMA = sma[len(sma)-1]

	return sum, true
}
