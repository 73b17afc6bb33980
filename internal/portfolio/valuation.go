package portfolio

import (
	"github.com/shopspring/decimal"

	"cryptofolio/internal/models"
)

const NoHoldingsLabel = "No Holdings"

// HoldingValuation is a holding priced at the current live price.
type HoldingValuation struct {
	models.Holding
	Name         string          `json:"name"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	PriceKnown   bool            `json:"price_known"`
	Value        decimal.Decimal `json:"value"`
	ProfitLoss   decimal.Decimal `json:"profit_loss"`
}

// Slice is one wedge of the allocation breakdown.
type Slice struct {
	Label   string          `json:"label"`
	Value   decimal.Decimal `json:"value"`
	Percent float64         `json:"percent"`
}

type Summary struct {
	Currency        string             `json:"currency"`
	Holdings        []HoldingValuation `json:"holdings"`
	TotalBalance    decimal.Decimal    `json:"total_balance"`
	TotalProfitLoss decimal.Decimal    `json:"total_profit_loss"`
	Allocation      []Slice            `json:"allocation"`
}

// Value prices one holding. An unknown price (0) values it at 0.
func Value(h models.Holding, price float64, name string) HoldingValuation {
	p := decimal.NewFromFloat(price)
	return HoldingValuation{
		Holding:      h,
		Name:         name,
		CurrentPrice: p,
		PriceKnown:   price != 0,
		Value:        p.Mul(h.Amount),
		ProfitLoss:   p.Sub(h.BuyPrice).Mul(h.Amount),
	}
}

// Summarize totals valued holdings and splits the balance by holding. With
// nothing to split, the allocation is a single "No Holdings" slice.
func Summarize(currency string, valued []HoldingValuation) Summary {
	sum := Summary{
		Currency:        currency,
		Holdings:        valued,
		TotalBalance:    decimal.Zero,
		TotalProfitLoss: decimal.Zero,
	}
	if sum.Holdings == nil {
		sum.Holdings = []HoldingValuation{}
	}

	for _, v := range valued {
		sum.TotalBalance = sum.TotalBalance.Add(v.Value)
		sum.TotalProfitLoss = sum.TotalProfitLoss.Add(v.ProfitLoss)
	}

	if !sum.TotalBalance.IsPositive() {
		sum.Allocation = []Slice{{Label: NoHoldingsLabel, Value: decimal.Zero, Percent: 100}}
		return sum
	}

	hundred := decimal.NewFromInt(100)
	for _, v := range valued {
		pct, _ := v.Value.Div(sum.TotalBalance).Mul(hundred).Round(2).Float64()
		sum.Allocation = append(sum.Allocation, Slice{Label: v.Name, Value: v.Value, Percent: pct})
	}
	return sum
}
