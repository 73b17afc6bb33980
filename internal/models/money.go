package models

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatMoney renders amount in the currency's own notation, e.g. ₹1,234.50.
func FormatMoney(amount decimal.Decimal, currency string) string {
	// money.New never yields a nil currency, unlike money.GetCurrency
	cur := money.New(0, strings.ToUpper(currency)).Currency()
	minor := amount.Round(int32(cur.Fraction)).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// FormatPrice is FormatMoney for float prices, with "N/A" for the unknown
// sentinel.
func FormatPrice(price float64, currency string) string {
	if price == 0 {
		return "N/A"
	}
	return FormatMoney(decimal.NewFromFloat(price), currency)
}
