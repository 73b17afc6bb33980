package bot

import (
	"fmt"
	"strings"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/price"
)

const maxHistoryLines = 30

func rankEmoji(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return "▫️"
	}
}

func changeIndicator(change float64) string {
	switch {
	case change > 0:
		return "🟢"
	case change < 0:
		return "🔴"
	default:
		return "➖"
	}
}

func formatChart(name string, days int, cur string, s price.SeriesSummary) string {
	return fmt.Sprintf(`📈 %s, last %d days

Last: %s (%s%.2f%%)
First: %s
Low: %s | High: %s
SMA(%d): %s

%d points, %s to %s UTC`,
		name, days,
		models.FormatPrice(s.Last, cur), changeIndicator(s.ChangePct), s.ChangePct,
		models.FormatPrice(s.First, cur),
		models.FormatPrice(s.Min, cur), models.FormatPrice(s.Max, cur),
		s.SMAPeriod, models.FormatPrice(s.SMA, cur),
		s.Points, s.From.Format("2006-01-02 15:04"), s.To.Format("2006-01-02 15:04"))
}

func formatSummary(name string, sum portfolio.Summary) string {
	var sb strings.Builder
	cur := sum.Currency
	pl, _ := sum.TotalProfitLoss.Float64()

	fmt.Fprintf(&sb, "💼 Portfolio of %s\n\n", name)
	fmt.Fprintf(&sb, "Balance: %s\n", models.FormatMoney(sum.TotalBalance, cur))
	fmt.Fprintf(&sb, "Profit/Loss: %s %s\n\n", changeIndicator(pl), models.FormatMoney(sum.TotalProfitLoss, cur))

	sb.WriteString("Allocation:\n")
	for i, slice := range sum.Allocation {
		fmt.Fprintf(&sb, "%s %s: %.2f%%\n", rankEmoji(i+1), slice.Label, slice.Percent)
	}
	fmt.Fprintf(&sb, "\n📊 Updated: %s", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	return sb.String()
}

func formatHoldings(valued []portfolio.HoldingValuation, cur string) string {
	if len(valued) == 0 {
		return "You have no holdings yet."
	}

	lines := make([]string, 0, len(valued))
	for _, h := range valued {
		current := "N/A"
		if h.PriceKnown {
			current = models.FormatMoney(h.CurrentPrice, cur)
		}
		pl, _ := h.ProfitLoss.Float64()
		lines = append(lines, fmt.Sprintf("%s %s | %s @ %s | now %s | value %s | P/L %s",
			changeIndicator(pl),
			h.Name,
			h.Amount.String(),
			models.FormatMoney(h.BuyPrice, cur),
			current,
			models.FormatMoney(h.Value, cur),
			models.FormatMoney(h.ProfitLoss, cur)))
	}
	return strings.Join(lines, "\n")
}

func formatTransactions(txs []models.Transaction, coins *models.Catalog) string {
	if len(txs) == 0 {
		return "No transactions found."
	}

	var lines []string
	start := 0
	if len(txs) > maxHistoryLines {
		start = len(txs) - maxHistoryLines
		lines = append(lines, fmt.Sprintf("Showing the latest %d of %d transactions.", maxHistoryLines, len(txs)))
	}
	for _, tx := range txs[start:] {
		lines = append(lines, fmt.Sprintf("%s %s %s %s @ %s",
			tx.Timestamp.UTC().Format("2006-01-02 15:04"),
			tx.Action,
			tx.Amount.String(),
			coins.DisplayName(tx.Coin),
			tx.BuyPrice.String()))
	}
	return strings.Join(lines, "\n")
}

// formatChange describes a holdings event; transaction events are silent.
func formatChange(ev models.ChangeEvent, holdings []models.Holding, coins *models.Catalog) string {
	if ev.Collection != models.CollectionHoldings || ev.Holding == nil {
		return ""
	}
	name := coins.DisplayName(ev.Holding.Coin)
	switch ev.Type {
	case models.ChangeAdded:
		return fmt.Sprintf("➕ Added %s %s. You now hold %d coins.", ev.Holding.Amount.String(), name, len(holdings))
	case models.ChangeRemoved:
		return fmt.Sprintf("➖ Removed %s. You now hold %d coins.", name, len(holdings))
	}
	return ""
}
