package portfolio

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"cryptofolio/internal/models"
)

const (
	AllMonths = -1
	AllYears  = 0

	CSVFilename = "transaction_history.csv"
	csvDate     = "2006-01-02 15:04:05"
)

var csvHeader = []string{"Date", "Action", "Coin", "Amount", "Buy Price"}

// Filter selects transactions by month (0-11) and year.
type Filter struct {
	Month int // AllMonths for every month
	Year  int // AllYears for every year
}

// ParseFilter reads month and year query values; "" and "all" match
// everything.
func ParseFilter(month, year string) (Filter, error) {
	f := Filter{Month: AllMonths, Year: AllYears}

	if m := strings.TrimSpace(month); m != "" && m != "all" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 || n > 11 {
			return f, invalid(msgInvalidMonth)
		}
		f.Month = n
	}
	if y := strings.TrimSpace(year); y != "" && y != "all" {
		n, err := strconv.Atoi(y)
		if err != nil || n <= 0 {
			return f, invalid(msgInvalidYear)
		}
		f.Year = n
	}
	return f, nil
}

func (f Filter) Match(t time.Time, loc *time.Location) bool {
	t = t.In(loc)
	if f.Month != AllMonths && int(t.Month())-1 != f.Month {
		return false
	}
	if f.Year != AllYears && t.Year() != f.Year {
		return false
	}
	return true
}

// FilterTransactions keeps the order of txs.
func FilterTransactions(txs []models.Transaction, f Filter, loc *time.Location) []models.Transaction {
	out := []models.Transaction{}
	for _, tx := range txs {
		if f.Match(tx.Timestamp, loc) {
			out = append(out, tx)
		}
	}
	return out
}

// Years lists the distinct years of txs in ascending order.
func Years(txs []models.Transaction, loc *time.Location) []int {
	seen := make(map[int]bool)
	years := []int{}
	for _, tx := range txs {
		y := tx.Timestamp.In(loc).Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// WriteCSV writes txs under the Date,Action,Coin,Amount,Buy Price header.
func WriteCSV(w io.Writer, txs []models.Transaction, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		record := []string{
			tx.Timestamp.In(loc).Format(csvDate),
			string(tx.Action),
			tx.Coin,
			tx.Amount.String(),
			tx.BuyPrice.String(),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
