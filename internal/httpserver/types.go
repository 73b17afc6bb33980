package httpserver

import (
	"bytes"
	"encoding/json"
	"time"

	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type SessionResponse struct {
	Success   bool        `json:"success"`
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type MeResponse struct {
	Success     bool        `json:"success"`
	User        models.User `json:"user"`
	WelcomeName string      `json:"welcome_name"`
}

type HoldingRequest struct {
	Coin     string     `json:"coin"`
	Amount   FormNumber `json:"amount"`
	BuyPrice FormNumber `json:"buy_price"`
}

// FormNumber holds a number sent either bare or as a string, so that form
// values reach validation as typed.
type FormNumber string

func (n *FormNumber) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = FormNumber(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	*n = FormNumber(data)
	return nil
}

type HoldingResponse struct {
	Success bool           `json:"success"`
	Holding models.Holding `json:"holding"`
}

type HoldingsResponse struct {
	Success  bool                         `json:"success"`
	Currency string                       `json:"currency"`
	Holdings []portfolio.HoldingValuation `json:"holdings"`
}

type PortfolioResponse struct {
	Success bool `json:"success"`
	portfolio.Summary
}

type TransactionsResponse struct {
	Success      bool                 `json:"success"`
	Transactions []models.Transaction `json:"transactions"`
}

type YearsResponse struct {
	Success bool  `json:"success"`
	Years   []int `json:"years"`
}

type ClearResponse struct {
	Success bool `json:"success"`
	Removed int  `json:"removed"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type PriceResponse struct {
	Success  bool    `json:"success"`
	Coin     string  `json:"coin"`
	Currency string  `json:"currency"`
	Price    float64 `json:"price"`
	Known    bool    `json:"known"`
}

type HistoryResponse struct {
	Success  bool                `json:"success"`
	Coin     string              `json:"coin"`
	Currency string              `json:"currency"`
	Days     int                 `json:"days"`
	Prices   []models.PricePoint `json:"prices"`
}
