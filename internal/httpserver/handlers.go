package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cryptofolio/internal/auth"
	"cryptofolio/internal/portfolio"
	"cryptofolio/internal/price"
)

const defaultHistoryDays = 7

// writeServiceError maps domain errors onto status codes. Anything
// unrecognised is logged and hidden behind a 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *portfolio.ValidationError
	var inputErr *auth.InputError
	switch {
	case errors.As(err, &validationErr):
		s.writeErrorResponse(w, validationErr.Message, http.StatusBadRequest)
	case errors.As(err, &inputErr):
		s.writeErrorResponse(w, inputErr.Message, http.StatusBadRequest)
	case errors.Is(err, portfolio.ErrDuplicateCoin), errors.Is(err, auth.ErrEmailInUse):
		s.writeErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, auth.ErrWrongPassword):
		s.writeErrorResponse(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, auth.ErrUserNotFound):
		s.writeErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, portfolio.ErrNotFound):
		s.writeErrorResponse(w, "Holding not found", http.StatusNotFound)
	default:
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupInput
	if err := s.parseRequest(r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, err := s.auth.Signup(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeStatusResponse(w, http.StatusCreated, sessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginInput
	if err := s.parseRequest(r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	session, err := s.auth.Login(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, sessionResponse(session))
}

func sessionResponse(session *auth.Session) *SessionResponse {
	return &SessionResponse{
		Success:   true,
		User:      session.User,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	s.writeResponse(w, &MeResponse{Success: true, User: user, WelcomeName: user.WelcomeName()})
}

func (s *Server) handleListHoldings(w http.ResponseWriter, r *http.Request) {
	valued, err := s.portfolio.ValuedHoldings(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &HoldingsResponse{
		Success:  true,
		Currency: s.portfolio.Currency(),
		Holdings: valued,
	})
}

func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req HoldingRequest
	if err := s.parseRequest(r, &req); err != nil {
		s.writeErrorResponse(w, "Invalid request", http.StatusBadRequest)
		return
	}

	holding, err := s.portfolio.AddHolding(r.Context(), userFrom(r.Context()).ID, portfolio.HoldingInput{
		Coin:     req.Coin,
		Amount:   string(req.Amount),
		BuyPrice: string(req.BuyPrice),
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeStatusResponse(w, http.StatusCreated, &HoldingResponse{Success: true, Holding: holding})
}

func (s *Server) handleDeleteHolding(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.portfolio.DeleteHolding(r.Context(), userFrom(r.Context()).ID, id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &SuccessResponse{Success: true})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.portfolio.Summary(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &PortfolioResponse{Success: true, Summary: summary})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFrom(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	txs, err := s.portfolio.Transactions(r.Context(), userFrom(r.Context()).ID, filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &TransactionsResponse{Success: true, Transactions: txs})
}

func (s *Server) handleTransactionYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.portfolio.TransactionYears(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &YearsResponse{Success: true, Years: years})
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	n, err := s.portfolio.ClearHistory(r.Context(), userFrom(r.Context()).ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &ClearResponse{Success: true, Removed: n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFrom(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.portfolio.ExportCSV(r.Context(), userFrom(r.Context()).ID, filter, &buf); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", portfolio.CSVFilename))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("Failed to write CSV export", zap.Error(err))
	}
}

func filterFrom(r *http.Request) (portfolio.Filter, error) {
	q := r.URL.Query()
	return portfolio.ParseFilter(q.Get("month"), q.Get("year"))
}

func (s *Server) handleLivePrice(w http.ResponseWriter, r *http.Request) {
	coin := s.portfolio.Coins().Resolve(mux.Vars(r)["coin"])
	p := s.prices.LivePrice(r.Context(), coin)
	s.writeResponse(w, &PriceResponse{
		Success:  true,
		Coin:     coin,
		Currency: s.prices.Currency(),
		Price:    p,
		Known:    p != 0,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	coin := s.portfolio.Coins().Resolve(mux.Vars(r)["coin"])
	q := r.URL.Query()

	days := defaultHistoryDays
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeErrorResponse(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		days = n
	}
	currency := strings.ToLower(q.Get("currency"))
	if currency == "" {
		currency = s.prices.Currency()
	}

	series, err := s.prices.HistoricalSeries(r.Context(), coin, days, currency)
	if err != nil {
		if errors.Is(err, price.ErrSeriesUnavailable) {
			s.writeErrorResponse(w, price.ErrSeriesUnavailable.Error(), http.StatusBadGateway)
			return
		}
		if errors.Is(err, price.ErrInvalidDays) {
			s.writeErrorResponse(w, "days must be a positive integer", http.StatusBadRequest)
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.writeResponse(w, &HistoryResponse{
		Success:  true,
		Coin:     coin,
		Currency: currency,
		Days:     days,
		Prices:   series,
	})
}
