package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cryptofolio/internal/auth"
	"cryptofolio/internal/config"
	"cryptofolio/internal/feed"
	"cryptofolio/internal/models"
	"cryptofolio/internal/portfolio"
)

const maxBodyBytes = 1 << 20

// Prices is the part of the price service the API exposes.
type Prices interface {
	LivePrice(ctx context.Context, coin string) float64
	HistoricalSeries(ctx context.Context, coin string, days int, currency string) ([]models.PricePoint, error)
	Currency() string
}

// Server represents the portfolio HTTP API
type Server struct {
	cfg       config.HTTPConfig
	prices    Prices
	auth      *auth.Service
	portfolio *portfolio.Service
	broker    *feed.Broker
	upgrader  websocket.Upgrader
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.HTTPConfig, prices Prices, authService *auth.Service, folio *portfolio.Service, broker *feed.Broker, logger *zap.Logger) *Server {
	return &Server{
		cfg:       cfg,
		prices:    prices,
		auth:      authService,
		portfolio: folio,
		broker:    broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Start listens on the configured address until Stop is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", s.cfg.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler builds the router with every route and middleware attached.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/prices/{coin}", s.handleLivePrice).Methods(http.MethodGet)
	api.HandleFunc("/prices/{coin}/history", s.handleHistory).Methods(http.MethodGet)

	// Authenticated
	private := api.NewRoute().Subrouter()
	private.Use(s.requireAuth)
	private.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	private.HandleFunc("/holdings", s.handleListHoldings).Methods(http.MethodGet)
	private.HandleFunc("/holdings", s.handleAddHolding).Methods(http.MethodPost)
	private.HandleFunc("/holdings/{id}", s.handleDeleteHolding).Methods(http.MethodDelete)
	private.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	private.HandleFunc("/transactions", s.handleTransactions).Methods(http.MethodGet)
	private.HandleFunc("/transactions", s.handleClearTransactions).Methods(http.MethodDelete)
	private.HandleFunc("/transactions/years", s.handleTransactionYears).Methods(http.MethodGet)
	private.HandleFunc("/transactions/export", s.handleExport).Methods(http.MethodGet)
	private.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)

	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// parseRequest parses JSON request body
func (s *Server) parseRequest(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// writeResponse writes JSON response
func (s *Server) writeResponse(w http.ResponseWriter, v interface{}) {
	s.writeStatusResponse(w, http.StatusOK, v)
}

func (s *Server) writeStatusResponse(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeErrorResponse writes error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := ErrorResponse{Success: false, Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to write error response", zap.Error(err))
	}
}
