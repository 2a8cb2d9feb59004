// Package api binds the Book/Registry operations of package matching to an
// HTTP transport, marshaling JSON in and out and mapping
// sentinel errors to status codes. It never touches ladder internals
// directly, only the public Registry/Book surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/openalpha/disorderbook/internal/matching"
	"github.com/openalpha/disorderbook/internal/metrics"
	"github.com/openalpha/disorderbook/internal/models"
)

// Server is the HTTP transport for a Registry of Books.
type Server struct {
	registry  *matching.Registry
	metrics   *metrics.Metrics
	log       zerolog.Logger
	startedAt time.Time
}

// NewServer creates a Server backed by registry.
func NewServer(registry *matching.Registry, m *metrics.Metrics, log zerolog.Logger) *Server {
	return &Server{
		registry:  registry,
		metrics:   m,
		log:       log,
		startedAt: time.Now(),
	}
}

// Handler builds the route mux (net/http's Go 1.22+ method+path patterns,
// grounded on APIServer.Run).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	base := "/v1/venues/{venue}/symbols/{symbol}"
	mux.HandleFunc("POST "+base+"/orders", s.instrument("submit", s.handleSubmit))
	mux.HandleFunc("DELETE "+base+"/orders/{id}", s.instrument("cancel", s.handleCancel))
	mux.HandleFunc("GET "+base+"/orders/{id}", s.instrument("status", s.handleStatus))
	mux.HandleFunc("GET "+base+"/orders/{id}/account", s.instrument("account_from_order_id", s.handleAccountFromOrderID))
	mux.HandleFunc("GET "+base+"/book", s.instrument("book", s.handleBook))
	mux.HandleFunc("GET "+base+"/quote", s.instrument("quote", s.handleQuote))
	mux.HandleFunc("GET "+base+"/accounts/{account}/orders", s.instrument("get_all_orders", s.handleAllOrders))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

// instrument wraps a route handler with a per-request child logger and a
// latency observation, following zerolog's With().Logger() idiom.
func (s *Server) instrument(route string, h func(http.ResponseWriter, *http.Request, zerolog.Logger)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLog := s.log.With().
			Str("route", route).
			Str("venue", r.PathValue("venue")).
			Str("symbol", r.PathValue("symbol")).
			Logger()
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if rec := recover(); rec != nil {
				reqLog.Error().Interface("panic", rec).Msg("handler panic")
				writeJSON(sw, http.StatusInternalServerError, errBody{"internal error"})
			}
			if s.metrics != nil {
				s.metrics.RequestLatency.WithLabelValues(route, strconv.Itoa(sw.status/100*100)).
					Observe(time.Since(started).Seconds())
			}
		}()

		h(sw, r, reqLog)
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type errBody struct {
	Error string `json:"error"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	venue, symbol := r.PathValue("venue"), r.PathValue("symbol")

	var req models.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid request body"})
		return
	}
	req.Venue = venue
	if req.ResolvedSymbol() == "" {
		req.Symbol = symbol
	}

	book := s.registry.BookFor(venue, symbol)
	order, err := book.Submit(req)
	if err != nil {
		log.Debug().Err(err).Msg("submit rejected")
		writeJSON(w, http.StatusBadRequest, errBody{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	book, ok := s.lookupBook(w, r)
	if !ok {
		return
	}
	order, err := book.Cancel(id)
	if !s.writeErr(w, log, err) {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	book, ok := s.lookupBook(w, r)
	if !ok {
		return
	}
	order, err := book.GetStatus(id)
	if !s.writeErr(w, log, err) {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAccountFromOrderID(w http.ResponseWriter, r *http.Request, log zerolog.Logger) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	book, ok := s.lookupBook(w, r)
	if !ok {
		return
	}
	account, err := book.AccountFromOrderID(id)
	if !s.writeErr(w, log, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": account})
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request, _ zerolog.Logger) {
	venue, symbol := r.PathValue("venue"), r.PathValue("symbol")
	book := s.registry.BookFor(venue, symbol)
	writeJSON(w, http.StatusOK, book.GetBook())
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request, _ zerolog.Logger) {
	venue, symbol := r.PathValue("venue"), r.PathValue("symbol")
	book := s.registry.BookFor(venue, symbol)
	writeJSON(w, http.StatusOK, book.GetQuote())
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request, _ zerolog.Logger) {
	venue, symbol := r.PathValue("venue"), r.PathValue("symbol")
	account := r.PathValue("account")
	book := s.registry.BookFor(venue, symbol)
	writeJSON(w, http.StatusOK, book.GetAllOrders(account))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{"invalid order id"})
		return 0, false
	}
	return id, true
}

func (s *Server) lookupBook(w http.ResponseWriter, r *http.Request) (*matching.Book, bool) {
	venue, symbol := r.PathValue("venue"), r.PathValue("symbol")
	book, ok := s.registry.Lookup(venue, symbol)
	if !ok {
		writeJSON(w, http.StatusNotFound, errBody{"unknown venue/symbol"})
		return nil, false
	}
	return book, true
}

// writeErr maps a matching-package sentinel error to a status code and
// writes the response if err is non-nil, returning whether the caller
// should continue with its own 200 response.
func (s *Server) writeErr(w http.ResponseWriter, log zerolog.Logger, err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, matching.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errBody{err.Error()})
	case errors.Is(err, models.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errBody{err.Error()})
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, errBody{"internal error"})
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
