// Package api exposes the stored catalog over a read-only HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/enotrack/enotrack/internal/storage"
)

// Store is the read surface the API serves from.
type Store interface {
	Products(ctx context.Context) ([]storage.Product, error)
	Product(ctx context.Context, code string) (*storage.Product, error)
	History(ctx context.Context, code string) ([]storage.PriceObservation, error)
}

// Server serves the product catalog, per-product history, and health.
type Server struct {
	mux    *http.ServeMux
	port   int
	store  Store
	logger *slog.Logger
}

// NewServer creates the read API server.
func NewServer(port int, store Store, logger *slog.Logger) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		port:   port,
		store:  store,
		logger: logger.With("component", "api_server"),
	}
	s.registerRoutes()
	return s
}

// Start starts the API server in the background.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, s.mux); err != nil {
			s.logger.Error("API server error", "error", err)
		}
	}()
}

// Handler returns the server's routing handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/products", s.handleListProducts)
	s.mux.HandleFunc("GET /api/products/{code}", s.handleGetProduct)
	s.mux.HandleFunc("GET /api/products/{code}/history", s.handleGetHistory)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.Products(r.Context())
	if err != nil {
		s.logger.Error("product list failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}

	for i := range products {
		history, err := s.store.History(r.Context(), products[i].Code)
		if err != nil {
			s.logger.Warn("history load failed", "code", products[i].Code, "error", err)
			continue
		}
		decorate(&products[i], history)
	}
	s.jsonResponse(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	product, err := s.store.Product(r.Context(), code)
	if err != nil {
		s.logger.Error("product load failed", "code", code, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if product == nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	history, err := s.store.History(r.Context(), code)
	if err != nil {
		s.logger.Warn("history load failed", "code", code, "error", err)
	} else {
		decorate(product, history)
	}
	s.jsonResponse(w, http.StatusOK, product)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	product, err := s.store.Product(r.Context(), code)
	if err != nil {
		s.logger.Error("product load failed", "code", code, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if product == nil {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	history, err := s.store.History(r.Context(), code)
	if err != nil {
		s.logger.Error("history load failed", "code", code, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}
	if history == nil {
		history = []storage.PriceObservation{}
	}
	s.jsonResponse(w, http.StatusOK, history)
}

// decorate fills the product's derived fields from its history: whether
// the current price matches the all-time low, whether it sits below the
// historical average, and the discount against the historical maximum.
func decorate(p *storage.Product, history []storage.PriceObservation) {
	if p.CurrentPrice == nil {
		return
	}
	current := *p.CurrentPrice

	var prices []float64
	for _, obs := range history {
		if obs.Price > 0 {
			prices = append(prices, obs.Price)
		}
	}
	if len(prices) == 0 {
		return
	}

	lo, hi, sum := prices[0], prices[0], 0.0
	for _, v := range prices {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}

	p.IsLowestAllTime = current <= lo
	p.IsPriceOK = current < sum/float64(len(prices))
	if hi > current {
		p.DiscountPercentage = math.Round((hi - current) / hi * 100)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
