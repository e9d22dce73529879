package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/cache"
	"github.com/rfinnegan/investment-tracker/internal/database"
	"github.com/rfinnegan/investment-tracker/internal/models"
	"github.com/rfinnegan/investment-tracker/internal/valuation"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db    *database.DB
	cache *cache.PriceCache
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, priceCache *cache.PriceCache) *Handler {
	return &Handler{
		db:    db,
		cache: priceCache,
	}
}

// CreatePortfolio handles POST /portfolios
func (h *Handler) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	portfolio := &models.Portfolio{Name: req.Name, Description: req.Description}
	if err := h.db.CreatePortfolio(r.Context(), portfolio); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, portfolio)
}

// GetAllPortfolios handles GET /portfolios
func (h *Handler) GetAllPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.db.GetAllPortfolios(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, portfolios)
}

// GetPortfolio handles GET /portfolios/{id}
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	portfolio, err := h.db.GetPortfolio(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, portfolio)
}

// DeletePortfolio handles DELETE /portfolios/{id}
func (h *Handler) DeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.db.DeletePortfolio(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BuyHolding handles POST /portfolios/{id}/holdings
func (h *Handler) BuyHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Symbol   string `json:"symbol"`
		Quantity string `json:"quantity"`
		Price    string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		http.Error(w, "invalid price", http.StatusBadRequest)
		return
	}

	holding, err := h.db.BuyHolding(r.Context(), id, req.Symbol, quantity, price)
	if err != nil {
		status := http.StatusInternalServerError
		if err == models.ErrInvalidQuantity {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	respondJSON(w, http.StatusOK, holding)
}

// SellHolding handles DELETE /portfolios/{id}/holdings/{symbol}?quantity=
func (h *Handler) SellHolding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	symbol := mux.Vars(r)["symbol"]

	quantity, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil {
		http.Error(w, "invalid quantity", http.StatusBadRequest)
		return
	}

	if err := h.db.SellHolding(r.Context(), id, symbol, quantity); err != nil {
		status := http.StatusInternalServerError
		switch err {
		case models.ErrInvalidQuantity, models.ErrInsufficientQuantity:
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetValuation handles GET /portfolios/{id}/valuation — a live valuation
// from the freshest cache entries.
func (h *Handler) GetValuation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	holdings, err := h.db.GetHoldings(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	symbols := make([]string, 0, len(holdings))
	for _, holding := range holdings {
		symbols = append(symbols, holding.Symbol)
	}
	prices, err := h.cache.GetMany(r.Context(), symbols)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, valuation.Valuate(holdings, prices))
}

// GetHistory handles GET /portfolios/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	snapshots, err := h.db.GetSnapshots(r.Context(), id, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, snapshots)
}

// CreateAlert handles POST /alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PortfolioID int    `json:"portfolio_id"`
		Symbol      string `json:"symbol"`
		Direction   string `json:"direction"`
		TargetPrice string `json:"target_price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	target, err := decimal.NewFromString(req.TargetPrice)
	if err != nil {
		http.Error(w, "invalid target price", http.StatusBadRequest)
		return
	}

	alert := &models.Alert{
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Direction:   models.AlertDirection(req.Direction),
		TargetPrice: target,
	}
	if err := alert.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.db.CreateAlert(r.Context(), alert); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, alert)
}

// GetAllAlerts handles GET /alerts
func (h *Handler) GetAllAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.db.GetAllAlerts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

// AcknowledgeAlert handles POST /alerts/{id}/acknowledge
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, models.StateAcknowledged)
}

// ResetAlert handles POST /alerts/{id}/reset. The alert re-arms against its
// last evaluated price, which the engine keeps current.
func (h *Handler) ResetAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, models.StateArmed)
}

func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request, state models.AlertState) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.db.SetAlertState(r.Context(), id, state); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	alert, err := h.db.GetAlert(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, alert)
}

// DeleteAlert handles DELETE /alerts/{id}
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.db.DeleteAlert(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	// Check database
	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	// Check Redis
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
