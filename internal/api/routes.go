package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Portfolio routes
	api.HandleFunc("/portfolios", handler.CreatePortfolio).Methods("POST")
	api.HandleFunc("/portfolios", handler.GetAllPortfolios).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolios/{id}", handler.DeletePortfolio).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/holdings", handler.BuyHolding).Methods("POST")
	api.HandleFunc("/portfolios/{id}/holdings/{symbol}", handler.SellHolding).Methods("DELETE")
	api.HandleFunc("/portfolios/{id}/valuation", handler.GetValuation).Methods("GET")
	api.HandleFunc("/portfolios/{id}/history", handler.GetHistory).Methods("GET")

	// Alert routes
	api.HandleFunc("/alerts", handler.CreateAlert).Methods("POST")
	api.HandleFunc("/alerts", handler.GetAllAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", handler.DeleteAlert).Methods("DELETE")
	api.HandleFunc("/alerts/{id}/acknowledge", handler.AcknowledgeAlert).Methods("POST")
	api.HandleFunc("/alerts/{id}/reset", handler.ResetAlert).Methods("POST")

	return r
}
