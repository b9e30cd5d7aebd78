// Package api exposes balance HTTP endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"affiliateplatform/internal/common/api"
	"affiliateplatform/internal/common/middleware"
	"affiliateplatform/internal/ledger"
)

// Handler handles balance HTTP requests
type Handler struct {
	service *ledger.Service
}

// NewHandler creates a new balance handler
func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the balance routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/me", h.GetMyBalance)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/{userID}", h.GetBalance)
	})

	return r
}

// GetMyBalance handles GET /balances/me
func (h *Handler) GetMyBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		api.InternalError(w, "failed to get balance")
		return
	}

	api.WriteData(w, http.StatusOK, balance)
}

// GetBalance handles GET /balances/{userID}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.BadRequest(w, "user ID required")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		api.InternalError(w, "failed to get balance")
		return
	}

	api.WriteData(w, http.StatusOK, balance)
}
