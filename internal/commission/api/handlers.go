// Package api exposes commission HTTP endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"affiliateplatform/internal/commission"
	"affiliateplatform/internal/commission/domain"
	"affiliateplatform/internal/common/api"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/middleware"
	"affiliateplatform/internal/common/money"
	"affiliateplatform/internal/rateconfig"
)

// Handler handles commission HTTP requests
type Handler struct {
	service  *commission.Service
	currency money.Currency
}

// NewHandler creates a new commission handler. currency is the platform
// settlement currency for order totals.
func NewHandler(service *commission.Service, currency money.Currency) *Handler {
	return &Handler{service: service, currency: currency}
}

// Routes returns the commission routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/me", h.ListMyCommissions)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/{id}", h.GetCommission)
		r.Put("/{id}/status", h.UpdateStatus)
		r.Post("/referrals", h.RegisterReferral)
		r.Post("/orders/completed", h.OrderCompleted)
	})

	return r
}

// ListMyCommissions handles GET /commissions/me
func (h *Handler) ListMyCommissions(w http.ResponseWriter, r *http.Request) {
	affiliateID := middleware.GetUserID(r.Context())
	limit, offset := api.PaginationParams(r, 50, 100)

	commissions, total, err := h.service.ListByAffiliate(r.Context(), affiliateID, limit, offset)
	if err != nil {
		api.InternalError(w, "failed to list commissions")
		return
	}

	api.WritePaginated(w, commissions, &api.Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+len(commissions)) < total,
	})
}

// GetCommission handles GET /commissions/{id}
func (h *Handler) GetCommission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "commission ID required")
		return
	}

	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "commission not found")
			return
		}
		api.InternalError(w, "failed to get commission")
		return
	}

	api.WriteData(w, http.StatusOK, c)
}

// UpdateStatusRequest is the API request for a status transition
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved paid cancelled"`
}

// UpdateStatus handles PUT /commissions/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "commission ID required")
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	var req UpdateStatusRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	target, err := domain.ParseStatus(req.Status)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	c, err := h.service.UpdateStatus(r.Context(), id, target, adminID)
	if err != nil {
		switch {
		case database.IsNotFound(err):
			api.NotFound(w, "commission not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			api.Conflict(w, api.ErrCodeConflict, err.Error())
		default:
			api.InternalError(w, "failed to update commission status")
		}
		return
	}

	api.WriteData(w, http.StatusOK, c)
}

// RegisterReferralRequest is the API request for linking a referred user
type RegisterReferralRequest struct {
	AffiliateID    string `json:"affiliate_id" validate:"required"`
	AffiliateRole  string `json:"affiliate_role" validate:"required"`
	ReferredUserID string `json:"referred_user_id" validate:"required"`
}

// RegisterReferral handles POST /commissions/referrals
func (h *Handler) RegisterReferral(w http.ResponseWriter, r *http.Request) {
	var req RegisterReferralRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	role, err := rateconfig.ParseRole(req.AffiliateRole)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	referral, err := h.service.RegisterReferral(r.Context(), req.AffiliateID, req.ReferredUserID, role)
	if err != nil {
		if errors.Is(err, database.ErrAlreadyExists) || database.IsUniqueViolation(err) {
			api.Conflict(w, api.ErrCodeConflict, "user already has a referring affiliate")
			return
		}
		api.BadRequest(w, err.Error())
		return
	}

	api.WriteData(w, http.StatusCreated, referral)
}

// OrderCompletedRequest is the API request for the order completion hook.
// The same payload also arrives over the event bus; this endpoint exists for
// synchronous integrations and backfills.
type OrderCompletedRequest struct {
	OrderID    string `json:"order_id" validate:"required"`
	BuyerID    string `json:"buyer_id" validate:"required"`
	TotalMinor int64  `json:"total_minor" validate:"required,gt=0"`
}

// OrderCompleted handles POST /commissions/orders/completed
func (h *Handler) OrderCompleted(w http.ResponseWriter, r *http.Request) {
	var req OrderCompletedRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	c, err := h.service.CreditCommission(r.Context(), commission.OrderCompleted{
		OrderID: req.OrderID,
		BuyerID: req.BuyerID,
		Total:   money.New(req.TotalMinor, h.currency),
	})
	if err != nil {
		api.InternalError(w, "failed to process order")
		return
	}
	if c == nil {
		// No eligible referrer; nothing was credited.
		api.WriteData(w, http.StatusOK, map[string]string{"status": "no_commission"})
		return
	}

	api.WriteData(w, http.StatusCreated, c)
}
