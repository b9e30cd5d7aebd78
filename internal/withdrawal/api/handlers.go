// Package api exposes withdrawal HTTP endpoints.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"affiliateplatform/internal/common/api"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/middleware"
	"affiliateplatform/internal/common/money"
	ledgerdomain "affiliateplatform/internal/ledger/domain"
	"affiliateplatform/internal/withdrawal"
	"affiliateplatform/internal/withdrawal/domain"
)

// Handler handles withdrawal HTTP requests
type Handler struct {
	service  *withdrawal.Service
	currency money.Currency
}

// NewHandler creates a new withdrawal handler. currency is the platform
// settlement currency for requested amounts.
func NewHandler(service *withdrawal.Service, currency money.Currency) *Handler {
	return &Handler{service: service, currency: currency}
}

// Routes returns the withdrawal routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/", h.RequestWithdrawal)
		r.Get("/me", h.ListMyWithdrawals)
		r.Post("/{id}/cancel", h.CancelWithdrawal)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/queue", h.ListQueue)
		r.Get("/{id}", h.GetWithdrawal)
		r.Post("/{id}/claim", h.ClaimWithdrawal)
		r.Post("/{id}/approve", h.ApproveWithdrawal)
		r.Post("/{id}/reject", h.RejectWithdrawal)
	})

	return r
}

// RequestWithdrawalRequest is the API request for a new withdrawal
type RequestWithdrawalRequest struct {
	AmountMinor int64 `json:"amount_minor" validate:"required,gt=0"`
}

// RequestWithdrawal handles POST /withdrawals
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RequestWithdrawalRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	wd, err := h.service.Request(r.Context(), userID, money.New(req.AmountMinor, h.currency))
	if err != nil {
		var windowErr *withdrawal.WindowClosedError
		switch {
		case errors.As(err, &windowErr):
			api.Conflict(w, api.ErrCodeWindowClosed, windowErr.Error())
		case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
			api.Conflict(w, api.ErrCodeInsufficientBalance, "available balance is insufficient")
		case errors.Is(err, ledgerdomain.ErrInvalidAmount):
			api.BadRequest(w, "amount must be positive")
		default:
			api.InternalError(w, "failed to request withdrawal")
		}
		return
	}

	api.WriteData(w, http.StatusCreated, wd)
}

// ListMyWithdrawals handles GET /withdrawals/me
func (h *Handler) ListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, offset := api.PaginationParams(r, 50, 100)

	withdrawals, total, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		api.InternalError(w, "failed to list withdrawals")
		return
	}

	api.WritePaginated(w, withdrawals, &api.Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+len(withdrawals)) < total,
	})
}

// CancelWithdrawal handles POST /withdrawals/{id}/cancel
func (h *Handler) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "withdrawal ID required")
		return
	}
	userID := middleware.GetUserID(r.Context())

	wd, err := h.service.Cancel(r.Context(), id, userID)
	if err != nil {
		h.writeDecisionError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, wd)
}

// ListQueue handles GET /withdrawals/queue
func (h *Handler) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := domain.StatusPending
	if v := r.URL.Query().Get("status"); v != "" {
		parsed, err := domain.ParseStatus(v)
		if err != nil {
			api.BadRequest(w, err.Error())
			return
		}
		status = parsed
	}
	limit, offset := api.PaginationParams(r, 50, 100)

	withdrawals, total, err := h.service.ListByStatus(r.Context(), status, limit, offset)
	if err != nil {
		api.InternalError(w, "failed to list withdrawals")
		return
	}

	api.WritePaginated(w, withdrawals, &api.Pagination{
		Limit:   limit,
		Offset:  offset,
		Total:   total,
		HasMore: int64(offset+len(withdrawals)) < total,
	})
}

// GetWithdrawal handles GET /withdrawals/{id}
func (h *Handler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "withdrawal ID required")
		return
	}

	wd, err := h.service.Get(r.Context(), id)
	if err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "withdrawal not found")
			return
		}
		api.InternalError(w, "failed to get withdrawal")
		return
	}

	api.WriteData(w, http.StatusOK, wd)
}

// ClaimWithdrawal handles POST /withdrawals/{id}/claim
func (h *Handler) ClaimWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "withdrawal ID required")
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	wd, err := h.service.Claim(r.Context(), id, adminID)
	if err != nil {
		h.writeDecisionError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, wd)
}

// ApproveWithdrawal handles POST /withdrawals/{id}/approve
func (h *Handler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "withdrawal ID required")
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	wd, err := h.service.Approve(r.Context(), id, adminID)
	if err != nil {
		h.writeDecisionError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, wd)
}

// RejectWithdrawalRequest is the API request for a rejection
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RejectWithdrawal handles POST /withdrawals/{id}/reject
func (h *Handler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.BadRequest(w, "withdrawal ID required")
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	var req RejectWithdrawalRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	wd, err := h.service.Reject(r.Context(), id, adminID, req.Reason)
	if err != nil {
		h.writeDecisionError(w, err)
		return
	}

	api.WriteData(w, http.StatusOK, wd)
}

func (h *Handler) writeDecisionError(w http.ResponseWriter, err error) {
	switch {
	case database.IsNotFound(err):
		api.NotFound(w, "withdrawal not found")
	case errors.Is(err, domain.ErrAlreadyProcessed):
		api.Conflict(w, api.ErrCodeAlreadyProcessed, err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		api.Forbidden(w, "withdrawal belongs to another user")
	case errors.Is(err, domain.ErrReasonRequired):
		api.BadRequest(w, err.Error())
	default:
		api.InternalError(w, "failed to process withdrawal")
	}
}
