// Package api exposes commission rate and withdrawal window configuration
// endpoints.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"affiliateplatform/internal/common/api"
	"affiliateplatform/internal/common/database"
	"affiliateplatform/internal/common/middleware"
	"affiliateplatform/internal/rateconfig"
)

// Handler handles rate configuration HTTP requests
type Handler struct {
	service *rateconfig.Service
}

// NewHandler creates a new rate configuration handler
func NewHandler(service *rateconfig.Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the configuration routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	// The window status is public so clients can tell users when
	// withdrawals open.
	r.Get("/window", h.GetWindow)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Get("/", h.GetConfig)
		r.Put("/", h.SetConfig)
		r.Put("/users/{userID}/rate", h.SetUserRate)
		r.Delete("/users/{userID}/rate", h.ClearUserRate)
	})

	return r
}

// WindowStatus reports whether withdrawals are currently accepted.
type WindowStatus struct {
	Open      bool      `json:"open"`
	StartDay  int       `json:"start_day"`
	EndDay    int       `json:"end_day"`
	NextStart time.Time `json:"next_start"`
	NextEnd   time.Time `json:"next_end"`
}

// GetWindow handles GET /config/window
func (h *Handler) GetWindow(w http.ResponseWriter, r *http.Request) {
	window, err := h.service.CurrentWindow(r.Context())
	if err != nil {
		api.InternalError(w, "failed to load window")
		return
	}

	now := time.Now().UTC()
	start, end := rateconfig.NextWindow(now, window)
	api.WriteData(w, http.StatusOK, WindowStatus{
		Open:      rateconfig.IsOpen(now, window),
		StartDay:  window.StartDay,
		EndDay:    window.EndDay,
		NextStart: start,
		NextEnd:   end,
	})
}

// GetConfig handles GET /config
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.Get(r.Context())
	if err != nil {
		api.InternalError(w, "failed to load configuration")
		return
	}

	api.WriteData(w, http.StatusOK, cfg)
}

// SetConfigRequest is the API request for replacing the configuration
type SetConfigRequest struct {
	DefaultRateBps int64    `json:"default_rate_bps" validate:"gte=0,lte=10000"`
	ExcludedRoles  []string `json:"excluded_roles"`
	WindowStartDay int      `json:"window_start_day" validate:"required,gte=1,lte=31"`
	WindowEndDay   int      `json:"window_end_day" validate:"required,gte=1,lte=31"`
}

// SetConfig handles PUT /config
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAdminID(r.Context())

	var req SetConfigRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	cfg, err := h.service.Set(r.Context(), rateconfig.SetConfigRequest{
		DefaultRateBps: req.DefaultRateBps,
		ExcludedRoles:  req.ExcludedRoles,
		Window: rateconfig.Window{
			StartDay: req.WindowStartDay,
			EndDay:   req.WindowEndDay,
		},
		UpdatedBy: adminID,
	})
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	api.WriteData(w, http.StatusOK, cfg)
}

// SetUserRateRequest is the API request for a per-user rate override
type SetUserRateRequest struct {
	RateBps int64 `json:"rate_bps" validate:"gte=0,lte=10000"`
}

// SetUserRate handles PUT /config/users/{userID}/rate
func (h *Handler) SetUserRate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.BadRequest(w, "user ID required")
		return
	}
	adminID := middleware.GetAdminID(r.Context())

	var req SetUserRateRequest
	if err := api.DecodeAndValidate(r, &req); err != nil {
		api.ValidationError(w, err)
		return
	}

	rate, err := h.service.SetUserRate(r.Context(), userID, req.RateBps, adminID)
	if err != nil {
		if errors.Is(err, rateconfig.ErrInvalidRate) {
			api.BadRequest(w, err.Error())
			return
		}
		api.InternalError(w, "failed to set user rate")
		return
	}

	api.WriteData(w, http.StatusOK, rate)
}

// ClearUserRate handles DELETE /config/users/{userID}/rate
func (h *Handler) ClearUserRate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		api.BadRequest(w, "user ID required")
		return
	}

	if err := h.service.ClearUserRate(r.Context(), userID); err != nil {
		if database.IsNotFound(err) {
			api.NotFound(w, "user rate not found")
			return
		}
		api.InternalError(w, "failed to clear user rate")
		return
	}

	api.WriteData(w, http.StatusOK, map[string]string{"status": "cleared"})
}
