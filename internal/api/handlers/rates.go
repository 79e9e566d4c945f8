// Package handlers contains the HTTP handler implementations for the
// home-climate advisory API.
//
// Each handler owns a small service contract, decodes and validates its
// input, and writes results inside the core.APIResponse envelope. Routes are
// mounted under /v1 by the core server.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"homeclimate/internal/core"
	"homeclimate/internal/rates"
	"homeclimate/internal/types"
)

// RatesHandler serves the electricity price lookups.
type RatesHandler struct {
	resolver    rates.Resolver
	location    *time.Location
	defaultPlan types.PlanType
	logger      *slog.Logger
	now         func() time.Time
}

// NewRatesHandler creates a RatesHandler. Times without an explicit "at"
// parameter are evaluated at the current instant in loc.
func NewRatesHandler(resolver rates.Resolver, loc *time.Location, defaultPlan types.PlanType, logger *slog.Logger) *RatesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if !defaultPlan.IsValid() {
		defaultPlan = types.PlanTOU
	}
	return &RatesHandler{
		resolver:    resolver,
		location:    loc,
		defaultPlan: defaultPlan,
		logger:      logger,
		now:         time.Now,
	}
}

// RegisterRoutes mounts the rate endpoints.
func (h *RatesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/current", h.HandleCurrent)
	r.Get("/schedule", h.HandleSchedule)
}

// HandleCurrent handles GET /v1/rates/current.
func (h *RatesHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	plan, at, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.resolver.Current(plan, at)})
}

// HandleSchedule handles GET /v1/rates/schedule.
func (h *RatesHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	plan, at, err := h.parseQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.resolver.FullSchedule(plan, at)})
}

// parseQuery reads the optional plan and at parameters. An explicit plan
// must be one of the known plans; at must be RFC3339.
func (h *RatesHandler) parseQuery(r *http.Request) (types.PlanType, time.Time, error) {
	q := r.URL.Query()

	plan := h.defaultPlan
	if raw := strings.TrimSpace(q.Get("plan")); raw != "" {
		plan = types.PlanType(strings.ToUpper(raw))
		if !plan.IsValid() {
			return "", time.Time{}, types.NewAppErrorWithDetails(
				types.ErrCodeValidationInvalidPlan,
				"plan must be one of TOU, ULO, TIERED",
				nil,
				map[string]any{"plan": raw},
			)
		}
	}

	at := h.now()
	if raw := q.Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", time.Time{}, types.NewAppError(
				types.ErrCodeValidationInvalidTime,
				"at must be a valid RFC3339 timestamp",
				err,
			)
		}
		at = parsed
	}
	return plan, at.In(h.location), nil
}
