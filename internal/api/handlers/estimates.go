package handlers

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"homeclimate/internal/advisor"
	"homeclimate/internal/core"
	"homeclimate/internal/cost"
	"homeclimate/internal/humidity"
	"homeclimate/internal/mold"
	"homeclimate/internal/types"
)

// MaxMoldReadings bounds a single mold-risk request (48h at 1-minute
// sampling).
const MaxMoldReadings = 2880

// EstimatesHandler exposes the stateless calculators: humidity, cost, mold
// risk and the recommendation engine itself.
type EstimatesHandler struct {
	humidity     humidity.Estimator
	mold         mold.Engine
	engine       *advisor.Engine
	moldInterval int
	location     *time.Location
	validator    *core.Validator
	logger       *slog.Logger
	now          func() time.Time
}

// EstimatesConfig carries the calculators used by EstimatesHandler.
type EstimatesConfig struct {
	Humidity            humidity.Estimator
	Mold                mold.Engine
	Engine              *advisor.Engine
	MoldIntervalMinutes int
	Location            *time.Location
}

// NewEstimatesHandler creates an EstimatesHandler.
func NewEstimatesHandler(cfg EstimatesConfig, val *core.Validator, logger *slog.Logger) *EstimatesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Engine == nil {
		cfg.Engine = advisor.NewEngine(advisor.DefaultThresholds())
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MoldIntervalMinutes <= 0 {
		cfg.MoldIntervalMinutes = 1
	}
	return &EstimatesHandler{
		humidity:     cfg.Humidity,
		mold:         cfg.Mold,
		engine:       cfg.Engine,
		moldInterval: cfg.MoldIntervalMinutes,
		location:     cfg.Location,
		validator:    val,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterRoutes mounts the calculator endpoints. They live at different
// prefixes, so this is registered directly on the /v1 router.
func (h *EstimatesHandler) RegisterRoutes(r chi.Router) {
	r.Post("/estimates/humidity", h.HandleHumidity)
	r.Post("/estimates/cost", h.HandleCost)
	r.Post("/mold-risk", h.HandleMoldRisk)
	r.Post("/recommendations", h.HandleRecommend)
}

type humidityRequest struct {
	IndoorTempC  *float64 `json:"indoor_temp_c" validate:"required,gte=-50,lte=60"`
	OutdoorTempC *float64 `json:"outdoor_temp_c" validate:"required,gte=-60,lte=60"`
	OutdoorRH    *float64 `json:"outdoor_rh" validate:"required,gte=0,lte=100"`
}

type humidityResponse struct {
	humidity.Estimate
	DewPointC *float64 `json:"dew_point_c"`
}

// HandleHumidity handles POST /v1/estimates/humidity.
func (h *EstimatesHandler) HandleHumidity(w http.ResponseWriter, r *http.Request) {
	var req humidityRequest
	if !h.decode(w, r, &req) {
		return
	}

	est := h.humidity.Estimate(req.IndoorTempC, req.OutdoorTempC, req.OutdoorRH)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: humidityResponse{
		Estimate:  est,
		DewPointC: humidity.DewPointC(req.IndoorTempC, est.HumidityRH),
	}})
}

type costRequest struct {
	TinC             float64 `json:"tin_c" validate:"gte=-50,lte=60"`
	TargetC          float64 `json:"target_c" validate:"gte=-10,lte=40"`
	PriceCentsPerKWh float64 `json:"price_cents_per_kwh" validate:"gte=0,lte=500"`
	HousingType      string  `json:"housing_type" validate:"housing_type"`
	ACCOP            float64 `json:"ac_cop,omitempty" validate:"omitempty,gte=0,lte=10"`
}

// HandleCost handles POST /v1/estimates/cost.
func (h *EstimatesHandler) HandleCost(w http.ResponseWriter, r *http.Request) {
	var req costRequest
	if !h.decode(w, r, &req) {
		return
	}

	est := cost.EstimateCost(cost.Input{
		TinC:             req.TinC,
		TargetC:          req.TargetC,
		PriceCentsPerKWh: req.PriceCentsPerKWh,
		HousingType:      types.ParseHousingType(req.HousingType),
		ACCOP:            req.ACCOP,
	})
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: est})
}

type moldRequest struct {
	Readings        []types.Reading `json:"readings" validate:"required"`
	IntervalMinutes int             `json:"interval_minutes,omitempty" validate:"omitempty,gte=1,lte=1440"`
}

// HandleMoldRisk handles POST /v1/mold-risk. Readings are sorted by
// timestamp before scoring; an empty list is accepted and scores UNKNOWN.
func (h *EstimatesHandler) HandleMoldRisk(w http.ResponseWriter, r *http.Request) {
	var req moldRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Readings) > MaxMoldReadings {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationBatchSize,
			"too many readings in one request",
			nil,
			map[string]any{"max": MaxMoldReadings, "got": len(req.Readings)},
		))
		return
	}

	interval := req.IntervalMinutes
	if interval == 0 {
		interval = h.moldInterval
	}
	readings := slices.Clone(req.Readings)
	slices.SortStableFunc(readings, func(a, b types.Reading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: h.mold.Compute(readings, interval)})
}

// HandleRecommend handles POST /v1/recommendations. It evaluates the
// supplied inputs as-is and touches no storage. The comfort band is
// required; every other input may be omitted.
func (h *EstimatesHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req advisor.Request
	if !h.decode(w, r, &req) {
		return
	}
	if err := checkComfortBand(req.Comfort); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Now.IsZero() {
		req.Now = h.now()
	}
	req.Now = req.Now.In(h.location)
	req.MoldRisk = types.ParseRiskLevel(string(req.MoldRisk))

	rec := h.engine.Recommend(req)
	types.LoggerFromContext(r.Context(), h.logger).Debug("recommendation evaluated",
		"state", rec.State,
		"rule", rec.Rule,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// decode reads and validates the body, writing the error response itself.
func (h *EstimatesHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}
