package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"homeclimate/internal/core"
	"homeclimate/internal/ingest"
	"homeclimate/internal/service"
	"homeclimate/internal/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200

	defaultReadingsHours = 24
	maxReadingsHours     = 24 * 7

	maxReadingBodySize = 4 << 10
)

// AdvisorServiceInterface is the orchestrator contract used by DeviceHandler.
// service.Advisor satisfies it.
type AdvisorServiceInterface interface {
	Device(ctx context.Context, deviceID string) (*types.DeviceProfile, error)
	Advise(ctx context.Context, deviceID string) (*service.AdviceReport, error)
	History(ctx context.Context, deviceID string, limit int) ([]types.AdviceLog, error)
	RecentReadings(ctx context.Context, deviceID string, window time.Duration) ([]types.Reading, error)
}

// DeviceWriter persists device profiles.
type DeviceWriter interface {
	Upsert(ctx context.Context, d *types.DeviceProfile) error
}

// DeviceHandler serves the per-device endpoints.
type DeviceHandler struct {
	advisor   AdvisorServiceInterface
	devices   DeviceWriter
	readings  ingest.ReadingSink
	validator *core.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewDeviceHandler creates a DeviceHandler. readings may be nil, in which
// case the readings POST endpoint is not mounted.
func NewDeviceHandler(
	advisor AdvisorServiceInterface,
	devices DeviceWriter,
	readings ingest.ReadingSink,
	val *core.Validator,
	logger *slog.Logger,
) *DeviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandler{
		advisor:   advisor,
		devices:   devices,
		readings:  readings,
		validator: val,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRoutes mounts the device endpoints under /v1/devices.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{deviceID}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Put("/", h.HandlePut)
		r.Get("/advice", h.HandleAdvice)
		r.Get("/advice/history", h.HandleHistory)
		r.Get("/readings", h.HandleListReadings)
		if h.readings != nil {
			r.Post("/readings", h.HandlePostReading)
		}
	})
}

func deviceIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "deviceID")
	if !types.ValidDeviceID(id) {
		return "", types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidDevice,
			"device id must be 1-64 characters of letters, digits, '.', '_' or '-'",
			nil,
			map[string]any{"device_id": id},
		)
	}
	return id, nil
}

// HandleGet handles GET /v1/devices/{deviceID}.
func (h *DeviceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	d, err := h.advisor.Device(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: d})
}

type deviceRequest struct {
	Name        string            `json:"name" validate:"max=100"`
	Comfort     types.ComfortBand `json:"comfort"`
	PlanType    string            `json:"plan_type" validate:"plan_type"`
	HousingType string            `json:"housing_type" validate:"housing_type"`
	Latitude    float64           `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64           `json:"longitude" validate:"gte=-180,lte=180"`
	ACCOP       float64           `json:"ac_cop,omitempty" validate:"omitempty,gt=0,lte=10"`
}

// checkComfortBand covers what the struct tags cannot: the band must be set
// and a night band needs both ends in order.
func checkComfortBand(b types.ComfortBand) error {
	if b.MinC == 0 && b.MaxC == 0 {
		return types.NewAppError(types.ErrCodeValidationMissingField, "comfort.min_c and comfort.max_c are required", nil)
	}
	if (b.NightMinC == nil) != (b.NightMaxC == nil) {
		return types.NewAppError(types.ErrCodeValidationComfortBand,
			"comfort.night_min_c and comfort.night_max_c must be set together", nil)
	}
	if b.HasNightBand() && *b.NightMaxC < *b.NightMinC {
		return types.NewAppError(types.ErrCodeValidationComfortBand,
			"comfort.night_max_c must not be below night_min_c", nil)
	}
	return nil
}

// HandlePut handles PUT /v1/devices/{deviceID}, creating or replacing the
// profile.
func (h *DeviceHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	var req deviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := checkComfortBand(req.Comfort); err != nil {
		core.Error(w, r, err)
		return
	}

	d := &types.DeviceProfile{
		DeviceID:    id,
		Name:        strings.TrimSpace(req.Name),
		Comfort:     req.Comfort,
		PlanType:    types.ParsePlanType(req.PlanType),
		HousingType: types.ParseHousingType(req.HousingType),
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		ACCOP:       req.ACCOP,
	}
	if err := h.devices.Upsert(r.Context(), d); err != nil {
		core.Error(w, r, err)
		return
	}

	types.LoggerFromContext(r.Context(), h.logger).Info("device profile saved",
		"device_id", id,
		"plan_type", d.PlanType,
		"housing_type", d.HousingType,
	)
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: d})
}

// HandleAdvice handles GET /v1/devices/{deviceID}/advice.
func (h *DeviceHandler) HandleAdvice(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	report, err := h.advisor.Advise(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: report})
}

// HandleHistory handles GET /v1/devices/{deviceID}/advice/history.
func (h *DeviceHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	logs, err := h.advisor.History(r.Context(), id, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if logs == nil {
		logs = []types.AdviceLog{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: logs})
}

// HandleListReadings handles GET /v1/devices/{deviceID}/readings.
func (h *DeviceHandler) HandleListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	hours, err := intParam(r, "hours", defaultReadingsHours, 1, maxReadingsHours)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	readings, err := h.advisor.RecentReadings(r.Context(), id, time.Duration(hours)*time.Hour)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if readings == nil {
		readings = []types.Reading{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: readings})
}

// HandlePostReading handles POST /v1/devices/{deviceID}/readings. The body
// uses the same payload format as the MQTT sensor topic.
func (h *DeviceHandler) HandlePostReading(w http.ResponseWriter, r *http.Request) {
	id, err := deviceIDParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if _, err := h.advisor.Device(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReadingBodySize))
	if err != nil {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidBody, "reading body too large or unreadable", err))
		return
	}
	reading, err := ingest.DecodeReading(id, body, h.now())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.readings.WriteReading(r.Context(), reading); err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: reading})
}

// intParam parses an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationOutOfRange,
			name+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi),
			nil,
			map[string]any{name: raw},
		)
	}
	return n, nil
}
