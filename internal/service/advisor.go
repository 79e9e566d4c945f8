// Package service wires the pure decision core to storage, weather and
// transport. Advisor.Advise produces one device's full advice report;
// Advisor.Sweep evaluates every registered device.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"homeclimate/internal/advisor"
	"homeclimate/internal/cost"
	"homeclimate/internal/humidity"
	"homeclimate/internal/mold"
	"homeclimate/internal/rates"
	"homeclimate/internal/types"
	"homeclimate/internal/weather"
)

// Humidity sources reported on the indoor snapshot.
const (
	HumiditySensor    = "sensor"
	HumidityEstimated = "estimated"
	HumidityNone      = "none"
)

// DefaultSweepConcurrency bounds parallel device evaluations when Settings
// leaves it unset.
const DefaultSweepConcurrency = 8

// DeviceStore reads household profiles.
type DeviceStore interface {
	Get(ctx context.Context, deviceID string) (*types.DeviceProfile, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ReadingStore reads the indoor time series.
type ReadingStore interface {
	ListSince(ctx context.Context, deviceID string, since time.Time) ([]types.Reading, error)
}

// AdviceStore persists advice summaries.
type AdviceStore interface {
	Insert(ctx context.Context, a types.AdviceLog) error
	ListRecent(ctx context.Context, deviceID string, limit int) ([]types.AdviceLog, error)
}

// AlertPublisher delivers HIGH mold risk alerts.
type AlertPublisher interface {
	PublishMoldAlert(ctx context.Context, alert types.MoldAlert) error
}

// AdvicePublisher pushes advice back to the device.
type AdvicePublisher interface {
	PublishAdvice(ctx context.Context, deviceID string, advice any) error
}

// MetricsRecorder observes each issued recommendation.
type MetricsRecorder interface {
	RecordAdvice(state types.RecommendationState, level types.RiskLevel, duration time.Duration)
}

// Settings are the household-level knobs of the orchestrator.
type Settings struct {
	Location            *time.Location
	DefaultPlan         types.PlanType
	DefaultHousing      types.HousingType
	MoldWindow          time.Duration
	MoldIntervalMinutes int
	SweepConcurrency    int
}

// IndoorSnapshot is the latest indoor state used for the decision.
type IndoorSnapshot struct {
	TempC          *float64           `json:"temp_c"`
	HumidityRH     *float64           `json:"humidity_rh"`
	HumiditySource string             `json:"humidity_source"`
	Estimate       *humidity.Estimate `json:"humidity_estimate,omitempty"`
	ReadingAt      *time.Time         `json:"reading_at"`
}

// AdviceReport is everything the advisor concluded for one device at one
// instant.
type AdviceReport struct {
	ID             string                   `json:"id"`
	DeviceID       string                   `json:"device_id"`
	GeneratedAt    time.Time                `json:"generated_at"`
	Indoor         IndoorSnapshot           `json:"indoor"`
	Outdoor        *types.OutdoorConditions `json:"outdoor"`
	Rate           rates.Rate               `json:"rate"`
	Mold           mold.Result              `json:"mold"`
	Recommendation advisor.Recommendation   `json:"recommendation"`
	Cost           cost.Estimate            `json:"cost"`

	// AlertSent is true when a mold alert for this report was delivered.
	AlertSent bool `json:"alert_sent"`
}

// Advisor orchestrates a device evaluation. Alerts, Publisher and Metrics
// are optional.
type Advisor struct {
	Devices  DeviceStore
	Readings ReadingStore
	Advice   AdviceStore
	Weather  weather.Provider
	Rates    rates.Resolver

	Engine    *advisor.Engine
	Mold      mold.Engine
	Humidity  humidity.Estimator
	Settings  Settings
	Alerts    AlertPublisher
	Publisher AdvicePublisher
	Metrics   MetricsRecorder
	Log       *slog.Logger

	now func() time.Time
}

func (a *Advisor) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *Advisor) logger(ctx context.Context) *slog.Logger {
	fallback := a.Log
	if fallback == nil {
		fallback = slog.Default()
	}
	return types.LoggerFromContext(ctx, fallback)
}

func (a *Advisor) location() *time.Location {
	if a.Settings.Location != nil {
		return a.Settings.Location
	}
	return time.UTC
}

func (a *Advisor) moldWindow() time.Duration {
	if a.Settings.MoldWindow > 0 {
		return a.Settings.MoldWindow
	}
	return 24 * time.Hour
}

func (a *Advisor) moldInterval() int {
	if a.Settings.MoldIntervalMinutes > 0 {
		return a.Settings.MoldIntervalMinutes
	}
	return 1
}

// Device returns the stored profile for deviceID.
func (a *Advisor) Device(ctx context.Context, deviceID string) (*types.DeviceProfile, error) {
	return a.Devices.Get(ctx, deviceID)
}

// History returns the newest advice summaries for a known device.
func (a *Advisor) History(ctx context.Context, deviceID string, limit int) ([]types.AdviceLog, error) {
	if _, err := a.Devices.Get(ctx, deviceID); err != nil {
		return nil, err
	}
	return a.Advice.ListRecent(ctx, deviceID, limit)
}

// RecentReadings returns a known device's readings from the last window.
func (a *Advisor) RecentReadings(ctx context.Context, deviceID string, window time.Duration) ([]types.Reading, error) {
	if _, err := a.Devices.Get(ctx, deviceID); err != nil {
		return nil, err
	}
	return a.Readings.ListSince(ctx, deviceID, a.clock().Add(-window))
}

// Advise evaluates deviceID now. Weather failures degrade to default outdoor
// values; storage failures on the device or its readings are returned.
func (a *Advisor) Advise(ctx context.Context, deviceID string) (*AdviceReport, error) {
	started := a.clock()
	now := started.In(a.location())
	log := a.logger(ctx).With("device_id", deviceID)

	device, err := a.Devices.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	var (
		readings []types.Reading
		outdoor  *types.OutdoorConditions
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rs, err := a.Readings.ListSince(gCtx, deviceID, now.Add(-a.moldWindow()))
		if err != nil {
			return err
		}
		readings = rs
		return nil
	})
	g.Go(func() error {
		oc, err := a.Weather.Current(gCtx, device.Latitude, device.Longitude)
		if err != nil {
			if ctxErr := gCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.WarnContext(ctx, "outdoor conditions unavailable, using defaults", "error", err)
			return nil
		}
		outdoor = oc
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if outdoor == nil {
		outdoor = &types.OutdoorConditions{Source: "unavailable", FetchedAt: now}
	}

	indoor := a.indoorSnapshot(readings, outdoor)
	moldResult := a.Mold.Compute(readings, a.moldInterval())

	plan := device.PlanType
	if plan == "" {
		plan = a.Settings.DefaultPlan
	}
	rate := a.Rates.Current(plan, now)

	rec := a.Engine.Recommend(advisor.Request{
		IndoorTempC:      indoor.TempC,
		IndoorRH:         indoor.HumidityRH,
		OutdoorTempC:     outdoor.TempC,
		OutdoorRH:        outdoor.HumidityRH,
		Comfort:          device.Comfort,
		PriceCentsPerKWh: types.Float64(rate.PriceCentsPerKWh),
		PeriodLabel:      rate.PeriodLabel,
		Forecast:         outdoor.Forecast,
		MoldRisk:         moldResult.Level,
		Now:              now,
	})

	th := a.Engine.Thresholds
	tin := valueOr(indoor.TempC, th.DefaultIndoorC)
	housing := device.HousingType
	if housing == "" {
		housing = a.Settings.DefaultHousing
	}
	estimate := cost.EstimateCost(cost.Input{
		TinC:             tin,
		TargetC:          rec.TargetC,
		PriceCentsPerKWh: rate.PriceCentsPerKWh,
		HousingType:      housing,
		ACCOP:            device.ACCOP,
	})

	report := &AdviceReport{
		ID:             uuid.NewString(),
		DeviceID:       deviceID,
		GeneratedAt:    now,
		Indoor:         indoor,
		Outdoor:        outdoor,
		Rate:           rate,
		Mold:           moldResult,
		Recommendation: rec,
		Cost:           estimate,
	}

	a.record(ctx, log, report, valueOr(outdoor.TempC, th.DefaultOutdoorC), started)
	return report, nil
}

func (a *Advisor) indoorSnapshot(readings []types.Reading, outdoor *types.OutdoorConditions) IndoorSnapshot {
	snap := IndoorSnapshot{HumiditySource: HumidityNone}
	if len(readings) > 0 {
		latest := readings[len(readings)-1]
		ts := latest.Timestamp
		snap.ReadingAt = &ts
		if types.IsFinite(latest.TempC) {
			snap.TempC = latest.TempC
		}
		if types.IsFinite(latest.HumidityRH) {
			snap.HumidityRH = latest.HumidityRH
			snap.HumiditySource = HumiditySensor
			return snap
		}
	}

	th := a.Engine.Thresholds
	tin := valueOr(snap.TempC, th.DefaultIndoorC)
	tout := valueOr(outdoor.TempC, th.DefaultOutdoorC)
	est := a.Humidity.Estimate(&tin, &tout, outdoor.HumidityRH)
	if est.HumidityRH != nil {
		snap.HumidityRH = est.HumidityRH
		snap.HumiditySource = HumidityEstimated
		snap.Estimate = &est
	}
	return snap
}

// record runs the side effects of an issued report and sets r.AlertSent when
// a mold alert was delivered. None of them fail the request.
func (a *Advisor) record(ctx context.Context, log *slog.Logger, r *AdviceReport, outdoorC float64, started time.Time) {
	rec := r.Recommendation
	savings := 0.0
	if rec.State == types.StateOpenWindow {
		savings = r.Cost.Savings
	}
	entry := types.AdviceLog{
		ID:               r.ID,
		DeviceID:         r.DeviceID,
		CreatedAt:        r.GeneratedAt.UTC(),
		State:            rec.State,
		Confidence:       rec.Confidence,
		Reasons:          rec.Reasons,
		MoldRisk:         r.Mold.Level,
		MoldScore:        r.Mold.Score,
		PriceCentsPerKWh: r.Rate.PriceCentsPerKWh,
		PeriodLabel:      r.Rate.PeriodLabel,
		IndoorTempC:      valueOr(r.Indoor.TempC, a.Engine.Thresholds.DefaultIndoorC),
		OutdoorTempC:     outdoorC,
		SavingsDollars:   savings,
	}
	if err := a.Advice.Insert(ctx, entry); err != nil {
		log.ErrorContext(ctx, "failed to persist advice log", "advice_id", r.ID, "error", err)
	}

	if a.Metrics != nil {
		a.Metrics.RecordAdvice(rec.State, r.Mold.Level, a.clock().Sub(started))
	}

	if r.Mold.Level == types.RiskHigh && a.Alerts != nil {
		alert := types.MoldAlert{
			AlertID:     uuid.NewString(),
			DeviceID:    r.DeviceID,
			Level:       r.Mold.Level,
			Score:       r.Mold.Score,
			Explanation: r.Mold.Explanation,
			HumidityRH:  r.Indoor.HumidityRH,
			CreatedAt:   r.GeneratedAt.UTC(),
		}
		if err := a.Alerts.PublishMoldAlert(ctx, alert); err != nil {
			log.ErrorContext(ctx, "failed to publish mold alert", "error", err)
		} else {
			r.AlertSent = true
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishAdvice(ctx, r.DeviceID, r); err != nil {
			log.WarnContext(ctx, "failed to publish advice", "error", err)
		}
	}

	log.InfoContext(ctx, "advice issued",
		"advice_id", r.ID,
		"state", string(rec.State),
		"rule", rec.Rule,
		"mold_risk", string(r.Mold.Level),
		"price_cents", r.Rate.PriceCentsPerKWh,
		"alert_sent", r.AlertSent,
	)
}

// Sweep evaluates up to limit devices (all when limit <= 0). A failing
// device is counted and does not stop the sweep; only a failure to list
// devices or a cancelled context is returned.
func (a *Advisor) Sweep(ctx context.Context, limit int) (types.SweepSummary, error) {
	summary := types.SweepSummary{
		States:     make(map[types.RecommendationState]int),
		MoldLevels: make(map[types.RiskLevel]int),
	}

	ids, err := a.Devices.ListIDs(ctx)
	if err != nil {
		return summary, fmt.Errorf("service: listing devices: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	concurrency := a.Settings.SweepConcurrency
	if concurrency <= 0 {
		concurrency = DefaultSweepConcurrency
	}

	log := a.logger(ctx)
	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, id := range ids {
		g.Go(func() error {
			report, err := a.Advise(gCtx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				log.WarnContext(ctx, "device evaluation failed", "device_id", id, "error", err)
				// Per-device failures do not abort the sweep.
				return nil
			}
			summary.Evaluated++
			summary.States[report.Recommendation.State]++
			summary.MoldLevels[report.Mold.Level]++
			if report.AlertSent {
				summary.Alerts++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	log.InfoContext(ctx, "sweep complete",
		"devices", len(ids),
		"evaluated", summary.Evaluated,
		"failed", summary.Failed,
		"alerts", summary.Alerts,
	)
	return summary, nil
}

// IsNotFound reports whether err means the device is not registered.
func IsNotFound(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundDevice
}

func valueOr(p *float64, def float64) float64 {
	if types.IsFinite(p) {
		return *p
	}
	return def
}
