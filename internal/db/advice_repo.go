package db

import (
	"context"

	"homeclimate/internal/types"
)

const (
	defaultAdviceHistoryLimit = 20
	maxAdviceHistoryLimit     = 200
)

// AdviceLogRepository provides data access for the advice_log table.
type AdviceLogRepository struct {
	db DBTX
}

// NewAdviceLogRepository creates a new AdviceLogRepository.
func NewAdviceLogRepository(db DBTX) *AdviceLogRepository {
	return &AdviceLogRepository{db: db}
}

// Insert appends an advice log entry. The caller assigns ID and CreatedAt.
func (r *AdviceLogRepository) Insert(ctx context.Context, a types.AdviceLog) error {
	reasons := a.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO advice_log (id, device_id, created_at, state, confidence, reasons,
			mold_risk, mold_score, price_cents_per_kwh, period_label,
			indoor_temp_c, outdoor_temp_c, savings_dollars)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		a.ID, a.DeviceID, a.CreatedAt.UTC(), string(a.State), string(a.Confidence), reasons,
		string(a.MoldRisk), a.MoldScore, a.PriceCentsPerKWh, a.PeriodLabel,
		a.IndoorTempC, a.OutdoorTempC, a.SavingsDollars,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert advice log", err)
	}
	return nil
}

// ListRecent returns the newest entries for a device, newest first. limit is
// clamped to [1, 200]; zero selects 20.
func (r *AdviceLogRepository) ListRecent(ctx context.Context, deviceID string, limit int) ([]types.AdviceLog, error) {
	switch {
	case limit <= 0:
		limit = defaultAdviceHistoryLimit
	case limit > maxAdviceHistoryLimit:
		limit = maxAdviceHistoryLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, device_id, created_at, state, confidence, reasons,
			mold_risk, mold_score, price_cents_per_kwh, period_label,
			indoor_temp_c, outdoor_temp_c, savings_dollars
		 FROM advice_log
		 WHERE device_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		deviceID, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list advice log", err)
	}
	defer rows.Close()

	var out []types.AdviceLog
	for rows.Next() {
		var (
			a                       types.AdviceLog
			state, confidence, risk string
		)
		if err := rows.Scan(
			&a.ID, &a.DeviceID, &a.CreatedAt, &state, &confidence, &a.Reasons,
			&risk, &a.MoldScore, &a.PriceCentsPerKWh, &a.PeriodLabel,
			&a.IndoorTempC, &a.OutdoorTempC, &a.SavingsDollars,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan advice log", err)
		}
		a.State = types.RecommendationState(state)
		a.Confidence = types.Confidence(confidence)
		a.MoldRisk = types.ParseRiskLevel(risk)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating advice log", err)
	}
	return out, nil
}
