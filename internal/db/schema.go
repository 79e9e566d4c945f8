package db

import (
	"context"

	"homeclimate/internal/types"
)

// schemaStatements are applied in order by Migrate. Each statement is
// idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		device_id     TEXT PRIMARY KEY,
		name          TEXT NOT NULL DEFAULT '',
		comfort_min_c DOUBLE PRECISION NOT NULL DEFAULT 20,
		comfort_max_c DOUBLE PRECISION NOT NULL DEFAULT 23,
		night_min_c   DOUBLE PRECISION,
		night_max_c   DOUBLE PRECISION,
		plan_type     TEXT NOT NULL DEFAULT 'TOU',
		housing_type  TEXT NOT NULL DEFAULT 'apartment',
		latitude      DOUBLE PRECISION NOT NULL DEFAULT 43.65,
		longitude     DOUBLE PRECISION NOT NULL DEFAULT -79.38,
		ac_cop        DOUBLE PRECISION NOT NULL DEFAULT 2.5,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK (comfort_min_c <= comfort_max_c)
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		device_id    TEXT NOT NULL,
		ts           TIMESTAMPTZ NOT NULL,
		temp_c       DOUBLE PRECISION,
		humidity_rh  DOUBLE PRECISION,
		pressure_hpa DOUBLE PRECISION,
		PRIMARY KEY (device_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS advice_log (
		id                  UUID PRIMARY KEY,
		device_id           TEXT NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL,
		state               TEXT NOT NULL,
		confidence          TEXT NOT NULL,
		reasons             TEXT[] NOT NULL DEFAULT '{}',
		mold_risk           TEXT NOT NULL,
		mold_score          INTEGER NOT NULL DEFAULT 0,
		price_cents_per_kwh DOUBLE PRECISION NOT NULL,
		period_label        TEXT NOT NULL,
		indoor_temp_c       DOUBLE PRECISION NOT NULL,
		outdoor_temp_c      DOUBLE PRECISION NOT NULL,
		savings_dollars     DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_advice_log_device_created
		ON advice_log (device_id, created_at DESC)`,
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return types.NewAppError(types.ErrCodeInternalDB, "applying schema", err)
		}
	}
	return nil
}
