package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"homeclimate/internal/types"
)

// maxReadingsPerQuery caps ListSince. At one reading per minute a day is 1440
// rows.
const maxReadingsPerQuery = 10000

// ReadingRepository provides data access for the readings table.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores a reading. A duplicate (device_id, ts) is ignored so QoS 1
// redeliveries are harmless.
func (r *ReadingRepository) Insert(ctx context.Context, rd types.Reading) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO readings (device_id, ts, temp_c, humidity_rh, pressure_hpa)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (device_id, ts) DO NOTHING`,
		rd.DeviceID, rd.Timestamp.UTC(), rd.TempC, rd.HumidityRH, rd.PressureHPa,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert reading", err)
	}
	return nil
}

// ListSince returns the device's readings at or after since, oldest first.
func (r *ReadingRepository) ListSince(ctx context.Context, deviceID string, since time.Time) ([]types.Reading, error) {
	rows, err := r.db.Query(ctx,
		`SELECT device_id, ts, temp_c, humidity_rh, pressure_hpa
		 FROM readings
		 WHERE device_id = $1 AND ts >= $2
		 ORDER BY ts ASC
		 LIMIT $3`,
		deviceID, since.UTC(), maxReadingsPerQuery,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list readings", err)
	}
	defer rows.Close()

	var out []types.Reading
	for rows.Next() {
		var rd types.Reading
		if err := rows.Scan(&rd.DeviceID, &rd.Timestamp, &rd.TempC, &rd.HumidityRH, &rd.PressureHPa); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reading", err)
		}
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating readings", err)
	}
	return out, nil
}

// Latest returns the most recent reading for the device.
func (r *ReadingRepository) Latest(ctx context.Context, deviceID string) (*types.Reading, error) {
	var rd types.Reading
	err := r.db.QueryRow(ctx,
		`SELECT device_id, ts, temp_c, humidity_rh, pressure_hpa
		 FROM readings
		 WHERE device_id = $1
		 ORDER BY ts DESC
		 LIMIT 1`,
		deviceID,
	).Scan(&rd.DeviceID, &rd.Timestamp, &rd.TempC, &rd.HumidityRH, &rd.PressureHPa)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundReadings, "no readings for device", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve latest reading", err)
	}
	return &rd, nil
}
