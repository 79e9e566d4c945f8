package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"homeclimate/internal/types"
)

// DeviceRepository provides data access for the devices table.
type DeviceRepository struct {
	db DBTX
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db DBTX) *DeviceRepository {
	return &DeviceRepository{db: db}
}

const deviceColumns = `device_id, name, comfort_min_c, comfort_max_c, night_min_c, night_max_c,
	plan_type, housing_type, latitude, longitude, ac_cop, created_at`

func scanDevice(row pgx.Row) (*types.DeviceProfile, error) {
	var (
		d       types.DeviceProfile
		plan    string
		housing string
	)
	err := row.Scan(
		&d.DeviceID,
		&d.Name,
		&d.Comfort.MinC,
		&d.Comfort.MaxC,
		&d.Comfort.NightMinC,
		&d.Comfort.NightMaxC,
		&plan,
		&housing,
		&d.Latitude,
		&d.Longitude,
		&d.ACCOP,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.PlanType = types.ParsePlanType(plan)
	d.HousingType = types.ParseHousingType(housing)
	return &d, nil
}

// Get loads a device profile.
func (r *DeviceRepository) Get(ctx context.Context, deviceID string) (*types.DeviceProfile, error) {
	d, err := scanDevice(r.db.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = $1`,
		deviceID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundDevice, "device not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve device", err)
	}
	return d, nil
}

// Upsert creates or replaces a device profile. created_at is preserved on
// update.
func (r *DeviceRepository) Upsert(ctx context.Context, d *types.DeviceProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO devices (device_id, name, comfort_min_c, comfort_max_c, night_min_c, night_max_c,
			plan_type, housing_type, latitude, longitude, ac_cop)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (device_id) DO UPDATE SET
			name = EXCLUDED.name,
			comfort_min_c = EXCLUDED.comfort_min_c,
			comfort_max_c = EXCLUDED.comfort_max_c,
			night_min_c = EXCLUDED.night_min_c,
			night_max_c = EXCLUDED.night_max_c,
			plan_type = EXCLUDED.plan_type,
			housing_type = EXCLUDED.housing_type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			ac_cop = EXCLUDED.ac_cop`,
		d.DeviceID, d.Name, d.Comfort.MinC, d.Comfort.MaxC, d.Comfort.NightMinC, d.Comfort.NightMaxC,
		string(d.PlanType), string(d.HousingType), d.Latitude, d.Longitude, d.ACCOP,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save device", err)
	}
	return nil
}

// ListIDs returns every device id in a stable order.
func (r *DeviceRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT device_id FROM devices ORDER BY device_id`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list devices", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan device id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating devices", err)
	}
	return ids, nil
}
