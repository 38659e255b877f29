package repository

import (
	"context"
	"database/sql"
	"time"
)

// ChargePoint row as persisted on boot.
type ChargePoint struct {
	ID              string
	Vendor          string
	Model           string
	FirmwareVersion string
	LastSeen        time.Time
}

// ChargePointRepository manages charge point persistence.
type ChargePointRepository struct {
	db *sql.DB
}

// NewChargePointRepository returns repository.
func NewChargePointRepository(db *sql.DB) *ChargePointRepository {
	return &ChargePointRepository{db: db}
}

// Upsert stores or refreshes charge point metadata.
func (r *ChargePointRepository) Upsert(ctx context.Context, cp *ChargePoint) error {
	const query = `
		INSERT INTO charge_points (id, vendor, model, firmware_version, last_seen, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			vendor = EXCLUDED.vendor,
			model = EXCLUDED.model,
			firmware_version = EXCLUDED.firmware_version,
			last_seen = EXCLUDED.last_seen,
			updated_at = NOW()
	`
	if cp.LastSeen.IsZero() {
		cp.LastSeen = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, query,
		cp.ID,
		cp.Vendor,
		cp.Model,
		cp.FirmwareVersion,
		cp.LastSeen,
	)
	return err
}

// TouchLastSeen refreshes the last_seen timestamp, e.g. on heartbeat.
func (r *ChargePointRepository) TouchLastSeen(ctx context.Context, chargePointID string) error {
	const query = `
		UPDATE charge_points
		SET last_seen = NOW(),
		    updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, chargePointID)
	return err
}
