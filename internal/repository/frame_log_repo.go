package repository

import (
	"context"
	"database/sql"
)

// FrameLogRepository stores raw OCPP frames for audit.
type FrameLogRepository struct {
	db *sql.DB
}

// NewFrameLogRepository ctor.
func NewFrameLogRepository(db *sql.DB) *FrameLogRepository {
	return &FrameLogRepository{db: db}
}

// Save stores one frame with its direction and action.
func (r *FrameLogRepository) Save(ctx context.Context, chargePointID, direction, action string, frame []byte) error {
	const query = `
		INSERT INTO ocpp_frames (charge_point_id, direction, action, frame)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, chargePointID, direction, action, frame)
	return err
}
