package repository

import (
	"context"
	"database/sql"
	"time"
)

// TransactionRepository persists transaction lifecycle events.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository returns repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Insert records a started transaction.
func (r *TransactionRepository) Insert(ctx context.Context, transactionID int64, chargePointID string, connectorID int, idTag string, meterStart int64, startedAt time.Time) error {
	const query = `
		INSERT INTO transactions (id, charge_point_id, connector_id, id_tag, meter_start, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, transactionID, chargePointID, connectorID, idTag, meterStart, startedAt)
	return err
}

// Complete closes a transaction with its final meter reading.
func (r *TransactionRepository) Complete(ctx context.Context, transactionID int64, meterStop int64, reason string, stoppedAt time.Time) error {
	const query = `
		UPDATE transactions
		SET meter_stop = $2,
		    stop_reason = $3,
		    stopped_at = $4
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, transactionID, meterStop, reason, stoppedAt)
	return err
}
