package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/session"
)

// NewMeterValuesHandler records a meter reading. Readings must be
// non-decreasing in value and strictly increasing in timestamp within one
// transaction; violations leave the recorded sequence untouched.
func NewMeterValuesHandler(logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.MeterValuesRequest](payload)
		if err != nil {
			return nil, err
		}

		if sess.Phase != session.PhaseTransacting {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "MeterValues not allowed in phase %s", sess.Phase)
		}
		if req.TransactionID != 0 && req.TransactionID != sess.CurrentTransactionID {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "transactionId %d does not match current transaction %d", req.TransactionID, sess.CurrentTransactionID)
		}

		if req.Timestamp.IsZero() {
			req.Timestamp = time.Now().UTC()
		}

		if req.MeterValue < sess.LastMeterValue || !req.Timestamp.After(sess.LastMeterTimestamp) {
			return nil, ocpp.NewFault(ocpp.ErrCodeOutOfOrderMeterValue,
				"reading %d at %s is not after %d at %s",
				req.MeterValue, req.Timestamp.UTC().Format(time.RFC3339),
				sess.LastMeterValue, sess.LastMeterTimestamp.UTC().Format(time.RFC3339))
		}

		sess.LastMeterValue = req.MeterValue
		sess.LastMeterTimestamp = req.Timestamp

		logger.Info("meter value recorded",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.Int64("transaction_id", sess.CurrentTransactionID),
			zap.Int64("meter_value", req.MeterValue))

		return protocol.MeterValuesResponse{}, nil
	}
}
