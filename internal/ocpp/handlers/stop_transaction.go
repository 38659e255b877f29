package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/redisstore"
	"chargelink/internal/repository"
	"chargelink/internal/session"
)

// NewStopTransactionHandler closes the session's current transaction and
// moves it into Stopped. The transactionId must match the one allocated by
// StartTransaction.
func NewStopTransactionHandler(txRepo *repository.TransactionRepository, cache *redisstore.ActiveTransactions, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StopTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		if sess.Phase != session.PhaseTransacting {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "StopTransaction not allowed in phase %s", sess.Phase)
		}
		if req.TransactionID != sess.CurrentTransactionID {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "transactionId %d does not match current transaction %d", req.TransactionID, sess.CurrentTransactionID)
		}

		transactionID := sess.CurrentTransactionID
		sess.EndTransaction()

		stoppedAt := req.Timestamp
		if stoppedAt.IsZero() {
			stoppedAt = time.Now().UTC()
		}

		if txRepo != nil {
			if err := txRepo.Complete(ctx, transactionID, req.MeterStop, req.Reason, stoppedAt); err != nil {
				logger.Warn("transaction complete failed", zap.Int64("transaction_id", transactionID), zap.Error(err))
			}
		}
		if cache != nil {
			if err := cache.Delete(ctx, transactionID); err != nil {
				logger.Warn("active transaction evict failed", zap.Int64("transaction_id", transactionID), zap.Error(err))
			}
		}

		logger.Info("transaction stopped",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.Int64("transaction_id", transactionID),
			zap.Int64("meter_stop", req.MeterStop))

		return protocol.StopTransactionResponse{
			IdTagInfo: protocol.IdTagInfo{Status: protocol.StatusAccepted},
		}, nil
	}
}
