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

// NewStartTransactionHandler allocates a transaction id from the registry's
// global counter and moves the session into Transacting. A Stopped session
// may start a new transaction.
func NewStartTransactionHandler(registry *session.Registry, txRepo *repository.TransactionRepository, cache *redisstore.ActiveTransactions, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StartTransactionRequest](payload)
		if err != nil {
			return nil, err
		}

		if sess.Phase != session.PhaseBooted && sess.Phase != session.PhaseStopped {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "StartTransaction not allowed in phase %s", sess.Phase)
		}

		transactionID := registry.NextTransactionID()
		sess.BeginTransaction(transactionID, req.ConnectorID, req.MeterStart)

		startedAt := req.Timestamp
		if startedAt.IsZero() {
			startedAt = time.Now().UTC()
		}

		if txRepo != nil {
			if err := txRepo.Insert(ctx, transactionID, sess.ChargePointID, req.ConnectorID, req.IdTag, req.MeterStart, startedAt); err != nil {
				logger.Warn("transaction insert failed", zap.Int64("transaction_id", transactionID), zap.Error(err))
			}
		}
		if cache != nil {
			if err := cache.Save(ctx, redisstore.ActiveTransaction{
				TransactionID: transactionID,
				ChargePointID: sess.ChargePointID,
				ConnectorID:   req.ConnectorID,
				IdTag:         req.IdTag,
				MeterStart:    req.MeterStart,
				StartedAt:     startedAt,
			}); err != nil {
				logger.Warn("active transaction cache failed", zap.Int64("transaction_id", transactionID), zap.Error(err))
			}
		}

		logger.Info("transaction started",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.Int64("transaction_id", transactionID),
			zap.Int("connector_id", req.ConnectorID),
			zap.Int64("meter_start", req.MeterStart))

		return protocol.StartTransactionResponse{
			TransactionID: transactionID,
			IdTagInfo:     protocol.IdTagInfo{Status: protocol.StatusAccepted},
		}, nil
	}
}
