package handlers

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/repository"
	"chargelink/internal/session"
)

// NewHeartbeatHandler acks with server time. Heartbeats are valid in every
// phase once the session exists.
func NewHeartbeatHandler(repo *repository.ChargePointRepository, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		sess.HeartbeatCount++

		if repo != nil {
			if err := repo.TouchLastSeen(ctx, sess.ChargePointID); err != nil {
				logger.Warn("heartbeat last_seen update failed", zap.String("charge_point_id", sess.ChargePointID), zap.Error(err))
			}
		}

		return protocol.HeartbeatResponse{
			CurrentTime: time.Now().UTC().Truncate(time.Second),
		}, nil
	}
}
