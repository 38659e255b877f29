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

// NewBootNotificationHandler accepts a boot from a freshly connected charge
// point and moves its session into Booted. The heartbeat interval returned is
// the one the charge point is expected to honor.
func NewBootNotificationHandler(heartbeatInterval time.Duration, repo *repository.ChargePointRepository, logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.BootNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		if sess.Phase != session.PhaseConnected {
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "BootNotification not allowed in phase %s", sess.Phase)
		}

		if repo != nil {
			if err := repo.Upsert(ctx, &repository.ChargePoint{
				ID:              sess.ChargePointID,
				Vendor:          req.ChargePointVendor,
				Model:           req.ChargePointModel,
				FirmwareVersion: req.FirmwareVersion,
				LastSeen:        time.Now().UTC(),
			}); err != nil {
				logger.Warn("charge point upsert failed", zap.String("charge_point_id", sess.ChargePointID), zap.Error(err))
			}
		}

		sess.Phase = session.PhaseBooted
		logger.Info("charge point booted",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.String("vendor", req.ChargePointVendor),
			zap.String("model", req.ChargePointModel))

		return protocol.BootNotificationResponse{
			Status:      protocol.StatusAccepted,
			CurrentTime: time.Now().UTC().Truncate(time.Second),
			Interval:    int(heartbeatInterval / time.Second),
		}, nil
	}
}
