package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/session"
)

// NewStatusNotificationHandler acknowledges connector status reports. The
// report is informational and does not move the session phase.
func NewStatusNotificationHandler(logger *zap.Logger) ocpp.HandlerFunc {
	return func(ctx context.Context, sess *session.State, payload json.RawMessage) (interface{}, error) {
		req, err := ocpp.DecodePayload[protocol.StatusNotificationRequest](payload)
		if err != nil {
			return nil, err
		}

		switch sess.Phase {
		case session.PhaseBooted, session.PhaseTransacting, session.PhaseStopped:
		default:
			return nil, ocpp.NewFault(ocpp.ErrCodeInvalidState, "StatusNotification not allowed in phase %s", sess.Phase)
		}

		logger.Info("connector status",
			zap.String("charge_point_id", sess.ChargePointID),
			zap.Int("connector_id", req.ConnectorID),
			zap.String("status", req.Status),
			zap.String("error_code", req.ErrorCode))

		return protocol.StatusNotificationResponse{}, nil
	}
}
