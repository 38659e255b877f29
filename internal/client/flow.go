package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chargelink/internal/ocpp/protocol"
)

// FlowConfig parameterizes the scripted happy-path exchange.
type FlowConfig struct {
	IdTag          string
	BootOnly       bool
	HeartbeatCount int
	MeterStep      int64

	// HeartbeatInterval overrides the interval advertised by the server.
	// Zero means honor the server.
	HeartbeatInterval time.Duration
}

// RunFlow drives the full charge point exchange: boot, status report, start
// transaction, periodic heartbeats with meter readings, stop transaction. It
// returns nil only when the terminal expected response was received — the
// StopTransaction acknowledgement, or the accepted boot in the boot-only
// variant.
func RunFlow(ctx context.Context, cp *ChargePoint, cfg FlowConfig, logger *zap.Logger) error {
	raw, err := cp.Call(ctx, protocol.ActionBootNotification, protocol.BootNotificationRequest{
		ChargePointVendor: "RalphCo",
		ChargePointModel:  "RalphModel1",
		FirmwareVersion:   "0.1.0",
		MeterType:         "RalphMeter",
	})
	if err != nil {
		return fmt.Errorf("boot notification: %w", err)
	}
	var boot protocol.BootNotificationResponse
	if err := json.Unmarshal(raw, &boot); err != nil {
		return fmt.Errorf("boot notification response: %w", err)
	}
	if boot.Status != protocol.StatusAccepted {
		return fmt.Errorf("boot notification not accepted: %s", boot.Status)
	}

	interval := cfg.HeartbeatInterval
	if interval <= 0 {
		if boot.Interval > 0 {
			interval = time.Duration(boot.Interval) * time.Second
		} else {
			interval = 10 * time.Second
		}
	}
	logger.Info("boot accepted", zap.Duration("heartbeat_interval", interval))

	if cfg.BootOnly {
		return nil
	}

	if _, err := cp.Call(ctx, protocol.ActionStatusNotification, protocol.StatusNotificationRequest{
		ConnectorID: 0,
		Status:      protocol.ConnectorAvailable,
		ErrorCode:   protocol.NoError,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("status notification: %w", err)
	}
	logger.Info("status notification acknowledged")

	raw, err = cp.Call(ctx, protocol.ActionStartTransaction, protocol.StartTransactionRequest{
		ConnectorID: 1,
		IdTag:       cfg.IdTag,
		MeterStart:  0,
		Timestamp:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	var start protocol.StartTransactionResponse
	if err := json.Unmarshal(raw, &start); err != nil {
		return fmt.Errorf("start transaction response: %w", err)
	}
	if start.IdTagInfo.Status != protocol.StatusAccepted {
		return fmt.Errorf("start transaction not accepted: %s", start.IdTagInfo.Status)
	}
	if start.TransactionID <= 0 {
		return fmt.Errorf("start transaction returned invalid transactionId %d", start.TransactionID)
	}
	logger.Info("transaction started", zap.Int64("transaction_id", start.TransactionID))

	meter := int64(0)
	for i := 0; i < cfg.HeartbeatCount; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		raw, err := cp.Call(ctx, protocol.ActionHeartbeat, protocol.HeartbeatRequest{})
		if err != nil {
			return fmt.Errorf("heartbeat %d: %w", i+1, err)
		}
		var hb protocol.HeartbeatResponse
		if err := json.Unmarshal(raw, &hb); err != nil {
			return fmt.Errorf("heartbeat %d response: %w", i+1, err)
		}
		logger.Info("heartbeat acknowledged", zap.Int("count", i+1), zap.Time("server_time", hb.CurrentTime))

		meter += cfg.MeterStep
		if _, err := cp.Call(ctx, protocol.ActionMeterValues, protocol.MeterValuesRequest{
			ConnectorID:   1,
			TransactionID: start.TransactionID,
			MeterValue:    meter,
			Timestamp:     time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("meter values: %w", err)
		}
		logger.Info("meter value acknowledged", zap.Int64("meter_value", meter))
	}

	raw, err = cp.Call(ctx, protocol.ActionStopTransaction, protocol.StopTransactionRequest{
		TransactionID: start.TransactionID,
		IdTag:         cfg.IdTag,
		MeterStop:     meter,
		Timestamp:     time.Now().UTC(),
		Reason:        "Local",
	})
	if err != nil {
		return fmt.Errorf("stop transaction: %w", err)
	}
	var stop protocol.StopTransactionResponse
	if err := json.Unmarshal(raw, &stop); err != nil {
		return fmt.Errorf("stop transaction response: %w", err)
	}
	if stop.IdTagInfo.Status != protocol.StatusAccepted {
		return fmt.Errorf("stop transaction not accepted: %s", stop.IdTagInfo.Status)
	}

	logger.Info("transaction stopped", zap.Int64("transaction_id", start.TransactionID), zap.Int64("meter_stop", meter))
	return nil
}
