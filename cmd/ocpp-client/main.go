package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"chargelink/internal/auth"
	"chargelink/internal/client"
	"chargelink/internal/config"
	"chargelink/internal/logging"
	"chargelink/internal/telemetry"
)

func main() {
	os.Exit(run())
}

// run exits 0 only when the terminal expected response was received.
func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadClient()
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	shutdown, err := telemetry.Setup(ctx, "ocpp16-client")
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	} else {
		defer shutdown(context.Background())
	}

	var token string
	if cfg.AuthSecret != "" {
		token, err = auth.NewToken(cfg.AuthSecret, cfg.ChargePointID)
		if err != nil {
			logger.Error("could not issue auth token", zap.Error(err))
			return 1
		}
	}

	cp, err := client.Dial(ctx, cfg.ServerURL, cfg.ChargePointID, token, logger)
	if err != nil {
		logger.Error("could not connect to server", zap.Error(err))
		return 1
	}
	defer cp.Close()

	if err := client.RunFlow(ctx, cp, client.FlowConfig{
		IdTag:          cfg.IdTag,
		BootOnly:       cfg.BootOnly,
		HeartbeatCount: cfg.HeartbeatCount,
		MeterStep:      cfg.MeterStep,
	}, logger); err != nil {
		logger.Error("charge point flow failed", zap.Error(err))
		return 1
	}

	return 0
}
