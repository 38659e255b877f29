package config

import (
	"errors"
	"strings"
)

// ClientConfig defines the charge point client configuration.
type ClientConfig struct {
	ServerURL      string `yaml:"serverUrl" env:"OCPP_SERVER_URL"`
	ChargePointID  string `yaml:"chargePointId" env:"OCPP_CHARGE_POINT_ID"`
	IdTag          string `yaml:"idTag" env:"OCPP_ID_TAG"`
	AuthSecret     string `yaml:"authSecret" env:"OCPP_AUTH_SECRET"`
	BootOnly       bool   `yaml:"bootOnly" env:"OCPP_BOOT_ONLY"`
	HeartbeatCount int    `yaml:"heartbeatCount" env:"OCPP_HEARTBEAT_COUNT"`
	MeterStep      int64  `yaml:"meterStep" env:"OCPP_METER_STEP"`
}

// LoadClient loads client config with defaults applied.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		ServerURL:      "ws://localhost:9000",
		ChargePointID:  "CP_1",
		IdTag:          "TEST",
		HeartbeatCount: 3,
		MeterStep:      100,
	}

	if err := Load(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.ChargePointID) == "" {
		return nil, errors.New("config: charge point id is required")
	}

	return cfg, nil
}
