package config

import (
	"fmt"
	"strings"
	"time"
)

// ServerConfig defines the OCPP server configuration. Database, redis, and
// auth sections are optional; leaving them empty disables the corresponding
// collaborator.
type ServerConfig struct {
	HTTP struct {
		Port string `yaml:"port" env:"OCPP_HTTP_PORT"`
	} `yaml:"http"`
	Database struct {
		DSN string `yaml:"dsn" env:"OCPP_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"OCPP_REDIS_ADDR"`
		Password string `yaml:"password" env:"OCPP_REDIS_PASSWORD"`
	} `yaml:"redis"`
	Auth struct {
		Secret string `yaml:"secret" env:"OCPP_AUTH_SECRET"`
	} `yaml:"auth"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT"`
	} `yaml:"websocket"`
	HeartbeatIntervalSeconds int `yaml:"heartbeatIntervalSeconds" env:"OCPP_HEARTBEAT_INTERVAL"`
}

// LoadServer loads server config with defaults applied.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	cfg.HTTP.Port = "9000"
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15
	cfg.HeartbeatIntervalSeconds = 10

	if err := Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *ServerConfig) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "9000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PingInterval returns websocket ping interval.
func (c *ServerConfig) PingInterval() time.Duration {
	if c.WebSocket.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.WebSocket.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns websocket write timeout.
func (c *ServerConfig) WriteTimeout() time.Duration {
	if c.WebSocket.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WebSocket.WriteTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns the interval advertised in BootNotification
// responses.
func (c *ServerConfig) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}
