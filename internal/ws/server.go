package ws

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargelink/internal/auth"
	"chargelink/internal/session"
)

// Subprotocol advertised to charge points.
const Subprotocol = "ocpp1.6"

// Server upgrades HTTP connections to websockets, one per charge point. The
// charge point identity is carried in the connection path: ws://host/{id}.
type Server struct {
	manager      *Manager
	registry     *session.Registry
	processor    MessageProcessor
	authSecret   string
	writeTimeout time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewServer builds ws server. authSecret may be empty to disable the bearer
// check.
func NewServer(manager *Manager, registry *session.Registry, processor MessageProcessor, authSecret string, writeTimeout time.Duration, logger *zap.Logger) *Server {
	return &Server{
		manager:      manager,
		registry:     registry,
		processor:    processor,
		authSecret:   authSecret,
		writeTimeout: writeTimeout,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS is the HTTP handler for ws://host/{chargePointId}.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	chargePointID := strings.Trim(r.URL.Path, "/")
	if chargePointID == "" || strings.Contains(chargePointID, "/") {
		http.Error(w, "charge point id is required in the path", http.StatusBadRequest)
		return
	}

	if s.authSecret != "" {
		if err := auth.VerifyRequest(r, s.authSecret, chargePointID); err != nil {
			s.logger.Warn("rejected unauthenticated connection", zap.String("charge_point_id", chargePointID), zap.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := s.registry.GetOrCreate(chargePointID)

	ctx, cancel := context.WithCancel(context.Background())
	connection := NewConnection(chargePointID, sess, conn, s.processor, s.writeTimeout, s.logger, func(id string) {
		s.manager.Remove(id)
		s.registry.Remove(id)
		cancel()
	})
	s.manager.Add(connection)

	go connection.Start(ctx)
	s.logger.Info("charge point connected", zap.String("charge_point_id", chargePointID))
}
