package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chargelink/internal/config"
	"chargelink/internal/db"
	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/handlers"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/redisstore"
	"chargelink/internal/repository"
	"chargelink/internal/session"
	"chargelink/internal/tracing"
	"chargelink/internal/ws"
)

// App wires all dependencies for the OCPP server.
type App struct {
	httpServer *http.Server
	db         *sql.DB
	redis      *redis.Client
	manager    *ws.Manager
	logger     *zap.Logger
}

// New builds the application graph. Postgres and redis are attached only
// when configured; the handlers degrade to in-memory operation without them.
func New(cfg *config.ServerConfig, logger *zap.Logger) (*App, error) {
	var sqlDB *sql.DB
	if cfg.Database.DSN != "" {
		pool, err := db.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB = pool
	}

	var redisClient *redis.Client
	var txCache *redisstore.ActiveTransactions
	if cfg.Redis.Addr != "" {
		client, err := redisstore.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, err
		}
		redisClient = client
		txCache = redisstore.NewActiveTransactions(client, 24*time.Hour)
	}

	var cpRepo *repository.ChargePointRepository
	var txRepo *repository.TransactionRepository
	var frameLog ocpp.FrameLog
	if sqlDB != nil {
		cpRepo = repository.NewChargePointRepository(sqlDB)
		txRepo = repository.NewTransactionRepository(sqlDB)
		frameLog = repository.NewFrameLogRepository(sqlDB)
	}

	registry := session.NewRegistry()

	router := ocpp.NewRouter()
	router.Register(protocol.ActionBootNotification, handlers.NewBootNotificationHandler(cfg.HeartbeatInterval(), cpRepo, logger))
	router.Register(protocol.ActionStatusNotification, handlers.NewStatusNotificationHandler(logger))
	router.Register(protocol.ActionStartTransaction, handlers.NewStartTransactionHandler(registry, txRepo, txCache, logger))
	router.Register(protocol.ActionHeartbeat, handlers.NewHeartbeatHandler(cpRepo, logger))
	router.Register(protocol.ActionMeterValues, handlers.NewMeterValuesHandler(logger))
	router.Register(protocol.ActionStopTransaction, handlers.NewStopTransactionHandler(txRepo, txCache, logger))

	processor := ocpp.NewProcessor(router, tracing.NewCarrier(), frameLog, logger)

	manager := ws.NewManager(cfg.PingInterval())
	wsServer := ws.NewServer(manager, registry, processor, cfg.Auth.Secret, cfg.WriteTimeout(), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/", wsServer.HandleWS)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		httpServer: httpServer,
		db:         sqlDB,
		redis:      redisClient,
		manager:    manager,
		logger:     logger,
	}, nil
}

// Run starts the ping loop and HTTP server, blocking until ctx is canceled
// or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go a.manager.Start(ctx)

	go func() {
		a.logger.Info("starting ocpp server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
