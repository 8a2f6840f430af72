package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/auth"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/history"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/hub"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/kafka"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/relay"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/router"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/server"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/websocket"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the shoutbox WebSocket server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Observability
	observability.InitLoggerWithLevel(cfg.ServiceName, cfg.LogLevel)
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			return fmt.Errorf("initialize tracer: %w", err)
		}
		defer tp.Shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(parent, log)
	defer cancel()

	instanceID := getOrGenerateInstanceID(cfg.InstanceID)

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = initRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	// History
	store, err := history.Open(ctx, historyOptions(cfg, redisClient))
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	writer := history.NewWriter(store, cfg.PersistQueue, cfg.PersistRetries, cfg.PersistBackoff)
	writer.Start(ctx)
	publishers := []hub.Publisher{writer}

	var rly *relay.Relay
	if cfg.RelayEnabled {
		rly = relay.New(redisClient, instanceID)
		rly.Start(ctx)
		publishers = append(publishers, rly)
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		publishers = append(publishers, producer)
	}

	h := hub.New(store, hub.Options{
		MaxMessageLength:  cfg.MaxMessageLength,
		RatePoints:        cfg.RatePoints,
		RateWindow:        cfg.RateDuration,
		HistoryLimit:      cfg.HistoryLimit,
		RequireEditAuthor: cfg.RequireEditAuthor,
	}, publishers...)

	if rly != nil {
		rly.Subscribe(ctx, h.Deliver)
	}

	wsHandler := websocket.NewHandler(h, handlerConfig(cfg))

	// Servers
	obsSrv := initObservabilityServer(cfg, store)
	mainSrv := server.New("main", cfg.HTTPPort, router.NewRouter(h, wsHandler, router.Config{
		ServiceName:   cfg.ServiceName,
		ConnectLimit:  cfg.ConnectLimit,
		ConnectWindow: cfg.ConnectWindow,
	}))

	errCh := startServers(obsSrv, mainSrv)
	log.Info("shoutbox started",
		zap.String("instance_id", instanceID),
		zap.String("history_backend", cfg.HistoryBackend),
		zap.Bool("relay", cfg.RelayEnabled),
		zap.Bool("kafka", producer != nil),
		zap.Bool("auth", cfg.JWTSecret != ""),
	)

	select {
	case <-ctx.Done():
	case err = <-errCh:
		log.Error("server error", zap.Error(err))
	}

	performGracefulShutdown(obsSrv, mainSrv, h, writer, rly, producer)
	return err
}

func setupSignalHandler(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func getOrGenerateInstanceID(id string) string {
	if id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return uuid.NewString()
}

func initRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func historyOptions(cfg *config.Config, client *redis.Client) history.Options {
	return history.Options{
		Backend:     cfg.HistoryBackend,
		Retention:   cfg.HistoryRetention,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		BadgerPath:  cfg.BadgerPath,
		Redis:       client,
	}
}

func handlerConfig(cfg *config.Config) websocket.HandlerConfig {
	hc := websocket.HandlerConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		ReadLimit:      websocket.ReadLimitFor(cfg.MaxMessageLength),
	}
	// A nil *Verifier must not become a non-nil interface.
	if v := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience); v != nil {
		hc.Auth = v
	}
	return hc
}

func initObservabilityServer(cfg *config.Config, store history.Store) *server.Server {
	mux := chi.NewRouter()
	mux.Use(observability.MetricsMiddleware(cfg.ServiceName))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/health/live", observability.HealthLiveHandler)
	mux.Get("/health/ready", observability.HealthReadyHandler(store.Ping))
	return server.New("observability", cfg.ObsHTTPAddr, mux)
}

func startServers(servers ...*server.Server) <-chan error {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			if err := srv.Start(); err != nil {
				errCh <- err
			}
		}()
	}
	return errCh
}

// performGracefulShutdown stops intake first, then drains what was accepted.
func performGracefulShutdown(obs, main *server.Server, h *hub.Hub, writer *history.Writer, rly *relay.Relay, producer *kafka.Producer) {
	log := observability.Log
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := main.Shutdown(ctx); err != nil {
		log.Error("error during main server shutdown", zap.Error(err))
	}
	h.Close()
	writer.Close()
	if rly != nil {
		rly.Close()
	}
	if producer != nil {
		producer.Close()
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	log.Info("shutdown complete, exiting")
}
