package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iamasit07/4-in-a-row-steroids/internal/config"
	"github.com/iamasit07/4-in-a-row-steroids/internal/coordinator"
	"github.com/iamasit07/4-in-a-row-steroids/internal/metrics"
	"github.com/iamasit07/4-in-a-row-steroids/internal/repository/redis"
	"github.com/iamasit07/4-in-a-row-steroids/internal/service/cleanup"
	"github.com/iamasit07/4-in-a-row-steroids/internal/shard"
	transportHttp "github.com/iamasit07/4-in-a-row-steroids/internal/transport/http"
	"github.com/iamasit07/4-in-a-row-steroids/internal/transport/http/middleware"
	"github.com/iamasit07/4-in-a-row-steroids/internal/transport/websocket"
)

func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			log.Info().Msg("no .env file found")
		}
	}

	cfg := config.LoadConfig()
	setupLogging(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// 1. Column shards
	var provider shard.Provider
	switch cfg.ShardMode {
	case config.ShardModeRemote:
		remote, err := shard.NewRemoteProvider(cfg.ColumnNodeURLs, &http.Client{Timeout: cfg.ShardTimeout})
		if err != nil {
			log.Fatal().Err(err).Msg("column nodes")
		}
		provider = remote
		log.Info().Strs("nodes", cfg.ColumnNodeURLs).Msg("using remote column nodes")
	default:
		provider = shard.NewLocalProvider()
		log.Info().Msg("using in-process column shards")
	}

	// 2. Coordinator and gateway
	connManager := websocket.NewConnectionManager(log.Logger)
	coord := coordinator.New(coordinator.Config{
		TurnTimeLimit:        cfg.TurnTimeLimit,
		MinTurnsBeforeEvents: cfg.EventMinTurns,
		EventInterval:        cfg.EventInterval,
		EventProbability:     cfg.EventProbability,
		ShardTimeout:         cfg.ShardTimeout,
		RetryAttempts:        cfg.ShardRetryAttempts,
		RetryBase:            cfg.ShardRetryBase,
		RoomTTL:              cfg.RoomTTL,
		FinishedRoomTTL:      cfg.FinishedRoomTTL,
	}, provider, connManager, log.Logger)

	m := metrics.New(prometheus.DefaultRegisterer)
	coord.SetMetrics(m)
	connManager.SetObserver(m)

	// 3. Optional Redis mirror
	var store *redis.Store
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := redis.NewClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, rooms kept in memory only")
		} else {
			store = redis.NewStore(client, cfg.RoomTTL, log.Logger)
			coord.SetStore(store)
			defer store.Close()
			log.Info().Str("addr", cfg.RedisURL).Msg("redis connected")
		}
	}

	// 4. Background workers
	cleanupWorker := cleanup.NewWorker(coord, cfg.CleanupInterval, log.Logger)
	cleanupWorker.Start(context.Background())

	// 5. Router
	wsHandler := websocket.NewHandler(connManager, coord, websocket.Config{
		ReconnectGrace: cfg.ReconnectGrace,
		AllowedOrigins: cfg.AllowedOrigins,
	}, log.Logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(log.Logger))
	router.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	transportHttp.NewRoomHandler(coord).Register(router)
	if store != nil {
		transportHttp.NewWatchHandler(coord, store).Register(router)
	}
	wsHandler.Register(router)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("server is shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	wsHandler.Close()
	cleanupWorker.Stop()
	coord.Shutdown()

	log.Info().Msg("server exited gracefully")
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	if lvl, err := zerolog.ParseLevel(level); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}
}
