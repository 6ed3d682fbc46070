// Command server runs the Prudency HTTP API.
//
// It loads configuration from the environment (plus an optional .env file),
// opens the SQLite store, wires SMS delivery and rate limiting, registers the
// routes, starts the background sweeper, and serves until SIGINT/SIGTERM.
//
//	@title			Prudency API
//	@version		1.0
//	@description	Personal safety escort backend: trips with arrival deadlines, alert escalation, trusted-contact notifications, and phone verification.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/monjodav/prudency-backend/docs"
	"github.com/monjodav/prudency-backend/internal/config"
	httpapi "github.com/monjodav/prudency-backend/internal/http"
	"github.com/monjodav/prudency-backend/internal/observability"
	"github.com/monjodav/prudency-backend/internal/ratelimit"
	"github.com/monjodav/prudency-backend/internal/repo"
	"github.com/monjodav/prudency-backend/internal/sms"
	"github.com/monjodav/prudency-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	version = sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Info().Str("version", version).Str("port", cfg.Port).Msg("starting prudency-backend")

	ctx := context.Background()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// One limiter object backs both the fixed-window gates and the counted
	// caps. Redis makes the windows survive restarts and span replicas.
	var (
		lim    ratelimit.Limiter
		counts ratelimit.CountLimiter
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		rl := ratelimit.NewRedisLimiter(rdb, "prudency")
		lim, counts = rl, rl
		log.Info().Str("addr", cfg.RedisAddr).Msg("rate limiting backed by redis")
	} else {
		ml := ratelimit.NewMemoryLimiter(time.Minute)
		lim, counts = ml, ml
	}

	var gw sms.Gateway
	if cfg.SMS.BaseURL != "" {
		gw = observability.MeteredGateway{Next: sms.NewHTTPGateway(cfg.SMS.BaseURL, cfg.SMS.APIKey, cfg.SMS.From, 0)}
		log.Info().Str("base_url", cfg.SMS.BaseURL).Msg("sms delivery via HTTP gateway")
	} else {
		gw = sms.NewLogGateway(log.With().Str("component", "sms").Logger())
		log.Warn().Msg("SMS_BASE_URL not set, sms delivery is log-only")
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()

	sweeper := httpapi.RegisterRoutes(r, db, gw, lim, counts, cfg)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Msg("sweeper start failed")
	}
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("listening")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("bye")
}
