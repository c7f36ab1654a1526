package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/UkralStul/rubbhub/api"
	"github.com/UkralStul/rubbhub/internal/activity"
	"github.com/UkralStul/rubbhub/internal/auth"
	"github.com/UkralStul/rubbhub/internal/config"
	"github.com/UkralStul/rubbhub/internal/forum"
	"github.com/UkralStul/rubbhub/internal/logger"
	"github.com/UkralStul/rubbhub/internal/notify"
	"github.com/UkralStul/rubbhub/internal/ratelimit"
	"github.com/UkralStul/rubbhub/internal/response"
	"github.com/UkralStul/rubbhub/internal/storage"
	"github.com/UkralStul/rubbhub/internal/storage/inmemory"
	"github.com/UkralStul/rubbhub/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	storageType := flag.String("storage", "", "Storage type (in-memory or postgres), overrides config")
	seed := flag.Bool("seed", true, "Fill in-memory storage with demo data")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *storageType != "" {
		cfg.Storage = *storageType
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Msg("invalid config")
		}
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	response.HideInternal(cfg.Production)

	ctx := context.Background()

	var store storage.Storage
	log.Info().Str("storage", cfg.Storage).Msg("starting server")
	if cfg.Storage == "postgres" {
		pg, err := postgres.New(cfg.DatabaseURL, cfg.DBDebug)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pg.Close()
		store = pg
	} else {
		store = inmemory.New()
	}

	if err := store.EnsureInviteCodes(ctx, cfg.InviteCodes); err != nil {
		log.Fatal().Err(err).Msg("failed to seed invite codes")
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// лимитеры работают fail-open, сервер поднимается и без redis
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is not reachable")
		}
		cancel()
		defer rdb.Close()
	}

	hub := notify.NewHub()
	fanout := forum.NewFanout(store, hub)
	if cfg.NATSURL != "" {
		nc, err := notify.Connect(cfg.NATSURL, 5)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer nc.Close()
		fanout.AddSink(notify.NewNATSSink(nc))
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	forumSvc := forum.NewService(store, fanout)
	authSvc := auth.NewService(store, tokens)

	if cfg.Storage == "in-memory" && *seed {
		fillWithMockData(ctx, store, authSvc, forumSvc)
	}

	h := &api.Handler{
		Forum:       forumSvc,
		Auth:        authSvc,
		Tokens:      tokens,
		Likes:       store,
		Hub:         hub,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.OnlineTracking {
		var throttle redis.Cmdable
		if rdb != nil {
			throttle = rdb
		}
		h.Tracker = activity.New(store, throttle, cfg.ActivityEvery)
	}
	if rdb != nil {
		h.Limits = newLimiters(rdb, cfg.RateLimits)
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(h),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

var limitMessages = map[string]string{
	"api":    "too many requests, try again later",
	"auth":   "too many login attempts, try again in 5 minutes",
	"create": "posting too fast, try again later",
}

func newLimiters(rdb *redis.Client, rules map[string]config.RateRule) api.Limiters {
	build := func(name string) *ratelimit.Limiter {
		rule, ok := rules[name]
		if !ok || rule.Limit <= 0 {
			return nil
		}
		return ratelimit.New(rdb, name, rule.Limit, rule.Window, limitMessages[name])
	}
	return api.Limiters{
		API:    build("api"),
		Auth:   build("auth"),
		Create: build("create"),
	}
}
