// Command hooklined runs the Hookline webhook relay as a standalone HTTP
// service: the ingestion endpoint, the operator API, and the delivery
// workers in one process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/xraph/go-utils/metrics"

	"github.com/hookline/hookline"
	"github.com/hookline/hookline/api"
	"github.com/hookline/hookline/ingest"
	"github.com/hookline/hookline/observability"
	"github.com/hookline/hookline/store/memory"
	"github.com/hookline/hookline/task"
)

const shutdownTimeout = 30 * time.Second

type appConfig struct {
	Addr                 string        `mapstructure:"HOOKLINE_ADDR"`
	LogFormat            string        `mapstructure:"HOOKLINE_LOG_FORMAT"`
	LogLevel             string        `mapstructure:"HOOKLINE_LOG_LEVEL"`
	RedisURL             string        `mapstructure:"HOOKLINE_REDIS_URL"`
	MaxAttempts          int           `mapstructure:"HOOKLINE_MAX_ATTEMPTS"`
	MaxPayloadBytes      int           `mapstructure:"HOOKLINE_MAX_PAYLOAD_BYTES"`
	RequestTimeout       time.Duration `mapstructure:"HOOKLINE_REQUEST_TIMEOUT"`
	SweepInterval        time.Duration `mapstructure:"HOOKLINE_SWEEP_INTERVAL"`
	NotificationCooldown time.Duration `mapstructure:"HOOKLINE_NOTIFICATION_COOLDOWN"`
}

func loadConfig() (appConfig, error) {
	v := viper.New()
	v.SetConfigName("hooklined")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hookline")
	v.AutomaticEnv()

	v.SetDefault("HOOKLINE_ADDR", ":8080")
	v.SetDefault("HOOKLINE_LOG_FORMAT", "json")
	v.SetDefault("HOOKLINE_LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		// The config file is optional; env vars and defaults suffice.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg appConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func newQueue(cfg appConfig, logger *slog.Logger) (task.Queue, error) {
	if cfg.RedisURL == "" {
		return task.NewMemoryQueue(task.WithMemoryLogger(logger)), nil
	}

	opt, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return task.NewRedisQueue(client, task.WithRedisLogger(logger)), nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	queue, err := newQueue(cfg, logger)
	if err != nil {
		return err
	}

	opts := []hookline.Option{
		hookline.WithStore(memory.New()),
		hookline.WithQueue(queue),
		hookline.WithLogger(logger),
		hookline.WithMetrics(observability.NewMetrics(metrics.NewMetricsCollector("hookline"))),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, hookline.WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.MaxPayloadBytes > 0 {
		opts = append(opts, hookline.WithMaxPayloadBytes(cfg.MaxPayloadBytes))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, hookline.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.SweepInterval > 0 {
		opts = append(opts, hookline.WithSweepInterval(cfg.SweepInterval))
	}
	if cfg.NotificationCooldown > 0 {
		opts = append(opts, hookline.WithNotificationCooldown(cfg.NotificationCooldown))
	}

	hl, err := hookline.New(opts...)
	if err != nil {
		return err
	}

	hl.Start(ctx)
	defer hl.Stop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := hl.Store().Ping(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	ingest.NewHandler(hl.Gatekeeper()).Mount(r)
	r.Route("/api/v1", func(r chi.Router) {
		api.NewHandler(hl, logger).Mount(r)
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hooklined listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
