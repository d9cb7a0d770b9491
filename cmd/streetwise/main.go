package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"streetwise/internal/api"
	"streetwise/internal/comms"
	"streetwise/internal/coordinator"
	"streetwise/internal/dispatch"
	"streetwise/internal/event"
	"streetwise/internal/logging"
	"streetwise/internal/registry"
	"streetwise/internal/version"
)

// Config is read from the environment; every knob has a default that
// works for a local four-participant setup.
type Config struct {
	Port               int           `env:"STREETWISE_PORT"                envDefault:"8080"`
	AuthToken          string        `env:"STREETWISE_AUTH_TOKEN"`
	RegistryPath       string        `env:"STREETWISE_REGISTRY"            envDefault:"participants.yaml"`
	ParticipantTimeout time.Duration `env:"STREETWISE_PARTICIPANT_TIMEOUT" envDefault:"30s"`
	MaxRetries         int           `env:"STREETWISE_MAX_RETRIES"         envDefault:"2"`
	BackoffInitial     time.Duration `env:"STREETWISE_BACKOFF_INITIAL"     envDefault:"500ms"`
	BackoffMax         time.Duration `env:"STREETWISE_BACKOFF_MAX"         envDefault:"5s"`
	HistorySize        int           `env:"STREETWISE_HISTORY_SIZE"        envDefault:"100"`
	HealthTTL          time.Duration `env:"STREETWISE_HEALTH_TTL"          envDefault:"15s"`
	LogLevel           string        `env:"STREETWISE_LOG_LEVEL"           envDefault:"info"`
	AllowedOrigins     []string      `env:"STREETWISE_ALLOWED_ORIGINS"     envSeparator:","`
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		os.Stderr.WriteString("parse environment: " + err.Error() + "\n")
		os.Exit(1)
	}

	level, ok := logging.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logging.LevelInfo
	}
	logBuffer := logging.NewBuffer(logging.DefaultBufferSize)
	logger := logging.NewLogger(logBuffer, level)

	reg, err := registry.LoadFile(cfg.RegistryPath)
	if err != nil {
		logger.Error("load participant registry failed", map[string]string{
			"path":  cfg.RegistryPath,
			"error": err.Error(),
		})
		os.Exit(1)
	}
	logger.Info("participant registry loaded", map[string]string{
		"path":         cfg.RegistryPath,
		"participants": strconv.Itoa(reg.Len()),
	})

	handler := comms.NewHandler(reg, comms.Options{
		MaxRetries:     cfg.MaxRetries,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
		Logger:         logger,
	})
	dispatcher := dispatch.New(handler, cfg.ParticipantTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus[coordinator.Event](ctx, event.BusOptions{})

	coord, err := coordinator.New(coordinator.Options{
		Registry:    reg,
		Dispatcher:  dispatcher,
		Prober:      handler,
		Logger:      logger,
		Bus:         bus,
		HistorySize: cfg.HistorySize,
		HealthTTL:   cfg.HealthTTL,
	})
	if err != nil {
		logger.Error("coordinator startup failed", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, api.RouterOptions{
		Coordinator:    coord,
		Logger:         logger,
		Bus:            bus,
		AuthToken:      cfg.AuthToken,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown did not finish cleanly", map[string]string{
				"error": err.Error(),
			})
		}
	}()

	logger.Info("streetwise listening", map[string]string{
		"addr":      server.Addr,
		"version":   version.String(),
		"workflows": strconv.Itoa(len(coord.WorkflowTags())),
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	logger.Info("streetwise stopped", nil)
}
