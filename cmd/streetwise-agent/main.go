// Command streetwise-agent is a stub participant service. It answers
// the coordinator's envelope protocol with canned domain payloads so a
// full orchestration loop can run without the real upstream services.
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"streetwise/internal/logging"
)

type Config struct {
	Role     string `env:"STREETWISE_AGENT_ROLE" envDefault:"food"`
	Port     int    `env:"STREETWISE_AGENT_PORT" envDefault:"8000"`
	LogLevel string `env:"STREETWISE_AGENT_LOG_LEVEL" envDefault:"info"`
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
	logger := logging.NewLogger(logging.NewBuffer(logging.DefaultBufferSize), level)

	participant, err := newParticipant(cfg.Role, logger)
	if err != nil {
		logger.Error("participant startup failed", map[string]string{
			"role":  cfg.Role,
			"error": err.Error(),
		})
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/a2a/receive", participant.handleReceive)
	mux.HandleFunc("/health", participant.handleHealth)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("participant listening", map[string]string{
		"role": cfg.Role,
		"addr": server.Addr,
	})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped", map[string]string{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}

func newParticipant(role string, logger *logging.Logger) (*participant, error) {
	canned, ok := cannedResponses[role]
	if !ok {
		return nil, fmt.Errorf("unknown participant role %q", role)
	}
	return &participant{role: role, canned: canned, logger: logger}, nil
}
