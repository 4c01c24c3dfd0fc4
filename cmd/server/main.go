package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tipgate/service/config"
	"github.com/brojonat/tipgate/service/gateway"
	"github.com/brojonat/tipgate/service/ledger"
	"github.com/brojonat/tipgate/service/limiter"
	"github.com/brojonat/tipgate/service/metrics"
	"github.com/brojonat/tipgate/service/nats"
	"github.com/brojonat/tipgate/service/policy"
	"github.com/brojonat/tipgate/service/relay"
	"github.com/brojonat/tipgate/service/server"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting relay gateway",
		"port", cfg.Port,
		"log_level", cfg.LogLevel,
		"rpc_endpoints", len(cfg.RPCEndpoints),
		"tip_accounts", len(cfg.TipAccounts),
		"min_tip_lamports", cfg.MinTipLamports,
	)

	m := metrics.NewMetrics(nil)

	endpoints := make([]relay.Endpoint, len(cfg.RPCEndpoints))
	for i, url := range cfg.RPCEndpoints {
		endpoints[i] = relay.NewEndpoint(url)
		logger.Info("initialized solana RPC endpoint", "url", url)
	}
	rly := relay.New(endpoints, relay.RandomPicker(), m, logger)

	policyCfg := policy.NewConfig(cfg.TipAccounts, cfg.MinTipLamports)
	window := limiter.New(cfg.RateLimitRPS, time.Second)
	store := ledger.New()

	// NATS is optional - without it the gateway runs without event publishing
	var events nats.Publisher
	if cfg.NATSURL != "" {
		pub, err := nats.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		events = pub
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	} else {
		logger.Info("NATS_URL not set, event publishing disabled")
	}

	gw := gateway.New(gateway.Params{
		Policy:              policyCfg,
		Limiter:             window,
		Relay:               rly,
		Ledger:              store,
		Events:              events,
		Metrics:             m,
		Logger:              logger,
		SubmitTimeout:       cfg.SubmitTimeout,
		ConfirmTimeout:      cfg.ConfirmTimeout,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
		MaxAttempts:         cfg.RelayMaxAttempts,
	})

	httpServer := server.New(gw, m, logger)

	ln, err := bindWithFallback(cfg.Port, logger)
	if err != nil {
		logger.Error("failed to bind any port", "error", err)
		os.Exit(1)
	}
	logger.Info("listening", "addr", ln.Addr().String())

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Serve(ln)
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// bindWithFallback binds a TCP listener on the preferred port, falling back
// to 3000, then 3001 through 3010, and finally an OS-assigned ephemeral
// port. Candidate ports that are already taken are skipped with a warning.
func bindWithFallback(preferred int, logger *slog.Logger) (net.Listener, error) {
	candidates := []int{preferred, 3000}
	for p := 3001; p <= 3010; p++ {
		candidates = append(candidates, p)
	}
	candidates = append(candidates, 0)

	seen := make(map[int]bool)
	for _, port := range candidates {
		if port != 0 && seen[port] {
			continue
		}
		seen[port] = true

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			if port != preferred {
				logger.Warn("preferred port unavailable, bound fallback",
					"preferred", preferred,
					"bound", ln.Addr().String(),
				)
			}
			return ln, nil
		}
		logger.Debug("port unavailable", "port", port, "error", err)
	}
	return nil, fmt.Errorf("no bindable port found (preferred %d)", preferred)
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
