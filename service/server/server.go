package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/brojonat/tipgate/service/gateway"
	"github.com/brojonat/tipgate/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// Server is the HTTP front of the gateway. It serves the JSON-RPC
// submission endpoint at the root path and a small REST surface for
// inspecting the relay ledger.
type Server struct {
	gw      *gateway.Gateway
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server around the given gateway.
// The metrics collector is optional - if nil, the /metrics endpoint and
// per-handler instrumentation are disabled.
func New(gw *gateway.Gateway, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		gw:      gw,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the full route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// JSON-RPC submission endpoint. The bridge only answers POST; the
	// {$} pattern keeps it from swallowing every unmatched path.
	mux.Handle("POST /{$}", s.instrument("rpc", newRPCBridge(s.gw, s.logger)))

	// Ledger inspection routes
	mux.Handle("GET /api/v1/transactions", s.instrument("list_transactions", handleListTransactions(s.gw, s.logger)))
	mux.Handle("GET /api/v1/transactions/{id}", s.instrument("get_transaction", handleGetTransaction(s.gw, s.logger)))
	mux.Handle("DELETE /api/v1/transactions", s.instrument("clear_transactions", handleClearTransactions(s.gw, s.logger)))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         int(time.Hour.Seconds()),
	})
	return c.Handler(mux)
}

// Serve runs the HTTP server on an already-bound listener. Binding is
// the caller's job so port fallback can happen before any routes exist.
func (s *Server) Serve(ln net.Listener) error {
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server and waits for in-flight
// confirmation polls to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.gw.Close()
	return nil
}

func (s *Server) instrument(name string, h http.Handler) http.Handler {
	return metrics.HTTPMetricsMiddleware(s.metrics, name)(h)
}
