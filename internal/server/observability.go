// Observability middleware and HTTP endpoints for metrics, probes and profiling
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/nainya/treeaudit/internal/logger"
	"github.com/nainya/treeaudit/internal/metrics"
)

// GrpcMetricsInterceptor counts, times and logs every unary call
func GrpcMetricsInterceptor(m *metrics.Metrics, log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		m.GrpcRequestsInFlight.Inc()
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)
		m.GrpcRequestsInFlight.Dec()

		m.RecordGrpcRequest(info.FullMethod, status.Code(err).String(), elapsed)
		log.LogGrpcRequest(info.FullMethod, elapsed, err)
		return resp, err
	}
}

// Health is the body of the /health probe
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Latest  int    `json:"latestVersion"`
	Uptime  string `json:"uptime"`
}

// Prober answers the HTTP probes
type Prober interface {
	Ready() bool
	Health() Health
}

// Health reports the state of the revision history
func (s *Server) Health() Health {
	return Health{
		Status:  "healthy",
		Service: logger.ServiceName,
		Latest:  s.store.Latest(),
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	}
}

// ObservabilityServer serves metrics, probes and pprof over HTTP
type ObservabilityServer struct {
	server *http.Server
	log    *logger.Logger
}

// NewObservabilityServer builds the observability HTTP server. A nil
// gatherer falls back to the default registry.
func NewObservabilityServer(port int, gatherer prometheus.Gatherer, probe Prober, log *logger.Logger) *ObservabilityServer {
	return &ObservabilityServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           observabilityMux(gatherer, probe),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second, // pprof profiles stream for a while
			IdleTimeout:       time.Minute,
		},
		log: log.Component("observability"),
	}
}

func observabilityMux(gatherer prometheus.Gatherer, probe Prober) *http.ServeMux {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, probe.Health())
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if !probe.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// Start serves until Shutdown is called
func (o *ObservabilityServer) Start() error {
	o.log.Info().
		Str("addr", o.server.Addr).
		Strs("paths", []string{"/metrics", "/health", "/ready", "/debug/pprof/"}).
		Msg("Observability endpoints available")

	err := o.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("observability server: %w", err)
}

// Shutdown stops accepting requests and waits for in-flight ones
func (o *ObservabilityServer) Shutdown(ctx context.Context) error {
	o.log.Info().Msg("Shutting down observability server")
	return o.server.Shutdown(ctx)
}
