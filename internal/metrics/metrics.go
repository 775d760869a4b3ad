// Package metrics exposes a single agent process's Prometheus metrics
// and its liveness/readiness probes over HTTP.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// AgentMetrics holds the Prometheus collectors for one sensor agent.
type AgentMetrics struct {
	StepsTotal       prometheus.Counter
	PublishesTotal   prometheus.Counter
	PublishErrors    prometheus.Counter
	AlertsTotal      prometheus.Counter
	StepDuration     prometheus.Histogram
	AgentStatus      prometheus.Gauge
	LocalRisk        prometheus.Gauge
	NeighborCount    prometheus.Gauge
	Sensitivity      prometheus.Gauge
	CircuitBreakerSt prometheus.Gauge
}

// NewAgentMetrics registers a fresh set of collectors namespaced by
// sensorID. Each agent process owns exactly one, so there is no
// collision risk despite the flat metric names.
func NewAgentMetrics(sensorID string) *AgentMetrics {
	constLabels := prometheus.Labels{"sensor_id": sensorID}
	return &AgentMetrics{
		StepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "sentinel_agent_steps_total",
			Help:        "Total number of measurement/decision cycles completed.",
			ConstLabels: constLabels,
		}),
		PublishesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "sentinel_agent_publishes_total",
			Help:        "Total number of successful broker publishes.",
			ConstLabels: constLabels,
		}),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "sentinel_agent_publish_errors_total",
			Help:        "Total number of publish attempts that failed or were short-circuited.",
			ConstLabels: constLabels,
		}),
		AlertsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name:        "sentinel_agent_alerts_total",
			Help:        "Total number of alerts raised.",
			ConstLabels: constLabels,
		}),
		StepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:        "sentinel_agent_step_duration_seconds",
			Help:        "Duration of one measurement/decision/publish cycle.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),
		AgentStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinel_agent_status",
			Help:        "Agent lifecycle status (1=connected and assigned, 0=otherwise).",
			ConstLabels: constLabels,
		}),
		LocalRisk: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinel_agent_local_risk",
			Help:        "Most recently computed local risk score.",
			ConstLabels: constLabels,
		}),
		NeighborCount: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinel_agent_neighbor_count",
			Help:        "Current size of the neighbor belief table.",
			ConstLabels: constLabels,
		}),
		Sensitivity: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinel_agent_sensitivity",
			Help:        "Current learned sensitivity multiplier.",
			ConstLabels: constLabels,
		}),
		CircuitBreakerSt: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "sentinel_agent_circuit_breaker_state",
			Help:        "Publish circuit breaker state (0=closed, 1=half_open, 2=open).",
			ConstLabels: constLabels,
		}),
	}
}

// AgentStatus is the live snapshot the health endpoints report. The
// agent supplies it through a StatusFunc so the server never reaches
// into agent internals directly.
type AgentStatus struct {
	SensorID        string `json:"sensor_id"`
	State           string `json:"state"`
	Sector          string `json:"sector"`
	BrokerConnected bool   `json:"broker_connected"`
	PublishBreaker  string `json:"publish_breaker"`
	Ready           bool   `json:"ready"`
}

// StatusFunc returns the agent's current status for health reporting.
type StatusFunc func() AgentStatus

// Server exposes /metrics, /health, and /readiness over HTTP for one
// agent process.
type Server struct {
	port   int
	status StatusFunc
	server *http.Server
	log    zerolog.Logger
}

// NewServer builds a metrics server bound to port, reporting the state
// returned by status on its health endpoints.
func NewServer(port int, status StatusFunc, log zerolog.Logger) *Server {
	return &Server{port: port, status: status, log: log}
}

// Start begins serving in a background goroutine. It returns once the
// listener address is configured; bind errors are logged asynchronously.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/readiness", s.handleReadiness)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Int("port", s.port).Msg("starting metrics server")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("metrics server error")
		}
	}()
}

// handleHealth is the liveness probe: the process is up and can report
// its own state, regardless of broker connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
		"agent":     s.status(),
	})
}

// handleReadiness is the readiness probe: 200 only while the agent is
// assigned, connected to the broker, and its publish path is not
// circuit-broken; 503 otherwise, with the failing state in the body.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st := s.status()
	code := http.StatusOK
	status := "ready"
	if !st.Ready {
		code = http.StatusServiceUnavailable
		status = "not ready"
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"agent":     st,
	})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.log.Info().Msg("shutting down metrics server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
