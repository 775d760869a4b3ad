package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentMetrics_CountersStartAtZero(t *testing.T) {
	m := NewAgentMetrics("metrics-test-sensor-1")
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StepsTotal))

	m.StepsTotal.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StepsTotal))
}

func TestNewAgentMetrics_GaugesSettable(t *testing.T) {
	m := NewAgentMetrics("metrics-test-sensor-2")
	m.LocalRisk.Set(0.75)
	assert.Equal(t, 0.75, testutil.ToFloat64(m.LocalRisk))
}

func newTestServer(status AgentStatus) *Server {
	return NewServer(0, func() AgentStatus { return status }, zerolog.Nop())
}

func TestHandleHealth_AlwaysAliveWithAgentState(t *testing.T) {
	s := newTestServer(AgentStatus{SensorID: "s1", State: "connected_unassigned", BrokerConnected: false})
	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code, "liveness does not depend on broker connectivity")

	var body struct {
		Status string      `json:"status"`
		Agent  AgentStatus `json:"agent"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body.Status)
	assert.Equal(t, "s1", body.Agent.SensorID)
	assert.Equal(t, "connected_unassigned", body.Agent.State)
}

func TestHandleReadiness_ReadyAgentReturns200(t *testing.T) {
	s := newTestServer(AgentStatus{State: "connected_assigned", BrokerConnected: true, Ready: true})
	rec := httptest.NewRecorder()
	s.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)
}

func TestHandleReadiness_UnreadyAgentReturns503(t *testing.T) {
	s := newTestServer(AgentStatus{State: "connected_unassigned", BrokerConnected: true, Ready: false})
	rec := httptest.NewRecorder()
	s.handleReadiness(rec, httptest.NewRequest(http.MethodGet, "/readiness", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not ready"`)
}

func TestHandlers_RejectNonGet(t *testing.T) {
	s := newTestServer(AgentStatus{Ready: true})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.handleReadiness(rec, httptest.NewRequest(http.MethodPost, "/readiness", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
