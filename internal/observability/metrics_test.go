package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newCounterVec(name string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_" + name, Help: "test"}, labels)
}

func newGaugeVec(name string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_" + name, Help: "test"}, labels)
}

func newHistogramVec(name string, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "test_" + name, Help: "test"}, labels)
}

// newTestMetrics builds a Metrics instance registered against a private
// registry so tests don't collide with each other (or a real NewMetrics()
// call elsewhere in the process) on Prometheus's default registerer.
func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m := &Metrics{
		LLMRequestDuration:    newHistogramVec("llm_request_duration_seconds", []string{"provider", "model"}),
		LLMRequestCounter:     newCounterVec("llm_requests_total", []string{"provider", "model", "status"}),
		LLMTokensUsed:         newCounterVec("llm_tokens_total", []string{"provider", "model", "type"}),
		ToolExecutionCounter:  newCounterVec("tool_executions_total", []string{"tool_name", "status"}),
		ToolExecutionDuration: newHistogramVec("tool_execution_duration_seconds", []string{"tool_name"}),
		ErrorCounter:          newCounterVec("errors_total", []string{"component", "error_type"}),
		ActiveConnections:     newGaugeVec("active_connections", []string{"transport"}),
		ConnectionDuration:    newHistogramVec("connection_duration_seconds", []string{"transport"}),
		HTTPRequestDuration:   newHistogramVec("http_request_duration_seconds", []string{"method", "path", "status_code"}),
		HTTPRequestCounter:    newCounterVec("http_requests_total", []string{"method", "path", "status_code"}),
		DatabaseQueryDuration: newHistogramVec("database_query_duration_seconds", []string{"operation", "table"}),
		DatabaseQueryCounter:  newCounterVec("database_queries_total", []string{"operation", "table", "status"}),
		CommandQueueDepth:     newGaugeVec("command_queue_depth", []string{"lane"}),
		ContextWindowUsed:     newHistogramVec("context_window_tokens", []string{"provider", "model"}),
		RunAttempts:           newCounterVec("run_attempts_total", []string{"status"}),
	}
	return m
}

func TestRecordLLMRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLLMRequest("anthropic", "claude-sonnet", "success", 1.5, 120, 480)
	m.RecordLLMRequest("anthropic", "claude-sonnet", "error", 0.2, 0, 0)

	if count := testutil.CollectAndCount(m.LLMRequestCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
	if tokenCount := testutil.CollectAndCount(m.LLMTokensUsed); tokenCount != 2 {
		t.Errorf("expected prompt and completion token series, got %d", tokenCount)
	}
}

func TestRecordLLMRequest_ZeroTokensNotRecorded(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordLLMRequest("openai", "gpt-4", "error", 0.1, 0, 0)

	if count := testutil.CollectAndCount(m.LLMTokensUsed); count != 0 {
		t.Errorf("expected no token series for a zero-token request, got %d", count)
	}
}

func TestRecordToolExecution(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordToolExecution("run_command", "success", 0.05)
	m.RecordToolExecution("run_command", "success", 0.03)
	m.RecordToolExecution("list_files", "error", 0.01)

	if count := testutil.CollectAndCount(m.ToolExecutionCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordError("orchestrator", "agent_fatal")
	m.RecordError("orchestrator", "agent_fatal")
	m.RecordError("server", "invalid_frame")

	if count := testutil.CollectAndCount(m.ErrorCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestConnectionLifecycle(t *testing.T) {
	m := newTestMetrics(t)

	m.ConnectionOpened("websocket")
	m.ConnectionOpened("websocket")
	m.ConnectionClosed("websocket", 42.0)

	if testutil.ToFloat64(m.ActiveConnections.WithLabelValues("websocket")) != 1 {
		t.Error("expected one connection to remain open after one close")
	}
	if count := testutil.CollectAndCount(m.ConnectionDuration); count < 1 {
		t.Error("expected connection duration to have an observation")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/messaging/conversations", "200", 0.01)
	m.RecordHTTPRequest("GET", "/messaging/conversations", "500", 0.02)

	if count := testutil.CollectAndCount(m.HTTPRequestCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestRecordDatabaseQuery(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordDatabaseQuery("insert", "messages", "success", 0.002)
	m.RecordDatabaseQuery("select", "conversations", "success", 0.001)

	if count := testutil.CollectAndCount(m.DatabaseQueryCounter); count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}
}

func TestSetCommandQueueDepth(t *testing.T) {
	m := newTestMetrics(t)

	m.SetCommandQueueDepth("main", 3)
	m.SetCommandQueueDepth("conversation-7", 0)

	if testutil.ToFloat64(m.CommandQueueDepth.WithLabelValues("main")) != 3 {
		t.Error("expected main lane depth to be 3")
	}
}

func TestRecordContextWindow(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordContextWindow("anthropic", "claude-sonnet", 45000)

	if count := testutil.CollectAndCount(m.ContextWindowUsed); count != 1 {
		t.Errorf("expected 1 label combination, got %d", count)
	}
}

func TestRecordRunAttempt(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRunAttempt("success")
	m.RecordRunAttempt("success")
	m.RecordRunAttempt("compacted")

	if testutil.ToFloat64(m.RunAttempts.WithLabelValues("success")) != 2 {
		t.Error("expected 2 successful run attempts")
	}
}
