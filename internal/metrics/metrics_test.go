package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.URLClick()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.urlClicks))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.urlClicks))
}

func TestCounters(t *testing.T) {
	m := New()
	m.WorkflowExecution("completed")
	m.WorkflowExecution("completed")
	m.WorkflowExecution("failed")
	m.RealtimeEvent("proposals", "INSERT")
	m.StripeError("checkout")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.workflowRuns.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.workflowRuns.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtimeEvents.WithLabelValues("proposals", "INSERT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stripeErrors.WithLabelValues("checkout")))
}

func TestHandler_ExposesSeries(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/urls", "200", 15*time.Millisecond)
	m.SetRealtimeConnections(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `kazi_http_requests_total{method="GET",route="/api/urls",status="200"} 1`))
	assert.True(t, strings.Contains(body, "kazi_http_request_duration_seconds_bucket"))
	assert.True(t, strings.Contains(body, "kazi_realtime_connections 3"))
}
