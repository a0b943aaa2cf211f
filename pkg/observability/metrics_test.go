package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *PrometheusMetricsProvider {
	t.Helper()
	m, err := NewMetricsProvider(MetricsConfig{
		ServiceName: "test",
		Registry:    prometheus.NewRegistry(),
		Addr:        "127.0.0.1:0",
	})
	require.NoError(t, err)
	return m
}

func TestMetricsRecordCalls(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordIncomingRequest(ctx, "session/prompt", StatusOK, 12*time.Millisecond)
	m.RecordIncomingRequest(ctx, "session/prompt", StatusOK, 3*time.Millisecond)
	m.RecordIncomingRequest(ctx, "session/prompt", StatusError, time.Millisecond)
	m.RecordIncomingNotification(ctx, "session/cancel", StatusOK, time.Millisecond)
	m.RecordRequest(ctx, "fs/read_text_file", StatusOK, time.Millisecond)
	m.RecordNotification(ctx, "session/update", StatusOK, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.incomingRequestTotal.WithLabelValues("session/prompt", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.incomingRequestTotal.WithLabelValues("session/prompt", StatusError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.incomingNotificationTotal.WithLabelValues("session/cancel", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestTotal.WithLabelValues("fs/read_text_file", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationTotal.WithLabelValues("session/update", StatusOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.incomingRequestDuration))
}

func TestMetricsExtensionMethodsShareLabel(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordIncomingRequest(ctx, "_vendor/one", StatusOK, 0)
	m.RecordIncomingRequest(ctx, "_vendor/two", StatusOK, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.incomingRequestTotal.WithLabelValues("_ext", StatusOK)))
}

func TestMetricsErrorsAndEvents(t *testing.T) {
	m := newTestMetrics(t)
	ctx := context.Background()

	m.RecordError(ctx, DirectionInbound, "session/new", -32602)
	m.RecordError(ctx, DirectionOutbound, "fs/read_text_file", 1234)
	m.RecordTransportEvent(ctx, "unknown_response")
	m.RecordActiveConnections(ctx, 1)
	m.RecordActiveConnections(ctx, 1)
	m.RecordActiveConnections(ctx, -1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorTotal.WithLabelValues(DirectionInbound, "session/new", "-32602", "InvalidParams")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorTotal.WithLabelValues(DirectionOutbound, "fs/read_text_file", "1234", "PeerError")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportEventTotal.WithLabelValues("unknown_response")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeConnections))
}

func TestMetricsServer(t *testing.T) {
	m := newTestMetrics(t)
	m.RecordTransportEvent(context.Background(), "parse_error")

	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Shutdown(context.Background()) }()
	assert.Error(t, m.Start(context.Background()))

	resp, err := http.Get("http://" + m.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `acp_transport_event_total{event="parse_error",service="test"} 1`), string(body))
}
