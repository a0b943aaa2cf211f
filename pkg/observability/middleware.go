package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/transport"
)

// Error directions used as metric labels
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// ObservabilityConfig configures an Observer
type ObservabilityConfig struct {
	EnableTracing bool
	TracingConfig TracingConfig

	EnableMetrics bool
	MetricsConfig MetricsConfig

	// CaptureRequestPayload records inbound params on spans, truncated to
	// MaxPayloadBytes
	CaptureRequestPayload bool
	MaxPayloadBytes       int
}

// Observer records metrics and spans for the calls of one or more
// connections. Install it with Options.
type Observer struct {
	config  ObservabilityConfig
	tracer  *TracingProvider
	metrics MetricsProvider
}

// NewObserver creates the enabled providers
func NewObserver(config ObservabilityConfig) (*Observer, error) {
	o := &Observer{config: config}
	if o.config.MaxPayloadBytes <= 0 {
		o.config.MaxPayloadBytes = 1024
	}

	if config.EnableTracing {
		t, err := NewTracingProvider(config.TracingConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracing provider: %w", err)
		}
		o.tracer = t
	}
	if config.EnableMetrics {
		m, err := NewMetricsProvider(config.MetricsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		o.metrics = m
	}
	return o, nil
}

// NewObserverWith builds an observer around existing providers. Either may be nil.
func NewObserverWith(tracer *TracingProvider, metrics MetricsProvider) *Observer {
	return &Observer{
		config:  ObservabilityConfig{EnableTracing: tracer != nil, EnableMetrics: metrics != nil, MaxPayloadBytes: 1024},
		tracer:  tracer,
		metrics: metrics,
	}
}

// Tracer returns the tracing provider, or nil when tracing is disabled
func (o *Observer) Tracer() *TracingProvider {
	return o.tracer
}

// Metrics returns the metrics provider, or nil when metrics are disabled
func (o *Observer) Metrics() MetricsProvider {
	return o.metrics
}

// Options returns the connection options that install the observer
func (o *Observer) Options() []transport.Option {
	return []transport.Option{
		transport.WithMiddleware(o.Middleware()),
		transport.WithOutboundObserver(o),
		transport.WithEventHook(o.RecordEvent),
	}
}

// Middleware observes inbound calls
func (o *Observer) Middleware() transport.Middleware {
	return func(next transport.Handler) transport.Handler {
		return &observedHandler{observer: o, next: next}
	}
}

// RecordEvent implements transport.EventHook
func (o *Observer) RecordEvent(ev transport.Event) {
	if o.metrics != nil {
		o.metrics.RecordTransportEvent(context.Background(), string(ev))
	}
}

// ConnectionStarted tracks a running connection until the returned function
// is called
func (o *Observer) ConnectionStarted(ctx context.Context) func() {
	if o.metrics == nil {
		return func() {}
	}
	o.metrics.RecordActiveConnections(ctx, 1)
	return func() { o.metrics.RecordActiveConnections(ctx, -1) }
}

// StartOutbound implements transport.OutboundObserver
func (o *Observer) StartOutbound(ctx context.Context, kind protocol.MessageKind, method string) (context.Context, func(error)) {
	start := time.Now()
	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.StartMethodSpan(ctx, method, trace.SpanKindClient, AttrKind.String(kind.String()))
	}

	return ctx, func(err error) {
		code := errorCode(err)
		if span != nil {
			EndSpan(span, err, code)
		}
		if o.metrics == nil {
			return
		}
		status := statusOf(err)
		if kind == protocol.KindNotification {
			o.metrics.RecordNotification(ctx, method, status, time.Since(start))
		} else {
			o.metrics.RecordRequest(ctx, method, status, time.Since(start))
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			o.metrics.RecordError(ctx, DirectionOutbound, method, code)
		}
	}
}

// Shutdown stops the providers
func (o *Observer) Shutdown(ctx context.Context) error {
	var errs []error
	if o.tracer != nil {
		errs = append(errs, o.tracer.Shutdown(ctx))
	}
	if o.metrics != nil {
		errs = append(errs, o.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

type observedHandler struct {
	observer *Observer
	next     transport.Handler
}

func (h *observedHandler) HandleRequest(ctx context.Context, method string, params json.RawMessage) (interface{}, error) {
	ctx, finish := h.observer.startInbound(ctx, protocol.KindRequest, method, params)
	result, err := h.next.HandleRequest(ctx, method, params)
	finish(err)
	return result, err
}

func (h *observedHandler) HandleNotification(ctx context.Context, method string, params json.RawMessage) error {
	ctx, finish := h.observer.startInbound(ctx, protocol.KindNotification, method, params)
	err := h.next.HandleNotification(ctx, method, params)
	finish(err)
	return err
}

func (o *Observer) startInbound(ctx context.Context, kind protocol.MessageKind, method string, params json.RawMessage) (context.Context, func(error)) {
	start := time.Now()
	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.StartMethodSpan(ctx, method, trace.SpanKindServer, AttrKind.String(kind.String()))
		if sessionID := sessionIDOf(params); sessionID != "" {
			span.SetAttributes(AttrSessionID.String(sessionID))
		}
		if o.config.CaptureRequestPayload && len(params) > 0 {
			span.SetAttributes(AttrPayload.String(truncate(string(params), o.config.MaxPayloadBytes)))
		}
	}

	return ctx, func(err error) {
		code := errorCode(err)
		if span != nil {
			EndSpan(span, err, code)
		}
		if o.metrics == nil {
			return
		}
		status := statusOf(err)
		if kind == protocol.KindNotification {
			o.metrics.RecordIncomingNotification(ctx, method, status, time.Since(start))
		} else {
			o.metrics.RecordIncomingRequest(ctx, method, status, time.Since(start))
		}
		if err != nil {
			o.metrics.RecordError(ctx, DirectionInbound, method, code)
		}
	}
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// errorCode is the JSON-RPC code the error maps to on the wire
func errorCode(err error) int {
	if err == nil {
		return 0
	}
	return acperrors.Classify(err).Code()
}

func sessionIDOf(params json.RawMessage) string {
	var probe struct {
		SessionID string `json:"sessionId"`
	}
	if len(params) == 0 || json.Unmarshal(params, &probe) != nil {
		return ""
	}
	return probe.SessionID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
