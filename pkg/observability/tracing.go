// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for ACP connections.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/sotayamashita/agent-client-protocol-vscode"

// Span attribute keys
const (
	AttrMethod    = attribute.Key("acp.method")
	AttrKind      = attribute.Key("acp.kind")
	AttrErrorCode = attribute.Key("acp.error.code")
	AttrSessionID = attribute.Key("acp.session_id")
	AttrPayload   = attribute.Key("acp.params")
)

// ExporterType selects where spans go
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	// ExporterTypeNoop records spans but exports nothing
	ExporterTypeNoop ExporterType = "noop"
)

// TracingConfig configures OpenTelemetry tracing. Zero values get
// defaults: service "acp", sample rate 1 and the noop exporter.
type TracingConfig struct {
	ServiceName        string
	ServiceVersion     string
	Environment        string
	ResourceAttributes map[string]string

	ExporterType ExporterType
	// Endpoint is the OTLP collector address, host:port
	Endpoint string
	Headers  map[string]string
	Insecure bool
	// Exporter replaces ExporterType, e.g. an in-memory exporter in
	// tests. Spans are then exported as soon as they end.
	Exporter     sdktrace.SpanExporter
	BatchTimeout time.Duration

	SampleRate float64
	// AlwaysSample and NeverSample override SampleRate per ACP method.
	// session/update is the usual candidate for NeverSample.
	AlwaysSample []string
	NeverSample  []string

	// SetGlobal installs the provider with otel.SetTracerProvider
	SetGlobal bool
}

func (c TracingConfig) withDefaults() TracingConfig {
	if c.ServiceName == "" {
		c.ServiceName = "acp"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "unknown"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ExporterType == "" {
		c.ExporterType = ExporterTypeNoop
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	return c
}

// TracingProvider creates one span per ACP call
type TracingProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewTracingProvider builds a provider from config
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	config = config.withDefaults()

	var export sdktrace.TracerProviderOption
	if config.Exporter != nil {
		export = sdktrace.WithSyncer(config.Exporter)
	} else {
		exporter, err := newExporter(config)
		if err != nil {
			return nil, err
		}
		export = sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout))
	}

	tp := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(newResource(config)),
		sdktrace.WithSampler(newMethodSampler(config)),
	)
	if config.SetGlobal {
		otel.SetTracerProvider(tp)
	}
	return &TracingProvider{provider: tp, tracer: tp.Tracer(instrumentationName)}, nil
}

func newResource(config TracingConfig) *resource.Resource {
	attrs := make([]attribute.KeyValue, 0, 3+len(config.ResourceAttributes))
	attrs = append(attrs,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	)
	for k, v := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	var client otlptrace.Client
	switch config.ExporterType {
	case ExporterTypeNoop:
		return tracetest.NewNoopExporter(), nil
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint), otlptracegrpc.WithHeaders(config.Headers)}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(config.Endpoint), otlptracehttp.WithHeaders(config.Headers)}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", config.ExporterType)
	}
	exporter, err := otlptrace.New(context.Background(), client)
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", config.ExporterType, err)
	}
	return exporter, nil
}

// StartMethodSpan starts the span of one ACP call, named "acp/<method>".
// Use SpanKindServer for inbound calls and SpanKindClient for outbound ones.
func (tp *TracingProvider) StartMethodSpan(ctx context.Context, method string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		AttrMethod.String(method),
		semconv.RPCSystemKey.String("jsonrpc"),
		semconv.RPCMethod(method),
	)
	return tp.tracer.Start(ctx, "acp/"+method, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

// EndSpan sets the span status from err and ends it. code is the JSON-RPC
// error code, or 0.
func EndSpan(span trace.Span, err error, code int) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if code != 0 {
		span.SetAttributes(AttrErrorCode.Int(code))
	}
}

func (tp *TracingProvider) ForceFlush(ctx context.Context) error {
	return tp.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider; only the first call does work
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.shutdownOnce.Do(func() {
		tp.shutdownErr = tp.provider.Shutdown(ctx)
	})
	return tp.shutdownErr
}

// methodSampler applies per-method overrides before falling back to a
// ratio sampler
type methodSampler struct {
	overrides map[string]sdktrace.SamplingDecision
	fallback  sdktrace.Sampler
	rate      float64
}

func newMethodSampler(config TracingConfig) sdktrace.Sampler {
	var fallback sdktrace.Sampler
	switch {
	case config.SampleRate >= 1:
		fallback = sdktrace.AlwaysSample()
	case config.SampleRate <= 0:
		fallback = sdktrace.NeverSample()
	default:
		fallback = sdktrace.TraceIDRatioBased(config.SampleRate)
	}
	if len(config.AlwaysSample)+len(config.NeverSample) == 0 {
		return fallback
	}

	s := &methodSampler{
		overrides: make(map[string]sdktrace.SamplingDecision),
		fallback:  fallback,
		rate:      config.SampleRate,
	}
	for _, m := range config.AlwaysSample {
		s.overrides[m] = sdktrace.RecordAndSample
	}
	// never wins over always
	for _, m := range config.NeverSample {
		s.overrides[m] = sdktrace.Drop
	}
	return s
}

func (s *methodSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	method := p.Name
	for _, kv := range p.Attributes {
		if kv.Key == AttrMethod {
			method = kv.Value.AsString()
			break
		}
	}
	decision, ok := s.overrides[method]
	if !ok {
		return s.fallback.ShouldSample(p)
	}
	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
	}
}

func (s *methodSampler) Description() string {
	return fmt.Sprintf("ACPMethodSampler{rate=%.2f,overrides=%d}", s.rate, len(s.overrides))
}
