package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	acperrors "github.com/sotayamashita/agent-client-protocol-vscode/pkg/errors"
	"github.com/sotayamashita/agent-client-protocol-vscode/pkg/protocol"
)

// Status label values
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// MetricsConfig configures the metrics provider
type MetricsConfig struct {
	// Service identification
	ServiceName    string
	ServiceVersion string

	// HTTP endpoint served by Start
	MetricsPath string // default: /metrics
	Addr        string // default: :9090

	// Metric options
	Namespace        string    // Prometheus namespace (default: acp)
	Subsystem        string    // Prometheus subsystem
	HistogramBuckets []float64 // Latency buckets in milliseconds

	// Labels to add to all metrics
	ConstLabels prometheus.Labels

	// Registry to register with. A fresh registry with the Go and process
	// collectors is created when nil.
	Registry *prometheus.Registry
}

// MetricsProvider records connection metrics
type MetricsProvider interface {
	// Inbound calls handled by this side
	RecordIncomingRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordIncomingNotification(ctx context.Context, method, status string, duration time.Duration)

	// Outbound calls sent to the peer
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordNotification(ctx context.Context, method, status string, duration time.Duration)

	// RecordError counts a failed call by JSON-RPC error code
	RecordError(ctx context.Context, direction, method string, code int)

	// RecordTransportEvent counts a connection event such as a dropped response
	RecordTransportEvent(ctx context.Context, event string)
	RecordActiveConnections(ctx context.Context, delta int)

	// Handler serves the registry in the Prometheus text format
	Handler() http.Handler

	// Management
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	incomingRequestDuration      *prometheus.HistogramVec
	incomingRequestTotal         *prometheus.CounterVec
	incomingNotificationDuration *prometheus.HistogramVec
	incomingNotificationTotal    *prometheus.CounterVec

	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec

	errorTotal          *prometheus.CounterVec
	transportEventTotal *prometheus.CounterVec
	activeConnections   prometheus.Gauge
}

// NewMetricsProvider creates a new Prometheus metrics provider
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "acp"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.Addr == "" {
		config.Addr = ":9090"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 60000}
	}

	constLabels := prometheus.Labels{}
	for k, v := range config.ConstLabels {
		constLabels[k] = v
	}
	if config.ServiceName != "" {
		constLabels["service"] = config.ServiceName
	}
	if config.ServiceVersion != "" {
		constLabels["version"] = config.ServiceVersion
	}
	config.ConstLabels = constLabels

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	provider := &PrometheusMetricsProvider{
		config:   config,
		registry: registry,
	}
	provider.initializeMetrics()

	if err := provider.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	return provider, nil
}

func (p *PrometheusMetricsProvider) histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        help,
		Buckets:     p.config.HistogramBuckets,
		ConstLabels: p.config.ConstLabels,
	}, labels)
}

func (p *PrometheusMetricsProvider) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: p.config.ConstLabels,
	}, labels)
}

func (p *PrometheusMetricsProvider) initializeMetrics() {
	p.incomingRequestDuration = p.histogram("incoming_request_duration_milliseconds",
		"Time spent handling requests from the peer in milliseconds", "method", "status")
	p.incomingRequestTotal = p.counter("incoming_request_total",
		"Total number of requests received from the peer", "method", "status")
	p.incomingNotificationDuration = p.histogram("incoming_notification_duration_milliseconds",
		"Time spent handling notifications from the peer in milliseconds", "method", "status")
	p.incomingNotificationTotal = p.counter("incoming_notification_total",
		"Total number of notifications received from the peer", "method", "status")

	p.requestDuration = p.histogram("request_duration_milliseconds",
		"Round trip time of requests sent to the peer in milliseconds", "method", "status")
	p.requestTotal = p.counter("request_total",
		"Total number of requests sent to the peer", "method", "status")
	p.notificationTotal = p.counter("notification_total",
		"Total number of notifications sent to the peer", "method", "status")

	p.errorTotal = p.counter("error_total",
		"Total number of failed calls by error code", "direction", "method", "code", "name")
	p.transportEventTotal = p.counter("transport_event_total",
		"Total number of connection events such as dropped messages", "event")

	p.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   p.config.Namespace,
		Subsystem:   p.config.Subsystem,
		Name:        "active_connections",
		Help:        "Number of running connections",
		ConstLabels: p.config.ConstLabels,
	})
}

func (p *PrometheusMetricsProvider) registerMetrics() error {
	for _, collector := range []prometheus.Collector{
		p.incomingRequestDuration,
		p.incomingRequestTotal,
		p.incomingNotificationDuration,
		p.incomingNotificationTotal,
		p.requestDuration,
		p.requestTotal,
		p.notificationTotal,
		p.errorTotal,
		p.transportEventTotal,
		p.activeConnections,
	} {
		if err := p.registry.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}

// Registry returns the registry the metrics are registered with
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

// RecordIncomingRequest records a handled request
func (p *PrometheusMetricsProvider) RecordIncomingRequest(ctx context.Context, method, status string, duration time.Duration) {
	method = methodLabel(method)
	p.incomingRequestDuration.WithLabelValues(method, status).Observe(milliseconds(duration))
	p.incomingRequestTotal.WithLabelValues(method, status).Inc()
}

// RecordIncomingNotification records a handled notification
func (p *PrometheusMetricsProvider) RecordIncomingNotification(ctx context.Context, method, status string, duration time.Duration) {
	method = methodLabel(method)
	p.incomingNotificationDuration.WithLabelValues(method, status).Observe(milliseconds(duration))
	p.incomingNotificationTotal.WithLabelValues(method, status).Inc()
}

// RecordRequest records an outgoing request
func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	method = methodLabel(method)
	p.requestDuration.WithLabelValues(method, status).Observe(milliseconds(duration))
	p.requestTotal.WithLabelValues(method, status).Inc()
}

// RecordNotification records an outgoing notification
func (p *PrometheusMetricsProvider) RecordNotification(ctx context.Context, method, status string, duration time.Duration) {
	p.notificationTotal.WithLabelValues(methodLabel(method), status).Inc()
}

// RecordError counts a failed call
func (p *PrometheusMetricsProvider) RecordError(ctx context.Context, direction, method string, code int) {
	p.errorTotal.WithLabelValues(direction, methodLabel(method), strconv.Itoa(code), acperrors.CodeName(code)).Inc()
}

// RecordTransportEvent counts a connection event
func (p *PrometheusMetricsProvider) RecordTransportEvent(ctx context.Context, event string) {
	p.transportEventTotal.WithLabelValues(event).Inc()
}

// RecordActiveConnections records the change in running connections
func (p *PrometheusMetricsProvider) RecordActiveConnections(ctx context.Context, delta int) {
	p.activeConnections.Add(float64(delta))
}

// Handler serves the registry
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Start serves the metrics endpoint on the configured address
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return errors.New("metrics server already started")
	}

	ln, err := net.Listen("tcp", p.config.Addr)
	if err != nil {
		return fmt.Errorf("metrics listen on %s: %w", p.config.Addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())
	p.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	p.listener = ln

	go func(srv *http.Server) {
		_ = srv.Serve(ln)
	}(p.server)
	return nil
}

// Addr returns the address the metrics server listens on, or "" before Start
func (p *PrometheusMetricsProvider) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Shutdown gracefully shuts down the metrics server
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server, p.listener = nil, nil
	p.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// methodLabel keeps label cardinality bounded: every extension method is
// counted under one label
func methodLabel(method string) string {
	if protocol.IsExtension(method) {
		return protocol.ExtensionPrefix + "ext"
	}
	return method
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var _ MetricsProvider = (*PrometheusMetricsProvider)(nil)
