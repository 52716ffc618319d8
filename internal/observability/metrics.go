package observability

import (
	"errors"
	"net/http"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload and email outcomes used as the "result" label.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
)

// MetricsCollector wraps the Prometheus metrics of the HTTP API and the gRPC probe
type MetricsCollector struct {
	uploads       *prometheus.CounterVec
	uploadedFiles prometheus.Counter
	uploadedBytes prometheus.Counter
	emails        *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	serverMetrics *grpcprom.ServerMetrics
	handler       http.Handler
}

// InitMetrics registers all collectors with reg. Collectors that are already
// registered (tests, restarts) are reused.
func InitMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*MetricsCollector, error) {
	mc := &MetricsCollector{}
	var err error

	if mc.uploads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weshare",
		Name:      "uploads_total",
		Help:      "Upload requests by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if mc.uploadedFiles, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weshare",
		Name:      "uploaded_files_total",
		Help:      "Files stored by successful uploads.",
	})); err != nil {
		return nil, err
	}
	if mc.uploadedBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "weshare",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes stored by successful uploads.",
	})); err != nil {
		return nil, err
	}
	if mc.emails, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weshare",
		Name:      "link_emails_total",
		Help:      "Share link emails by result.",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if mc.httpDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "weshare",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"method", "route", "code"})); err != nil {
		return nil, err
	}
	if mc.serverMetrics, err = register(reg, grpcprom.NewServerMetrics(
		grpcprom.WithServerHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10}),
		),
	)); err != nil {
		return nil, err
	}

	mc.handler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return mc, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (mc *MetricsCollector) ObserveUpload(result string, files int, bytes int64) {
	mc.uploads.WithLabelValues(result).Inc()
	if result == ResultSuccess {
		mc.uploadedFiles.Add(float64(files))
		mc.uploadedBytes.Add(float64(bytes))
	}
}

func (mc *MetricsCollector) ObserveEmail(result string) {
	mc.emails.WithLabelValues(result).Inc()
}

func (mc *MetricsCollector) ObserveHTTP(method, route, code string, d time.Duration) {
	mc.httpDuration.WithLabelValues(method, route, code).Observe(d.Seconds())
}

// GetServerMetrics returns the gRPC server metrics
func (mc *MetricsCollector) GetServerMetrics() *grpcprom.ServerMetrics {
	return mc.serverMetrics
}

// GetHandler returns the HTTP handler for /metrics endpoint
func (mc *MetricsCollector) GetHandler() http.Handler {
	return mc.handler
}

// NewMetricsServer serves /metrics and /health on addr
func NewMetricsServer(addr string, mc *MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", mc.GetHandler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
