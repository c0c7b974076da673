// Package metrics exposes Prometheus collectors for the HTTP surface, the
// editor and the upload boundary.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarcoPoloResearchLab/folio/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "folio"

const unmatchedRoute = "unmatched"

// Metrics owns a registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	editorOperations    *prometheus.CounterVec
	editorBusy          prometheus.Gauge
	uploadedBytes       prometheus.Counter
	uploadedFiles       *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the
// process and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		editorOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "editor_operations_total",
			Help:      "Editor operations by outcome.",
		}, []string{"operation", "outcome"}),
		editorBusy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "editor_busy",
			Help:      "1 while a save, load or image ingestion is in flight.",
		}),
		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes accepted by the upload boundary.",
		}),
		uploadedFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_files_total",
			Help:      "Files offered to the upload boundary by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(started).Seconds())
	}
}

// ObserveOperation counts an editor operation. Storage failures are labelled
// with their kind.
func (m *Metrics) ObserveOperation(operation string, err error) {
	m.editorOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// SetBusy mirrors the editor busy indicator.
func (m *Metrics) SetBusy(busy bool) {
	if busy {
		m.editorBusy.Set(1)
		return
	}
	m.editorBusy.Set(0)
}

// ObserveUpload counts one file offered to the upload boundary.
func (m *Metrics) ObserveUpload(size int64, err error) {
	if err != nil {
		m.uploadedFiles.WithLabelValues("rejected").Inc()
		return
	}
	m.uploadedFiles.WithLabelValues("accepted").Inc()
	m.uploadedBytes.Add(float64(size))
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		return string(storageErr.Kind)
	}
	return "error"
}
