package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the collectors the API exposes on /metrics.
type Registry struct {
	reg *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	messagesSent *prometheus.CounterVec
	readBatches  prometheus.Counter
	uploads      *prometheus.CounterVec
	adminActions *prometheus.CounterVec
	streams      prometheus.Gauge
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nightvibe",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightvibe",
			Name:      "messages_sent_total",
			Help:      "Messages sent, split by anonymity.",
		}, []string{"anonymous"}),
		readBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nightvibe",
			Name:      "read_batches_committed_total",
			Help:      "Mark-read batches committed to the document store.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightvibe",
			Name:      "photo_uploads_total",
			Help:      "Photo uploads by result.",
		}, []string{"result"}),
		adminActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nightvibe",
			Name:      "admin_actions_total",
			Help:      "Admin console mutations by action.",
		}, []string{"action"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nightvibe",
			Name:      "message_streams_open",
			Help:      "Open realtime message streams.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpDuration,
		r.messagesSent,
		r.readBatches,
		r.uploads,
		r.adminActions,
		r.streams,
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func (r *Registry) MessageSent(anonymous bool) {
	if r == nil {
		return
	}
	r.messagesSent.WithLabelValues(strconv.FormatBool(anonymous)).Inc()
}

func (r *Registry) ReadBatchCommitted() {
	if r == nil {
		return
	}
	r.readBatches.Inc()
}

func (r *Registry) Upload(result string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(result).Inc()
}

func (r *Registry) AdminAction(action string) {
	if r == nil {
		return
	}
	r.adminActions.WithLabelValues(action).Inc()
}

func (r *Registry) StreamOpened() {
	if r != nil {
		r.streams.Inc()
	}
}

func (r *Registry) StreamClosed() {
	if r != nil {
		r.streams.Dec()
	}
}
