package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_events_published_total",
			Help: "Total number of events published, by channel and event type.",
		},
		[]string{"channel", "event_type"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "social_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
	realtimeSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_realtime_subscribers",
			Help: "Number of open realtime event streams.",
		},
	)
	metricsOnce sync.Once
)

const (
	ChannelAudit    = "audit"
	ChannelBroker   = "broker"
	ChannelRealtime = "realtime"
)

func InitMetrics(reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		reg.MustRegister(httpRequestsTotal, httpRequestDuration, eventsPublishedTotal, amqpPublishErrorsTotal, realtimeSubscribers)
	})
}

func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func IncEventPublished(channel, eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	eventsPublishedTotal.WithLabelValues(channel, eventType).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}

func AddRealtimeSubscribers(delta float64) {
	realtimeSubscribers.Add(delta)
}
