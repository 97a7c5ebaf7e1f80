package metricsx

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_total",
			Help: "Commands handled by aggregate type and outcome.",
		},
		[]string{"aggregate", "command", "outcome"},
	)
	commandConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "command_conflicts_total",
			Help: "Optimistic concurrency conflicts observed while appending.",
		},
		[]string{"aggregate"},
	)
	commandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Command execution latency in seconds, retries included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aggregate"},
	)
	eventsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_events_appended_total",
			Help: "Domain events appended to the event store.",
		},
		[]string{"type"},
	)
	subscriberFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_subscriber_failures_total",
			Help: "Subscriber callbacks that returned an error.",
		},
		[]string{"subscriber"},
	)
	integrationPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_events_published_total",
			Help: "Integration events delivered to the bus by topic.",
		},
		[]string{"topic"},
	)
	integrationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_publish_failures_total",
			Help: "Integration events that exhausted publish retries.",
		},
		[]string{"topic"},
	)
	deadLetters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_messages_total",
			Help: "Messages routed to the dead-letter topic.",
		},
		[]string{"origin"},
	)
	inboundConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbound_events_total",
			Help: "Inbound integration events by topic and outcome.",
		},
		[]string{"topic", "outcome"},
	)
	recurrenceGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "recurrence_occurrences_generated_total",
			Help: "Task occurrences generated by the recurrence scheduler.",
		},
	)
	recurrenceRunLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recurrence_run_duration_seconds",
			Help:    "Recurrence scheduler run latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	kafkaConsumerLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kafka_consumer_lag",
			Help: "Kafka consumer lag by topic.",
		},
		[]string{"topic", "group"},
	)
	influxWriteFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "influx_write_failures_total",
			Help: "Total InfluxDB write failures.",
		},
	)
	asynqQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asynq_queue_depth",
			Help: "Asynq queue depth by queue.",
		},
		[]string{"queue"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpLatency,
			commandsTotal, commandConflicts, commandLatency, eventsAppended, subscriberFailures,
			integrationPublished, integrationFailures, deadLetters, inboundConsumed,
			recurrenceGenerated, recurrenceRunLatency,
			kafkaConsumerLag, influxWriteFailures, asynqQueueDepth,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		status := strconv.Itoa(lrw.statusCode)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(r.Method, path, status).Inc()
		httpLatency.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

func ObserveCommand(aggregate string, command string, outcome string, d time.Duration) {
	commandsTotal.WithLabelValues(aggregate, command, outcome).Inc()
	commandLatency.WithLabelValues(aggregate).Observe(d.Seconds())
}

func IncCommandConflict(aggregate string) {
	commandConflicts.WithLabelValues(aggregate).Inc()
}

func IncEventsAppended(eventType string) {
	eventsAppended.WithLabelValues(eventType).Inc()
}

func IncSubscriberFailure(subscriber string) {
	subscriberFailures.WithLabelValues(subscriber).Inc()
}

func IncIntegrationPublished(topic string) {
	integrationPublished.WithLabelValues(topic).Inc()
}

func IncIntegrationFailure(topic string) {
	integrationFailures.WithLabelValues(topic).Inc()
}

func IncDeadLetter(origin string) {
	deadLetters.WithLabelValues(origin).Inc()
}

func IncInbound(topic string, outcome string) {
	inboundConsumed.WithLabelValues(topic, outcome).Inc()
}

func IncRecurrenceGenerated() {
	recurrenceGenerated.Inc()
}

func ObserveRecurrenceRun(d time.Duration) {
	recurrenceRunLatency.Observe(d.Seconds())
}

func SetKafkaLag(topic string, group string, lag int64) {
	kafkaConsumerLag.WithLabelValues(topic, group).Set(float64(lag))
}

func IncInfluxWriteFailure() {
	influxWriteFailures.Inc()
}

func SetAsynqQueueDepth(queue string, depth int) {
	asynqQueueDepth.WithLabelValues(queue).Set(float64(depth))
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
