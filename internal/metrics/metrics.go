package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OTPIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "Total number of one-time passwords issued",
		},
	)

	OTPVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total number of OTP verification attempts",
		},
		[]string{"result"},
	)

	OTPPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otp_purged_total",
			Help: "Total number of expired OTP records removed",
		},
	)

	MailDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mail_deliveries_total",
			Help: "Total number of outbound email deliveries",
		},
		[]string{"result"},
	)

	BoardMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "board_mutations_total",
			Help: "Total number of board mutations",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		OTPIssued,
		OTPVerifications,
		OTPPurged,
		MailDeliveries,
		BoardMutations,
	)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Result collapses an error into the "ok"/"error" label used by the
// outcome counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
