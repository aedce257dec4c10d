package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// PasswordResetEvents counts reset flow outcomes (issued, no_match, mail_sent, mail_failed, reset_complete).
	PasswordResetEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "password_reset_events_total",
			Help: "Password reset flow events by kind",
		},
		[]string{"event"},
	)

	// ResetTokensPurged counts expired reset tokens removed by the sweeper.
	ResetTokensPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "password_reset_tokens_purged_total",
			Help: "Expired password reset tokens deleted by the sweeper",
		},
	)

	// SessionsCreated counts successful logins that opened a session.
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Sessions created by successful logins",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, PasswordResetEvents, ResetTokensPurged, SessionsCreated)
	})
}

// NormalizePath replaces numeric path segments with {id} for callers that
// record raw paths, e.g. /diaries/123 -> /diaries/{id}. Route patterns pass
// through unchanged.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// ObservePasswordReset counts one reset flow event.
func ObservePasswordReset(event string) {
	PasswordResetEvents.WithLabelValues(event).Inc()
}

// AddResetTokensPurged adds n to the purged tokens counter.
func AddResetTokensPurged(n int64) {
	if n > 0 {
		ResetTokensPurged.Add(float64(n))
	}
}

// IncSessionsCreated counts one new session.
func IncSessionsCreated() {
	SessionsCreated.Inc()
}
