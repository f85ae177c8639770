package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Candidates handled by ingestion, by result: created/updated/skipped
	MistakesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mistake_service_mistakes_recorded_total",
			Help: "Candidate mistakes handled by ingestion",
		},
		[]string{"result"},
	)

	PracticeAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mistake_service_practice_attempts_total",
			Help: "Practice results recorded",
		},
		[]string{"outcome"}, // success/failure
	)

	MistakesMastered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mistake_service_mistakes_mastered_total",
			Help: "Mistakes that transitioned into the mastered state",
		},
	)

	PracticeConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mistake_service_practice_conflicts_total",
			Help: "Practice updates retried after a concurrent write",
		},
	)

	FeedbackMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mistake_service_feedback_messages_total",
			Help: "Feedback events consumed from the work queue",
		},
		[]string{"action"}, // ack/requeue/duplicate/rejected
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mistake_service_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
