package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_started_total",
			Help: "Total number of quiz sessions started",
		},
	)

	SessionsSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_sessions_submitted_total",
			Help: "Total number of quiz sessions submitted",
		},
	)

	AnswersSelected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_answers_selected_total",
			Help: "Total number of accepted answer selections",
		},
	)

	ScoresSaved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_scores_saved_total",
			Help: "Total number of score records appended to the store",
		},
	)

	StoreErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_store_errors_total",
			Help: "Total number of failed score store operations",
		},
		[]string{"operation"},
	)

	PoolFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quiz_pool_fallbacks_total",
			Help: "Total number of times the built-in question pool replaced the bank",
		},
	)
)

var registerOnce sync.Once

// Init registers the quiz collectors with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SessionsStarted,
			SessionsSubmitted,
			AnswersSelected,
			ScoresSaved,
			StoreErrors,
			PoolFallbacks,
		)
	})
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
