package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector exported on /metrics.
var Registry = prometheus.NewRegistry()

var (
	factory = promauto.With(Registry)

	submissionsStarted = factory.NewCounter(prometheus.CounterOpts{
		Name: "submissions_started_total",
		Help: "Total submissions that passed validation and were dispatched",
	})
	submissionsCompleted = factory.NewCounter(prometheus.CounterOpts{
		Name: "submissions_completed_total",
		Help: "Total submissions that produced a result",
	})
	submissionsFailed = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_failed_total",
		Help: "Total submissions that failed, by reason",
	}, []string{"reason"})
	quotaRejections = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "quota_rejections_total",
		Help: "Total submissions rejected by the daily quota, by identity class",
	}, []string{"class"})
	jobExtractions = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "job_extractions_total",
		Help: "Total job-link extractions, by outcome",
	}, []string{"outcome"})
	submissionDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "submission_duration_ms",
		Help:    "Time spent waiting for the analysis endpoint in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000},
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func IncSubmissionStarted() {
	submissionsStarted.Inc()
}

func IncSubmissionCompleted() {
	submissionsCompleted.Inc()
}

func IncSubmissionFailed(reason string) {
	submissionsFailed.WithLabelValues(reason).Inc()
}

func IncQuotaRejection(class string) {
	quotaRejections.WithLabelValues(class).Inc()
}

func IncJobExtraction(outcome string) {
	jobExtractions.WithLabelValues(outcome).Inc()
}

// ObserveSubmissionDuration records how long the analysis call took.
func ObserveSubmissionDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	submissionDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}
