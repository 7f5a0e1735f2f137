// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardDraftsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_drafts_active",
			Help: "Number of application drafts held in memory",
		},
	)

	WizardStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Step changes by direction and target step",
		},
		[]string{"direction", "step"},
	)

	WizardValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_validation_failures_total",
			Help: "Fields that blocked a step change or submission",
		},
		[]string{"step", "field"},
	)

	WizardSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_submissions_total",
			Help: "Submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	WizardSubmitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wizard_submit_duration_seconds",
			Help:    "Time spent waiting on the loan-application endpoint",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	WizardDraftsDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_drafts_discarded_total",
			Help: "Drafts discarded by reason",
		},
		[]string{"reason"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)
