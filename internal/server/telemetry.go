// internal/server/telemetry.go
package server

import (
	"context"

	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/common/metrics"
	"loan-wizard/internal/common/observability"
	"loan-wizard/internal/wizard"
)

// Telemetry turns controller events into metrics and audit log lines.
func Telemetry(obs *observability.Observability, log logger.Logger) wizard.Subscriber {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return func(ev wizard.Event) {
		switch ev.Type {
		case wizard.EventStepAdvanced:
			metrics.WizardStepTransitions.WithLabelValues("forward", ev.To.String()).Inc()

		case wizard.EventStepReturned:
			metrics.WizardStepTransitions.WithLabelValues("back", ev.To.String()).Inc()

		case wizard.EventValidationFailed:
			for _, field := range ev.Errors.Fields() {
				metrics.WizardValidationFailures.WithLabelValues(ev.To.String(), field).Inc()
			}

		case wizard.EventSubmitted:
			recordSubmission(obs, ev, "submitted")
			log.Info("application submitted", map[string]interface{}{
				"draftId":       ev.DraftID,
				"tenantId":      ev.Session.TenantID,
				"applicationId": ev.Receipt.ApplicationID,
				"durationMs":    ev.Duration.Milliseconds(),
			})

		case wizard.EventSubmitFailed:
			outcome := "failed"
			if ev.Failure != nil && ev.Failure.Kind == wizard.SubmissionErrorFieldMap {
				outcome = "rejected"
			}
			recordSubmission(obs, ev, outcome)
		}
	}
}

func recordSubmission(obs *observability.Observability, ev wizard.Event, outcome string) {
	metrics.WizardSubmissions.WithLabelValues(outcome).Inc()
	metrics.WizardSubmitDuration.Observe(ev.Duration.Seconds())
	if obs != nil {
		obs.RecordSubmission(context.Background(), ev.Duration, outcome, ev.Session.TenantID)
	}
}
