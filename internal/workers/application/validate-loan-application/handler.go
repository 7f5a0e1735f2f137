// internal/workers/application/validate-loan-application/handler.go
package validateloanapplication

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/common/metrics"
	"loan-wizard/internal/common/validation"
	"loan-wizard/internal/wizard"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "validate-loan-application"
)

// Handler applies the wizard's step rules to applications that reach the
// origination process without going through the wizard.
type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job.Variables)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"error": err,
		})
		return err
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return nil
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) parseInput(variables string) (*Input, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &raw); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("job variables are not JSON: %v", err))
	}

	result, err := validation.ValidateInput(raw, inputSchema)
	if err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidRequestError(strings.Join(result.Messages(), "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidRequestError(err.Error())
	}
	return &input, nil
}

// Execute validates every step. A failing application is returned as an
// APPLICATION_VALIDATION_FAILED error carrying the field errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeoutError(TaskType, err)
	}

	draft := wizard.DraftFromMap(input.Application)
	for _, ref := range input.Documents {
		slot, err := wizard.ParseSlot(ref.Slot)
		if err != nil {
			return nil, errors.NewInvalidRequestError(err.Error())
		}
		draft.AttachDocument(slot, &wizard.Document{
			Name:        ref.Name,
			ContentType: ref.ContentType,
			Size:        ref.Size,
		})
	}

	fieldErrs, failed := wizard.ValidateAll(draft)
	steps := make([]string, 0, len(failed))
	for _, s := range failed {
		steps = append(steps, s.String())
	}

	output := &Output{
		IsValid:     len(failed) == 0,
		Errors:      map[string]string(fieldErrs),
		FailedSteps: steps,
	}

	h.logger.Info("validation completed", map[string]interface{}{
		"isValid":     output.IsValid,
		"errorCount":  len(fieldErrs),
		"failedSteps": steps,
		"tenantId":    input.TenantID,
	})

	if !output.IsValid {
		return output, errors.NewApplicationValidationFailedError(fieldErrs.String()).
			WithMetadata("errors", output.Errors).
			WithMetadata("failedSteps", output.FailedSteps)
	}
	return output, nil
}
