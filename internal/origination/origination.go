// Package origination hands submitted applications to the loan origination
// process in Zeebe.
package origination

import (
	"context"
	"strconv"
	"sync"
	"time"

	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/wizard"
)

// ProcessStarter is implemented by camunda.Client.
type ProcessStarter interface {
	StartProcess(ctx context.Context, bpmnProcessID string, variables map[string]interface{}) (int64, error)
}

// Starter launches one process instance per submitted application. Starts
// run off the publishing goroutine; Wait blocks until they finish.
type Starter struct {
	client        ProcessStarter
	bpmnProcessID string
	timeout       time.Duration
	logger        logger.Logger
	wg            sync.WaitGroup
}

func NewStarter(client ProcessStarter, bpmnProcessID string, timeout time.Duration, log logger.Logger) *Starter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Starter{
		client:        client,
		bpmnProcessID: bpmnProcessID,
		timeout:       timeout,
		logger:        log.WithFields(map[string]interface{}{"component": "origination", "bpmnProcessId": bpmnProcessID}),
	}
}

// Variables builds the process variables for a submitted event.
func Variables(ev wizard.Event) map[string]interface{} {
	vars := map[string]interface{}{
		"draftId":    ev.DraftID,
		"tenantId":   ev.Session.TenantID,
		"customerId": ev.Session.CustomerID,
		"productId":  ev.Session.ProductID,
		"incomeType": ev.Values[wizard.FieldIncomeType],
	}
	if ev.Receipt != nil {
		vars["applicationId"] = ev.Receipt.ApplicationID
	}
	if amount, err := strconv.ParseFloat(ev.Values[wizard.FieldRequestedAmount], 64); err == nil {
		vars["requestedAmount"] = amount
	}
	if tenure, err := strconv.Atoi(ev.Values[wizard.FieldRequestedTenure]); err == nil {
		vars["requestedTenure"] = tenure
	}
	return vars
}

// Start creates the process instance synchronously.
func (s *Starter) Start(ctx context.Context, ev wizard.Event) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key, err := s.client.StartProcess(ctx, s.bpmnProcessID, Variables(ev))
	if err != nil {
		s.logger.Error("failed to start origination process", map[string]interface{}{
			"draftId": ev.DraftID,
			"error":   err,
		})
		return 0, err
	}

	s.logger.Info("origination process started", map[string]interface{}{
		"draftId":            ev.DraftID,
		"processInstanceKey": key,
	})
	return key, nil
}

// Subscriber starts a process for every submitted event.
func (s *Starter) Subscriber() wizard.Subscriber {
	return func(ev wizard.Event) {
		if ev.Type != wizard.EventSubmitted {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, _ = s.Start(context.Background(), ev)
		}()
	}
}

// Wait blocks until in-flight starts have returned.
func (s *Starter) Wait() {
	s.wg.Wait()
}
