// internal/wizard/controller.go
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"loan-wizard/internal/common/logger"

	"github.com/google/uuid"
)

// State is the controller's lifecycle state. Steps are tracked separately.
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateDiscarded  State = "discarded"
)

var (
	ErrValidationFailed = errors.New("step validation failed")
	ErrLocked           = errors.New("wizard is locked")
	ErrSubmitInFlight   = errors.New("submission already in progress")
	ErrAlreadySubmitted = errors.New("application already submitted")
	ErrNotOnLastStep    = errors.New("submit is only available from the documents step")
	ErrInvalidStep      = errors.New("invalid step")
	ErrStepLocked       = errors.New("step not yet unlocked")
	ErrNoGateway        = errors.New("no submission gateway configured")
)

const DefaultSubmitTimeout = 60 * time.Second

// Options configures a Controller.
type Options struct {
	ID            string
	Gateway       Gateway
	Session       SessionContext
	Bus           *Bus
	Logger        logger.Logger
	SubmitTimeout time.Duration
}

// Controller is the wizard state machine for one application. It is safe for
// concurrent use; the gateway call runs without holding the lock so a second
// Submit observes the in-flight state instead of blocking.
type Controller struct {
	mu sync.Mutex

	id      string
	step    Step
	highest Step
	state   State
	draft   *Draft
	errors  FieldErrors
	failure *SubmissionError
	receipt *Receipt

	gateway       Gateway
	session       SessionContext
	bus           *Bus
	logger        logger.Logger
	submitTimeout time.Duration
}

// NewController starts a fresh wizard on step 1 with an empty draft.
func NewController(opts Options) *Controller {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	timeout := opts.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}

	return &Controller{
		id:            id,
		step:          FirstStep,
		highest:       FirstStep,
		state:         StateEditing,
		draft:         NewDraft(),
		errors:        FieldErrors{},
		gateway:       opts.Gateway,
		session:       opts.Session,
		bus:           opts.Bus,
		logger:        log.WithFields(map[string]interface{}{"draftId": id}),
		submitTimeout: timeout,
	}
}

func (c *Controller) ID() string { return c.id }

// SetField stores a controlled-input value. Only that field's error is
// cleared; the step is re-validated on the next Next or Submit.
func (c *Controller) SetField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	c.draft.Set(name, value)
	delete(c.errors, name)
	return nil
}

// SetDocument attaches a file to a slot after the size and type checks.
// A rejected file leaves the slot unchanged and records an inline error.
func (c *Controller) SetDocument(slot DocumentSlot, doc *Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	if err := CheckDocument(slot, doc); err != nil {
		if !errors.Is(err, ErrUnknownSlot) {
			c.errors[string(slot)] = documentMessage(err)
		}
		return err
	}
	c.draft.documents[slot] = doc
	delete(c.errors, string(slot))
	return nil
}

// RemoveDocument clears a slot.
func (c *Controller) RemoveDocument(slot DocumentSlot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return err
	}
	delete(c.draft.documents, slot)
	delete(c.errors, string(slot))
	return nil
}

// Next validates the active step and advances when it passes.
func (c *Controller) Next() (Step, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		step := c.step
		c.mu.Unlock()
		return step, err
	}

	from := c.step
	errs := ValidateStep(from, c.draft)
	if len(errs) > 0 {
		c.errors = errs
		ev := c.eventLocked(EventValidationFailed, from, from)
		ev.Errors = copyErrors(errs)
		c.mu.Unlock()

		c.logger.Info("step validation failed", map[string]interface{}{
			"step":   from.String(),
			"fields": errs.Fields(),
		})
		c.bus.Publish(ev)
		return from, fmt.Errorf("%w: %s", ErrValidationFailed, from)
	}

	c.errors = FieldErrors{}
	if c.step < LastStep {
		c.step++
	}
	if c.step > c.highest {
		c.highest = c.step
	}
	to := c.step
	ev := c.eventLocked(EventStepAdvanced, from, to)
	c.mu.Unlock()

	c.bus.Publish(ev)
	return to, nil
}

// Back moves to the previous step without validation.
func (c *Controller) Back() (Step, error) {
	c.mu.Lock()
	if err := c.editableLocked(); err != nil {
		step := c.step
		c.mu.Unlock()
		return step, err
	}

	from := c.step
	if c.step > FirstStep {
		c.step--
	}
	c.errors = FieldErrors{}
	to := c.step
	ev := c.eventLocked(EventStepReturned, from, to)
	c.mu.Unlock()

	c.bus.Publish(ev)
	return to, nil
}

// GoTo jumps to a step that has already been unlocked, as a tab click does.
func (c *Controller) GoTo(step Step) (Step, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.editableLocked(); err != nil {
		return c.step, err
	}
	if !step.Valid() {
		return c.step, fmt.Errorf("%w: %d", ErrInvalidStep, int(step))
	}
	if step > c.highest {
		return c.step, fmt.Errorf("%w: %s", ErrStepLocked, step)
	}
	c.step = step
	c.errors = FieldErrors{}
	return c.step, nil
}

// Submit sends the application. It is only available on the last step and
// at most one call reaches the gateway at a time. After success the
// controller is terminal and further calls return ErrAlreadySubmitted
// without contacting the gateway. Failures are never retried here.
func (c *Controller) Submit(ctx context.Context) (*Receipt, error) {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateSubmitted:
		receipt := c.receipt
		c.mu.Unlock()
		return receipt, ErrAlreadySubmitted
	case StateDiscarded:
		c.mu.Unlock()
		return nil, ErrLocked
	}
	if c.step != LastStep {
		c.mu.Unlock()
		return nil, ErrNotOnLastStep
	}
	if c.gateway == nil {
		c.mu.Unlock()
		return nil, ErrNoGateway
	}

	// Steps 1-4 gated forward progress, but a tab jump back allows edits
	// that never went through Next again.
	if errs, failed := ValidateAll(c.draft); len(failed) > 0 {
		from := c.step
		c.step = failed[0]
		c.errors = errs
		ev := c.eventLocked(EventValidationFailed, from, c.step)
		ev.Errors = copyErrors(errs)
		c.mu.Unlock()

		c.bus.Publish(ev)
		return nil, fmt.Errorf("%w: %s", ErrValidationFailed, failed[0])
	}

	c.state = StateSubmitting
	c.failure = nil
	submission := BuildSubmission(c.id, c.draft, c.session)
	started := c.eventLocked(EventSubmitStarted, c.step, c.step)
	c.mu.Unlock()

	c.bus.Publish(started)
	c.logger.Info("submitting application", map[string]interface{}{
		"fields":    len(submission.Fields),
		"documents": len(submission.Documents),
	})

	submitCtx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	begin := time.Now()
	receipt, err := c.gateway.Submit(submitCtx, submission)
	elapsed := time.Since(begin)
	if err == nil && (receipt == nil || receipt.ApplicationID == "") {
		err = NewGlobalError("The server did not return an application reference.", 0, false)
	}

	c.mu.Lock()
	if err == nil {
		c.state = StateSubmitted
		c.receipt = receipt
		c.errors = FieldErrors{}
		ev := c.eventLocked(EventSubmitted, c.step, c.step)
		ev.Receipt = receipt
		ev.Duration = elapsed
		ev.Values = submission.Fields
		c.mu.Unlock()

		c.logger.Info("application submitted", map[string]interface{}{
			"applicationId": receipt.ApplicationID,
			"durationMs":    elapsed.Milliseconds(),
		})
		c.bus.Publish(ev)
		return receipt, nil
	}

	failure := toSubmissionError(submitCtx, err)
	c.state = StateEditing
	if failure.Kind == SubmissionErrorFieldMap {
		for k, v := range failure.Fields {
			c.errors[k] = v
		}
	} else {
		c.failure = failure
	}
	ev := c.eventLocked(EventSubmitFailed, c.step, c.step)
	ev.Failure = failure
	ev.Duration = elapsed
	c.mu.Unlock()

	c.logger.Warn("application submission failed", map[string]interface{}{
		"kind":       string(failure.Kind),
		"statusCode": failure.StatusCode,
		"error":      err.Error(),
	})
	c.bus.Publish(ev)
	return nil, failure
}

// Discard drops the draft, as leaving the wizard page does. A submitted
// controller stays submitted. While a submit is in flight the draft is kept
// and ErrSubmitInFlight is returned.
func (c *Controller) Discard() error {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting:
		c.mu.Unlock()
		return ErrSubmitInFlight
	case StateSubmitted, StateDiscarded:
		c.mu.Unlock()
		return nil
	}
	c.state = StateDiscarded
	c.draft = NewDraft()
	ev := c.eventLocked(EventDraftDiscarded, c.step, c.step)
	c.mu.Unlock()

	c.bus.Publish(ev)
	return nil
}

func (c *Controller) editableLocked() error {
	switch c.state {
	case StateSubmitting:
		return fmt.Errorf("%w: %w", ErrLocked, ErrSubmitInFlight)
	case StateSubmitted:
		return fmt.Errorf("%w: %w", ErrLocked, ErrAlreadySubmitted)
	case StateDiscarded:
		return ErrLocked
	}
	return nil
}

func (c *Controller) eventLocked(t EventType, from, to Step) Event {
	return Event{
		Type:    t,
		DraftID: c.id,
		Session: c.session,
		From:    from,
		To:      to,
	}
}

func toSubmissionError(ctx context.Context, err error) *SubmissionError {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewTimeoutError()
	}
	return NewGlobalError("Unable to submit the application. Please try again.", 0, true)
}

func copyErrors(in FieldErrors) FieldErrors {
	out := make(FieldErrors, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
