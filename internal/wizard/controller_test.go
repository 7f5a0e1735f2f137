// internal/wizard/controller_test.go
package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loan-wizard/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Submit(ctx context.Context, s *Submission) (*Receipt, error) {
	args := m.Called(ctx, s)
	receipt, _ := args.Get(0).(*Receipt)
	return receipt, args.Error(1)
}

func newTestController(t *testing.T, gw Gateway) *Controller {
	return NewController(Options{
		ID:      "draft-1",
		Gateway: gw,
		Session: SessionContext{TenantID: "t-1", CustomerID: "c-1", ProductID: "p-1"},
		Bus:     NewBus(),
		Logger:  logger.NewTestLogger(t),
	})
}

// ==========================
// Navigation
// ==========================

func TestController_StartsOnFirstStep(t *testing.T) {
	c := newTestController(t, &fakeGateway{})

	snap := c.Snapshot()
	assert.Equal(t, StepIdentity, snap.Step)
	assert.Equal(t, StepIdentity, snap.HighestStep)
	assert.Equal(t, StateEditing, snap.State)
	assert.Equal(t, DefaultCountry, snap.Values[FieldResCountry])
	assert.Empty(t, snap.Errors)
}

func TestController_NextBlockedByValidation(t *testing.T) {
	c := newTestController(t, &fakeGateway{})

	step, err := c.Next()
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, StepIdentity, step)

	snap := c.Snapshot()
	assert.Equal(t, StepIdentity, snap.Step)
	assert.Equal(t, MsgRequired, snap.Errors[FieldFirstName])
	assert.Len(t, snap.Errors, 6)
}

func TestController_SetFieldClearsOnlyThatError(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	_, _ = c.Next()

	require.NoError(t, c.SetField(FieldFirstName, "Asha"))

	errs := c.Snapshot().Errors
	assert.NotContains(t, errs, FieldFirstName)
	assert.Contains(t, errs, FieldLastName)
}

func TestController_SetFieldUppercasesPAN(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	values := validIdentity()
	values[FieldPANNumber] = "abcde1234f"
	fillController(t, c, values)

	assert.Equal(t, "ABCDE1234F", c.Snapshot().Values[FieldPANNumber])
	step, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, StepAddress, step)
}

func TestController_BackThenNextIsIdempotent(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	fillController(t, c, validIdentity())
	_, err := c.Next()
	require.NoError(t, err)
	fillController(t, c, validAddress())
	_, err = c.Next()
	require.NoError(t, err)
	require.Equal(t, StepFinancials, c.Step())

	step, err := c.Back()
	require.NoError(t, err)
	assert.Equal(t, StepAddress, step)

	_, err = c.Next()
	require.NoError(t, err)
	step, err = c.Next()
	// step 3 is still empty, so the second Next self-loops on step 3
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, StepFinancials, step)

	c2 := newTestController(t, &fakeGateway{})
	fillController(t, c2, validIdentity(), validAddress())
	_, _ = c2.Next()
	_, _ = c2.Next()
	_, _ = c2.Back()
	_, _ = c2.Back()
	_, err = c2.Next()
	require.NoError(t, err)
	_, err = c2.Next()
	require.NoError(t, err)
	assert.Equal(t, StepFinancials, c2.Step())
	assert.Empty(t, c2.Snapshot().Errors)
}

func TestController_BackFloorsAtFirstStep(t *testing.T) {
	c := newTestController(t, &fakeGateway{})

	step, err := c.Back()
	require.NoError(t, err)
	assert.Equal(t, StepIdentity, step)
}

func TestController_NextCapsAtLastStep(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	advanceToDocuments(t, c)
	require.Equal(t, StepDocuments, c.Step())

	step, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, StepDocuments, step)
}

func TestController_BranchSwitchRefailsFinancials(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	fillController(t, c, validIdentity(), validAddress(), validFinancials())
	_, _ = c.Next()
	_, _ = c.Next()
	_, err := c.Next()
	require.NoError(t, err)

	_, _ = c.Back()
	require.NoError(t, c.SetField(FieldIncomeType, IncomeSelfEmployed))

	step, err := c.Next()
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, StepFinancials, step)
	assert.Equal(t, MsgRequired, c.Snapshot().Errors[FieldBusinessName])
}

func TestController_GoToOnlyUnlockedSteps(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	fillController(t, c, validIdentity(), validAddress())
	_, _ = c.Next()
	_, _ = c.Next()

	_, err := c.GoTo(StepBank)
	assert.ErrorIs(t, err, ErrStepLocked)

	step, err := c.GoTo(StepIdentity)
	require.NoError(t, err)
	assert.Equal(t, StepIdentity, step)
	assert.Equal(t, StepFinancials, c.Snapshot().HighestStep)

	step, err = c.GoTo(StepFinancials)
	require.NoError(t, err)
	assert.Equal(t, StepFinancials, step)

	_, err = c.GoTo(Step(9))
	assert.ErrorIs(t, err, ErrInvalidStep)
}

// ==========================
// Documents
// ==========================

func TestController_SetDocumentRejectsOversize(t *testing.T) {
	c := newTestController(t, &fakeGateway{})

	err := c.SetDocument(SlotBankStatement, &Document{Name: "big.pdf", ContentType: "application/pdf", Size: MaxDocumentBytes + 1})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	snap := c.Snapshot()
	assert.Empty(t, snap.Documents)
	assert.Equal(t, "File size must be under 5MB", snap.Errors[string(SlotBankStatement)])

	require.NoError(t, c.SetDocument(SlotBankStatement, pdfDoc("ok.pdf")))
	snap = c.Snapshot()
	assert.NotContains(t, snap.Errors, string(SlotBankStatement))
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "ok.pdf", snap.Documents[0].Name)

	require.NoError(t, c.RemoveDocument(SlotBankStatement))
	assert.Empty(t, c.Snapshot().Documents)
}

// ==========================
// Submission
// ==========================

func TestController_SubmitEndToEnd(t *testing.T) {
	gw := &mockGateway{}
	gw.On("Submit", mock.Anything, mock.AnythingOfType("*wizard.Submission")).
		Return(&Receipt{ApplicationID: "APP-42"}, nil).Once()

	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	receipt, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "APP-42", receipt.ApplicationID)
	assert.Equal(t, StateSubmitted, c.State())

	again, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, "APP-42", again.ApplicationID)

	gw.AssertNumberOfCalls(t, "Submit", 1)
	gw.AssertExpectations(t)

	sub := gw.Calls[0].Arguments.Get(1).(*Submission)
	assert.Equal(t, "t-1", sub.Fields[FieldTenantID])
	assert.Equal(t, "c-1", sub.Fields[FieldCustomerID])
	assert.Equal(t, "p-1", sub.Fields[FieldProductID])
	assert.Equal(t, "true", sub.Fields[FieldDisbursementConsent])
	assert.Contains(t, sub.Documents, SlotIdentityProof)
	assert.Contains(t, sub.Documents, SlotBankStatement)
}

func TestController_SubmittedIsTerminal(t *testing.T) {
	c := newTestController(t, &fakeGateway{})
	advanceToDocuments(t, c)
	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetField(FieldFirstName, "Other"), ErrLocked)
	assert.ErrorIs(t, c.SetDocument(SlotIncomeProof, pdfDoc("p.pdf")), ErrLocked)
	_, err = c.Back()
	assert.ErrorIs(t, err, ErrLocked)
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrLocked)

	assert.NoError(t, c.Discard())
	assert.Equal(t, StateSubmitted, c.State())
}

func TestController_SubmitOnlyFromLastStep(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNotOnLastStep)
	assert.Zero(t, gw.Calls())
}

func TestController_SubmitRevalidatesEarlierSteps(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	// edited through a tab jump, then returned without Next
	_, err := c.GoTo(StepIdentity)
	require.NoError(t, err)
	require.NoError(t, c.SetField(FieldMobileNo, "123"))
	_, err = c.GoTo(StepDocuments)
	require.NoError(t, err)

	_, err = c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Zero(t, gw.Calls())
	assert.Equal(t, StepIdentity, c.Step())
	assert.Equal(t, MsgInvalidMobile, c.Snapshot().Errors[FieldMobileNo])
}

func TestController_SubmitRequiresDocuments(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)
	require.NoError(t, c.RemoveDocument(SlotBankStatement))

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, StepDocuments, c.Step())
	assert.Equal(t, MsgRequired, c.Snapshot().Errors[string(SlotBankStatement)])
	assert.Zero(t, gw.Calls())
}

func TestController_DoubleSubmitGuard(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		entered <- struct{}{}
		<-release
		return &Receipt{ApplicationID: "APP-7"}, nil
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = c.Submit(context.Background())
	}()

	<-entered
	assert.Equal(t, StateSubmitting, c.State())

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmitInFlight)
	assert.ErrorIs(t, c.SetField(FieldFirstName, "Other"), ErrLocked)
	_, err = c.Back()
	assert.ErrorIs(t, err, ErrLocked)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, 1, gw.Calls())
	assert.Equal(t, StateSubmitted, c.State())
}

func TestController_DiscardRefusedWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		entered <- struct{}{}
		<-release
		return nil, NewGlobalError("Service unavailable", 503, true)
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)
	firstName := c.Snapshot().Values[FieldFirstName]

	var wg sync.WaitGroup
	wg.Add(1)
	var submitErr error
	go func() {
		defer wg.Done()
		_, submitErr = c.Submit(context.Background())
	}()

	<-entered
	assert.ErrorIs(t, c.Discard(), ErrSubmitInFlight)
	assert.Equal(t, StateSubmitting, c.State())

	close(release)
	wg.Wait()

	require.Error(t, submitErr)
	assert.Equal(t, StateEditing, c.State())
	assert.Equal(t, firstName, c.Snapshot().Values[FieldFirstName])
	assert.NotEmpty(t, firstName)

	require.NoError(t, c.Discard())
	assert.Equal(t, StateDiscarded, c.State())
	assert.ErrorIs(t, c.SetField(FieldFirstName, "x"), ErrLocked)
}

func TestController_ConcurrentSubmitsReachGatewayOnce(t *testing.T) {
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		time.Sleep(20 * time.Millisecond)
		return &Receipt{ApplicationID: "APP-8"}, nil
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Submit(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.Calls())
	assert.Equal(t, StateSubmitted, c.State())
}

func TestController_SubmitGlobalFailureKeepsDraft(t *testing.T) {
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		return nil, NewGlobalError("Customer already has an open application", 400, false)
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	_, err := c.Submit(context.Background())
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SubmissionErrorGlobal, se.Kind)

	snap := c.Snapshot()
	assert.Equal(t, StateEditing, snap.State)
	assert.Equal(t, StepDocuments, snap.Step)
	assert.Equal(t, "Customer already has an open application", snap.GlobalError)
	assert.Equal(t, "Asha", snap.Values[FieldFirstName])

	// explicit resubmission is allowed and clears the banner on success
	gw.respond = nil
	receipt, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "APP-1", receipt.ApplicationID)
	assert.Empty(t, c.Snapshot().GlobalError)
	assert.Equal(t, 2, gw.Calls())
	// the retry reuses the draft id, which the gateway sends as the idempotency key
	assert.Equal(t, c.ID(), gw.Last().DraftID)
}

func TestController_SubmitFieldMapFailureMergesErrors(t *testing.T) {
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		return nil, NewFieldMapError(FieldErrors{FieldPANNumber: "PAN already registered"}, 400)
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	_, err := c.Submit(context.Background())
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SubmissionErrorFieldMap, se.Kind)

	snap := c.Snapshot()
	assert.Equal(t, "PAN already registered", snap.Errors[FieldPANNumber])
	assert.Empty(t, snap.GlobalError)
	assert.Equal(t, StepDocuments, snap.Step)
	assert.Equal(t, 1, gw.Calls())
}

func TestController_SubmitTimeout(t *testing.T) {
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := NewController(Options{Gateway: gw, SubmitTimeout: 20 * time.Millisecond})
	advanceToDocuments(t, c)

	_, err := c.Submit(context.Background())
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable)
	assert.True(t, se.TimedOut)
	assert.Equal(t, StateEditing, c.State())
}

func TestController_SubmitPlainErrorBecomesGlobal(t *testing.T) {
	gw := &fakeGateway{respond: func(ctx context.Context, s *Submission) (*Receipt, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}
	c := newTestController(t, gw)
	advanceToDocuments(t, c)

	_, err := c.Submit(context.Background())
	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, SubmissionErrorGlobal, se.Kind)
	assert.NotEmpty(t, c.Snapshot().GlobalError)
}

func TestController_SubmitWithoutGateway(t *testing.T) {
	c := newTestController(t, nil)
	advanceToDocuments(t, c)

	_, err := c.Submit(context.Background())
	assert.ErrorIs(t, err, ErrNoGateway)
}

func TestController_Discard(t *testing.T) {
	bus := NewBus()
	var got []EventType
	bus.Subscribe(func(e Event) { got = append(got, e.Type) })

	c := NewController(Options{Bus: bus})
	fillController(t, c, validIdentity())
	require.NoError(t, c.Discard())

	assert.Equal(t, StateDiscarded, c.State())
	assert.Empty(t, c.Snapshot().Values[FieldFirstName])
	assert.ErrorIs(t, c.SetField(FieldFirstName, "x"), ErrLocked)
	assert.Equal(t, []EventType{EventDraftDiscarded}, got)
}

func TestController_PublishesTransitions(t *testing.T) {
	bus := NewBus()
	var events []Event
	bus.Subscribe(func(e Event) { events = append(events, e) })

	c := NewController(Options{ID: "d-9", Bus: bus, Gateway: &fakeGateway{}})
	_, _ = c.Next()
	advanceToDocuments(t, c)
	_, _ = c.Back()
	_, _ = c.Next()
	_, err := c.Submit(context.Background())
	require.NoError(t, err)

	types := make([]EventType, 0, len(events))
	for _, e := range events {
		assert.Equal(t, "d-9", e.DraftID)
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventValidationFailed,
		EventStepAdvanced, EventStepAdvanced, EventStepAdvanced, EventStepAdvanced,
		EventStepReturned, EventStepAdvanced,
		EventSubmitStarted, EventSubmitted,
	}, types)

	last := events[len(events)-1]
	assert.Equal(t, "APP-1", last.Receipt.ApplicationID)
	assert.Equal(t, "Asha", last.Values[FieldFirstName])
	assert.Contains(t, events[0].Errors, FieldFirstName)
}
