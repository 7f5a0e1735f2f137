// internal/wizard/helpers_test.go
package wizard

import (
	"context"
	"sync"
	"testing"
	"time"
)

// ==========================
// Test Helper Functions
// ==========================

func validIdentity() map[string]string {
	return map[string]string{
		FieldFirstName:   "Asha",
		FieldLastName:    "Rao",
		FieldMobileNo:    "9876543210",
		FieldEmail:       "asha.rao@example.in",
		FieldPANNumber:   "ABCDE1234F",
		FieldDateOfBirth: "1990-04-12",
	}
}

func validAddress() map[string]string {
	return map[string]string{
		FieldResAddressLine1:    "12 MG Road",
		FieldResPincode:         "560001",
		FieldOfficeAddressLine1: "4th Floor, Tech Park",
		FieldOfficePincode:      "560103",
	}
}

func validFinancials() map[string]string {
	return map[string]string{
		FieldRequestedAmount: "500000",
		FieldRequestedTenure: "36",
		FieldMonthlyIncome:   "85000",
		FieldEmployerName:    "Acme Pvt Ltd",
	}
}

func validBank() map[string]string {
	return map[string]string{
		FieldBankAccountNumber:   "001234567890",
		FieldIFSCCode:            "HDFC0001234",
		FieldDisbursementConsent: "true",
	}
}

func pdfDoc(name string) *Document {
	return &Document{Name: name, ContentType: "application/pdf", Size: 2048, Data: []byte("%PDF-1.4")}
}

func fill(d *Draft, values ...map[string]string) *Draft {
	for _, m := range values {
		for k, v := range m {
			d.Set(k, v)
		}
	}
	return d
}

// completeDraft passes every step.
func completeDraft() *Draft {
	d := fill(NewDraft(), validIdentity(), validAddress(), validFinancials(), validBank())
	d.AttachDocument(SlotIdentityProof, pdfDoc("pan.pdf"))
	d.AttachDocument(SlotBankStatement, pdfDoc("statement.pdf"))
	return d
}

// fillController enters the same values through the public API.
func fillController(t *testing.T, c *Controller, values ...map[string]string) {
	t.Helper()
	for _, m := range values {
		for k, v := range m {
			if err := c.SetField(k, v); err != nil {
				t.Fatalf("SetField(%s): %v", k, err)
			}
		}
	}
}

// advanceToDocuments walks a controller through steps 1-4 and attaches the
// required documents.
func advanceToDocuments(t *testing.T, c *Controller) {
	t.Helper()
	steps := []map[string]string{validIdentity(), validAddress(), validFinancials(), validBank()}
	for _, values := range steps {
		fillController(t, c, values)
		if _, err := c.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if err := c.SetDocument(SlotIdentityProof, pdfDoc("pan.pdf")); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	if err := c.SetDocument(SlotBankStatement, pdfDoc("statement.pdf")); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
}

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

// fakeGateway records calls and answers from a function.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []*Submission
	respond func(ctx context.Context, s *Submission) (*Receipt, error)
}

func (g *fakeGateway) Submit(ctx context.Context, s *Submission) (*Receipt, error) {
	g.mu.Lock()
	g.calls = append(g.calls, s)
	respond := g.respond
	g.mu.Unlock()
	if respond == nil {
		return &Receipt{ApplicationID: "APP-1"}, nil
	}
	return respond(ctx, s)
}

func (g *fakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) Last() *Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.calls) == 0 {
		return nil
	}
	return g.calls[len(g.calls)-1]
}
