// internal/wizard/payload.go
package wizard

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SessionContext carries the identifiers injected from the signed-in
// session. The wizard never owns them.
type SessionContext struct {
	TenantID   string `json:"tenant_id"`
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
}

// Submission is the flat document handed to the gateway.
type Submission struct {
	DraftID   string
	Fields    map[string]string
	Documents map[DocumentSlot]*Document
}

// FieldNames returns the submission keys sorted, for stable encoding.
func (s *Submission) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for k := range s.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Receipt is the gateway's success response.
type Receipt struct {
	ApplicationID string `json:"application_id"`
}

// SubmissionErrorKind tags the two failure shapes the backend returns.
type SubmissionErrorKind string

const (
	SubmissionErrorGlobal   SubmissionErrorKind = "global"
	SubmissionErrorFieldMap SubmissionErrorKind = "field_map"
)

// SubmissionError is resolved once at the gateway boundary: either a single
// message or a field-keyed map.
type SubmissionError struct {
	Kind       SubmissionErrorKind `json:"kind"`
	Message    string              `json:"message,omitempty"`
	Fields     FieldErrors         `json:"fields,omitempty"`
	StatusCode int                 `json:"status_code,omitempty"`
	Retryable  bool                `json:"retryable"`
	TimedOut   bool                `json:"timed_out,omitempty"`
}

func (e *SubmissionError) Error() string {
	if e.Kind == SubmissionErrorFieldMap {
		return fmt.Sprintf("submission rejected: %s", e.Fields.String())
	}
	return fmt.Sprintf("submission failed: %s", e.Message)
}

// NewGlobalError builds a single-message submission error.
func NewGlobalError(message string, status int, retryable bool) *SubmissionError {
	return &SubmissionError{Kind: SubmissionErrorGlobal, Message: message, StatusCode: status, Retryable: retryable}
}

// NewTimeoutError reports a submission whose deadline passed before the
// backend answered. The outcome at the lender is unknown.
func NewTimeoutError() *SubmissionError {
	return &SubmissionError{
		Kind:      SubmissionErrorGlobal,
		Message:   "The server took too long to respond. Please submit again.",
		Retryable: true,
		TimedOut:  true,
	}
}

// NewFieldMapError builds a field-keyed submission error.
func NewFieldMapError(fields FieldErrors, status int) *SubmissionError {
	return &SubmissionError{Kind: SubmissionErrorFieldMap, Fields: fields, StatusCode: status}
}

// Gateway accepts an assembled application and returns the created id, or a
// *SubmissionError describing why it was refused.
type Gateway interface {
	Submit(ctx context.Context, s *Submission) (*Receipt, error)
}

// sessionFields are injected last and win over any draft value.
const (
	FieldTenantID   = "tenant_id"
	FieldCustomerID = "customer_id"
	FieldProductID  = "product_id"
)

// BuildSubmission flattens a draft into the submission document. Empty
// values and the inactive income branch are left out.
func BuildSubmission(draftID string, d *Draft, session SessionContext) *Submission {
	skip := make(map[string]bool)
	for _, f := range d.inactiveBranchFields() {
		skip[f] = true
	}

	fields := make(map[string]string, len(d.fields)+3)
	for k, v := range d.fields {
		if skip[k] {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		fields[k] = v
	}
	fields[FieldDisbursementConsent] = strconv.FormatBool(d.Bool(FieldDisbursementConsent))
	fields[FieldIncomeType] = d.IncomeType()

	fields[FieldTenantID] = session.TenantID
	fields[FieldCustomerID] = session.CustomerID
	fields[FieldProductID] = session.ProductID

	docs := make(map[DocumentSlot]*Document, len(d.documents))
	for slot, doc := range d.documents {
		docs[slot] = doc
	}

	return &Submission{
		DraftID:   draftID,
		Fields:    fields,
		Documents: docs,
	}
}
