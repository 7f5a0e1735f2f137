// internal/server/dto.go
package server

import (
	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/wizard"
)

// FieldsRequest is the body of PATCH /:id/fields. Values are applied in
// key order; an unknown key rejects the whole request.
type FieldsRequest struct {
	Fields map[string]string `json:"fields"`
}

// WizardResponse wraps the snapshot so error and success bodies share a
// shape.
type WizardResponse struct {
	Wizard wizard.Snapshot       `json:"wizard"`
	Error  *errors.StandardError `json:"error,omitempty"`
}

// SubmitResponse is returned once the lender has issued a reference.
type SubmitResponse struct {
	Receipt *wizard.Receipt `json:"receipt"`
	Wizard  wizard.Snapshot `json:"wizard"`
}

// AffordabilityResponse carries the indicative repayment figures.
type AffordabilityResponse struct {
	Estimate wizard.Estimate `json:"estimate"`
}

// ErrorResponse is used where no draft is in scope.
type ErrorResponse struct {
	Error *errors.StandardError `json:"error"`
}
