// internal/workers/application/validate-loan-application/handler_test.go
package validateloanapplication

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"loan-wizard/internal/common/config"
	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return LoadConfig(config.WorkerConfig{Timeout: 5000})
}

func createValidApplication() map[string]interface{} {
	return map[string]interface{}{
		"first_name":           "Asha",
		"last_name":            "Rao",
		"mobile_no":            "9876543210",
		"email":                "asha.rao@example.in",
		"pan_number":           "abcde1234f",
		"date_of_birth":        "1990-04-12",
		"res_address_line1":    "12 MG Road",
		"res_pincode":          "560001",
		"office_address_line1": "Tech Park",
		"office_pincode":       "560103",
		"income_type":          "Salaried",
		"requested_amount":     500000.0,
		"requested_tenure":     36.0,
		"monthly_income":       85000.0,
		"employer_name":        "Acme Pvt Ltd",
		"bank_account_number":  "001234567890",
		"ifsc_code":            "HDFC0001234",
		"disbursement_consent": true,
	}
}

func createValidDocuments() []DocumentRef {
	return []DocumentRef{
		{Slot: "identity_proof", Name: "pan.pdf", ContentType: "application/pdf", Size: 1024},
		{Slot: "bank_statement", Name: "statement.pdf", ContentType: "application/pdf", Size: 4096},
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{
		Application: createValidApplication(),
		Documents:   createValidDocuments(),
		TenantID:    "tenant-1",
	})
	require.NoError(t, err)
	assert.True(t, output.IsValid)
	assert.Empty(t, output.Errors)
	assert.Empty(t, output.FailedSteps)
}

func TestHandler_Execute_ValidationFailed(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(app map[string]interface{}, docs []DocumentRef) []DocumentRef
		wantField   string
		wantMessage string
		wantSteps   []string
	}{
		{
			name: "bad mobile",
			mutate: func(app map[string]interface{}, docs []DocumentRef) []DocumentRef {
				app["mobile_no"] = "12345"
				return docs
			},
			wantField:   "mobile_no",
			wantMessage: "Invalid 10-digit mobile number",
			wantSteps:   []string{"identity"},
		},
		{
			name: "amount below minimum",
			mutate: func(app map[string]interface{}, docs []DocumentRef) []DocumentRef {
				app["requested_amount"] = 9999.0
				return docs
			},
			wantField:   "requested_amount",
			wantMessage: "Minimum loan amount is ₹10,000",
			wantSteps:   []string{"financials"},
		},
		{
			name: "self-employed without business name",
			mutate: func(app map[string]interface{}, docs []DocumentRef) []DocumentRef {
				app["income_type"] = "Self-Employed"
				return docs
			},
			wantField:   "business_name",
			wantMessage: "This field is required",
			wantSteps:   []string{"financials"},
		},
		{
			name: "no consent",
			mutate: func(app map[string]interface{}, docs []DocumentRef) []DocumentRef {
				app["disbursement_consent"] = false
				return docs
			},
			wantField:   "disbursement_consent",
			wantMessage: "You must authorise disbursement to the bank account above",
			wantSteps:   []string{"bank"},
		},
		{
			name: "missing bank statement",
			mutate: func(app map[string]interface{}, docs []DocumentRef) []DocumentRef {
				return docs[:1]
			},
			wantField:   "bank_statement",
			wantMessage: "This field is required",
			wantSteps:   []string{"documents"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))
			app := createValidApplication()
			docs := tt.mutate(app, createValidDocuments())

			output, err := handler.Execute(context.Background(), &Input{Application: app, Documents: docs})
			require.Error(t, err)

			var stdErr *errors.StandardError
			require.True(t, stderrors.As(err, &stdErr))
			assert.Equal(t, errors.ErrCodeApplicationValidationFailed, stdErr.Code)
			assert.Equal(t, tt.wantSteps, stdErr.Metadata["failedSteps"])

			require.NotNil(t, output)
			assert.False(t, output.IsValid)
			assert.Equal(t, tt.wantMessage, output.Errors[tt.wantField])
			assert.Equal(t, tt.wantSteps, output.FailedSteps)
		})
	}
}

func TestHandler_Execute_UnknownSlot(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{
		Application: createValidApplication(),
		Documents:   []DocumentRef{{Slot: "selfie", Size: 1}},
	})

	var stdErr *errors.StandardError
	require.True(t, stderrors.As(err, &stdErr))
	assert.Equal(t, errors.ErrCodeInvalidRequest, stdErr.Code)
}

func TestHandler_Execute_Timeout(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := handler.Execute(ctx, &Input{Application: createValidApplication()})
	require.Error(t, err)
	assert.True(t, errors.Normalize(err).Retryable)
}

func TestHandler_ParseInput(t *testing.T) {
	handler := NewHandler(createTestConfig(), logger.NewTestLogger(t))

	input, err := handler.parseInput(`{"application": {"first_name": "Asha"}, "documents": [{"slot": "identity_proof", "size": 10}], "tenantId": "t"}`)
	require.NoError(t, err)
	assert.Equal(t, "Asha", input.Application["first_name"])
	assert.Equal(t, "identity_proof", input.Documents[0].Slot)

	_, err = handler.parseInput(`{"documents": []}`)
	assert.Error(t, err)

	_, err = handler.parseInput(`{"application": "not an object"}`)
	assert.Error(t, err)

	_, err = handler.parseInput(`not json`)
	assert.Error(t, err)
}

func BenchmarkHandler_Execute(b *testing.B) {
	handler := NewHandler(createTestConfig(), logger.NewNoOpLogger())
	input := &Input{Application: createValidApplication(), Documents: createValidDocuments()}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = handler.Execute(context.Background(), input)
	}
}
