// internal/gateway/rest_test.go
package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-wizard/internal/common/config"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/wizard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSubmission() *wizard.Submission {
	return &wizard.Submission{
		DraftID: "draft-123",
		Fields: map[string]string{
			wizard.FieldFirstName:       "Asha",
			wizard.FieldRequestedAmount: "500000",
			wizard.FieldTenantID:        "tenant-1",
		},
		Documents: map[wizard.DocumentSlot]*wizard.Document{
			wizard.SlotBankStatement: {Name: "statement.pdf", ContentType: "application/pdf", Size: 8, Data: []byte("%PDF-1.4")},
		},
	}
}

func newTestGateway(t *testing.T, handler http.HandlerFunc) *REST {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewREST(config.GatewayConfig{
		BaseURL:    srv.URL,
		SubmitPath: "/api/loan-applications/",
		APIKey:     "secret",
		Timeout:    2000,
	}, logger.NewTestLogger(t))
}

func TestREST_Submit_Success(t *testing.T) {
	var captured *http.Request
	var fields map[string][]string
	var fileBody []byte

	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		captured = r
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields = r.MultipartForm.Value

		f, hdr, err := r.FormFile("bank_statement")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "statement.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		fileBody, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"application_id": "APP-2024-0001", "status": "received"}`))
	})

	receipt, err := gw.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "APP-2024-0001", receipt.ApplicationID)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "/api/loan-applications/", captured.URL.Path)
	assert.Equal(t, "Bearer secret", captured.Header.Get("Authorization"))
	assert.Equal(t, "draft-123", captured.Header.Get("Idempotency-Key"))
	assert.Equal(t, []string{"Asha"}, fields["first_name"])
	assert.Equal(t, []string{"tenant-1"}, fields["tenant_id"])
	assert.Equal(t, []byte("%PDF-1.4"), fileBody)
}

func TestREST_Submit_NumericID(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 987}`))
	})

	receipt, err := gw.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, "987", receipt.ApplicationID)
}

func TestREST_Submit_Failures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantKind      wizard.SubmissionErrorKind
		wantMessage   string
		wantFields    wizard.FieldErrors
		wantRetryable bool
	}{
		{
			name:        "detail string",
			status:      http.StatusBadRequest,
			body:        `{"detail": "Customer already has an open application"}`,
			wantKind:    wizard.SubmissionErrorGlobal,
			wantMessage: "Customer already has an open application",
		},
		{
			name:     "field map with lists",
			status:   http.StatusBadRequest,
			body:     `{"pan_number": ["PAN already registered"], "mobile_no": "Number blocked"}`,
			wantKind: wizard.SubmissionErrorFieldMap,
			wantFields: wizard.FieldErrors{
				"pan_number": "PAN already registered",
				"mobile_no":  "Number blocked",
			},
		},
		{
			name:     "field map skips empty messages",
			status:   http.StatusBadRequest,
			body:     `{"pan_number": [], "email": [""], "mobile_no": "  ", "ifsc_code": ["Unknown branch"]}`,
			wantKind: wizard.SubmissionErrorFieldMap,
			wantFields: wizard.FieldErrors{
				"ifsc_code": "Unknown branch",
			},
		},
		{
			name:        "field map without any message",
			status:      http.StatusBadRequest,
			body:        `{"pan_number": [], "email": [""]}`,
			wantKind:    wizard.SubmissionErrorGlobal,
			wantMessage: "Submission failed (400 Bad Request). Please try again.",
		},
		{
			name:          "server error html",
			status:        http.StatusBadGateway,
			body:          `<html>bad gateway</html>`,
			wantKind:      wizard.SubmissionErrorGlobal,
			wantMessage:   "Submission failed (502 Bad Gateway). Please try again.",
			wantRetryable: true,
		},
		{
			name:        "unrecognised json",
			status:      http.StatusConflict,
			body:        `{"errors": {"nested": true}}`,
			wantKind:    wizard.SubmissionErrorGlobal,
			wantMessage: "Submission failed (409 Conflict). Please try again.",
		},
		{
			name:        "success without id",
			status:      http.StatusCreated,
			body:        `{"status": "ok"}`,
			wantKind:    wizard.SubmissionErrorGlobal,
			wantMessage: "The server did not return an application reference.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			receipt, err := gw.Submit(context.Background(), testSubmission())
			assert.Nil(t, receipt)

			var se *wizard.SubmissionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantKind, se.Kind)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.wantRetryable, se.Retryable)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, se.Message)
			}
			if tt.wantFields != nil {
				assert.Equal(t, tt.wantFields, se.Fields)
			}
		})
	}
}

func TestREST_Submit_Timeout(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Submit(ctx, testSubmission())
	var se *wizard.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, wizard.SubmissionErrorGlobal, se.Kind)
	assert.True(t, se.Retryable)
	assert.True(t, se.TimedOut)
}

func TestREST_Submit_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := NewREST(config.GatewayConfig{BaseURL: url, SubmitPath: "/x", Timeout: 1000}, nil)
	_, err := gw.Submit(context.Background(), testSubmission())

	var se *wizard.SubmissionError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable)
}
