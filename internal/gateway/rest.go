// internal/gateway/rest.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"loan-wizard/internal/common/config"
	httpclient "loan-wizard/internal/common/http"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/common/validation"
	"loan-wizard/internal/wizard"
)

const maxResponseBytes = 1 << 20

var (
	receiptSchema = validation.MustCompile("receipt", `{
		"type": "object",
		"anyOf": [
			{"required": ["application_id"], "properties": {"application_id": {"type": ["string", "integer"]}}},
			{"required": ["id"], "properties": {"id": {"type": ["string", "integer"]}}}
		]
	}`)

	detailSchema = validation.MustCompile("detail", `{
		"type": "object",
		"required": ["detail"],
		"properties": {"detail": {"type": "string", "minLength": 1}}
	}`)

	fieldMapSchema = validation.MustCompile("field_map", `{
		"type": "object",
		"minProperties": 1,
		"additionalProperties": {
			"anyOf": [
				{"type": "string"},
				{"type": "array", "items": {"type": "string"}}
			]
		}
	}`)
)

// REST submits applications to the loan-application endpoint as multipart
// documents.
type REST struct {
	client     *httpclient.Client
	submitPath string
	logger     logger.Logger
}

// NewREST builds the gateway from config.
func NewREST(cfg config.GatewayConfig, log logger.Logger) *REST {
	opts := []httpclient.Option{httpclient.WithBaseURL(cfg.BaseURL)}
	if cfg.APIKey != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	return NewRESTWithClient(httpclient.NewClient(config.GetDuration(cfg.Timeout), opts...), cfg.SubmitPath, log)
}

// NewRESTWithClient is used by tests to point at an httptest server.
func NewRESTWithClient(client *httpclient.Client, submitPath string, log logger.Logger) *REST {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &REST{
		client:     client,
		submitPath: submitPath,
		logger:     log.WithFields(map[string]interface{}{"component": "gateway"}),
	}
}

// Submit posts one application. Every failure is returned as a
// *wizard.SubmissionError.
func (g *REST) Submit(ctx context.Context, s *wizard.Submission) (*wizard.Receipt, error) {
	body, contentType, err := encode(s)
	if err != nil {
		return nil, wizard.NewGlobalError("Unable to prepare the application for upload.", 0, false)
	}

	req, err := g.client.NewRequest(ctx, http.MethodPost, g.submitPath, body)
	if err != nil {
		return nil, wizard.NewGlobalError("Unable to reach the loan service.", 0, false)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", s.DraftID)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("submission transport error", map[string]interface{}{
			"draftId": s.DraftID,
			"error":   err.Error(),
		})
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, wizard.NewTimeoutError()
		}
		return nil, wizard.NewGlobalError("Unable to reach the loan service. Please check your connection and submit again.", 0, true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, wizard.NewGlobalError("The loan service response could not be read.", resp.StatusCode, true)
	}

	g.logger.Debug("submission response", map[string]interface{}{
		"draftId":    s.DraftID,
		"statusCode": resp.StatusCode,
		"durationMs": time.Since(start).Milliseconds(),
	})

	return classify(resp.StatusCode, raw)
}

// classify resolves the backend's response shape into a receipt or a
// tagged submission error.
func classify(status int, raw []byte) (*wizard.Receipt, error) {
	var doc interface{}
	jsonErr := json.Unmarshal(raw, &doc)

	if status >= 200 && status < 300 {
		if jsonErr == nil {
			if res, err := receiptSchema.Validate(doc); err == nil && res.Valid {
				return &wizard.Receipt{ApplicationID: applicationID(doc.(map[string]interface{}))}, nil
			}
		}
		return nil, wizard.NewGlobalError("The server did not return an application reference.", status, false)
	}

	retryable := status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
	if jsonErr != nil {
		return nil, wizard.NewGlobalError(statusMessage(status), status, retryable)
	}

	if res, err := detailSchema.Validate(doc); err == nil && res.Valid {
		detail := doc.(map[string]interface{})["detail"].(string)
		return nil, wizard.NewGlobalError(detail, status, retryable)
	}

	if res, err := fieldMapSchema.Validate(doc); err == nil && res.Valid {
		if fields := fieldErrors(doc.(map[string]interface{})); len(fields) > 0 {
			return nil, wizard.NewFieldMapError(fields, status)
		}
	}

	return nil, wizard.NewGlobalError(statusMessage(status), status, retryable)
}

func applicationID(m map[string]interface{}) string {
	for _, key := range []string{"application_id", "id"} {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// fieldErrors keeps the first message per field; lists are joined when the
// backend sends several. Fields without any message are dropped.
func fieldErrors(m map[string]interface{}) wizard.FieldErrors {
	out := make(wizard.FieldErrors, len(m))
	for field, v := range m {
		var text string
		switch msg := v.(type) {
		case string:
			text = strings.TrimSpace(msg)
		case []interface{}:
			parts := make([]string, 0, len(msg))
			for _, p := range msg {
				if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
					parts = append(parts, strings.TrimSpace(s))
				}
			}
			text = strings.Join(parts, " ")
		}
		if text != "" {
			out[field] = text
		}
	}
	return out
}

func statusMessage(status int) string {
	text := http.StatusText(status)
	if text == "" {
		text = "Unexpected response"
	}
	return fmt.Sprintf("Submission failed (%d %s). Please try again.", status, text)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// encode writes the fields in sorted order followed by one part per
// attached document.
func encode(s *wizard.Submission) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, name := range s.FieldNames() {
		if err := writer.WriteField(name, s.Fields[name]); err != nil {
			return nil, "", err
		}
	}

	for _, slot := range wizard.Slots() {
		doc := s.Documents[slot]
		if doc == nil {
			continue
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, slot, escapeQuotes(doc.Name)))
		ct := doc.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(doc.Data); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
