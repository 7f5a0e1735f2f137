// Package journal keeps an audit row for every submission outcome.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"loan-wizard/internal/common/errors"
	"loan-wizard/internal/common/logger"
	"loan-wizard/internal/wizard"

	"github.com/google/uuid"
)

const (
	OutcomeSubmitted = "submitted"
	OutcomeFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS wizard_submissions (
	id             UUID PRIMARY KEY,
	draft_id       TEXT NOT NULL,
	tenant_id      TEXT NOT NULL,
	customer_id    TEXT,
	product_id     TEXT,
	outcome        TEXT NOT NULL,
	application_id TEXT,
	error_kind     TEXT,
	error_message  TEXT,
	field_errors   JSONB,
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
)`

// Entry is one submission attempt.
type Entry struct {
	DraftID       string
	Session       wizard.SessionContext
	Outcome       string
	ApplicationID string
	ErrorKind     string
	ErrorMessage  string
	FieldErrors   wizard.FieldErrors
	Duration      time.Duration
	At            time.Time
}

// Journal writes entries to Postgres.
type Journal struct {
	db      *sql.DB
	logger  logger.Logger
	timeout time.Duration
}

func New(db *sql.DB, log logger.Logger) *Journal {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Journal{
		db:      db,
		logger:  log.WithFields(map[string]interface{}{"component": "journal"}),
		timeout: 5 * time.Second,
	}
}

// EnsureSchema creates the table when it is missing.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("create wizard_submissions: %w", err))
	}
	return nil
}

// Record inserts one entry and returns its row id.
func (j *Journal) Record(ctx context.Context, e Entry) (string, error) {
	id := uuid.New().String()
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var fieldErrs []byte
	if len(e.FieldErrors) > 0 {
		b, err := json.Marshal(e.FieldErrors)
		if err != nil {
			return "", errors.NewJournalWriteFailedError(err)
		}
		fieldErrs = b
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO wizard_submissions (
			id, draft_id, tenant_id, customer_id, product_id, outcome,
			application_id, error_kind, error_message, field_errors,
			duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id,
		e.DraftID,
		e.Session.TenantID,
		nullable(e.Session.CustomerID),
		nullable(e.Session.ProductID),
		e.Outcome,
		nullable(e.ApplicationID),
		nullable(e.ErrorKind),
		nullable(e.ErrorMessage),
		fieldErrs,
		e.Duration.Milliseconds(),
		at,
	)
	if err != nil {
		return "", errors.NewJournalWriteFailedError(err)
	}
	return id, nil
}

// Subscriber records submitted and submit_failed events. Write errors are
// logged and never reach the wizard.
func (j *Journal) Subscriber() wizard.Subscriber {
	return func(ev wizard.Event) {
		entry, ok := EntryFromEvent(ev)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()

		if _, err := j.Record(ctx, entry); err != nil {
			j.logger.Error("journal write failed", map[string]interface{}{
				"draftId": ev.DraftID,
				"outcome": entry.Outcome,
				"error":   err,
			})
		}
	}
}

// EntryFromEvent maps a controller event onto a journal entry.
func EntryFromEvent(ev wizard.Event) (Entry, bool) {
	entry := Entry{
		DraftID:  ev.DraftID,
		Session:  ev.Session,
		Duration: ev.Duration,
		At:       ev.At,
	}

	switch ev.Type {
	case wizard.EventSubmitted:
		entry.Outcome = OutcomeSubmitted
		if ev.Receipt != nil {
			entry.ApplicationID = ev.Receipt.ApplicationID
		}
	case wizard.EventSubmitFailed:
		entry.Outcome = OutcomeFailed
		if ev.Failure != nil {
			entry.ErrorKind = string(ev.Failure.Kind)
			entry.ErrorMessage = ev.Failure.Message
			entry.FieldErrors = ev.Failure.Fields
		}
	default:
		return Entry{}, false
	}
	return entry, true
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
