package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"jobtriage-engine/internal/domain"
)

// ProcessingRecord is one classified email as persisted.
type ProcessingRecord struct {
	ID           int64               `json:"id"`
	MessageID    string              `json:"messageId"`
	AccountID    string              `json:"accountId"`
	Subject      string              `json:"subject"`
	FromAddr     string              `json:"from"`
	Body         string              `json:"-"`
	IsJobRelated bool                `json:"isJobRelated"`
	Company      string              `json:"company"`
	Position     string              `json:"position"`
	Status       domain.Status       `json:"status"`
	Confidence   float64             `json:"confidence"`
	DecisionPath string              `json:"decisionPath"`
	Notes        []string            `json:"notes"`
	ReviewStatus domain.ReviewStatus `json:"reviewStatus"`
	ProcessingMS int64               `json:"processingMs"`
	CreatedAt    string              `json:"createdAt"`
	UpdatedAt    string              `json:"updatedAt"`
}

// SyncMarker records that an email was seen, independent of whether its
// record row was written before. Presence alone means skip.
type SyncMarker struct {
	MessageID    string
	AccountID    string
	ProcessedAt  string
	IsJobRelated bool
}

// Exists reports whether the email was already processed.
func (d *DB) Exists(ctx context.Context, messageID, accountID string) (bool, error) {
	var one int
	err := d.Pool.QueryRowContext(ctx,
		`SELECT 1 FROM sync_markers WHERE message_id = ? AND account_id = ? LIMIT 1;`,
		messageID, accountID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// WriteBatch persists a sub-batch of records and their markers in one
// transaction. INSERT OR IGNORE on the natural keys makes a replay of
// the same batch a no-op, so a retry after a failed commit is safe.
func (d *DB) WriteBatch(ctx context.Context, recs []ProcessingRecord, markers []SyncMarker) error {
	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, r := range recs {
		notesJSON, err := json.Marshal(r.Notes)
		if err != nil {
			return fmt.Errorf("marshal notes: %w", err)
		}
		if r.ReviewStatus == "" {
			r.ReviewStatus = domain.ReviewPending
		}
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO processed_emails
  (message_id, account_id, subject, from_addr, body,
   is_job_related, company, position, status, confidence,
   decision_path, notes, review_status, processing_ms,
   created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
			r.MessageID, r.AccountID, r.Subject, r.FromAddr, r.Body,
			boolToInt(r.IsJobRelated), r.Company, r.Position, string(r.Status), r.Confidence,
			r.DecisionPath, string(notesJSON), string(r.ReviewStatus), r.ProcessingMS,
			now, now,
		); err != nil {
			return fmt.Errorf("insert record %s: %w", r.MessageID, err)
		}
	}

	for _, m := range markers {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO sync_markers (message_id, account_id, processed_at, is_job_related)
VALUES (?,?,?,?);`,
			m.MessageID, m.AccountID, now, boolToInt(m.IsJobRelated),
		); err != nil {
			return fmt.Errorf("insert marker %s: %w", m.MessageID, err)
		}
	}

	return tx.Commit()
}

// GetRecord loads one record by row id.
func (d *DB) GetRecord(ctx context.Context, id int64) (ProcessingRecord, error) {
	row := d.Pool.QueryRowContext(ctx, recordSelect+`WHERE id = ?;`, id)
	return scanRecord(row)
}

// GetRecordByKey loads one record by its natural key.
func (d *DB) GetRecordByKey(ctx context.Context, messageID, accountID string) (ProcessingRecord, error) {
	row := d.Pool.QueryRowContext(ctx,
		recordSelect+`WHERE message_id = ? AND account_id = ?;`, messageID, accountID)
	return scanRecord(row)
}

// ListByReviewStatus returns records in a review state, newest first.
// An empty status lists everything.
func (d *DB) ListByReviewStatus(ctx context.Context, status domain.ReviewStatus, limit int) ([]ProcessingRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	query := recordSelect
	args := []any{}
	if status != "" {
		query += `WHERE review_status = ? `
		args = append(args, string(status))
	}
	query += `ORDER BY id DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := d.Pool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProcessingRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateReviewStatusIf moves a record from one review state to another
// only if it is still in the expected state. The conditional UPDATE is
// the whole concurrency story: two racing reviewers cannot both win.
func (d *DB) UpdateReviewStatusIf(ctx context.Context, id int64, from, to domain.ReviewStatus) (bool, error) {
	res, err := d.Pool.ExecContext(ctx, `
UPDATE processed_emails
SET review_status = ?, updated_at = ?
WHERE id = ? AND review_status = ?;`,
		string(to), time.Now().UTC().Format(time.RFC3339), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const recordSelect = `
SELECT id, message_id, account_id, subject, from_addr, body,
       is_job_related, company, position, status, confidence,
       decision_path, notes, review_status, processing_ms,
       created_at, updated_at
FROM processed_emails
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ProcessingRecord, error) {
	var r ProcessingRecord
	var isJob int
	var status, notesJSON, review string
	if err := row.Scan(
		&r.ID, &r.MessageID, &r.AccountID, &r.Subject, &r.FromAddr, &r.Body,
		&isJob, &r.Company, &r.Position, &status, &r.Confidence,
		&r.DecisionPath, &notesJSON, &review, &r.ProcessingMS,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return ProcessingRecord{}, err
	}
	r.IsJobRelated = isJob != 0
	r.Status = domain.Status(status)
	r.ReviewStatus = domain.ReviewStatus(review)
	_ = json.Unmarshal([]byte(notesJSON), &r.Notes)
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
