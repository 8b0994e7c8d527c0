package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// TrackedJob is one job application promoted out of an approved email.
type TrackedJob struct {
	ID       int64    `json:"id"`
	Company  string   `json:"company"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Tags     []string `json:"tags"`
	Date     string   `json:"date"`
	SourceID string   `json:"-"`
}

// InsertJobIgnore inserts a tracked job unless its source_id already
// exists. Relies on the unique index on source_id WHERE source_id != ''.
func (d *DB) InsertJobIgnore(ctx context.Context, j TrackedJob) (added bool, err error) {
	tagsJSON, err := json.Marshal(j.Tags)
	if err != nil {
		return false, err
	}
	if j.Date == "" {
		j.Date = time.Now().UTC().Format(time.RFC3339)
	}

	_, err = d.Pool.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs (company, title, status, tags, date, source_id)
VALUES (?, ?, ?, ?, ?, ?);`,
		j.Company, j.Title, j.Status, string(tagsJSON), j.Date, j.SourceID)
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}

	// SQLite doesn't report rows affected reliably with IGNORE across
	// drivers, so ask changes() on the same connection pool.
	var changes int
	if e := d.Pool.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); e == nil {
		return changes > 0, nil
	}
	return true, nil
}

// ListJobs returns tracked jobs, newest first.
func (d *DB) ListJobs(ctx context.Context, limit int) ([]TrackedJob, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}

	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, company, title, status, tags, date
FROM jobs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackedJob
	for rows.Next() {
		var j TrackedJob
		var tagsJSON string
		if err := rows.Scan(&j.ID, &j.Company, &j.Title, &j.Status, &tagsJSON, &j.Date); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &j.Tags)
		out = append(out, j)
	}
	return out, rows.Err()
}

// UpdateJobStatus moves a tracked job to a new application status.
func (d *DB) UpdateJobStatus(ctx context.Context, id int64, status string) error {
	res, err := d.Pool.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ?;`, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
