package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"jobtriage-engine/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func sampleRecord(messageID string) ProcessingRecord {
	return ProcessingRecord{
		MessageID:    messageID,
		AccountID:    "acct",
		Subject:      "Thank you for your application to Acme",
		FromAddr:     "no-reply@acme.com",
		IsJobRelated: true,
		Company:      "Acme",
		Position:     "Engineer",
		Status:       domain.StatusApplied,
		Confidence:   0.9,
		DecisionPath: "two_stage>normalize",
		Notes:        []string{"two_stage_ok"},
		ReviewStatus: domain.ReviewApproved,
	}
}

func marker(messageID string) SyncMarker {
	return SyncMarker{MessageID: messageID, AccountID: "acct", IsJobRelated: true}
}

func TestWriteBatchAndExists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	exists, err := db.Exists(ctx, "m1", "acct")
	require.NoError(t, err)
	require.False(t, exists)

	err = db.WriteBatch(ctx,
		[]ProcessingRecord{sampleRecord("m1"), sampleRecord("m2")},
		[]SyncMarker{marker("m1"), marker("m2")})
	require.NoError(t, err)

	exists, err = db.Exists(ctx, "m1", "acct")
	require.NoError(t, err)
	require.True(t, exists)
}

func TestWriteBatchReplayIsNoop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	recs := []ProcessingRecord{sampleRecord("m1")}
	marks := []SyncMarker{marker("m1")}

	require.NoError(t, db.WriteBatch(ctx, recs, marks))
	require.NoError(t, db.WriteBatch(ctx, recs, marks))

	var n int
	require.NoError(t, db.Pool.QueryRow(
		`SELECT COUNT(*) FROM processed_emails WHERE message_id = 'm1';`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestRoundTripPreservesFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.WriteBatch(ctx,
		[]ProcessingRecord{sampleRecord("m1")}, []SyncMarker{marker("m1")}))

	got, err := db.GetRecordByKey(ctx, "m1", "acct")
	require.NoError(t, err)
	require.True(t, got.IsJobRelated)
	require.Equal(t, "Acme", got.Company)
	require.Equal(t, domain.StatusApplied, got.Status)
	require.Equal(t, []string{"two_stage_ok"}, got.Notes)
	require.Equal(t, domain.ReviewApproved, got.ReviewStatus)
	require.Equal(t, "two_stage>normalize", got.DecisionPath)
}

func TestListByReviewStatus(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	pending := sampleRecord("m1")
	pending.ReviewStatus = domain.ReviewNeedsReview
	approved := sampleRecord("m2")

	require.NoError(t, db.WriteBatch(ctx,
		[]ProcessingRecord{pending, approved},
		[]SyncMarker{marker("m1"), marker("m2")}))

	queued, err := db.ListByReviewStatus(ctx, domain.ReviewNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	require.Equal(t, "m1", queued[0].MessageID)

	all, err := db.ListByReviewStatus(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestUpdateReviewStatusIfIsSingleShot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := sampleRecord("m1")
	rec.ReviewStatus = domain.ReviewNeedsReview
	require.NoError(t, db.WriteBatch(ctx,
		[]ProcessingRecord{rec}, []SyncMarker{marker("m1")}))

	got, err := db.GetRecordByKey(ctx, "m1", "acct")
	require.NoError(t, err)

	ok, err := db.UpdateReviewStatusIf(ctx, got.ID, domain.ReviewNeedsReview, domain.ReviewApproved)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.UpdateReviewStatusIf(ctx, got.ID, domain.ReviewNeedsReview, domain.ReviewRejected)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertJobIgnoreDeduplicatesBySource(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	job := TrackedJob{Company: "Acme", Title: "Engineer", Status: "applied", SourceID: "src-1"}

	added, err := db.InsertJobIgnore(ctx, job)
	require.NoError(t, err)
	require.True(t, added)

	added, err = db.InsertJobIgnore(ctx, job)
	require.NoError(t, err)
	require.False(t, added)

	jobs, err := db.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}
