package review

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/store"
)

func newTestGate(t *testing.T) (*Gate, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))
	return NewGate(db, events.NewHub()), db
}

func queueRecord(t *testing.T, db *store.DB, messageID string, jobRelated bool) store.ProcessingRecord {
	t.Helper()
	rec := store.ProcessingRecord{
		MessageID:    messageID,
		AccountID:    "acct",
		Subject:      "Interview at Acme",
		IsJobRelated: jobRelated,
		Company:      "Acme",
		Position:     "Engineer",
		Status:       domain.StatusInterview,
		Confidence:   0.5,
		ReviewStatus: domain.ReviewNeedsReview,
	}
	err := db.WriteBatch(context.Background(),
		[]store.ProcessingRecord{rec},
		[]store.SyncMarker{{MessageID: messageID, AccountID: "acct", IsJobRelated: jobRelated}})
	require.NoError(t, err)

	got, err := db.GetRecordByKey(context.Background(), messageID, "acct")
	require.NoError(t, err)
	return got
}

func TestEvaluateAgainstThreshold(t *testing.T) {
	require.Equal(t, domain.ReviewNeedsReview, Evaluate(domain.Result{Confidence: 0.79}, 0.8))
	require.Equal(t, domain.ReviewApproved, Evaluate(domain.Result{Confidence: 0.8}, 0.8))
	require.Equal(t, domain.ReviewApproved, Evaluate(domain.Result{Confidence: 1.0}, 0.8))

	// zero threshold falls back to the default
	require.Equal(t, domain.ReviewNeedsReview, Evaluate(domain.Result{Confidence: 0.5}, 0))
}

func TestApplyDecisionApprovesOnce(t *testing.T) {
	gate, db := newTestGate(t)
	ctx := context.Background()

	rec := queueRecord(t, db, "m1", true)

	decided, err := gate.ApplyDecision(ctx, rec.ID, DecisionApprove)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewApproved, decided.ReviewStatus)

	_, err = gate.ApplyDecision(ctx, rec.ID, DecisionReject)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, domain.ReviewApproved, invalid.Current)
	require.Equal(t, rec.ID, invalid.RecordID)
}

func TestApprovalPromotesJobRelatedRecords(t *testing.T) {
	gate, db := newTestGate(t)
	ctx := context.Background()

	rec := queueRecord(t, db, "m1", true)
	_, err := gate.ApplyDecision(ctx, rec.ID, DecisionApprove)
	require.NoError(t, err)

	jobs, err := db.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Acme", jobs[0].Company)
	require.Equal(t, "Engineer", jobs[0].Title)
	require.Equal(t, "interview", jobs[0].Status)
}

func TestApprovalSkipsNonJobRecords(t *testing.T) {
	gate, db := newTestGate(t)
	ctx := context.Background()

	rec := queueRecord(t, db, "m1", false)
	_, err := gate.ApplyDecision(ctx, rec.ID, DecisionApprove)
	require.NoError(t, err)

	jobs, err := db.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestRejectionNeverPromotes(t *testing.T) {
	gate, db := newTestGate(t)
	ctx := context.Background()

	rec := queueRecord(t, db, "m1", true)
	decided, err := gate.ApplyDecision(ctx, rec.ID, DecisionReject)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewRejected, decided.ReviewStatus)

	jobs, err := db.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, jobs)
}

func TestPromoteIsIdempotent(t *testing.T) {
	gate, db := newTestGate(t)
	ctx := context.Background()

	rec := queueRecord(t, db, "m1", true)
	require.NoError(t, gate.Promote(ctx, rec))
	require.NoError(t, gate.Promote(ctx, rec))

	jobs, err := db.ListJobs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
}

func TestParseDecision(t *testing.T) {
	d, ok := ParseDecision("approved")
	require.True(t, ok)
	require.Equal(t, DecisionApprove, d)

	_, ok = ParseDecision("maybe")
	require.False(t, ok)
}
