package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/normalize"
	"jobtriage-engine/internal/review"
	"jobtriage-engine/internal/store"
)

type stubClassifier struct {
	result domain.Result
}

func (s stubClassifier) Classify(_ context.Context, _ domain.EmailInput) domain.Result {
	return s.result
}

func newTestPipeline(t *testing.T, c Classifier) (*Pipeline, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db.Pool))

	hub := events.NewHub()
	gate := review.NewGate(db, hub)
	return NewPipeline(db, c, normalize.New(config.Config{}), gate, hub), db
}

func email(id, subject, from string) domain.EmailInput {
	return domain.EmailInput{
		Subject:           subject,
		BodyPlaintext:     "hello",
		FromAddress:       from,
		ReceivedAt:        time.Now(),
		ProviderMessageID: id,
		AccountID:         "acct",
	}
}

func TestIngestWritesAndDeduplicatesWithinBatch(t *testing.T) {
	p, db := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: true, Company: "Acme", Confidence: 0.9,
	}})

	batch := []domain.EmailInput{
		email("m1", "Your application to Acme", "no-reply@acme.com"),
		email("m2", "Interview invitation", "no-reply@acme.com"),
		email("m1", "Your application to Acme", "no-reply@acme.com"), // same key
	}

	sum, err := p.Ingest(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 2, sum.Written)
	require.Equal(t, 1, sum.SkippedDuplicates)
	require.Equal(t, 0, sum.Errors)
	require.ElementsMatch(t, []string{"m1|acct", "m2|acct"}, sum.CommittedKeys)

	all, err := db.ListByReviewStatus(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestIngestSkipsAlreadyPersistedEmails(t *testing.T) {
	p, _ := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: true, Confidence: 0.9,
	}})

	batch := []domain.EmailInput{
		email("m1", "Your application to Acme", "no-reply@acme.com"),
	}

	sum, err := p.Ingest(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 1, sum.Written)

	sum, err = p.Ingest(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 0, sum.Written)
	require.Equal(t, 1, sum.SkippedDuplicates)
	// an already-stored message is still acknowledgeable
	require.Equal(t, []string{"m1|acct"}, sum.CommittedKeys)
}

func TestReservationsReleasedAfterCommit(t *testing.T) {
	p, _ := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: true, Confidence: 0.9,
	}})

	_, err := p.Ingest(context.Background(), []domain.EmailInput{
		email("m1", "Your application to Acme", "no-reply@acme.com"),
	})
	require.NoError(t, err)

	// committed keys leave the in-flight registry; the store's Exists
	// check covers them from now on
	require.True(t, p.reserved.reserve("m1|acct"))
}

func TestLowConfidenceLandsInReviewQueue(t *testing.T) {
	p, db := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: true, Confidence: 0.4,
	}})

	_, err := p.Ingest(context.Background(), []domain.EmailInput{
		email("m1", "hello there", "person@gmail.com"),
	})
	require.NoError(t, err)

	queued, err := db.ListByReviewStatus(context.Background(), domain.ReviewNeedsReview, 0)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	jobs, err := db.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, jobs, "low-confidence records must not be promoted")
}

func TestHighConfidenceJobMailIsAutoPromoted(t *testing.T) {
	p, db := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: true, Company: "Acme", Position: "Engineer",
		Status: domain.StatusApplied, Confidence: 0.95,
	}})

	_, err := p.Ingest(context.Background(), []domain.EmailInput{
		email("m1", "Thank you for your application to Acme", "no-reply@acme.com"),
	})
	require.NoError(t, err)

	approved, err := db.ListByReviewStatus(context.Background(), domain.ReviewApproved, 0)
	require.NoError(t, err)
	require.Len(t, approved, 1)

	jobs, err := db.ListJobs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Acme", jobs[0].Company)
}

func TestIngestSplitsIntoSubBatches(t *testing.T) {
	p, db := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: false, Confidence: 0.9,
	}})
	p.SubBatchSize = 2
	p.Workers = 2

	batch := make([]domain.EmailInput, 7)
	for i := range batch {
		batch[i] = email(fmt.Sprintf("m%d", i), "hello", "person@gmail.com")
	}

	sum, err := p.Ingest(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, 7, sum.Written)

	all, err := db.ListByReviewStatus(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 7)
}

// flakyStore fails WriteBatch for any sub-batch carrying failKey and
// passes everything else through to the real store.
type flakyStore struct {
	*store.DB
	failKey string
}

func (f *flakyStore) WriteBatch(ctx context.Context, recs []store.ProcessingRecord, markers []store.SyncMarker) error {
	for _, r := range recs {
		if r.MessageID == f.failKey {
			return errors.New("database is locked")
		}
	}
	return f.DB.WriteBatch(ctx, recs, markers)
}

func TestStorageFailureIsolatesSubBatch(t *testing.T) {
	p, db := newTestPipeline(t, stubClassifier{result: domain.Result{
		IsJobRelated: false, Confidence: 0.9,
	}})
	p.SubBatchSize = 2
	p.Workers = 2

	flaky := &flakyStore{DB: db, failKey: "m0"}
	p.DB = flaky

	batch := []domain.EmailInput{
		email("m0", "hello", "person@gmail.com"),
		email("m1", "hello", "person@gmail.com"),
		email("m2", "hello", "person@gmail.com"),
		email("m3", "hello", "person@gmail.com"),
	}

	sum, err := p.Ingest(context.Background(), batch)
	require.Error(t, err)
	require.Equal(t, 2, sum.Written)
	require.Equal(t, 2, sum.Errors)
	require.Equal(t, []int{0}, sum.FailedSubBatches)
	require.ElementsMatch(t, []string{"m2|acct", "m3|acct"}, sum.CommittedKeys)

	all, err := db.ListByReviewStatus(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// the failed sub-batch stays eligible; a retry with working storage
	// lands both of its emails
	flaky.failKey = ""
	sum, err = p.Ingest(context.Background(), batch[:2])
	require.NoError(t, err)
	require.Equal(t, 2, sum.Written)
	require.ElementsMatch(t, []string{"m0|acct", "m1|acct"}, sum.CommittedKeys)
}

func TestRegistryReserveRelease(t *testing.T) {
	r := newRegistry()
	require.True(t, r.reserve("k"))
	require.False(t, r.reserve("k"))
	r.release("k")
	require.True(t, r.reserve("k"))
}
