package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/normalize"
	"jobtriage-engine/internal/review"
	"jobtriage-engine/internal/store"
)

// Classifier produces a raw classification for one email. It is total:
// no error return, failures are folded into the result.
type Classifier interface {
	Classify(ctx context.Context, in domain.EmailInput) domain.Result
}

// Normalizer rewrites a classification using email evidence.
type Normalizer interface {
	Normalize(ev normalize.Evidence, raw domain.Result) domain.Result
}

// Summary is what one ingestion run did.
type Summary struct {
	Written           int   `json:"written"`
	SkippedDuplicates int   `json:"skippedDuplicates"`
	Errors            int   `json:"errors"`
	FailedSubBatches  []int `json:"failedSubBatches,omitempty"`

	// CommittedKeys lists the dedup keys that are durably stored after
	// this run, both newly written and already-present duplicates. The
	// mail source acknowledges exactly these; anything else stays
	// unseen on the server and is fetched again.
	CommittedKeys []string `json:"-"`
}

// batchStore is the slice of the storage layer the pipeline touches.
// Kept narrow so tests can interpose storage failures.
type batchStore interface {
	Exists(ctx context.Context, messageID, accountID string) (bool, error)
	WriteBatch(ctx context.Context, recs []store.ProcessingRecord, markers []store.SyncMarker) error
	GetRecordByKey(ctx context.Context, messageID, accountID string) (store.ProcessingRecord, error)
}

// Pipeline drives classify, normalize, gate, persist for batches of
// fetched email.
type Pipeline struct {
	DB         batchStore
	Classifier Classifier
	Normalizer Normalizer
	Gate       *review.Gate
	Hub        *events.Hub

	ReviewThreshold float64
	SubBatchSize    int
	Workers         int

	reserved *registry
}

func NewPipeline(db *store.DB, c Classifier, n Normalizer, gate *review.Gate, hub *events.Hub) *Pipeline {
	return &Pipeline{
		DB:              db,
		Classifier:      c,
		Normalizer:      n,
		Gate:            gate,
		Hub:             hub,
		ReviewThreshold: review.DefaultThreshold,
		SubBatchSize:    50,
		Workers:         4,
		reserved:        newRegistry(),
	}
}

// Ingest processes one fetched batch. Sub-batches run in parallel and
// fail independently: a storage error in one sub-batch never blocks the
// others, and every failed email is counted rather than lost silently.
// The joined storage errors come back alongside the summary.
func (p *Pipeline) Ingest(ctx context.Context, batch []domain.EmailInput) (Summary, error) {
	size := p.SubBatchSize
	if size <= 0 {
		size = 50
	}
	workers := p.Workers
	if workers <= 0 {
		workers = 4
	}
	if p.reserved == nil {
		p.reserved = newRegistry()
	}

	var (
		mu      sync.Mutex
		sum     Summary
		majors  []error
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(workers)

	for start, idx := 0, 0; start < len(batch); start, idx = start+size, idx+1 {
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		sub, subIdx := batch[start:end], idx

		g.Go(func() error {
			written, dups, errs, committed, err := p.ingestSub(gctx, sub)
			mu.Lock()
			defer mu.Unlock()
			sum.Written += written
			sum.SkippedDuplicates += dups
			sum.Errors += errs
			sum.CommittedKeys = append(sum.CommittedKeys, committed...)
			if err != nil {
				sum.FailedSubBatches = append(sum.FailedSubBatches, subIdx)
				majors = append(majors, fmt.Errorf("sub-batch %d: %w", subIdx, err))
				log.Printf("[ingest] sub-batch %d failed: %v", subIdx, err)
			}
			return nil
		})
	}

	_ = g.Wait()

	if p.Hub != nil {
		p.Hub.Publish(events.MakeEvent("", events.TypeIngestDone, 1, sum))
	}
	return sum, errors.Join(majors...)
}

// ingestSub classifies one sub-batch and commits it in a single
// transaction. Reservations are released either way: on commit failure
// so the whole sub-batch can be retried, on success because the store's
// Exists check covers committed rows from then on. The committed list
// carries the dedup keys that are durable, including duplicates of
// rows written by an earlier run.
func (p *Pipeline) ingestSub(ctx context.Context, sub []domain.EmailInput) (written, dups, errCount int, committed []string, err error) {
	var (
		recs     []store.ProcessingRecord
		markers  []store.SyncMarker
		keys     []string
		promoted []store.ProcessingRecord
	)

	releaseAll := func() {
		for _, k := range keys {
			p.reserved.release(k)
		}
	}

	for _, in := range sub {
		key := in.DedupKey()

		if !p.reserved.reserve(key) {
			dups++
			continue
		}

		exists, lookupErr := p.DB.Exists(ctx, in.ProviderMessageID, in.AccountID)
		if lookupErr != nil {
			log.Printf("[ingest] dedup lookup msg=%s: %v", in.ProviderMessageID, lookupErr)
			p.reserved.release(key)
			errCount++
			continue
		}
		if exists {
			p.reserved.release(key)
			dups++
			committed = append(committed, key)
			continue
		}
		keys = append(keys, key)

		started := time.Now()
		res := p.Classifier.Classify(ctx, in)
		res = p.Normalizer.Normalize(normalize.Evidence{
			Subject: in.Subject,
			Body:    in.BodyPlaintext,
			From:    in.FromAddress,
		}, res)
		state := review.Evaluate(res, p.ReviewThreshold)

		rec := store.ProcessingRecord{
			MessageID:    in.ProviderMessageID,
			AccountID:    in.AccountID,
			Subject:      in.Subject,
			FromAddr:     in.FromAddress,
			Body:         in.BodyPlaintext,
			IsJobRelated: res.IsJobRelated,
			Company:      res.Company,
			Position:     res.Position,
			Status:       res.Status,
			Confidence:   res.Confidence,
			DecisionPath: res.DecisionPath,
			Notes:        res.Notes,
			ReviewStatus: state,
			ProcessingMS: time.Since(started).Milliseconds(),
		}
		recs = append(recs, rec)
		markers = append(markers, store.SyncMarker{
			MessageID:    in.ProviderMessageID,
			AccountID:    in.AccountID,
			IsJobRelated: res.IsJobRelated,
		})
		if state == domain.ReviewApproved && res.IsJobRelated {
			promoted = append(promoted, rec)
		}

		if p.Hub != nil {
			p.Hub.Publish(events.MakeEvent("", events.TypeClassifyDone, 1, map[string]any{
				"messageId":    in.ProviderMessageID,
				"isJobRelated": res.IsJobRelated,
				"confidence":   res.Confidence,
				"reviewStatus": string(state),
			}))
		}
	}

	if len(recs) == 0 {
		return 0, dups, errCount, committed, nil
	}

	if err := p.DB.WriteBatch(ctx, recs, markers); err != nil {
		releaseAll()
		return 0, dups, errCount + len(recs), committed, err
	}
	written = len(recs)
	committed = append(committed, keys...)
	// Committed rows are visible to Exists now, so holding their
	// reservations would only grow the registry over a daemon's life.
	releaseAll()

	if p.Hub != nil {
		p.Hub.Publish(events.MakeEvent("", events.TypeBatchSaved, 1, map[string]any{
			"written": written,
		}))
	}

	// Auto-approved job mail goes straight into the jobs table. Promotion
	// is idempotent, so a lost race with a replay is harmless.
	if p.Gate != nil {
		for _, rec := range promoted {
			full, err := p.DB.GetRecordByKey(ctx, rec.MessageID, rec.AccountID)
			if err != nil {
				log.Printf("[ingest] load for promote msg=%s: %v", rec.MessageID, err)
				continue
			}
			if err := p.Gate.Promote(ctx, full); err != nil {
				log.Printf("[ingest] promote msg=%s: %v", rec.MessageID, err)
			}
		}
	}

	return written, dups, errCount, committed, nil
}
