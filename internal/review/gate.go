package review

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/store"
)

// DefaultThreshold is the confidence below which a record needs a human
// look before it counts.
const DefaultThreshold = 0.8

// Evaluate maps a classification onto its initial review state.
// Anything at or above the threshold is trusted outright.
func Evaluate(res domain.Result, threshold float64) domain.ReviewStatus {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if res.Confidence < threshold {
		return domain.ReviewNeedsReview
	}
	return domain.ReviewApproved
}

// Decision is a reviewer's verdict on a queued record.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
)

func ParseDecision(s string) (Decision, bool) {
	switch Decision(s) {
	case DecisionApprove, DecisionReject:
		return Decision(s), true
	}
	return "", false
}

// InvalidTransitionError reports a decision applied to a record that is
// not awaiting review, carrying the state it was actually in.
type InvalidTransitionError struct {
	RecordID int64
	Current  domain.ReviewStatus
	Decision Decision
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("record %d is %s, cannot apply %s", e.RecordID, e.Current, e.Decision)
}

// Gate owns review-state transitions and the promotion of approved job
// mail into the tracked jobs table.
type Gate struct {
	DB  *store.DB
	Hub *events.Hub
}

func NewGate(db *store.DB, hub *events.Hub) *Gate {
	return &Gate{DB: db, Hub: hub}
}

// ApplyDecision moves a record from needs_review to the decided state.
// The transition happens at most once; a second decision on the same
// record fails with InvalidTransitionError no matter how the races
// interleave, because the conditional update is atomic in SQLite.
func (g *Gate) ApplyDecision(ctx context.Context, id int64, decision Decision) (store.ProcessingRecord, error) {
	ok, err := g.DB.UpdateReviewStatusIf(ctx, id, domain.ReviewNeedsReview, domain.ReviewStatus(decision))
	if err != nil {
		return store.ProcessingRecord{}, fmt.Errorf("apply decision: %w", err)
	}

	rec, err := g.DB.GetRecord(ctx, id)
	if err != nil {
		return store.ProcessingRecord{}, fmt.Errorf("load record %d: %w", id, err)
	}

	if !ok {
		return rec, &InvalidTransitionError{RecordID: id, Current: rec.ReviewStatus, Decision: decision}
	}

	if g.Hub != nil {
		g.Hub.Publish(events.MakeEvent("", events.TypeReviewDecided, 1, map[string]any{
			"id":       id,
			"decision": string(decision),
		}))
	}

	if decision == DecisionApprove && rec.IsJobRelated {
		if err := g.Promote(ctx, rec); err != nil {
			log.Printf("[review] promote record %d: %v", id, err)
		}
	}

	return rec, nil
}

// Promote copies an approved job-related record into the jobs table.
// The source id is derived from the email's natural key, so promoting
// the same record twice inserts once.
func (g *Gate) Promote(ctx context.Context, rec store.ProcessingRecord) error {
	job := store.TrackedJob{
		Company:  rec.Company,
		Title:    rec.Position,
		Status:   string(rec.Status),
		Tags:     rec.Notes,
		Date:     time.Now().UTC().Format(time.RFC3339),
		SourceID: sourceID(rec.MessageID, rec.AccountID),
	}
	added, err := g.DB.InsertJobIgnore(ctx, job)
	if err != nil {
		return err
	}
	if added && g.Hub != nil {
		g.Hub.Publish(events.MakeEvent("", events.TypeJobPromoted, 1, map[string]any{
			"company": job.Company,
			"title":   job.Title,
			"status":  job.Status,
		}))
	}
	return nil
}

func sourceID(messageID, accountID string) string {
	h := sha1.Sum([]byte("email:" + messageID + "|" + accountID))
	return hex.EncodeToString(h[:])
}
