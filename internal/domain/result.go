package domain

import "strings"

// Status is the application-progress stage inferred for a job email.
// Empty means unknown.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusInterview Status = "interview"
	StatusDeclined  Status = "declined"
	StatusOffer     Status = "offer"
)

// ParseStatus maps free-form model output onto a known Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "applied", "application", "submitted":
		return StatusApplied
	case "interview", "interviewing", "screen", "phone screen":
		return StatusInterview
	case "declined", "rejected", "rejection":
		return StatusDeclined
	case "offer", "offered":
		return StatusOffer
	default:
		return ""
	}
}

// ReviewStatus is the persistence-side review state of a record.
type ReviewStatus string

const (
	ReviewPending     ReviewStatus = "pending"
	ReviewNeedsReview ReviewStatus = "needs_review"
	ReviewApproved    ReviewStatus = "approved"
	ReviewRejected    ReviewStatus = "rejected"
)

// Terminal reports whether a review state accepts no further decisions.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

// RawOutput is what a single provider returns before normalization.
type RawOutput struct {
	IsJobRelated bool
	Company      string
	Position     string
	Status       Status
}

// Result is the classification value threaded through the pipeline.
// Stages never mutate a Result they were given; each derives a copy and
// appends to Notes/DecisionPath so the full audit trail survives.
type Result struct {
	IsJobRelated bool
	Company      string
	Position     string
	Status       Status
	Confidence   float64
	DecisionPath string
	Notes        []string
}

// WithNote returns a copy with tag appended to Notes. A tag already
// present is skipped, so re-running a stage leaves the trail unchanged.
func (r Result) WithNote(tag string) Result {
	for _, n := range r.Notes {
		if n == tag {
			return r
		}
	}
	out := r
	out.Notes = append(append([]string(nil), r.Notes...), tag)
	return out
}

// WithStage returns a copy with stage appended to DecisionPath. Stage
// names are unique across the pipeline, so a stage already on the path
// is skipped; re-running a stage cannot grow the path.
func (r Result) WithStage(stage string) Result {
	out := r
	if out.DecisionPath == "" {
		out.DecisionPath = stage
		return out
	}
	for _, s := range strings.Split(out.DecisionPath, ">") {
		if s == stage {
			return out
		}
	}
	out.DecisionPath += ">" + stage
	return out
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
