package classify

import (
	"context"

	"jobtriage-engine/internal/domain"
)

// Baseline is the terminal tier: deterministic, never fails, claims
// nothing. It exists so the orchestrator can always return a result.
type Baseline struct{}

func (Baseline) Name() string { return "baseline" }

func (Baseline) Classify(_ context.Context, _ domain.EmailInput) (domain.RawOutput, error) {
	return domain.RawOutput{IsJobRelated: false}, nil
}
