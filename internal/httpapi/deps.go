package httpapi

import (
	"context"
	"sync/atomic"

	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/ingest"
	"jobtriage-engine/internal/review"
	"jobtriage-engine/internal/store"
)

// IngestStatus is the last ingestion cycle as shown to the UI.
type IngestStatus struct {
	Running    bool           `json:"running"`
	LastRunAt  string         `json:"lastRunAt,omitempty"`
	LastResult ingest.Summary `json:"lastResult"`
	LastError  string         `json:"lastError,omitempty"`
}

type Deps struct {
	DB   *store.DB
	Hub  *events.Hub
	Gate *review.Gate

	// Atomic stores
	CfgVal       *atomic.Value // stores config.Config
	IngestStatus *atomic.Value // stores httpapi.IngestStatus

	// Ingest entrypoint (inject for testability)
	RunIngestOnce func(ctx context.Context) (ingest.Summary, error)
}
