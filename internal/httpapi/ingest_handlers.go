package httpapi

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"jobtriage-engine/internal/ingest"
)

type IngestHandler struct {
	Status *atomic.Value // stores IngestStatus
	Run    func(ctx context.Context) (ingest.Summary, error)
}

func (h IngestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(IngestStatus)
	writeJSON(w, st)
}

// TriggerRun kicks one ingestion cycle in the background and returns
// immediately. A cycle already in flight is not doubled up.
func (h IngestHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	st, _ := h.Status.Load().(IngestStatus)
	if st.Running {
		WriteError(w, r, http.StatusConflict, "already_running", "an ingestion cycle is in flight")
		return
	}

	st.Running = true
	h.Status.Store(st)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		sum, err := h.Run(ctx)

		done := IngestStatus{
			LastRunAt:  time.Now().UTC().Format(time.RFC3339),
			LastResult: sum,
		}
		if err != nil {
			done.LastError = err.Error()
		}
		h.Status.Store(done)
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
