package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/events"
	"jobtriage-engine/internal/store"
)

type JobsHandler struct {
	DB  *store.DB
	Hub *events.Hub
}

func (h JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.DB.ListJobs(r.Context(), limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if jobs == nil {
		jobs = []store.TrackedJob{}
	}
	writeJSON(w, jobs)
}

// UpdateStatus handles PATCH /jobs/{id} with {"status":"interview"}.
func (h JobsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/jobs/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "invalid job id")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_body", "invalid JSON body")
		return
	}
	if domain.ParseStatus(body.Status) == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_status", "unknown application status")
		return
	}

	if err := h.DB.UpdateJobStatus(r.Context(), id, body.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			WriteError(w, r, http.StatusNotFound, "not_found", "no such job")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}

	reqID := RequestIDFrom(r.Context())
	h.Hub.Publish(events.MakeEvent(reqID, "job_updated", 1, map[string]any{"id": id, "status": body.Status}))
	writeJSON(w, map[string]any{"ok": true, "id": id})
}
