package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"jobtriage-engine/internal/domain"
	"jobtriage-engine/internal/review"
	"jobtriage-engine/internal/store"
)

type RecordsHandler struct {
	DB   *store.DB
	Gate *review.Gate
}

func (h RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := domain.ReviewStatus(q.Get("status"))
	switch status {
	case "", domain.ReviewPending, domain.ReviewNeedsReview, domain.ReviewApproved, domain.ReviewRejected:
	default:
		WriteError(w, r, http.StatusBadRequest, "bad_status", "unknown review status")
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))

	recs, err := h.DB.ListByReviewStatus(r.Context(), status, limit)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if recs == nil {
		recs = []store.ProcessingRecord{}
	}
	writeJSON(w, recs)
}

func (h RecordsHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r.URL.Path)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "invalid record id")
		return
	}

	rec, err := h.DB.GetRecord(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, r, http.StatusNotFound, "not_found", "no such record")
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "load_failed", err.Error())
		return
	}
	writeJSON(w, rec)
}

// Review applies a reviewer decision: POST /records/{id}/review with
// {"decision":"approved"|"rejected"}.
func (h RecordsHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(r.URL.Path)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_id", "invalid record id")
		return
	}

	var body struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_body", "invalid JSON body")
		return
	}
	decision, ok := review.ParseDecision(body.Decision)
	if !ok {
		WriteError(w, r, http.StatusBadRequest, "bad_decision", "decision must be approved or rejected")
		return
	}

	rec, err := h.Gate.ApplyDecision(r.Context(), id, decision)

	var invalid *review.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		WriteError(w, r, http.StatusConflict, "invalid_transition", invalid.Error())
	case errors.Is(err, sql.ErrNoRows):
		WriteError(w, r, http.StatusNotFound, "not_found", "no such record")
	case err != nil:
		WriteError(w, r, http.StatusInternalServerError, "review_failed", err.Error())
	default:
		writeJSON(w, rec)
	}
}

// recordID parses /records/{id} and /records/{id}/review paths.
func recordID(path string) (int64, bool) {
	rest := strings.TrimPrefix(path, "/records/")
	rest = strings.TrimSuffix(rest, "/review")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
