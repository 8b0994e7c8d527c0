package httpapi

import (
	"encoding/json"
	"net/http"
)

// writeJSON encodes v with the implicit 200 status. Handlers that need
// an explicit status or the error envelope use WriteJSON / WriteError.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

// methodMux dispatches one route by HTTP method; anything not in the
// map gets the uniform 405 envelope.
func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}
