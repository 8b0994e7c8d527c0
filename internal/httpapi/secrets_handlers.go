package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"jobtriage-engine/internal/config"
	"jobtriage-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

// SetIMAPPassword stores the mailbox password in the OS keychain so it
// never touches the config file.
func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_body", "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "empty_password", "password is required")
		return
	}

	cfg, _ := h.CfgVal.Load().(config.Config)
	account := secrets.IMAPKeyringAccount(cfg)

	if err := secrets.SetIMAPPassword(account, body.Password); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "keyring_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}
