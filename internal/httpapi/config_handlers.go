package httpapi

import (
	"net/http"
	"sync/atomic"

	"jobtriage-engine/internal/config"
)

type ConfigHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	cfg, ok := h.CfgVal.Load().(config.Config)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "no_config", "config not loaded")
		return
	}
	writeJSON(w, cfg)
}
