package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/itchan-dev/threads/shared/logger"
)

const readyTimeout = 2 * time.Second

type readiness struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// Health is a liveness endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Ready is a readiness endpoint: 200 when the configured store answers a ping
// within readyTimeout, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.health.Ping(ctx); err != nil {
		logger.Log.Warn("readiness check failed", "storage", h.cfg.Public.Storage, "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, readiness{Status: "unavailable", Storage: h.cfg.Public.Storage})
		return
	}

	writeJSONStatus(w, http.StatusOK, readiness{Status: "ok", Storage: h.cfg.Public.Storage})
}
