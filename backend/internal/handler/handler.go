package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/itchan-dev/threads/backend/internal/service"
	"github.com/itchan-dev/threads/shared/config"
	"github.com/itchan-dev/threads/shared/logger"
	"github.com/itchan-dev/threads/shared/markdown"
)

// HealthChecker is implemented by every store
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	thread   service.ThreadService
	user     service.UserService
	activity service.ActivityService
	health   HealthChecker
	cfg      *config.Config
	text     *markdown.TextProcessor
}

func New(thread service.ThreadService, user service.UserService, activity service.ActivityService, health HealthChecker, cfg *config.Config) *Handler {
	return &Handler{
		thread:   thread,
		user:     user,
		activity: activity,
		health:   health,
		cfg:      cfg,
		text:     markdown.New(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes before writing so a failed encode still yields a clean 500
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
