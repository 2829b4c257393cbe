package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/onnwee/markov-chatter/bot"
	"github.com/onnwee/markov-chatter/telemetry"
)

// Brain is the slice of *bot.Bot the HTTP surface uses.
type Brain interface {
	Stats() bot.Stats
	Preview(ctx context.Context) string
	Save(ctx context.Context) error
}

// Check is a named readiness probe, e.g. a database or Redis ping.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	brain  Brain
	checks []Check
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{brain: deps.Brain, checks: deps.Checks}
}

// HandleHealthz is the liveness probe; it only proves the process serves HTTP.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz runs every configured check and reports the first failure.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	for _, check := range h.checks {
		if err := check.Fn(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": check.Name,
				"error":        err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus returns brain and trigger statistics.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.brain.Stats())
}

// HandleAdminGenerate returns a sentence from the current brain without posting it.
func (h *Handlers) HandleAdminGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sentence := h.brain.Preview(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"sentence": sentence, "empty": sentence == ""})
}

// HandleAdminSave persists the brain immediately.
func (h *Handlers) HandleAdminSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.brain.Save(r.Context()); err != nil {
		telemetry.LoggerWithCorr(r.Context()).Error("admin save failed", slog.Any("err", err), slog.String("component", "http"))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
