// Package httphandler is the HTTP driving adapter: the webhook endpoint and
// the health check.
package httphandler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// eventHeader carries the webhook event kind. Header lookup is
// case-insensitive per net/http canonicalization.
const eventHeader = "X-GitHub-Event"

// maxPayloadBytes bounds webhook bodies; GitHub caps deliveries at 25 MB.
const maxPayloadBytes = 25 << 20

// EventDispatcher routes one classified webhook delivery into the
// application core.
type EventDispatcher interface {
	Dispatch(ctx context.Context, eventKind string, payload []byte) error
}

// Handler serves the webhook endpoint. Every outcome, including ignored and
// malformed deliveries, answers 200 with an empty body: webhook senders
// retry on non-2xx, and a retried delivery could re-trigger side effects
// that are not idempotent-safe here. Failures are logged server-side only.
type Handler struct {
	dispatcher EventDispatcher
	logger     *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(dispatcher EventDispatcher, logger *slog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// NewRouter builds the chi router with the webhook and health routes
// registered and logging/recovery middleware applied.
func NewRouter(h *Handler, webhookPath string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(loggingMiddleware(logger))
	r.Use(recoveryMiddleware(logger))

	r.Post(webhookPath, h.Webhook)
	r.Get("/healthz", h.Health)

	return r
}

// Webhook receives one GitHub webhook delivery.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	event := r.Header.Get(eventHeader)
	if event == "" {
		h.logger.Error("webhook delivery missing event header", "header", eventHeader)
		return
	}

	payload, err := readPayload(r)
	if err != nil {
		h.logger.Error("webhook payload unreadable", "event", event, "error", err)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), event, payload); err != nil {
		h.logger.Error("webhook event handling failed", "event", event, "error", err)
		return
	}

	h.logger.Info("webhook event handled", "event", event)
}

// readPayload extracts the JSON payload from either a direct JSON body or a
// form-encoded body carrying a "payload" field, matching GitHub's two
// webhook content types.
func readPayload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxPayloadBytes)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return []byte(r.PostFormValue("payload")), nil
	}

	return io.ReadAll(r.Body)
}

// Health answers the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
