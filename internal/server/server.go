// Package server exposes the webhook HTTP surface: the Messenger subscribe
// handshake, signed event delivery, and a small operator API.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/conversation"
	"github.com/kamjony/skittobot/internal/database"
	"github.com/kamjony/skittobot/internal/logger"
	"github.com/kamjony/skittobot/internal/messenger"
)

// Server handles webhook HTTP traffic and hands messaging events to the
// conversation controller.
type Server struct {
	controller *conversation.Controller
	store      database.Store
	cfg        config.MessengerConfig
	log        *slog.Logger
	router     chi.Router
}

// New creates the HTTP server and its routes.
func New(controller *conversation.Controller, store database.Store, cfg config.MessengerConfig, log *slog.Logger) *Server {
	s := &Server{
		controller: controller,
		store:      store,
		cfg:        cfg,
		log:        log.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))

	r.Get("/", s.handleIndex)
	r.Get("/webhook", s.handleVerify)
	r.Post("/webhook", s.handleEvents)
	r.Get("/transcript/{userID}", s.handleTranscript)

	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Hello world, I am a chat bot")
}

// handleVerify answers the Messenger webhook subscribe handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.cfg.VerifyToken {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}

	s.log.WarnContext(r.Context(), "Webhook verification failed, tokens do not match")
	w.WriteHeader(http.StatusForbidden)
}

// handleEvents verifies the payload signature, acknowledges receipt
// immediately, and dispatches each messaging event on its own goroutine.
// Events are deliberately not serialized per user.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !messenger.VerifySignature(s.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature")) {
		s.log.WarnContext(r.Context(), "Webhook signature verification failed")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	var payload messenger.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to decode webhook payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object != "page" {
		s.log.DebugContext(r.Context(), "Ignoring non-page webhook object", "object", payload.Object)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Event handling outlives this request; the platform expects a 200
	// within its delivery window regardless of processing time.
	ctx := context.WithoutCancel(r.Context())
	for _, entry := range payload.Entry {
		for _, ev := range entry.Messaging {
			go s.controller.HandleEvent(ctx, ev)
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "EVENT_RECEIVED")
}

// handleTranscript returns recent transcript entries for a user. Operator
// endpoint, guarded by the verify token.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != s.cfg.VerifyToken {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	userID := chi.URLParam(r, "userID")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.store.RecentEntries(r.Context(), userID, limit)
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to load transcript", "user_id", userID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.log.ErrorContext(r.Context(), "Failed to encode transcript response", "error", err)
	}
}
