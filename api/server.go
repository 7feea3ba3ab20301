// Package api exposes the warm-up agent over HTTP: the booking webhook, the session
// endpoints that stream assistant turns as server-sent events, and the stateless chat and
// summary routes used by the browser client.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	orchestratorx "github.com/tanpawarit/premeeting-warmup-agent/agent/agents/orchestrator"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	sessionx "github.com/tanpawarit/premeeting-warmup-agent/agent/session"
	mailerx "github.com/tanpawarit/premeeting-warmup-agent/pkg/mailer"
)

// Conversations is the orchestrator surface the handlers drive.
type Conversations interface {
	Start(ctx context.Context, sc bookingx.SessionContext, onDelta func(string)) (orchestratorx.TurnResult, error)
	Turn(ctx context.Context, sessionID, text string, onDelta func(string)) (orchestratorx.TurnResult, error)
	Retry(ctx context.Context, sessionID string, onDelta func(string)) (orchestratorx.TurnResult, error)
	Get(sessionID string) (sessionx.View, error)
	Chat(ctx context.Context, sc bookingx.SessionContext, history []contractx.Message, onDelta func(string)) (orchestratorx.TurnResult, error)
}

type InvitationSender interface {
	SendInvitation(ctx context.Context, inv mailerx.Invitation) (string, error)
}

type Server struct {
	conversations Conversations
	summarizer    contractx.Summarizer
	encoder       *bookingx.Encoder
	mailer        InvitationSender
	location      *time.Location

	dispatchTimeout time.Duration
}

const defaultDispatchTimeout = time.Minute

// New wires the handlers. location renders meeting times in invitation emails.
func New(
	conversations Conversations,
	summarizer contractx.Summarizer,
	encoder *bookingx.Encoder,
	mailer InvitationSender,
	location *time.Location,
) *Server {
	if location == nil {
		location = time.UTC
	}
	return &Server{
		conversations: conversations,
		summarizer:    summarizer,
		encoder:       encoder,
		mailer:        mailer,
		location:      location,

		dispatchTimeout: defaultDispatchTimeout,
	}
}

// WithDispatchTimeout bounds POST /api/summary work that outlives the request.
func (s *Server) WithDispatchTimeout(d time.Duration) *Server {
	if d > 0 {
		s.dispatchTimeout = d
	}
	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/webhooks/calendly", func(r chi.Router) {
		r.Get("/", s.handleWebhookStatus)
		r.Post("/", s.handleWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", s.handleStartSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Post("/sessions/{id}/turns", s.handleTurn)
		r.Post("/sessions/{id}/retry", s.handleRetry)

		r.Post("/chat", s.handleChat)
		r.Post("/summary", s.handleSummary)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
