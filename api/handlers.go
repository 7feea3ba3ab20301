package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	transcriptx "github.com/tanpawarit/premeeting-warmup-agent/agent/transcript"
	mailerx "github.com/tanpawarit/premeeting-warmup-agent/pkg/mailer"
)

const (
	linkField       = "link"
	sessionIDHeader = "X-Session-ID"
)

type webhookResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	ChatLink  string `json:"chat_link,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleWebhookStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Calendly webhook endpoint is running",
		"status":  "OK",
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	var payload bookingx.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		AddError(ctx, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}
	AddLogField(ctx, "webhook_event", payload.Event)

	if payload.Event != bookingx.EventInviteeCreated {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Event type not handled"})
		return
	}

	encoded, err := s.encoder.Encode(payload.Payload)
	if err != nil {
		AddError(ctx, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}
	sc := encoded.Context
	logger.Info().Str("email", sc.Email).Str("event_name", sc.EventName).Msg("booking received")

	if s.mailer == nil {
		err := errors.New("invitation mailer is not configured")
		AddError(ctx, err)
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: err.Error()})
		return
	}

	messageID, err := s.mailer.SendInvitation(ctx, mailerx.Invitation{
		To:          sc.Email,
		Name:        sc.Name,
		EventName:   sc.EventName,
		MeetingTime: bookingx.FormatMeetingTimeLong(sc.EventStartTime, s.location),
		Link:        encoded.Link,
	})
	if err != nil {
		AddError(ctx, err)
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Error: err.Error()})
		return
	}

	logger.Info().Str("email", sc.Email).Str("message_id", messageID).Msg("invitation sent")
	writeJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		Message:   "Email sent successfully",
		MessageID: messageID,
		ChatLink:  encoded.Link,
	})
}

// handleStartSession accepts either {"link": "<chat link>"} or the link's query
// parameters as a flat JSON object. An empty body falls back to the request's own query.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var params map[string]string
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, errors.Join(contractx.ErrValidation, err))
		return
	}

	var sc bookingx.SessionContext
	if link := strings.TrimSpace(params[linkField]); link != "" {
		parsed, err := s.encoder.ParseLink(link)
		if err != nil {
			writeError(w, r, err)
			return
		}
		sc = parsed
	} else if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		sc = s.encoder.FromQuery(q)
	} else {
		sc = s.encoder.FromQuery(r.URL.Query())
	}

	stream := newEventStream(w, r)
	res, err := s.conversations.Start(r.Context(), sc, stream.Delta)
	if res.SessionID != "" {
		AddLogField(r.Context(), "session_id", res.SessionID)
	}
	if err != nil {
		// The session exists even when its opening turn failed; the client retries by id.
		stream.Fail(err, res.SessionID)
		return
	}
	stream.Done(res)
}

type turnRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stream := newEventStream(w, r)
	res, err := s.conversations.Turn(r.Context(), id, req.Text, stream.Delta)
	if err != nil {
		stream.Fail(err, id)
		return
	}
	stream.Done(res)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	stream := newEventStream(w, r)
	res, err := s.conversations.Retry(r.Context(), id, stream.Delta)
	if err != nil {
		stream.Fail(err, id)
		return
	}
	stream.Done(res)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	AddLogField(r.Context(), "session_id", id)

	view, err := s.conversations.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// chatData is the seeding metadata the browser client sends next to its history.
type chatData struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Challenge      string `json:"challenge"`
	DemoType       string `json:"demoType"`
	MeetingTime    string `json:"meetingTime"`
	EventName      string `json:"eventName"`
	EventStartTime string `json:"eventStartTime"`
}

func (d chatData) sessionContext(s *Server) bookingx.SessionContext {
	sc := bookingx.SessionContext{
		Name:           strings.TrimSpace(d.Name),
		Email:          strings.TrimSpace(d.Email),
		Challenge:      d.Challenge,
		DemoType:       d.DemoType,
		EventStartTime: d.EventStartTime,
		EventName:      d.EventName,
		MeetingTime:    d.MeetingTime,
	}
	if sc.MeetingTime == "" && sc.EventStartTime != "" {
		sc.MeetingTime = bookingx.FormatMeetingTime(sc.EventStartTime, s.location)
	}
	return sc
}

type chatRequest struct {
	Messages []transcriptx.WireMessage `json:"messages"`
	Data     chatData                  `json:"data"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	history, err := transcriptx.Normalize(req.Messages)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stream := newEventStream(w, r)
	res, err := s.conversations.Chat(r.Context(), req.Data.sessionContext(s), history, stream.Delta)
	if err != nil {
		stream.Fail(err, "")
		return
	}
	stream.Done(res)
}

type customerInfo struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	MeetingTime string `json:"meetingTime"`
	Challenge   string `json:"challenge"`
	DemoType    string `json:"demoType"`
}

type summaryRequest struct {
	SessionID    string                    `json:"session_id"`
	Messages     []transcriptx.WireMessage `json:"messages"`
	CustomerInfo customerInfo              `json:"customer_info"`
}

type summaryResponse struct {
	Success   bool                  `json:"success"`
	Message   string                `json:"message"`
	Duplicate bool                  `json:"duplicate,omitempty"`
	Summary   contractx.LeadSummary `json:"summary"`
	Warning   string                `json:"warning,omitempty"`
}

// dispatchKey falls back to the lead's email and meeting time when the client has no
// session id, so repeated posts for the same booking still dispatch once.
func (req summaryRequest) dispatchKey() string {
	if id := strings.TrimSpace(req.SessionID); id != "" {
		return id
	}
	email := strings.ToLower(strings.TrimSpace(req.CustomerInfo.Email))
	if email == "" {
		return ""
	}
	return "lead:" + email + "|" + strings.TrimSpace(req.CustomerInfo.MeetingTime)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req summaryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key := req.dispatchKey()
	if key == "" {
		writeError(w, r, errors.Join(contractx.ErrValidation, errors.New("session_id or customer_info.email is required")))
		return
	}
	AddLogField(ctx, "session_id", key)

	transcript, err := transcriptx.Normalize(req.Messages)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The ledger latch is taken inside the call, so a client that hangs up must not cancel
	// the dispatch halfway.
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	info := req.CustomerInfo
	res, err := s.summarizer.SummarizeAndDispatch(dispatchCtx, contractx.SummaryRequest{
		SessionID: key,
		Lead: contractx.LeadInfo{
			Name:        info.Name,
			Email:       info.Email,
			MeetingTime: info.MeetingTime,
			Challenge:   info.Challenge,
			DemoType:    info.DemoType,
		},
		Transcript: transcript,
	})

	switch {
	case res.Duplicate:
		writeJSON(w, http.StatusOK, summaryResponse{
			Success:   true,
			Message:   "Summary already sent",
			Duplicate: true,
		})
	case res.Dispatched:
		resp := summaryResponse{Success: true, Message: "Summary sent", Summary: res.Summary}
		if err != nil {
			AddError(ctx, err)
			resp.Warning = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	case err != nil:
		writeError(w, r, err)
	default:
		writeError(w, r, errors.New("summary was not dispatched"))
	}
}
