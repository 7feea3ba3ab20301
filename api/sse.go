package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

const (
	eventDelta = "delta"
	eventDone  = "done"
	eventError = "error"
)

type deltaEvent struct {
	Text string `json:"text"`
}

// eventStream writes server-sent events. Headers are committed on the first event, so a
// turn that fails before producing any text can still answer with a plain JSON error.
type eventStream struct {
	w       http.ResponseWriter
	r       *http.Request
	flusher http.Flusher

	mu      sync.Mutex
	started bool
}

func newEventStream(w http.ResponseWriter, r *http.Request) *eventStream {
	flusher, _ := w.(http.Flusher)
	return &eventStream{w: w, r: r, flusher: flusher}
}

func (s *eventStream) Delta(text string) {
	if text == "" {
		return
	}
	s.send(eventDelta, deltaEvent{Text: text})
}

func (s *eventStream) Done(v any) {
	s.send(eventDone, v)
}

// Fail reports err as a JSON error before the stream starts, or as an error event after.
// sessionID, when set, tells the client which session to retry.
func (s *eventStream) Fail(err error, sessionID string) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	AddError(s.r.Context(), err)
	body := newErrorBody(err, sessionID)
	if !started {
		if sessionID != "" {
			s.w.Header().Set(sessionIDHeader, sessionID)
		}
		writeJSON(s.w, statusFor(err), body)
		return
	}
	s.send(eventError, body)
}

func (s *eventStream) send(event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zerolog.Ctx(s.r.Context()).Warn().Err(err).Str("event", event).Msg("marshal sse event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
