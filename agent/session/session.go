package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateSeeded        State = "seeded"
	StateProcessing    State = "processing"
	StateAwaitingInput State = "awaiting_input"
	StateEnded         State = "ended"
)

// Session is one chat instance. All transitions go through its mutex; the model call
// itself happens outside the lock while the session sits in StateProcessing.
type Session struct {
	ID string

	mu         sync.Mutex
	state      State
	resume     State
	context    bookingx.SessionContext
	transcript []contractx.Message
	failed     bool
	createdAt  time.Time
	lastActive time.Time
	endedAt    time.Time
	now        func() time.Time
}

// View is a copy of the session safe to hand out.
type View struct {
	ID         string                  `json:"id"`
	State      State                   `json:"state"`
	Context    bookingx.SessionContext `json:"context"`
	Transcript []contractx.Message     `json:"transcript"`
	Retryable  bool                    `json:"retryable"`
	CreatedAt  time.Time               `json:"created_at"`
	EndedAt    *time.Time              `json:"ended_at,omitempty"`
}

func New(sc bookingx.SessionContext) *Session {
	return newSession(uuid.NewString(), sc, time.Now)
}

func newSession(id string, sc bookingx.SessionContext, now func() time.Time) *Session {
	t := now()
	return &Session{
		ID:         id,
		state:      StateUninitialized,
		context:    sc,
		createdAt:  t,
		lastActive: t,
		now:        now,
	}
}

func (s *Session) Context() bookingx.SessionContext {
	return s.context
}

// Seed installs the system seed and the hidden trigger exactly once. Later calls are no-ops
// and report false.
func (s *Session) Seed(seed, trigger contractx.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return false
	}
	seed.Role = contractx.RoleSystem
	seed.Hidden = true
	trigger.Role = contractx.RoleUser
	trigger.Hidden = true
	s.transcript = append(s.transcript, withID(seed), withID(trigger))
	s.state = StateSeeded
	s.touch()
	return true
}

// BeginTurn commits the user message (nil for the opening turn) and moves the session to
// StateProcessing. It returns the transcript the model should see.
func (s *Session) BeginTurn(user *contractx.Message) ([]contractx.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUninitialized:
		return nil, contractx.ErrNotSeeded
	case StateProcessing:
		return nil, contractx.ErrTurnInProgress
	case StateEnded:
		return nil, contractx.ErrSessionEnded
	case StateSeeded:
		if user != nil && !s.failed {
			return nil, fmt.Errorf("%w: opening turn has not completed", contractx.ErrTurnInProgress)
		}
	case StateAwaitingInput:
		if user == nil {
			return nil, fmt.Errorf("%w: user message is required", contractx.ErrValidation)
		}
	}

	if user != nil {
		m := *user
		m.Role = contractx.RoleUser
		s.transcript = append(s.transcript, withID(m))
	}
	s.failed = false
	s.resume = s.state
	s.state = StateProcessing
	s.touch()
	return s.snapshot(), nil
}

// BeginRetry re-enters StateProcessing for the last failed turn without adding a message.
func (s *Session) BeginRetry() ([]contractx.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateProcessing:
		return nil, contractx.ErrTurnInProgress
	case s.state == StateEnded:
		return nil, contractx.ErrSessionEnded
	case !s.failed:
		return nil, contractx.ErrNothingToRetry
	}
	s.failed = false
	s.resume = s.state
	s.state = StateProcessing
	s.touch()
	return s.snapshot(), nil
}

// CompleteTurn commits the assistant message. When ended is true the session moves to
// StateEnded and CompleteTurn returns true; that happens at most once per session.
func (s *Session) CompleteTurn(assistant contractx.Message, ended bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProcessing {
		return false, fmt.Errorf("%w: no turn in progress (state=%s)", contractx.ErrValidation, s.state)
	}
	assistant.Role = contractx.RoleAssistant
	s.transcript = append(s.transcript, withID(assistant))
	s.touch()

	if ended {
		s.state = StateEnded
		s.endedAt = s.now()
		return true, nil
	}
	s.state = StateAwaitingInput
	return false, nil
}

// FailTurn abandons the in-flight turn. Nothing from it is committed; the user message
// stays in the transcript and can be retried.
func (s *Session) FailTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProcessing {
		return
	}
	s.state = s.resume
	s.failed = true
	s.touch()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Transcript() []contractx.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.ID,
		State:      s.state,
		Context:    s.context,
		Transcript: s.snapshot(),
		Retryable:  s.failed,
		CreatedAt:  s.createdAt,
	}
	if !s.endedAt.IsZero() {
		endedAt := s.endedAt
		v.EndedAt = &endedAt
	}
	return v
}

// idleSince reports the last activity; sessions mid-turn are never idle.
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.state != StateProcessing
}

func (s *Session) touch() {
	s.lastActive = s.now()
}

func (s *Session) snapshot() []contractx.Message {
	out := make([]contractx.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func withID(m contractx.Message) contractx.Message {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return m
}
