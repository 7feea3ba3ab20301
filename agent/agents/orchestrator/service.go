package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	promptx "github.com/tanpawarit/premeeting-warmup-agent/agent/prompt"
	sessionx "github.com/tanpawarit/premeeting-warmup-agent/agent/session"
	transcriptx "github.com/tanpawarit/premeeting-warmup-agent/agent/transcript"
)

const defaultDispatchTimeout = time.Minute

type Config struct {
	// DispatchTimeout bounds the background summarize-and-notify step after a session ends.
	DispatchTimeout time.Duration
}

// TurnResult is what a caller sees after one completed assistant turn.
type TurnResult struct {
	SessionID string            `json:"session_id,omitempty"`
	Message   contractx.Message `json:"-"`
	Text      string            `json:"text"`
	Ended     bool              `json:"ended"`
}

type Orchestrator struct {
	sessions   *sessionx.Registry
	gateway    contractx.DialogueGateway
	summarizer contractx.Summarizer
	filter     *transcriptx.Filter
	prompts    promptx.PromptSet

	graphRunner     compose.Runnable[*turnState, TurnResult]
	dispatchTimeout time.Duration
	dispatches      sync.WaitGroup
}

func New(
	sessions *sessionx.Registry,
	gateway contractx.DialogueGateway,
	summarizer contractx.Summarizer,
	filter *transcriptx.Filter,
	prompts promptx.PromptSet,
	cfg Config,
) (*Orchestrator, error) {
	if sessions == nil {
		return nil, errors.New("session registry is required")
	}
	if gateway == nil {
		return nil, errors.New("dialogue gateway is required")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer is required")
	}
	if filter == nil {
		filter = transcriptx.NewFilter(nil, nil)
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	dispatchTimeout := cfg.DispatchTimeout
	if dispatchTimeout <= 0 {
		dispatchTimeout = defaultDispatchTimeout
	}

	o := &Orchestrator{
		sessions:        sessions,
		gateway:         gateway,
		summarizer:      summarizer,
		filter:          filter,
		prompts:         prompts,
		dispatchTimeout: dispatchTimeout,
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Start creates a session from the booking context, seeds it and runs the opening turn.
// The session id is returned even when the opening turn fails so the caller can retry it.
func (o *Orchestrator) Start(ctx context.Context, sc bookingx.SessionContext, onDelta func(string)) (TurnResult, error) {
	// Render first so a failure leaves no session behind.
	seed, err := o.prompts.SeedMessage(ctx, sc)
	if err != nil {
		return TurnResult{}, err
	}
	s := o.sessions.Create(sc)
	s.Seed(contractx.Message{Role: contractx.RoleSystem, Content: seed}, o.filter.TriggerMessage())

	log.Info().Str("session_id", s.ID).Str("email", sc.Email).Msg("session seeded")

	res, err := o.run(ctx, &turnState{session: s, onDelta: onDelta})
	res.SessionID = s.ID
	return res, err
}

func (o *Orchestrator) Turn(ctx context.Context, sessionID, text string, onDelta func(string)) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, fmt.Errorf("%w: message text is required", contractx.ErrValidation)
	}
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	return o.run(ctx, &turnState{
		session: s,
		user:    &contractx.Message{Role: contractx.RoleUser, Content: text},
		onDelta: onDelta,
	})
}

// Retry re-runs the last failed turn against the committed transcript.
func (o *Orchestrator) Retry(ctx context.Context, sessionID string, onDelta func(string)) (TurnResult, error) {
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	return o.run(ctx, &turnState{session: s, retry: true, onDelta: onDelta})
}

func (o *Orchestrator) Get(sessionID string) (sessionx.View, error) {
	s, err := o.sessions.Get(sessionID)
	if err != nil {
		return sessionx.View{}, err
	}
	v := s.View()
	v.Transcript = o.filter.Dialogue(v.Transcript)
	return v, nil
}

// Chat runs one turn over a client-held history without a server-side session. The history
// is seeded when it carries no system message and sc has something to seed with.
func (o *Orchestrator) Chat(ctx context.Context, sc bookingx.SessionContext, history []contractx.Message, onDelta func(string)) (TurnResult, error) {
	transcript := make([]contractx.Message, 0, len(history)+1)
	if !hasSystemMessage(history) && !sc.Empty() {
		seed, err := o.prompts.SeedMessage(ctx, sc)
		if err != nil {
			return TurnResult{}, err
		}
		transcript = append(transcript, contractx.Message{Role: contractx.RoleSystem, Content: seed, Hidden: true})
	}
	transcript = append(transcript, history...)
	if len(transcript) == 0 || transcript[len(transcript)-1].Role != contractx.RoleUser {
		transcript = append(transcript, o.filter.TriggerMessage())
	}

	msg, err := o.gateway.Complete(ctx, transcript, onDelta)
	if err != nil {
		return TurnResult{}, err
	}
	detector := o.filter.Detector()
	return TurnResult{
		Message: msg,
		Text:    detector.Strip(msg.Content),
		Ended:   detector.Detect(msg.Content),
	}, nil
}

// Wait blocks until background dispatches have finished.
func (o *Orchestrator) Wait() {
	o.dispatches.Wait()
}

func (o *Orchestrator) run(ctx context.Context, st *turnState) (TurnResult, error) {
	res, err := o.graphRunner.Invoke(ctx, st)
	if err != nil {
		if st.err != nil {
			return TurnResult{}, st.err
		}
		return TurnResult{}, err
	}
	return res, nil
}

func (o *Orchestrator) dispatch(parent context.Context, s *sessionx.Session) {
	o.dispatches.Add(1)
	go func() {
		defer o.dispatches.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), o.dispatchTimeout)
		defer cancel()

		res, err := o.summarizer.SummarizeAndDispatch(ctx, contractx.SummaryRequest{
			SessionID:  s.ID,
			Lead:       s.Context().Lead(),
			Transcript: s.Transcript(),
		})
		if err != nil {
			log.Error().Err(err).Str("session_id", s.ID).Bool("dispatched", res.Dispatched).Msg("session summary dispatch failed")
			return
		}
		log.Info().Str("session_id", s.ID).Bool("duplicate", res.Duplicate).Msg("session summary dispatched")
	}()
}

func hasSystemMessage(msgs []contractx.Message) bool {
	for _, m := range msgs {
		if m.Role == contractx.RoleSystem {
			return true
		}
	}
	return false
}
