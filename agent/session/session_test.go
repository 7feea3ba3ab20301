package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

func seeded(t *testing.T) *Session {
	t.Helper()
	s := New(bookingx.SessionContext{Name: "Dana"})
	if !s.Seed(contractx.Message{Content: "ctx"}, contractx.Message{Content: "Hi, I'm ready to chat."}) {
		t.Fatal("first seed must succeed")
	}
	return s
}

func userMsg(text string) *contractx.Message {
	return &contractx.Message{Content: text}
}

func TestSeedIsIdempotent(t *testing.T) {
	t.Parallel()

	s := seeded(t)
	if s.Seed(contractx.Message{Content: "again"}, contractx.Message{Content: "again"}) {
		t.Fatal("second seed must be a no-op")
	}
	tr := s.Transcript()
	if len(tr) != 2 || tr[0].Role != contractx.RoleSystem || !tr[1].Hidden {
		t.Fatalf("unexpected transcript: %+v", tr)
	}
	if s.State() != StateSeeded {
		t.Fatalf("unexpected state: %s", s.State())
	}
}

func TestTurnBeforeSeed(t *testing.T) {
	t.Parallel()

	s := New(bookingx.SessionContext{})
	if _, err := s.BeginTurn(nil); !errors.Is(err, contractx.ErrNotSeeded) {
		t.Fatalf("expected ErrNotSeeded, got %v", err)
	}
}

func TestTurnLifecycle(t *testing.T) {
	t.Parallel()

	s := seeded(t)
	if _, err := s.BeginTurn(nil); err != nil {
		t.Fatalf("opening turn: %v", err)
	}
	if _, err := s.BeginTurn(userMsg("hello")); !errors.Is(err, contractx.ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}
	if ended, err := s.CompleteTurn(contractx.Message{Content: "Hi Dana"}, false); err != nil || ended {
		t.Fatalf("CompleteTurn() = %v, %v", ended, err)
	}
	if s.State() != StateAwaitingInput {
		t.Fatalf("unexpected state: %s", s.State())
	}

	snap, err := s.BeginTurn(userMsg("thanks, that's all"))
	if err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}
	if last := snap[len(snap)-1]; last.Role != contractx.RoleUser || last.Content != "thanks, that's all" {
		t.Fatalf("user message not committed: %+v", last)
	}

	ended, err := s.CompleteTurn(contractx.Message{Content: "Bye! [END_SESSION]"}, true)
	if err != nil || !ended {
		t.Fatalf("CompleteTurn() = %v, %v", ended, err)
	}
	if _, err := s.BeginTurn(userMsg("wait")); !errors.Is(err, contractx.ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
	if v := s.View(); v.EndedAt == nil || v.State != StateEnded {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestFailedTurnKeepsUserMessageForRetry(t *testing.T) {
	t.Parallel()

	s := seeded(t)
	_, _ = s.BeginTurn(nil)
	_, _ = s.CompleteTurn(contractx.Message{Content: "Hi"}, false)

	if _, err := s.BeginRetry(); !errors.Is(err, contractx.ErrNothingToRetry) {
		t.Fatalf("expected ErrNothingToRetry, got %v", err)
	}

	_, _ = s.BeginTurn(userMsg("how much is it?"))
	s.FailTurn()

	if s.State() != StateAwaitingInput || !s.View().Retryable {
		t.Fatalf("failed turn should be retryable in awaiting state, got %s", s.State())
	}
	snap, err := s.BeginRetry()
	if err != nil {
		t.Fatalf("BeginRetry() error = %v", err)
	}
	if snap[len(snap)-1].Content != "how much is it?" {
		t.Fatalf("retry must replay the pending user message: %+v", snap[len(snap)-1])
	}
	if _, err := s.CompleteTurn(contractx.Message{Content: "$49/mo"}, false); err != nil {
		t.Fatalf("CompleteTurn() error = %v", err)
	}
	if n := len(s.Transcript()); n != 5 {
		t.Fatalf("expected 5 messages, got %d", n)
	}
}

func TestConcurrentEndYieldsSingleDispatch(t *testing.T) {
	t.Parallel()

	s := seeded(t)
	_, _ = s.BeginTurn(nil)

	var dispatched atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ended, err := s.CompleteTurn(contractx.Message{Content: "[END_SESSION]"}, true); err == nil && ended {
				dispatched.Add(1)
			}
		}()
	}
	wg.Wait()

	if dispatched.Load() != 1 {
		t.Fatalf("expected exactly one dispatch, got %d", dispatched.Load())
	}
}

func TestRegistrySweep(t *testing.T) {
	t.Parallel()

	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute)
	r.now = func() time.Time { return clock }

	idle := r.Create(bookingx.SessionContext{})
	busy := r.Create(bookingx.SessionContext{})
	busy.Seed(contractx.Message{}, contractx.Message{})
	if _, err := busy.BeginTurn(nil); err != nil {
		t.Fatalf("BeginTurn() error = %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if n := r.Sweep(); n != 1 {
		t.Fatalf("expected one eviction, got %d", n)
	}
	if _, err := r.Get(idle.ID); !errors.Is(err, contractx.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := r.Get(busy.ID); err != nil {
		t.Fatalf("processing session must survive sweep: %v", err)
	}
}
