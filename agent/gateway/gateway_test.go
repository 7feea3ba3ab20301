package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	terminationx "github.com/tanpawarit/premeeting-warmup-agent/agent/termination"
	toolx "github.com/tanpawarit/premeeting-warmup-agent/agent/tool"
)

type fakeScript struct {
	mu        sync.Mutex
	rounds    [][]*schema.Message
	err       error
	inputs    [][]*schema.Message
	toolBound []bool
	block     bool
}

type fakeToolCallingModel struct {
	script *fakeScript
	bound  bool
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	return nil, errors.New("generate not implemented in fake model")
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	s := f.script
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inputs = append(s.inputs, append([]*schema.Message(nil), input...))
	s.toolBound = append(s.toolBound, f.bound)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rounds) == 0 {
		return nil, errors.New("no fake response left")
	}
	chunks := s.rounds[0]
	s.rounds = s.rounds[1:]
	return schema.StreamReaderFromArray(chunks), nil
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return &fakeToolCallingModel{script: f.script, bound: true}, nil
}

func textChunks(parts ...string) []*schema.Message {
	out := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		out = append(out, &schema.Message{Role: schema.Assistant, Content: p})
	}
	return out
}

func toolCallChunk(id, name, args string) []*schema.Message {
	return []*schema.Message{{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}}
}

func newTestGateway(t *testing.T, script *fakeScript, cfg Config) *Gateway {
	t.Helper()
	tools := toolx.MustNewRegistry(toolx.DemoCatalog("[END_SESSION]")...)
	g, err := New(&fakeToolCallingModel{script: script}, tools, terminationx.MustNewDetector(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func seededTranscript() []contractx.Message {
	return []contractx.Message{
		{Role: contractx.RoleSystem, Content: "context"},
		{Role: contractx.RoleUser, Content: "Hi, I'm ready to chat.", Hidden: true},
	}
}

func TestCompleteStreamsPlainText(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{textChunks("Hi Dana, ", "slow demos ", "are fixable.")}}
	g := newTestGateway(t, script, Config{Instruction: "be Path"})

	var deltas []string
	transcript := seededTranscript()
	msg, err := g.Complete(context.Background(), transcript, func(s string) { deltas = append(deltas, s) })
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if msg.Role != contractx.RoleAssistant || msg.Content != "Hi Dana, slow demos are fixable." {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if strings.Join(deltas, "") != msg.Content {
		t.Fatalf("deltas %q do not add up to content", deltas)
	}
	if len(transcript) != 2 {
		t.Fatal("transcript must not be mutated")
	}

	in := script.inputs[0]
	if len(in) != 3 || in[0].Role != schema.System || in[0].Content != "be Path" {
		t.Fatalf("unexpected model input: %+v", in)
	}
	if !script.toolBound[0] {
		t.Fatal("first round must use the tool-bound model")
	}
}

func TestCompleteResolvesToolCall(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{
		toolCallChunk("call-1", toolx.ToolCheckDemoAvailability, `{}`),
		textChunks("We have 10am or 2pm tomorrow."),
	}}
	g := newTestGateway(t, script, Config{})

	msg, err := g.Complete(context.Background(), seededTranscript(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(msg.ToolInvocations) != 1 {
		t.Fatalf("expected one invocation, got %d", len(msg.ToolInvocations))
	}
	inv := msg.ToolInvocations[0]
	if inv.CallID != "call-1" || inv.Status != contractx.ToolResolved || !strings.Contains(inv.Result, "10am") {
		t.Fatalf("unexpected invocation: %+v", inv)
	}

	second := script.inputs[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool || last.ToolCallID != "call-1" {
		t.Fatalf("tool result not fed back: %+v", last)
	}
}

// A missing required argument is reported back to the model, which then corrects itself.
func TestCompleteInvalidArgumentsRecover(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{
		toolCallChunk("call-1", toolx.ToolBookDemo, `{"email":"dana@x.com"}`),
		toolCallChunk("call-2", toolx.ToolBookDemo, `{"email":"dana@x.com","slot":"10am"}`),
		textChunks("You're booked for 10am."),
	}}
	g := newTestGateway(t, script, Config{})

	msg, err := g.Complete(context.Background(), seededTranscript(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(msg.ToolInvocations) != 2 {
		t.Fatalf("expected two invocations, got %d", len(msg.ToolInvocations))
	}
	if msg.ToolInvocations[0].Status != contractx.ToolRejected {
		t.Fatalf("first call should be rejected: %+v", msg.ToolInvocations[0])
	}
	if !strings.Contains(msg.ToolInvocations[0].Error, contractx.ErrToolArgumentInvalid.Error()) {
		t.Fatalf("unexpected rejection: %s", msg.ToolInvocations[0].Error)
	}
	if msg.ToolInvocations[1].Status != contractx.ToolResolved {
		t.Fatalf("second call should resolve: %+v", msg.ToolInvocations[1])
	}

	feedback := script.inputs[1][len(script.inputs[1])-1]
	if !strings.HasPrefix(feedback.Content, "Error: ") {
		t.Fatalf("model should see the validation error, got %q", feedback.Content)
	}
}

func TestCompleteCapsToolRounds(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{
		toolCallChunk("c1", toolx.ToolSearchKnowledgeBase, `{"query":"a"}`),
		toolCallChunk("c2", toolx.ToolSearchKnowledgeBase, `{"query":"b"}`),
		textChunks("Here is what I found."),
	}}
	g := newTestGateway(t, script, Config{MaxToolRounds: 2})

	msg, err := g.Complete(context.Background(), seededTranscript(), nil)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if msg.Content != "Here is what I found." {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if got := script.toolBound; len(got) != 3 || !got[0] || !got[1] || got[2] {
		t.Fatalf("final round must run without tools, got %v", got)
	}
}

func TestCompleteStripsMarkerFromDeltasOnly(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{textChunks("Thanks, Dana! [END_", "SESSION]")}}
	g := newTestGateway(t, script, Config{})

	var shown strings.Builder
	msg, err := g.Complete(context.Background(), seededTranscript(), func(s string) { shown.WriteString(s) })
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if strings.Contains(shown.String(), "END") {
		t.Fatalf("marker leaked to display: %q", shown.String())
	}
	if !terminationx.MustNewDetector().Detect(msg.Content) {
		t.Fatalf("committed content must keep the marker: %q", msg.Content)
	}
}

func TestCompleteModelUnavailable(t *testing.T) {
	t.Parallel()

	script := &fakeScript{err: errors.New("connection refused")}
	g := newTestGateway(t, script, Config{})

	if _, err := g.Complete(context.Background(), seededTranscript(), nil); !errors.Is(err, contractx.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestCompleteTimeout(t *testing.T) {
	t.Parallel()

	script := &fakeScript{block: true}
	g := newTestGateway(t, script, Config{TurnTimeout: 20 * time.Millisecond})

	if _, err := g.Complete(context.Background(), seededTranscript(), nil); !errors.Is(err, contractx.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable on timeout, got %v", err)
	}
}

func TestCompleteEmptyTurn(t *testing.T) {
	t.Parallel()

	script := &fakeScript{rounds: [][]*schema.Message{textChunks("   ")}}
	g := newTestGateway(t, script, Config{})

	if _, err := g.Complete(context.Background(), seededTranscript(), nil); !errors.Is(err, contractx.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestUnconfiguredGateway(t *testing.T) {
	t.Parallel()

	_, err := Unconfigured{Reason: "LLM_API_KEY is not set"}.Complete(context.Background(), seededTranscript(), nil)
	if !errors.Is(err, contractx.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
