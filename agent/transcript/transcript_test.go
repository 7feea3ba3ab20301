package transcript

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

func TestNormalizeFlatAndPartsShapes(t *testing.T) {
	t.Parallel()

	var wire []WireMessage
	raw := `[
		{"id":"s","role":"system","content":"seed"},
		{"id":"u1","role":"user","content":"hello"},
		{"id":"a1","role":"assistant","content":"","parts":[{"type":"text","text":"Hi "},{"type":"step-start"},{"type":"text","text":"Dana"}]},
		{"id":"a2","role":"assistant","content":[{"type":"text","text":"typed"}]},
		{"id":"t1","role":"tool","content":"ignored"}
	]`
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, err := Normalize(wire)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	want := []contractx.Message{
		{ID: "s", Role: contractx.RoleSystem, Content: "seed"},
		{ID: "u1", Role: contractx.RoleUser, Content: "hello"},
		{ID: "a1", Role: contractx.RoleAssistant, Content: "Hi Dana"},
		{ID: "a2", Role: contractx.RoleAssistant, Content: "typed"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Normalize() = %+v", got)
	}
}

func TestNormalizeRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	_, err := Normalize([]WireMessage{{Role: "narrator", Content: json.RawMessage(`"x"`)}})
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDialogueFiltering(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil, nil)
	in := []contractx.Message{
		{Role: contractx.RoleSystem, Content: "# Customer Context"},
		f.TriggerMessage(),
		{Role: contractx.RoleAssistant, Content: "Hi Dana, slow demos?"},
		{Role: contractx.RoleAssistant, Content: "Hi Dana, slow demos?"},
		{Role: contractx.RoleUser, Content: "  "},
		{Role: contractx.RoleUser, Content: "hi, i'm ready to chat."},
		{Role: contractx.RoleUser, Content: "Yes, they take weeks."},
		{Role: contractx.RoleAssistant, Content: "Got it. [END_SESSION]"},
		{Role: contractx.RoleAssistant, Content: "[END SESSION]"},
		{Role: contractx.RoleUser, Content: "Bye [END_[END_SESSION]SESSION]"},
	}

	got := f.Dialogue(in)
	want := []contractx.Message{
		{Role: contractx.RoleAssistant, Content: "Hi Dana, slow demos?"},
		{Role: contractx.RoleUser, Content: "Yes, they take weeks."},
		{Role: contractx.RoleAssistant, Content: "Got it."},
		{Role: contractx.RoleUser, Content: "Bye"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dialogue() = %+v", got)
	}

	if again := f.Dialogue(got); !reflect.DeepEqual(again, got) {
		t.Fatalf("Dialogue() is not idempotent: %+v", again)
	}
}

func TestDialogueOnlySeedAndTrigger(t *testing.T) {
	t.Parallel()

	f := NewFilter(nil, []string{"Ready when you are"})
	got := f.Dialogue([]contractx.Message{
		{Role: contractx.RoleSystem, Content: "seed"},
		{Role: contractx.RoleUser, Content: "ready when you are"},
	})
	if len(got) != 0 {
		t.Fatalf("expected empty dialogue, got %+v", got)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	got := Render([]contractx.Message{
		{Role: contractx.RoleAssistant, Content: "Hi"},
		{Role: contractx.RoleUser, Content: "Hello"},
	})
	if got != "AI: Hi\n\nCustomer: Hello" {
		t.Fatalf("Render() = %q", got)
	}
}
