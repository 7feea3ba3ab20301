package transcript

import (
	"strings"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
	terminationx "github.com/tanpawarit/premeeting-warmup-agent/agent/termination"
)

var DefaultTriggerPhrases = []string{
	"Hi, I'm ready to chat.",
	"Hi, I am ready to chat.",
}

// Filter prepares transcripts for display and for summarization.
type Filter struct {
	detector *terminationx.Detector
	triggers map[string]struct{}
	primary  string
}

func NewFilter(detector *terminationx.Detector, triggerPhrases []string) *Filter {
	if detector == nil {
		detector = terminationx.MustNewDetector()
	}
	if len(triggerPhrases) == 0 {
		triggerPhrases = DefaultTriggerPhrases
	}

	f := &Filter{
		detector: detector,
		triggers: make(map[string]struct{}, len(triggerPhrases)),
	}
	for _, phrase := range triggerPhrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		if f.primary == "" {
			f.primary = phrase
		}
		f.triggers[strings.ToLower(phrase)] = struct{}{}
	}
	if f.primary == "" {
		f.primary = DefaultTriggerPhrases[0]
		f.triggers[strings.ToLower(f.primary)] = struct{}{}
	}
	return f
}

// TriggerMessage is the invisible user message that forces the model's opening turn.
func (f *Filter) TriggerMessage() contractx.Message {
	return contractx.Message{Role: contractx.RoleUser, Content: f.primary, Hidden: true}
}

func (f *Filter) IsTrigger(m contractx.Message) bool {
	if m.Hidden {
		return true
	}
	_, ok := f.triggers[strings.ToLower(strings.TrimSpace(m.Content))]
	return ok
}

func (f *Filter) Detector() *terminationx.Detector {
	return f.detector
}

// Dialogue keeps only human-facing dialogue: system seeds, triggers, markers, empty
// messages and consecutive duplicate (role, content) pairs are removed. Applying it to
// its own output returns the same messages.
func (f *Filter) Dialogue(msgs []contractx.Message) []contractx.Message {
	out := make([]contractx.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == contractx.RoleSystem || f.IsTrigger(m) {
			continue
		}
		m.Content = f.detector.Strip(m.Content)
		if m.Content == "" || f.IsTrigger(m) {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role && out[n-1].Content == m.Content {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Render formats dialogue as "Customer:" / "AI:" paragraphs.
func Render(msgs []contractx.Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if m.Role == contractx.RoleUser {
			b.WriteString("Customer: ")
		} else {
			b.WriteString("AI: ")
		}
		b.WriteString(m.Content)
	}
	return b.String()
}
