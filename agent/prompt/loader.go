package prompt

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	bookingx "github.com/tanpawarit/premeeting-warmup-agent/agent/booking"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

var (
	//go:embed template/agent.txt
	agentRaw string

	//go:embed template/seed.txt
	seedRaw string

	//go:embed template/summary.txt
	summaryRaw string
)

const notProvided = "not provided"

// PromptSet holds the policy documents handed to the models.
type PromptSet struct {
	Agent   string
	Seed    string
	Summary string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Agent:   strings.TrimSpace(agentRaw),
		Seed:    strings.TrimSpace(seedRaw),
		Summary: strings.TrimSpace(summaryRaw),
	}
}

func (p PromptSet) Validate() error {
	switch {
	case p.Agent == "":
		return fmt.Errorf("%w: agent", contractx.ErrPromptMissing)
	case p.Seed == "":
		return fmt.Errorf("%w: seed", contractx.ErrPromptMissing)
	case p.Summary == "":
		return fmt.Errorf("%w: summary", contractx.ErrPromptMissing)
	}
	return nil
}

// AgentInstruction renders the dialogue system prompt around the configured end marker.
func (p PromptSet) AgentInstruction(ctx context.Context, endMarker string) (string, error) {
	return render(ctx, p.Agent, map[string]any{"end_marker": endMarker})
}

// SeedMessage renders the customer-context block that opens every session.
func (p PromptSet) SeedMessage(ctx context.Context, sc bookingx.SessionContext) (string, error) {
	return render(ctx, p.Seed, map[string]any{
		"name":         orDefault(sc.Name, bookingx.DefaultInviteeName),
		"email":        orDefault(sc.Email, notProvided),
		"challenge":    orDefault(sc.Challenge, bookingx.NotSpecified),
		"demo_type":    orDefault(sc.DemoType, bookingx.NotSpecified),
		"event_name":   orDefault(sc.EventName, bookingx.DefaultEventName),
		"meeting_time": orDefault(sc.MeetingTime, "soon"),
	})
}

func (p PromptSet) SummaryPrompt(ctx context.Context, conversation string) (string, error) {
	return render(ctx, p.Summary, map[string]any{"conversation": conversation})
}

func render(ctx context.Context, tpl string, vars map[string]any) (string, error) {
	msgs, err := einoprompt.FromMessages(schema.FString, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	if len(msgs) == 0 {
		return "", fmt.Errorf("%w: template rendered no message", contractx.ErrPromptMissing)
	}
	return msgs[0].Content, nil
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
