package tool

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

const (
	ToolSearchKnowledgeBase      = "search_knowledge_base"
	ToolFetchProductCapabilities = "fetch_product_capabilities"
	ToolCheckDemoAvailability    = "check_demo_availability"
	ToolBookDemo                 = "book_demo"
	ToolSearchLiveDemo           = "search_live_demo_knowledge_base"
	ToolNavigateDemoStep         = "navigate_to_nth_step_in_demo"
	ToolEndSession               = "end_session"
)

// DemoCatalog returns the placeholder tools offered during the warm-up chat.
// endMarker is quoted back by end_session so the model closes its reply with it.
func DemoCatalog(endMarker string) []Definition {
	return []Definition{
		{
			Name: ToolSearchKnowledgeBase,
			Desc: "Search the knowledge base for information about Layerpath, pricing, features, etc.",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "The search query", Required: true},
			},
			Execute: func(_ context.Context, args map[string]any) (string, error) {
				return fmt.Sprintf("[Mock Knowledge Base Result for: %s]\n"+
					"Layerpath is an AI-powered interactive demo platform.\n"+
					"Pricing: Creator (Free), Professional ($49/mo), Growth ($99/mo).\n"+
					"Features: AI agents, interactive video demos, analytics.", args["query"]), nil
			},
		},
		{
			Name: ToolFetchProductCapabilities,
			Desc: "Get relevant product capabilities based on user needs",
			Params: map[string]*schema.ParameterInfo{
				"context": {Type: schema.String, Desc: "User context and needs", Required: true},
			},
			Execute: func(context.Context, map[string]any) (string, error) {
				return "[Capabilities]\n- Personalized AI demos\n- Interactive overlays\n- CRM integration\n- Analytics dashboard", nil
			},
		},
		{
			Name: ToolCheckDemoAvailability,
			Desc: "Check available demo slots",
			Execute: func(context.Context, map[string]any) (string, error) {
				return "Available slots: Tomorrow at 10am, 2pm, or 4pm.", nil
			},
		},
		{
			Name: ToolBookDemo,
			Desc: "Book a demo slot. Requires a complete email address (user@domain.tld) and a slot from check_demo_availability.",
			Params: map[string]*schema.ParameterInfo{
				"email": {Type: schema.String, Desc: "Full email address of the attendee", Required: true},
				"slot":  {Type: schema.String, Desc: "The chosen slot", Required: true},
			},
			Execute: bookDemo,
		},
		{
			Name: ToolSearchLiveDemo,
			Desc: "Search for live interactive demos",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Required: true},
			},
			Execute: func(context.Context, map[string]any) (string, error) {
				return `Found demo: "Interactive Product Tour" (ID: 123)`, nil
			},
		},
		{
			Name: ToolNavigateDemoStep,
			Desc: "Navigate to a specific step in the demo",
			Params: map[string]*schema.ParameterInfo{
				"step": {Type: schema.Integer, Desc: "1-based step number", Required: true},
			},
			Execute: func(_ context.Context, args map[string]any) (string, error) {
				step := int(args["step"].(float64))
				if step < 1 {
					return "", fmt.Errorf("%w: step must be >= 1, got %d", contractx.ErrToolArgumentInvalid, step)
				}
				return fmt.Sprintf("Navigated to step %d. Showing feature details.", step), nil
			},
		},
		{
			Name: ToolEndSession,
			Desc: "End the conversation session",
			Execute: func(context.Context, map[string]any) (string, error) {
				return fmt.Sprintf("Session ended. Finish your closing reply with %s.", endMarker), nil
			},
		},
	}
}

func bookDemo(_ context.Context, args map[string]any) (string, error) {
	email := strings.TrimSpace(args["email"].(string))
	slot := strings.TrimSpace(args["slot"].(string))
	if !validEmail(email) {
		return "", fmt.Errorf("%w: email %q is not a complete address, ask the user for it again", contractx.ErrToolArgumentInvalid, email)
	}
	if slot == "" {
		return "", fmt.Errorf("%w: slot is empty", contractx.ErrToolArgumentInvalid)
	}
	return fmt.Sprintf("Demo booked for %s at %s.", email, slot), nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}
