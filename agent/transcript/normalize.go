package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

// WireMessage is a message as chat clients send it: content is either a flat string or a
// list of typed parts, and parts may also arrive alongside an empty content.
type WireMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content,omitempty"`
	Parts   []WirePart      `json:"parts,omitempty"`
}

type WirePart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Normalize collapses client message shapes into contract messages. Non-dialogue roles
// (tool, data) are dropped; anything else unknown is rejected.
func Normalize(in []WireMessage) ([]contractx.Message, error) {
	out := make([]contractx.Message, 0, len(in))
	for i, wm := range in {
		role := contractx.Role(strings.ToLower(strings.TrimSpace(wm.Role)))
		switch role {
		case "tool", "data":
			continue
		}
		if !role.Valid() {
			return nil, fmt.Errorf("%w: message %d has unsupported role %q", contractx.ErrValidation, i, wm.Role)
		}

		content, err := wm.text()
		if err != nil {
			return nil, fmt.Errorf("%w: message %d: %v", contractx.ErrValidation, i, err)
		}
		out = append(out, contractx.Message{
			ID:      wm.ID,
			Role:    role,
			Content: content,
		})
	}
	return out, nil
}

func (wm WireMessage) text() (string, error) {
	raw := bytes.TrimSpace(wm.Content)
	var content string

	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &content); err != nil {
			return "", fmt.Errorf("decode content: %w", err)
		}
	case raw[0] == '[':
		var parts []WirePart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", fmt.Errorf("decode content parts: %w", err)
		}
		content = joinTextParts(parts)
	default:
		return "", fmt.Errorf("content must be a string or a list of parts")
	}

	if content == "" && len(wm.Parts) > 0 {
		content = joinTextParts(wm.Parts)
	}
	return content, nil
}

func joinTextParts(parts []WirePart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
