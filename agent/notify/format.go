package notify

import (
	"strings"
	"time"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

const completedLayout = "1/2/2006, 3:04:05 PM"

// FormatText renders the plain-text team notification.
func FormatText(s contractx.LeadSummary, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	completed := s.DispatchedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	var b strings.Builder
	b.WriteString("New Pre-Meeting Chat Summary\n\n")
	b.WriteString("Customer: " + or(s.Lead.Name, "Unknown") + "\n")
	b.WriteString("Email: " + or(s.Lead.Email, "Unknown") + "\n")
	b.WriteString("Meeting: " + or(s.Lead.MeetingTime, "Unknown") + "\n\n")
	b.WriteString("Calendly Form Answers:\n")
	b.WriteString("Biggest Challenge: " + or(s.Lead.Challenge, "Not provided") + "\n")
	b.WriteString("Demo Type: " + or(s.Lead.DemoType, "Not provided") + "\n\n")
	b.WriteString("Chat Summary:\n")
	b.WriteString(strings.TrimSpace(s.Summary) + "\n\n")
	b.WriteString("Completed: " + completed.In(loc).Format(completedLayout))
	return b.String()
}

func or(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
