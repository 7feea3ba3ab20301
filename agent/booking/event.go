package booking

import "strings"

const (
	EventInviteeCreated = "invitee.created"

	DefaultInviteeName = "Guest"
	DefaultEventName   = "30 Minute Meeting"
	NotSpecified       = "Not specified"
)

// WebhookPayload is the scheduling provider's webhook body.
type WebhookPayload struct {
	Event   string       `json:"event"`
	Payload BookingEvent `json:"payload"`
}

// BookingEvent is the nested payload of an invitee.created notification.
type BookingEvent struct {
	Invitee *Invitee      `json:"invitee"`
	Event   *EventDetails `json:"event"`
}

type Invitee struct {
	Name                string           `json:"name"`
	Email               string           `json:"email"`
	QuestionsAndAnswers []QuestionAnswer `json:"questions_and_answers"`
}

type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type EventDetails struct {
	StartTime string `json:"start_time"`
	Name      string `json:"name"`
}

var (
	challengeKeywords = []string{"challenge"}
	demoTypeKeywords  = []string{"enhance", "looking to"}
)

// findAnswer returns the answer of the first question whose text contains any keyword,
// case-insensitively, or NotSpecified.
func findAnswer(qas []QuestionAnswer, keywords []string) string {
	for _, qa := range qas {
		question := strings.ToLower(qa.Question)
		for _, kw := range keywords {
			if strings.Contains(question, kw) {
				if answer := strings.TrimSpace(qa.Answer); answer != "" {
					return answer
				}
				return NotSpecified
			}
		}
	}
	return NotSpecified
}
