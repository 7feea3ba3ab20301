package booking

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

const (
	ParamName      = "invitee_full_name"
	ParamEmail     = "invitee_email"
	ParamAnswer1   = "answer_1"
	ParamAnswer2   = "answer_2"
	ParamStartTime = "event_start_time"
	ParamEventName = "event_type_name"

	meetingTimeFallback = "soon"
)

var linkParamOrder = []string{
	ParamName, ParamEmail, ParamAnswer1, ParamAnswer2, ParamStartTime, ParamEventName,
}

// SessionContext is the read-only per-session view of a booking.
type SessionContext struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Challenge      string `json:"challenge"`
	DemoType       string `json:"demo_type"`
	EventStartTime string `json:"event_start_time"`
	EventName      string `json:"event_name"`
	MeetingTime    string `json:"meeting_time"`
}

// Empty reports whether the context carries nothing worth seeding a session with.
func (c SessionContext) Empty() bool {
	return strings.TrimSpace(c.Name) == "" && strings.TrimSpace(c.Challenge) == ""
}

func (c SessionContext) Lead() contractx.LeadInfo {
	return contractx.LeadInfo{
		Name:        c.Name,
		Email:       c.Email,
		MeetingTime: c.MeetingTime,
		Challenge:   c.Challenge,
		DemoType:    c.DemoType,
	}
}

// Encoded is the pair produced for one booking: the session view and the shareable link.
type Encoded struct {
	Context SessionContext
	Link    string
}

type Encoder struct {
	baseURL  string
	location *time.Location
}

func NewEncoder(baseURL string, location *time.Location) *Encoder {
	if location == nil {
		location = time.UTC
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &Encoder{baseURL: baseURL, location: location}
}

func (e *Encoder) Encode(ev BookingEvent) (Encoded, error) {
	if ev.Invitee == nil || ev.Event == nil {
		return Encoded{}, fmt.Errorf("%w: missing invitee or event data", contractx.ErrMalformedBookingEvent)
	}

	name := strings.TrimSpace(ev.Invitee.Name)
	if name == "" {
		name = DefaultInviteeName
	}
	eventName := strings.TrimSpace(ev.Event.Name)
	if eventName == "" {
		eventName = DefaultEventName
	}

	sc := SessionContext{
		Name:           name,
		Email:          ev.Invitee.Email,
		Challenge:      findAnswer(ev.Invitee.QuestionsAndAnswers, challengeKeywords),
		DemoType:       findAnswer(ev.Invitee.QuestionsAndAnswers, demoTypeKeywords),
		EventStartTime: ev.Event.StartTime,
		EventName:      eventName,
	}
	sc.MeetingTime = FormatMeetingTime(sc.EventStartTime, e.location)

	return Encoded{Context: sc, Link: e.Link(sc)}, nil
}

// Link renders the context-carrying URL. Parameters keep a fixed order and are
// percent-encoded component-wise (spaces become %20).
func (e *Encoder) Link(sc SessionContext) string {
	values := map[string]string{
		ParamName:      sc.Name,
		ParamEmail:     sc.Email,
		ParamAnswer1:   sc.Challenge,
		ParamAnswer2:   sc.DemoType,
		ParamStartTime: sc.EventStartTime,
		ParamEventName: sc.EventName,
	}

	var b strings.Builder
	b.WriteString(e.baseURL)
	b.WriteString("/?")
	for i, key := range linkParamOrder {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(escapeComponent(values[key]))
	}
	return b.String()
}

// FromQuery rebuilds a SessionContext from link query parameters.
func (e *Encoder) FromQuery(q url.Values) SessionContext {
	sc := SessionContext{
		Name:           strings.TrimSpace(q.Get(ParamName)),
		Email:          q.Get(ParamEmail),
		Challenge:      q.Get(ParamAnswer1),
		DemoType:       q.Get(ParamAnswer2),
		EventStartTime: q.Get(ParamStartTime),
		EventName:      q.Get(ParamEventName),
	}
	if sc.Name == "" {
		sc.Name = DefaultInviteeName
	}
	sc.MeetingTime = FormatMeetingTime(sc.EventStartTime, e.location)
	return sc
}

func (e *Encoder) ParseLink(link string) (SessionContext, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return SessionContext{}, fmt.Errorf("%w: parse link: %v", contractx.ErrValidation, err)
	}
	return e.FromQuery(u.Query()), nil
}

// FormatMeetingTime renders a short display time such as "Sat, Mar 1, 10:00 AM".
func FormatMeetingTime(raw string, location *time.Location) string {
	t, ok := parseStartTime(raw)
	if !ok {
		return meetingTimeFallback
	}
	if location == nil {
		location = time.UTC
	}
	return t.In(location).Format("Mon, Jan 2, 3:04 PM")
}

// FormatMeetingTimeLong renders the invitation form, e.g.
// "Saturday, March 1, 2025 at 10:00 AM UTC".
func FormatMeetingTimeLong(raw string, location *time.Location) string {
	t, ok := parseStartTime(raw)
	if !ok {
		return meetingTimeFallback
	}
	if location == nil {
		location = time.UTC
	}
	return t.In(location).Format("Monday, January 2, 2006 at 3:04 PM MST")
}

func parseStartTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
