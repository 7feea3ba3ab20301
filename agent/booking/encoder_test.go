package booking

import (
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/tanpawarit/premeeting-warmup-agent/agent/contract"
)

func danaEvent() BookingEvent {
	return BookingEvent{
		Invitee: &Invitee{
			Name:  "Dana",
			Email: "dana@x.com",
			QuestionsAndAnswers: []QuestionAnswer{
				{Question: "What is your biggest CHALLENGE with demos?", Answer: "slow demo creation"},
				{Question: "What are you looking to enhance?", Answer: "sales team demos"},
			},
		},
		Event: &EventDetails{StartTime: "2025-03-01T10:00:00Z"},
	}
}

func TestEncodeScenarioLink(t *testing.T) {
	t.Parallel()

	enc := NewEncoder("https://chat.example.com/", time.UTC)
	out, err := enc.Encode(danaEvent())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	wantPrefix := "https://chat.example.com/?invitee_full_name=Dana&invitee_email=dana%40x.com&answer_1=slow%20demo%20creation&answer_2=sales%20team%20demos"
	if !strings.HasPrefix(out.Link, wantPrefix) {
		t.Fatalf("unexpected link:\n got %s\nwant prefix %s", out.Link, wantPrefix)
	}
	if !strings.HasSuffix(out.Link, "&event_start_time=2025-03-01T10%3A00%3A00Z&event_type_name=30%20Minute%20Meeting") {
		t.Fatalf("unexpected link suffix: %s", out.Link)
	}
	if out.Context.MeetingTime != "Sat, Mar 1, 10:00 AM" {
		t.Fatalf("unexpected meeting time: %q", out.Context.MeetingTime)
	}
	if out.Context.EventName != DefaultEventName {
		t.Fatalf("unexpected event name: %q", out.Context.EventName)
	}
}

func TestEncodeMalformedEvents(t *testing.T) {
	t.Parallel()

	enc := NewEncoder("", nil)
	cases := []BookingEvent{
		{},
		{Invitee: &Invitee{Name: "Dana"}},
		{Event: &EventDetails{StartTime: "2025-03-01T10:00:00Z"}},
	}
	for i, ev := range cases {
		out, err := enc.Encode(ev)
		if !errors.Is(err, contractx.ErrMalformedBookingEvent) {
			t.Fatalf("case %d: expected ErrMalformedBookingEvent, got %v", i, err)
		}
		if out.Link != "" {
			t.Fatalf("case %d: expected no link, got %q", i, out.Link)
		}
	}
}

func TestLinkRoundTrip(t *testing.T) {
	t.Parallel()

	enc := NewEncoder("http://localhost:3000", time.UTC)
	ev := danaEvent()
	ev.Invitee.Name = "Dana O'Neil & Co"
	ev.Invitee.Email = "dana+demos@x.com"
	ev.Event.Name = "Intro Call / 15 min"

	out, err := enc.Encode(ev)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := enc.ParseLink(out.Link)
	if err != nil {
		t.Fatalf("ParseLink() error = %v", err)
	}
	if got != out.Context {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, out.Context)
	}
	if got.Email != "dana+demos@x.com" {
		t.Fatalf("email must be preserved verbatim, got %q", got.Email)
	}
}

func TestEncodeAnswersDefaultWhenQuestionsMissing(t *testing.T) {
	t.Parallel()

	enc := NewEncoder("", time.UTC)
	out, err := enc.Encode(BookingEvent{
		Invitee: &Invitee{Email: "a@b.co", QuestionsAndAnswers: []QuestionAnswer{{Question: "Company size?", Answer: "10"}}},
		Event:   &EventDetails{StartTime: "not-a-time", Name: "Discovery"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if out.Context.Name != DefaultInviteeName {
		t.Fatalf("unexpected name: %q", out.Context.Name)
	}
	if out.Context.Challenge != NotSpecified || out.Context.DemoType != NotSpecified {
		t.Fatalf("expected placeholders, got %q / %q", out.Context.Challenge, out.Context.DemoType)
	}
	if out.Context.MeetingTime != "soon" {
		t.Fatalf("unexpected meeting time: %q", out.Context.MeetingTime)
	}
}

func TestFormatMeetingTimeLong(t *testing.T) {
	t.Parallel()

	got := FormatMeetingTimeLong("2025-03-01T10:00:00.000000Z", time.UTC)
	if got != "Saturday, March 1, 2025 at 10:00 AM UTC" {
		t.Fatalf("unexpected long format: %q", got)
	}
}
