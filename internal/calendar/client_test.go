package calendar

import (
	"testing"
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

func TestToEventSummary(t *testing.T) {
	event := &calendar.Event{
		Id:       "evt-1",
		Summary:  "Project sync",
		Status:   "confirmed",
		HtmlLink: "https://calendar.google.com/event?eid=abc",
		Start:    &calendar.EventDateTime{DateTime: "2026-09-01T09:00:00Z"},
		End:      &calendar.EventDateTime{DateTime: "2026-09-01T09:30:00Z"},
		Attendees: []*calendar.EventAttendee{
			{Email: "alice@example.com"},
			{Email: "bob@example.com"},
		},
	}

	got := toEventSummary(event)

	if got.ID != "evt-1" || got.Summary != "Project sync" {
		t.Errorf("toEventSummary() = %+v, want id and summary preserved", got)
	}
	wantStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	if !got.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", got.Start, wantStart)
	}
	if !got.End.Equal(wantStart.Add(30 * time.Minute)) {
		t.Errorf("End = %v, want %v", got.End, wantStart.Add(30*time.Minute))
	}
	if len(got.Attendees) != 2 || got.Attendees[0] != "alice@example.com" {
		t.Errorf("Attendees = %v, want both attendee emails", got.Attendees)
	}
}

func TestToEventSummaryMissingTimes(t *testing.T) {
	got := toEventSummary(&calendar.Event{Id: "evt-2"})
	if !got.Start.IsZero() || !got.End.IsZero() {
		t.Errorf("toEventSummary() times = %v/%v, want zero values", got.Start, got.End)
	}
}
