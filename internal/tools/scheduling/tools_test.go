package scheduling

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teemow/schedassist/internal/availability"
	"github.com/teemow/schedassist/internal/calendar"
	"github.com/teemow/schedassist/internal/gmail"
	"github.com/teemow/schedassist/internal/tools"
)

type fakeCalendar struct {
	window    *availability.Window
	windowErr error
	created   []calendar.EventInput
	event     *calendar.EventSummary
}

func (f *fakeCalendar) FreeWindow(_ context.Context, _, _ time.Time) (*availability.Window, error) {
	return f.window, f.windowErr
}

func (f *fakeCalendar) CreateEvent(_ context.Context, input calendar.EventInput) (*calendar.EventSummary, error) {
	f.created = append(f.created, input)
	if f.event != nil {
		return f.event, nil
	}
	return &calendar.EventSummary{
		Summary:   input.Summary,
		Start:     input.Start,
		End:       input.End,
		Attendees: input.Attendees,
	}, nil
}

type fakeMail struct {
	sent   []*gmail.EmailMessage
	unread []gmail.MessageSummary
}

func (f *fakeMail) SendEmail(_ context.Context, msg *gmail.EmailMessage) (string, error) {
	f.sent = append(f.sent, msg)
	return "sent-1", nil
}

func (f *fakeMail) ListUnread(_ context.Context, _ int64) ([]gmail.MessageSummary, error) {
	return f.unread, nil
}

func newTestRegistry(t *testing.T, cal *fakeCalendar, mail *fakeMail) *tools.Registry {
	t.Helper()

	r := tools.NewRegistry(nil)
	err := Register(r,
		func(_ context.Context, _ string) (CalendarService, error) { return cal, nil },
		func(_ context.Context, _ string) (MailService, error) { return mail, nil },
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return r
}

func userCtx() context.Context {
	return tools.WithUserID(context.Background(), "u1")
}

func TestRegisterExposesAllTools(t *testing.T) {
	r := newTestRegistry(t, &fakeCalendar{}, &fakeMail{})

	want := []string{"get_current_availability", "list_unread", "send_email", "setup_meeting"}
	specs := r.Specs()
	if len(specs) != len(want) {
		t.Fatalf("Specs() returned %d tools, want %d", len(specs), len(want))
	}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Errorf("Specs()[%d].Name = %q, want %q", i, spec.Name, want[i])
		}
	}
}

func TestAvailabilityTool(t *testing.T) {
	rangeStart := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{
		window: &availability.Window{
			RangeStart: rangeStart,
			RangeEnd:   rangeEnd,
			Free: []availability.FreeInterval{
				{Start: rangeStart, End: rangeStart.Add(2 * time.Hour)},
			},
		},
	}
	r := newTestRegistry(t, cal, &fakeMail{})

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "get_current_availability",
		Arguments: map[string]any{
			"start": "2026-09-01T09:00:00Z",
			"end":   "2026-09-01T18:00:00Z",
		},
	})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if !strings.Contains(result.Output, "Free slots") {
		t.Errorf("Output = %q, want free slot listing", result.Output)
	}
	if !strings.Contains(result.Output, "2026-09-01T09:00:00Z - 2026-09-01T11:00:00Z") {
		t.Errorf("Output = %q, want the free interval", result.Output)
	}
}

func TestAvailabilityToolNoFreeSlots(t *testing.T) {
	cal := &fakeCalendar{window: &availability.Window{
		RangeStart: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}}
	r := newTestRegistry(t, cal, &fakeMail{})

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "get_current_availability",
		Arguments: map[string]any{
			"start": "2026-09-01T09:00:00Z",
			"end":   "2026-09-01T10:00:00Z",
		},
	})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if !strings.Contains(result.Output, "No free slots") {
		t.Errorf("Output = %q, want no-free-slots message", result.Output)
	}
}

func TestAvailabilityToolRejectsBadTimestamps(t *testing.T) {
	r := newTestRegistry(t, &fakeCalendar{}, &fakeMail{})

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "get_current_availability",
		Arguments: map[string]any{
			"start": "tomorrow",
			"end":   "2026-09-01T18:00:00Z",
		},
	})
	if result.Err == nil {
		t.Fatal("Dispatch() with bad timestamp succeeded, want error")
	}
	if !strings.Contains(result.Err.Error(), "RFC 3339") {
		t.Errorf("Err = %v, want RFC 3339 complaint", result.Err)
	}
}

func TestToolsRequireActingUser(t *testing.T) {
	r := newTestRegistry(t, &fakeCalendar{}, &fakeMail{})

	result := r.Dispatch(context.Background(), tools.Request{
		Name: "get_current_availability",
		Arguments: map[string]any{
			"start": "2026-09-01T09:00:00Z",
			"end":   "2026-09-01T18:00:00Z",
		},
	})
	if result.Err == nil || !strings.Contains(result.Err.Error(), "acting user") {
		t.Errorf("Dispatch() without user = %v, want acting user error", result.Err)
	}
}

func TestSetupMeetingTool(t *testing.T) {
	cal := &fakeCalendar{}
	r := newTestRegistry(t, cal, &fakeMail{})

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "setup_meeting",
		Arguments: map[string]any{
			"summary":   "Project sync",
			"start":     "2026-09-02T10:00:00Z",
			"end":       "2026-09-02T10:30:00Z",
			"attendees": []any{"alice@example.com", "bob@example.com"},
			"timezone":  "Europe/Berlin",
		},
	})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if len(cal.created) != 1 {
		t.Fatalf("CreateEvent called %d times, want 1", len(cal.created))
	}
	input := cal.created[0]
	if input.Summary != "Project sync" || input.TimeZone != "Europe/Berlin" {
		t.Errorf("CreateEvent input = %+v", input)
	}
	if len(input.Attendees) != 2 {
		t.Errorf("Attendees = %v, want 2 entries", input.Attendees)
	}
	if !strings.Contains(result.Output, "Meeting \"Project sync\" created") {
		t.Errorf("Output = %q, want confirmation", result.Output)
	}
}

func TestSetupMeetingRejectsInvertedRange(t *testing.T) {
	r := newTestRegistry(t, &fakeCalendar{}, &fakeMail{})

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "setup_meeting",
		Arguments: map[string]any{
			"summary": "Backwards",
			"start":   "2026-09-02T11:00:00Z",
			"end":     "2026-09-02T10:00:00Z",
		},
	})
	if result.Err == nil {
		t.Error("Dispatch() with inverted range succeeded, want error")
	}
}

func TestSendEmailTool(t *testing.T) {
	mail := &fakeMail{}
	r := newTestRegistry(t, &fakeCalendar{}, mail)

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "send_email",
		Arguments: map[string]any{
			"to":      "alice@example.com, bob@example.com",
			"subject": "Scheduling",
			"body":    "Does Thursday work?",
		},
	})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if len(mail.sent) != 1 {
		t.Fatalf("SendEmail called %d times, want 1", len(mail.sent))
	}
	// Comma-separated recipients are split into a proper list.
	if len(mail.sent[0].To) != 2 || mail.sent[0].To[1] != "bob@example.com" {
		t.Errorf("To = %v, want split recipient list", mail.sent[0].To)
	}
}

func TestListUnreadTool(t *testing.T) {
	mail := &fakeMail{unread: []gmail.MessageSummary{
		{From: "carol@example.com", Subject: "Invoice", Snippet: "attached"},
	}}
	r := newTestRegistry(t, &fakeCalendar{}, mail)

	result := r.Dispatch(userCtx(), tools.Request{Name: "list_unread", Arguments: map[string]any{}})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if !strings.Contains(result.Output, "carol@example.com") {
		t.Errorf("Output = %q, want sender listed", result.Output)
	}

	mail.unread = nil
	result = r.Dispatch(userCtx(), tools.Request{Name: "list_unread", Arguments: map[string]any{}})
	if result.Err != nil {
		t.Fatalf("Dispatch() Err = %v", result.Err)
	}
	if result.Output != "No unread messages." {
		t.Errorf("Output = %q, want empty inbox message", result.Output)
	}
}

func TestFactoriesPropagateCredentialErrors(t *testing.T) {
	r := tools.NewRegistry(nil)
	wantErr := errors.New("no stored credential")
	err := Register(r,
		func(_ context.Context, _ string) (CalendarService, error) { return nil, wantErr },
		func(_ context.Context, _ string) (MailService, error) { return nil, wantErr },
	)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result := r.Dispatch(userCtx(), tools.Request{
		Name: "get_current_availability",
		Arguments: map[string]any{
			"start": "2026-09-01T09:00:00Z",
			"end":   "2026-09-01T18:00:00Z",
		},
	})
	if !errors.Is(result.Err, wantErr) {
		t.Errorf("Dispatch() Err = %v, want credential error", result.Err)
	}
}
