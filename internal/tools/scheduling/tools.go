package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/schedassist/internal/availability"
	"github.com/teemow/schedassist/internal/calendar"
	"github.com/teemow/schedassist/internal/gmail"
	"github.com/teemow/schedassist/internal/tools"
)

// CalendarService is the calendar surface the tools need.
type CalendarService interface {
	FreeWindow(ctx context.Context, rangeStart, rangeEnd time.Time) (*availability.Window, error)
	CreateEvent(ctx context.Context, input calendar.EventInput) (*calendar.EventSummary, error)
}

// MailService is the Gmail surface the tools need.
type MailService interface {
	SendEmail(ctx context.Context, msg *gmail.EmailMessage) (string, error)
	ListUnread(ctx context.Context, maxResults int64) ([]gmail.MessageSummary, error)
}

// CalendarFactory builds a calendar service for the acting user.
type CalendarFactory func(ctx context.Context, userID string) (CalendarService, error)

// MailFactory builds a mail service for the acting user.
type MailFactory func(ctx context.Context, userID string) (MailService, error)

// Register adds the scheduling tools to the registry.
func Register(r *tools.Registry, calendars CalendarFactory, mail MailFactory) error {
	registrations := []struct {
		spec    tools.Spec
		handler tools.Handler
	}{
		{availabilitySpec(), availabilityHandler(calendars)},
		{setupMeetingSpec(), setupMeetingHandler(calendars)},
		{sendEmailSpec(), sendEmailHandler(mail)},
		{listUnreadSpec(), listUnreadHandler(mail)},
	}
	for _, reg := range registrations {
		if err := r.Register(reg.spec, reg.handler); err != nil {
			return fmt.Errorf("register %s: %w", reg.spec.Name, err)
		}
	}
	return nil
}

func availabilitySpec() tools.Spec {
	return tools.Spec{
		Name:        "get_current_availability",
		Description: "Look up the user's free and busy time slots in a time range. Times are RFC 3339 timestamps.",
		Parameters: tools.Schema{
			Properties: map[string]tools.Property{
				"start": {Type: "string", Description: "Start of the range, RFC 3339 (e.g. 2026-09-01T09:00:00Z)"},
				"end":   {Type: "string", Description: "End of the range, RFC 3339"},
			},
			Required: []string{"start", "end"},
		},
	}
}

func availabilityHandler(calendars CalendarFactory) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		userID, ok := tools.UserIDFrom(ctx)
		if !ok {
			return "", fmt.Errorf("no acting user in context")
		}

		start, err := timeArg(args, "start")
		if err != nil {
			return "", err
		}
		end, err := timeArg(args, "end")
		if err != nil {
			return "", err
		}

		svc, err := calendars(ctx, userID)
		if err != nil {
			return "", err
		}
		window, err := svc.FreeWindow(ctx, start, end)
		if err != nil {
			return "", err
		}

		return formatWindow(window), nil
	}
}

func formatWindow(w *availability.Window) string {
	if len(w.Free) == 0 {
		return fmt.Sprintf("No free slots between %s and %s.",
			w.RangeStart.Format(time.RFC3339), w.RangeEnd.Format(time.RFC3339))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Free slots between %s and %s:\n",
		w.RangeStart.Format(time.RFC3339), w.RangeEnd.Format(time.RFC3339))
	for _, slot := range w.Free {
		fmt.Fprintf(&b, "- %s\n", slot)
	}
	return strings.TrimRight(b.String(), "\n")
}

func setupMeetingSpec() tools.Spec {
	return tools.Spec{
		Name:        "setup_meeting",
		Description: "Create a calendar meeting and invite attendees. Times are RFC 3339 timestamps.",
		Parameters: tools.Schema{
			Properties: map[string]tools.Property{
				"summary":     {Type: "string", Description: "Meeting title"},
				"description": {Type: "string", Description: "Optional meeting description"},
				"start":       {Type: "string", Description: "Meeting start, RFC 3339"},
				"end":         {Type: "string", Description: "Meeting end, RFC 3339"},
				"attendees":   {Type: "array", Description: "Attendee email addresses"},
				"timezone":    {Type: "string", Description: "IANA timezone for the event, defaults to UTC"},
			},
			Required: []string{"summary", "start", "end"},
		},
	}
}

func setupMeetingHandler(calendars CalendarFactory) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		userID, ok := tools.UserIDFrom(ctx)
		if !ok {
			return "", fmt.Errorf("no acting user in context")
		}

		start, err := timeArg(args, "start")
		if err != nil {
			return "", err
		}
		end, err := timeArg(args, "end")
		if err != nil {
			return "", err
		}
		if !start.Before(end) {
			return "", fmt.Errorf("meeting start must be before end")
		}

		svc, err := calendars(ctx, userID)
		if err != nil {
			return "", err
		}
		event, err := svc.CreateEvent(ctx, calendar.EventInput{
			Summary:     stringArg(args, "summary"),
			Description: stringArg(args, "description"),
			Start:       start,
			End:         end,
			TimeZone:    stringArg(args, "timezone"),
			Attendees:   stringSliceArg(args, "attendees"),
		})
		if err != nil {
			return "", err
		}

		out := fmt.Sprintf("Meeting %q created from %s to %s.",
			event.Summary, event.Start.Format(time.RFC3339), event.End.Format(time.RFC3339))
		if len(event.Attendees) > 0 {
			out += " Invited: " + strings.Join(event.Attendees, ", ") + "."
		}
		return out, nil
	}
}

func sendEmailSpec() tools.Spec {
	return tools.Spec{
		Name:        "send_email",
		Description: "Send a plain-text email from the user's account.",
		Parameters: tools.Schema{
			Properties: map[string]tools.Property{
				"to":      {Type: "array", Description: "Recipient email addresses"},
				"cc":      {Type: "array", Description: "Optional CC addresses"},
				"subject": {Type: "string", Description: "Email subject"},
				"body":    {Type: "string", Description: "Email body text"},
			},
			Required: []string{"to", "subject", "body"},
		},
	}
}

func sendEmailHandler(mail MailFactory) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		userID, ok := tools.UserIDFrom(ctx)
		if !ok {
			return "", fmt.Errorf("no acting user in context")
		}

		to := stringSliceArg(args, "to")
		if len(to) == 0 {
			return "", fmt.Errorf("at least one recipient is required")
		}

		svc, err := mail(ctx, userID)
		if err != nil {
			return "", err
		}
		id, err := svc.SendEmail(ctx, &gmail.EmailMessage{
			To:      to,
			Cc:      stringSliceArg(args, "cc"),
			Subject: stringArg(args, "subject"),
			Body:    stringArg(args, "body"),
		})
		if err != nil {
			return "", err
		}

		return fmt.Sprintf("Email sent to %s (id %s).", strings.Join(to, ", "), id), nil
	}
}

func listUnreadSpec() tools.Spec {
	return tools.Spec{
		Name:        "list_unread",
		Description: "List the user's unread inbox messages.",
		Parameters: tools.Schema{
			Properties: map[string]tools.Property{
				"max_results": {Type: "integer", Description: "Maximum number of messages, defaults to 10"},
			},
		},
	}
}

func listUnreadHandler(mail MailFactory) tools.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		userID, ok := tools.UserIDFrom(ctx)
		if !ok {
			return "", fmt.Errorf("no acting user in context")
		}

		svc, err := mail(ctx, userID)
		if err != nil {
			return "", err
		}
		messages, err := svc.ListUnread(ctx, intArg(args, "max_results", 10))
		if err != nil {
			return "", err
		}
		if len(messages) == 0 {
			return "No unread messages.", nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d unread message(s):\n", len(messages))
		for _, msg := range messages {
			fmt.Fprintf(&b, "- From: %s | Subject: %s | %s\n", msg.From, msg.Subject, msg.Snippet)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func timeArg(args map[string]any, key string) (time.Time, error) {
	raw := stringArg(args, key)
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("argument %q must be an RFC 3339 timestamp: %w", key, err)
	}
	return t, nil
}

// stringSliceArg accepts both JSON arrays and comma-separated strings; the
// model emits either depending on its mood.
func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	default:
		return nil
	}
}

func intArg(args map[string]any, key string, fallback int64) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return fallback
	}
}
