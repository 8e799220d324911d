package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/schedassist/internal/availability"
	"github.com/teemow/schedassist/internal/google"
)

// Client wraps the Google Calendar service for one user.
type Client struct {
	svc    *calendar.Service
	userID string
}

// UserID returns the user this client is associated with.
func (c *Client) UserID() string {
	return c.userID
}

// NewClientForUser creates a Calendar client authenticated as the given user.
// The OAuth token is retrieved from the provided token provider.
func NewClientForUser(ctx context.Context, userID string, provider google.TokenProvider) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider cannot be nil")
	}

	token, err := provider.TokenForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get Google OAuth token for user %s: %w", userID, err)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create Calendar service: %w", err)
	}

	return &Client{svc: svc, userID: userID}, nil
}

// QueryBusy returns the busy intervals of the user's primary calendar within
// [rangeStart, rangeEnd), sorted by start and clipped to the range.
func (c *Client) QueryBusy(ctx context.Context, rangeStart, rangeEnd time.Time) ([]availability.BusyInterval, error) {
	query := &calendar.FreeBusyRequest{
		TimeMin: rangeStart.Format(time.RFC3339),
		TimeMax: rangeEnd.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: "primary"}},
	}

	result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := result.Calendars["primary"]
	if !ok {
		return nil, fmt.Errorf("free/busy response missing primary calendar")
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy lookup failed: %s", cal.Errors[0].Reason)
	}

	var busy []availability.BusyInterval
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
		}
		busy = append(busy, availability.BusyInterval{Start: start, End: end})
	}

	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// FreeWindow computes the user's free slots in [rangeStart, rangeEnd) from a
// single free/busy query.
func (c *Client) FreeWindow(ctx context.Context, rangeStart, rangeEnd time.Time) (*availability.Window, error) {
	busy, err := c.QueryBusy(ctx, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	return availability.ComputeWindow(rangeStart, rangeEnd, busy)
}

// CreateEvent inserts an event into the user's primary calendar. Attendees
// are invited and notified.
func (c *Client) CreateEvent(ctx context.Context, input EventInput) (*EventSummary, error) {
	if input.TimeZone == "" {
		input.TimeZone = "UTC"
	}

	event := &calendar.Event{
		Summary:     input.Summary,
		Description: input.Description,
		Start: &calendar.EventDateTime{
			DateTime: input.Start.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: input.End.Format(time.RFC3339),
			TimeZone: input.TimeZone,
		},
	}
	for _, email := range input.Attendees {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert("primary", event).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	return toEventSummary(created), nil
}

func toEventSummary(event *calendar.Event) *EventSummary {
	summary := &EventSummary{
		ID:       event.Id,
		Summary:  event.Summary,
		Status:   event.Status,
		HTMLLink: event.HtmlLink,
	}
	if event.Start != nil && event.Start.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, event.Start.DateTime); err == nil {
			summary.Start = t
		}
	}
	if event.End != nil && event.End.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, event.End.DateTime); err == nil {
			summary.End = t
		}
	}
	for _, attendee := range event.Attendees {
		summary.Attendees = append(summary.Attendees, attendee.Email)
	}
	return summary
}
