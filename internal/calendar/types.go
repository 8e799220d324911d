package calendar

import "time"

// EventInput represents the input for creating a calendar event
type EventInput struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// EventSummary represents a simplified calendar event
type EventSummary struct {
	ID        string
	Summary   string
	Start     time.Time
	End       time.Time
	Status    string
	Attendees []string
	HTMLLink  string
}
