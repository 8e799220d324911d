package gmail

import "time"

// EmailMessage represents an outgoing email
type EmailMessage struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// MessageSummary is a received message reduced to what the assistant needs.
type MessageSummary struct {
	ID      string
	From    string
	Subject string
	Snippet string
	Body    string
}

// ChangeRecord is one newly added message discovered by a history scan.
type ChangeRecord struct {
	MessageID string
	HistoryID uint64
}

// HistoryPage is the outcome of a HistorySince scan: the added messages and
// the cursor to store once they are processed.
type HistoryPage struct {
	Changes []ChangeRecord
	// Cursor is the latest history id seen, as a decimal string. Empty when
	// the scan saw no history at all.
	Cursor string
}

// WatchResult describes a registered mailbox push subscription.
type WatchResult struct {
	// Cursor is the mailbox's history id at registration time.
	Cursor string
	Expiry time.Time
}
