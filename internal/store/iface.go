package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// User is an authenticated account, keyed by its Google subject id.
type User struct {
	ID        string // Google subject id, unique
	Email     string // unique; push notifications resolve users by email
	CreatedAt time.Time
}

// AuthToken holds the OAuth tokens for a user. The access token is
// short-lived; the refresh token lets the credential provider mint new ones.
type AuthToken struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	UpdatedAt    time.Time
}

// SyncState tracks how far a user's mailbox change history has been
// processed and when the push subscription expires.
type SyncState struct {
	UserID             string
	Cursor             string
	SubscriptionExpiry time.Time
	UpdatedAt          time.Time
}

// Repository is the persistence collaborator consumed by the credential
// provider and the mailbox synchronizer.
type Repository interface {
	// Users
	UpsertUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	// OAuth tokens
	SaveToken(ctx context.Context, token *AuthToken) error
	GetToken(ctx context.Context, userID string) (*AuthToken, error)

	// Mailbox sync state
	GetSyncState(ctx context.Context, userID string) (*SyncState, error)

	// AdvanceCursor applies the candidate cursor only if it represents
	// forward progress over the stored one. It reports whether the update
	// was applied.
	AdvanceCursor(ctx context.Context, userID, cursor string) (bool, error)

	// SetSubscription records a fresh watch: its start cursor and expiry.
	SetSubscription(ctx context.Context, userID, cursor string, expiry time.Time) error

	// MarkMessageProcessed records a message id as forwarded to the
	// orchestrator. It reports true the first time a given id is seen for
	// the user, false on replays.
	MarkMessageProcessed(ctx context.Context, userID, messageID string) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}
