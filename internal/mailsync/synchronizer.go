package mailsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teemow/schedassist/internal/gmail"
	"github.com/teemow/schedassist/internal/instrumentation"
	"github.com/teemow/schedassist/internal/logging"
	"github.com/teemow/schedassist/internal/store"
)

// MailboxClient is the Gmail surface the synchronizer needs.
type MailboxClient interface {
	HistorySince(ctx context.Context, cursor string) (*gmail.HistoryPage, error)
	GetMessage(ctx context.Context, messageID string) (*gmail.MessageSummary, error)
	Watch(ctx context.Context, topicName string) (*gmail.WatchResult, error)
}

// ClientFactory builds an authenticated mailbox client for a user.
type ClientFactory func(ctx context.Context, userID string) (MailboxClient, error)

// Responder forwards a message to the user's conversation.
type Responder interface {
	Respond(ctx context.Context, userID, input string) (string, error)
}

// Config holds the synchronizer settings.
type Config struct {
	// TopicName is the Pub/Sub topic mailbox watches publish to.
	TopicName string
	// RenewalWindow renews subscriptions expiring within this duration.
	// Defaults to 24h.
	RenewalWindow time.Duration
	Logger        *slog.Logger
	Metrics       *instrumentation.Metrics
}

// Synchronizer turns push notifications into conversation turns.
type Synchronizer struct {
	repo      store.Repository
	clients   ClientFactory
	responder Responder
	config    Config
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// New creates a Synchronizer.
func New(repo store.Repository, clients ClientFactory, responder Responder, config Config) *Synchronizer {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.RenewalWindow <= 0 {
		config.RenewalWindow = 24 * time.Hour
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &Synchronizer{
		repo:      repo,
		clients:   clients,
		responder: responder,
		config:    config,
		logger:    logger,
		metrics:   metrics,
	}
}

// OnPushNotification handles one decoded push notification for the given
// mailbox. Unknown mailboxes and mailboxes without a cursor are skipped, not
// failed: the notification was legitimate, there is just nothing to do yet.
func (s *Synchronizer) OnPushNotification(ctx context.Context, emailAddress string) error {
	logger := logging.WithOperation(s.logger, "mailbox_sync")

	user, err := s.repo.GetUserByEmail(ctx, emailAddress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("Push notification for unknown mailbox",
				slog.String("email", logging.AnonymizeEmail(emailAddress)))
			return nil
		}
		return fmt.Errorf("resolve user for mailbox: %w", err)
	}

	state, err := s.repo.GetSyncState(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("Mailbox has no sync cursor yet, skipping",
				logging.UserHash(user.ID))
			return nil
		}
		return fmt.Errorf("load sync state: %w", err)
	}
	if state.Cursor == "" {
		logger.Warn("Mailbox has no sync cursor yet, skipping",
			logging.UserHash(user.ID))
		return nil
	}

	client, err := s.clients(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("build mailbox client: %w", err)
	}

	page, err := client.HistorySince(ctx, state.Cursor)
	if err != nil {
		s.metrics.RecordSyncBatch(ctx, "error", 0)
		return fmt.Errorf("scan mailbox history: %w", err)
	}

	forwarded := 0
	for _, change := range page.Changes {
		if err := s.forwardMessage(ctx, client, user.ID, change.MessageID); err != nil {
			// One broken message must not stall the rest of the batch.
			logger.Error("Failed to forward message",
				logging.UserHash(user.ID),
				logging.MessageID(change.MessageID),
				logging.Err(err))
			continue
		}
		forwarded++
	}

	if page.Cursor != "" {
		applied, err := s.repo.AdvanceCursor(ctx, user.ID, page.Cursor)
		if err != nil {
			return fmt.Errorf("advance cursor: %w", err)
		}
		if !applied {
			logger.Debug("Cursor already ahead, keeping stored value",
				logging.UserHash(user.ID),
				logging.Cursor(page.Cursor))
		}
	}

	s.metrics.RecordSyncBatch(ctx, "success", forwarded)
	logger.Info("Mailbox sync complete",
		logging.UserHash(user.ID),
		slog.Int("changes", len(page.Changes)),
		slog.Int("forwarded", forwarded),
		logging.Status(logging.StatusSuccess))
	return nil
}

// forwardMessage delivers one new message to the conversation, at most once.
func (s *Synchronizer) forwardMessage(ctx context.Context, client MailboxClient, userID, messageID string) error {
	first, err := s.repo.MarkMessageProcessed(ctx, userID, messageID)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if !first {
		return nil
	}

	msg, err := client.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	if _, err := s.responder.Respond(ctx, userID, formatMessagePrompt(msg)); err != nil {
		return fmt.Errorf("forward to conversation: %w", err)
	}
	return nil
}

// formatMessagePrompt renders a received message as a conversation input.
func formatMessagePrompt(msg *gmail.MessageSummary) string {
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}

	var b strings.Builder
	b.WriteString("You received a new email.\n")
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// RenewSubscription registers a fresh mailbox watch for the user and stores
// the resulting cursor and expiry.
func (s *Synchronizer) RenewSubscription(ctx context.Context, userID string) error {
	client, err := s.clients(ctx, userID)
	if err != nil {
		return fmt.Errorf("build mailbox client: %w", err)
	}

	result, err := client.Watch(ctx, s.config.TopicName)
	if err != nil {
		return fmt.Errorf("register watch: %w", err)
	}

	if err := s.repo.SetSubscription(ctx, userID, result.Cursor, result.Expiry); err != nil {
		return fmt.Errorf("store subscription: %w", err)
	}

	s.logger.Info("Mailbox watch renewed",
		logging.UserHash(userID),
		logging.Cursor(result.Cursor),
		slog.Time("expiry", result.Expiry))
	return nil
}

// RenewExpiring renews every subscription that is missing or expires within
// the renewal window. Per-user failures are logged and do not abort the
// sweep.
func (s *Synchronizer) RenewExpiring(ctx context.Context) error {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	deadline := time.Now().Add(s.config.RenewalWindow)
	for _, user := range users {
		state, err := s.repo.GetSyncState(ctx, user.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("Failed to load sync state",
				logging.UserHash(user.ID),
				logging.Err(err))
			continue
		}
		if state != nil && state.SubscriptionExpiry.After(deadline) {
			continue
		}

		if err := s.RenewSubscription(ctx, user.ID); err != nil {
			s.logger.Error("Failed to renew mailbox watch",
				logging.UserHash(user.ID),
				logging.Err(err))
		}
	}
	return nil
}

// RunRenewalLoop periodically renews expiring subscriptions until the
// context is cancelled. One sweep runs immediately on start.
func (s *Synchronizer) RunRenewalLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}

	if err := s.RenewExpiring(ctx); err != nil {
		s.logger.Error("Subscription renewal sweep failed", logging.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RenewExpiring(ctx); err != nil {
				s.logger.Error("Subscription renewal sweep failed", logging.Err(err))
			}
		}
	}
}
