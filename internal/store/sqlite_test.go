package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := &User{ID: "sub-123", Email: "alice@example.com"}
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	got, err := s.GetUser(ctx, "sub-123")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("GetUser() Email = %q, want %q", got.Email, "alice@example.com")
	}

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if byEmail.ID != "sub-123" {
		t.Errorf("GetUserByEmail() ID = %q, want %q", byEmail.ID, "sub-123")
	}

	// Upsert with a changed email updates in place.
	user.Email = "alice@new.example.com"
	if err := s.UpsertUser(ctx, user); err != nil {
		t.Fatalf("UpsertUser() update error = %v", err)
	}
	got, err = s.GetUser(ctx, "sub-123")
	if err != nil {
		t.Fatalf("GetUser() after update error = %v", err)
	}
	if got.Email != "alice@new.example.com" {
		t.Errorf("GetUser() Email = %q, want updated email", got.Email)
	}
}

func TestListUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, u := range []*User{
		{ID: "u1", Email: "u1@example.com"},
		{ID: "u2", Email: "u2@example.com"},
	} {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser(%s) error = %v", u.ID, err)
		}
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("ListUsers() returned %d users, want 2", len(users))
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser() error = %v, want ErrNotFound", err)
	}

	_, err = s.GetUserByEmail(context.Background(), "missing@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, &User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	token := &AuthToken{
		UserID:       "u1",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       expiry,
	}
	if err := s.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	got, err := s.GetToken(ctx, "u1")
	if err != nil {
		t.Fatalf("GetToken() error = %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Errorf("GetToken() = %+v, want saved tokens", got)
	}
	if !got.Expiry.Equal(expiry) {
		t.Errorf("GetToken() Expiry = %v, want %v", got.Expiry, expiry)
	}

	// A refresh overwrites the access token but keeps the row unique.
	token.AccessToken = "access-2"
	if err := s.SaveToken(ctx, token); err != nil {
		t.Fatalf("SaveToken() refresh error = %v", err)
	}
	got, err = s.GetToken(ctx, "u1")
	if err != nil {
		t.Fatalf("GetToken() after refresh error = %v", err)
	}
	if got.AccessToken != "access-2" {
		t.Errorf("GetToken() AccessToken = %q, want refreshed token", got.AccessToken)
	}
}

func TestGetTokenNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetToken(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetToken() error = %v, want ErrNotFound", err)
	}
}

func TestAdvanceCursorMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, &User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	// First advance creates the row.
	applied, err := s.AdvanceCursor(ctx, "u1", "100")
	if err != nil {
		t.Fatalf("AdvanceCursor() error = %v", err)
	}
	if !applied {
		t.Fatal("AdvanceCursor() initial = false, want true")
	}

	// Forward progress applies.
	applied, err = s.AdvanceCursor(ctx, "u1", "150")
	if err != nil {
		t.Fatalf("AdvanceCursor() error = %v", err)
	}
	if !applied {
		t.Error("AdvanceCursor(150) = false, want true")
	}

	// A stale replay is refused and leaves the cursor alone.
	applied, err = s.AdvanceCursor(ctx, "u1", "120")
	if err != nil {
		t.Fatalf("AdvanceCursor() error = %v", err)
	}
	if applied {
		t.Error("AdvanceCursor(120) = true, want false for stale cursor")
	}

	state, err := s.GetSyncState(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if state.Cursor != "150" {
		t.Errorf("GetSyncState() Cursor = %q, want %q", state.Cursor, "150")
	}
}

func TestSetSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, &User{ID: "u1", Email: "u1@example.com"}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	expiry := time.Now().Add(7 * 24 * time.Hour).Truncate(time.Second)
	if err := s.SetSubscription(ctx, "u1", "500", expiry); err != nil {
		t.Fatalf("SetSubscription() error = %v", err)
	}

	state, err := s.GetSyncState(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if state.Cursor != "500" {
		t.Errorf("Cursor = %q, want %q", state.Cursor, "500")
	}
	if !state.SubscriptionExpiry.Equal(expiry) {
		t.Errorf("SubscriptionExpiry = %v, want %v", state.SubscriptionExpiry, expiry)
	}

	// A renewal whose start cursor lags the processed one keeps the
	// processed cursor but still refreshes the expiry.
	later := expiry.Add(7 * 24 * time.Hour)
	if err := s.SetSubscription(ctx, "u1", "400", later); err != nil {
		t.Fatalf("SetSubscription() renewal error = %v", err)
	}
	state, err = s.GetSyncState(ctx, "u1")
	if err != nil {
		t.Fatalf("GetSyncState() error = %v", err)
	}
	if state.Cursor != "500" {
		t.Errorf("Cursor after stale renewal = %q, want %q", state.Cursor, "500")
	}
	if !state.SubscriptionExpiry.Equal(later) {
		t.Errorf("SubscriptionExpiry = %v, want %v", state.SubscriptionExpiry, later)
	}
}

func TestMarkMessageProcessedDeduplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.MarkMessageProcessed(ctx, "u1", "msg-1")
	if err != nil {
		t.Fatalf("MarkMessageProcessed() error = %v", err)
	}
	if !first {
		t.Error("MarkMessageProcessed() first call = false, want true")
	}

	again, err := s.MarkMessageProcessed(ctx, "u1", "msg-1")
	if err != nil {
		t.Fatalf("MarkMessageProcessed() replay error = %v", err)
	}
	if again {
		t.Error("MarkMessageProcessed() replay = true, want false")
	}

	// Same message id for a different user is independent.
	other, err := s.MarkMessageProcessed(ctx, "u2", "msg-1")
	if err != nil {
		t.Fatalf("MarkMessageProcessed() other user error = %v", err)
	}
	if !other {
		t.Error("MarkMessageProcessed() other user = false, want true")
	}
}

func TestGetSyncStateNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSyncState(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSyncState() error = %v, want ErrNotFound", err)
	}
}
