package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository at dbPath, creating the
// parent directory and schema as needed.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency between the HTTP and webhook paths.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_tokens (
		user_id TEXT PRIMARY KEY REFERENCES users(user_id),
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expiry INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		user_id TEXT PRIMARY KEY REFERENCES users(user_id),
		cursor TEXT NOT NULL DEFAULT '',
		subscription_expiry INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS processed_messages (
		user_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		processed_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, message_id)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	query := `
	INSERT INTO users (user_id, email, created_at)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET email = excluded.email`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Email, createdAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.getUser(ctx, `SELECT user_id, email, created_at FROM users WHERE user_id = ?`, userID)
}

// GetUserByEmail retrieves a user by email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT user_id, email, created_at FROM users WHERE email = ?`, email)
}

// ListUsers returns all registered users.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, email, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var createdAt int64
		if err := rows.Scan(&user.ID, &user.Email, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		user.CreatedAt = time.Unix(createdAt, 0)
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) getUser(ctx context.Context, query, arg string) (*User, error) {
	var user User
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Email, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// SaveToken creates or replaces the OAuth tokens for a user.
func (s *SQLiteStore) SaveToken(ctx context.Context, token *AuthToken) error {
	query := `
	INSERT INTO auth_tokens (user_id, access_token, refresh_token, expiry, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		expiry = excluded.expiry,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		token.UserID, token.AccessToken, token.RefreshToken,
		token.Expiry.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// GetToken retrieves the OAuth tokens for a user.
func (s *SQLiteStore) GetToken(ctx context.Context, userID string) (*AuthToken, error) {
	query := `
	SELECT user_id, access_token, refresh_token, expiry, updated_at
	FROM auth_tokens WHERE user_id = ?`

	var token AuthToken
	var expiry, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&token.UserID, &token.AccessToken, &token.RefreshToken, &expiry, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan token row: %w", err)
	}
	token.Expiry = time.Unix(expiry, 0)
	token.UpdatedAt = time.Unix(updatedAt, 0)
	return &token, nil
}

// GetSyncState retrieves the mailbox sync state for a user.
func (s *SQLiteStore) GetSyncState(ctx context.Context, userID string) (*SyncState, error) {
	query := `
	SELECT user_id, cursor, subscription_expiry, updated_at
	FROM sync_state WHERE user_id = ?`

	var state SyncState
	var expiry, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&state.UserID, &state.Cursor, &expiry, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync state row: %w", err)
	}
	state.SubscriptionExpiry = time.Unix(expiry, 0)
	state.UpdatedAt = time.Unix(updatedAt, 0)
	return &state, nil
}

// AdvanceCursor applies the candidate cursor only if it represents forward
// progress. The read and conditional write run in one transaction so two
// racing push notifications cannot interleave their updates.
func (s *SQLiteStore) AdvanceCursor(ctx context.Context, userID, cursor string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT cursor FROM sync_state WHERE user_id = ?`, userID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO sync_state (user_id, cursor, updated_at) VALUES (?, ?, ?)`,
			userID, cursor, time.Now().Unix())
		if err != nil {
			return false, fmt.Errorf("insert sync state: %w", err)
		}
	case err != nil:
		return false, fmt.Errorf("read cursor: %w", err)
	default:
		if !CursorAdvances(current, cursor) {
			return false, nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE sync_state SET cursor = ?, updated_at = ? WHERE user_id = ?`,
			cursor, time.Now().Unix(), userID)
		if err != nil {
			return false, fmt.Errorf("update cursor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit cursor update: %w", err)
	}
	return true, nil
}

// SetSubscription records a fresh watch registration. The cursor still goes
// through the monotonic check: a watch response carries the mailbox's
// current history id, which may be older than what we already processed.
func (s *SQLiteStore) SetSubscription(ctx context.Context, userID, cursor string, expiry time.Time) error {
	query := `
	INSERT INTO sync_state (user_id, cursor, subscription_expiry, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		subscription_expiry = excluded.subscription_expiry,
		updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, userID, cursor, expiry.Unix(), time.Now().Unix()); err != nil {
		return fmt.Errorf("set subscription: %w", err)
	}
	if _, err := s.AdvanceCursor(ctx, userID, cursor); err != nil {
		return fmt.Errorf("advance watch cursor: %w", err)
	}
	return nil
}

// MarkMessageProcessed records a message id, reporting true only the first
// time the id is seen for the user.
func (s *SQLiteStore) MarkMessageProcessed(ctx context.Context, userID, messageID string) (bool, error) {
	query := `
	INSERT OR IGNORE INTO processed_messages (user_id, message_id, processed_at)
	VALUES (?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, userID, messageID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("mark message processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}
