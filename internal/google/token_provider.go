package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"

	"github.com/teemow/schedassist/internal/instrumentation"
	"github.com/teemow/schedassist/internal/logging"
	"github.com/teemow/schedassist/internal/store"
)

// ErrCredentialMissing indicates no stored credential exists for the user.
var ErrCredentialMissing = errors.New("no stored credential for user")

// ErrCredentialExpired indicates the stored credential can no longer be
// refreshed and the user must re-authorize.
var ErrCredentialExpired = errors.New("stored credential expired and could not be refreshed")

// TokenProvider supplies OAuth tokens for Google API clients.
// This abstraction allows different token sources (store-backed, static).
type TokenProvider interface {
	// TokenForUser returns a valid access token for the user, refreshing
	// the stored one if it has expired.
	TokenForUser(ctx context.Context, userID string) (*oauth2.Token, error)
}

// Config carries the OAuth client settings used to refresh tokens.
type Config struct {
	ClientID     string
	ClientSecret string
	Metrics      *instrumentation.Metrics
}

// OAuthConfig builds the oauth2 configuration for Google's endpoint.
func (c Config) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     googleauth.Endpoint,
		Scopes:       DefaultOAuthScopes,
	}
}

// StoreTokenProvider reads credentials from the repository and refreshes
// them lazily.
type StoreTokenProvider struct {
	repo    store.Repository
	oauth   *oauth2.Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	// expirySkew treats tokens expiring within the window as already
	// expired so a token does not die mid-request.
	expirySkew time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStoreTokenProvider creates a provider backed by the given repository.
func NewStoreTokenProvider(repo store.Repository, cfg Config, logger *slog.Logger) *StoreTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	return &StoreTokenProvider{
		repo:       repo,
		oauth:      cfg.OAuthConfig(),
		logger:     logger,
		metrics:    metrics,
		expirySkew: 30 * time.Second,
		locks:      make(map[string]*sync.Mutex),
	}
}

// TokenForUser returns a valid access token for the user. Expired tokens are
// refreshed against Google and the new token is persisted before returning.
func (p *StoreTokenProvider) TokenForUser(ctx context.Context, userID string) (*oauth2.Token, error) {
	stored, err := p.repo.GetToken(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCredentialMissing, userID)
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       stored.Expiry,
	}
	if time.Until(token.Expiry) > p.expirySkew {
		return token, nil
	}

	return p.refresh(ctx, userID, token)
}

// refresh exchanges the refresh token for a new access token. One refresh
// per user runs at a time; the loser of the race re-reads the store and
// usually finds a fresh token already there.
func (p *StoreTokenProvider) refresh(ctx context.Context, userID string, stale *oauth2.Token) (*oauth2.Token, error) {
	lock := p.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := p.repo.GetToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload token: %w", err)
	}
	if time.Until(stored.Expiry) > p.expirySkew {
		return &oauth2.Token{
			AccessToken:  stored.AccessToken,
			RefreshToken: stored.RefreshToken,
			TokenType:    "Bearer",
			Expiry:       stored.Expiry,
		}, nil
	}

	if stale.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrCredentialExpired)
	}

	fresh, err := p.oauth.TokenSource(ctx, stale).Token()
	if err != nil {
		p.metrics.RecordTokenRefresh(ctx, "failure")
		p.logger.Warn("Token refresh failed",
			logging.UserHash(userID),
			logging.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}
	p.metrics.RecordTokenRefresh(ctx, "success")

	// Google omits the refresh token on refresh responses; keep the old one.
	refreshToken := fresh.RefreshToken
	if refreshToken == "" {
		refreshToken = stale.RefreshToken
	}
	if err := p.repo.SaveToken(ctx, &store.AuthToken{
		UserID:       userID,
		AccessToken:  fresh.AccessToken,
		RefreshToken: refreshToken,
		Expiry:       fresh.Expiry,
	}); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}

	p.logger.Debug("Refreshed access token",
		logging.UserHash(userID),
		slog.Time("expiry", fresh.Expiry))

	fresh.RefreshToken = refreshToken
	return fresh, nil
}

func (p *StoreTokenProvider) userLock(userID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[userID] = lock
	}
	return lock
}

// StaticTokenProvider returns a fixed token for every user. Useful in tests
// and single-account deployments.
type StaticTokenProvider struct {
	Token *oauth2.Token
}

// TokenForUser returns the fixed token.
func (p *StaticTokenProvider) TokenForUser(_ context.Context, _ string) (*oauth2.Token, error) {
	if p.Token == nil {
		return nil, ErrCredentialMissing
	}
	return p.Token, nil
}
