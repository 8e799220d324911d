package tools

import "context"

type userIDKey struct{}

// WithUserID returns a context carrying the user a dispatch runs on behalf
// of. Handlers that talk to per-user services read it back with UserIDFrom.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFrom extracts the dispatching user from the context.
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey{}).(string)
	return userID, ok && userID != ""
}
