// Package google provides OAuth credentials for the Gmail and Calendar
// clients.
//
// Tokens live in the store; the provider refreshes expired access tokens
// against Google's token endpoint and writes the result back, serializing
// refreshes per user so concurrent requests do not both spend the refresh
// token.
package google
