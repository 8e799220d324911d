// Package server is the HTTP boundary: the conversation endpoint, the Gmail
// push webhook, and the health and metrics listeners.
//
// The webhook always acknowledges with 200. Pub/Sub redelivers unacked
// notifications aggressively, and a notification is only a nudge to scan the
// mailbox; failures are logged and the next notification (or the same one
// redelivered) picks up where the cursor points.
package server
