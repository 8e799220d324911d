// Package mailsync keeps each user's mailbox in step with the assistant.
//
// A push notification only says "something changed"; the actual changes come
// from a history scan starting at the stored cursor. Every discovered message
// passes through a dedup check before it is forwarded to the conversation, so
// overlapping scans deliver each message at most once, and the cursor only
// advances after the batch is handled.
package mailsync
