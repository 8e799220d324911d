// Package store persists users, OAuth tokens and mailbox sync state in
// SQLite.
//
// The mailbox cursor is the one piece of shared mutable state in the system:
// two push notifications for the same user may race to advance it, so the
// update is a monotonic compare-and-set inside a transaction rather than a
// blind overwrite.
package store
