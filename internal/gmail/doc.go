// Package gmail wraps the Gmail API for sending mail and following mailbox
// changes.
//
// The change-tracking side speaks Gmail's history API: a watch registration
// yields a starting history id, and HistorySince pages forward from a stored
// id to find newly added messages. History ids only ever grow, which is what
// lets the store keep a monotonic cursor.
package gmail
