// Package store reads vehicle state from, and writes telemetry to, a hash
// based key-value store with change notifications.
package store

import "context"

// Store is a keyed lookup of fields under named groups plus atomic batches.
type Store interface {
	// Get returns the field value, or def when the field is missing or the
	// store cannot be reached.
	Get(ctx context.Context, group, field, def string) string

	// Begin starts a batch. Nothing is visible to readers until Commit.
	Begin(ctx context.Context) Batch
}

// Batch accumulates writes and notifications that are applied all at once.
// Discard after Commit is a no-op, so callers may always defer Discard.
type Batch interface {
	Set(group, field, value string)
	Notify(group, field string)
	Len() int
	Commit() error
	Discard()
}

// Message is a change notification: the channel is the group and the payload
// is the field that changed.
type Message struct {
	Channel string `json:"channel"`
	Payload string `json:"payload"`
}
