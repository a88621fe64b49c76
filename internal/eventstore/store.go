package eventstore

import (
	"context"
	"time"
)

// Store defines the interface for persisting and retrieving task events.
type Store interface {
	// Append adds a new event to the store.
	Append(ctx context.Context, fingerprint, eventType string, payload []byte, metadata map[string]string) error

	// GetByFingerprint retrieves all events for a specific fingerprint.
	GetByFingerprint(ctx context.Context, fingerprint string) ([]Event, error)

	// GetRange retrieves events within a time range.
	GetRange(ctx context.Context, start, end time.Time) ([]Event, error)

	// Close closes the store and releases resources.
	Close() error
}
