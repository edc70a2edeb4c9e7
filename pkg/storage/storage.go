package storage

import (
	"context"
)

// Storage defines the durable save medium for a session.
// Snapshots are stored as opaque encoded bytes under a named slot; decoding and
// shape validation belong to the save package so corrupt data never breaks a backend.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// SaveSnapshot overwrites the slot with data
	SaveSnapshot(ctx context.Context, slot string, data []byte) error

	// LoadSnapshot returns the slot contents
	// Returns nil if the slot is empty
	LoadSnapshot(ctx context.Context, slot string) ([]byte, error)

	// DeleteSnapshot clears the slot. Deleting an empty slot is not an error.
	DeleteSnapshot(ctx context.Context, slot string) error

	// Durable one-time flags, independent of the save slot (e.g. tutorial completion)
	SetFlag(ctx context.Context, name string, value bool) error
	GetFlag(ctx context.Context, name string) (bool, error)
}
