// Package repository implements the durable key-value string storage the
// client persists its session in, and the session repository on top of it.
//
// Backends: in-memory (tests, ephemeral runs), SQLite (default), PostgreSQL
// via pgx, and Redis. Reads and writes are synchronous from the caller's
// point of view.
package repository

import (
	"context"
	"errors"
)

// ErrEmptyKey is returned when a key is empty.
var ErrEmptyKey = errors.New("storage key must not be empty")

// ErrClosed is returned by a storage used after Close.
var ErrClosed = errors.New("storage is closed")

// Storage is durable key-value string storage.
type Storage interface {
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores one entry.
	Set(ctx context.Context, key, value string) error
	// SetAll stores every entry atomically where the backend allows it.
	SetAll(ctx context.Context, entries map[string]string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the backend.
	Close() error
}

func checkKeys(keys ...string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

func entryKeys(entries map[string]string) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	return keys
}
