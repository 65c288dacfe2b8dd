// Package control holds the shared runner controls: pause flag, iteration
// budget, one-shot hint and heartbeat. Values live behind a Store so the
// runner and external actors (CLI, dashboard) can share them through files in
// the work directory or through redis.
package control

import (
	"context"
	"errors"
)

// Key names a single control value.
type Key string

// Control keys
const (
	KeyPause Key = "pause"
	KeyMax   Key = "max"
	KeyHint  Key = "hint"
	KeyState Key = "state"
)

// ErrNotFound is returned by Store.Get when the key holds no value.
var ErrNotFound = errors.New("control value not set")

// Store is a small key-value store. Keys are independent and last write wins.
type Store interface {
	// Get returns the raw value for key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)
	// Set overwrites the value for key.
	Set(ctx context.Context, key Key, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// Archive keeps a named copy of a consumed hint.
	Archive(ctx context.Context, name string, value []byte) error
}
