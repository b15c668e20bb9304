// Package kvstore provides the named key-value stores backing lists and
// settings.
package kvstore

import (
	"context"
	"encoding/json"
)

// Names of the two stores folio keeps.
const (
	ListsStore    = "lists"
	SettingsStore = "settings"
)

// Entry is one key/value pair in insertion order.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Store is an async-safe key-value store. Writes become durable on Save.
// No multi-key transaction is implied: callers issue their Sets and call
// Save once.
type Store interface {
	// Get returns the raw value of key and whether it exists.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Set stores value (JSON-encoded) under key, keeping key's position
	// when it already exists.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Entries returns every pair in insertion order.
	Entries(ctx context.Context) ([]Entry, error)
	// Save flushes pending writes to durable storage.
	Save(ctx context.Context) error
}

// Renamer is implemented by stores that can rename a key in place.
type Renamer interface {
	// Rename moves oldKey's position to newKey and stores value there.
	// A missing oldKey behaves like Set(newKey, value).
	Rename(ctx context.Context, oldKey, newKey string, value any) error
}

// Rename renames oldKey to newKey, keeping its position when st supports
// it and appending newKey otherwise.
func Rename(ctx context.Context, st Store, oldKey, newKey string, value any) error {
	if r, ok := st.(Renamer); ok {
		return r.Rename(ctx, oldKey, newKey, value)
	}
	if err := st.Set(ctx, newKey, value); err != nil {
		return err
	}
	return st.Delete(ctx, oldKey)
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(value)
}
