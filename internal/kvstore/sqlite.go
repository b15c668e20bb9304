package kvstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const kvSchemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	store    TEXT    NOT NULL,
	key      TEXT    NOT NULL,
	value    TEXT    NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (store, key)
);

CREATE INDEX IF NOT EXISTS idx_kv_position ON kv(store, position);
`

// DB is a SQLite database holding any number of named stores.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("kvstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: ping: %w", err)
	}
	if _, err := conn.Exec(kvSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("kvstore: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Store returns the named store view over db.
func (db *DB) Store(name string) *SQLiteStore {
	return &SQLiteStore{db: db, name: name}
}

// SQLiteStore is one named store inside a DB. Every Set/Delete is
// committed immediately; Save checkpoints the WAL into the main file.
type SQLiteStore struct {
	db   *DB
	name string
}

var _ Store = (*SQLiteStore)(nil)

// Get returns the raw value of key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var v string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE store = ? AND key = ?`, s.name, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: get %q: %w", key, err)
	}
	return json.RawMessage(v), true, nil
}

// Set upserts key, appending new keys after existing ones.
func (s *SQLiteStore) Set(ctx context.Context, key string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", key, err)
	}
	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO kv (store, key, value, position)
		VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM kv WHERE store = ?))
		ON CONFLICT(store, key) DO UPDATE SET value = excluded.value
	`, s.name, key, string(raw), s.name)
	if err != nil {
		return fmt.Errorf("kvstore: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM kv WHERE store = ? AND key = ?`, s.name, key); err != nil {
		return fmt.Errorf("kvstore: delete %q: %w", key, err)
	}
	return nil
}

// Rename moves oldKey's row to newKey, keeping its position.
func (s *SQLiteStore) Rename(ctx context.Context, oldKey, newKey string, value any) error {
	raw, err := encode(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", newKey, err)
	}
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("kvstore: begin rename: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM kv WHERE store = ? AND key = ?`, s.name, newKey); err != nil {
		return fmt.Errorf("kvstore: rename %q: %w", oldKey, err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE kv SET key = ?, value = ? WHERE store = ? AND key = ?`,
		newKey, string(raw), s.name, oldKey)
	if err != nil {
		return fmt.Errorf("kvstore: rename %q: %w", oldKey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO kv (store, key, value, position)
			VALUES (?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM kv WHERE store = ?))
		`, s.name, newKey, string(raw), s.name); err != nil {
			return fmt.Errorf("kvstore: rename %q: %w", oldKey, err)
		}
	}
	return tx.Commit()
}

// Entries returns all pairs ordered by first insertion.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE store = ? ORDER BY position`, s.name)
	if err != nil {
		return nil, fmt.Errorf("kvstore: entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: k, Value: json.RawMessage(v)})
	}
	return out, rows.Err()
}

// Save checkpoints the WAL.
func (s *SQLiteStore) Save(ctx context.Context) error {
	if _, err := s.db.conn.ExecContext(ctx, `PRAGMA wal_checkpoint(PASSIVE)`); err != nil {
		return fmt.Errorf("kvstore: checkpoint: %w", err)
	}
	return nil
}
