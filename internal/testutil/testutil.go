// Package testutil provides shared test helpers for stores, queues and
// backends.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/persist"
)

// Logger returns a JSON logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Queue starts a persist queue that is closed with the test.
func Queue(t *testing.T) *persist.Queue {
	t.Helper()
	q := persist.New(Logger(), 5*time.Second)
	t.Cleanup(q.Close)
	return q
}

// Flush waits for every queued write.
func Flush(t *testing.T, q *persist.Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// FileStore opens a JSON file store in a temporary directory.
func FileStore(t *testing.T, name string) *kvstore.FileStore {
	t.Helper()
	s, err := kvstore.OpenFile(t.TempDir(), name)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// SQLiteDB creates a temporary SQLite database that is automatically cleaned up.
func SQLiteDB(t *testing.T) *kvstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "folio-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := kvstore.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Call is one recorded store operation.
type Call struct {
	Op  string
	Key string
}

// RecordingStore wraps a store and records every call.
type RecordingStore struct {
	kvstore.Store

	mu    sync.Mutex
	calls []Call
}

// NewRecordingStore wraps inner.
func NewRecordingStore(inner kvstore.Store) *RecordingStore {
	return &RecordingStore{Store: inner}
}

func (r *RecordingStore) record(op, key string) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: op, Key: key})
	r.mu.Unlock()
}

// Calls returns the recorded calls in order.
func (r *RecordingStore) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *RecordingStore) Set(ctx context.Context, key string, value any) error {
	r.record("set", key)
	return r.Store.Set(ctx, key, value)
}

func (r *RecordingStore) Delete(ctx context.Context, key string) error {
	r.record("delete", key)
	return r.Store.Delete(ctx, key)
}

func (r *RecordingStore) Save(ctx context.Context) error {
	r.record("save", "")
	return r.Store.Save(ctx)
}

// ErrInjected is returned by FailingStore.
var ErrInjected = errors.New("injected store failure")

// FailingStore reads nothing and fails every write.
type FailingStore struct {
	FailReads bool
}

var _ kvstore.Store = FailingStore{}

func (f FailingStore) Get(context.Context, string) (json.RawMessage, bool, error) {
	if f.FailReads {
		return nil, false, ErrInjected
	}
	return nil, false, nil
}

func (f FailingStore) Set(context.Context, string, any) error { return ErrInjected }

func (f FailingStore) Delete(context.Context, string) error { return ErrInjected }

func (f FailingStore) Save(context.Context) error { return ErrInjected }

func (f FailingStore) Entries(context.Context) ([]kvstore.Entry, error) {
	if f.FailReads {
		return nil, ErrInjected
	}
	return nil, nil
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// FakeBackend is a scriptable search backend. Responses are looked up by
// exact query; a query with a gate blocks until the gate is closed.
type FakeBackend struct {
	mu        sync.Mutex
	responses map[string]everything.Response
	meta      map[string][]models.FileRecord
	errs      map[string]error
	gates     map[string]chan struct{}
	requests  []everything.Request
}

// NewFakeBackend returns an empty backend answering every query with no
// items.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		responses: make(map[string]everything.Response),
		meta:      make(map[string][]models.FileRecord),
		errs:      make(map[string]error),
		gates:     make(map[string]chan struct{}),
	}
}

// Respond sets the response for query.
func (b *FakeBackend) Respond(query string, resp everything.Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.responses[query] = resp
}

// RespondMeta sets the metadata lookup result for query.
func (b *FakeBackend) RespondMeta(query string, items []models.FileRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meta[query] = items
}

// Fail makes query return err.
func (b *FakeBackend) Fail(query string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[query] = err
}

// Hold makes query block until the returned function is called.
func (b *FakeBackend) Hold(query string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[query] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Requests returns every search request received.
func (b *FakeBackend) Requests() []everything.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]everything.Request(nil), b.requests...)
}

func (b *FakeBackend) Search(ctx context.Context, req everything.Request) (everything.Response, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	gate := b.gates[req.Query]
	resp, err := b.responses[req.Query], b.errs[req.Query]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return everything.Response{}, ctx.Err()
		}
	}
	if err != nil {
		return everything.Response{}, err
	}
	if resp.Items == nil {
		resp.Items = []models.FileRecord{}
	}
	return resp, nil
}

func (b *FakeBackend) SearchMeta(_ context.Context, query string) ([]models.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.errs[query]; err != nil {
		return nil, err
	}
	return b.meta[query], nil
}
