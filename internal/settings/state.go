// Package settings holds the user configuration slice and derives the
// search query fragments from it.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/persist"
)

// State is the process-wide settings slice. Mutations update memory
// synchronously and enqueue their write under the same lock.
type State struct {
	store  kvstore.Store
	queue  *persist.Queue
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	settings models.Settings
	loaded   bool

	onChange func(models.Settings)
}

// Option configures a State.
type Option func(*State)

// WithClock overrides time.Now for exclusion timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithOnChange registers a callback invoked after every in-memory change.
func WithOnChange(fn func(models.Settings)) Option {
	return func(s *State) { s.onChange = fn }
}

// New creates a settings slice holding the defaults until Load runs.
func New(store kvstore.Store, queue *persist.Queue, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		store:    store,
		queue:    queue,
		logger:   logger.With(slog.String("component", "settings")),
		now:      time.Now,
		settings: models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load merges persisted values onto the defaults. On a read failure the
// defaults are kept; either way the slice is marked loaded.
func (s *State) Load(ctx context.Context) error {
	merged := models.DefaultSettings()
	entries, err := s.store.Entries(ctx)
	if err == nil {
		for _, e := range entries {
			if applyErr := merged.Apply(e.Key, e.Value); applyErr != nil {
				err = fmt.Errorf("settings: decode %q: %w", e.Key, applyErr)
				break
			}
		}
	}
	if err != nil {
		s.logger.Error("settings: load failed, using defaults", slog.String("error", err.Error()))
		merged = models.DefaultSettings()
	}

	s.mu.Lock()
	s.settings = merged
	s.loaded = true
	s.mu.Unlock()

	s.changed()
	return err
}

// Loaded reports whether Load has completed.
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Get returns a copy of the current settings.
func (s *State) Get() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// PDFReaderPath returns the configured open-with program.
func (s *State) PDFReaderPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.PDFReaderPath
}

// SetSetting replaces one key. A value that does not decode into the
// key's type is rejected before any change.
func (s *State) SetSetting(key string, value json.RawMessage) error {
	if key == "" {
		return apperr.New(apperr.KindInvalid, "setting key is required", apperr.ErrInvalid)
	}
	s.mu.Lock()
	next := s.settings.Clone()
	if err := next.Apply(key, value); err != nil {
		s.mu.Unlock()
		return apperr.New(apperr.KindInvalid, fmt.Sprintf("invalid value for %q", key), err)
	}
	s.settings = next
	s.writeKeys(key)
	s.mu.Unlock()

	s.changed()
	return nil
}

// SetSettings replaces the whole configuration.
func (s *State) SetSettings(all models.Settings) {
	s.mu.Lock()
	s.settings = all.Clone()
	if s.settings.Types == nil {
		s.settings.Types = []string{}
	}
	if s.settings.ExcludedList == nil {
		s.settings.ExcludedList = []models.ExcludedListItem{}
	}
	keys := make([]string, 0, 3+len(s.settings.Extra))
	for k := range s.settings.Entries() {
		keys = append(keys, k)
	}
	s.writeKeys(keys...)
	s.mu.Unlock()

	s.changed()
}

// AddExclusion excludes a file by name. It is a no-op when a rule for
// the same file name exists.
func (s *State) AddExclusion(file models.FileRecord) bool {
	if file.FileName == "" {
		return false
	}
	return s.addExclusion(models.ExcludedListItem{FileName: file.FileName}, func(e models.ExcludedListItem) bool {
		return e.FileName == file.FileName
	})
}

// AddExclusionByPath excludes a path prefix. It is a no-op when a rule for
// the same path exists.
func (s *State) AddExclusionByPath(path string) bool {
	if path == "" {
		return false
	}
	return s.addExclusion(models.ExcludedListItem{Path: path}, func(e models.ExcludedListItem) bool {
		return e.Path == path
	})
}

func (s *State) addExclusion(item models.ExcludedListItem, same func(models.ExcludedListItem) bool) bool {
	s.mu.Lock()
	for _, e := range s.settings.ExcludedList {
		if same(e) {
			s.mu.Unlock()
			return false
		}
	}
	item.DateAdded = s.now().UTC().Format(time.RFC3339Nano)
	next := make([]models.ExcludedListItem, 0, len(s.settings.ExcludedList)+1)
	next = append(next, s.settings.ExcludedList...)
	s.settings.ExcludedList = append(next, item)
	s.writeKeys(models.SettingExcludedList)
	s.mu.Unlock()

	s.changed()
	return true
}

// RemoveExclusion drops every rule whose file name or path equals
// identifier.
func (s *State) RemoveExclusion(identifier string) bool {
	s.mu.Lock()
	kept := make([]models.ExcludedListItem, 0, len(s.settings.ExcludedList))
	for _, e := range s.settings.ExcludedList {
		if e.FileName == identifier || e.Path == identifier {
			continue
		}
		kept = append(kept, e)
	}
	removed := len(kept) != len(s.settings.ExcludedList)
	if removed {
		s.settings.ExcludedList = kept
		s.writeKeys(models.SettingExcludedList)
	}
	s.mu.Unlock()

	if removed {
		s.changed()
	}
	return removed
}

// TypesFragment returns `ext:a|b`, or "" when no types are configured.
func (s *State) TypesFragment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return TypesFragment(s.settings.Types)
}

// ExclusionFragment returns the space-joined exclusion terms.
func (s *State) ExclusionFragment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ExclusionFragment(s.settings.ExcludedList)
}

// TypesFragment builds the extension filter term.
func TypesFragment(types []string) string {
	joined := strings.Join(types, "|")
	if joined == "" {
		return ""
	}
	return "ext:" + joined
}

// ExclusionFragment builds one negated term per rule in insertion order.
func ExclusionFragment(rules []models.ExcludedListItem) string {
	terms := make([]string, 0, len(rules))
	for _, r := range rules {
		if r.IsPath() {
			terms = append(terms, `!path:"`+r.Path+`"`)
		} else {
			terms = append(terms, `!wfn:"`+r.FileName+`"`)
		}
	}
	return strings.Join(terms, " ")
}

func (s *State) changed() {
	if s.onChange != nil {
		s.onChange(s.Get())
	}
}

// writeKeys snapshots the given keys now and persists them later. It must
// be called with mu held so the queue sees writes in mutation order.
func (s *State) writeKeys(keys ...string) {
	all := s.settings.Entries()
	encoded := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		v, ok := all[k]
		if !ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("settings: encode failed", slog.String("key", k), slog.String("error", err.Error()))
			continue
		}
		encoded[k] = raw
	}

	s.queue.Enqueue("settings.write", func(ctx context.Context) error {
		for k, raw := range encoded {
			if err := s.store.Set(ctx, k, raw); err != nil {
				return err
			}
		}
		return s.store.Save(ctx)
	})
}
