// Package files holds the current search result set.
package files

import (
	"log/slog"
	"sync"

	"github.com/starford/folio/internal/models"
)

// ListsUpdater is the part of the lists slice that file changes propagate to.
type ListsUpdater interface {
	UpdateFileInAllLists(file models.FileRecord, field string) bool
	UpdateFilesInAllLists(files []models.FileRecord) bool
	RemoveFileFromAllLists(fullPath string) bool
	MoveFileInAllLists(oldFullPath string, file models.FileRecord) bool
}

// State is the process-wide search results slice.
type State struct {
	lists  ListsUpdater
	logger *slog.Logger

	mu    sync.RWMutex
	files []models.FileRecord

	onChange func()
}

// Option configures a State.
type Option func(*State)

// WithOnChange registers a callback invoked after every in-memory change.
func WithOnChange(fn func()) Option {
	return func(s *State) { s.onChange = fn }
}

// New creates an empty files slice propagating into lists.
func New(lists ListsUpdater, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		lists:  lists,
		logger: logger.With(slog.String("component", "files")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Files returns a copy of the current result set.
func (s *State) Files() []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileRecord, len(s.files))
	for i, f := range s.files {
		out[i] = f.Clone()
	}
	return out
}

// Len returns the number of records.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Get returns the record at fullPath.
func (s *State) Get(fullPath string) (models.FileRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.files {
		if f.FullPath == fullPath {
			return f.Clone(), true
		}
	}
	return models.FileRecord{}, false
}

// SetFiles replaces the result set with incoming, resolving each record
// against the existing one at the same full_path:
//
//   - incoming with highlights wins;
//   - otherwise an existing record with highlights is kept;
//   - otherwise incoming is taken.
//
// Paths missing from incoming are dropped. Incoming records carrying
// highlights are then pushed into every list.
func (s *State) SetFiles(incoming []models.FileRecord) {
	var enriched []models.FileRecord

	s.mu.Lock()
	existing := make(map[string]models.FileRecord, len(s.files))
	for _, f := range s.files {
		existing[f.FullPath] = f
	}
	next := make([]models.FileRecord, 0, len(incoming))
	for _, in := range incoming {
		in = in.Clone()
		if in.HasHighlights() {
			enriched = append(enriched, in.Clone())
			next = append(next, in)
			continue
		}
		if old, ok := existing[in.FullPath]; ok && old.HasHighlights() {
			next = append(next, old)
			continue
		}
		next = append(next, in)
	}
	s.files = next
	s.mu.Unlock()

	s.changed()
	if len(enriched) > 0 && s.lists != nil {
		s.lists.UpdateFilesInAllLists(enriched)
	}
}

// ReplaceFileByField replaces the record whose field matches file's and
// propagates the same replacement into every list. field defaults to
// full_path.
func (s *State) ReplaceFileByField(file models.FileRecord, field string) bool {
	if field == "" {
		field = "full_path"
	}
	s.mu.Lock()
	replaced := false
	for i, f := range s.files {
		if file.SameBy(field, f) {
			s.files[i] = file.Clone()
			replaced = true
			break
		}
	}
	s.mu.Unlock()

	if replaced {
		s.changed()
	}
	if s.lists != nil {
		s.lists.UpdateFileInAllLists(file, field)
	}
	return replaced
}

// MoveFile replaces the record at oldFullPath with file, which usually
// carries a new path after a rename, in files and in every list.
func (s *State) MoveFile(oldFullPath string, file models.FileRecord) bool {
	s.mu.Lock()
	moved := false
	for i, f := range s.files {
		if f.FullPath == oldFullPath {
			s.files[i] = file.Clone()
			moved = true
			break
		}
	}
	s.mu.Unlock()

	if moved {
		s.changed()
	}
	if s.lists != nil && s.lists.MoveFileInAllLists(oldFullPath, file) {
		moved = true
	}
	return moved
}

// RemoveFile removes the record at fullPath and cascades to every list.
func (s *State) RemoveFile(fullPath string) bool {
	removed := s.drop(fullPath)
	if s.lists != nil && s.lists.RemoveFileFromAllLists(fullPath) {
		removed = true
	}
	return removed
}

// DropFile removes the record at fullPath from the result set only.
// Lists keep their copies.
func (s *State) DropFile(fullPath string) bool {
	return s.drop(fullPath)
}

func (s *State) drop(fullPath string) bool {
	s.mu.Lock()
	kept := make([]models.FileRecord, 0, len(s.files))
	for _, f := range s.files {
		if f.FullPath != fullPath {
			kept = append(kept, f)
		}
	}
	removed := len(kept) != len(s.files)
	s.files = kept
	s.mu.Unlock()

	if removed {
		s.changed()
	}
	return removed
}

// ClearFiles empties the result set.
func (s *State) ClearFiles() {
	s.mu.Lock()
	s.files = nil
	s.mu.Unlock()
	s.changed()
}

func (s *State) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
