// Package lists holds the named, ordered file collections ("projects").
//
// Every mutation is optimistic: memory changes first and a snapshot of
// the touched lists is handed to the persist queue under the same lock.
// A failed write is logged by the queue and never rolled back here.
package lists

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/persist"
)

// State is the process-wide lists slice.
type State struct {
	store  kvstore.Store
	queue  *persist.Queue
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	lists  []models.List
	loaded bool

	onChange func()
}

// Option configures a State.
type Option func(*State)

// WithClock overrides time.Now for dateAdded stamps.
func WithClock(now func() time.Time) Option {
	return func(s *State) { s.now = now }
}

// WithOnChange registers a callback invoked after every in-memory change.
func WithOnChange(fn func()) Option {
	return func(s *State) { s.onChange = fn }
}

// New creates an empty lists slice.
func New(store kvstore.Store, queue *persist.Queue, logger *slog.Logger, opts ...Option) *State {
	s := &State{
		store:  store,
		queue:  queue,
		logger: logger.With(slog.String("component", "lists")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads every list from the store in stored order. On failure the
// slice starts empty; either way it is marked loaded.
func (s *State) Load(ctx context.Context) error {
	var loaded []models.List
	entries, err := s.store.Entries(ctx)
	if err == nil {
		for _, e := range entries {
			var items []models.ListItem
			if decErr := json.Unmarshal(e.Value, &items); decErr != nil {
				err = fmt.Errorf("lists: decode %q: %w", e.Key, decErr)
				break
			}
			if items == nil {
				items = []models.ListItem{}
			}
			loaded = append(loaded, models.List{Name: e.Key, Items: items})
		}
	}
	if err != nil {
		s.logger.Error("lists: load failed, starting empty", slog.String("error", err.Error()))
		loaded = nil
	}

	s.mu.Lock()
	s.lists = loaded
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

// All returns a deep copy of every list.
func (s *State) All() []models.List {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.List, len(s.lists))
	for i, l := range s.lists {
		out[i] = cloneList(l)
	}
	return out
}

// Names returns list names in order.
func (s *State) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lists))
	for i, l := range s.lists {
		out[i] = l.Name
	}
	return out
}

// Get returns a copy of the named list.
func (s *State) Get(name string) (models.List, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(name)
	if i < 0 {
		return models.List{}, false
	}
	return cloneList(s.lists[i]), true
}

// FindByFullPath returns the first list item, across all lists, whose
// full_path equals fullPath.
func (s *State) FindByFullPath(fullPath string) (models.ListItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.lists {
		for _, it := range l.Items {
			if it.FullPath == fullPath {
				return it.Clone(), true
			}
		}
	}
	return models.ListItem{}, false
}

// CreateList upserts a list by name. An existing list keeps its position
// and gets items; otherwise the list is appended.
func (s *State) CreateList(name string, items []models.ListItem) error {
	return s.SetList(name, items)
}

// SetList is the upsert behind CreateList.
func (s *State) SetList(name string, items []models.ListItem) error {
	if name == "" {
		return apperr.New(apperr.KindInvalid, "list name is required", apperr.ErrInvalid)
	}
	cloned := cloneItems(items)

	s.mu.Lock()
	s.upsert(name, cloned)
	s.writeList(name, cloneItems(cloned))
	s.mu.Unlock()

	s.changed()
	return nil
}

// AddToList appends item with dateAdded = now unless an item with the same
// file_name is already in the list. A missing list is created.
func (s *State) AddToList(listName string, item models.FileRecord) bool {
	s.mu.Lock()
	var current []models.ListItem
	if i := s.indexOf(listName); i >= 0 {
		current = s.lists[i].Items
	}
	for _, it := range current {
		if it.FileName == item.FileName {
			s.mu.Unlock()
			return false
		}
	}
	added := item.Clone()
	added.IsFromLists = false
	added.DateAdded = s.now().UTC().Format(time.RFC3339Nano)
	next := make([]models.ListItem, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, added)
	s.upsert(listName, next)
	s.writeList(listName, cloneItems(next))
	s.mu.Unlock()

	s.changed()
	return true
}

// RemoveFromList removes the item with fileName from the list.
func (s *State) RemoveFromList(listName, fileName string) bool {
	s.mu.Lock()
	i := s.indexOf(listName)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	current := s.lists[i].Items
	next := make([]models.ListItem, 0, len(current))
	for _, it := range current {
		if it.FileName != fileName {
			next = append(next, it)
		}
	}
	if len(next) == len(current) {
		s.mu.Unlock()
		return false
	}
	s.lists[i].Items = next
	s.writeList(listName, cloneItems(next))
	s.mu.Unlock()

	s.changed()
	return true
}

// RemoveList deletes a list. Resetting the active project when it pointed
// at this list is the caller's job.
func (s *State) RemoveList(name string) bool {
	s.mu.Lock()
	i := s.indexOf(name)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	next := make([]models.List, 0, len(s.lists)-1)
	next = append(next, s.lists[:i]...)
	s.lists = append(next, s.lists[i+1:]...)
	s.queue.Enqueue("lists.remove", func(ctx context.Context) error {
		if err := s.store.Delete(ctx, name); err != nil {
			return err
		}
		return s.store.Save(ctx)
	})
	s.mu.Unlock()

	s.changed()
	return true
}

// RenameList renames oldName to newName in place. It fails with
// ErrDuplicateName, before any change or write, when newName is taken.
func (s *State) RenameList(oldName, newName string) error {
	if newName == "" {
		return apperr.New(apperr.KindInvalid, "list name is required", apperr.ErrInvalid)
	}
	s.mu.Lock()
	i := s.indexOf(oldName)
	if i < 0 {
		s.mu.Unlock()
		return apperr.New(apperr.KindNotFound, fmt.Sprintf("list %q not found", oldName), apperr.ErrNotFound)
	}
	if oldName == newName {
		s.mu.Unlock()
		return nil
	}
	if s.indexOf(newName) >= 0 {
		s.mu.Unlock()
		return apperr.New(apperr.KindDuplicateName, fmt.Sprintf("list %q already exists", newName), apperr.ErrDuplicateName)
	}
	s.lists[i].Name = newName
	snapshot := cloneItems(s.lists[i].Items)
	s.queue.Enqueue("lists.rename", func(ctx context.Context) error {
		if err := kvstore.Rename(ctx, s.store, oldName, newName, snapshot); err != nil {
			return err
		}
		return s.store.Save(ctx)
	})
	s.mu.Unlock()

	s.changed()
	return nil
}

// PinItem pins the item so it sorts after every pin already in the list.
func (s *State) PinItem(listName, fileName string) bool {
	return s.mutateItem(listName, fileName, func(items []models.ListItem, it *models.ListItem) {
		order := nextPinnedOrder(items)
		it.IsPinned = true
		it.PinnedOrder = &order
	})
}

// UnpinItem clears the pin and its order.
func (s *State) UnpinItem(listName, fileName string) bool {
	return s.mutateItem(listName, fileName, func(_ []models.ListItem, it *models.ListItem) {
		it.IsPinned = false
		it.PinnedOrder = nil
	})
}

func (s *State) mutateItem(listName, fileName string, fn func([]models.ListItem, *models.ListItem)) bool {
	s.mu.Lock()
	li := s.indexOf(listName)
	if li < 0 {
		s.mu.Unlock()
		return false
	}
	items := cloneItems(s.lists[li].Items)
	found := false
	for i := range items {
		if items[i].FileName == fileName {
			fn(items, &items[i])
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	s.lists[li].Items = items
	s.writeList(listName, cloneItems(items))
	s.mu.Unlock()

	s.changed()
	return true
}

// nextPinnedOrder is 1 + the highest pinned_order among pinned items, or 0
// when nothing is pinned. A pinned item without an order counts as 0.
func nextPinnedOrder(items []models.ListItem) int {
	highest := -1
	for _, it := range items {
		if !it.IsPinned {
			continue
		}
		o := 0
		if it.PinnedOrder != nil {
			o = *it.PinnedOrder
		}
		if o > highest {
			highest = o
		}
	}
	return highest + 1
}

// UpdateFileInAllLists replaces, in every list, each item whose field
// value equals file's, keeping the item's dateAdded, is_pinned and
// pinned_order. field defaults to full_path.
func (s *State) UpdateFileInAllLists(file models.FileRecord, field string) bool {
	if field == "" {
		field = "full_path"
	}
	return s.reconcile(func(it models.ListItem) (models.FileRecord, bool) {
		if file.SameBy(field, it) {
			return file, true
		}
		return models.FileRecord{}, false
	})
}

// UpdateFilesInAllLists is the batched form, matched by full_path.
func (s *State) UpdateFilesInAllLists(files []models.FileRecord) bool {
	if len(files) == 0 {
		return false
	}
	byPath := make(map[string]models.FileRecord, len(files))
	for _, f := range files {
		if f.FullPath != "" {
			byPath[f.FullPath] = f
		}
	}
	return s.reconcile(func(it models.ListItem) (models.FileRecord, bool) {
		f, ok := byPath[it.FullPath]
		return f, ok
	})
}

// MoveFileInAllLists replaces every item at oldFullPath with file, keeping
// list metadata.
func (s *State) MoveFileInAllLists(oldFullPath string, file models.FileRecord) bool {
	if oldFullPath == "" {
		return false
	}
	return s.reconcile(func(it models.ListItem) (models.FileRecord, bool) {
		return file, it.FullPath == oldFullPath
	})
}

func (s *State) reconcile(match func(models.ListItem) (models.FileRecord, bool)) bool {
	s.mu.Lock()
	changed := false
	for li := range s.lists {
		for ii, it := range s.lists[li].Items {
			incoming, ok := match(it)
			if !ok {
				continue
			}
			s.lists[li].Items[ii] = mergeItem(it, incoming)
			changed = true
		}
	}
	if changed {
		snapshot := make([]models.List, len(s.lists))
		for i, l := range s.lists {
			snapshot[i] = cloneList(l)
		}
		s.writeLists(snapshot)
	}
	s.mu.Unlock()

	if changed {
		s.changed()
	}
	return changed
}

// RemoveFileFromAllLists drops every item with fullPath from every list.
func (s *State) RemoveFileFromAllLists(fullPath string) bool {
	s.mu.Lock()
	var touched []models.List
	for li := range s.lists {
		items := s.lists[li].Items
		kept := make([]models.ListItem, 0, len(items))
		for _, it := range items {
			if it.FullPath != fullPath {
				kept = append(kept, it)
			}
		}
		if len(kept) != len(items) {
			s.lists[li].Items = kept
			touched = append(touched, cloneList(s.lists[li]))
		}
	}
	if len(touched) > 0 {
		s.writeLists(touched)
	}
	s.mu.Unlock()

	if len(touched) == 0 {
		return false
	}
	s.changed()
	return true
}

// mergeItem takes every file field from incoming and the list metadata
// from existing.
func mergeItem(existing models.ListItem, incoming models.FileRecord) models.ListItem {
	out := incoming.Clone()
	out.ListMeta = existing.Clone().ListMeta
	out.IsFromLists = false
	return out
}

func (s *State) indexOf(name string) int {
	for i, l := range s.lists {
		if l.Name == name {
			return i
		}
	}
	return -1
}

// upsert must be called with mu held.
func (s *State) upsert(name string, items []models.ListItem) {
	if i := s.indexOf(name); i >= 0 {
		s.lists[i].Items = items
		return
	}
	s.lists = append(s.lists, models.List{Name: name, Items: items})
}

func (s *State) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// writeList and writeLists must be called with mu held so the queue sees
// writes in mutation order.
func (s *State) writeList(name string, items []models.ListItem) {
	s.queue.Enqueue("lists.write", func(ctx context.Context) error {
		if err := s.store.Set(ctx, name, items); err != nil {
			return err
		}
		return s.store.Save(ctx)
	})
}

// writeLists sets every list and saves once.
func (s *State) writeLists(lists []models.List) {
	s.queue.Enqueue("lists.write_all", func(ctx context.Context) error {
		g, gCtx := errgroup.WithContext(ctx)
		for _, l := range lists {
			g.Go(func() error {
				return s.store.Set(gCtx, l.Name, l.Items)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		return s.store.Save(ctx)
	})
}

func cloneItems(items []models.ListItem) []models.ListItem {
	out := make([]models.ListItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

func cloneList(l models.List) models.List {
	return models.List{Name: l.Name, Items: cloneItems(l.Items)}
}
