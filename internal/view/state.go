// Package view holds the ephemeral filter and pagination state that
// drives which search is issued and how highlights are projected.
package view

import (
	"fmt"
	"slices"
	"sync"

	"github.com/starford/folio/internal/apperr"
)

// Mode selects whether the file table is backed by highlight enrichment.
type Mode string

const (
	ModeHighlights   Mode = "highlights"
	ModeNoHighlights Mode = "no-highlights"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeHighlights || m == ModeNoHighlights
}

// Defaults for both pagination cursors.
const (
	DefaultFetchCount        = 50
	DefaultVisibleHighlights = 50
)

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	ActiveProject string `json:"activeProject"`
	ActiveMode    Mode   `json:"activeMode"`
	SearchText    string `json:"searchText"`

	FetchCount int   `json:"fetchCount"`
	HasMore    *bool `json:"hasMore,omitempty"`
	Loading    bool  `json:"loading"`

	SelectedBook string   `json:"selectedBook,omitempty"`
	HiddenBooks  []string `json:"hiddenBooks"`

	HighlightsSearchText   string `json:"highlightsSearchText"`
	VisibleHighlightsCount int    `json:"visibleHighlightsCount"`
	ShowOnlyAnnotated      bool   `json:"showOnlyAnnotated"`
}

// SearchKey returns the fields a search depends on. Two snapshots with
// equal keys issue the same backend request.
func (s Snapshot) SearchKey() string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%d", s.ActiveProject, s.ActiveMode, s.SearchText, s.FetchCount)
}

// IncludeHighlights reports whether the search for this snapshot asks the
// backend for highlights. Enrichment is skipped once the user paged past
// the first batch.
func (s Snapshot) IncludeHighlights(defaultFetch int) bool {
	return s.ActiveMode == ModeHighlights && s.FetchCount <= defaultFetch
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.HiddenBooks = append([]string{}, s.HiddenBooks...)
	if s.HasMore != nil {
		v := *s.HasMore
		out.HasMore = &v
	}
	return out
}

// State is the process-wide view slice.
type State struct {
	defaultFetch int
	pageSize     int

	mu sync.RWMutex
	v  Snapshot

	onChange func(prev, next Snapshot)
}

// Option configures a State.
type Option func(*State)

// WithFetchCount sets the default (and increment) for the file cursor.
func WithFetchCount(n int) Option {
	return func(s *State) {
		if n > 0 {
			s.defaultFetch = n
		}
	}
}

// WithHighlightsPage sets the default (and increment) for the highlight
// cursor.
func WithHighlightsPage(n int) Option {
	return func(s *State) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithOnChange registers a callback invoked with the state before and
// after every change.
func WithOnChange(fn func(prev, next Snapshot)) Option {
	return func(s *State) { s.onChange = fn }
}

// New creates a view slice with every field at its default.
func New(opts ...Option) *State {
	s := &State{defaultFetch: DefaultFetchCount, pageSize: DefaultVisibleHighlights}
	for _, opt := range opts {
		opt(s)
	}
	s.v = Snapshot{
		ActiveMode:             ModeHighlights,
		FetchCount:             s.defaultFetch,
		HiddenBooks:            []string{},
		VisibleHighlightsCount: s.pageSize,
	}
	return s
}

// DefaultFetchCount returns the configured first-page size of a search.
func (s *State) DefaultFetchCount() int { return s.defaultFetch }

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.clone()
}

func (s *State) update(fn func(v *Snapshot)) {
	s.mu.Lock()
	prev := s.v.clone()
	fn(&s.v)
	next := s.v.clone()
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(prev, next)
	}
}

// SelectBook focuses the highlight feed on one book and clears hidden books.
// An empty name clears the selection.
func (s *State) SelectBook(name string) {
	s.update(func(v *Snapshot) {
		v.SelectedBook = name
		v.HiddenBooks = []string{}
		v.VisibleHighlightsCount = s.pageSize
	})
}

// RemoveBookFilter clears the selected book.
func (s *State) RemoveBookFilter() {
	s.update(func(v *Snapshot) {
		v.SelectedBook = ""
		v.VisibleHighlightsCount = s.pageSize
	})
}

// HideBook toggles name in the hidden set and clears the selected book.
func (s *State) HideBook(name string) {
	s.update(func(v *Snapshot) {
		if i := slices.Index(v.HiddenBooks, name); i >= 0 {
			v.HiddenBooks = slices.Delete(v.HiddenBooks, i, i+1)
		} else {
			v.HiddenBooks = append(v.HiddenBooks, name)
		}
		v.SelectedBook = ""
		v.VisibleHighlightsCount = s.pageSize
	})
}

// ResetCount rewinds the highlight cursor.
func (s *State) ResetCount() {
	s.update(func(v *Snapshot) { v.VisibleHighlightsCount = s.pageSize })
}

// SetActiveProject switches the table to a list ("" = all files) and
// rewinds the file cursor.
func (s *State) SetActiveProject(name string) {
	s.update(func(v *Snapshot) {
		v.ActiveProject = name
		v.FetchCount = s.defaultFetch
		v.SelectedBook = ""
	})
}

// SetActiveMode switches between highlight and plain browsing.
func (s *State) SetActiveMode(m Mode) error {
	if !m.Valid() {
		return apperr.New(apperr.KindInvalid, fmt.Sprintf("unknown mode %q", m), apperr.ErrInvalid)
	}
	s.update(func(v *Snapshot) { v.ActiveMode = m })
	return nil
}

// SetSearchText sets the free-text part of the file search.
func (s *State) SetSearchText(text string) {
	s.update(func(v *Snapshot) { v.SearchText = text })
}

// SetShowOnlyAnnotated sets the annotation-only filter.
func (s *State) SetShowOnlyAnnotated(on bool) {
	s.update(func(v *Snapshot) { v.ShowOnlyAnnotated = on })
}

// ToggleShowOnlyAnnotated flips the annotation-only filter and rewinds the
// highlight cursor.
func (s *State) ToggleShowOnlyAnnotated() {
	s.update(func(v *Snapshot) {
		v.ShowOnlyAnnotated = !v.ShowOnlyAnnotated
		v.VisibleHighlightsCount = s.pageSize
	})
}

// SetHighlightsSearchText sets the highlight text filter.
func (s *State) SetHighlightsSearchText(text string) {
	s.update(func(v *Snapshot) { v.HighlightsSearchText = text })
}

// SetVisibleHighlightsCount moves the highlight cursor.
func (s *State) SetVisibleHighlightsCount(n int) {
	s.update(func(v *Snapshot) { v.VisibleHighlightsCount = max(n, 0) })
}

// MoreHighlights advances the highlight cursor by one page, capped at
// total filtered highlights.
func (s *State) MoreHighlights(total int) {
	s.update(func(v *Snapshot) {
		step := min(s.pageSize, total-v.VisibleHighlightsCount)
		if step > 0 {
			v.VisibleHighlightsCount += step
		}
	})
}

// SetFetchCount moves the file cursor.
func (s *State) SetFetchCount(n int) {
	s.update(func(v *Snapshot) {
		if n > 0 {
			v.FetchCount = n
		}
	})
}

// MoreFiles grows the file cursor by one page. It is a no-op once the
// backend reported there is nothing more.
func (s *State) MoreFiles() bool {
	grew := false
	s.update(func(v *Snapshot) {
		if v.HasMore != nil && !*v.HasMore {
			return
		}
		v.FetchCount += s.defaultFetch
		grew = true
	})
	return grew
}

// SetHasMore records the backend's has_more flag.
func (s *State) SetHasMore(more bool) {
	s.update(func(v *Snapshot) { v.HasMore = &more })
}

// SetLoading marks a search in flight.
func (s *State) SetLoading(on bool) {
	s.update(func(v *Snapshot) { v.Loading = on })
}
