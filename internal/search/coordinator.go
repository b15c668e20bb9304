// Package search turns view and settings state into backend searches and
// applies the responses to the files slice.
//
// Every search takes the next value of a counter when it is issued. Its
// response (or error) is applied only if no newer search was issued in
// the meantime; superseded responses are dropped. Nothing is cancelled on
// the wire.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/query"
	"github.com/starford/folio/internal/view"
)

// Backend runs file searches.
type Backend interface {
	Search(ctx context.Context, req everything.Request) (everything.Response, error)
}

// Fragments supplies the settings-derived query terms.
type Fragments interface {
	TypesFragment() string
	ExclusionFragment() string
}

// Lists is the read side of the lists slice a search needs.
type Lists interface {
	Loaded() bool
	Get(name string) (models.List, bool)
	FindByFullPath(fullPath string) (models.ListItem, bool)
}

// Files is the write side of the files slice.
type Files interface {
	SetFiles(files []models.FileRecord)
	ReplaceFileByField(file models.FileRecord, field string) bool
}

// View is the part of the view slice the coordinator reads and updates.
type View interface {
	Snapshot() view.Snapshot
	DefaultFetchCount() int
	SetHasMore(more bool)
	SetLoading(on bool)
}

// Coordinator issues searches and applies their responses.
type Coordinator struct {
	backend   Backend
	fragments Fragments
	lists     Lists
	files     Files
	view      View
	logger    *slog.Logger
	debounce  time.Duration
	onError   func(error)

	seq     atomic.Uint64
	applyMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
	closed  bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithDebounce sets the delay between the last Trigger and the search.
func WithDebounce(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithOnError registers a callback for errors of the latest search.
func WithOnError(fn func(error)) Option {
	return func(c *Coordinator) { c.onError = fn }
}

// New creates a coordinator.
func New(backend Backend, fragments Fragments, lists Lists, files Files, v View, logger *slog.Logger, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		backend:   backend,
		fragments: fragments,
		lists:     lists,
		files:     files,
		view:      v,
		logger:    logger.With(slog.String("component", "search")),
		debounce:  100 * time.Millisecond,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger schedules a search after the debounce delay. Calls inside the
// delay restart it.
func (c *Coordinator) Trigger() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.closed {
		return
	}
	if c.timer != nil && c.timer.Stop() {
		c.wg.Done()
	}
	c.wg.Add(1)
	c.timer = time.AfterFunc(c.debounce, func() {
		defer c.wg.Done()
		if err := c.Run(c.ctx); err != nil {
			c.logger.Warn("search: debounced run failed", slog.String("error", err.Error()))
		}
	})
}

// Close stops pending triggers and waits for debounced runs.
func (c *Coordinator) Close() {
	c.timerMu.Lock()
	c.closed = true
	if c.timer != nil && c.timer.Stop() {
		c.wg.Done()
	}
	c.timerMu.Unlock()
	c.cancel()
	c.wg.Wait()
}

// Latest returns the sequence number of the last issued search.
func (c *Coordinator) Latest() uint64 { return c.seq.Load() }

// Request builds the backend request for the current state. ok is false
// when the active list is empty and no search should be sent.
func (c *Coordinator) Request() (everything.Request, bool) {
	snap := c.view.Snapshot()
	var include string
	if snap.ActiveProject != "" {
		l, _ := c.lists.Get(snap.ActiveProject)
		if len(l.Items) == 0 {
			return everything.Request{}, false
		}
		paths := make([]string, len(l.Items))
		for i, it := range l.Items {
			paths[i] = it.FullPath
		}
		include = query.Include(paths)
	}
	return everything.Request{
		Query: query.Build(query.Parts{
			Text:      snap.SearchText,
			Types:     c.fragments.TypesFragment(),
			Exclusion: c.fragments.ExclusionFragment(),
			Include:   include,
		}),
		IncludeHighlights: snap.IncludeHighlights(c.view.DefaultFetchCount()),
		Count:             snap.FetchCount,
	}, true
}

// Run issues a search now and applies the response if it is still the
// latest when it arrives. It returns the backend error only for the latest
// search. Before the lists are loaded it does nothing.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.lists.Loaded() {
		return nil
	}
	seq := c.seq.Add(1)
	req, ok := c.Request()
	if !ok {
		c.apply(seq, func() {
			c.view.SetLoading(false)
			c.files.SetFiles([]models.FileRecord{})
			metrics.SearchRequests.WithLabelValues(metrics.OutcomeSkipped).Inc()
		})
		return nil
	}

	c.view.SetLoading(true)
	resp, err := c.backend.Search(ctx, req)

	var result error
	applied := c.apply(seq, func() {
		c.view.SetLoading(false)
		if err != nil {
			metrics.SearchRequests.WithLabelValues(metrics.OutcomeFailed).Inc()
			result = apperr.New(apperr.KindSearch, "search failed", err)
			return
		}
		c.files.SetFiles(Backfill(resp.Items, c.lists.FindByFullPath))
		c.view.SetHasMore(resp.HasMore)
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeApplied).Inc()
	})
	if !applied {
		metrics.SearchRequests.WithLabelValues(metrics.OutcomeStale).Inc()
		c.logger.Debug("search: stale response dropped",
			slog.Uint64("seq", seq),
			slog.Uint64("latest", c.seq.Load()))
		return nil
	}
	if result != nil {
		c.logger.Error("search: failed", slog.String("query", req.Query), slog.String("error", err.Error()))
		if c.onError != nil {
			c.onError(result)
		}
	}
	return result
}

// apply runs fn if seq is still the latest issued search.
func (c *Coordinator) apply(seq uint64, fn func()) bool {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if seq != c.seq.Load() {
		return false
	}
	fn()
	return true
}

// RefreshFile re-searches one file by name with highlights and replaces
// it in files and lists by full_path. It reports whether a record came
// back.
func (c *Coordinator) RefreshFile(ctx context.Context, file models.FileRecord) (models.FileRecord, bool, error) {
	found, _, err := c.FindByName(ctx, file.FileName)
	if err != nil || found == nil {
		return models.FileRecord{}, false, err
	}
	c.files.ReplaceFileByField(*found, "full_path")
	return *found, true, nil
}

// FindByName resolves a bare file name to the first indexed record,
// restricted by the type and exclusion settings. more reports that other
// records share the name.
func (c *Coordinator) FindByName(ctx context.Context, fileName string) (found *models.FileRecord, more bool, err error) {
	if fileName == "" {
		return nil, false, apperr.New(apperr.KindInvalid, "file name is required", apperr.ErrInvalid)
	}
	resp, err := c.backend.Search(ctx, everything.Request{
		Query: query.Build(query.Parts{
			Types:     c.fragments.TypesFragment(),
			Exclusion: c.fragments.ExclusionFragment(),
			Include:   query.Include([]string{fileName}),
		}),
		IncludeHighlights: true,
		Count:             1,
	})
	if err != nil {
		return nil, false, apperr.New(apperr.KindSearch, fmt.Sprintf("search for %q failed", fileName), err)
	}
	if len(resp.Items) == 0 {
		return nil, false, nil
	}
	f := resp.Items[0]
	return &f, resp.HasMore, nil
}

// Backfill substitutes list copies for results that came back without
// highlights, and carries list metadata onto results that have them.
func Backfill(items []models.FileRecord, lookup func(fullPath string) (models.ListItem, bool)) []models.FileRecord {
	out := make([]models.FileRecord, len(items))
	for i, f := range items {
		li, ok := lookup(f.FullPath)
		switch {
		case !ok:
			out[i] = f
		case !f.HasHighlights():
			li.IsFromLists = true
			out[i] = li
		default:
			if f.DateAdded == "" {
				f.DateAdded = li.DateAdded
			}
			if !f.IsPinned && f.PinnedOrder == nil {
				f.IsPinned = li.IsPinned
				f.PinnedOrder = li.PinnedOrder
			}
			out[i] = f
		}
	}
	return out
}
