// Package library is the application root. It owns one instance of every
// state slice, wires the change notifications between them and implements
// the flows that span several slices.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/events"
	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/fileops"
	"github.com/starford/folio/internal/files"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/lists"
	"github.com/starford/folio/internal/metrics"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/persist"
	"github.com/starford/folio/internal/reconcile"
	"github.com/starford/folio/internal/search"
	"github.com/starford/folio/internal/settings"
	"github.com/starford/folio/internal/view"
)

// Backend is the search backend used for result sets and lookups.
type Backend interface {
	Search(ctx context.Context, req everything.Request) (everything.Response, error)
	SearchMeta(ctx context.Context, query string) ([]models.FileRecord, error)
}

// Config holds the tunables of a Service. Zero values pick the defaults.
type Config struct {
	WriteTimeout   time.Duration
	Debounce       time.Duration
	FetchCount     int
	HighlightsPage int
	// ScanLimit caps the pdf_creator scan used to find moved files.
	ScanLimit int
	// Location is used for highlight date groups. Defaults to time.Local.
	Location *time.Location
	// Reader is the program used to open PDFs at a page when settings do
	// not name one.
	Reader string
}

// Service composes the slices. It is safe for concurrent use.
type Service struct {
	settings *settings.State
	lists    *lists.State
	files    *files.State
	view     *view.State
	search   *search.Coordinator
	finder   *reconcile.Finder
	ops      fileops.Ops
	queue    *persist.Queue
	broker   *events.Broker
	logger   *slog.Logger
	loc      *time.Location
	reader   string

	fragMu    sync.Mutex
	fragments string
}

// New builds the service. broker may be nil when no one listens for
// change events.
func New(settingsStore, listsStore kvstore.Store, backend Backend, ops fileops.Ops, broker *events.Broker, logger *slog.Logger, cfg Config) *Service {
	s := &Service{
		ops:    ops,
		broker: broker,
		logger: logger.With(slog.String("component", "library")),
		loc:    cfg.Location,
		reader: cfg.Reader,
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	s.queue = persist.New(logger, cfg.WriteTimeout)
	s.queue.OnFailure(s.persistFailed)

	s.settings = settings.New(settingsStore, s.queue, logger, settings.WithOnChange(s.settingsChanged))
	s.lists = lists.New(listsStore, s.queue, logger, lists.WithOnChange(func() { s.changed(events.ListsUpdated) }))
	s.files = files.New(s.lists, logger, files.WithOnChange(func() { s.changed(events.FilesUpdated) }))
	s.view = view.New(
		view.WithFetchCount(cfg.FetchCount),
		view.WithHighlightsPage(cfg.HighlightsPage),
		view.WithOnChange(s.viewChanged),
	)
	s.search = search.New(backend, s.settings, s.lists, s.files, s.view, logger,
		search.WithDebounce(cfg.Debounce),
		search.WithOnError(s.searchFailed))
	s.finder = reconcile.New(backend, s.settings, logger, reconcile.WithScanLimit(cfg.ScanLimit))
	return s
}

// Start loads settings and lists and issues the first search. Load
// failures are logged and the slices start from their defaults.
func (s *Service) Start(ctx context.Context) error {
	if err := s.settings.Load(ctx); err != nil {
		s.logger.Warn("library: settings not loaded", slog.String("error", err.Error()))
	}
	if err := s.lists.Load(ctx); err != nil {
		s.logger.Warn("library: lists not loaded", slog.String("error", err.Error()))
	}
	s.search.Trigger()
	return nil
}

// Close stops pending searches and drains queued writes.
func (s *Service) Close() {
	s.search.Close()
	s.queue.Close()
}

// Flush waits for every queued write.
func (s *Service) Flush(ctx context.Context) error {
	return s.queue.Flush(ctx)
}

func (s *Service) Settings() *settings.State { return s.settings }
func (s *Service) Lists() *lists.State { return s.lists }
func (s *Service) Files() *files.State { return s.files }
func (s *Service) View() *view.State { return s.view }
func (s *Service) Search() *search.Coordinator { return s.search }

// Reload re-reads a store after an external edit.
func (s *Service) Reload(ctx context.Context, store string) error {
	var err error
	switch store {
	case kvstore.ListsStore:
		err = s.lists.Load(ctx)
	case kvstore.SettingsStore:
		err = s.settings.Load(ctx)
	default:
		return fmt.Errorf("library: reload: unknown store %q", store)
	}
	metrics.StoreReloads.WithLabelValues(store).Inc()
	s.publish(events.StoreReloaded, map[string]string{"store": store})
	if err != nil {
		return fmt.Errorf("library: reload %s: %w", store, err)
	}
	return nil
}

func (s *Service) settingsChanged(models.Settings) {
	s.changed(events.SettingsUpdated)

	frag := s.settings.TypesFragment() + "\x00" + s.settings.ExclusionFragment()
	s.fragMu.Lock()
	moved := frag != s.fragments
	s.fragments = frag
	s.fragMu.Unlock()
	if moved && s.search != nil {
		s.search.Trigger()
	}
}

func (s *Service) viewChanged(prev, next view.Snapshot) {
	s.changed(events.ViewUpdated)
	if prev.SearchKey() != next.SearchKey() && s.search != nil {
		s.search.Trigger()
	}
}

func (s *Service) searchFailed(err error) {
	s.publish(events.SearchFailed, map[string]string{"error": err.Error()})
}

func (s *Service) persistFailed(f persist.Failure) {
	store, _, _ := strings.Cut(f.Name, ".")
	metrics.PersistFailures.WithLabelValues(store).Inc()
	s.publish(events.PersistFailed, map[string]string{
		"id":    f.ID,
		"task":  f.Name,
		"error": f.Err.Error(),
	})
}

func (s *Service) changed(typ string) {
	if s.broker != nil {
		s.broker.Changed(typ)
	}
}

func (s *Service) publish(typ string, data any) {
	if s.broker != nil {
		s.broker.Publish(events.Event{Type: typ, Data: data})
	}
}
