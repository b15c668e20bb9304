// Package reconcile locates a file record again after it was renamed or
// moved outside folio.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/query"
)

// Backend is the search backend surface the finder needs.
type Backend interface {
	Search(ctx context.Context, req everything.Request) (everything.Response, error)
	SearchMeta(ctx context.Context, query string) ([]models.FileRecord, error)
}

// Fragments supplies the settings-derived query terms.
type Fragments interface {
	TypesFragment() string
	ExclusionFragment() string
}

// Stage names a lookup step.
type Stage string

const (
	StageID        Stage = "id"
	StageDate      Stage = "created_date"
	StageAlternate Stage = "alternate"
)

// Result is a successful lookup.
type Result struct {
	File  models.FileRecord `json:"file"`
	Stage Stage             `json:"stage"`
}

// Finder runs the lookup stages in order: record number, creation date,
// then a pdf_creator match over the whole filtered library. The first
// stage with exactly one hit wins; a stage with several hits aborts.
type Finder struct {
	backend   Backend
	fragments Fragments
	logger    *slog.Logger
	scanLimit int
}

// DefaultScanLimit caps the result count of the pdf_creator scan.
const DefaultScanLimit = 100000

// Option configures a Finder.
type Option func(*Finder)

// WithScanLimit sets how many records the pdf_creator scan asks for.
// Values below 1 keep the default.
func WithScanLimit(n int) Option {
	return func(f *Finder) {
		if n > 0 {
			f.scanLimit = n
		}
	}
}

// New creates a finder.
func New(backend Backend, fragments Fragments, logger *slog.Logger, opts ...Option) *Finder {
	f := &Finder{
		backend:   backend,
		fragments: fragments,
		logger:    logger.With(slog.String("component", "reconcile")),
		scanLimit: DefaultScanLimit,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Find locates file. Errors carry kind ambiguous_by_id, ambiguous_by_date,
// ambiguous_by_alternate, not_found or search.
func (f *Finder) Find(ctx context.Context, file models.FileRecord) (Result, error) {
	if file.ID != "" {
		hits, err := f.backend.SearchMeta(ctx, query.ByID(file.ID))
		if err != nil {
			return Result{}, searchErr(StageID, err)
		}
		if r, done, err := decide(StageID, hits, apperr.KindAmbiguousByID); done {
			return r, err
		}
	}

	if q, ok := query.ByCreatedDate(file.CreatedDate); ok {
		hits, err := f.backend.SearchMeta(ctx, q)
		if err != nil {
			return Result{}, searchErr(StageDate, err)
		}
		if r, done, err := decide(StageDate, hits, apperr.KindAmbiguousByDate); done {
			return r, err
		}
	} else {
		f.logger.Debug("reconcile: created date unusable, skipping stage",
			slog.String("file", file.FullPath),
			slog.String("created_date", file.CreatedDate))
	}

	if _, ok := file.Field("pdf_creator"); ok {
		resp, err := f.backend.Search(ctx, everything.Request{
			Query: query.Build(query.Parts{
				Types:     f.fragments.TypesFragment(),
				Exclusion: f.fragments.ExclusionFragment(),
			}),
			Count: f.scanLimit,
		})
		if err != nil {
			return Result{}, searchErr(StageAlternate, err)
		}
		var hits []models.FileRecord
		for _, it := range resp.Items {
			if it.SameBy("pdf_creator", file) {
				hits = append(hits, it)
			}
		}
		if r, done, err := decide(StageAlternate, hits, apperr.KindAmbiguousByAlternate); done {
			return r, err
		}
	}

	return Result{}, apperr.New(apperr.KindNotFound,
		fmt.Sprintf("%s was not found by any lookup", file.FileName), apperr.ErrNotFound)
}

// decide reports whether hits settle the lookup.
func decide(stage Stage, hits []models.FileRecord, ambiguous apperr.Kind) (Result, bool, error) {
	switch len(hits) {
	case 0:
		return Result{}, false, nil
	case 1:
		return Result{File: hits[0], Stage: stage}, true, nil
	default:
		return Result{}, true, apperr.New(ambiguous,
			fmt.Sprintf("%d files match by %s", len(hits), stage), apperr.ErrAmbiguous)
	}
}

func searchErr(stage Stage, err error) error {
	return apperr.New(apperr.KindSearch, fmt.Sprintf("lookup by %s failed", stage), err)
}
