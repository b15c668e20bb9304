package library

import (
	"math"
	"slices"
	"time"

	"github.com/starford/folio/internal/highlights"
	"github.com/starford/folio/internal/lists"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/view"
)

// Row is one line of the file table.
type Row struct {
	File models.FileRecord `json:"file"`
	// Missing marks a list item the latest search did not return.
	Missing bool `json:"missing"`
	// InList marks a search result that some list holds.
	InList bool `json:"in_list"`
	// Hidden marks a book hidden from the highlight feed.
	Hidden bool `json:"hidden"`
}

// Table is the file table projection.
type Table struct {
	Project string         `json:"project,omitempty"`
	Loading bool           `json:"loading"`
	HasMore *bool          `json:"has_more,omitempty"`
	Rows    []Row          `json:"rows"`
	Sort    lists.SortSpec `json:"sort"`
}

// DisplayFiles builds the file table. With an active list the rows are the
// list's items carrying the highlights of the live results, pinned first
// and sorted by order (default newest modified). Without one the rows are
// the results in backend order unless order names a column.
func (s *Service) DisplayFiles(order lists.SortSpec) Table {
	snap := s.view.Snapshot()
	results := s.files.Files()
	byPath := make(map[string]models.FileRecord, len(results))
	for _, f := range results {
		byPath[f.FullPath] = f
	}

	t := Table{Project: snap.ActiveProject, Loading: snap.Loading, HasMore: snap.HasMore, Sort: order}
	var records []models.FileRecord
	if snap.ActiveProject != "" {
		l, _ := s.lists.Get(snap.ActiveProject)
		records = MergeHighlights(l.Items, byPath)
		if t.Sort.Column == "" {
			t.Sort = lists.DefaultSort
		}
		records = lists.SortForDisplay(records, t.Sort, true)
	} else {
		records = results
		if order.Column != "" {
			records = lists.SortForDisplay(records, order, false)
		}
	}

	t.Rows = make([]Row, len(records))
	for i, f := range records {
		r := Row{File: f, Hidden: slices.Contains(snap.HiddenBooks, f.Title)}
		if snap.ActiveProject != "" {
			_, live := byPath[f.FullPath]
			r.Missing = !snap.Loading && !live
		} else {
			_, r.InList = s.lists.FindByFullPath(f.FullPath)
		}
		t.Rows[i] = r
	}
	return t
}

// MergeHighlights returns the list items with highlights taken from the
// live result at the same path, when there is one.
func MergeHighlights(items []models.ListItem, live map[string]models.FileRecord) []models.FileRecord {
	out := make([]models.FileRecord, len(items))
	for i, it := range items {
		out[i] = it.Clone()
		if f, ok := live[it.FullPath]; ok {
			out[i].Highlights = f.Clone().Highlights
		}
	}
	return out
}

// Highlights returns the grouped visible highlight feed.
func (s *Service) Highlights() highlights.Feed {
	snap := s.view.Snapshot()
	return highlights.Build(s.files.Files(), feedFilter(snap), snap.VisibleHighlightsCount, s.loc)
}

// ExportHighlights renders every highlight passing the current filters,
// not only the visible page, as Markdown.
func (s *Service) ExportHighlights(title string, now time.Time) ([]byte, error) {
	snap := s.view.Snapshot()
	feed := highlights.Build(s.files.Files(), feedFilter(snap), math.MaxInt, s.loc)
	if title == "" {
		title = "Highlights"
		if snap.SelectedBook != "" {
			title = snap.SelectedBook
		}
	}
	return highlights.ExportMarkdown(feed, title, now)
}

// MoreHighlights pages the feed forward.
func (s *Service) MoreHighlights() highlights.Feed {
	snap := s.view.Snapshot()
	total := len(highlights.Apply(highlights.Flatten(s.files.Files(), s.loc), feedFilter(snap)))
	s.view.MoreHighlights(total)
	return s.Highlights()
}

func feedFilter(snap view.Snapshot) highlights.Filter {
	return highlights.Filter{
		SelectedBook:  snap.SelectedBook,
		HiddenBooks:   snap.HiddenBooks,
		SearchText:    snap.HighlightsSearchText,
		OnlyAnnotated: snap.ShowOnlyAnnotated,
	}
}
