// Package highlights derives the highlight feed from the current files:
// flatten, sort newest first, filter, paginate and group by day and book.
// Everything here is pure; callers recompute on every read.
package highlights

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

// Untitled is the book header used for files without a title.
const Untitled = "Без названия"

// Processed is one highlight lifted out of its file.
type Processed struct {
	Page            int       `json:"page"`
	HighlightedText string    `json:"highlighted_text"`
	AnnotationText  *string   `json:"annotation_text,omitempty"`
	Date            string    `json:"date,omitempty"`
	Timestamp       int64     `json:"timestamp"`
	FileName        string    `json:"fileName"`
	FullPath        string    `json:"full_path"`
	Color           []float64 `json:"color,omitempty"`
}

func (p Processed) annotation() string {
	if p.AnnotationText == nil {
		return ""
	}
	return *p.AnnotationText
}

// Filter narrows the flattened feed. All conditions must hold.
type Filter struct {
	SelectedBook  string   `json:"selectedBook,omitempty"`
	HiddenBooks   []string `json:"hiddenBooks,omitempty"`
	SearchText    string   `json:"searchText,omitempty"`
	OnlyAnnotated bool     `json:"onlyAnnotated,omitempty"`
}

// NodeType tags a grouped feed entry.
type NodeType string

const (
	NodeDateHeader NodeType = "date-header"
	NodeFileHeader NodeType = "file-header"
	NodeHighlight  NodeType = "highlight"
)

// Node is one renderable entry of the grouped feed.
type Node struct {
	Type     NodeType   `json:"type"`
	Date     string     `json:"date,omitempty"`
	FileName string     `json:"fileName,omitempty"`
	Data     *Processed `json:"data,omitempty"`
}

// Feed is the grouped visible prefix plus the size of the filtered set.
type Feed struct {
	Items         []Node `json:"items"`
	Visible       int    `json:"visible"`
	TotalFiltered int    `json:"total_filtered"`
}

var pdfDateRe = regexp.MustCompile(`D:(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})`)

// ParsePDFDate converts a `D:YYYYMMDDHHmmss...` date into Unix
// milliseconds in loc. Empty or unparsable dates yield 0.
func ParsePDFDate(s string, loc *time.Location) int64 {
	if s == "" {
		return 0
	}
	m := pdfDateRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var n [6]int
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc).UnixMilli()
}

// Flatten lifts every highlight out of files and sorts them newest first.
// Ties keep file order.
func Flatten(files []models.FileRecord, loc *time.Location) []Processed {
	var out []Processed
	for _, f := range files {
		for _, h := range f.Highlights {
			var ann *string
			if h.AnnotationText != nil {
				v := *h.AnnotationText
				ann = &v
			}
			out = append(out, Processed{
				Page:            h.Page,
				HighlightedText: h.HighlightedText,
				AnnotationText:  ann,
				Date:            h.Date,
				Timestamp:       ParsePDFDate(h.Date, loc),
				FileName:        f.Title,
				FullPath:        f.FullPath,
				Color:           slices.Clone(h.Color),
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Processed) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	return out
}

// Apply keeps the highlights matching every condition of f.
func Apply(all []Processed, f Filter) []Processed {
	needle := strings.ToLower(f.SearchText)
	out := make([]Processed, 0, len(all))
	for _, h := range all {
		if f.OnlyAnnotated && h.annotation() == "" {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(h.HighlightedText), needle) &&
			!strings.Contains(strings.ToLower(h.annotation()), needle) {
			continue
		}
		if f.SelectedBook != "" && h.FileName != f.SelectedBook {
			continue
		}
		if slices.Contains(f.HiddenBooks, h.FileName) {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Group turns the visible highlights into date-header, file-header and
// highlight nodes. Day groups and book groups keep first-seen order. With
// a selected book the file headers are left out.
func Group(visible []Processed, bookSelected bool, loc *time.Location) []Node {
	type dayGroup struct {
		label string
		books map[string][]Processed
		order []string
	}
	days := make(map[string]*dayGroup)
	var dayOrder []string

	for _, h := range visible {
		key := DateKey(h.Timestamp, loc)
		book := h.FileName
		if book == "" {
			book = Untitled
		}
		d, ok := days[key]
		if !ok {
			d = &dayGroup{label: DateLabel(h.Timestamp, loc), books: make(map[string][]Processed)}
			days[key] = d
			dayOrder = append(dayOrder, key)
		}
		if _, ok := d.books[book]; !ok {
			d.order = append(d.order, book)
		}
		d.books[book] = append(d.books[book], h)
	}

	out := make([]Node, 0, len(visible)+2*len(dayOrder))
	for _, key := range dayOrder {
		d := days[key]
		out = append(out, Node{Type: NodeDateHeader, Date: d.label})
		for _, book := range d.order {
			if !bookSelected {
				out = append(out, Node{Type: NodeFileHeader, FileName: book})
			}
			for _, h := range d.books[book] {
				out = append(out, Node{Type: NodeHighlight, Data: &h})
			}
		}
	}
	return out
}

// Build runs the whole pipeline over files.
func Build(files []models.FileRecord, f Filter, visibleCount int, loc *time.Location) Feed {
	filtered := Apply(Flatten(files, loc), f)
	visible := filtered[:min(max(visibleCount, 0), len(filtered))]
	return Feed{
		Items:         Group(visible, f.SelectedBook != "", loc),
		Visible:       len(visible),
		TotalFiltered: len(filtered),
	}
}

var monthsShort = [12]string{
	"янв.", "февр.", "мар.", "апр.", "мая", "июн.",
	"июл.", "авг.", "сент.", "окт.", "нояб.", "дек.",
}

// DateKey is the calendar-day key `DD.MM.YYYY` of a Unix-ms timestamp.
func DateKey(ts int64, loc *time.Location) string {
	return at(ts, loc).Format("02.01.2006")
}

// DateLabel is the display label of the day, e.g. `15 окт. 2024 г.`.
func DateLabel(ts int64, loc *time.Location) string {
	t := at(ts, loc)
	return strconv.Itoa(t.Day()) + " " + monthsShort[t.Month()-1] + " " + strconv.Itoa(t.Year()) + " г."
}

func at(ts int64, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ts).In(loc)
}
