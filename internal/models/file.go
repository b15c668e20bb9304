// Package models defines the domain types for folio.
package models

import (
	"encoding/json"
	"fmt"
)

// Highlight is an annotation or extracted quote belonging to a file.
type Highlight struct {
	Page            int       `json:"page"`
	HighlightedText string    `json:"highlighted_text"`
	AnnotationText  *string   `json:"annotation_text,omitempty"`
	Date            string    `json:"date,omitempty"`
	HighlightType   string    `json:"highlight_type,omitempty"`
	Color           []float64 `json:"color,omitempty"`
}

// IsAnnotation reports whether the highlight carries a non-empty annotation.
func (h Highlight) IsAnnotation() bool {
	return h.AnnotationText != nil && *h.AnnotationText != ""
}

// Annotation returns the annotation text or "".
func (h Highlight) Annotation() string {
	if h.AnnotationText == nil {
		return ""
	}
	return *h.AnnotationText
}

// ListMeta is list-membership metadata carried by list items. Display
// records built from a search response may carry it too.
type ListMeta struct {
	DateAdded   string `json:"dateAdded,omitempty"`
	IsPinned    bool   `json:"is_pinned,omitempty"`
	PinnedOrder *int   `json:"pinned_order,omitempty"`
}

// FileRecord is a reference to an indexed file.
//
// Highlights distinguishes "not fetched" (nil) from "fetched, none found"
// (empty, non-nil); only the former lets an enriched record be replaced.
type FileRecord struct {
	ID           string      `json:"id,omitempty"`
	FileName     string      `json:"file_name"`
	FullPath     string      `json:"full_path"`
	Title        string      `json:"title"`
	Extension    string      `json:"extension,omitempty"`
	Status       string      `json:"status,omitempty"`
	ModifiedDate string      `json:"modified_date,omitempty"`
	CreatedDate  string      `json:"created_date,omitempty"`
	Size         int64       `json:"size,omitempty"`
	IsLocked     bool        `json:"is_locked,omitempty"`
	PDFCreator   string      `json:"pdf_creator,omitempty"`
	Highlights   []Highlight `json:"highlights,omitempty"`

	ListMeta

	// IsFromLists marks a display record backfilled from list storage.
	IsFromLists bool `json:"isFromLists,omitempty"`

	// Extra holds backend attributes folio does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// ListItem is a FileRecord held in a list; its ListMeta is authoritative.
type ListItem = FileRecord

// List is a named ordered collection of list items.
type List struct {
	Name  string     `json:"name"`
	Items []ListItem `json:"items"`
}

// HasHighlights reports whether the record was fetched with enrichment.
func (f FileRecord) HasHighlights() bool {
	return f.Highlights != nil
}

// Field returns the string value of a named wire field, used for
// field-keyed matching (full_path, id, file_name, ...).
func (f FileRecord) Field(name string) (string, bool) {
	switch name {
	case "full_path":
		return f.FullPath, f.FullPath != ""
	case "file_name":
		return f.FileName, f.FileName != ""
	case "id":
		return f.ID, f.ID != ""
	case "title":
		return f.Title, f.Title != ""
	case "pdf_creator":
		return f.PDFCreator, f.PDFCreator != ""
	case "extension":
		return f.Extension, f.Extension != ""
	case "created_date":
		return f.CreatedDate, f.CreatedDate != ""
	case "modified_date":
		return f.ModifiedDate, f.ModifiedDate != ""
	case "status":
		return f.Status, f.Status != ""
	}
	raw, ok := f.Extra[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	return string(raw), len(raw) > 0 && string(raw) != "null"
}

// SameBy reports whether f and other share a non-empty value of field.
func (f FileRecord) SameBy(field string, other FileRecord) bool {
	a, ok := f.Field(field)
	if !ok {
		return false
	}
	b, ok := other.Field(field)
	return ok && a == b
}

// Clone returns a deep copy so callers can mutate without aliasing state.
func (f FileRecord) Clone() FileRecord {
	out := f
	if f.Highlights != nil {
		out.Highlights = make([]Highlight, len(f.Highlights))
		copy(out.Highlights, f.Highlights)
	}
	if f.PinnedOrder != nil {
		v := *f.PinnedOrder
		out.PinnedOrder = &v
	}
	if f.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(f.Extra))
		for k, v := range f.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

type fileRecordWire FileRecord

// MarshalJSON flattens Extra into the object and keeps an empty
// highlights slice on the wire.
func (f FileRecord) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(fileRecordWire(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 && (f.Highlights == nil || len(f.Highlights) > 0) {
		return base, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, known := obj[k]; !known && !isKnownField(k) {
			obj[k] = v
		}
	}
	if f.Highlights != nil && len(f.Highlights) == 0 {
		obj["highlights"] = json.RawMessage("[]")
	}
	return json.Marshal(obj)
}

// UnmarshalJSON decodes known fields and keeps unknown ones in Extra.
func (f *FileRecord) UnmarshalJSON(data []byte) error {
	var w fileRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("models: decode file record: %w", err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("models: decode file record: %w", err)
	}
	for k, v := range obj {
		if isKnownField(k) {
			continue
		}
		if w.Extra == nil {
			w.Extra = make(map[string]json.RawMessage)
		}
		w.Extra[k] = v
	}
	*f = FileRecord(w)
	return nil
}

var knownFields = map[string]struct{}{
	"id": {}, "file_name": {}, "full_path": {}, "title": {}, "extension": {},
	"status": {}, "modified_date": {}, "created_date": {}, "size": {},
	"is_locked": {}, "pdf_creator": {}, "highlights": {}, "dateAdded": {},
	"is_pinned": {}, "pinned_order": {}, "isFromLists": {},
}

func isKnownField(k string) bool {
	_, ok := knownFields[k]
	return ok
}
