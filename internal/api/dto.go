package api

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/lists"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/view"
)

var errNoPath = errors.New("full_path is required")

// hasPath requires a file record to carry its full path.
var hasPath = validation.By(func(v any) error {
	if f, ok := v.(models.FileRecord); ok && f.FullPath != "" {
		return nil
	}
	return errNoPath
})

// CreateListRequest is the request body for creating or upserting a list.
type CreateListRequest struct {
	Name  string            `json:"name" example:"Thesis"`
	Items []models.ListItem `json:"items"`
}

func (r CreateListRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// SetListRequest replaces the items of a list.
type SetListRequest struct {
	Items []models.ListItem `json:"items"`
}

// RenameListRequest is the request body for renaming a list.
type RenameListRequest struct {
	Name string `json:"name" example:"Thesis 2"`
}

func (r RenameListRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required),
	)
}

// FileRequest carries one file record.
type FileRequest struct {
	File models.FileRecord `json:"file"`
}

func (r FileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.File, hasPath),
	)
}

// DropRequest names a file dragged onto a list from outside.
type DropRequest struct {
	FileName string `json:"file_name" example:"book.pdf"`
}

func (r DropRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FileName, validation.Required),
	)
}

// RenameFileRequest renames a file on disk. Name excludes the extension.
type RenameFileRequest struct {
	File models.FileRecord `json:"file"`
	Name string            `json:"name" example:"Mechanics"`
}

func (r RenameFileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.File, hasPath),
		validation.Field(&r.Name, validation.Required),
	)
}

// OpenRequest opens a file, optionally at a page.
type OpenRequest struct {
	FullPath string `json:"full_path" example:"C:\\lib\\book.pdf"`
	Page     int    `json:"page,omitempty" example:"12"`
}

func (r OpenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FullPath, validation.Required),
		validation.Field(&r.Page, validation.Min(0)),
	)
}

// ExclusionRequest adds an exclusion rule by file or by path.
type ExclusionRequest struct {
	FileName string `json:"file_name,omitempty" example:"draft.pdf"`
	Path     string `json:"path,omitempty" example:"C:\\lib\\old"`
}

func (r ExclusionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FileName, validation.Required.When(r.Path == "").Error("file_name or path is required")),
		validation.Field(&r.Path, validation.Empty.When(r.FileName != "").Error("only one of file_name and path")),
	)
}

// ViewPatch updates the view. Absent fields are left alone.
type ViewPatch struct {
	ActiveProject        *string    `json:"activeProject,omitempty"`
	ActiveMode           *view.Mode `json:"activeMode,omitempty"`
	SearchText           *string    `json:"searchText,omitempty"`
	FetchCount           *int       `json:"fetchCount,omitempty"`
	SelectedBook         *string    `json:"selectedBook,omitempty"`
	HideBook             *string    `json:"hideBook,omitempty"`
	HighlightsSearchText *string    `json:"highlightsSearchText,omitempty"`
	ShowOnlyAnnotated    *bool      `json:"showOnlyAnnotated,omitempty"`
}

func (p ViewPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ActiveMode, validation.In(view.ModeHighlights, view.ModeNoHighlights)),
		validation.Field(&p.FetchCount, validation.Min(1)),
	)
}

// AddedResponse reports whether a mutation changed anything.
type AddedResponse struct {
	Added bool `json:"added"`
}

// FolderResponse names an excluded folder.
type FolderResponse struct {
	Path string `json:"path"`
}

// OpenResponse names the program that opened a file.
type OpenResponse struct {
	Program string `json:"program"`
}

// MoreFilesResponse reports whether another page was requested.
type MoreFilesResponse struct {
	Requested bool          `json:"requested"`
	View      view.Snapshot `json:"view"`
}

// ListsResponse wraps every list in display order.
type ListsResponse struct {
	Lists []models.List `json:"lists"`
}

func parseSort(column, desc string) lists.SortSpec {
	return lists.SortSpec{Column: column, Desc: desc == "true" || desc == "1"}
}
