package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/fileops"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/reconcile"
)

// AddResult reports how a file was added to a list.
type AddResult struct {
	Added bool              `json:"added"`
	File  models.FileRecord `json:"file"`
	// Warning is set when the file went in without a creator tag.
	Warning string `json:"warning,omitempty"`
}

// AddFileToList tags the file with a creator id and appends it to list.
// A failed tag write leaves the list untouched. When tagging is not
// available the file is added as is.
func (s *Service) AddFileToList(ctx context.Context, list string, file models.FileRecord) (AddResult, error) {
	if strings.TrimSpace(list) == "" {
		return AddResult{}, apperr.New(apperr.KindInvalid, "list name is required", apperr.ErrInvalid)
	}
	tag, err := s.ops.SetMetadata(ctx, file.FullPath)
	switch {
	case errors.Is(err, apperr.ErrUnsupported):
	case err != nil:
		return AddResult{}, apperr.New(apperr.KindNative, "could not tag "+file.FileName, err)
	case tag == "":
		return AddResult{}, apperr.New(apperr.KindNative, "could not tag "+file.FileName, nil)
	default:
		file.PDFCreator = tag
	}
	return AddResult{Added: s.lists.AddToList(list, file), File: file}, nil
}

// DropOnList adds a file known only by name, as when it is dragged from
// the OS onto a list. The name resolves to the first indexed match. A file
// that cannot be tagged is still added under a placeholder tag.
func (s *Service) DropOnList(ctx context.Context, list, fileName string) (AddResult, error) {
	found, more, err := s.search.FindByName(ctx, fileName)
	if err != nil {
		return AddResult{}, err
	}
	if found == nil {
		return AddResult{}, apperr.New(apperr.KindNotFound, fileName+" is not indexed", apperr.ErrNotFound)
	}
	file := *found

	var res AddResult
	if more {
		res.Warning = "several indexed files are named " + fileName + "; added the first"
	}
	tag, err := s.ops.SetMetadata(ctx, file.FullPath)
	switch {
	case errors.Is(err, apperr.ErrUnsupported):
	case err != nil || tag == "":
		// Usually the file is open in a reader.
		file.PDFCreator = "error-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
		res.Warning = "added by name only: the file could not be tagged"
	default:
		file.PDFCreator = tag
	}
	res.Added = s.lists.AddToList(list, file)
	res.File = file
	return res, nil
}

// TagFile writes a creator tag into the file without touching any list.
func (s *Service) TagFile(ctx context.Context, fullPath string) (string, error) {
	tag, err := s.ops.SetMetadata(ctx, fullPath)
	if err != nil {
		if errors.Is(err, apperr.ErrUnsupported) {
			return "", err
		}
		return "", apperr.New(apperr.KindNative, "could not tag "+fullPath, err)
	}
	return tag, nil
}

// ExcludeFile hides the file name from future searches and drops it from
// the current results. Lists keep their copies.
func (s *Service) ExcludeFile(file models.FileRecord) bool {
	added := s.settings.AddExclusion(file)
	s.files.DropFile(file.FullPath)
	return added
}

// ExcludeFolder hides the file's directory from future searches and
// returns it.
func (s *Service) ExcludeFolder(file models.FileRecord) (string, error) {
	dir := fileops.ParentDir(file.FullPath)
	if dir == "" {
		return "", apperr.New(apperr.KindInvalid, file.FullPath+" has no directory", apperr.ErrInvalid)
	}
	s.settings.AddExclusionByPath(dir)
	return dir, nil
}

// DeleteFile removes the file from disk, the results and every list.
func (s *Service) DeleteFile(ctx context.Context, file models.FileRecord) error {
	if err := s.ops.Delete(ctx, file.FullPath); err != nil {
		return err
	}
	s.files.RemoveFile(file.FullPath)
	return nil
}

// RenameFile renames the file on disk to newBase plus its extension and
// updates the results and every list. Records carrying a backend id are
// matched by id, others by their old path.
func (s *Service) RenameFile(ctx context.Context, file models.FileRecord, newBase string) (models.FileRecord, error) {
	newBase = strings.TrimSpace(newBase)
	if newBase == "" {
		return models.FileRecord{}, apperr.New(apperr.KindInvalid, "new name is required", apperr.ErrInvalid)
	}
	ext := file.Extension
	if ext == "" {
		ext = strings.TrimPrefix(path.Ext(strings.ReplaceAll(file.FileName, `\`, "/")), ".")
	}
	newName := newBase
	if ext != "" {
		newName += "." + ext
	}

	newPath, err := s.ops.Rename(ctx, file.FullPath, newName)
	if err != nil {
		return models.FileRecord{}, err
	}
	updated := file.Clone()
	updated.FileName = newName
	updated.FullPath = newPath
	updated.Title = newBase
	s.replace(file, updated)
	s.logger.Info("library: file renamed",
		slog.String("from", file.FullPath), slog.String("to", newPath))
	return updated, nil
}

// FindFile locates a file that changed outside folio and replaces the
// stale record. Nothing changes when the lookup fails.
func (s *Service) FindFile(ctx context.Context, file models.FileRecord) (reconcile.Result, error) {
	res, err := s.finder.Find(ctx, file)
	if err != nil {
		return reconcile.Result{}, err
	}
	s.replace(file, res.File)
	return res, nil
}

func (s *Service) replace(old, updated models.FileRecord) {
	if old.ID != "" && old.SameBy("id", updated) {
		s.files.ReplaceFileByField(updated, "id")
		return
	}
	s.files.MoveFile(old.FullPath, updated)
}

// RefreshFile re-fetches one file with highlights.
func (s *Service) RefreshFile(ctx context.Context, file models.FileRecord) (models.FileRecord, error) {
	found, ok, err := s.search.RefreshFile(ctx, file)
	if err != nil {
		return models.FileRecord{}, err
	}
	if !ok {
		return models.FileRecord{}, apperr.New(apperr.KindNotFound, file.FileName+" is not indexed", apperr.ErrNotFound)
	}
	return found, nil
}

// OpenFile opens the file, at page when the configured reader supports it.
// It returns the program used.
func (s *Service) OpenFile(ctx context.Context, fullPath string, page int) (string, error) {
	program := s.settings.PDFReaderPath()
	if program == "" {
		program = s.reader
	}
	return s.ops.Open(ctx, fullPath, page, program)
}

// ShowInExplorer reveals the file in the desktop file manager.
func (s *Service) ShowInExplorer(ctx context.Context, fullPath string) error {
	return s.ops.ShowInExplorer(ctx, fullPath)
}

// RemoveList deletes the list. The view falls back to all files when the
// list was active.
func (s *Service) RemoveList(name string) bool {
	if !s.lists.RemoveList(name) {
		return false
	}
	if s.view.Snapshot().ActiveProject == name {
		s.view.SetActiveProject("")
	}
	return true
}

// RenameList renames the list and keeps it active if it was.
func (s *Service) RenameList(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := s.lists.RenameList(oldName, newName); err != nil {
		return err
	}
	if oldName != newName && s.view.Snapshot().ActiveProject == oldName {
		s.view.SetActiveProject(newName)
	}
	return nil
}

// SelectProject makes name the active list; "" selects all files.
func (s *Service) SelectProject(name string) error {
	if name != "" {
		if _, ok := s.lists.Get(name); !ok {
			return apperr.New(apperr.KindNotFound, fmt.Sprintf("list %q does not exist", name), apperr.ErrNotFound)
		}
	}
	s.view.SetActiveProject(name)
	return nil
}
