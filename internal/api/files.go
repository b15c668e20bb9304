package api

import (
	"net/http"
	"time"
)

// ListFiles handles GET /api/files.
//
//	@Summary		The file table
//	@Description	With an active list the rows are its items, pinned first. Otherwise the latest search results.
//	@Tags			files
//	@Produce		json
//	@Param			sort	query		string	false	"Sort column"
//	@Param			desc	query		bool	false	"Descending"
//	@Success		200		{object}	library.Table
//	@Security		BearerAuth
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.svc.DisplayFiles(parseSort(q.Get("sort"), q.Get("desc"))))
}

// SearchFiles handles POST /api/files/search. It runs the search now
// instead of waiting for the debounce.
//
//	@Summary		Run the search now
//	@Tags			files
//	@Produce		json
//	@Param			sort	query		string	false	"Sort column"
//	@Param			desc	query		bool	false	"Descending"
//	@Success		200		{object}	library.Table
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/search [post]
func (h *Handler) SearchFiles(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Search().Run(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.svc.DisplayFiles(parseSort(q.Get("sort"), q.Get("desc"))))
}

// RefreshFile handles POST /api/files/refresh.
//
//	@Summary		Re-fetch one file with highlights
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FileRequest	true	"File"
//	@Success		200		{object}	models.FileRecord
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/refresh [post]
func (h *Handler) RefreshFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := h.svc.RefreshFile(r.Context(), req.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// FindFile handles POST /api/files/find.
//
//	@Summary		Locate a file changed outside folio
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FileRequest	true	"Stale record"
//	@Success		200		{object}	reconcile.Result
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse	"More than one candidate"
//	@Security		BearerAuth
//	@Router			/files/find [post]
func (h *Handler) FindFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.FindFile(r.Context(), req.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ExcludeFile handles POST /api/files/exclude.
//
//	@Summary		Exclude a file from searches
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FileRequest	true	"File"
//	@Success		200		{object}	AddedResponse
//	@Security		BearerAuth
//	@Router			/files/exclude [post]
func (h *Handler) ExcludeFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, AddedResponse{Added: h.svc.ExcludeFile(req.File)})
}

// ExcludeFolder handles POST /api/files/exclude-folder.
//
//	@Summary		Exclude a file's folder from searches
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FileRequest	true	"File"
//	@Success		200		{object}	FolderResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/exclude-folder [post]
func (h *Handler) ExcludeFolder(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	dir, err := h.svc.ExcludeFolder(req.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FolderResponse{Path: dir})
}

// DeleteFile handles DELETE /api/files.
//
//	@Summary		Delete a file from disk
//	@Tags			files
//	@Accept			json
//	@Param			body	body	FileRequest	true	"File"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files [delete]
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.DeleteFile(r.Context(), req.File); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameFile handles POST /api/files/rename.
//
//	@Summary		Rename a file on disk
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RenameFileRequest	true	"File and new base name"
//	@Success		200		{object}	models.FileRecord
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/rename [post]
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req RenameFileRequest
	if !decode(w, r, &req) {
		return
	}
	f, err := h.svc.RenameFile(r.Context(), req.File, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// OpenFile handles POST /api/files/open.
//
//	@Summary		Open a file, optionally at a page
//	@Tags			files
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenRequest	true	"Path and page"
//	@Success		200		{object}	OpenResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/files/open [post]
func (h *Handler) OpenFile(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decode(w, r, &req) {
		return
	}
	program, err := h.svc.OpenFile(r.Context(), req.FullPath, req.Page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OpenResponse{Program: program})
}

// ShowFile handles POST /api/files/show.
//
//	@Summary		Reveal a file in the file manager
//	@Tags			files
//	@Accept			json
//	@Param			body	body	OpenRequest	true	"Path"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/files/show [post]
func (h *Handler) ShowFile(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.ShowInExplorer(r.Context(), req.FullPath); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetView handles GET /api/view.
//
//	@Summary		Current filters and cursors
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	view.Snapshot
//	@Security		BearerAuth
//	@Router			/view [get]
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.View().Snapshot())
}

// PatchView handles PATCH /api/view.
//
//	@Summary		Change filters and cursors
//	@Description	Changes to the project, mode, search text or fetch count reissue the search.
//	@Tags			view
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ViewPatch	true	"Fields to change"
//	@Success		200		{object}	view.Snapshot
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse	"Unknown list"
//	@Security		BearerAuth
//	@Router			/view [patch]
func (h *Handler) PatchView(w http.ResponseWriter, r *http.Request) {
	var p ViewPatch
	if !decode(w, r, &p) {
		return
	}
	v := h.svc.View()
	if p.ActiveProject != nil {
		if err := h.svc.SelectProject(*p.ActiveProject); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if p.ActiveMode != nil {
		if err := v.SetActiveMode(*p.ActiveMode); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if p.SearchText != nil {
		v.SetSearchText(*p.SearchText)
	}
	if p.FetchCount != nil {
		v.SetFetchCount(*p.FetchCount)
	}
	if p.SelectedBook != nil {
		if *p.SelectedBook == "" {
			v.RemoveBookFilter()
		} else {
			v.SelectBook(*p.SelectedBook)
		}
	}
	if p.HideBook != nil {
		v.HideBook(*p.HideBook)
	}
	if p.HighlightsSearchText != nil {
		v.SetHighlightsSearchText(*p.HighlightsSearchText)
	}
	if p.ShowOnlyAnnotated != nil {
		v.SetShowOnlyAnnotated(*p.ShowOnlyAnnotated)
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// MoreHighlights handles POST /api/view/more-highlights.
//
//	@Summary		Page the highlight feed forward
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	highlights.Feed
//	@Security		BearerAuth
//	@Router			/view/more-highlights [post]
func (h *Handler) MoreHighlights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.MoreHighlights())
}

// MoreFiles handles POST /api/view/more-files.
//
//	@Summary		Ask the search for more files
//	@Tags			view
//	@Produce		json
//	@Success		200	{object}	MoreFilesResponse
//	@Security		BearerAuth
//	@Router			/view/more-files [post]
func (h *Handler) MoreFiles(w http.ResponseWriter, r *http.Request) {
	requested := h.svc.View().MoreFiles()
	writeJSON(w, http.StatusOK, MoreFilesResponse{Requested: requested, View: h.svc.View().Snapshot()})
}

// Highlights handles GET /api/highlights.
//
//	@Summary		The visible highlight feed
//	@Tags			highlights
//	@Produce		json
//	@Success		200	{object}	highlights.Feed
//	@Security		BearerAuth
//	@Router			/highlights [get]
func (h *Handler) Highlights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Highlights())
}

// ExportHighlights handles GET /api/highlights/export.
//
//	@Summary		Export filtered highlights as Markdown
//	@Tags			highlights
//	@Produce		text/markdown
//	@Param			title	query		string	false	"Document title"
//	@Success		200		{string}	string
//	@Security		BearerAuth
//	@Router			/highlights/export [get]
func (h *Handler) ExportHighlights(w http.ResponseWriter, r *http.Request) {
	body, err := h.svc.ExportHighlights(r.URL.Query().Get("title"), time.Now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="highlights.md"`)
	_, _ = w.Write(body)
}
