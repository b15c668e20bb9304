package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/library"
	"github.com/starford/folio/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *library.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *library.Service) *Handler {
	return &Handler{svc: svc}
}

// param returns a decoded URL parameter. List and file names may carry
// encoded slashes and spaces.
func param(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func notFound(what string) error {
	return apperr.New(apperr.KindNotFound, what, apperr.ErrNotFound)
}

// GetSettings handles GET /api/settings.
//
//	@Summary		Current settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	models.Settings
//	@Security		BearerAuth
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings().Get())
}

// PutSettings handles PUT /api/settings.
//
//	@Summary		Replace every setting
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Settings	true	"Settings"
//	@Success		200		{object}	models.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [put]
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if !decode(w, r, &req) {
		return
	}
	h.svc.Settings().SetSettings(req)
	writeJSON(w, http.StatusOK, h.svc.Settings().Get())
}

// PatchSetting handles PATCH /api/settings/{key}. The body is the raw
// JSON value of the key.
//
//	@Summary		Replace one setting
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			key	path		string	true	"Setting key"
//	@Success		200		{object}	models.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/{key} [patch]
func (h *Handler) PatchSetting(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		badRequest(w, "failed to read body")
		return
	}
	if !json.Valid(body) {
		badRequest(w, "invalid JSON body")
		return
	}
	if err := h.svc.Settings().SetSetting(param(r, "key"), json.RawMessage(body)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Settings().Get())
}

// AddExclusion handles POST /api/settings/exclusions.
//
//	@Summary		Exclude a file name or folder from searches
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ExclusionRequest	true	"Rule"
//	@Success		200		{object}	AddedResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/exclusions [post]
func (h *Handler) AddExclusion(w http.ResponseWriter, r *http.Request) {
	var req ExclusionRequest
	if !decode(w, r, &req) {
		return
	}
	var added bool
	if req.Path != "" {
		added = h.svc.Settings().AddExclusionByPath(req.Path)
	} else {
		added = h.svc.Settings().AddExclusion(models.FileRecord{FileName: req.FileName})
	}
	writeJSON(w, http.StatusOK, AddedResponse{Added: added})
}

// RemoveExclusion handles DELETE /api/settings/exclusions?identifier=.
//
//	@Summary		Remove an exclusion rule
//	@Tags			settings
//	@Param			identifier	query	string	true	"File name or path"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings/exclusions [delete]
func (h *Handler) RemoveExclusion(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("identifier")
	if id == "" {
		badRequest(w, "identifier is required")
		return
	}
	if !h.svc.Settings().RemoveExclusion(id) {
		writeError(w, r, notFound(fmt.Sprintf("no exclusion for %q", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListLists handles GET /api/lists.
//
//	@Summary		Every list in display order
//	@Tags			lists
//	@Produce		json
//	@Success		200	{object}	ListsResponse
//	@Security		BearerAuth
//	@Router			/lists [get]
func (h *Handler) ListLists(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ListsResponse{Lists: h.svc.Lists().All()})
}

// GetList handles GET /api/lists/{name}.
//
//	@Summary		One list
//	@Tags			lists
//	@Produce		json
//	@Param			name	path		string	true	"List name"
//	@Success		200		{object}	models.List
//	@Header			200		{string}	ETag	"Checksum for If-Match"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name} [get]
func (h *Handler) GetList(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	l, ok := h.svc.Lists().Get(name)
	if !ok {
		writeError(w, r, notFound(fmt.Sprintf("list %q does not exist", name)))
		return
	}
	if sum, err := checksum.OfJSON(l); err == nil {
		w.Header().Set("ETag", `"`+sum+`"`)
	}
	writeJSON(w, http.StatusOK, l)
}

// CreateList handles POST /api/lists.
//
//	@Summary		Create or replace a list
//	@Tags			lists
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateListRequest	true	"List to create"
//	@Success		201		{object}	models.List
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists [post]
func (h *Handler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Lists().CreateList(req.Name, req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	l, _ := h.svc.Lists().Get(req.Name)
	writeJSON(w, http.StatusCreated, l)
}

// SetList handles PUT /api/lists/{name}.
//
//	@Summary		Replace the items of a list
//	@Tags			lists
//	@Accept			json
//	@Produce		json
//	@Param			name		path		string			true	"List name"
//	@Param			If-Match	header		string			false	"ETag from GET for optimistic concurrency"
//	@Param			body		body		SetListRequest	true	"Items"
//	@Success		200			{object}	models.List
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name} [put]
func (h *Handler) SetList(w http.ResponseWriter, r *http.Request) {
	var req SetListRequest
	if !decode(w, r, &req) {
		return
	}
	name := param(r, "name")

	// Strip surrounding quotes if present (standard ETag format).
	if ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`); ifMatch != "" {
		current, ok := h.svc.Lists().Get(name)
		if !ok {
			writeError(w, r, notFound(fmt.Sprintf("list %q does not exist", name)))
			return
		}
		if sum, _ := checksum.OfJSON(current); sum != ifMatch {
			writeError(w, r, fmt.Errorf("list changed since it was read: %w", apperr.ErrConflict))
			return
		}
	}
	if err := h.svc.Lists().SetList(name, req.Items); err != nil {
		writeError(w, r, err)
		return
	}
	l, _ := h.svc.Lists().Get(name)
	writeJSON(w, http.StatusOK, l)
}

// DeleteList handles DELETE /api/lists/{name}.
//
//	@Summary		Delete a list
//	@Tags			lists
//	@Param			name	path	string	true	"List name"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name} [delete]
func (h *Handler) DeleteList(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if !h.svc.RemoveList(name) {
		writeError(w, r, notFound(fmt.Sprintf("list %q does not exist", name)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameList handles POST /api/lists/{name}/rename.
//
//	@Summary		Rename a list
//	@Tags			lists
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string				true	"List name"
//	@Param			body	body		RenameListRequest	true	"New name"
//	@Success		200		{object}	models.List
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/rename [post]
func (h *Handler) RenameList(w http.ResponseWriter, r *http.Request) {
	var req RenameListRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RenameList(param(r, "name"), req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	l, _ := h.svc.Lists().Get(req.Name)
	writeJSON(w, http.StatusOK, l)
}

// AddItem handles POST /api/lists/{name}/items. The file is tagged before
// it is added.
//
//	@Summary		Add a file to a list
//	@Tags			lists
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string		true	"List name"
//	@Param			body	body		FileRequest	true	"File"
//	@Success		200		{object}	library.AddResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/items [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req FileRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.AddFileToList(r.Context(), param(r, "name"), req.File)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveItem handles DELETE /api/lists/{name}/items/{file}.
//
//	@Summary		Remove a file from a list
//	@Tags			lists
//	@Param			name	path	string	true	"List name"
//	@Param			file	path	string	true	"File name"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/items/{file} [delete]
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	name, file := param(r, "name"), param(r, "file")
	if !h.svc.Lists().RemoveFromList(name, file) {
		writeError(w, r, notFound(fmt.Sprintf("%q is not in list %q", file, name)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DropItem handles POST /api/lists/{name}/drop.
//
//	@Summary		Add a file known only by name
//	@Tags			lists
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string		true	"List name"
//	@Param			body	body		DropRequest	true	"File name"
//	@Success		200		{object}	library.AddResult
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/drop [post]
func (h *Handler) DropItem(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.DropOnList(r.Context(), param(r, "name"), req.FileName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Pin handles POST /api/lists/{name}/pins/{file}.
//
//	@Summary		Pin a list item
//	@Tags			lists
//	@Produce		json
//	@Param			name	path		string	true	"List name"
//	@Param			file	path		string	true	"File name"
//	@Success		200		{object}	models.List
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/pins/{file} [post]
func (h *Handler) Pin(w http.ResponseWriter, r *http.Request) {
	h.pin(w, r, true)
}

// Unpin handles DELETE /api/lists/{name}/pins/{file}.
//
//	@Summary		Unpin a list item
//	@Tags			lists
//	@Produce		json
//	@Param			name	path		string	true	"List name"
//	@Param			file	path		string	true	"File name"
//	@Success		200		{object}	models.List
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/lists/{name}/pins/{file} [delete]
func (h *Handler) Unpin(w http.ResponseWriter, r *http.Request) {
	h.pin(w, r, false)
}

func (h *Handler) pin(w http.ResponseWriter, r *http.Request, on bool) {
	name, file := param(r, "name"), param(r, "file")
	var ok bool
	if on {
		ok = h.svc.Lists().PinItem(name, file)
	} else {
		ok = h.svc.Lists().UnpinItem(name, file)
	}
	if !ok {
		writeError(w, r, notFound(fmt.Sprintf("%q is not in list %q", file, name)))
		return
	}
	l, _ := h.svc.Lists().Get(name)
	writeJSON(w, http.StatusOK, l)
}
