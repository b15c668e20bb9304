package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/library"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *library.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)
	r.Patch("/settings/{key}", h.PatchSetting)
	r.Post("/settings/exclusions", h.AddExclusion)
	r.Delete("/settings/exclusions", h.RemoveExclusion)

	// Lists.
	r.Get("/lists", h.ListLists)
	r.Post("/lists", h.CreateList)
	r.Route("/lists/{name}", func(r chi.Router) {
		r.Get("/", h.GetList)
		r.Put("/", h.SetList)
		r.Delete("/", h.DeleteList)
		r.Post("/rename", h.RenameList)
		r.Post("/items", h.AddItem)
		r.Delete("/items/{file}", h.RemoveItem)
		r.Post("/drop", h.DropItem)
		r.Post("/pins/{file}", h.Pin)
		r.Delete("/pins/{file}", h.Unpin)
	})

	// Files.
	r.Get("/files", h.ListFiles)
	r.Delete("/files", h.DeleteFile)
	r.Post("/files/search", h.SearchFiles)
	r.Post("/files/refresh", h.RefreshFile)
	r.Post("/files/find", h.FindFile)
	r.Post("/files/exclude", h.ExcludeFile)
	r.Post("/files/exclude-folder", h.ExcludeFolder)
	r.Post("/files/rename", h.RenameFile)
	r.Post("/files/open", h.OpenFile)
	r.Post("/files/show", h.ShowFile)

	// View and highlights.
	r.Get("/view", h.GetView)
	r.Patch("/view", h.PatchView)
	r.Post("/view/more-highlights", h.MoreHighlights)
	r.Post("/view/more-files", h.MoreFiles)
	r.Get("/highlights", h.Highlights)
	r.Get("/highlights/export", h.ExportHighlights)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
