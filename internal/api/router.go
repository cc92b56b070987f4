package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/docstore"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(svc *docstore.Service, authEnabled bool, token string) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/docs", h.ListDocs)
	r.Get("/docs/{name}", h.GetDoc)
	r.Get("/docs/{name}/versions", h.GetVersions)
	r.Get("/docs/{name}/log", h.GetLog)

	r.Get("/search", h.Search)
	r.Get("/why", h.Why)
	r.Get("/status", h.Status)

	return r
}
