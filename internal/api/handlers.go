package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/docstore"
)

// Handler holds the API route handlers. The HTTP surface is read-only;
// all mutations go through the CLI, which owns the write pipeline.
type Handler struct {
	svc *docstore.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docstore.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrInvalidName):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid document name"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrHistoryUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("history unavailable"))
	case errors.Is(err, apperr.ErrStorageUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("storage unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListDocs handles GET /api/docs. With ?tree=1 the flat listing is
// replaced by the name hierarchy.
func (h *Handler) ListDocs(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, "list docs", err)
		return
	}
	if isTruthy(r.URL.Query().Get("tree")) {
		writeJSON(w, http.StatusOK, map[string]any{
			"tree": docstore.BuildTree(summaries).Children,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"docs":  summaries,
		"total": len(summaries),
	})
}

// GetDoc handles GET /api/docs/{name}.
func (h *Handler) GetDoc(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	doc, err := h.svc.Get(r.Context(), name)
	if err != nil {
		writeError(w, "get doc", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetVersions handles GET /api/docs/{name}/versions.
func (h *Handler) GetVersions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	recs, err := h.svc.Versions(r.Context(), name)
	if err != nil {
		writeError(w, "get versions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     name,
		"versions": recs,
	})
}

// GetLog handles GET /api/docs/{name}/log.
func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	seq, err := h.svc.Log(r.Context(), name)
	if err != nil {
		writeError(w, "get log", err)
		return
	}
	entries := []any{}
	for e, err := range seq {
		if err != nil {
			writeError(w, "get log", err)
			return
		}
		entries = append(entries, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    name,
		"entries": entries,
	})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.Search(r.Context(), q)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if limit, _ := strconv.Atoi(r.URL.Query().Get("limit")); limit > 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
	})
}

// Why handles GET /api/why: decision-only search.
func (h *Handler) Why(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	hits, err := h.svc.Why(r.Context(), q)
	if err != nil {
		writeError(w, "why", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": hits,
	})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context())
	if err != nil {
		writeError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func isTruthy(v string) bool {
	return v == "1" || v == "true"
}
