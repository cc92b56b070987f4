package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/docstore"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/storage"
)

// OpenStore opens an existing store rooted at root. The returned close
// function releases the index connection. projectDir is the host project
// the store documents; when empty it defaults to the root's parent.
func OpenStore(root, projectDir string, logger *slog.Logger) (*docstore.Service, func(), error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve root: %w", err)
	}
	if projectDir == "" {
		projectDir = filepath.Dir(absRoot)
	}

	if _, err := os.Stat(filepath.Join(absRoot, docstore.IndexFile)); err != nil {
		return nil, nil, fmt.Errorf("%w: no store at %s (run init first): %w", apperr.ErrStorageUnavailable, absRoot, err)
	}

	store, err := storage.NewFS(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", apperr.ErrStorageUnavailable, err)
	}
	idx, err := index.Open(filepath.Join(absRoot, docstore.IndexFile))
	if err != nil {
		return nil, nil, err
	}
	hist := history.Open(absRoot)

	svc := docstore.NewService(absRoot, projectDir, store, idx, hist, logger)
	return svc, func() { _ = idx.Close() }, nil
}

// InitStore creates the store layout at root: the content directory, the
// metadata index, and the history repository. Idempotent; an existing
// store is left as is.
func InitStore(ctx context.Context, root, projectDir string, logger *slog.Logger) (*docstore.Service, func(), error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve root: %w", err)
	}
	if projectDir == "" {
		projectDir = filepath.Dir(absRoot)
	}

	if err := os.MkdirAll(filepath.Join(absRoot, docstore.DocsDir), 0o755); err != nil {
		return nil, nil, fmt.Errorf("%w: create store dir: %w", apperr.ErrStorageUnavailable, err)
	}

	store, err := storage.NewFS(absRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", apperr.ErrStorageUnavailable, err)
	}
	idx, err := index.Open(filepath.Join(absRoot, docstore.IndexFile))
	if err != nil {
		return nil, nil, err
	}
	hist := history.Open(absRoot)
	if err := hist.Init(ctx); err != nil {
		_ = idx.Close()
		return nil, nil, err
	}

	svc := docstore.NewService(absRoot, projectDir, store, idx, hist, logger)
	return svc, func() { _ = idx.Close() }, nil
}
