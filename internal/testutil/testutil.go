// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/index"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH")
	}
}

// NewRoot creates a temporary storage root with the content directory
// already present.
func NewRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

// NewIndex opens a metadata index at path and closes it on cleanup.
func NewIndex(t *testing.T, path string) *index.DB {
	t.Helper()
	db, err := index.Open(path)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewHistory initializes a history repository at root.
func NewHistory(t *testing.T, root string) *history.Repo {
	t.Helper()
	r := history.Open(root)
	if err := r.Init(context.Background()); err != nil {
		t.Fatalf("init history: %v", err)
	}
	return r
}
