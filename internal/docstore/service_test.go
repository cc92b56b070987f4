package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/testutil"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	testutil.RequireGit(t)

	root := testutil.NewRoot(t)
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	idx := testutil.NewIndex(t, filepath.Join(root, IndexFile))
	hist := testutil.NewHistory(t, root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(root, root, store, idx, hist, logger), root
}

func mustPut(t *testing.T, s *Service, name, desc, content string) {
	t.Helper()
	if _, err := s.Put(context.Background(), name, desc, content); err != nil {
		t.Fatalf("Put(%s): %v", name, err)
	}
}

func TestPutAndGet(t *testing.T) {
	s, root := newService(t)
	ctx := context.Background()

	doc, err := s.Put(ctx, "auth.jwt", "token handling", "# JWT\n\nRS256 only.\n")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Version)
	}

	got, err := s.Get(ctx, "auth.jwt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Content != "# JWT\n\nRS256 only.\n" || got.Description != "token handling" {
		t.Errorf("doc = %+v", got)
	}

	// Dotted name maps to a nested file.
	if _, err := os.Stat(filepath.Join(root, "docs", "auth", "jwt.md")); err != nil {
		t.Errorf("content file missing: %v", err)
	}
}

func TestPutInvalidName(t *testing.T) {
	s, _ := newService(t)
	for _, name := range []string{"Auth", "auth..jwt", "1auth", "auth.", ""} {
		_, err := s.Put(context.Background(), name, "d", "c")
		if !errors.Is(err, apperr.ErrInvalidName) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestPutConflictLeavesStateUntouched(t *testing.T) {
	s, root := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "original")

	_, err := s.Put(ctx, "auth", "other", "overwritten")
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "docs", "auth.md"))
	if string(data) != "original" {
		t.Errorf("content changed on conflict: %q", data)
	}
	got, _ := s.Get(ctx, "auth")
	if got.Version != 1 || got.Description != "authentication" {
		t.Errorf("index changed on conflict: %+v", got)
	}
}

func TestUpdateBumpsVersionAndHistory(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "v1 body")

	doc, err := s.Update(ctx, "auth", "authentication flows", "v2 body")
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d, want 2", doc.Version)
	}

	recs, err := s.Versions(ctx, "auth")
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(recs) != 2 || recs[0].Version != 2 || recs[1].Version != 1 {
		t.Fatalf("recs = %+v", recs)
	}
	if recs[0].CommitHash == "" || recs[0].CommitHash == recs[1].CommitHash {
		t.Errorf("hashes = %q, %q", recs[0].CommitHash, recs[1].CommitHash)
	}

	seq, err := s.Log(ctx, "auth")
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	var messages []string
	for e, err := range seq {
		if err != nil {
			t.Fatalf("log entry: %v", err)
		}
		messages = append(messages, e.Message)
	}
	if len(messages) != 2 {
		t.Fatalf("log entries = %d, want 2", len(messages))
	}
	if messages[0] != "auth: Updated" || !strings.HasPrefix(messages[1], "Create auth:") {
		t.Errorf("messages = %v", messages)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Update(context.Background(), "missing", "d", "c")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAppendExtendsContent(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "# Auth\n")

	doc, err := s.Append(ctx, "auth", "\nMore notes.\n")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if !strings.HasPrefix(doc.Content, "# Auth\n") {
		t.Errorf("prior content not preserved: %q", doc.Content)
	}
	if doc.Content != "# Auth\n\nMore notes.\n" {
		t.Errorf("content = %q", doc.Content)
	}
	if doc.Version != 2 {
		t.Errorf("version = %d", doc.Version)
	}
}

func TestRecordDecisionAndWhy(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth.jwt", "token handling", "# JWT\n")

	if _, err := s.RecordDecision(ctx, "auth.jwt", "use RS256", "asymmetric keys simplify rotation"); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	hits, err := s.Why(ctx, "rotation")
	if err != nil {
		t.Fatalf("Why: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "auth.jwt" {
		t.Fatalf("hits = %+v", hits)
	}
	if len(hits[0].Decisions) != 1 || hits[0].Decisions[0].Decision != "use RS256" {
		t.Errorf("decisions = %+v", hits[0].Decisions)
	}

	// Matching text outside the decisions section is ignored by why.
	if hits, _ := s.Why(ctx, "JWT"); len(hits) != 0 {
		t.Errorf("body text matched decisions query: %+v", hits)
	}
}

func TestSearchMatchesDescription(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth.manager", "authentication manager", "# Manager\n")
	mustPut(t, s, "billing", "invoices", "# Billing\n")

	hits, err := s.Search(ctx, "authentication")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "auth.manager" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestCommitFileAfterManualEdit(t *testing.T) {
	s, root := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "original\n")

	path := filepath.Join(root, "docs", "auth.md")
	if err := os.WriteFile(path, []byte("edited by hand\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || !list[0].Dirty {
		t.Fatalf("expected dirty doc, got %+v", list)
	}

	doc, err := s.CommitFile(ctx, "auth", "hand edit")
	if err != nil {
		t.Fatalf("CommitFile: %v", err)
	}
	if doc.Version != 2 || doc.Content != "edited by hand\n" {
		t.Errorf("doc = %+v", doc)
	}

	list, _ = s.List(ctx)
	if list[0].Dirty {
		t.Error("doc still dirty after commit")
	}
}

func TestStatus(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "a")
	mustPut(t, s, "billing", "invoices", "b")
	if _, err := s.Update(ctx, "auth", "authentication", "a2"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Documents != 2 || st.Versions != 3 {
		t.Errorf("status = %+v", st)
	}
	if len(st.Recent) == 0 || st.Recent[0].Name != "auth" {
		t.Errorf("recent = %+v", st.Recent)
	}
	if len(st.Dirty) != 0 || len(st.Untracked) != 0 {
		t.Errorf("dirty = %v, untracked = %v", st.Dirty, st.Untracked)
	}
}

func TestStatusReconcilesContentTree(t *testing.T) {
	s, root := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth", "authentication", "original\n")
	mustPut(t, s, "billing", "invoices", "clean\n")

	// Manual edit behind the pipeline's back.
	if err := os.WriteFile(filepath.Join(root, "docs", "auth.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// File dropped into the content tree without an index row.
	if err := os.MkdirAll(filepath.Join(root, "docs", "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "notes", "stray.md"), []byte("stray\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(st.Dirty) != 1 || st.Dirty[0] != "auth" {
		t.Errorf("dirty = %v", st.Dirty)
	}
	if len(st.Untracked) != 1 || st.Untracked[0] != "notes.stray" {
		t.Errorf("untracked = %v", st.Untracked)
	}
}

func TestPathResolution(t *testing.T) {
	s, root := newService(t)
	mustPut(t, s, "auth.jwt", "tokens", "c")

	p, err := s.Path("auth.jwt")
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	want := filepath.Join(root, "docs", "auth", "jwt.md")
	if p != want {
		t.Errorf("path = %q, want %q", p, want)
	}

	if _, err := s.Path("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSuggestForMissingName(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()
	mustPut(t, s, "auth.jwt", "token handling", "# JWT\n")
	mustPut(t, s, "billing", "invoices", "# Billing\n")

	hits := s.Suggest(ctx, "auth.session")
	if len(hits) != 1 || hits[0].Name != "auth.jwt" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestLogNotFound(t *testing.T) {
	s, _ := newService(t)
	_, err := s.Log(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// failingReadStore wraps a Provider and fails reads of one path.
type failingReadStore struct {
	storage.Provider
	failPath string
}

func (f *failingReadStore) Read(path string) ([]byte, error) {
	if path == f.failPath {
		return nil, fmt.Errorf("storage: read %s: %w", path, os.ErrPermission)
	}
	return f.Provider.Read(path)
}

func TestMutationAbortsWhenPriorContentUnreadable(t *testing.T) {
	testutil.RequireGit(t)
	root := testutil.NewRoot(t)
	fsStore, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	store := &failingReadStore{Provider: fsStore}
	idx := testutil.NewIndex(t, filepath.Join(root, IndexFile))
	hist := testutil.NewHistory(t, root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(root, root, store, idx, hist, logger)

	ctx := context.Background()
	if _, err := s.Put(ctx, "auth", "authentication", "original\n"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	store.failPath = "docs/auth.md"
	_, err = s.Update(ctx, "auth", "authentication", "replacement\n")
	if !errors.Is(err, os.ErrPermission) {
		t.Fatalf("err = %v, want wrapped ErrPermission", err)
	}

	// The failed read must abort before any side effect.
	data, readErr := os.ReadFile(filepath.Join(root, "docs", "auth.md"))
	if readErr != nil {
		t.Fatalf("content file: %v", readErr)
	}
	if string(data) != "original\n" {
		t.Errorf("content = %q, want original", data)
	}
	row, err := idx.GetDoc("auth")
	if err != nil || row.Version != 1 {
		t.Errorf("row = %+v, %v", row, err)
	}
}

func TestHistoryFailureRollsBackCreate(t *testing.T) {
	testutil.RequireGit(t)
	root := testutil.NewRoot(t)
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	idx := testutil.NewIndex(t, filepath.Join(root, IndexFile))
	// History repo never initialized: commits must fail.
	hist := history.Open(root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(root, root, store, idx, hist, logger)

	_, err = s.Put(context.Background(), "auth", "authentication", "body")
	if !errors.Is(err, apperr.ErrHistoryUnavailable) {
		t.Fatalf("err = %v, want ErrHistoryUnavailable", err)
	}
	if _, err := os.Stat(filepath.Join(root, "docs", "auth.md")); !os.IsNotExist(err) {
		t.Error("content file left behind after failed create")
	}
	if ok, _ := idx.Exists("auth"); ok {
		t.Error("index row created despite history failure")
	}
}
