// Package docstore unifies the naming resolver, content store, metadata
// index, and history repository behind one Repository service. Every
// mutating command funnels through the same pipeline (mutate), so the
// write ordering and recovery policy live in exactly one place.
//
// Write ordering: content file first, then one history commit staging the
// doc file plus the index database, then the index mutation carrying the
// commit hash. A history failure rolls the content back and leaves the
// index untouched. An index failure rolls the content back; the already
// created history commit stays (the log is append-only and an extra
// commit never corrupts reads).
package docstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/history"
	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/markdown"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/naming"
	"github.com/starford/ansuz/internal/search"
	"github.com/starford/ansuz/internal/storage"
)

// Layout of the storage root.
const (
	DocsDir   = "docs"
	IndexFile = "ansuz.db"
)

// Service coordinates storage, index, and history operations.
type Service struct {
	root       string // absolute storage root
	projectDir string // host project directory, for HEAD correlation
	store      storage.Provider
	idx        index.DocIndex
	hist       *history.Repo
	logger     *slog.Logger
}

// NewService creates a new document store service. root must be the
// absolute storage root the store and history repo are rooted at;
// projectDir is the host project directory whose HEAD is recorded with
// each version (may equal root's parent).
func NewService(root, projectDir string, store storage.Provider, idx index.DocIndex, hist *history.Repo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{root: root, projectDir: projectDir, store: store, idx: idx, hist: hist, logger: logger}
}

// contentPath returns the content file path for a name, relative to the
// storage root.
func contentPath(n naming.Name) string {
	return path.Join(DocsDir, n.RelPath())
}

// Put creates a new document at version 1.
func (s *Service) Put(ctx context.Context, rawName, description, content string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	if err := requireFields(description, content); err != nil {
		return nil, err
	}
	if exists, err := s.idx.Exists(n.String()); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("doc %q: %w (use --update to modify)", n.String(), apperr.ErrConflict)
	}

	rel := contentPath(n)
	if err := s.store.Write(rel, []byte(content)); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Create %s: %s", n.String(), description)
	hash, hostCommit, err := s.commit(ctx, rel, message)
	if err != nil {
		s.rollbackContent(rel, nil)
		return nil, err
	}

	now := time.Now().UTC()
	rec := models.VersionRecord{
		Name:       n.String(),
		Version:    1,
		CommitHash: hash,
		Message:    message,
		HostCommit: hostCommit,
		CreatedAt:  now,
	}
	if err := s.idx.AddVersion(rec); err != nil {
		s.rollbackContent(rel, nil)
		return nil, err
	}
	row := index.DocRow{
		Name:        n.String(),
		Description: description,
		Path:        rel,
		Version:     1,
		Checksum:    checksum.Sum([]byte(content)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.idx.CreateDoc(row); err != nil {
		if derr := s.idx.DeleteVersion(rec.Name, rec.Version); derr != nil {
			s.logger.Warn("compensation failed: version record left behind",
				slog.String("name", rec.Name), slog.String("error", derr.Error()))
		}
		s.rollbackContent(rel, nil)
		return nil, err
	}

	return rowToDoc(row, content), nil
}

// Update replaces the description and content of an existing document.
func (s *Service) Update(ctx context.Context, rawName, description, content string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	if err := requireFields(description, content); err != nil {
		return nil, err
	}
	row, err := s.idx.GetDoc(n.String())
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, n, row, description, content, "Updated")
}

// Append concatenates fragment to the existing content.
func (s *Service) Append(ctx context.Context, rawName, fragment string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	row, err := s.idx.GetDoc(n.String())
	if err != nil {
		return nil, err
	}
	current := s.readContent(n)
	return s.mutate(ctx, n, row, row.Description, current+fragment, "Append")
}

// RecordDecision appends a structured decision section and performs a
// normal mutation.
func (s *Service) RecordDecision(ctx context.Context, rawName, decision, rationale string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	row, err := s.idx.GetDoc(n.String())
	if err != nil {
		return nil, err
	}
	current := s.readContent(n)
	date := time.Now().UTC().Format("2006-01-02")
	next := markdown.AppendDecision(current, decision, rationale, date)
	return s.mutate(ctx, n, row, row.Description, next, "Decision: "+decision)
}

// CommitFile records whatever is currently on disk for the name as a new
// version. This is the manual-edit pathway: edit docs/<...>.md directly,
// then commit it.
func (s *Service) CommitFile(ctx context.Context, rawName, message string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	row, err := s.idx.GetDoc(n.String())
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "Updated"
	}
	current := s.readContent(n)
	return s.mutate(ctx, n, row, row.Description, current, message)
}

// mutate is the canonical mutation pipeline shared by every update
// pathway. It bumps the version by exactly one and produces exactly one
// version record and one history commit.
func (s *Service) mutate(ctx context.Context, n naming.Name, row *index.DocRow, description, content, message string) (*models.Doc, error) {
	rel := contentPath(n)

	// Prior bytes for rollback; nil means the file did not exist. Any
	// other read failure aborts before the first side effect: without
	// the prior bytes a later rollback would delete the document.
	var prev []byte
	switch data, err := s.store.Read(rel); {
	case err == nil:
		prev = data
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := s.store.Write(rel, []byte(content)); err != nil {
		return nil, err
	}

	full := fmt.Sprintf("%s: %s", n.String(), message)
	hash, hostCommit, err := s.commit(ctx, rel, full)
	if err != nil {
		s.rollbackContent(rel, prev)
		return nil, err
	}

	now := time.Now().UTC()
	newVersion := row.Version + 1
	rec := models.VersionRecord{
		Name:       n.String(),
		Version:    newVersion,
		CommitHash: hash,
		Message:    full,
		HostCommit: hostCommit,
		CreatedAt:  now,
	}
	if err := s.idx.AddVersion(rec); err != nil {
		s.rollbackContent(rel, prev)
		return nil, err
	}
	cs := checksum.Sum([]byte(content))
	if err := s.idx.UpdateDoc(n.String(), description, cs, newVersion, now); err != nil {
		if derr := s.idx.DeleteVersion(rec.Name, rec.Version); derr != nil {
			s.logger.Warn("compensation failed: version record left behind",
				slog.String("name", rec.Name), slog.String("error", derr.Error()))
		}
		s.rollbackContent(rel, prev)
		return nil, err
	}

	return &models.Doc{
		Name:        n.String(),
		Description: description,
		Content:     content,
		Version:     newVersion,
		Checksum:    cs,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   now,
	}, nil
}

// commit creates one history commit staging the doc file and the index
// database, and returns the commit hash plus the host project HEAD.
func (s *Service) commit(ctx context.Context, rel, message string) (hash, hostCommit string, err error) {
	hostCommit, hostBranch := history.HostHead(ctx, s.projectDir)
	full := message
	if hostCommit != "" {
		full += fmt.Sprintf("\n\nProject: %s@%s", hostCommit, hostBranch)
	}
	hash, err = s.hist.Commit(ctx, []string{rel, IndexFile}, full)
	if err != nil {
		return "", "", err
	}
	return hash, hostCommit, nil
}

// rollbackContent restores the prior bytes of a content file, or removes
// the file when it did not exist before the mutation.
func (s *Service) rollbackContent(rel string, prev []byte) {
	var err error
	if prev == nil {
		err = s.store.Delete(rel)
	} else {
		err = s.store.Write(rel, prev)
	}
	if err != nil {
		s.logger.Warn("content rollback failed",
			slog.String("path", rel), slog.String("error", err.Error()))
	}
}

// Get returns the current document for the name.
func (s *Service) Get(ctx context.Context, rawName string) (*models.Doc, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	row, err := s.idx.GetDoc(n.String())
	if err != nil {
		return nil, err
	}
	return rowToDoc(*row, s.readContent(n)), nil
}

// Path resolves the canonical absolute content path for an existing name.
func (s *Service) Path(rawName string) (string, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return "", err
	}
	if _, err := s.idx.GetDoc(n.String()); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(contentPath(n))), nil
}

// List returns summaries for every document, ordered by name. The Dirty
// flag marks documents whose on-disk content no longer matches the last
// committed checksum (candidates for the commit command).
func (s *Service) List(ctx context.Context) ([]models.Summary, error) {
	rows, err := s.idx.ListDocs()
	if err != nil {
		return nil, err
	}
	out := make([]models.Summary, len(rows))
	for i, r := range rows {
		out[i] = rowToSummary(r, s.isDirty(r))
	}
	return out, nil
}

// Search ranks all documents against the query.
func (s *Service) Search(ctx context.Context, query string) ([]search.Hit, error) {
	docs, err := s.searchDocs()
	if err != nil {
		return nil, err
	}
	return search.Rank(query, docs), nil
}

// Suggest finds documents similar to a name that failed to resolve: the
// full name is tried first, then each of its segments. Best effort; any
// lookup failure yields no suggestions rather than an error.
func (s *Service) Suggest(ctx context.Context, rawName string) []search.Hit {
	docs, err := s.searchDocs()
	if err != nil {
		return nil
	}
	best := make(map[string]search.Hit)
	queries := append([]string{rawName}, strings.Split(rawName, ".")...)
	for _, q := range queries {
		for _, h := range search.Rank(q, docs) {
			if cur, ok := best[h.Name]; !ok || h.Score > cur.Score {
				best[h.Name] = h
			}
		}
	}
	hits := make([]search.Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Name < hits[j].Name
	})
	return hits
}

// Why ranks the query against decision sections only.
func (s *Service) Why(ctx context.Context, query string) ([]search.DecisionHit, error) {
	docs, err := s.searchDocs()
	if err != nil {
		return nil, err
	}
	return search.RankDecisions(query, docs), nil
}

// Log streams the history commits touching the name, most recent first.
// The sequence is lazy and restartable; each range re-reads the history
// repository.
func (s *Service) Log(ctx context.Context, rawName string) (iter.Seq2[history.Entry, error], error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	if _, err := s.idx.GetDoc(n.String()); err != nil {
		return nil, err
	}
	return s.hist.Log(ctx, contentPath(n)), nil
}

// Versions returns the recorded version markers for the name, newest first.
func (s *Service) Versions(ctx context.Context, rawName string) ([]models.VersionRecord, error) {
	n, err := naming.Parse(rawName)
	if err != nil {
		return nil, err
	}
	if _, err := s.idx.GetDoc(n.String()); err != nil {
		return nil, err
	}
	return s.idx.Versions(n.String())
}

// Status aggregates store-wide counters and recent activity.
func (s *Service) Status(ctx context.Context) (*models.Status, error) {
	docs, versions, err := s.idx.Stats()
	if err != nil {
		return nil, err
	}
	recent, err := s.idx.Recent(5)
	if err != nil {
		return nil, err
	}
	st := &models.Status{Documents: docs, Versions: versions}
	for _, r := range recent {
		st.Recent = append(st.Recent, rowToSummary(r, false))
	}

	// Reconcile the content tree against the index: a checksum mismatch
	// (or missing file) marks the doc dirty, a file without an index row
	// is untracked.
	files, err := s.store.List(DocsDir)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]models.FileInfo, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	all, err := s.idx.ListDocs()
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if f, ok := byPath[r.Path]; !ok || f.Checksum != r.Checksum {
			st.Dirty = append(st.Dirty, r.Name)
		}
		delete(byPath, r.Path)
	}
	for p := range byPath {
		st.Untracked = append(st.Untracked, naming.FromRelPath(strings.TrimPrefix(p, DocsDir+"/")))
	}
	sort.Strings(st.Untracked)
	return st, nil
}

// searchDocs assembles the ranking input: index rows plus live content
// read from disk, so every field goes through the same matching path.
func (s *Service) searchDocs() ([]search.Document, error) {
	rows, err := s.idx.ListDocs()
	if err != nil {
		return nil, err
	}
	docs := make([]search.Document, len(rows))
	for i, r := range rows {
		content := ""
		if data, err := s.store.Read(r.Path); err == nil {
			content = string(data)
		}
		docs[i] = search.Document{
			Name:        r.Name,
			Description: r.Description,
			Content:     content,
			Version:     r.Version,
		}
	}
	return docs, nil
}

func (s *Service) readContent(n naming.Name) string {
	data, err := s.store.Read(contentPath(n))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("content read failed",
				slog.String("name", n.String()), slog.String("error", err.Error()))
		}
		return ""
	}
	return string(data)
}

func (s *Service) isDirty(r index.DocRow) bool {
	data, err := s.store.Read(r.Path)
	if err != nil {
		return true
	}
	return checksum.Sum(data) != r.Checksum
}

func rowToDoc(r index.DocRow, content string) *models.Doc {
	return &models.Doc{
		Name:        r.Name,
		Description: r.Description,
		Content:     content,
		Version:     r.Version,
		Checksum:    r.Checksum,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func rowToSummary(r index.DocRow, dirty bool) models.Summary {
	return models.Summary{
		Name:        r.Name,
		Description: r.Description,
		Version:     r.Version,
		UpdatedAt:   r.UpdatedAt,
		Dirty:       dirty,
	}
}

func requireFields(description, content string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("description must not be empty")
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content must not be empty")
	}
	return nil
}
