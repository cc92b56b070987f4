// Package history manages the embedded version-control repository rooted
// at the storage directory. It shells out to the git binary; the store
// never touches the host project's own repository except to read its HEAD.
package history

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
)

const defaultTimeout = 30 * time.Second

// Identity used for commits in the embedded repository.
const (
	commitAuthorName  = "ansuz"
	commitAuthorEmail = "ansuz@localhost"
)

// gitignore for the embedded repository: SQLite side files are transient
// and never belong in history. The index database itself is committed.
const ignoreFile = "*.db-journal\n*.db-wal\n*.db-shm\n"

// Entry is one commit touching a document.
type Entry struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Repo executes git commands against the repository rooted at dir.
type Repo struct {
	dir     string
	timeout time.Duration
}

// Open returns a Repo for the given storage root. It does not touch the
// file system; call Init to create the repository.
func Open(dir string) *Repo {
	return &Repo{dir: dir, timeout: defaultTimeout}
}

// run executes a git command in the repository and returns trimmed stdout.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s: timeout after %v", args[0], r.timeout)
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *Repo) runSilent(ctx context.Context, args ...string) error {
	_, err := r.run(ctx, args...)
	return err
}

// Available reports whether dir is the root of a usable repository.
func (r *Repo) Available(ctx context.Context) bool {
	out, err := r.run(ctx, "rev-parse", "--git-dir")
	return err == nil && out == ".git"
}

// Init creates the embedded repository if absent. Idempotent.
func (r *Repo) Init(ctx context.Context) error {
	if r.Available(ctx) {
		return nil
	}
	if err := r.runSilent(ctx, "init"); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := r.runSilent(ctx, "config", "user.email", commitAuthorEmail); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := r.runSilent(ctx, "config", "user.name", commitAuthorName); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, ".gitignore"), []byte(ignoreFile), 0o644); err != nil {
		return fmt.Errorf("%w: write .gitignore: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := r.runSilent(ctx, "add", ".gitignore"); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := r.runSilent(ctx, "commit", "-m", "Initialize history repository"); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	return nil
}

// Commit stages paths (relative to the storage root), creates one commit,
// and returns its short hash. --allow-empty guarantees one commit per
// mutation even when the staged bytes happen to be identical.
func (r *Repo) Commit(ctx context.Context, paths []string, message string) (string, error) {
	if !r.Available(ctx) {
		return "", fmt.Errorf("%w: no repository at %s", apperr.ErrHistoryUnavailable, r.dir)
	}
	args := append([]string{"add", "--"}, paths...)
	if err := r.runSilent(ctx, args...); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	if err := r.runSilent(ctx, "commit", "--allow-empty", "-m", message); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	hash, err := r.run(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	return hash, nil
}

// Log returns the commits touching relPath, most recent first, as a lazy
// sequence. Each range over the sequence re-executes git, so the
// iterator is restartable; output is parsed line by line as it streams.
func (r *Repo) Log(ctx context.Context, relPath string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "git", "log", "--pretty=format:%h|%s|%aI", "--", relPath)
		cmd.Dir = r.dir
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		out, err := cmd.StdoutPipe()
		if err != nil {
			yield(Entry{}, fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err))
			return
		}
		if err := cmd.Start(); err != nil {
			yield(Entry{}, fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err))
			return
		}

		sc := bufio.NewScanner(out)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			entry, ok := parseLogLine(sc.Text())
			if !ok {
				continue
			}
			if !yield(entry, nil) {
				cancel()
				_ = cmd.Wait()
				return
			}
		}
		if err := cmd.Wait(); err != nil {
			yield(Entry{}, fmt.Errorf("%w: git log: %w: %s", apperr.ErrHistoryUnavailable, err, strings.TrimSpace(stderr.String())))
		}
	}
}

func parseLogLine(line string) (Entry, bool) {
	parts := strings.SplitN(line, "|", 3)
	if len(parts) != 3 {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return Entry{}, false
	}
	return Entry{Hash: parts[0], Message: parts[1], Timestamp: ts}, true
}

// HostHead returns the short HEAD hash and branch of the repository at
// projectDir, typically the host project the notes document. Best
// effort: both values are empty when projectDir is not a repository.
func HostHead(ctx context.Context, projectDir string) (hash, branch string) {
	run := func(args ...string) string {
		ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = projectDir
		out, err := cmd.Output()
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(out))
	}
	hash = run("rev-parse", "--short", "HEAD")
	if hash == "" {
		return "", ""
	}
	return hash, run("rev-parse", "--abbrev-ref", "HEAD")
}
