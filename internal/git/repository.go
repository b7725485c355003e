package git

import (
	"context"
	"os/exec"
	"strings"

	acErrors "github.com/bashhack/autocommit/internal/errors"
)

// StatusEntry is one line of `git status --porcelain`.
type StatusEntry struct {
	// Code is the two-letter XY status, e.g. " M", "??", "A ".
	Code string
	// Path is the file path relative to the repository root. For renames
	// it is the destination path.
	Path string
}

// Repository runs git commands against a single working tree.
type Repository struct {
	path     string
	executor CommandExecutor
}

// NewRepository creates a Repository for path using the os/exec executor.
func NewRepository(path string) *Repository {
	return NewRepositoryWithExecutor(path, NewExecExecutor())
}

// NewRepositoryWithExecutor creates a Repository with a custom executor.
func NewRepositoryWithExecutor(path string, executor CommandExecutor) *Repository {
	return &Repository{
		path:     path,
		executor: executor,
	}
}

// Path returns the working tree path.
func (r *Repository) Path() string {
	return r.path
}

// IsRepository checks if the given path is inside a git work tree.
// It returns (false, nil) when git exits with 128, which for rev-parse
// almost always means "not a repository". Other failures (git missing,
// permissions) are returned as errors.
func IsRepository(path string) (bool, error) {
	return NewRepository(path).IsRepository(context.Background())
}

// IsRepository reports whether the repository path is inside a git work tree.
func (r *Repository) IsRepository(ctx context.Context) (bool, error) {
	output, err := r.runWithOutput(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		var exitErr *exec.ExitError
		if acErrors.As(err, &exitErr) && exitErr.ExitCode() == 128 {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(output) == "true", nil
}

// Status returns the porcelain status entries of the working tree.
func (r *Repository) Status(ctx context.Context) ([]StatusEntry, error) {
	output, err := r.runWithOutput(ctx, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parsePorcelain(output), nil
}

// HasChanges returns true if the working tree has anything to commit,
// untracked files included.
func (r *Repository) HasChanges(ctx context.Context) (bool, error) {
	entries, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// StageAll stages every change in the working tree, deletions included.
func (r *Repository) StageAll(ctx context.Context) error {
	return r.run(ctx, "add", "-A")
}

// Commit records the staged changes with message.
func (r *Repository) Commit(ctx context.Context, message string) error {
	return r.run(ctx, "commit", "-m", message)
}

// HeadCommit returns the abbreviated hash of HEAD.
func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	output, err := r.runWithOutput(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// run executes a git command in the repository directory with context.
func (r *Repository) run(ctx context.Context, args ...string) error {
	allArgs := append([]string{"-C", r.path}, args...)
	return r.executor.ExecuteWithContext(ctx, "git", allArgs...)
}

// runWithOutput executes a git command and returns its output with context.
func (r *Repository) runWithOutput(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-C", r.path}, args...)
	return r.executor.ExecuteWithContextAndOutput(ctx, "git", allArgs...)
}

// parsePorcelain parses `git status --porcelain` (v1) output.
func parsePorcelain(output string) []StatusEntry {
	var entries []StatusEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(line) < 4 {
			continue
		}

		path := line[3:]
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+len(" -> "):]
		}
		entries = append(entries, StatusEntry{
			Code: line[:2],
			Path: strings.Trim(path, `"`),
		})
	}
	return entries
}
