package hook

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/git"
	"github.com/bashhack/autocommit/internal/logger"
	"github.com/bashhack/autocommit/internal/version"
)

// Repository is the subset of git operations the hook needs.
type Repository interface {
	IsRepository(ctx context.Context) (bool, error)
	Status(ctx context.Context) ([]git.StatusEntry, error)
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	HeadCommit(ctx context.Context) (string, error)
}

// Locker serializes hook runs for a project.
type Locker interface {
	Acquire() error
	Release() error
}

// Options configures a Hook.
type Options struct {
	// ProjectDir is the project root; the hook changes into it.
	ProjectDir string

	// VersionFile is the version file name, relative to ProjectDir.
	VersionFile string

	// MessagePrefix precedes the version in the commit message.
	MessagePrefix string

	// DryRun reports the planned commit and stops before staging.
	DryRun bool
}

// Skip reasons reported in Result.Skipped.
const (
	SkipNoChanges = "no changes to commit"
	SkipDryRun    = "dry run"
	SkipLocked    = "another run holds the project lock"
)

// Result describes what one hook invocation did.
type Result struct {
	// RunID identifies this invocation in the debug log.
	RunID     string
	Version   string
	Message   string
	Committed bool
	Commit    string
	Skipped   string
	Err       error
}

// Hook is the post-build action: read the version, change into the
// project root, stage everything and commit.
type Hook struct {
	opts   Options
	repo   Repository
	locker Locker
	logger logger.Logger
	stdout io.Writer
	chdir  func(dir string) error
}

// New creates a Hook. locker may be nil to run without locking.
func New(opts Options, repo Repository, locker Locker, log logger.Logger) *Hook {
	if opts.VersionFile == "" {
		opts.VersionFile = version.DefaultFileName
	}
	if opts.MessagePrefix == "" {
		opts.MessagePrefix = version.DefaultMessagePrefix
	}

	return &Hook{
		opts:   opts,
		repo:   repo,
		locker: locker,
		logger: log,
		stdout: os.Stdout,
		chdir:  os.Chdir,
	}
}

// SetOutput sets where the dry-run plan is rendered.
func (h *Hook) SetOutput(w io.Writer) {
	h.stdout = w
}

// SetChdir replaces the working-directory switch, mainly for tests.
func (h *Hook) SetChdir(chdir func(dir string) error) {
	h.chdir = chdir
}

// AfterBuild runs the hook once. Failures are logged and reported in
// Result.Err; AfterBuild itself never fails or panics, so the build that
// triggered it is not affected.
func (h *Hook) AfterBuild(ctx context.Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = acErrors.Errorf("post-build hook panicked: %v", r)
			h.logger.Error("Post-build hook aborted: %v", r)
		}
	}()

	res.RunID = uuid.NewString()
	h.logger.Info("Post-build hook started, run %s", res.RunID)
	h.logger.StatusMessage("Post-build hook started")

	v, err := version.Read(h.opts.ProjectDir, h.opts.VersionFile)
	if err != nil {
		h.logger.Warning("Could not read version file, using %q: %v", version.Unknown, err)
	}
	res.Version = v
	res.Message = version.CommitMessage(h.opts.MessagePrefix, v)
	h.logger.InfoToUser("Firmware version: %s", v)

	if err := h.chdir(h.opts.ProjectDir); err != nil {
		res.Err = acErrors.Wrapf(err, "failed to change into project directory %s", h.opts.ProjectDir)
		h.logger.Error("Git commit failed: %v", res.Err)
		return res
	}

	if h.locker != nil {
		if err := h.locker.Acquire(); err != nil {
			if acErrors.Is(err, acErrors.ErrAlreadyRunning) {
				res.Skipped = SkipLocked
				h.logger.WarningToUser("Skipping commit: %v", err)
				return res
			}
			res.Err = acErrors.Wrap(acErrors.ErrLockAcquisitionFailure, err.Error())
			h.logger.Error("Git commit failed: %v", res.Err)
			return res
		}
		defer func() {
			if err := h.locker.Release(); err != nil {
				h.logger.Warning("Failed to release lock: %v", err)
			}
		}()
	}

	if err := h.commit(ctx, &res); err != nil {
		res.Err = err
		h.logger.Error("Git commit failed: %v", err)
	}
	return res
}

// commit performs the git steps. Every error it returns is swallowed by AfterBuild.
func (h *Hook) commit(ctx context.Context, res *Result) error {
	isRepo, err := h.repo.IsRepository(ctx)
	if err != nil {
		return err
	}
	if !isRepo {
		return acErrors.Wrap(acErrors.ErrNotGitRepository, h.opts.ProjectDir)
	}

	entries, err := h.repo.Status(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		res.Skipped = SkipNoChanges
		h.logger.InfoToUser("Nothing to commit, working tree clean")
		return nil
	}
	h.logger.Info("%d changed paths after build", len(entries))

	if h.opts.DryRun {
		res.Skipped = SkipDryRun
		h.logger.InfoToUser("Dry run, would commit: %s", res.Message)
		h.renderPlan(entries)
		return nil
	}

	h.logger.StatusMessage("git add -A")
	if err := h.repo.StageAll(ctx); err != nil {
		return err
	}

	h.logger.StatusMessage("git commit -m '%s'", res.Message)
	if err := h.repo.Commit(ctx, res.Message); err != nil {
		return err
	}
	res.Committed = true

	hash, err := h.repo.HeadCommit(ctx)
	if err != nil {
		h.logger.Warning("Commit created but HEAD could not be read: %v", err)
	}
	res.Commit = hash

	if hash != "" {
		h.logger.Success("Committed %s: %s", hash, res.Message)
	} else {
		h.logger.Success("Committed: %s", res.Message)
	}
	return nil
}

// renderPlan prints the paths that would be staged
func (h *Hook) renderPlan(entries []git.StatusEntry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(h.stdout)
	tw.AppendHeader(table.Row{"Status", "Path"})
	for _, e := range entries {
		tw.AppendRow(table.Row{e.Code, e.Path})
	}
	tw.AppendFooter(table.Row{"Total", len(entries)})
	tw.SetStyle(table.StyleLight)
	tw.Render()
}
