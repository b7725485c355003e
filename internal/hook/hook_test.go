package hook

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/git"
	"github.com/bashhack/autocommit/internal/logger"
)

// fakeRepo records the git operations the hook performs.
type fakeRepo struct {
	isRepo    bool
	isRepoErr error
	status    []git.StatusEntry
	statusErr error
	stageErr  error
	commitErr error
	head      string
	panicOn   string

	staged    bool
	committed []string
}

func (f *fakeRepo) IsRepository(context.Context) (bool, error) {
	return f.isRepo, f.isRepoErr
}

func (f *fakeRepo) Status(context.Context) ([]git.StatusEntry, error) {
	if f.panicOn == "status" {
		panic("status exploded")
	}
	return f.status, f.statusErr
}

func (f *fakeRepo) StageAll(context.Context) error {
	f.staged = true
	return f.stageErr
}

func (f *fakeRepo) Commit(_ context.Context, message string) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, message)
	return nil
}

func (f *fakeRepo) HeadCommit(context.Context) (string, error) {
	return f.head, nil
}

type fakeLocker struct {
	acquireErr error
	acquired   int
	released   int
}

func (l *fakeLocker) Acquire() error {
	if l.acquireErr != nil {
		return l.acquireErr
	}
	l.acquired++
	return nil
}

func (l *fakeLocker) Release() error {
	l.released++
	return nil
}

func dirtyRepo() *fakeRepo {
	return &fakeRepo{
		isRepo: true,
		status: []git.StatusEntry{{Code: " M", Path: "src/main.cpp"}},
		head:   "abc1234",
	}
}

func newTestHook(t *testing.T, projectDir string, repo Repository, locker Locker) (*Hook, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	log := logger.NewWithOutput(false, "", true, &stdout, &stderr)

	h := New(Options{ProjectDir: projectDir}, repo, locker, log)
	h.SetOutput(&stdout)
	h.SetChdir(func(dir string) error {
		if dir != projectDir {
			return errors.New("unexpected directory " + dir)
		}
		return nil
	})
	return h, &stdout, &stderr
}

func writeVersion(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "firmware_version.txt"), []byte(content), 0o644))
}

func TestAfterBuildCommitMessage(t *testing.T) {
	tests := map[string]struct {
		versionFile *string
		wantVersion string
		wantMessage string
	}{
		"VersionFilePresent": {
			versionFile: strPtr("1.2.3"),
			wantVersion: "1.2.3",
			wantMessage: "Auto-commit: build 1.2.3",
		},
		"VersionFileWithNewline": {
			versionFile: strPtr("1.2.3\n"),
			wantVersion: "1.2.3",
			wantMessage: "Auto-commit: build 1.2.3",
		},
		"VersionFileMissing": {
			wantVersion: "unknown",
			wantMessage: "Auto-commit: build unknown",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if tc.versionFile != nil {
				writeVersion(t, dir, *tc.versionFile)
			}

			repo := dirtyRepo()
			h, stdout, _ := newTestHook(t, dir, repo, nil)

			res := h.AfterBuild(context.Background())

			require.NoError(t, res.Err)
			assert.True(t, res.Committed)
			assert.Len(t, res.RunID, 36)
			assert.Equal(t, tc.wantVersion, res.Version)
			assert.Equal(t, tc.wantMessage, res.Message)
			assert.True(t, repo.staged)
			assert.Equal(t, []string{tc.wantMessage}, repo.committed)
			assert.Equal(t, "abc1234", res.Commit)
			assert.Contains(t, stdout.String(), "Firmware version: "+tc.wantVersion)
			assert.Contains(t, stdout.String(), "git commit -m '"+tc.wantMessage+"'")
		})
	}
}

func TestAfterBuildSwallowsGitFailures(t *testing.T) {
	gitFailure := acErrors.NewGitError("commit", nil, acErrors.Wrap(acErrors.ErrGitOperationFailed, "exit status 1"), "")

	tests := map[string]struct {
		repo       *fakeRepo
		wantErrIs  error
		wantStaged bool
	}{
		"StageFails": {
			repo:      &fakeRepo{isRepo: true, status: dirtyRepo().status, stageErr: gitFailure},
			wantErrIs: acErrors.ErrGitOperationFailed,
		},
		"CommitFails": {
			repo:       &fakeRepo{isRepo: true, status: dirtyRepo().status, commitErr: gitFailure},
			wantErrIs:  acErrors.ErrGitOperationFailed,
			wantStaged: true,
		},
		"StatusFails": {
			repo:      &fakeRepo{isRepo: true, statusErr: gitFailure},
			wantErrIs: acErrors.ErrGitOperationFailed,
		},
		"RepositoryCheckFails": {
			repo:      &fakeRepo{isRepoErr: gitFailure},
			wantErrIs: acErrors.ErrGitOperationFailed,
		},
		"NotARepository": {
			repo:      &fakeRepo{isRepo: false},
			wantErrIs: acErrors.ErrNotGitRepository,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeVersion(t, dir, "1.2.3")
			h, _, stderr := newTestHook(t, dir, tc.repo, nil)

			var res Result
			require.NotPanics(t, func() {
				res = h.AfterBuild(context.Background())
			})

			assert.False(t, res.Committed)
			require.Error(t, res.Err)
			assert.True(t, acErrors.Is(res.Err, tc.wantErrIs))
			assert.Equal(t, tc.wantStaged, tc.repo.staged)
			assert.Contains(t, stderr.String(), "Git commit failed")
		})
	}
}

func TestAfterBuildRecoversFromPanic(t *testing.T) {
	repo := dirtyRepo()
	repo.panicOn = "status"
	h, _, stderr := newTestHook(t, t.TempDir(), repo, nil)

	var res Result
	require.NotPanics(t, func() {
		res = h.AfterBuild(context.Background())
	})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "status exploded")
	assert.Contains(t, stderr.String(), "aborted")
}

func TestAfterBuildChdirFailure(t *testing.T) {
	repo := dirtyRepo()
	h, _, _ := newTestHook(t, t.TempDir(), repo, nil)
	h.SetChdir(func(string) error { return os.ErrPermission })

	res := h.AfterBuild(context.Background())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, os.ErrPermission)
	assert.False(t, repo.staged)
}

func TestAfterBuildNoChanges(t *testing.T) {
	repo := &fakeRepo{isRepo: true}
	h, stdout, _ := newTestHook(t, t.TempDir(), repo, nil)

	res := h.AfterBuild(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, SkipNoChanges, res.Skipped)
	assert.False(t, repo.staged)
	assert.Contains(t, stdout.String(), "Nothing to commit")
}

func TestAfterBuildDryRun(t *testing.T) {
	dir := t.TempDir()
	writeVersion(t, dir, "2.0.0")
	repo := dirtyRepo()
	h, stdout, _ := newTestHook(t, dir, repo, nil)
	h.opts.DryRun = true

	res := h.AfterBuild(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, SkipDryRun, res.Skipped)
	assert.False(t, repo.staged)
	assert.Empty(t, repo.committed)
	assert.Contains(t, stdout.String(), "Dry run, would commit: Auto-commit: build 2.0.0")
	assert.Contains(t, stdout.String(), "src/main.cpp")
}

func TestAfterBuildLocking(t *testing.T) {
	t.Run("ReleasesAfterCommit", func(t *testing.T) {
		locker := &fakeLocker{}
		h, _, _ := newTestHook(t, t.TempDir(), dirtyRepo(), locker)

		res := h.AfterBuild(context.Background())
		require.NoError(t, res.Err)
		assert.Equal(t, 1, locker.acquired)
		assert.Equal(t, 1, locker.released)
	})

	t.Run("SkipsWhenAnotherRunHoldsLock", func(t *testing.T) {
		locker := &fakeLocker{acquireErr: acErrors.NewLockError("/tmp/x.lock", 42, acErrors.ErrAlreadyRunning)}
		repo := dirtyRepo()
		h, _, _ := newTestHook(t, t.TempDir(), repo, locker)

		res := h.AfterBuild(context.Background())
		require.NoError(t, res.Err)
		assert.Equal(t, SkipLocked, res.Skipped)
		assert.False(t, repo.staged)
		assert.Equal(t, 0, locker.released)
	})

	t.Run("LockFailureIsSwallowed", func(t *testing.T) {
		locker := &fakeLocker{acquireErr: errors.New("read-only file system")}
		h, _, _ := newTestHook(t, t.TempDir(), dirtyRepo(), locker)

		res := h.AfterBuild(context.Background())
		require.Error(t, res.Err)
		assert.True(t, acErrors.Is(res.Err, acErrors.ErrLockAcquisitionFailure))
	})
}

func TestAfterBuildAgainstRealGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.name", "autocommit test"},
		{"config", "user.email", "autocommit@example.com"},
		{"config", "commit.gpgsign", "false"},
	} {
		out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
		require.NoError(t, err, string(out))
	}

	writeVersion(t, dir, "1.2.3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.cpp"), []byte("int main() {}\n"), 0o644))

	var stdout, stderr bytes.Buffer
	log := logger.NewWithOutput(false, "", true, &stdout, &stderr)
	h := New(Options{ProjectDir: dir}, git.NewRepository(dir), nil, log)

	// The hook changes the process working directory; restore it afterwards
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(wd) })

	res := h.AfterBuild(context.Background())
	require.NoError(t, res.Err, stderr.String())
	assert.True(t, res.Committed)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	resolvedDir, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	resolvedCwd, err := filepath.EvalSymlinks(cwd)
	require.NoError(t, err)
	assert.Equal(t, resolvedDir, resolvedCwd)

	out, err := exec.Command("git", "-C", dir, "log", "-1", "--pretty=%s").Output()
	require.NoError(t, err)
	assert.Equal(t, "Auto-commit: build 1.2.3\n", string(out))

	// A second build with nothing new is skipped, not failed
	res = h.AfterBuild(context.Background())
	require.NoError(t, res.Err)
	assert.Equal(t, SkipNoChanges, res.Skipped)
}

func strPtr(s string) *string { return &s }
