package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bashhack/autocommit/internal/config"
	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/hook"
	"github.com/bashhack/autocommit/internal/logger"
)

// MockHook implements PostBuildHook for testing
type MockHook struct {
	Result hook.Result
	Calls  int
}

func (m *MockHook) AfterBuild(context.Context) hook.Result {
	m.Calls++
	return m.Result
}

// MockLocker implements the Locker interface for testing
type MockLocker struct {
	ReleaseErr    error
	ReleaseCalled bool
}

func (m *MockLocker) Acquire() error { return nil }

func (m *MockLocker) Release() error {
	m.ReleaseCalled = true
	return m.ReleaseErr
}

func newTestApp(t *testing.T) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cfg := config.New()
	cfg.VersionInfo = config.VersionInfo{Version: "1.0.0", Commit: "abc123", Date: "2026-01-01"}

	app := NewApp(AppOptions{
		Config: cfg,
		Stdout: &stdout,
		Stderr: &stderr,
		Stdin:  strings.NewReader(""),
		Exit:   func(int) {},
	})
	return app, &stdout, &stderr
}

func TestNewAppRequiresConfig(t *testing.T) {
	assert.PanicsWithValue(t, "Config is required in AppOptions", func() {
		NewApp(AppOptions{})
	})
}

func TestNewAppDefaults(t *testing.T) {
	app := NewApp(AppOptions{Config: config.New()})

	assert.Equal(t, os.Stdout, app.Stdout)
	assert.Equal(t, os.Stderr, app.Stderr)
	assert.NotNil(t, app.exit)
	assert.NotNil(t, app.execLookPath)
	assert.NotNil(t, app.isRepository)
	assert.NotNil(t, app.executable)
}

func TestAppRunHook(t *testing.T) {
	gitFailure := acErrors.NewGitError("commit", nil, acErrors.ErrGitOperationFailed, "fatal: unable to create index.lock")

	tests := map[string]struct {
		strict       bool
		gitMissing   bool
		hookErr      error
		wantErr      bool
		wantHookRuns int
		wantStderr   string
	}{
		"Success": {
			wantHookRuns: 1,
		},
		"GitFailureIsSwallowed": {
			hookErr:      gitFailure,
			wantHookRuns: 1,
		},
		"GitFailureWithStrict": {
			strict:       true,
			hookErr:      gitFailure,
			wantErr:      true,
			wantHookRuns: 1,
		},
		"GitMissingIsSwallowed": {
			gitMissing: true,
			wantStderr: "git is not found in PATH",
		},
		"GitMissingWithStrict": {
			strict:     true,
			gitMissing: true,
			wantErr:    true,
			wantStderr: "git is not found in PATH",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			app, _, stderr := newTestApp(t)
			app.Config.Strict = tc.strict
			app.Logger = logger.NewWithOutput(false, "", true, app.Stdout, stderr)

			mockHook := &MockHook{Result: hook.Result{Err: tc.hookErr}}
			app.Hook = mockHook
			app.execLookPath = func(string) (string, error) {
				if tc.gitMissing {
					return "", errors.New("executable file not found in $PATH")
				}
				return "/usr/bin/git", nil
			}

			err := app.RunHook(context.Background())

			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, acErrors.Is(err, acErrors.ErrGitOperationFailed))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.wantHookRuns, mockHook.Calls)
			if tc.wantStderr != "" {
				assert.Contains(t, stderr.String(), tc.wantStderr)
			}
		})
	}
}

func TestAppInitialize(t *testing.T) {
	t.Run("CreatesComponents", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		app.Config.ProjectDir = t.TempDir()
		app.Config.LockDir = t.TempDir()

		require.NoError(t, app.Initialize())
		assert.NotNil(t, app.Logger)
		assert.NotNil(t, app.Locker)
		assert.NotNil(t, app.Hook)

		// Second call keeps the same components
		h := app.Hook
		require.NoError(t, app.Initialize())
		assert.Same(t, h, app.Hook)
	})

	t.Run("NoLock", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		app.Config.ProjectDir = t.TempDir()
		app.Config.NoLock = true

		require.NoError(t, app.Initialize())
		assert.Nil(t, app.Locker)
		assert.NotNil(t, app.Hook)
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		app.Config.ProjectDir = filepath.Join(t.TempDir(), "missing")

		err := app.Initialize()
		require.Error(t, err)
		assert.True(t, acErrors.Is(err, acErrors.ErrInvalidConfiguration))
	})
}

func TestAppShowVersion(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	app.ShowVersion()
	assert.Equal(t, "autocommit 1.0.0 (abc123) built on 2026-01-01\n", stdout.String())
}

func TestAppClose(t *testing.T) {
	t.Run("ReleasesLock", func(t *testing.T) {
		app, _, _ := newTestApp(t)
		locker := &MockLocker{}
		app.Locker = locker

		require.NoError(t, app.Close())
		assert.True(t, locker.ReleaseCalled)
	})

	t.Run("ReportsReleaseFailure", func(t *testing.T) {
		app, _, stderr := newTestApp(t)
		app.Locker = &MockLocker{ReleaseErr: fmt.Errorf("bad descriptor")}

		err := app.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad descriptor")
		assert.Contains(t, stderr.String(), "Failed to release lock during cleanup")
	})
}

func TestAppInstall(t *testing.T) {
	app, stdout, _ := newTestApp(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "platformio.ini"), []byte("[env:uno]\nplatform = atmelavr\n"), 0o644))

	app.Config.ProjectDir = dir
	app.Config.NoLock = true
	app.Config.MessagePrefix = "Build"
	app.executable = func() (string, error) { return "/opt/autocommit/bin/autocommit", nil }
	require.NoError(t, app.Initialize())

	require.NoError(t, app.Install())

	script, err := os.ReadFile(filepath.Join(dir, "autocommit_hook.py"))
	require.NoError(t, err)
	assert.Contains(t, string(script), `/opt/autocommit/bin/autocommit run --project-dir`)
	assert.Contains(t, string(script), `--prefix`)
	assert.Contains(t, string(script), `--no-lock`)
	assert.Contains(t, stdout.String(), "extra_scripts = post:autocommit_hook.py")
}

func TestAppRunArgs(t *testing.T) {
	app, _, _ := newTestApp(t)
	assert.Empty(t, app.runArgs())

	app.Config.VersionFile = "include/version.txt"
	app.Config.Verbose = false
	assert.Equal(t, []string{"--version-file", `"include/version.txt"`, "--quiet"}, app.runArgs())
}
