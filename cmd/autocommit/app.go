package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/term"

	"github.com/bashhack/autocommit/internal/config"
	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/git"
	"github.com/bashhack/autocommit/internal/hook"
	"github.com/bashhack/autocommit/internal/interact"
	"github.com/bashhack/autocommit/internal/lock"
	"github.com/bashhack/autocommit/internal/logger"
	"github.com/bashhack/autocommit/internal/platformio"
	fwversion "github.com/bashhack/autocommit/internal/version"
	"github.com/bashhack/autocommit/internal/watch"
)

// PostBuildHook runs the commit step once per build
type PostBuildHook interface {
	AfterBuild(ctx context.Context) hook.Result
}

// Locker manages file locking
type Locker interface {
	Acquire() error
	Release() error
}

// AppOptions contains app configuration and dependencies.
// Nil optional dependencies are replaced with defaults in NewApp or Initialize.
type AppOptions struct {
	// Config holds the application configuration settings (required).
	// The application will panic if this field is nil.
	Config *config.Config

	// Optional components

	// Logger provides logging functionality (optional, created from Config if nil).
	Logger logger.Logger

	// Locker serializes hook runs per project (optional, created from Config if nil
	// and locking is enabled).
	Locker Locker

	// Hook performs the version read and git commit (optional, created from Config if nil).
	Hook PostBuildHook

	// I/O dependencies

	// Stdout is the writer for standard output (optional, defaults to os.Stdout).
	Stdout io.Writer

	// Stderr is the writer for error output (optional, defaults to os.Stderr).
	Stderr io.Writer

	// Stdin is read when install asks before overwriting (optional, defaults to os.Stdin).
	Stdin io.Reader

	// System dependencies

	// Exit is the function to terminate the application (optional, defaults to os.Exit).
	Exit func(code int)

	// ExecLookPath is used to find executables in PATH (optional, defaults to exec.LookPath).
	ExecLookPath func(file string) (string, error)

	// IsRepository checks if a path is a valid Git repository (optional, defaults to git.IsRepository).
	IsRepository func(string) (bool, error)

	// Executable returns the path of the running binary (optional, defaults to os.Executable).
	// The install command writes it into the PlatformIO script.
	Executable func() (string, error)
}

// App is the main autocommit application.
// It wires configuration, logging, locking and the post-build hook, and
// backs each CLI command.
type App struct {
	// Config holds the application configuration and settings.
	Config *config.Config

	// Logger provides logging functionality for both internal and user-facing messages.
	Logger logger.Logger

	// Locker serializes hook runs for the project.
	Locker Locker

	// Hook is the post-build commit action.
	Hook PostBuildHook

	// I/O streams

	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader

	// System dependencies

	exit         func(code int)
	execLookPath func(file string) (string, error)
	isRepository func(string) (bool, error)
	executable   func() (string, error)

	initialized bool
}

// NewDefaultApp creates an App with standard dependencies.
func NewDefaultApp(versionInfo config.VersionInfo) *App {
	cfg := config.New()
	cfg.VersionInfo = versionInfo

	return NewApp(AppOptions{
		Config:       cfg,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Stdin:        os.Stdin,
		Exit:         os.Exit,
		ExecLookPath: exec.LookPath,
		IsRepository: git.IsRepository,
		Executable:   os.Executable,
	})
}

// NewApp creates an App with custom dependencies specified in opts.
//
// Panics:
//   - If opts.Config is nil
func NewApp(opts AppOptions) *App {
	if opts.Config == nil {
		panic("Config is required in AppOptions")
	}

	app := &App{
		Config:       opts.Config,
		Logger:       opts.Logger,
		Locker:       opts.Locker,
		Hook:         opts.Hook,
		Stdout:       opts.Stdout,
		Stderr:       opts.Stderr,
		Stdin:        opts.Stdin,
		exit:         opts.Exit,
		execLookPath: opts.ExecLookPath,
		isRepository: opts.IsRepository,
		executable:   opts.Executable,
	}

	if app.Stdout == nil {
		app.Stdout = os.Stdout
	}
	if app.Stderr == nil {
		app.Stderr = os.Stderr
	}
	if app.Stdin == nil {
		app.Stdin = os.Stdin
	}
	if app.exit == nil {
		app.exit = os.Exit
	}
	if app.execLookPath == nil {
		app.execLookPath = exec.LookPath
	}
	if app.isRepository == nil {
		app.isRepository = git.IsRepository
	}
	if app.executable == nil {
		app.executable = os.Executable
	}

	return app
}

// Initialize validates the configuration and sets up components not
// provided during construction. It is safe to call more than once.
func (a *App) Initialize() error {
	if a.initialized {
		return nil
	}

	if err := a.Config.Finalize(); err != nil {
		if acErrors.Is(err, acErrors.ErrInvalidConfiguration) {
			return err
		}
		return acErrors.Wrap(acErrors.ErrInvalidConfiguration, err.Error())
	}

	if a.Logger == nil {
		a.Logger = logger.NewWithOutput(a.Config.Debug, a.Config.LogFile, a.Config.Verbose, a.Stdout, a.Stderr)
	}
	if a.Config.ConfigFile != "" {
		a.Logger.Info("Loaded config file %s", a.Config.ConfigFile)
	}

	if a.Locker == nil && !a.Config.NoLock {
		locker, err := lock.New(a.Config.ProjectDir, a.Config.LockDir)
		if err != nil {
			return acErrors.Wrap(err, "failed to initialize lock")
		}
		a.Locker = locker
	}

	if a.Hook == nil {
		var locker hook.Locker
		if a.Locker != nil {
			locker = a.Locker
		}
		h := hook.New(hook.Options{
			ProjectDir:    a.Config.ProjectDir,
			VersionFile:   a.Config.VersionFile,
			MessagePrefix: a.Config.MessagePrefix,
			DryRun:        a.Config.DryRun,
		}, git.NewRepository(a.Config.ProjectDir), locker, a.Logger)
		h.SetOutput(a.Stdout)
		a.Hook = h
	}

	a.initialized = true
	return nil
}

// RunHook runs the post-build hook once. Git problems are logged and
// swallowed unless Config.Strict is set.
func (a *App) RunHook(ctx context.Context) error {
	if err := a.checkRequiredCommands(); err != nil {
		a.Logger.Error("Git commit failed: %v", err)
		if a.Config.Strict {
			return err
		}
		return nil
	}

	res := a.Hook.AfterBuild(ctx)
	if res.Err != nil && a.Config.Strict {
		return res.Err
	}
	return nil
}

// Watch runs the hook after every write to the configured build artifacts
// until ctx is canceled.
func (a *App) Watch(ctx context.Context) error {
	if err := a.checkRequiredCommands(); err != nil {
		return err
	}

	isRepo, err := a.isRepository(a.Config.ProjectDir)
	if err != nil {
		a.Logger.Warning("Failed to check if path is a git repository: %v", err)
		return acErrors.Wrap(acErrors.ErrGitOperationFailed, err.Error())
	}
	if !isRepo {
		return acErrors.Wrap(acErrors.ErrNotGitRepository, a.Config.ProjectDir)
	}

	artifacts := a.Config.Artifacts
	if len(artifacts) == 0 {
		artifacts, err = watch.Discover(a.Config.ProjectDir)
		if err != nil {
			return acErrors.Wrap(acErrors.ErrHookRegistration, err.Error())
		}
	}

	w, err := watch.New(artifacts, a.Config.Debounce, func(ctx context.Context) {
		res := a.Hook.AfterBuild(ctx)
		if res.Skipped != "" {
			a.Logger.Info("Hook skipped: %s", res.Skipped)
		}
	}, a.Logger)
	if err != nil {
		a.Logger.Error("Could not register post-build hook: %v", err)
		return err
	}
	defer func() {
		if err := w.Close(); err != nil {
			a.Logger.Warning("Failed to close file watcher: %v", err)
		}
	}()

	a.Logger.InfoToUser("Watching %d build artifact(s), press Ctrl+C to stop", len(w.Artifacts()))
	if err := w.Run(ctx); err != nil {
		return err
	}
	a.Logger.InfoToUser("Hook ran %d time(s)", w.Runs())
	return nil
}

// Install writes the PlatformIO extra script that calls `autocommit run`.
func (a *App) Install() error {
	binary, err := a.executable()
	if err != nil {
		a.Logger.Warning("Cannot resolve own executable, using PATH lookup: %v", err)
		binary = "autocommit"
	}

	var interactor interact.UserInteractor = interact.NewNonInteractiveInteractor()
	if !a.Config.NonInteractive && a.stdinIsInteractive() {
		interactor = &interact.DefaultInteractor{Reader: a.Stdin, Writer: a.Stdout}
	}

	inst, err := platformio.Install(platformio.InstallOptions{
		ProjectDir: a.Config.ProjectDir,
		Binary:     binary,
		RunArgs:    a.runArgs(),
		Version:    a.Config.VersionInfo.Version,
		Force:      a.Config.Force,
		Interactor: interactor,
	})
	if err != nil {
		a.Logger.Error("Could not register post-build hook: %v", err)
		return err
	}

	if inst.Written {
		a.Logger.Success("Wrote %s", inst.ScriptPath)
	} else {
		a.Logger.InfoToUser("%s is up to date", inst.ScriptPath)
	}

	if inst.IniConfigured {
		a.Logger.InfoToUser("%s already loads the hook", platformio.IniFileName)
	} else {
		a.Logger.WarningToUser("Add this line to each [env] section of %s:", platformio.IniFileName)
		_, _ = fmt.Fprintf(a.Stdout, "\n    %s\n\n", inst.IniLine)
	}
	return nil
}

// stdinIsInteractive is false when stdin is a file that is not a terminal,
// such as under CI or when piped.
func (a *App) stdinIsInteractive() bool {
	if f, ok := a.Stdin.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return true
}

// runArgs carries non-default settings into the generated script so the
// build-time invocation behaves like this one.
func (a *App) runArgs() []string {
	var args []string
	if a.Config.VersionFile != fwversion.DefaultFileName {
		args = append(args, "--version-file", quoteArg(a.Config.VersionFile))
	}
	if a.Config.MessagePrefix != fwversion.DefaultMessagePrefix {
		args = append(args, "--prefix", quoteArg(a.Config.MessagePrefix))
	}
	if !a.Config.Verbose {
		args = append(args, "--quiet")
	}
	if a.Config.NoLock {
		args = append(args, "--no-lock")
	}
	return args
}

func quoteArg(s string) string {
	return fmt.Sprintf("%q", s)
}

// ShowVersion displays version information
func (a *App) ShowVersion() {
	_, _ = fmt.Fprintf(a.Stdout, "autocommit %s (%s) built on %s\n",
		a.Config.VersionInfo.Version,
		a.Config.VersionInfo.Commit,
		a.Config.VersionInfo.Date)
}

// checkRequiredCommands verifies git is available in PATH
func (a *App) checkRequiredCommands() error {
	if _, err := a.execLookPath("git"); err != nil {
		return acErrors.Wrap(acErrors.ErrGitOperationFailed, "git is not found in PATH")
	}
	return nil
}

// Close releases resources held by the App
func (a *App) Close() error {
	var errs []error

	if a.Locker != nil {
		if err := a.Locker.Release(); err != nil {
			if a.Logger != nil {
				a.Logger.Error("Failed to release lock during cleanup: %v", err)
			} else {
				_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to release lock during cleanup: %v\n", err)
			}
			errs = append(errs, err)
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			_, _ = fmt.Fprintf(a.Stderr, "❌ Failed to close logger: %v\n", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return acErrors.Join(errs...)
	}
	return nil
}
