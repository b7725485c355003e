// Package watch runs the post-build hook whenever a build artifact is
// rewritten, for build setups that cannot call autocommit themselves.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/logger"
)

// DefaultProgName is PlatformIO's default ${PROGNAME}.
const DefaultProgName = "firmware"

// Trigger is called once per settled artifact write.
type Trigger func(ctx context.Context)

// Watcher watches artifact files via their parent directories.
type Watcher struct {
	artifacts map[string]struct{}
	debounce  time.Duration
	trigger   Trigger
	logger    logger.Logger
	watcher   *fsnotify.Watcher
	runs      int
}

// Discover returns <projectDir>/.pio/build/<env>/firmware.bin for every
// build environment directory that exists.
func Discover(projectDir string) ([]string, error) {
	envDirs, err := filepath.Glob(filepath.Join(projectDir, ".pio", "build", "*"))
	if err != nil {
		return nil, err
	}

	var artifacts []string
	for _, dir := range envDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			artifacts = append(artifacts, filepath.Join(dir, DefaultProgName+".bin"))
		}
	}
	sort.Strings(artifacts)
	return artifacts, nil
}

// New registers watches for artifacts. Each artifact's directory must
// exist. Failures wrap ErrHookRegistration.
func New(artifacts []string, debounce time.Duration, trigger Trigger, log logger.Logger) (*Watcher, error) {
	if len(artifacts) == 0 {
		return nil, acErrors.Wrap(acErrors.ErrHookRegistration, "no build artifacts to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, acErrors.Wrap(acErrors.ErrHookRegistration, err.Error())
	}

	w := &Watcher{
		artifacts: make(map[string]struct{}, len(artifacts)),
		debounce:  debounce,
		trigger:   trigger,
		logger:    log,
		watcher:   fsw,
	}

	dirs := make(map[string]struct{})
	for _, artifact := range artifacts {
		abs, err := filepath.Abs(artifact)
		if err != nil {
			_ = fsw.Close()
			return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "%s: %v", artifact, err)
		}
		w.artifacts[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, seen := dirs[dir]; seen {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, acErrors.Wrapf(acErrors.ErrHookRegistration, "cannot watch %s: %v", dir, err)
		}
		dirs[dir] = struct{}{}
		log.Info("Watching %s", abs)
	}

	return w, nil
}

// Artifacts returns the watched artifact paths, sorted.
func (w *Watcher) Artifacts() []string {
	out := make([]string, 0, len(w.artifacts))
	for a := range w.artifacts {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Runs returns how many times the trigger has fired.
func (w *Watcher) Runs() int {
	return w.runs
}

// Run blocks until ctx is canceled. The trigger runs on this goroutine, so
// hook invocations never overlap.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Received cancellation signal, stopping watcher")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.matches(event) {
				continue
			}
			w.logger.Info("Artifact event: %s", event)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.runs++
			w.trigger(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warning("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) matches(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	_, ok := w.artifacts[filepath.Clean(event.Name)]
	return ok
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
