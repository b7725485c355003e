package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	acErrors "github.com/bashhack/autocommit/internal/errors"
	"github.com/bashhack/autocommit/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() logger.Logger {
	var out, errOut bytes.Buffer
	return logger.NewWithOutput(false, "", true, &out, &errOut)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, env := range []string{"esp32dev", "nodemcu"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pio", "build", env), 0o755))
	}
	// stray file next to the env directories is not an environment
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pio", "build", "project.checksum"), []byte("x"), 0o644))

	got, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, ".pio", "build", "esp32dev", "firmware.bin"),
		filepath.Join(dir, ".pio", "build", "nodemcu", "firmware.bin"),
	}, got)
}

func TestDiscoverNoBuildDir(t *testing.T) {
	got, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRegistrationFailures(t *testing.T) {
	tests := map[string]struct {
		artifacts []string
	}{
		"NoArtifacts": {
			artifacts: nil,
		},
		"MissingDirectory": {
			artifacts: []string{filepath.Join(t.TempDir(), "missing", "firmware.bin")},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			w, err := New(tc.artifacts, time.Millisecond, func(context.Context) {}, testLogger())
			require.Error(t, err)
			assert.Nil(t, w)
			assert.True(t, acErrors.Is(err, acErrors.ErrHookRegistration))
		})
	}
}

func TestWatcherDebouncesArtifactWrites(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "firmware.bin")

	var calls atomic.Int32
	w, err := New([]string{artifact}, 100*time.Millisecond, func(context.Context) {
		calls.Add(1)
	}, testLogger())
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	assert.Equal(t, []string{artifact}, w.Artifacts())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// A linker writes the binary in several chunks
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(artifact, bytes.Repeat([]byte{byte(i)}, 64), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	// Other files in the build directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "firmware.elf"), []byte("elf"), 0o644))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, os.WriteFile(artifact, []byte("second build"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
	assert.Equal(t, 2, w.Runs())
}
