package lock

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	acErrors "github.com/bashhack/autocommit/internal/errors"
)

// Locker serializes autocommit runs for one project using a flock'd file.
// Parallel PlatformIO environments finish their builds at nearly the same
// time, and two concurrent `git add`/`git commit` pairs fight over .git/index.lock.
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
	acquired bool
}

// New creates a Locker for the specified project path. The lock file lives
// in dir, or in the OS temp directory when dir is empty.
func New(projectPath, dir string) (*Locker, error) {
	if projectPath == "" {
		return nil, acErrors.NewLockError("", 0,
			acErrors.Wrap(acErrors.ErrLockAcquisitionFailure, "project path must not be empty"))
	}
	if dir == "" {
		dir = os.TempDir()
	}

	projectHash := fmt.Sprintf("%x", sha256.Sum256([]byte(projectPath)))[:16]
	return &Locker{
		lockFile: filepath.Join(dir, fmt.Sprintf("autocommit-%s.lock", projectHash)),
		pid:      os.Getpid(),
	}, nil
}

// Path returns the lock file location.
func (l *Locker) Path() string {
	return l.lockFile
}

// Acquire tries to acquire the lock without blocking.
func (l *Locker) Acquire() error {
	if l.acquired {
		return nil
	}

	err := l.tryCreateLock()
	if err == nil {
		return nil
	}
	if os.IsExist(err) {
		return l.tryAcquireExistingLock()
	}
	return err
}

// tryCreateLock creates the lock file atomically and locks it
func (l *Locker) tryCreateLock() error {
	var err error

	l.lockFd, err = os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		// Passed through untouched so os.IsExist works on it
		if os.IsExist(err) {
			return err
		}
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to create lock file"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to acquire lock on newly created lock file"))
	}

	return l.finishAcquire(l.writePidToLockFile)
}

// tryAcquireExistingLock acquires a lock on an existing lock file
func (l *Locker) tryAcquireExistingLock() error {
	var err error
	l.lockFd, err = os.OpenFile(l.lockFile, os.O_RDWR, 0o666)
	if err != nil {
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to open existing lock file"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()

		// Some older systems report EWOULDBLOCK and EAGAIN as distinct codes
		if acErrors.Is(err, unix.EWOULDBLOCK) || acErrors.Is(err, unix.EAGAIN) {
			return l.handleBlockedLock()
		}

		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to acquire lock"))
	}

	return l.finishAcquire(l.resetAndWritePid)
}

// finishAcquire records our PID and marks the lock as held
func (l *Locker) finishAcquire(writePid func() error) error {
	if err := writePid(); err != nil {
		if releaseErr := l.Release(); releaseErr != nil {
			return acErrors.Wrapf(err, "failed to write PID and failed to release lock: %v", releaseErr)
		}
		return err
	}

	l.acquired = true
	return nil
}

// handleBlockedLock is reached when another process holds the flock
func (l *Locker) handleBlockedLock() error {
	otherPid, pidErr := l.readLockFilePid()
	if pidErr != nil {
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(acErrors.ErrAlreadyRunning, pidErr.Error()))
	}

	if isProcessRunning(otherPid) {
		return acErrors.NewLockError(l.lockFile, otherPid, acErrors.ErrAlreadyRunning)
	}

	return l.handleStaleLock(otherPid)
}

func (l *Locker) acquireFlock() error {
	return unix.Flock(int(l.lockFd.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func (l *Locker) resetAndWritePid() error {
	if err := l.lockFd.Truncate(0); err != nil {
		return acErrors.NewLockError(l.lockFile, l.pid,
			acErrors.Wrap(err, "failed to truncate lock file"))
	}

	return l.writePidToLockFile()
}

func (l *Locker) writePidToLockFile() error {
	if _, err := l.lockFd.WriteAt([]byte(strconv.Itoa(l.pid)), 0); err != nil {
		return acErrors.NewLockError(l.lockFile, l.pid,
			acErrors.Wrap(err, "failed to write PID to lock file"))
	}
	return nil
}

func (l *Locker) closeFileDescriptor() {
	if l.lockFd != nil {
		_ = l.lockFd.Close()
		l.lockFd = nil
	}
}

// isProcessRunning checks if a process exists using signal 0
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}

// handleStaleLock removes a lock left behind by a dead process and takes it over
func (l *Locker) handleStaleLock(otherPid int) error {
	l.closeFileDescriptor()

	if err := os.Remove(l.lockFile); err != nil && !os.IsNotExist(err) {
		return acErrors.NewLockError(l.lockFile, otherPid,
			acErrors.Wrapf(err, "found stale lock file from PID %d, but failed to remove it", otherPid))
	}

	var err error
	l.lockFd, err = os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o666)
	if err != nil {
		if os.IsExist(err) {
			return acErrors.NewLockError(l.lockFile, 0,
				acErrors.Wrap(acErrors.ErrAlreadyRunning, "lock was taken immediately after removing the stale lock"))
		}
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to open lock file after removing stale lock"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()
		return acErrors.NewLockError(l.lockFile, 0,
			acErrors.Wrap(err, "failed to acquire lock even after removing stale lock"))
	}

	return l.finishAcquire(l.writePidToLockFile)
}

func (l *Locker) readLockFilePid() (int, error) {
	data, err := os.ReadFile(l.lockFile)
	if err != nil {
		return 0, acErrors.Wrap(err, "failed to read lock file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, acErrors.Wrap(err, "invalid PID in lock file")
	}

	return pid, nil
}

// Release unlocks and removes the lock file. It is a no-op when the lock
// is not held.
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}

	var err error
	if flockErr := unix.Flock(int(l.lockFd.Fd()), unix.LOCK_UN); flockErr != nil {
		err = acErrors.NewLockError(l.lockFile, l.pid,
			acErrors.Wrap(flockErr, "failed to release lock"))
	}

	// Close and remove even if unlocking failed
	if closeErr := l.lockFd.Close(); closeErr != nil && err == nil {
		err = acErrors.NewLockError(l.lockFile, l.pid,
			acErrors.Wrap(closeErr, "failed to close lock file"))
	}

	l.lockFd = nil
	l.acquired = false

	if removeErr := os.Remove(l.lockFile); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = acErrors.NewLockError(l.lockFile, l.pid,
			acErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	return err
}
