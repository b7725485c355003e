// Package lock provides per-project file locking for autocommit.
//
// PlatformIO can build several environments in parallel, and each one
// finishing triggers the post-build hook. Two hooks staging and committing
// the same working tree at once race on .git/index.lock, so runs for a
// project serialize on a flock'd file.
//
// # Usage
//
//	l, err := lock.New("/path/to/project", "")
//	if err != nil {
//	    // Handle error
//	}
//	if err := l.Acquire(); err != nil {
//	    // errors.ErrAlreadyRunning: another hook holds the lock
//	}
//	defer l.Release()
//
// # Lock Files
//
// The lock file is named after a hash of the project path:
//
//	<dir>/autocommit-<project-hash>.lock
//
// where <dir> defaults to the OS temp directory. It contains the PID of
// the holder. A lock file whose PID is no longer running is taken over.
package lock
