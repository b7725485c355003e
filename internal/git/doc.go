// Package git runs the git commands the post-build hook needs.
//
// Commands go through the git executable rather than a Go git library so
// that hooks, attributes and user configuration behave exactly as they do
// on the command line. Execution is behind CommandExecutor, which tests
// replace with a mock.
//
// # Core Components
//
//   - Repository: status, staging, commit and HEAD lookup for one working tree
//   - CommandExecutor: interface for executing git commands
//   - ExecExecutor: os/exec implementation that wraps failures in GitError
//
// # Usage
//
//	repo := git.NewRepository("/path/to/project")
//	if err := repo.StageAll(ctx); err != nil {
//	    // err matches errors.ErrGitOperationFailed
//	}
//	err := repo.Commit(ctx, "Auto-commit: build 1.2.3")
//
// Every command is run as `git -C <path> ...`, so results do not depend on
// the process working directory.
package git
