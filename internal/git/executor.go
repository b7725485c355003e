package git

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	acErrors "github.com/bashhack/autocommit/internal/errors"
)

// CommandExecutor defines an interface for executing commands
type CommandExecutor interface {
	// Execute runs a prepared command
	Execute(ctx context.Context, cmd *exec.Cmd) error

	// ExecuteWithOutput runs a prepared command and returns its stdout
	ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error)

	// ExecuteWithContext builds and runs name with args, bound to ctx
	ExecuteWithContext(ctx context.Context, name string, args ...string) error

	// ExecuteWithContextAndOutput builds and runs name with args, bound to ctx,
	// and returns its stdout
	ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error)
}

// ExecExecutor is the default implementation of CommandExecutor
// that delegates to the os/exec package
type ExecExecutor struct{}

// NewExecExecutor creates a new ExecExecutor
func NewExecExecutor() *ExecExecutor {
	return &ExecExecutor{}
}

// Execute implements CommandExecutor.Execute
func (e *ExecExecutor) Execute(ctx context.Context, cmd *exec.Cmd) error {
	_, err := e.ExecuteWithOutput(ctx, cmd)
	return err
}

// ExecuteWithOutput implements CommandExecutor.ExecuteWithOutput
func (e *ExecExecutor) ExecuteWithOutput(ctx context.Context, cmd *exec.Cmd) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Keep the *exec.ExitError reachable for callers that inspect exit codes
		wrapped := acErrors.Errorf("%w: %w", acErrors.ErrGitOperationFailed, err)
		return "", acErrors.NewGitError(operationOf(cmd.Args), argsOf(cmd.Args), wrapped,
			strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// ExecuteWithContext implements CommandExecutor.ExecuteWithContext
func (e *ExecExecutor) ExecuteWithContext(ctx context.Context, name string, args ...string) error {
	return e.Execute(ctx, exec.CommandContext(ctx, name, args...))
}

// ExecuteWithContextAndOutput implements CommandExecutor.ExecuteWithContextAndOutput
func (e *ExecExecutor) ExecuteWithContextAndOutput(ctx context.Context, name string, args ...string) (string, error) {
	return e.ExecuteWithOutput(ctx, exec.CommandContext(ctx, name, args...))
}

// operationOf returns the git subcommand from a full argv, skipping the
// binary name and any "-C <path>" prefix.
func operationOf(argv []string) string {
	args := argsOf(argv)
	for i := 0; i < len(args); i++ {
		if args[i] == "-C" {
			i++
			continue
		}
		if !strings.HasPrefix(args[i], "-") {
			return args[i]
		}
	}
	if len(argv) > 0 {
		return argv[0]
	}
	return ""
}

func argsOf(argv []string) []string {
	if len(argv) > 1 {
		return argv[1:]
	}
	return nil
}
