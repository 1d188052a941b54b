package exttest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
)

// Command is one external process invocation.
type Command struct {
	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env is the process environment. Nil inherits the current environment.
	Env []string

	Name string
	Args []string
}

func (c Command) argv() []string {
	return slices.Concat([]string{c.Name}, c.Args)
}

// Executor runs external tools. Implementations other than ProcessExecutor
// exist for tests.
type Executor interface {
	// LookPath resolves an executable on PATH.
	LookPath(file string) (string, error)

	// Run runs cmd to completion. A non-zero exit is a *ToolError.
	Run(ctx context.Context, cmd Command) error

	// Output runs cmd and returns its combined stdout and stderr.
	Output(ctx context.Context, cmd Command) (string, error)
}

// ProcessExecutor runs commands as child processes.
type ProcessExecutor struct {
	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
	Logger *slog.Logger
}

var _ Executor = (*ProcessExecutor)(nil)

func (e *ProcessExecutor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *ProcessExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (e *ProcessExecutor) command(ctx context.Context, c Command) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	e.logger().Debug("running command", "cmd", cmd.String(), "dir", c.Dir)
	return cmd
}

func (e *ProcessExecutor) Run(ctx context.Context, c Command) error {
	cmd := e.command(ctx, c)
	cmd.Stdout = e.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = e.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	return toolError(c, cmd.Run())
}

func (e *ProcessExecutor) Output(ctx context.Context, c Command) (string, error) {
	var buf bytes.Buffer
	cmd := e.command(ctx, c)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), toolError(c, err)
}

func toolError(c Command, err error) error {
	if err == nil {
		return nil
	}
	te := &ToolError{Dir: c.Dir, Args: c.argv(), ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		te.ExitCode = exitErr.ExitCode()
	}
	return te
}
