// Package testutil provides fakes shared by the package tests.
package testutil

import (
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/715d/exttest/pkg/exttest"
)

// Executor is an exttest.Executor that records commands instead of running them.
type Executor struct {
	// Missing lists executables LookPath does not find.
	Missing map[string]bool

	// Outputs maps a command line ("name arg1 arg2") to the output returned by Output.
	Outputs map[string]string

	// ExitCodes maps a command line to a non-zero exit code.
	ExitCodes map[string]int

	// OnRun is called for every Run and Output call before the result is
	// decided. It lets tests create the files a real tool would produce.
	OnRun func(cmd exttest.Command) error

	mu    sync.Mutex
	calls []exttest.Command
}

var _ exttest.Executor = (*Executor)(nil)

// Line returns the command line of cmd as used by Outputs and ExitCodes.
func Line(cmd exttest.Command) string {
	return strings.Join(append([]string{cmd.Name}, cmd.Args...), " ")
}

func (e *Executor) LookPath(file string) (string, error) {
	if e.Missing[file] {
		return "", &exec.Error{Name: file, Err: exec.ErrNotFound}
	}
	return "/usr/bin/" + file, nil
}

func (e *Executor) Run(ctx context.Context, cmd exttest.Command) error {
	_, err := e.Output(ctx, cmd)
	return err
}

func (e *Executor) Output(_ context.Context, cmd exttest.Command) (string, error) {
	e.mu.Lock()
	e.calls = append(e.calls, cmd)
	e.mu.Unlock()

	if e.OnRun != nil {
		if err := e.OnRun(cmd); err != nil {
			return "", err
		}
	}
	line := Line(cmd)
	if code, ok := e.ExitCodes[line]; ok {
		return "", &exttest.ToolError{Dir: cmd.Dir, Args: append([]string{cmd.Name}, cmd.Args...), ExitCode: code}
	}
	return e.Outputs[line], nil
}

// Calls returns the recorded commands.
func (e *Executor) Calls() []exttest.Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]exttest.Command(nil), e.calls...)
}

// Lines returns the command lines of the recorded commands.
func (e *Executor) Lines() []string {
	var lines []string
	for _, c := range e.Calls() {
		lines = append(lines, Line(c))
	}
	return lines
}

// EnvValue returns the value of key in a KEY=value environment.
func EnvValue(env []string, key string) (string, bool) {
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && k == key {
			return v, true
		}
	}
	return "", false
}
