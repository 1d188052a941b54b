package exttest

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every error returned by this module that belongs to one of
// these kinds wraps the matching sentinel so callers can use errors.Is.
var (
	// ErrConfiguration marks an invalid declaration, preset or flag combination.
	ErrConfiguration = errors.New("configuration error")

	// ErrEnvironment marks a missing external tool or project file.
	ErrEnvironment = errors.New("environment error")

	// ErrToolInvocation marks an external process that exited unsuccessfully.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrVersionParse marks a compiler version string that does not match the
	// expected pattern.
	ErrVersionParse = errors.New("version parse error")
)

// Configf returns an error of kind ErrConfiguration.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Environmentf returns an error of kind ErrEnvironment.
func Environmentf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEnvironment, fmt.Sprintf(format, args...))
}

// ToolError describes a failed external process.
type ToolError struct {
	Dir      string
	Args     []string
	ExitCode int // -1 if the process could not be started or was killed
	Err      error
}

func (e *ToolError) Error() string {
	cmd := strings.Join(e.Args, " ")
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%s: %q exited with code %d", ErrToolInvocation, cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: %q: %v", ErrToolInvocation, cmd, e.Err)
}

// Is reports ErrToolInvocation as the kind of every ToolError.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolInvocation
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
