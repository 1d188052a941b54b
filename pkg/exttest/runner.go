package exttest

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/715d/exttest/pkg/preset"
)

// Runner drives one build system through the external test lifecycle:
//
//	SetupEnvironment → CompilerSettings → (Compile → RunTest)* → Clean
//
// Every method except SetupEnvironment operates on the directory bound by
// SetupEnvironment. Any error is fatal for the run; callers never retry.
type Runner interface {
	// SetupEnvironment binds the runner to testDir and checks that the build
	// system and its manifest are present.
	SetupEnvironment(ctx context.Context, testDir string) error

	// CompilerSettings persists the settings of every preset in the build
	// system's native configuration. Calls with disjoint preset sets accumulate.
	CompilerSettings(ctx context.Context, binary string, presets []preset.Preset) error

	// Compile builds the project with the configuration of p.
	Compile(ctx context.Context, binary string, p preset.Preset) error

	// RunTest runs the project's tests with the configuration of p.
	RunTest(ctx context.Context, p preset.Preset) error

	// Clean removes build artifacts. Best effort.
	Clean(ctx context.Context) error
}

// Hook replaces the default tool invocation of a lifecycle phase. It runs
// with the bound test directory and the runner's environment, which a setup
// hook may modify for the phases that follow.
type Hook func(ctx context.Context, testDir string, env Env) error

// Hooks groups the optional phase overrides of an adapter.
type Hooks struct {
	Setup   Hook
	Compile Hook
	Test    Hook
}

// TestDir is the working directory binding of a runner. Operations call
// Enter instead of changing the process working directory, so nothing has to
// be restored when they return.
type TestDir struct {
	path string
}

// Bind sets the directory. It must exist.
func (d *TestDir) Bind(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve test directory %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Environmentf("test directory %s: %v", abs, err)
	}
	if !info.IsDir() {
		return Environmentf("test directory %s is not a directory", abs)
	}
	d.path = abs
	return nil
}

// Enter returns the bound directory, or an error naming op if the runner has
// not been set up yet.
func (d *TestDir) Enter(op string) (string, error) {
	if d.path == "" {
		return "", Configf("%s: test directory not defined", op)
	}
	return d.path, nil
}

// Path returns the bound directory, or "" before Bind.
func (d *TestDir) Path() string {
	return d.path
}

// Env is a process environment keyed by variable name.
type Env map[string]string

// EnvFromOS returns a copy of the current process environment.
func EnvFromOS() Env {
	env := make(Env)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// Set updates or adds a variable.
func (e Env) Set(key, value string) {
	e[key] = value
}

// Environ returns the environment in KEY=value form, sorted by key.
func (e Env) Environ() []string {
	out := make([]string, 0, len(e))
	for _, k := range slices.Sorted(maps.Keys(e)) {
		out = append(out, k+"="+e[k])
	}
	return out
}

// Clone returns an independent copy of e.
func (e Env) Clone() Env {
	return maps.Clone(e)
}
