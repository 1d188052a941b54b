package harness

import (
	"fmt"
	"log/slog"

	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/exttest/foundry"
)

// RunnerKind names the build system adapter a project uses.
type RunnerKind string

const RunnerFoundry RunnerKind = "foundry"

// Project is a test declaration for one external project.
type Project struct {
	// Name identifies the project in logs and run directories.
	Name string `yaml:"name,omitempty"`

	// Runner selects the build system adapter.
	Runner RunnerKind `yaml:"runner"`

	exttest.Declaration `yaml:",inline"`
}

// Config returns the validated test configuration of p compiled with the
// given binary.
func (p *Project) Config(binaryType exttest.BinaryType, binaryPath string) (*exttest.TestConfig, error) {
	d := p.Declaration
	d.Compiler.BinaryType = binaryType
	d.Compiler.BinaryPath = binaryPath
	cfg, err := exttest.New(d)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", p.Name, err)
	}
	return cfg, nil
}

// NewRunner returns the adapter for p.
func (p *Project) NewRunner(cfg *exttest.TestConfig, exec exttest.Executor, logger *slog.Logger) (exttest.Runner, error) {
	switch p.Runner {
	case RunnerFoundry:
		return foundry.New(cfg, foundry.WithExecutor(exec), foundry.WithLogger(logger)), nil
	}
	return nil, exttest.Configf("project %s: unknown runner %q", p.Name, p.Runner)
}
