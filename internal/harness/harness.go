// Package harness runs external projects against the compiler under test.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/715d/exttest/internal/gitsrc"
	"github.com/715d/exttest/internal/solc"
	"github.com/715d/exttest/internal/workspace"
	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/preset"
)

// CompileOnlyEnv, when set to "1", skips the test step of every preset.
const CompileOnlyEnv = "COMPILE_ONLY"

// Toolchain prepares the compiler under test.
type Toolchain interface {
	Setup(ctx context.Context, cfg exttest.CompilerConfig, testDir string) (solc.Compiler, error)
}

// Downloader fetches the project under test.
type Downloader interface {
	Download(ctx context.Context, dir string, src gitsrc.Source) (string, error)
}

// TestHarness manages test execution. Runs are strictly sequential.
type TestHarness struct {
	toolchain  Toolchain
	downloader Downloader
	exec       exttest.Executor
	logger     *slog.Logger

	// tempRoot is where run directories are created; empty means os.TempDir.
	tempRoot string
}

// Option configures a TestHarness.
type Option func(*TestHarness)

// WithToolchain replaces the compiler setup.
func WithToolchain(t Toolchain) Option {
	return func(h *TestHarness) { h.toolchain = t }
}

// WithDownloader replaces the project download.
func WithDownloader(d Downloader) Option {
	return func(h *TestHarness) { h.downloader = d }
}

// WithTempRoot sets the directory run directories are created in.
func WithTempRoot(dir string) Option {
	return func(h *TestHarness) { h.tempRoot = dir }
}

// NewHarness creates a harness that runs external tools through exec.
func NewHarness(exec exttest.Executor, logger *slog.Logger, opts ...Option) *TestHarness {
	if logger == nil {
		logger = slog.Default()
	}
	h := &TestHarness{exec: exec, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	if h.toolchain == nil {
		h.toolchain = solc.NewToolchain(exec, logger)
	}
	if h.downloader == nil {
		h.downloader = &gitsrc.Downloader{Exec: exec, Logger: logger}
	}
	return h
}

// PresetResult records how far one preset got.
type PresetResult struct {
	Preset   preset.Preset
	Compiled bool
	Tested   bool
}

// TestResult represents the result of running an external test.
type TestResult struct {
	Name     string
	RunID    string
	Compiler solc.Compiler
	Commit   string
	Presets  []PresetResult
}

// Run executes the external test name with runner. The first failing step
// aborts the run; presets after a failed one are not attempted. The run
// directory is removed on every exit path.
func (h *TestHarness) Run(ctx context.Context, name string, cfg *exttest.TestConfig, runner exttest.Runner) (*TestResult, error) {
	result := &TestResult{Name: name, RunID: uuid.NewString()}
	logger := h.logger.With("test", name, "run", result.RunID)
	logger.Info("testing external project")

	tmpDir, err := os.MkdirTemp(h.tempRoot, "ext-test-"+name+"-")
	if err != nil {
		return result, fmt.Errorf("create run directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			logger.Warn("removing run directory", "dir", tmpDir, "err", err)
		}
	}()
	testDir := filepath.Join(tmpDir, "ext")

	presets := cfg.SelectedPresets()
	logger.Info("selected settings presets", "presets", presetNames(presets))

	compiler, err := h.toolchain.Setup(ctx, cfg.Compiler(), testDir)
	if err != nil {
		return result, fmt.Errorf("set up compiler: %w", err)
	}
	result.Compiler = compiler
	logger.Info("using compiler", "version", compiler.Version, "path", compiler.Path)

	commit, err := h.downloader.Download(ctx, testDir, gitsrc.Source{
		URL:     cfg.RepoURL(),
		RefKind: cfg.RefKind(),
		Ref:     cfg.Ref(),
	})
	if err != nil {
		return result, fmt.Errorf("download project: %w", err)
	}
	result.Commit = commit

	if cfg.BuildDependency() == exttest.DependencyNodeJS {
		if err := workspace.PrepareNode(h.exec, logger, testDir); err != nil {
			return result, fmt.Errorf("prepare node environment: %w", err)
		}
	}
	if err := runner.SetupEnvironment(ctx, testDir); err != nil {
		return result, fmt.Errorf("setup environment: %w", err)
	}
	defer func() {
		if err := runner.Clean(ctx); err != nil {
			logger.Warn("cleaning build artifacts", "err", err)
		}
	}()

	if _, err := workspace.ReplaceVersionPragmas(ctx, logger, testDir); err != nil {
		return result, fmt.Errorf("replace version pragmas: %w", err)
	}
	if err := runner.CompilerSettings(ctx, compiler.Path, presets); err != nil {
		return result, fmt.Errorf("compiler settings: %w", err)
	}

	compileOnly := os.Getenv(CompileOnlyEnv) == "1"
	for _, p := range presets {
		result.Presets = append(result.Presets, PresetResult{Preset: p})
		pr := &result.Presets[len(result.Presets)-1]

		logger.Info("running compile function", "preset", p)
		if err := runner.Compile(ctx, compiler.Path, p); err != nil {
			return result, fmt.Errorf("compile %s: %w", p, err)
		}
		pr.Compiled = true

		if compileOnly || cfg.IsCompileOnly(p) {
			logger.Info("skipping test function", "preset", p)
			continue
		}
		logger.Info("running test function", "preset", p)
		if err := runner.RunTest(ctx, p); err != nil {
			return result, fmt.Errorf("test %s: %w", p, err)
		}
		pr.Tested = true
	}
	logger.Info("done")
	return result, nil
}

func presetNames(presets []preset.Preset) string {
	names := make([]string, len(presets))
	for i, p := range presets {
		names[i] = p.String()
	}
	return strings.Join(names, " ")
}
