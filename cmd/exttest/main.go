// Package main implements the CLI driver for the external compiler tests.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/exttest/internal/harness"
	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/preset"
)

// Config holds all command-line configuration options.
type Config struct {
	BinaryType exttest.BinaryType // how the compiler is invoked
	BinaryPath string             // the compiler executable or scripted build
	Verbose    bool               // enables detailed logging
	JSON       bool               // enables JSON output format
	Tests      []string           // embedded project declarations to run
	Files      []string           // project declaration files to run
	EVMVersion string             // overrides the declared EVM version
}

const (
	exitFailure = 1
	exitConfig  = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	if err.Error() != "" {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(exitCode(err))
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	cfg := &Config{}
	rootCmd := &cobra.Command{
		Use:   "exttest <native|scripted> <binary-path>",
		Short: "Compile and test external Solidity projects",
		Long: `exttest builds real-world Solidity projects with the compiler under test.

Each project is compiled, and unless marked compile-only tested, once per
settings preset. The first failure aborts the run.`,
		Example: `  exttest native /usr/local/bin/solc                  # Run the default project
  exttest scripted soljson.js --test prb-math         # Test a scripted build
  exttest native solc --config project.yaml           # Run a custom declaration
  exttest presets                                     # List settings presets`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return errWithCode(err, exitConfig)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd.Context(), cmd.OutOrStdout(), cfg, args)
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setup(cmd.ErrOrStderr(), cfg)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetVersionTemplate(fmt.Sprintf("exttest version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errWithCode(err, exitConfig)
	})

	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.Flags().StringSliceVar(&cfg.Tests, "test", []string{"prb-math"}, "Embedded projects to test")
	rootCmd.Flags().StringSliceVar(&cfg.Files, "config", nil, "Project declaration files to test (YAML)")
	rootCmd.Flags().StringVar(&cfg.EVMVersion, "evm-version", "", "EVM version overriding the declared one")

	rootCmd.AddCommand(newPresetsCmd(cfg), newListCmd(cfg))
	return rootCmd
}

func newPresetsCmd(cfg *Config) *cobra.Command {
	var evmVersion string
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List the settings presets and the compiler settings they resolve to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writePresets(cmd.OutOrStdout(), evmVersion, cfg.JSON)
		},
	}
	cmd.Flags().StringVar(&evmVersion, "evm-version", exttest.CurrentEVMVersion, "EVM version the settings target")
	return cmd
}

func newListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded project declarations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := harness.CatalogNames()
			if cfg.JSON {
				return writeJSON(cmd.OutOrStdout(), names)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			return err
		},
	}
}

func runCommand(ctx context.Context, stdout io.Writer, cfg *Config, args []string) error {
	binaryType, err := exttest.ParseBinaryType(args[0])
	if err != nil {
		return errWithCode(err, exitConfig)
	}
	cfg.BinaryType, cfg.BinaryPath = binaryType, args[1]

	projects, err := loadProjects(cfg)
	if err != nil {
		return errWithCode(err, exitConfig)
	}

	exec := &exttest.ProcessExecutor{Stdout: os.Stderr, Stderr: os.Stderr, Logger: slog.Default()}
	h := harness.NewHarness(exec, slog.Default())

	var results []*harness.TestResult
	var runErr error
	for _, p := range projects {
		result, err := runProject(ctx, h, exec, cfg, p)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			runErr = fmt.Errorf("%s: %w", p.Name, err)
			break
		}
	}

	if err := writeResults(stdout, results, runErr, cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitFailure)
	}
	if runErr != nil {
		return errWithCode(runErr, exitCode(runErr))
	}
	return nil
}

// loadProjects resolves the embedded and file declarations to run, in the
// order they were requested.
func loadProjects(cfg *Config) ([]*harness.Project, error) {
	var projects []*harness.Project
	for _, name := range cfg.Tests {
		p, err := harness.LookupProject(name)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	for _, file := range cfg.Files {
		p, err := harness.LoadProject(file)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if len(projects) == 0 {
		return nil, exttest.Configf("no project selected")
	}
	for _, p := range projects {
		if cfg.EVMVersion != "" {
			p.EVMVersion = cfg.EVMVersion
		}
		// Validate every declaration before anything is downloaded.
		if _, err := p.Config(cfg.BinaryType, cfg.BinaryPath); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func runProject(ctx context.Context, h *harness.TestHarness, exec exttest.Executor, cfg *Config, p *harness.Project) (*harness.TestResult, error) {
	testCfg, err := p.Config(cfg.BinaryType, cfg.BinaryPath)
	if err != nil {
		return nil, err
	}
	runner, err := p.NewRunner(testCfg, exec, slog.Default().With("test", p.Name))
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, p.Name, testCfg, runner)
}

func writeResults(w io.Writer, results []*harness.TestResult, runErr error, cfg *Config) error {
	if cfg.JSON {
		out := jOutput{
			Results:   make([]jResult, 0, len(results)),
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		for _, r := range results {
			out.Results = append(out.Results, toJResult(r))
		}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		return writeJSON(w, out)
	}

	var output strings.Builder
	for _, r := range results {
		fmt.Fprintf(&output, "%s %s (compiler %s, commit %s)\n", r.Name, r.RunID, r.Compiler.Version, r.Commit)
		for _, pr := range r.Presets {
			fmt.Fprintf(&output, "  %-26s %s\n", pr.Preset, presetStatus(pr))
		}
	}
	_, err := io.WriteString(w, output.String())
	return err
}

func presetStatus(pr harness.PresetResult) string {
	switch {
	case pr.Tested:
		return "ok"
	case pr.Compiled:
		return "compiled"
	default:
		return "failed"
	}
}

func writePresets(w io.Writer, evmVersion string, asJSON bool) error {
	type presetInfo struct {
		Name     string          `json:"name"`
		Settings preset.Settings `json:"settings"`
	}
	var presets []presetInfo
	for _, p := range preset.All() {
		s, err := preset.Resolve(p, evmVersion)
		if err != nil {
			return err
		}
		presets = append(presets, presetInfo{Name: p.String(), Settings: s})
	}
	if asJSON {
		return writeJSON(w, presets)
	}

	var output strings.Builder
	for _, p := range presets {
		fmt.Fprintf(&output, "%-26s optimizer=%t via_ir=%t yul=%t evm_version=%s\n",
			p.Name, p.Settings.OptimizerEnabled, p.Settings.ViaIR, p.Settings.YulDetails, p.Settings.EVMVersion)
	}
	_, err := io.WriteString(w, output.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type jOutput struct {
	Results   []jResult `json:"results"`
	Error     string    `json:"error,omitempty"`
	Version   string    `json:"version"`
	Timestamp string    `json:"timestamp"`
}

type jResult struct {
	Name            string    `json:"name"`
	RunID           string    `json:"run_id"`
	Compiler        string    `json:"compiler"`
	CompilerVersion string    `json:"compiler_version"`
	Commit          string    `json:"commit"`
	Presets         []jPreset `json:"presets"`
}

type jPreset struct {
	Name     string `json:"name"`
	Compiled bool   `json:"compiled"`
	Tested   bool   `json:"tested"`
}

func toJResult(r *harness.TestResult) jResult {
	out := jResult{
		Name:            r.Name,
		RunID:           r.RunID,
		Compiler:        r.Compiler.Path,
		CompilerVersion: r.Compiler.Version,
		Commit:          r.Commit,
		Presets:         make([]jPreset, 0, len(r.Presets)),
	}
	for _, pr := range r.Presets {
		out.Presets = append(out.Presets, jPreset{Name: pr.Preset.String(), Compiled: pr.Compiled, Tested: pr.Tested})
	}
	return out
}

func setup(stderr io.Writer, cfg *Config) {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if !cfg.Verbose {
		return
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var handler slog.Handler = slog.NewTextHandler(stderr, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	var cErr *codedError
	if errors.As(err, &cErr) {
		return cErr.code
	}
	if errors.Is(err, exttest.ErrConfiguration) {
		return exitConfig
	}
	return exitFailure
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }
