// Package foundry implements the external test runner for Foundry projects.
//
// Each settings preset becomes a named profile appended to the project's
// foundry.toml. The FOUNDRY_PROFILE environment variable selects the profile
// for every forge invocation, so presets are built one at a time.
package foundry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/preset"
)

const (
	// ManifestFile is the Foundry project configuration file.
	ManifestFile = "foundry.toml"

	// ProfileEnv selects the active Foundry profile.
	ProfileEnv = "FOUNDRY_PROFILE"

	forge = "forge"
)

// Runner configures and runs Foundry-based projects.
type Runner struct {
	cfg    *exttest.TestConfig
	exec   exttest.Executor
	hooks  exttest.Hooks
	logger *slog.Logger

	dir exttest.TestDir
	env exttest.Env

	// existing holds the profiles already declared by the project.
	existing map[string]bool

	// written holds the profiles appended by this runner.
	written   map[string]bool
	installed bool
}

var _ exttest.Runner = (*Runner)(nil)

// Option configures a Runner.
type Option func(*Runner)

// WithExecutor replaces the process executor.
func WithExecutor(e exttest.Executor) Option {
	return func(r *Runner) { r.exec = e }
}

// WithHooks sets the setup, compile and test overrides.
func WithHooks(h exttest.Hooks) Option {
	return func(r *Runner) { r.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New returns a runner for cfg. The runner's environment starts as a copy of
// the current process environment.
func New(cfg *exttest.TestConfig, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		env:      exttest.EnvFromOS(),
		existing: make(map[string]bool),
		written:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.exec == nil {
		r.exec = &exttest.ProcessExecutor{Logger: r.logger}
	}
	return r
}

// Env returns the environment forge runs with.
func (r *Runner) Env() exttest.Env {
	return r.env
}

// SetupEnvironment binds the runner to testDir. forge must be on PATH and the
// directory must contain a foundry.toml.
func (r *Runner) SetupEnvironment(ctx context.Context, testDir string) error {
	r.logger.Info("configuring foundry building environment", "dir", testDir)
	if err := r.dir.Bind(testDir); err != nil {
		return err
	}
	if _, err := r.exec.LookPath(forge); err != nil {
		return exttest.Environmentf("forge not found: %v", err)
	}

	manifest := filepath.Join(r.dir.Path(), ManifestFile)
	profiles, err := declaredProfiles(manifest)
	if err != nil {
		return err
	}
	r.existing = profiles

	if r.hooks.Setup != nil {
		if err := r.hooks.Setup(ctx, r.dir.Path(), r.env); err != nil {
			return fmt.Errorf("setup hook: %w", err)
		}
	}
	return nil
}

// declaredProfiles decodes the manifest and returns its profile names.
func declaredProfiles(manifest string) (map[string]bool, error) {
	if _, err := os.Stat(manifest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, exttest.Environmentf("%s not found in %s", ManifestFile, filepath.Dir(manifest))
		}
		return nil, exttest.Environmentf("%s: %v", manifest, err)
	}

	var m struct {
		Profile map[string]toml.Primitive `toml:"profile"`
	}
	if _, err := toml.DecodeFile(manifest, &m); err != nil {
		return nil, exttest.Environmentf("decode %s: %v", manifest, err)
	}
	profiles := make(map[string]bool, len(m.Profile))
	for name := range m.Profile {
		profiles[name] = true
	}
	return profiles, nil
}

// CompilerSettings appends one profile per preset to foundry.toml and
// installs the project dependencies. Nothing is written if any preset is
// invalid or collides with a profile the project already declares.
func (r *Runner) CompilerSettings(ctx context.Context, binary string, presets []preset.Preset) error {
	dir, err := r.dir.Enter("compiler settings")
	if err != nil {
		return err
	}

	var text strings.Builder
	var names []string
	for _, p := range presets {
		profile, err := NewProfile(p, binary, r.cfg.EVMVersion())
		if err != nil {
			return err
		}
		if r.written[profile.Name] || slices.Contains(names, profile.Name) {
			continue
		}
		if r.existing[profile.Name] {
			return exttest.Configf("profile %q for preset %s is already declared in %s", profile.Name, p, ManifestFile)
		}
		text.WriteString("\n")
		text.WriteString(profile.Render())
		names = append(names, profile.Name)
	}

	if err := appendManifest(filepath.Join(dir, ManifestFile), text.String()); err != nil {
		return err
	}
	for _, name := range names {
		r.written[name] = true
	}
	r.logger.Info("wrote foundry profiles", "profiles", names)

	if r.installed {
		return nil
	}
	if err := r.forge(ctx, dir, "install"); err != nil {
		return err
	}
	r.installed = true
	return nil
}

// appendManifest appends text to the manifest, keeping existing content intact.
func appendManifest(path, text string) error {
	if text == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return exttest.Environmentf("read %s: %v", path, err)
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		text = "\n" + text
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return exttest.Environmentf("open %s: %v", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Compile builds the project with the profile of p.
func (r *Runner) Compile(ctx context.Context, binary string, p preset.Preset) error {
	dir, err := r.dir.Enter("compile")
	if err != nil {
		return err
	}
	if err := r.selectProfile(p); err != nil {
		return err
	}
	r.logger.Info("compiling", "preset", p, "profile", r.env[ProfileEnv], "compiler", binary)

	if r.hooks.Compile != nil {
		return r.hooks.Compile(ctx, dir, r.env)
	}
	return r.forge(ctx, dir, "build")
}

// RunTest runs the project tests with the profile of p.
func (r *Runner) RunTest(ctx context.Context, p preset.Preset) error {
	dir, err := r.dir.Enter("run test")
	if err != nil {
		return err
	}
	if err := r.selectProfile(p); err != nil {
		return err
	}
	r.logger.Info("running tests", "preset", p, "profile", r.env[ProfileEnv])

	if r.hooks.Test != nil {
		return r.hooks.Test(ctx, dir, r.env)
	}
	return r.forge(ctx, dir, "test", "--gas-report")
}

func (r *Runner) selectProfile(p preset.Preset) error {
	if !p.Valid() {
		return exttest.Configf("%s is not a settings preset", p)
	}
	r.env.Set(ProfileEnv, ProfileName(p.String()))
	return nil
}

// Clean removes the forge build output and cache directories.
func (r *Runner) Clean(_ context.Context) error {
	dir, err := r.dir.Enter("clean")
	if err != nil {
		return err
	}
	return errors.Join(
		os.RemoveAll(filepath.Join(dir, "out")),
		os.RemoveAll(filepath.Join(dir, "cache")),
	)
}

func (r *Runner) forge(ctx context.Context, dir string, args ...string) error {
	return r.exec.Run(ctx, exttest.Command{
		Dir:  dir,
		Env:  r.env.Environ(),
		Name: forge,
		Args: args,
	})
}
