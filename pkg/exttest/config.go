// Package exttest defines the configuration model and the runner contract
// shared by all external test adapters.
package exttest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/715d/exttest/pkg/preset"
)

// CurrentEVMVersion is the execution target used when a declaration does not name one.
const CurrentEVMVersion = "london"

// BinaryType is the kind of compiler binary under test.
type BinaryType string

const (
	// Native is a ready-to-run compiler executable.
	Native BinaryType = "native"

	// Scripted is a JavaScript compiler build that needs the solc-js wrapper
	// to be built around it before use.
	Scripted BinaryType = "scripted"
)

// BinaryTypes lists the accepted binary kinds.
var BinaryTypes = []BinaryType{Native, Scripted}

// ParseBinaryType parses a binary kind. "solcjs" is accepted as an alias of
// Scripted.
func ParseBinaryType(s string) (BinaryType, error) {
	switch s {
	case string(Native):
		return Native, nil
	case string(Scripted), "solcjs":
		return Scripted, nil
	}
	return "", Configf("invalid compiler binary type %q (expected %s or %s)", s, Native, Scripted)
}

// RefKind selects how Ref is interpreted when fetching the project.
type RefKind string

const (
	RefCommit RefKind = "commit"
	RefBranch RefKind = "branch"
	RefTag    RefKind = "tag"
)

// BuildDependency names the auxiliary toolchain a project needs before its
// own build tool can run.
type BuildDependency string

const (
	DependencyNodeJS BuildDependency = "nodejs"
	DependencyRust   BuildDependency = "rust"
	DependencyNone   BuildDependency = "none"
)

// CompilerConfig describes the compiler binary under test.
type CompilerConfig struct {
	// BinaryType selects between a native executable and a scripted build.
	BinaryType BinaryType `yaml:"binary_type,omitempty"`

	// BinaryPath is the compiler executable or the soljson.js artifact.
	BinaryPath string `yaml:"binary_path,omitempty"`

	// Branch of the solc-js wrapper to clone for scripted binaries.
	Branch string `yaml:"branch,omitempty"`

	// InstallDir is where the solc-js wrapper is built, relative to the parent
	// of the test directory.
	InstallDir string `yaml:"install_dir,omitempty"`

	// LocalSourceDir overrides cloning the solc-js wrapper with a local
	// checkout. Only valid for scripted binaries.
	LocalSourceDir string `yaml:"local_source_dir,omitempty"`
}

// Declaration is the static description of an external test. It is turned
// into an immutable TestConfig by New.
type Declaration struct {
	RepoURL            string          `yaml:"repo_url"`
	RefKind            RefKind         `yaml:"ref_type"`
	Ref                string          `yaml:"ref"`
	BuildDependency    BuildDependency `yaml:"build_dependency,omitempty"`
	CompileOnlyPresets []preset.Preset `yaml:"compile_only_presets,omitempty"`

	// SettingsPresets defaults to every preset when nil.
	SettingsPresets []preset.Preset `yaml:"settings_presets,omitempty"`
	EVMVersion      string          `yaml:"evm_version,omitempty"`
	Compiler        CompilerConfig  `yaml:"compiler"`
}

// TestConfig is a validated, immutable Declaration.
type TestConfig struct {
	decl     Declaration
	selected []preset.Preset
}

// New validates d, applies defaults and returns the resulting configuration.
// All errors are of kind ErrConfiguration.
func New(d Declaration) (*TestConfig, error) {
	if d.RepoURL == "" {
		return nil, Configf("repository URL is required")
	}
	switch d.RefKind {
	case RefCommit, RefBranch, RefTag:
	case "":
		d.RefKind = RefBranch
	default:
		return nil, Configf("invalid ref type %q (expected commit, branch or tag)", d.RefKind)
	}
	if d.Ref == "" {
		if d.RefKind != RefBranch {
			return nil, Configf("ref is required for ref type %q", d.RefKind)
		}
		d.Ref = "master"
	}

	switch d.BuildDependency {
	case DependencyNodeJS, DependencyRust, DependencyNone:
	case "":
		d.BuildDependency = DependencyNodeJS
	default:
		return nil, Configf("invalid build dependency %q", d.BuildDependency)
	}

	if d.EVMVersion == "" {
		d.EVMVersion = CurrentEVMVersion
	}

	c := &d.Compiler
	if c.BinaryType == "" {
		c.BinaryType = Native
	}
	if !slices.Contains(BinaryTypes, c.BinaryType) {
		return nil, Configf("invalid solidity compiler binary type: %s", c.BinaryType)
	}
	if c.BinaryType != Scripted && c.LocalSourceDir != "" {
		return nil, Configf("%s mode cannot be used with local_source_dir; "+
			"use binary type %s or unset local_source_dir: %s", c.BinaryType, Scripted, c.LocalSourceDir)
	}
	if c.BinaryPath == "" {
		c.BinaryPath = "/usr/local/bin/solc"
	}
	if c.Branch == "" {
		c.Branch = "master"
	}
	if c.InstallDir == "" {
		c.InstallDir = "solc"
	}

	if d.SettingsPresets == nil {
		d.SettingsPresets = preset.All()
	}
	d.CompileOnlyPresets = slices.Clone(d.CompileOnlyPresets)
	d.SettingsPresets = slices.Clone(d.SettingsPresets)

	cfg := &TestConfig{decl: d}
	for _, p := range slices.Concat(d.CompileOnlyPresets, d.SettingsPresets) {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %w: %s is not a settings preset; available presets: %s",
				ErrConfiguration, preset.ErrUnknown, p, strings.Join(preset.Names(), " "))
		}
		if !slices.Contains(cfg.selected, p) {
			cfg.selected = append(cfg.selected, p)
		}
	}
	if len(cfg.selected) == 0 {
		return nil, Configf("no settings presets selected")
	}
	return cfg, nil
}

func (c *TestConfig) RepoURL() string { return c.decl.RepoURL }
func (c *TestConfig) RefKind() RefKind { return c.decl.RefKind }
func (c *TestConfig) Ref() string { return c.decl.Ref }
func (c *TestConfig) BuildDependency() BuildDependency { return c.decl.BuildDependency }
func (c *TestConfig) EVMVersion() string { return c.decl.EVMVersion }
func (c *TestConfig) Compiler() CompilerConfig { return c.decl.Compiler }

// CompileOnlyPresets returns the presets that are built but never tested.
func (c *TestConfig) CompileOnlyPresets() []preset.Preset {
	return slices.Clone(c.decl.CompileOnlyPresets)
}

// SettingsPresets returns the presets that are built and tested.
func (c *TestConfig) SettingsPresets() []preset.Preset {
	return slices.Clone(c.decl.SettingsPresets)
}

// SelectedPresets returns the union of the compile-only and settings presets
// without duplicates, in order of first appearance.
func (c *TestConfig) SelectedPresets() []preset.Preset {
	return slices.Clone(c.selected)
}

// IsCompileOnly reports whether p was declared compile-only.
func (c *TestConfig) IsCompileOnly(p preset.Preset) bool {
	return slices.Contains(c.decl.CompileOnlyPresets, p)
}

// Declaration returns a copy of the normalized declaration.
func (c *TestConfig) Declaration() Declaration {
	d := c.decl
	d.CompileOnlyPresets = c.CompileOnlyPresets()
	d.SettingsPresets = c.SettingsPresets()
	return d
}
