package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/exttest/internal/testutil"
	"github.com/715d/exttest/pkg/exttest"
	"github.com/715d/exttest/pkg/exttest/foundry"
	"github.com/715d/exttest/pkg/preset"
)

func TestCatalog(t *testing.T) {
	names := CatalogNames()
	require.Contains(t, names, "prb-math")

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			p, err := LookupProject(name)
			require.NoError(t, err)
			require.Equal(t, name, p.Name)

			cfg, err := p.Config(exttest.Native, "/usr/local/bin/solc")
			require.NoError(t, err)
			require.NotEmpty(t, cfg.SelectedPresets())

			r, err := p.NewRunner(cfg, &testutil.Executor{}, nil)
			require.NoError(t, err)
			require.NotNil(t, r)
		})
	}
}

func TestPRBMath(t *testing.T) {
	p, err := LookupProject("prb-math")
	require.NoError(t, err)
	require.Equal(t, RunnerFoundry, p.Runner)

	cfg, err := p.Config(exttest.Scripted, "soljson.js")
	require.NoError(t, err)
	require.Equal(t, exttest.RefBranch, cfg.RefKind())
	require.Equal(t, "main", cfg.Ref())
	require.Equal(t, exttest.DependencyRust, cfg.BuildDependency())
	require.Equal(t, exttest.CurrentEVMVersion, cfg.EVMVersion())
	require.Equal(t, "solc/", cfg.Compiler().InstallDir)
	require.Equal(t, []preset.Preset{
		preset.IRNoOptimize,
		preset.IROptimizeEVMOnly,
		preset.IROptimizeEVMYul,
		preset.LegacyOptimizeEVMOnly,
		preset.LegacyOptimizeEVMYul,
		preset.LegacyNoOptimize,
	}, cfg.SelectedPresets())
	require.True(t, cfg.IsCompileOnly(preset.IRNoOptimize))
	require.False(t, cfg.IsCompileOnly(preset.LegacyNoOptimize))
}

func TestLookupUnknownProject(t *testing.T) {
	_, err := LookupProject("openzeppelin")
	require.ErrorIs(t, err, exttest.ErrConfiguration)
	require.ErrorContains(t, err, "prb-math")
}

func TestLoadProject(t *testing.T) {
	p, err := LoadProject(filepath.Join("testdata", "custom.yaml"))
	require.NoError(t, err)
	require.Equal(t, "custom", p.Name)
	require.Equal(t, RunnerFoundry, p.Runner)

	cfg, err := p.Config(exttest.Native, "/opt/solc")
	require.NoError(t, err)
	require.Equal(t, exttest.RefTag, cfg.RefKind())
	require.Equal(t, "v1.2.0", cfg.Ref())
	require.Equal(t, exttest.DependencyNone, cfg.BuildDependency())
	require.Equal(t, "shanghai", cfg.EVMVersion())
	require.Equal(t, "/opt/solc", cfg.Compiler().BinaryPath)
	require.Equal(t, []preset.Preset{preset.LegacyNoOptimize, preset.IROptimizeEVMOnly}, cfg.SelectedPresets())

	r, err := p.NewRunner(cfg, &testutil.Executor{}, nil)
	require.NoError(t, err)
	require.IsType(t, &foundry.Runner{}, r)
}

func TestLoadProjectErrors(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{file: "typo.yaml", want: "settings_preset"},
		{file: "bad-preset.yaml", want: `"legacy-optimize"`},
		{file: "missing.yaml", want: "read project declaration"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := LoadProject(filepath.Join("testdata", tt.file))
			require.ErrorIs(t, err, exttest.ErrConfiguration)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadProjectUnknownPresetKinds(t *testing.T) {
	_, err := LoadProject(filepath.Join("testdata", "bad-preset.yaml"))
	require.ErrorIs(t, err, exttest.ErrConfiguration)
	require.ErrorIs(t, err, preset.ErrUnknown)
}

func TestUnknownRunner(t *testing.T) {
	p := &Project{Name: "hardhat-project", Runner: "hardhat"}
	cfg, err := exttest.New(exttest.Declaration{RepoURL: "https://example.com/p.git"})
	require.NoError(t, err)

	_, err = p.NewRunner(cfg, &testutil.Executor{}, nil)
	require.ErrorIs(t, err, exttest.ErrConfiguration)
	require.ErrorContains(t, err, "hardhat")
}
