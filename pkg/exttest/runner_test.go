package exttest

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTestDir(t *testing.T) {
	var d TestDir
	_, err := d.Enter("compile")
	require.ErrorIs(t, err, ErrConfiguration)
	require.ErrorContains(t, err, "compile: test directory not defined")

	dir := t.TempDir()
	require.NoError(t, d.Bind(dir))
	got, err := d.Enter("compile")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(got))
	require.Equal(t, dir, got)
}

func TestTestDirBindMissing(t *testing.T) {
	var d TestDir
	err := d.Bind(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, ErrEnvironment)
	require.Empty(t, d.Path())

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	require.ErrorIs(t, d.Bind(file), ErrEnvironment)
}

func TestEnv(t *testing.T) {
	t.Setenv("EXTTEST_ENV_PROBE", "a=b")
	env := EnvFromOS()
	require.Equal(t, "a=b", env["EXTTEST_ENV_PROBE"])

	e := Env{"B": "2", "A": "1"}
	clone := e.Clone()
	clone.Set("A", "changed")
	clone.Set("C", "3")
	require.Equal(t, []string{"A=1", "B=2"}, e.Environ())
	require.Equal(t, []string{"A=changed", "B=2", "C=3"}, clone.Environ())
}

func TestProcessExecutor(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	e := &ProcessExecutor{}

	out, err := e.Output(t.Context(), Command{Name: "sh", Args: []string{"-c", "echo out; echo err >&2"}})
	require.NoError(t, err)
	require.Contains(t, out, "out")
	require.Contains(t, out, "err")

	dir := t.TempDir()
	out, err = e.Output(t.Context(), Command{Dir: dir, Env: []string{"PROBE=1"}, Name: "sh", Args: []string{"-c", "pwd; echo $PROBE"}})
	require.NoError(t, err)
	require.Contains(t, out, filepath.Base(dir))
	require.Contains(t, out, "1")

	err = e.Run(t.Context(), Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	require.ErrorIs(t, err, ErrToolInvocation)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	require.Equal(t, 3, te.ExitCode)
	require.Equal(t, []string{"sh", "-c", "exit 3"}, te.Args)

	err = e.Run(t.Context(), Command{Name: "exttest-no-such-binary"})
	require.ErrorIs(t, err, ErrToolInvocation)
	require.ErrorAs(t, err, &te)
	require.Equal(t, -1, te.ExitCode)
}
