package gitsrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/exttest/internal/testutil"
	"github.com/715d/exttest/pkg/exttest"
)

func TestDownloadBranch(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	fake := &testutil.Executor{
		Outputs: map[string]string{"git rev-parse HEAD": "0123abcd\n"},
		OnRun: func(cmd exttest.Command) error {
			if cmd.Args[0] == "clone" {
				return os.Mkdir(cmd.Args[len(cmd.Args)-1], 0o755)
			}
			return nil
		},
	}

	d := &Downloader{Exec: fake}
	hash, err := d.Download(t.Context(), dir, Source{URL: "https://example.com/p.git", RefKind: exttest.RefBranch, Ref: "main"})
	require.NoError(t, err)
	require.Equal(t, "0123abcd", hash)

	require.Equal(t, []string{
		"git clone --depth 1 https://example.com/p.git -b main " + dir,
		"git rev-parse HEAD",
	}, fake.Lines())
	calls := fake.Calls()
	require.Equal(t, filepath.Dir(dir), calls[0].Dir)
	require.Equal(t, dir, calls[1].Dir)
}

func TestDownloadCommitWithSubmodules(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	fake := &testutil.Executor{
		OnRun: func(cmd exttest.Command) error {
			if cmd.Args[0] == "reset" {
				return os.WriteFile(filepath.Join(cmd.Dir, ".gitmodules"), nil, 0o644)
			}
			return nil
		},
	}

	d := &Downloader{Exec: fake}
	_, err := d.Download(t.Context(), dir, Source{URL: "https://example.com/p.git", RefKind: exttest.RefCommit, Ref: "deadbeef"})
	require.NoError(t, err)

	require.Equal(t, []string{
		"git init",
		"git remote add origin https://example.com/p.git",
		"git fetch --depth 1 origin deadbeef",
		"git reset --hard FETCH_HEAD",
		"git submodule update --init",
		"git rev-parse HEAD",
	}, fake.Lines())
	for _, c := range fake.Calls() {
		require.Equal(t, dir, c.Dir)
	}
}

func TestDownloadCloneLeavesNoDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	d := &Downloader{Exec: &testutil.Executor{}}
	_, err := d.Download(t.Context(), dir, Source{URL: "u", RefKind: exttest.RefTag, Ref: "v1.0.0"})
	require.ErrorContains(t, err, "failed to clone the project")
}

func TestDownloadFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ext")
	fake := &testutil.Executor{ExitCodes: map[string]int{"git fetch --depth 1 origin bad": 128}}
	d := &Downloader{Exec: fake}
	_, err := d.Download(t.Context(), dir, Source{URL: "u", RefKind: exttest.RefCommit, Ref: "bad"})
	require.ErrorIs(t, err, exttest.ErrToolInvocation)
	require.NotContains(t, fake.Lines(), "git reset --hard FETCH_HEAD")
}

func TestDownloadInvalidRefKind(t *testing.T) {
	d := &Downloader{Exec: &testutil.Executor{}}
	_, err := d.Download(t.Context(), filepath.Join(t.TempDir(), "ext"), Source{URL: "u", RefKind: "revision", Ref: "x"})
	require.ErrorIs(t, err, exttest.ErrConfiguration)
}
