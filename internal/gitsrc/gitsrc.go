// Package gitsrc downloads the projects under test.
package gitsrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/715d/exttest/pkg/exttest"
)

// Source identifies a revision of a repository.
type Source struct {
	URL     string
	RefKind exttest.RefKind
	Ref     string
}

// Downloader fetches sources with git.
type Downloader struct {
	Exec   exttest.Executor
	Logger *slog.Logger
}

// Download checks out src into dir and returns the commit hash of the
// checkout. dir must not exist yet; its parent must.
func (d *Downloader) Download(ctx context.Context, dir string, src Source) (string, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cloning project", "ref_type", src.RefKind, "ref", src.Ref, "url", src.URL)

	switch src.RefKind {
	case exttest.RefCommit:
		// A commit cannot be cloned directly; fetch it into a fresh repository.
		if err := os.Mkdir(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
		for _, args := range [][]string{
			{"init"},
			{"remote", "add", "origin", src.URL},
			{"fetch", "--depth", "1", "origin", src.Ref},
			{"reset", "--hard", "FETCH_HEAD"},
		} {
			if err := d.git(ctx, dir, args...); err != nil {
				return "", err
			}
		}
	case exttest.RefBranch, exttest.RefTag:
		// Shallow clone of a single ref; history is not needed for building.
		if err := d.git(ctx, filepath.Dir(dir), "clone", "--depth", "1", src.URL, "-b", src.Ref, dir); err != nil {
			return "", err
		}
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("failed to clone the project: %w", err)
		}
	default:
		return "", exttest.Configf("invalid ref type %q", src.RefKind)
	}

	if _, err := os.Stat(filepath.Join(dir, ".gitmodules")); err == nil {
		if err := d.git(ctx, dir, "submodule", "update", "--init"); err != nil {
			return "", err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	out, err := d.Exec.Output(ctx, exttest.Command{Dir: dir, Name: "git", Args: []string{"rev-parse", "HEAD"}})
	if err != nil {
		return "", err
	}
	hash := strings.TrimSpace(out)
	logger.Info("current commit hash", "commit", hash)
	return hash, nil
}

func (d *Downloader) git(ctx context.Context, dir string, args ...string) error {
	return d.Exec.Run(ctx, exttest.Command{Dir: dir, Name: "git", Args: args})
}
