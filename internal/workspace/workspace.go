// Package workspace prepares a downloaded project for building with the
// compiler under test.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/715d/exttest/pkg/exttest"
)

var (
	// packageHookPattern matches the npm lifecycle scripts that would run on install.
	packageHookPattern = regexp.MustCompile(`("(?:prepublish|prepare)":)\s*"(?:[^"\\\n]|\\.)*"`)

	pragmaPattern = regexp.MustCompile(`pragma solidity [^;]+;`)
)

const relaxedPragma = "pragma solidity >=0.0;"

// lockFiles override the versions declared in package.json.
var lockFiles = []string{"yarn.lock", "package-lock.json"}

// PrepareNode readies a Node-based project: node must be on PATH, lock files
// are removed and the install hooks of package.json are disabled. A nil
// logger logs to slog.Default.
func PrepareNode(exec exttest.Executor, logger *slog.Logger, dir string) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := exec.LookPath("node"); err != nil {
		return exttest.Environmentf("nodejs not found: %v", err)
	}

	logger.Info("removing package lock files")
	for _, name := range lockFiles {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}

	logger.Info("disabling package.json hooks")
	path := filepath.Join(dir, "package.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return exttest.Environmentf("package.json not found in %s", dir)
	}
	if err != nil {
		return fmt.Errorf("read package.json: %w", err)
	}
	data = packageHookPattern.ReplaceAll(data, []byte(`$1 ""`))
	return os.WriteFile(path, data, 0o644)
}

// ReplaceVersionPragmas relaxes the version pragma of every Solidity source
// below dir, dependencies included, so any compiler version is accepted.
// It returns the number of files changed.
func ReplaceVersionPragmas(ctx context.Context, logger *slog.Logger, dir string) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("replacing fixed-version pragmas", "dir", dir)

	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.Type().IsRegular() && filepath.Ext(path) == ".sol" {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}

	changed := make([]bool, len(sources))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ok, err := relaxPragma(path)
			changed[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	n := 0
	for _, c := range changed {
		if c {
			n++
		}
	}
	logger.Debug("relaxed version pragmas", "files", n, "sources", len(sources))
	return n, nil
}

func relaxPragma(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out := pragmaPattern.ReplaceAll(data, []byte(relaxedPragma))
	if string(out) == string(data) {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
