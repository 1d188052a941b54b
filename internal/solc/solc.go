// Package solc resolves the compiler binary under test into something a
// build system can be pointed at.
package solc

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/715d/exttest/internal/gitsrc"
	"github.com/715d/exttest/pkg/exttest"
)

// SolcJSRepository is the wrapper cloned around scripted compiler builds.
const SolcJSRepository = "https://github.com/ethereum/solc-js.git"

// Compiler is a ready-to-use compiler.
type Compiler struct {
	// Path is the binary identifier handed to build system adapters.
	Path string

	// Version is the full version reported by the binary.
	Version string
}

// Toolchain sets up compilers. Native compilers are probed once per binary
// path for the lifetime of the Toolchain.
type Toolchain struct {
	exec       exttest.Executor
	downloader *gitsrc.Downloader
	logger     *slog.Logger
	native     *xsync.Map[string, Compiler]
}

// NewToolchain returns a Toolchain running tools through exec.
func NewToolchain(exec exttest.Executor, logger *slog.Logger) *Toolchain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolchain{
		exec:       exec,
		downloader: &gitsrc.Downloader{Exec: exec, Logger: logger},
		logger:     logger,
		native:     xsync.NewMap[string, Compiler](),
	}
}

// Setup prepares the compiler described by cfg. Scripted compilers are built
// next to testDir, in the install directory of cfg.
func (tc *Toolchain) Setup(ctx context.Context, cfg exttest.CompilerConfig, testDir string) (Compiler, error) {
	switch cfg.BinaryType {
	case exttest.Native:
		return tc.setupNative(ctx, cfg.BinaryPath)
	case exttest.Scripted:
		return tc.setupScripted(ctx, cfg, filepath.Join(filepath.Dir(testDir), cfg.InstallDir))
	}
	return Compiler{}, exttest.Configf("invalid solidity compiler binary type: %s", cfg.BinaryType)
}

func (tc *Toolchain) setupNative(ctx context.Context, path string) (Compiler, error) {
	binary, err := tc.resolveBinary(path)
	if err != nil {
		return Compiler{}, err
	}
	if c, ok := tc.native.Load(binary); ok {
		return c, nil
	}
	tc.logger.Info("setting up solc", "binary", binary)

	out, err := tc.exec.Output(ctx, exttest.Command{Name: binary, Args: []string{"--version"}})
	if err != nil {
		return Compiler{}, fmt.Errorf("query compiler version: %w", err)
	}
	version, err := exttest.ParseVersion(exttest.VersionLine(out))
	if err != nil {
		return Compiler{}, err
	}
	c := Compiler{Path: binary, Version: version}
	tc.native.Store(binary, c)
	return c, nil
}

// resolveBinary returns the absolute path of a native compiler. A name
// without a separator is looked up on PATH.
func (tc *Toolchain) resolveBinary(path string) (string, error) {
	if !strings.ContainsRune(path, filepath.Separator) {
		resolved, err := tc.exec.LookPath(path)
		if err != nil {
			return "", exttest.Environmentf("compiler binary %s not found: %v", path, err)
		}
		path = resolved
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve compiler binary %q: %w", path, err)
	}
	return abs, nil
}

func (tc *Toolchain) setupScripted(ctx context.Context, cfg exttest.CompilerConfig, solcDir string) (Compiler, error) {
	if err := checkJavaScript(cfg.BinaryPath); err != nil {
		return Compiler{}, err
	}
	if _, err := tc.exec.LookPath("npm"); err != nil {
		return Compiler{}, exttest.Environmentf("npm not found: %v", err)
	}
	tc.logger.Info("setting up solc-js", "dir", solcDir)

	if cfg.LocalSourceDir == "" {
		src := gitsrc.Source{URL: SolcJSRepository, RefKind: exttest.RefBranch, Ref: cfg.Branch}
		if _, err := tc.downloader.Download(ctx, solcDir, src); err != nil {
			return Compiler{}, fmt.Errorf("download solc-js: %w", err)
		}
	} else {
		tc.logger.Info("using local solc-js", "dir", cfg.LocalSourceDir)
		if err := copyTree(cfg.LocalSourceDir, solcDir, "dist", "node_modules"); err != nil {
			return Compiler{}, fmt.Errorf("copy local solc-js: %w", err)
		}
	}

	for _, args := range [][]string{{"install"}, {"run", "build"}} {
		if err := tc.exec.Run(ctx, exttest.Command{Dir: solcDir, Name: "npm", Args: args}); err != nil {
			return Compiler{}, err
		}
	}

	dist := filepath.Join(solcDir, "dist")
	if err := os.MkdirAll(dist, 0o755); err != nil {
		return Compiler{}, err
	}
	if err := copyFile(cfg.BinaryPath, filepath.Join(dist, "soljson.js"), 0o644); err != nil {
		return Compiler{}, fmt.Errorf("install soljson.js: %w", err)
	}

	entry := filepath.Join(dist, "solc.js")
	out, err := tc.exec.Output(ctx, exttest.Command{Dir: solcDir, Name: "node", Args: []string{entry, "--version"}})
	if err != nil {
		return Compiler{}, fmt.Errorf("query compiler version: %w", err)
	}
	version, err := exttest.ParseVersion(exttest.VersionLine(out))
	if err != nil {
		return Compiler{}, err
	}
	return Compiler{Path: entry, Version: version}, nil
}

// checkJavaScript verifies that path is an existing JavaScript file.
func checkJavaScript(path string) error {
	if _, err := os.Stat(path); err != nil {
		return exttest.Environmentf("compiler binary: %v", err)
	}
	mediaType, _, err := mime.ParseMediaType(mime.TypeByExtension(filepath.Ext(path)))
	if err != nil || (mediaType != "application/javascript" && mediaType != "text/javascript") {
		return exttest.Configf("provided soljson.js %s is expected to be of the type application/javascript but it is not", path)
	}
	return nil
}

// copyTree copies the directory src to dst, leaving out the top-level
// entries named in skip.
func copyTree(src, dst string, skip ...string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		for _, s := range skip {
			if rel == s {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		}
		return nil
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
