package installer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bobvm/bob/pkg/errors"
	"github.com/bobvm/bob/pkg/logging"
	"github.com/bobvm/bob/pkg/paths"
)

const upstreamGitURL = "https://github.com/neovim/neovim.git"

// buildFromSource fetches rev into the shared build workspace, builds
// the editor and installs it under installName. The workspace is
// intentionally never cleaned between runs; incremental rebuilds are a
// feature.
func (i *Installer) buildFromSource(ctx context.Context, rev, installName string) error {
	logger := logging.GetLogger("installer")

	if err := checkToolchain(ctx); err != nil {
		return err
	}

	workspace := i.paths.BuildWorkspace()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDirCreate, "cannot create build workspace")
	}

	if !dirExists(filepath.Join(workspace, ".git")) {
		if err := runIn(ctx, workspace, "git", "init"); err != nil {
			return err
		}
	}
	// set-url fails on a fresh repo with no origin; fall back to add.
	if err := runIn(ctx, workspace, "git", "remote", "set-url", "origin", upstreamGitURL); err != nil {
		if err := runIn(ctx, workspace, "git", "remote", "add", "origin", upstreamGitURL); err != nil {
			return err
		}
	}

	logger.Info().Str("rev", rev).Msg("Fetching source")
	if err := runIn(ctx, workspace, "git", "fetch", "--depth=1", "origin", rev); err != nil {
		return errors.Newf(errors.ErrInvalidVersion,
			"upstream does not know %q; shallow fetches need a full commit hash", rev)
	}
	if err := runIn(ctx, workspace, "git", "checkout", "FETCH_HEAD"); err != nil {
		return err
	}

	fullHash, err := outputIn(ctx, workspace, "git", "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	fullHash = strings.TrimSpace(fullHash)

	// build/ (and .deps/ on Windows) are recreated per run; the rest of
	// the workspace carries over for incremental rebuilds.
	if err := os.RemoveAll(filepath.Join(workspace, "build")); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot clear build directory")
	}
	if runtime.GOOS == "windows" {
		if err := os.RemoveAll(filepath.Join(workspace, ".deps")); err != nil {
			return errors.Wrap(err, errors.ErrFileWrite, "cannot clear deps directory")
		}
	}

	buildType := "RelWithDebInfo"
	if i.cfg.ReleaseBuild() {
		buildType = "Release"
	}
	prefix := i.paths.VersionDir(installName)

	logger.Info().Str("rev", rev).Str("type", buildType).Msg("Building from source")
	if err := i.runBuild(ctx, workspace, buildType, prefix); err != nil {
		// A failed build must not leave a half-populated install that
		// the fast-path check would mistake for a working one.
		os.RemoveAll(prefix)
		return err
	}

	hashFile := filepath.Join(prefix, paths.FullHashFile)
	if err := os.WriteFile(hashFile, []byte(fullHash), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrFileWrite, "cannot record full commit hash")
	}
	return nil
}

// runBuild drives the platform build. POSIX goes through the upstream
// Makefile, Windows through CMake directly.
func (i *Installer) runBuild(ctx context.Context, workspace, buildType, prefix string) error {
	if runtime.GOOS == "windows" {
		steps := [][]string{
			{"cmake", "-S", "cmake.deps", "-B", ".deps", "-D", "CMAKE_BUILD_TYPE=" + buildType},
			{"cmake", "--build", ".deps", "--config", buildType},
			{"cmake", "-S", ".", "-B", "build", "-D", "CMAKE_BUILD_TYPE=" + buildType, "-D", "CMAKE_INSTALL_PREFIX=" + prefix},
			{"cmake", "--build", "build", "--config", buildType},
			{"cmake", "--install", "build"},
		}
		for _, step := range steps {
			if err := runIn(ctx, workspace, step[0], step[1:]...); err != nil {
				return err
			}
		}
		return nil
	}

	if err := runIn(ctx, workspace, "make",
		"CMAKE_BUILD_TYPE="+buildType,
		"CMAKE_EXTRA_FLAGS=-DCMAKE_INSTALL_PREFIX="+prefix); err != nil {
		return err
	}
	return runIn(ctx, workspace, "make", "install")
}

// checkToolchain verifies git, cmake and a compiler are usable before
// any work happens.
func checkToolchain(ctx context.Context) error {
	if err := probeTool(ctx, "git", "--version"); err != nil {
		return errors.New(errors.ErrToolchain, "git is required to build from source")
	}
	if err := probeTool(ctx, "cmake", "--version"); err != nil {
		return errors.New(errors.ErrToolchain, "cmake is required to build from source")
	}

	if runtime.GOOS == "windows" {
		// MSVC developer shells export VisualStudioVersion.
		if os.Getenv("VisualStudioVersion") == "" {
			return errors.New(errors.ErrToolchain,
				"an MSVC developer environment is required; run bob from a Developer Command Prompt")
		}
		return nil
	}

	if probeTool(ctx, "gcc", "--version") != nil && probeTool(ctx, "clang", "--version") != nil {
		return errors.New(errors.ErrToolchain, "a C compiler (gcc or clang) is required to build from source")
	}
	return nil
}

func probeTool(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run()
}

// runIn executes a subprocess in dir, streaming its output through.
func runIn(ctx context.Context, dir, name string, args ...string) error {
	logging.LogCommand(name, args)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return errors.Newf(errors.ErrSubprocess, "%s exited with code %d", name, exitErr.ExitCode())
		}
		return errors.Wrapf(err, errors.ErrSubprocess, "cannot run %s", name)
	}
	return nil
}

// outputIn executes a subprocess in dir and captures stdout.
func outputIn(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", errors.Newf(errors.ErrSubprocess, "%s exited with code %d", name, exitErr.ExitCode())
		}
		return "", errors.Wrapf(err, errors.ErrSubprocess, "cannot run %s", name)
	}
	return string(out), nil
}
