// Package build invokes the external image-builder and base-image resolver
// executables and cleans up the local artifacts they produce.
//
// Both tools are opaque collaborators: the builder turns a hostname into a
// bootable overlay ISO, and the resolver knows what the newest base image is
// called and how to download it. This package only runs them and propagates
// their failures.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Builder invokes the overlay image-builder executable.
type Builder struct {
	tool string
}

// NewBuilder creates a Builder for the given executable path.
func NewBuilder(tool string) *Builder {
	return &Builder{tool: tool}
}

// Preflight verifies the builder exists and is executable before anything is
// torn down on the host on its behalf.
func (b *Builder) Preflight() error {
	return checkExecutable(b.tool)
}

// Build runs the builder with the target hostname and output filename.
// The builder's combined output is folded into the error on failure.
func (b *Builder) Build(ctx context.Context, hostname, isoPath string) error {
	cmd := exec.CommandContext(ctx, b.tool, "--hostname", hostname, "--iso", isoPath)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("image builder %s failed: %w\nOutput: %s", b.tool, err, string(output))
	}
	return nil
}

// Resolver invokes the base-image resolver executable.
type Resolver struct {
	tool string
}

// NewResolver creates a Resolver for the given executable path.
func NewResolver(tool string) *Resolver {
	return &Resolver{tool: tool}
}

// LatestName asks the resolver for the newest base-image filename.
func (r *Resolver) LatestName(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, r.tool)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("base-image resolver %s failed: %w: %s", r.tool, err, strings.TrimSpace(stderr.String()))
	}

	name := strings.TrimSpace(stdout.String())
	if name == "" {
		return "", fmt.Errorf("base-image resolver %s returned no filename", r.tool)
	}
	return name, nil
}

// Fetch downloads the named base image into dir and returns the local path.
func (r *Resolver) Fetch(ctx context.Context, name, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, r.tool, "--fetch", "--dir", dir)

	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("base-image fetch via %s failed: %w\nOutput: %s", r.tool, err, string(output))
	}

	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("base-image fetch did not produce %s: %w", path, err)
	}
	return path, nil
}

// RemoveArtifacts deletes local build artifacts from a prior run. Missing
// files are not an error.
func RemoveArtifacts(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove artifact %s: %w", path, err)
		}
	}
	return nil
}

// checkExecutable reports whether the tool can be invoked: a path must exist
// as a regular file with an execute bit; a bare name must resolve via PATH.
func checkExecutable(tool string) error {
	if !strings.ContainsRune(tool, os.PathSeparator) {
		if _, err := exec.LookPath(tool); err != nil {
			return fmt.Errorf("tool %q not found in PATH: %w", tool, err)
		}
		return nil
	}

	info, err := os.Stat(tool)
	if err != nil {
		return fmt.Errorf("tool %s not found: %w", tool, err)
	}
	if info.IsDir() {
		return fmt.Errorf("tool %s is a directory", tool)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("tool %s is not executable", tool)
	}
	return nil
}
