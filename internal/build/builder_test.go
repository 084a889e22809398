package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable shell script into dir and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestBuilder_Preflight(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		tool    string
		wantErr string
	}{
		{
			name: "executable file",
			tool: writeScript(t, dir, "build-overlay", "exit 0"),
		},
		{
			name: "tool in PATH",
			tool: "sh",
		},
		{
			name:    "missing file",
			tool:    filepath.Join(dir, "missing"),
			wantErr: "not found",
		},
		{
			name:    "missing from PATH",
			tool:    "no-such-builder-anywhere",
			wantErr: "not found in PATH",
		},
		{
			name:    "directory",
			tool:    dir + string(os.PathSeparator),
			wantErr: "is a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder(tt.tool).Preflight()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestBuilder_Preflight_NotExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build-overlay")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o644))

	err := NewBuilder(path).Preflight()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not executable")
}

func TestBuilder_Build(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "overlay.iso")

	// Builder script records its arguments and produces the output file.
	tool := writeScript(t, dir, "build-overlay", `echo "$@" > `+filepath.Join(dir, "args")+`
touch "$4"`)

	err := NewBuilder(tool).Build(context.Background(), "test-vm", out)
	require.NoError(t, err)

	args, readErr := os.ReadFile(filepath.Join(dir, "args"))
	require.NoError(t, readErr)
	assert.Equal(t, "--hostname test-vm --iso "+out+"\n", string(args))
	assert.FileExists(t, out)
}

func TestBuilder_Build_Failure(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "build-overlay", `echo "no such profile" >&2; exit 2`)

	err := NewBuilder(tool).Build(context.Background(), "test-vm", "out.iso")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such profile")
}

func TestResolver_LatestName(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{name: "filename printed", body: `echo alpine-3.19.iso`, want: "alpine-3.19.iso"},
		{name: "trailing whitespace", body: `printf 'alpine-3.19.iso \n'`, want: "alpine-3.19.iso"},
		{name: "empty output", body: `true`, wantErr: "returned no filename"},
		{name: "failure", body: `exit 1`, wantErr: "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := writeScript(t, t.TempDir(), "base-image", tt.body)
			name, err := NewResolver(tool).LatestName(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestResolver_Fetch(t *testing.T) {
	dir := t.TempDir()
	downloads := t.TempDir()

	tool := writeScript(t, dir, "base-image", `touch "$3/alpine-3.19.iso"`)

	path, err := NewResolver(tool).Fetch(context.Background(), "alpine-3.19.iso", downloads)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(downloads, "alpine-3.19.iso"), path)
	assert.FileExists(t, path)
}

func TestResolver_Fetch_MissingOutput(t *testing.T) {
	dir := t.TempDir()
	tool := writeScript(t, dir, "base-image", `exit 0`)

	_, err := NewResolver(tool).Fetch(context.Background(), "alpine-3.19.iso", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not produce")
}

func TestRemoveArtifacts(t *testing.T) {
	dir := t.TempDir()

	present := filepath.Join(dir, "overlay.iso")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))
	absent := filepath.Join(dir, "never-built.iso")

	err := RemoveArtifacts(present, absent, "")
	require.NoError(t, err)
	assert.NoFileExists(t, present)
}

func TestRemoveArtifacts_Failure(t *testing.T) {
	// Removing a non-empty directory fails; anything other than not-exist
	// must propagate.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	err := RemoveArtifacts(dir)
	require.Error(t, err)
}
