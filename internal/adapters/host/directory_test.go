package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/addonctl/internal/ports"
	"github.com/felixgeelhaar/addonctl/internal/testutil"
)

func newHost(t *testing.T) (*DirectoryHost, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "plugins")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return NewDirectoryHost(dir, filepath.Join(root, "data", "installed.json"), map[string]string{"mcdreforged": "2.13.0"}), dir
}

func TestDirectoryHost_LoadAndLookup(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()
	path := testutil.WriteTempFile(t, dir, "foo-1.0.0.mcdr", "foo")

	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: path}))

	p, ok, err := h.Lookup(ctx, "foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ports.InstalledPlugin{ID: "foo", Version: "1.0.0", FilePath: path}, p)

	installed, err := h.Installed(ctx)
	require.NoError(t, err)
	require.Len(t, installed, 2)
	assert.Equal(t, "foo", installed[0].ID)
	assert.Equal(t, "mcdreforged", installed[1].ID)
	assert.Empty(t, installed[1].FilePath)
	assert.Equal(t, dir, h.PluginDirectory())
}

func TestDirectoryHost_RejectsSecondVersion(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()
	v1 := testutil.WriteTempFile(t, dir, "foo-1.0.0.mcdr", "1")
	v2 := testutil.WriteTempFile(t, dir, "foo-2.0.0.mcdr", "2")

	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: v1}))
	err := h.Load(ctx, ports.Artifact{ID: "foo", Version: "2.0.0", Path: v2})
	assert.ErrorIs(t, err, ErrAlreadyLoaded)

	require.NoError(t, h.Unload(ctx, "foo"))
	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "2.0.0", Path: v2}))
	testutil.AssertFileExists(t, v1)
}

func TestDirectoryHost_LoadErrors(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()

	err := h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: filepath.Join(dir, "missing.mcdr")})
	assert.ErrorIs(t, err, ErrArtifactMissing)

	path := testutil.WriteTempFile(t, dir, "mcdr.mcdr", "x")
	err = h.Load(ctx, ports.Artifact{ID: "mcdreforged", Version: "3.0.0", Path: path})
	assert.ErrorIs(t, err, ErrHostManaged)

	assert.ErrorIs(t, h.Unload(ctx, "ghost"), ErrNotLoaded)
	assert.ErrorIs(t, h.Unload(ctx, "mcdreforged"), ErrHostManaged)
	assert.ErrorIs(t, h.Reload(ctx, "ghost"), ErrNotLoaded)
}

func TestDirectoryHost_Disable(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()
	path := testutil.WriteTempFile(t, dir, "foo.mcdr", "foo")
	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: path}))

	require.NoError(t, h.Disable(ctx, "foo"))

	testutil.AssertFileNotExists(t, path)
	testutil.AssertFileExists(t, path+DisabledSuffix)
	_, ok, err := h.Lookup(ctx, "foo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectoryHost_Reload(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()
	foo := testutil.WriteTempFile(t, dir, "foo.mcdr", "foo")
	bar := testutil.WriteTempFile(t, dir, "bar.mcdr", "bar")
	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: foo}))
	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "bar", Version: "0.3.0", Path: bar}))

	require.NoError(t, h.Reload(ctx, "foo"))

	p, ok, err := h.Lookup(ctx, "foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ports.InstalledPlugin{ID: "foo", Version: "1.0.0", FilePath: foo}, p)

	require.NoError(t, os.Remove(foo))
	assert.ErrorIs(t, h.Reload(ctx, "foo"), ErrArtifactMissing)

	_, ok, err = h.Lookup(ctx, "foo")
	require.NoError(t, err)
	assert.False(t, ok, "a plugin whose file vanished stays unloaded after reload")
	assert.ErrorIs(t, h.Reload(ctx, "foo"), ErrNotLoaded)

	installed, err := h.Installed(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(installed))
	for _, p := range installed {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"bar", "mcdreforged"}, ids)

	assert.ErrorIs(t, h.Reload(ctx, "mcdreforged"), ErrHostManaged)
	assert.ErrorIs(t, h.Reload(ctx, "ghost"), ErrNotLoaded)
}

func TestDirectoryHost_StatePersists(t *testing.T) {
	t.Parallel()

	h, dir := newHost(t)
	ctx := context.Background()
	path := testutil.WriteTempFile(t, dir, "foo.mcdr", "foo")
	require.NoError(t, h.Load(ctx, ports.Artifact{ID: "foo", Version: "1.0.0", Path: path}))

	reopened := NewDirectoryHost(dir, h.statePath, nil)
	p, ok, err := reopened.Lookup(ctx, "foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.0.0", p.Version)

	require.NoError(t, os.WriteFile(h.statePath, []byte("{broken"), 0o644))
	_, err = reopened.Installed(ctx)
	assert.ErrorContains(t, err, "failed to parse host state")
}
