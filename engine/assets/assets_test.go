package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "triangle.vert.spv"), []byte{3, 2, 35, 7}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignored"), 0o644))

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, dir
}

func TestLoadIndexedAsset(t *testing.T) {
	am, _ := newManager(t)

	data, err := am.Load("shaders/triangle.vert.spv")
	require.NoError(t, err)
	require.Equal(t, []byte{3, 2, 35, 7}, data)

	info, ok := am.Info("shaders/triangle.vert.spv")
	require.True(t, ok)
	require.Equal(t, AssetTypeShaderBinary, info.Type)
	require.False(t, info.LastLoaded.IsZero())
}

func TestLoadUnknownAsset(t *testing.T) {
	am, _ := newManager(t)

	_, err := am.Load("shaders/missing.spv")
	require.ErrorIs(t, err, ErrAssetNotFound)
	_, err = am.Load("readme.txt")
	require.ErrorIs(t, err, ErrAssetNotFound)
	_, err = am.Load("../outside.spv")
	require.ErrorIs(t, err, ErrAssetNotFound)
}

func TestWriteIsReported(t *testing.T) {
	am, dir := newManager(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "shaders", "triangle.frag.spv"), []byte{1, 2, 3, 4}, 0o644))

	require.Eventually(t, func() bool {
		select {
		case path := <-am.Changes():
			return path == "shaders/triangle.frag.spv"
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	data, err := am.Load("shaders/triangle.frag.spv")
	require.NoError(t, err)
	require.Len(t, data, 4)
}

func TestNewDirectoryIsWatched(t *testing.T) {
	am, dir := newManager(t)

	sub := filepath.Join(dir, "shaders", "extra")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// The watch on the new directory is added asynchronously.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(sub, "post.frag.spv"), []byte{0, 0, 0, 0}, 0o644)
		_, ok := am.Info("shaders/extra/post.frag.spv")
		return ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRemovedAssetLeavesIndex(t *testing.T) {
	am, dir := newManager(t)

	require.NoError(t, os.Remove(filepath.Join(dir, "shaders", "triangle.vert.spv")))
	require.Eventually(t, func() bool {
		_, ok := am.Info("shaders/triangle.vert.spv")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdownClosesChanges(t *testing.T) {
	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(t.TempDir()))
	require.NoError(t, am.Shutdown())
	require.NoError(t, am.Shutdown())

	_, open := <-am.Changes()
	require.False(t, open)
}

func TestDetermineAssetType(t *testing.T) {
	require.Equal(t, AssetTypeShaderBinary, determineAssetType("a/b.frag.spv"))
	require.Equal(t, AssetTypeShaderSource, determineAssetType("b.vert"))
	require.Equal(t, AssetTypeConfig, determineAssetType("config.toml"))
	require.Equal(t, AssetTypeNone, determineAssetType("image.png"))
}
