package fscache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ignore IgnoreChecker) *Cache {
	return New(Options{
		Ignore: ignore,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func slashJoin(elem ...string) string {
	return filepath.ToSlash(filepath.Join(elem...))
}

func TestCache_HasFileChanged(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := slashJoin(dir, "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("export const a = 1;\n"), 0644))

	c := newTestCache(nil)

	changed, err := c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.True(t, changed, "uncached file counts as changed")

	changed, err = c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.False(t, changed, "same content is not a change")

	require.NoError(t, os.WriteFile(path, []byte("export const a = 2;\n"), 0644))
	changed, err = c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.True(t, changed, "new content is a change")
}

func TestCache_HasFileChanged_DeletedFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := slashJoin(dir, "gone.ts")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	c := newTestCache(nil)
	_, err := c.ReadFile(ctx, path, false)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	changed, err := c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.False(t, changed, "missing and never cached is not a change")
}

func TestCache_ReadFile_UsesCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := slashJoin(dir, "app.css")
	require.NoError(t, os.WriteFile(path, []byte("a{}"), 0644))

	c := newTestCache(nil)
	data, err := c.ReadFile(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(data))

	require.NoError(t, os.WriteFile(path, []byte("b{}"), 0644))

	cached, err := c.ReadFile(ctx, path, true)
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(cached), "cached read serves the old content")

	fresh, err := c.ReadFile(ctx, path, false)
	require.NoError(t, err)
	assert.Equal(t, "b{}", string(fresh), "bypassing read sees the new content")
}

func TestCache_ClearFileCache(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := slashJoin(dir, "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	c := newTestCache(nil)
	_, err := c.ReadFile(ctx, path, false)
	require.NoError(t, err)

	c.ClearFileCache(path)

	_, err = c.Cached(path)
	assert.ErrorIs(t, err, ErrNotCached)
}

func TestCache_Readdir_Recursive(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := slashJoin(dir, "components")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "components", "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components", "a.ts"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "components", "sub", "b.css"), []byte("b"), 0644))

	c := newTestCache(nil)
	paths, err := c.Readdir(ctx, root, true)
	require.NoError(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{root + "/a.ts", root + "/sub/b.css"}, paths)

	shallow, err := c.Readdir(ctx, root, false)
	require.NoError(t, err)
	assert.Equal(t, []string{root + "/a.ts"}, shallow)
}

func TestCache_Readdir_CacheInvalidation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	root := filepath.ToSlash(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ts"), []byte("a"), 0644))

	c := newTestCache(nil)
	first, err := c.Readdir(ctx, root, true)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ts"), []byte("b"), 0644))

	stale, err := c.Readdir(ctx, root, true)
	require.NoError(t, err)
	assert.Len(t, stale, 1, "listing is served from cache")

	c.ClearDirCache(root)
	fresh, err := c.Readdir(ctx, root, true)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestCache_Readdir_MissingDir(t *testing.T) {
	c := newTestCache(nil)
	paths, err := c.Readdir(context.Background(), filepath.ToSlash(filepath.Join(t.TempDir(), "nope")), true)
	assert.Error(t, err)
	assert.Empty(t, paths)
}

type skipNodeModules struct{}

func (skipNodeModules) ShouldIgnoreDir(p string) bool { return filepath.Base(p) == "node_modules" }
func (skipNodeModules) ShouldIgnore(p string) bool    { return strings.HasSuffix(p, ".log") }

func TestCache_Readdir_Ignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "x"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "x", "i.js"), []byte("i"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "debug.log"), []byte("l"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.ts"), []byte("a"), 0644))

	c := newTestCache(skipNodeModules{})
	paths, err := c.Readdir(context.Background(), filepath.ToSlash(dir), true)
	require.NoError(t, err)
	assert.Equal(t, []string{slashJoin(dir, "app.ts")}, paths)
}

func TestCache_LargeFileKeepsDigestOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := slashJoin(dir, "bundle.js")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644))

	c := New(Options{MaxContentBytes: 16})
	_, err := c.ReadFile(ctx, path, false)
	require.NoError(t, err)

	_, err = c.Cached(path)
	assert.ErrorIs(t, err, ErrNotCached)

	changed, err := c.HasFileChanged(ctx, path)
	require.NoError(t, err)
	assert.False(t, changed, "digest is still compared")
}

func TestIsBinaryContent(t *testing.T) {
	assert.True(t, IsBinaryContent([]byte{0x89, 0x50, 0x00, 0x47}))
	assert.False(t, IsBinaryContent([]byte("export {}\n")))
	assert.False(t, IsBinaryContent(nil))
}
