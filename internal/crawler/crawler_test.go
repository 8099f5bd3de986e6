package crawler

import (
	"context"
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func collect(t *testing.T, c *Crawler) map[string]*File {
	t.Helper()
	files := make(map[string]*File)
	err := c.Crawl(context.Background(), func(f *File) error {
		files[f.RelPath] = f
		return nil
	})
	require.NoError(t, err)
	return files
}

func keys(m map[string]*File) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestCrawl(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.rs", "fn foo() {}")
	writeFile(t, root, "docs/b.md", "# b")
	writeFile(t, root, "deep/er/still/c.toml", "x = 1")
	writeFile(t, root, ".hidden/secret.md", "no")
	writeFile(t, root, "node_modules/pkg/index.js", "no")
	writeFile(t, root, "target-debug/out.rs", "no")

	c, err := New(root, Options{Excludes: DefaultExcludes})
	require.NoError(t, err)

	files := collect(t, c)
	assert.Equal(t, []string{"a.rs", "deep/er/still/c.toml", "docs/b.md"}, keys(files))

	a := files["a.rs"]
	assert.Equal(t, []byte("fn foo() {}"), a.Content)
	assert.Equal(t, sha256.Sum256([]byte("fn foo() {}")), a.Hash)
	assert.Equal(t, int64(11), a.Size)
	assert.True(t, filepath.IsAbs(a.Path))
}

func TestCrawlIncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".config/x.md", "x")

	c, err := New(root, Options{IncludeHidden: true})
	require.NoError(t, err)
	assert.Contains(t, collect(t, c), ".config/x.md")
}

func TestCrawlMaxFileBytes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.md", "ok")
	writeFile(t, root, "big.md", "0123456789")

	c, err := New(root, Options{MaxFileBytes: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"small.md"}, keys(collect(t, c)))
}

func TestCrawlSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	root := t.TempDir()
	writeFile(t, root, "sub/a.md", "a")
	require.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken")))

	c, err := New(root, Options{FollowSymlinks: true})
	require.NoError(t, err)

	files := collect(t, c)
	assert.Equal(t, []string{"sub/a.md"}, keys(files))
}

func TestCrawlSkipsSymlinksByDefault(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on windows")
	}
	root := t.TempDir()
	other := t.TempDir()
	writeFile(t, other, "outside.md", "o")
	require.NoError(t, os.Symlink(other, filepath.Join(root, "link")))

	c, err := New(root, Options{})
	require.NoError(t, err)
	assert.Empty(t, collect(t, c))
}

func TestCrawlUnreadableEntry(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	writeFile(t, root, "ok.md", "fine")
	writeFile(t, root, "locked/x.md", "x")
	writeFile(t, root, "secret.md", "s")
	require.NoError(t, os.Chmod(filepath.Join(root, "locked"), 0))
	require.NoError(t, os.Chmod(filepath.Join(root, "secret.md"), 0))
	t.Cleanup(func() {
		_ = os.Chmod(filepath.Join(root, "locked"), 0755)
	})

	c, err := New(root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ok.md"}, keys(collect(t, c)))
}

func TestCrawlVisitError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")
	writeFile(t, root, "b.md", "b")

	c, err := New(root, Options{})
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = c.Crawl(context.Background(), func(f *File) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestCrawlCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.md", "a")

	c, err := New(root, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Crawl(ctx, func(*File) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewErrors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	_, err = New(t.TempDir(), Options{Excludes: []string{"[unclosed"}})
	assert.ErrorIs(t, err, ErrInvalidPattern)

	file := filepath.Join(t.TempDir(), "f.md")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	c, err := New(file, Options{})
	require.NoError(t, err)
	err = c.Crawl(context.Background(), func(*File) error { return nil })
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestCanonicalize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x/y.md", "y")

	a, err := Canonicalize(filepath.Join(root, "x", ".."))
	require.NoError(t, err)
	b, err := Canonicalize(root)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = Canonicalize("")
	assert.Error(t, err)
}
