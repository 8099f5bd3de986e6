package crawler

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultMaxFileBytes skips files larger than 1 MiB
	DefaultMaxFileBytes = 1 << 20
)

var (
	// ErrNotDirectory is returned when the crawl root is not a directory
	ErrNotDirectory = errors.New("not a directory")
	// ErrInvalidPattern is returned for malformed exclude globs
	ErrInvalidPattern = errors.New("invalid exclude pattern")
)

// DefaultExcludes are doublestar patterns matched against slash-separated
// paths relative to the crawl root
var DefaultExcludes = []string{
	"**/.git",
	"**/node_modules",
	"**/vendor",
	"**/target*",
	"**/*.min.js",
}

// Options configures a Crawler
type Options struct {
	Excludes       []string
	IncludeHidden  bool
	FollowSymlinks bool
	MaxFileBytes   int64
	Logger         *slog.Logger
}

// File is one crawled regular file
type File struct {
	Path    string // Absolute path as reached by the walk
	RelPath string // Slash-separated, relative to the root
	Content []byte
	Hash    [32]byte
	ModTime time.Time
	Size    int64
}

// Crawler walks a directory tree and yields readable files
type Crawler struct {
	root     string
	excludes []string
	opts     Options
	logger   *slog.Logger
}

// New creates a Crawler rooted at the canonical form of root
func New(root string, opts Options) (*Crawler, error) {
	canonical, err := Canonicalize(root)
	if err != nil {
		return nil, err
	}

	for _, pattern := range opts.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Crawler{
		root:     canonical,
		excludes: opts.Excludes,
		opts:     opts,
		logger:   logger.With("component", "crawler", "root", canonical),
	}, nil
}

// Root returns the canonical crawl root
func (c *Crawler) Root() string {
	return c.root
}

// Crawl walks the tree depth-first in lexical order and calls visit for
// every eligible file. Files are read one at a time, so a visit that blocks
// pauses the walk. Unreadable entries are logged and skipped; failing to
// read the root itself is returned. A non-nil error from visit stops the
// walk and is returned.
func (c *Crawler) Crawl(ctx context.Context, visit func(*File) error) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, c.root)
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return fmt.Errorf("read root: %w", err)
	}

	visited := map[string]struct{}{c.root: {}}
	return c.walkEntries(ctx, c.root, "", entries, visited, visit)
}

func (c *Crawler) walkDir(ctx context.Context, dir, rel string, visited map[string]struct{}, visit func(*File) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		c.logger.Warn("skipping unreadable directory", "path", rel, "error", err)
		return nil
	}
	return c.walkEntries(ctx, dir, rel, entries, visited, visit)
}

func (c *Crawler) walkEntries(ctx context.Context, dir, rel string, entries []fs.DirEntry, visited map[string]struct{}, visit func(*File) error) error {
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := entry.Name()
		if !c.opts.IncludeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		full := filepath.Join(dir, name)
		relPath := path.Join(rel, name)
		if c.excluded(relPath) {
			continue
		}

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			if !c.opts.FollowSymlinks {
				continue
			}
			target, err := os.Stat(full)
			if err != nil {
				c.logger.Warn("skipping broken symlink", "path", relPath, "error", err)
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			canonical, err := filepath.EvalSymlinks(full)
			if err != nil {
				c.logger.Warn("skipping unresolvable directory", "path", relPath, "error", err)
				continue
			}
			if _, seen := visited[canonical]; seen {
				c.logger.Debug("skipping already visited directory", "path", relPath)
				continue
			}
			visited[canonical] = struct{}{}

			if err := c.walkDir(ctx, full, relPath, visited, visit); err != nil {
				return err
			}
		case mode.IsRegular():
			file, ok := c.readFile(full, relPath)
			if !ok {
				continue
			}
			if err := visit(file); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Crawler) readFile(full, relPath string) (*File, bool) {
	info, err := os.Stat(full)
	if err != nil {
		c.logger.Warn("skipping unreadable file", "path", relPath, "error", err)
		return nil, false
	}
	if info.Size() > c.opts.MaxFileBytes {
		c.logger.Debug("skipping large file", "path", relPath, "size", info.Size())
		return nil, false
	}

	content, err := os.ReadFile(full)
	if err != nil {
		c.logger.Warn("skipping unreadable file", "path", relPath, "error", err)
		return nil, false
	}

	return &File{
		Path:    full,
		RelPath: relPath,
		Content: content,
		Hash:    sha256.Sum256(content),
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}, true
}

func (c *Crawler) excluded(relPath string) bool {
	for _, pattern := range c.excludes {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// Canonicalize returns the absolute, symlink-free form of p. Job records
// and stored directories are keyed by this form.
func Canonicalize(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", p, err)
	}
	return filepath.Clean(resolved), nil
}
