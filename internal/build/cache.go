package build

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"tfdoc/internal/hclscan"
)

type scanEntry struct {
	blocks []hclscan.Block
	err    error
}

// scanCache scans each file once per build. Blocks are shared read-only
// between the module pass and the definition pass.
type scanCache struct {
	mu      sync.Mutex
	entries map[string]scanEntry
	scan    func(path string) ([]hclscan.Block, error)
}

func newScanCache() *scanCache {
	return &scanCache{
		entries: make(map[string]scanEntry),
		scan:    hclscan.ScanFile,
	}
}

// ScanFile implements modules.FileScanner.
func (c *scanCache) ScanFile(path string) ([]hclscan.Block, error) {
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok {
		return e.blocks, e.err
	}

	blocks, err := c.scan(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		return e.blocks, e.err
	}
	c.entries[path] = scanEntry{blocks: blocks, err: err}
	return blocks, err
}

func (c *scanCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// prefetch scans files in parallel, at most workers at a time. Scan
// errors stay in the cache; only cancellation is returned.
func (c *scanCache) prefetch(ctx context.Context, files []string, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, _ = c.ScanFile(f)
			return nil
		})
	}
	return g.Wait()
}

// terraformFiles lists .tf files under dir. Hidden and ignored
// directories are skipped; without recurse only dir itself is read.
func terraformFiles(dir string, recurse bool, ignore map[string]bool) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if !recurse || strings.HasPrefix(d.Name(), ".") || ignore[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".tf" {
			out = append(out, path)
		}
		return nil
	})
	return out
}
