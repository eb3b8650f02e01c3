// Package artifact stores generated overlays on disk. A file's existence is
// its cache entry; entries never expire.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/lightning-overlay-service/internal/domain"
)

// Dir is the subdirectory of the static root that holds overlays.
const Dir = "generated_maps"

// Cache maps requests to overlay files under a static root.
type Cache struct {
	root string
}

// NewCache creates a cache rooted at root (typically STATIC_DIR).
func NewCache(root string) *Cache {
	return &Cache{root: root}
}

// Ref returns the slash-separated reference for req, relative to the static
// root, e.g. "generated_maps/overlay_lowres_BE_2024-06-01.png".
func (c *Cache) Ref(req domain.Request) string {
	name := fmt.Sprintf("overlay_%s_%s_%s.png", req.Product.Tier, req.Country, req.DateString())
	return path.Join(Dir, name)
}

// Path resolves a reference to a filesystem path.
func (c *Cache) Path(ref string) string {
	return filepath.Join(c.root, filepath.FromSlash(ref))
}

// Exists reports whether ref is present.
func (c *Cache) Exists(ref string) bool {
	info, err := os.Stat(c.Path(ref))
	return err == nil && info.Mode().IsRegular()
}

// Commit writes an entry through write. Output goes to a temporary file in the
// target directory and is renamed into place only when write succeeds, so
// readers never see a partial file.
func (c *Cache) Commit(ref string, write func(io.Writer) error) error {
	dst := c.Path(ref)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*.png")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	// Runs on every exit, including a panic in write.
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("commit %s: %w", ref, err)
	}
	committed = true
	return nil
}

// List returns the references of all committed overlays, sorted.
func (c *Cache) List() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(c.root, Dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list cache: %w", err)
	}

	var refs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "overlay_") || filepath.Ext(name) != ".png" {
			continue
		}
		refs = append(refs, path.Join(Dir, name))
	}
	sort.Strings(refs)
	return refs, nil
}
