package overpass

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Cache stores raw Overpass responses keyed by query.
type Cache interface {
	GetCachedQuery(ctx context.Context, key string) ([]byte, bool, error)
	SetCachedQuery(ctx context.Context, key string, data []byte) error
}

// Key returns the cache key for a query.
func Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

// FileCache keeps a single raw response at Path. The file is treated as the
// answer to whatever query is asked, so a different bbox needs a different
// path.
type FileCache struct {
	Path string
}

// GetCachedQuery returns the cached body if the file exists.
func (c *FileCache) GetCachedQuery(_ context.Context, _ string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "overpass: read cache %s", c.Path)
	}
	return data, true, nil
}

// SetCachedQuery writes the body, creating parent directories.
func (c *FileCache) SetCachedQuery(_ context.Context, _ string, data []byte) error {
	if dir := filepath.Dir(c.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "overpass: create cache dir %s", dir)
		}
	}
	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "overpass: write cache %s", c.Path)
	}
	if err := os.Rename(tmp, c.Path); err != nil {
		return eris.Wrapf(err, "overpass: write cache %s", c.Path)
	}
	return nil
}
