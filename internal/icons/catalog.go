// Package icons lists the device icons a user can pick from.
package icons

import (
	"context"
	"io/fs"
	"os"
	"path"
	"slices"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/metrics"
)

const (
	DefaultDir    = "/www/luci-static/resources/icons/device"
	DefaultPrefix = "/luci-static/resources/icons/device"
	DefaultName   = "default.png"

	// maxScanned bounds how many directory entries are considered.
	maxScanned = 51
	cacheTTL   = 10 * time.Minute
)

// Catalog lists icon files and remembers the listing for a while.
type Catalog struct {
	fsys   fs.FS
	prefix string
	cache  *lru.LRU[string, []string]
}

// New serves icons from dir on disk, published under prefix.
func New(dir, prefix string) *Catalog {
	if dir == "" {
		dir = DefaultDir
	}

	return NewFS(os.DirFS(dir), prefix)
}

// NewFS serves icons from the root of fsys.
func NewFS(fsys fs.FS, prefix string) *Catalog {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Catalog{
		fsys:   fsys,
		prefix: prefix,
		cache:  lru.NewLRU[string, []string](1, nil, cacheTTL),
	}
}

// Default is the icon path shown for devices without a custom icon.
func (c *Catalog) Default() string {
	return path.Join(c.prefix, DefaultName)
}

// List returns the sorted icon paths. default.png is never listed and at
// most the first 51 directory entries are considered. A missing directory
// yields an empty list.
func (c *Catalog) List(ctx context.Context) []string {
	if v, ok := c.cache.Get(c.prefix); ok {
		metrics.RecordIconLookup(true)

		return slices.Clone(v)
	}

	metrics.RecordIconLookup(false)

	entries, err := fs.ReadDir(c.fsys, ".")
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("icon directory unreadable")

		return []string{}
	}

	out := make([]string, 0, min(len(entries), maxScanned))

	for i, e := range entries {
		if i >= maxScanned {
			break
		}

		if e.IsDir() || e.Name() == DefaultName {
			continue
		}

		out = append(out, path.Join(c.prefix, e.Name()))
	}

	slices.Sort(out)
	c.cache.Add(c.prefix, out)

	return slices.Clone(out)
}

// Validate reports ErrIconNotFound unless iconPath is listed.
func (c *Catalog) Validate(ctx context.Context, iconPath string) error {
	if slices.Contains(c.List(ctx), iconPath) {
		return nil
	}

	return customerrors.ErrIconNotFoundWithPath(iconPath)
}

// Invalidate drops the cached listing.
func (c *Catalog) Invalidate() {
	c.cache.Purge()
}
