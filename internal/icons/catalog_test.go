package icons_test

import (
	"context"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customerrors "github.com/bavix/presence/internal/errors"
	"github.com/bavix/presence/internal/icons"
)

func TestCatalogList(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"tv.png":       {},
		"default.png":  {},
		"laptop.png":   {},
		"phone.png":    {},
		"sub/skip.png": {},
	}

	c := icons.NewFS(fsys, "/icons/device")

	assert.Equal(t, []string{
		"/icons/device/laptop.png",
		"/icons/device/phone.png",
		"/icons/device/tv.png",
	}, c.List(context.Background()))
	assert.Equal(t, "/icons/device/default.png", c.Default())
}

func TestCatalogListCapped(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{}
	for i := range 80 {
		fsys[fmt.Sprintf("icon%02d.png", i)] = &fstest.MapFile{}
	}

	list := icons.NewFS(fsys, "").List(context.Background())

	require.Len(t, list, 51)
	assert.Equal(t, icons.DefaultPrefix+"/icon00.png", list[0])
	assert.Equal(t, icons.DefaultPrefix+"/icon50.png", list[50])
}

func TestCatalogCachesListing(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{"a.png": {}}
	c := icons.NewFS(fsys, "/i")

	require.Len(t, c.List(context.Background()), 1)

	fsys["b.png"] = &fstest.MapFile{}
	assert.Len(t, c.List(context.Background()), 1, "served from cache")

	c.Invalidate()
	assert.Len(t, c.List(context.Background()), 2)
}

func TestCatalogValidate(t *testing.T) {
	t.Parallel()

	c := icons.NewFS(fstest.MapFS{"tv.png": {}}, "/i")

	require.NoError(t, c.Validate(context.Background(), "/i/tv.png"))
	require.ErrorIs(t, c.Validate(context.Background(), "/i/nope.png"), customerrors.ErrIconNotFound)
	require.ErrorIs(t, c.Validate(context.Background(), "/i/default.png"), customerrors.ErrIconNotFound)
}

func TestCatalogMissingDir(t *testing.T) {
	t.Parallel()

	c := icons.New(t.TempDir()+"/missing", "")

	assert.Empty(t, c.List(context.Background()))
}
