package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/leeforge/catalogkit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: "/images/a.webp", want: "images/a.webp"},
		{in: "images/a.webp", want: "images/a.webp"},
		{in: "../../etc/passwd", want: "etc/passwd"},
		{in: `images\products\b.png`, want: "images/products/b.png"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanKey(tt.in), tt.in)
	}
}

func TestLocalProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	p, err := NewLocalProvider(base, "https://cdn.example.com/")
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, p.Name())

	url, err := p.Put(ctx, "/images/products/oil.webp", bytes.NewReader([]byte("webp")))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/images/products/oil.webp", url)

	ok, err := p.Exists(ctx, "/images/products/oil.webp")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := p.Stat(ctx, "images/products/oil.webp")
	require.NoError(t, err)
	assert.EqualValues(t, 4, info.Size)
	assert.Equal(t, "images/products/oil.webp", info.Path)

	rc, err := p.Open(ctx, "images/products/oil.webp")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "webp", string(data))

	_, err = os.Stat(filepath.Join(base, "images", "products", "oil.webp"))
	assert.NoError(t, err)
}

func TestLocalProviderMissing(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(t.TempDir(), "")
	require.NoError(t, err)

	ok, err := p.Exists(ctx, "images/missing.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.Stat(ctx, "images/missing.png")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	_, err = p.Open(ctx, "images/missing.png")
	assert.True(t, stderrors.Is(err, apperrors.ErrNotFound))

	list, err := p.List(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalProviderList(t *testing.T) {
	ctx := context.Background()
	p, err := NewLocalProvider(t.TempDir(), "")
	require.NoError(t, err)

	for _, name := range []string{"products/b.png", "products/a.png", "products/sub/c.png", "other/d.png"} {
		_, err := p.Put(ctx, name, bytes.NewReader([]byte(name)))
		require.NoError(t, err)
	}

	list, err := p.List(ctx, "products")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "products/a.png", list[0].Path)
	assert.Equal(t, "products/b.png", list[1].Path)
	assert.Equal(t, "products/sub/c.png", list[2].Path)

	all, err := p.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{Type: TypeLocal, Local: LocalConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, TypeLocal, p.Name())

	_, err = NewProvider(Config{Type: "s3"})
	assert.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "/a/b.png", joinURL("", "a/b.png"))
	assert.Equal(t, "https://x.io/a/b.png", joinURL("https://x.io/", "a/b.png"))
}
