package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/leeforge/catalogkit/errors"
)

// LocalProvider implements Provider for the local filesystem
type LocalProvider struct {
	basePath string
	baseURL  string
}

// NewLocalProvider creates a new local storage provider
func NewLocalProvider(basePath, baseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, apperrors.NewIO("create base directory", basePath, err)
	}
	return &LocalProvider{
		basePath: basePath,
		baseURL:  baseURL,
	}, nil
}

func (p *LocalProvider) fullPath(path string) string {
	return filepath.Join(p.basePath, filepath.FromSlash(cleanKey(path)))
}

// Exists checks if a file exists
func (p *LocalProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(p.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.NewIO("stat", path, err)
}

func (p *LocalProvider) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	info, err := os.Stat(p.fullPath(path))
	if os.IsNotExist(err) {
		return ObjectInfo{}, apperrors.NewNotFound("asset", cleanKey(path))
	}
	if err != nil {
		return ObjectInfo{}, apperrors.NewIO("stat", path, err)
	}
	return ObjectInfo{Path: cleanKey(path), Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (p *LocalProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(p.fullPath(path))
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFound("asset", cleanKey(path))
	}
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	return f, nil
}

// Put saves r to the local filesystem
func (p *LocalProvider) Put(ctx context.Context, path string, r io.Reader) (string, error) {
	fullPath := p.fullPath(path)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", apperrors.NewIO("create directory", filepath.Dir(fullPath), err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", apperrors.NewIO("create", fullPath, err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		return "", apperrors.NewIO("write", fullPath, err)
	}
	if err := dst.Close(); err != nil {
		return "", apperrors.NewIO("close", fullPath, err)
	}

	// URLs always use forward slashes
	return joinURL(p.baseURL, cleanKey(path)), nil
}

func (p *LocalProvider) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	root := p.fullPath(prefix)
	var out []ObjectInfo

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(p.basePath, path)
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewIO("list", prefix, err)
	}

	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Path, out[j].Path) < 0
	})
	return out, nil
}

func (p *LocalProvider) Name() string {
	return TypeLocal
}
