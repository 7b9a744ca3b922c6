package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	TypeLocal = "local"
	TypeOSS   = "oss"
)

// Provider is a filesystem-like mapping from slash-separated relative paths
// to binary blobs.
type Provider interface {
	Exists(ctx context.Context, path string) (bool, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Put stores r under path and returns its public URL.
	Put(ctx context.Context, path string, r io.Reader) (string, error)
	// List returns every object below prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Name() string
}

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

type Config struct {
	Type  string      `mapstructure:"type" json:"type" yaml:"type" default:"local" validate:"oneof=local oss"`
	Local LocalConfig `mapstructure:"local" json:"local" yaml:"local"`
	OSS   OSSConfig   `mapstructure:"oss" json:"oss" yaml:"oss"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path" yaml:"base_path" default:"public"`
	BaseURL  string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
}

type OSSConfig struct {
	// Endpoint: oss-cn-hangzhou.aliyuncs.com
	Endpoint        string `mapstructure:"endpoint" json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id" yaml:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret" json:"-" yaml:"access_key_secret"`
	Bucket          string `mapstructure:"bucket" json:"bucket" yaml:"bucket"`
	Domain          string `mapstructure:"domain" json:"domain" yaml:"domain"`

	// Prefix is prepended to every object key.
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`
}

// NewProvider creates the provider selected by cfg.Type.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocalProvider(cfg.Local.BasePath, cfg.Local.BaseURL)
	case TypeOSS:
		return NewOSSProvider(cfg.OSS)
	default:
		return nil, fmt.Errorf("unsupported storage provider type: %s", cfg.Type)
	}
}

// cleanKey turns a user supplied path into a relative slash path that cannot
// climb above the provider root. "/images/a.png" and "images/a.png" are the same.
func cleanKey(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimSuffix(base, "/") + "/" + key
}
