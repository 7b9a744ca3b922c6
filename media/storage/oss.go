package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	apperrors "github.com/leeforge/catalogkit/errors"
)

// OSSProvider implements Provider for an Aliyun OSS bucket
type OSSProvider struct {
	bucket *oss.Bucket
	prefix string
	domain string // custom domain or CDN domain
}

// NewOSSProvider creates a new OSS storage provider
func NewOSSProvider(cfg OSSConfig) (*OSSProvider, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("get bucket %s: %w", cfg.Bucket, err)
	}

	domain := cfg.Domain
	if domain == "" {
		domain = fmt.Sprintf("https://%s.%s", cfg.Bucket, cfg.Endpoint)
	} else if !strings.HasPrefix(domain, "http") {
		domain = "https://" + domain
	}

	return &OSSProvider{
		bucket: bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		domain: domain,
	}, nil
}

func (p *OSSProvider) objectKey(path string) string {
	key := cleanKey(path)
	if p.prefix == "" || key == "" {
		return p.prefix + key
	}
	return p.prefix + "/" + key
}

func (p *OSSProvider) relPath(key string) string {
	if p.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, p.prefix+"/")
}

func isNotFound(err error) bool {
	var serr oss.ServiceError
	return errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound
}

// Exists checks if an object exists in the bucket
func (p *OSSProvider) Exists(ctx context.Context, path string) (bool, error) {
	ok, err := p.bucket.IsObjectExist(p.objectKey(path))
	if err != nil {
		return false, apperrors.NewIO("stat", path, err)
	}
	return ok, nil
}

func (p *OSSProvider) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	header, err := p.bucket.GetObjectMeta(p.objectKey(path))
	if isNotFound(err) {
		return ObjectInfo{}, apperrors.NewNotFound("asset", cleanKey(path))
	}
	if err != nil {
		return ObjectInfo{}, apperrors.NewIO("stat", path, err)
	}

	size, _ := strconv.ParseInt(header.Get("Content-Length"), 10, 64)
	modTime, _ := http.ParseTime(header.Get("Last-Modified"))
	return ObjectInfo{Path: cleanKey(path), Size: size, ModTime: modTime}, nil
}

func (p *OSSProvider) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	body, err := p.bucket.GetObject(p.objectKey(path))
	if isNotFound(err) {
		return nil, apperrors.NewNotFound("asset", cleanKey(path))
	}
	if err != nil {
		return nil, apperrors.NewIO("open", path, err)
	}
	return body, nil
}

// Put uploads r and returns the object's public URL
func (p *OSSProvider) Put(ctx context.Context, path string, r io.Reader) (string, error) {
	key := p.objectKey(path)
	if err := p.bucket.PutObject(key, r); err != nil {
		return "", apperrors.NewIO("upload", path, err)
	}
	return joinURL(p.domain, key), nil
}

func (p *OSSProvider) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	keyPrefix := p.objectKey(prefix)
	if keyPrefix != "" {
		keyPrefix += "/"
	}

	var out []ObjectInfo
	marker := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.bucket.ListObjects(oss.Prefix(keyPrefix), oss.Marker(marker), oss.MaxKeys(1000))
		if err != nil {
			return nil, apperrors.NewIO("list", prefix, err)
		}
		for _, obj := range res.Objects {
			if strings.HasSuffix(obj.Key, "/") {
				continue
			}
			out = append(out, ObjectInfo{
				Path:    p.relPath(obj.Key),
				Size:    obj.Size,
				ModTime: obj.LastModified.In(time.Local),
			})
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (p *OSSProvider) Name() string {
	return TypeOSS
}
