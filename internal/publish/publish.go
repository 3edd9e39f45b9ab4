// Package publish uploads a built output tree to an S3-compatible bucket.
package publish

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/retry"
	"git.home.luguber.info/inful/gardener/internal/server"
)

// Config describes the target bucket.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// Retry paces upload retries. The zero value means retry.DefaultPolicy.
	Retry retry.Policy
}

// objectStore is the subset of *minio.Client the publisher calls.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
}

// Publisher mirrors an output directory into a bucket.
type Publisher struct {
	store    objectStore
	bucket   string
	region   string
	prefix   string
	retry    retry.Policy
	initOnce sync.Once
	initErr  error
}

// Report summarizes one publish.
type Report struct {
	Uploaded int
	Removed  int
	Bytes    int64
}

// New validates cfg and creates the minio client.
func New(cfg Config) (*Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.ConfigError("publish endpoint is required").Build()
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.ConfigError("publish bucket is required").Build()
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.ConfigError("publish access key and secret key are required").Build()
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryPublish, "init s3 client").Build()
	}
	p := newPublisher(client, bucket, region, cfg.Prefix)
	if cfg.Retry.Validate() == nil {
		p.retry = cfg.Retry
	}
	return p, nil
}

func newPublisher(store objectStore, bucket, region, prefix string) *Publisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Publisher{store: store, bucket: bucket, region: region, prefix: prefix, retry: retry.DefaultPolicy()}
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.store.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Key maps a slash-separated output path to its object key.
func (p *Publisher) Key(rel string) string {
	return p.prefix + strings.TrimLeft(rel, "/")
}

// Publish uploads every file under dir and removes objects under the prefix that no
// longer exist locally.
func (p *Publisher) Publish(ctx context.Context, dir string) (Report, error) {
	var rep Report
	if err := p.ensureBucket(ctx); err != nil {
		return rep, errors.WrapError(err, errors.CategoryPublish, "ensure bucket").WithContext("bucket", p.bucket).Build()
	}

	files, err := listFiles(dir)
	if err != nil {
		return rep, err
	}
	live := make(map[string]struct{}, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		key := p.Key(rel)
		live[key] = struct{}{}
		var n int64
		err := p.retry.Do(ctx, transient, func() error {
			var uerr error
			n, uerr = p.upload(ctx, filepath.Join(dir, filepath.FromSlash(rel)), key)
			return uerr
		})
		if err != nil {
			return rep, errors.WrapError(err, errors.CategoryPublish, "upload failed").WithContext("key", key).Build()
		}
		rep.Uploaded++
		rep.Bytes += n
		slog.Debug("Uploaded object", logfields.Path(key), slog.Int64("bytes", n))
	}

	for obj := range p.store.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{Prefix: p.prefix, Recursive: true}) {
		if obj.Err != nil {
			return rep, errors.WrapError(obj.Err, errors.CategoryPublish, "list objects").Build()
		}
		if _, ok := live[obj.Key]; ok || obj.Key == "" {
			continue
		}
		if err := p.store.RemoveObject(ctx, p.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return rep, errors.WrapError(err, errors.CategoryPublish, "remove stale object").WithContext("key", obj.Key).Build()
		}
		rep.Removed++
	}

	slog.Info("Published site",
		slog.String("bucket", p.bucket),
		slog.String("prefix", p.prefix),
		slog.Int("uploaded", rep.Uploaded),
		slog.Int("removed", rep.Removed))
	return rep, nil
}

func (p *Publisher) upload(ctx context.Context, full, key string) (int64, error) {
	f, err := os.Open(full)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	_, err = p.store.PutObject(ctx, p.bucket, key, f, info.Size(), objectOptions(key))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// transient reports failures worth another attempt: server-side errors, throttling and
// network errors.
func transient(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode >= 500 || resp.Code == "SlowDown" || resp.Code == "RequestTimeout" {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne)
}

func objectOptions(key string) minio.PutObjectOptions {
	opts := minio.PutObjectOptions{
		ContentType:  server.ContentType(key),
		CacheControl: server.CacheControl(key),
	}
	if opts.ContentType == "" {
		opts.ContentType = "application/octet-stream"
	}
	return opts
}

func listFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, fmt.Sprintf("failed to read output directory %s", dir)).Build()
	}
	sort.Strings(out)
	return out, nil
}
