package publish

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
	"git.home.luguber.info/inful/gardener/internal/retry"
)

type fakeStore struct {
	mu      sync.Mutex
	failPut int
	exists  bool
	made    int
	objects map[string][]byte
	opts    map[string]minio.PutObjectOptions
	removed []string
}

func newFakeStore(existing ...string) *fakeStore {
	f := &fakeStore{objects: map[string][]byte{}, opts: map[string]minio.PutObjectOptions{}}
	for _, k := range existing {
		f.objects[k] = []byte("old")
	}
	return f
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeStore) PutObject(_ context.Context, _, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPut > 0 {
		f.failPut--
		return minio.UploadInfo{}, minio.ErrorResponse{StatusCode: 503, Code: "SlowDown"}
	}
	f.objects[key] = data
	f.opts[key] = opts
	return minio.UploadInfo{Key: key, Size: size}, nil
}

func (f *fakeStore) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	f.mu.Lock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if len(k) >= len(opts.Prefix) && k[:len(opts.Prefix)] == opts.Prefix {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	ch := make(chan minio.ObjectInfo, len(keys))
	for _, k := range keys {
		ch <- minio.ObjectInfo{Key: k}
	}
	close(ch)
	return ch
}

func (f *fakeStore) RemoveObject(_ context.Context, _, key string, _ minio.RemoveObjectOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestPublishUploadsAndPrunes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"index.html":           "<html></html>",
		"notes/a.html":         "a",
		"static/img.webp":      "img",
		"static/fonts/x.woff2": "font",
	})
	store := newFakeStore("site/stale.html", "other/keep.html")
	p := newPublisher(store, "garden", "us-east-1", "/site/")

	rep, err := p.Publish(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Uploaded)
	assert.Equal(t, 1, rep.Removed)
	assert.Equal(t, int64(len("<html></html>")+len("a")+len("img")+len("font")), rep.Bytes)
	assert.Equal(t, 1, store.made)

	assert.Equal(t, []string{"site/stale.html"}, store.removed)
	assert.Contains(t, store.objects, "other/keep.html")
	assert.Equal(t, "a", string(store.objects["site/notes/a.html"]))

	assert.Equal(t, "image/webp", store.opts["site/static/img.webp"].ContentType)
	assert.Contains(t, store.opts["site/index.html"].ContentType, "text/html")
	assert.Equal(t, "no-cache, must-revalidate", store.opts["site/index.html"].CacheControl)
	assert.Equal(t, "public, max-age=31536000, immutable", store.opts["site/static/fonts/x.woff2"].CacheControl)
}

func TestPublishRetriesTransientUploads(t *testing.T) {
	dir := writeTree(t, map[string]string{"index.html": "hi"})
	store := newFakeStore()
	store.failPut = 2
	p := newPublisher(store, "garden", "us-east-1", "")
	p.retry = retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2)

	rep, err := p.Publish(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Uploaded)
	assert.Equal(t, "hi", string(store.objects["index.html"]))

	store.failPut = 3
	_, err = newPublisherWith(store, p.retry).Publish(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryPublish))
}

func newPublisherWith(store objectStore, policy retry.Policy) *Publisher {
	p := newPublisher(store, "garden", "us-east-1", "")
	p.retry = policy
	return p
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(minio.ErrorResponse{StatusCode: 500}))
	assert.False(t, transient(minio.ErrorResponse{StatusCode: 403, Code: "AccessDenied"}))
	assert.False(t, transient(os.ErrNotExist))
}

func TestKeyMapping(t *testing.T) {
	assert.Equal(t, "a/b.html", newPublisher(newFakeStore(), "b", "r", "").Key("/a/b.html"))
	assert.Equal(t, "pre/a.html", newPublisher(newFakeStore(), "b", "r", "pre").Key("a.html"))
	assert.Equal(t, "pre/x/a.html", newPublisher(newFakeStore(), "b", "r", " /pre/x/ ").Key("a.html"))
}

func TestObjectOptionsFallback(t *testing.T) {
	assert.Equal(t, "application/octet-stream", objectOptions("CNAME").ContentType)
	assert.Equal(t, "image/avif", objectOptions("x.AVIF").ContentType)
}

func TestPublishMissingDir(t *testing.T) {
	store := newFakeStore()
	store.exists = true
	_, err := newPublisher(store, "b", "r", "").Publish(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryFileSystem))
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.Error(t, err)
	_, err = New(Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	require.Error(t, err)
	_, err = New(Config{Endpoint: "localhost:9000", Bucket: "b"})
	require.Error(t, err)

	p, err := New(Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s", Prefix: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x/index.html", p.Key("index.html"))
	assert.Equal(t, retry.DefaultPolicy(), p.retry)

	fast := retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 5)
	p, err = New(Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s", Retry: fast})
	require.NoError(t, err)
	assert.Equal(t, fast, p.retry)
}
