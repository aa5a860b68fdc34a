package adapter

import (
	"context"
	"fmt"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/Behappytocode/circle/internal/infrastructure/blob/port"
)

// BucketConfig names one logical bucket: the gocloud URL it opens
// (s3://, file://, mem://) and the public base URL uploads are served
// from.
type BucketConfig struct {
	URL        string
	PublicBase string
}

// CloudStore satisfies port.Store over gocloud.dev buckets, one handle
// per logical bucket.
type CloudStore struct {
	buckets map[string]*blob.Bucket
	public  map[string]string
}

// OpenCloudStore opens every configured bucket eagerly so a bad URL
// fails at startup, not on the first upload.
func OpenCloudStore(ctx context.Context, cfgs map[string]BucketConfig) (*CloudStore, error) {
	s := &CloudStore{
		buckets: make(map[string]*blob.Bucket, len(cfgs)),
		public:  make(map[string]string, len(cfgs)),
	}
	for name, cfg := range cfgs {
		b, err := blob.OpenBucket(ctx, cfg.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("blob: open bucket %q: %w", name, err)
		}
		s.buckets[name] = b
		s.public[name] = strings.TrimRight(cfg.PublicBase, "/")
	}
	return s, nil
}

var _ port.Store = (*CloudStore)(nil)

func (s *CloudStore) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	b, ok := s.buckets[bucket]
	if !ok {
		return port.ErrUnknownBucket
	}
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := b.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("blob: write %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *CloudStore) PublicURL(bucket, key string) (string, error) {
	base, ok := s.public[bucket]
	if !ok {
		return "", port.ErrUnknownBucket
	}
	if base == "" {
		return fmt.Sprintf("%s/%s", bucket, key), nil
	}
	return fmt.Sprintf("%s/%s", base, key), nil
}

func (s *CloudStore) Close() error {
	var first error
	for _, b := range s.buckets {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
