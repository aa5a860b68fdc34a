// Package upload turns binary attachment payloads into durable public
// references. Upload and message-send are sequential by design: a
// message referencing a not-yet-durable attachment has no useful
// partial state.
package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	blobport "github.com/Behappytocode/circle/internal/infrastructure/blob/port"
)

// Kind selects the logical bucket an attachment lands in.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Bucket names, mirrored in the blob store configuration.
const (
	BucketImages = "images"
	BucketVoice  = "voice-notes"
)

var ErrUnknownKind = errors.New("upload: unknown attachment kind")

var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

// Uploader writes attachments to the blob store. No retry logic lives
// here; a failed upload aborts that send and the caller may retry.
type Uploader struct {
	store blobport.Store
	log   *zap.Logger
	now   func() time.Time
}

func New(store blobport.Store, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{store: store, log: log.Named("upload"), now: time.Now}
}

// Upload stores data and returns its public URL. Keys are prefixed with
// the upload instant so names never collide across senders.
func (u *Uploader) Upload(ctx context.Context, kind Kind, name string, data []byte) (string, error) {
	var bucket string
	switch kind {
	case KindImage:
		bucket = BucketImages
	case KindAudio:
		bucket = BucketVoice
	default:
		return "", ErrUnknownKind
	}
	if len(data) == 0 {
		return "", errors.New("upload: empty payload")
	}

	key := fmt.Sprintf("%d-%s", u.now().UnixMilli(), path.Base(name))
	contentType := contentTypes[path.Ext(name)]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := u.store.Upload(ctx, bucket, key, data, contentType); err != nil {
		return "", fmt.Errorf("upload: store %s: %w", key, err)
	}
	url, err := u.store.PublicURL(bucket, key)
	if err != nil {
		return "", fmt.Errorf("upload: public url for %s: %w", key, err)
	}
	u.log.Info("attachment stored",
		zap.String("bucket", bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	return url, nil
}
