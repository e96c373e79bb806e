package objectstore

import (
	"context"
	"io"
	"time"
)

// Store is the read side of an S3-compatible bucket.
type Store interface {
	// List returns every object currently in bucket, in listing order.
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
}

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// IsDirMarker reports whether key is a zero-length "folder" placeholder
// rather than an object with content.
func IsDirMarker(info ObjectInfo) bool {
	return info.Size == 0 && len(info.Key) > 0 && info.Key[len(info.Key)-1] == '/'
}
