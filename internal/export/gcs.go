package export

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"gridpulse/internal/support/errs"
	"gridpulse/internal/support/logger"
)

// GCSSink uploads Parquet files to a Google Cloud Storage bucket.
type GCSSink struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink creates a sink for the given bucket. credentialsFile may be
// empty, in which case application default credentials are used.
func NewGCSSink(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSSink, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.InternalError(moduleName, "failed to create GCS client", err)
	}
	return &GCSSink{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSink) Put(ctx context.Context, objectName string, data []byte) error {
	name := path.Join(s.prefix, objectName)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errs.InternalError(moduleName, fmt.Sprintf("failed to upload gs://%s/%s", s.bucket, name), err)
	}
	if err := w.Close(); err != nil {
		return errs.InternalError(moduleName, fmt.Sprintf("failed to finalize gs://%s/%s", s.bucket, name), err)
	}
	logger.Debugf("Uploaded gs://%s/%s (%d bytes).", s.bucket, name, len(data))
	return nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
