// Package gcs downloads clips that the video service wrote to a bucket.
package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"

	"reelgen/internal/fileutil"
	"reelgen/internal/logging"
	"reelgen/internal/services"
)

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (string, string, error) {
	trimmed := strings.TrimSpace(uri)
	rest, ok := strings.CutPrefix(trimmed, "gs://")
	if !ok {
		return "", "", services.Wrap(services.ErrValidation, "gcs", "parse uri", fmt.Sprintf("%q is not a gs:// uri", uri), nil)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", services.Wrap(services.ErrValidation, "gcs", "parse uri", fmt.Sprintf("%q does not name an object", uri), nil)
	}
	return bucket, object, nil
}

// Fetcher streams bucket objects to local files.
type Fetcher struct {
	service *storage.Service
	logger  *slog.Logger
}

// New builds a fetcher. Authentication comes from opts, typically
// option.WithTokenSource.
func New(ctx context.Context, logger *slog.Logger, opts ...option.ClientOption) (*Fetcher, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "gcs", "init", "create storage client", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Fetcher{service: svc, logger: logging.NewComponentLogger(logger, "gcs")}, nil
}

// Fetch downloads uri to dest, verifying size and MD5 against the object
// metadata. It returns the number of bytes written.
func (f *Fetcher) Fetch(ctx context.Context, uri, dest string) (int64, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return 0, err
	}
	logger := logging.WithContext(ctx, f.logger).With(logging.String("uri", uri))

	meta, err := f.service.Objects.Get(bucket, object).Context(ctx).Do()
	if err != nil {
		return 0, classify("stat object", uri, err)
	}
	expect := fileutil.Expect{Size: int64(meta.Size)}
	if meta.Md5Hash != "" {
		sum, decodeErr := base64.StdEncoding.DecodeString(meta.Md5Hash)
		if decodeErr == nil {
			expect.MD5 = sum
		} else {
			logger.Debug("ignoring malformed md5 in object metadata", logging.Error(decodeErr))
		}
	}

	resp, err := f.service.Objects.Get(bucket, object).Context(ctx).Download()
	if err != nil {
		return 0, classify("download object", uri, err)
	}
	defer resp.Body.Close()

	written, err := fileutil.WriteStreamAtomic(dest, resp.Body, 0o644, expect)
	if err != nil {
		return written, services.Wrap(services.ErrTransient, "gcs", "download object", uri, err)
	}
	logger.Info("downloaded remote clip",
		logging.String("path", dest),
		logging.Float64("size_mb", float64(written)/(1024*1024)),
	)
	return written, nil
}

func classify(op, uri string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "gcs", op, uri, err)
	}
	return services.Wrap(services.ErrTransient, "gcs", op, uri, err)
}
