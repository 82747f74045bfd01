// Package media stores article cover images in S3-compatible object
// storage. It is optional at runtime; the API keeps serving object keys
// verbatim when no endpoint is configured.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inkwell/api/internal/util"
)

const presignTTL = time.Hour

type Store struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: client, bucket: bucket}, nil
}

// PutCover uploads a cover image and returns its object key. Keys embed a
// random component so re-uploads never collide with cached URLs.
func (s *Store) PutCover(ctx context.Context, articleID string, r io.Reader, size int64, contentType string) (string, error) {
	key := path.Join("covers", articleID, util.NewID("img")+extensionFor(contentType))
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload cover: %w", err)
	}
	return key, nil
}

// CoverURL returns a presigned GET URL for an object key.
func (s *Store) CoverURL(ctx context.Context, objectKey string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, presignTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return url.String(), nil
}

// RemoveCover deletes an object. Best-effort cleanup when covers are
// replaced.
func (s *Store) RemoveCover(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove cover: %w", err)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
