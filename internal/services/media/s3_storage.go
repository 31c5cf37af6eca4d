package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
)

// S3Host keeps photos in an S3 compatible bucket served from a public base
// URL. The object key doubles as the asset id.
type S3Host struct {
	client  *minio.Client
	bucket  string
	baseURL string
	now     func() time.Time

	ensureOnce sync.Once
	ensureErr  error
}

func NewS3Host(client *minio.Client, bucket, publicBaseURL string) *S3Host {
	return &S3Host{
		client:  client,
		bucket:  strings.TrimSpace(bucket),
		baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		now:     time.Now,
	}
}

func (s *S3Host) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}
	return nil
}

func (s *S3Host) Upload(ctx context.Context, asset Asset) (Hosted, error) {
	if asset.UserID == "" || asset.Body == nil || asset.Size <= 0 {
		return Hosted{}, ErrValidation
	}
	if err := s.EnsureBucket(ctx); err != nil {
		return Hosted{}, err
	}

	format := allowedTypes[asset.ContentType]
	key, err := photoObjectKey(asset.UserID, format, s.now())
	if err != nil {
		return Hosted{}, fmt.Errorf("build object key: %w", err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, asset.Body, asset.Size, minio.PutObjectOptions{
		ContentType: asset.ContentType,
	})
	if err != nil {
		return Hosted{}, fmt.Errorf("put object to s3: %w", err)
	}

	return Hosted{
		URL:     s.baseURL + "/" + key,
		AssetID: key,
		Format:  format,
		Bytes:   info.Size,
	}, nil
}

func (s *S3Host) Destroy(ctx context.Context, assetID string) error {
	if s.client == nil || assetID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, assetID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func photoObjectKey(userID, format string, now time.Time) (string, error) {
	rnd := make([]byte, 8)
	if _, err := rand.Read(rnd); err != nil {
		return "", err
	}
	if format == "" {
		format = "bin"
	}
	stamp := now.UTC().Format("20060102T150405")
	return path.Join("users", userID, "photos", fmt.Sprintf("%s_%s.%s", stamp, hex.EncodeToString(rnd), format)), nil
}
