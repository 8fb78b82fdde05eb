package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/campushub/material-service/config"
	"github.com/campushub/material-service/pkg/metrics"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type ObjectInfo struct {
	SizeBytes   int64
	ContentType string
	ETag        string
}

// ObjectStore is the capability surface this service needs from the object
// store: mint presigned URLs, probe, stream, remove. The MinIO client is the
// production implementation; tests substitute fakes.
type ObjectStore interface {
	PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, contentType string) (*url.URL, error)
	PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	Remove(ctx context.Context, bucket, key string) error
}

type MinioStore struct {
	client      *minio.Client
	callTimeout time.Duration
}

func NewMinioStore(cfg config.MinIOConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &MinioStore{client: client, callTimeout: cfg.CallTimeout}, nil
}

// EnsureBuckets creates any missing bucket at startup.
func (s *MinioStore) EnsureBuckets(ctx context.Context, buckets []string) error {
	for _, bucket := range buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// bound keeps every store call on a timeout independent of any URL TTL: a
// signing call that hangs must fail fast, not wait out the grant window.
func (s *MinioStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

func (s *MinioStore) PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, contentType string) (*url.URL, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	// Signing the Content-Type header makes the store reject uploads whose
	// declared type does not match the reservation.
	hdr := http.Header{}
	hdr.Set("Content-Type", contentType)
	u, err := s.client.PresignHeader(ctx, http.MethodPut, bucket, key, expiry, url.Values{}, hdr)
	if err != nil {
		metrics.StoreCallsTotal.WithLabelValues("presign_put", "error").Inc()
		return nil, mapStoreError(err)
	}
	metrics.StoreCallsTotal.WithLabelValues("presign_put", "ok").Inc()
	return u, nil
}

func (s *MinioStore) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, reqParams)
	if err != nil {
		metrics.StoreCallsTotal.WithLabelValues("presign_get", "error").Inc()
		return nil, mapStoreError(err)
	}
	metrics.StoreCallsTotal.WithLabelValues("presign_get", "ok").Inc()
	return u, nil
}

func (s *MinioStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		metrics.StoreCallsTotal.WithLabelValues("stat", "error").Inc()
		return ObjectInfo{}, mapStoreError(err)
	}
	metrics.StoreCallsTotal.WithLabelValues("stat", "ok").Inc()
	return ObjectInfo{SizeBytes: info.Size, ContentType: info.ContentType, ETag: info.ETag}, nil
}

// Open stats first so a missing object surfaces here rather than on the
// first read of a lazily-opened stream. The stream itself is opened on the
// caller's context: it lives as long as the download, not the call timeout.
func (s *MinioStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	info, err := s.Stat(ctx, bucket, key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		metrics.StoreCallsTotal.WithLabelValues("get", "error").Inc()
		return nil, ObjectInfo{}, mapStoreError(err)
	}
	metrics.StoreCallsTotal.WithLabelValues("get", "ok").Inc()
	return obj, info, nil
}

func (s *MinioStore) Remove(ctx context.Context, bucket, key string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		metrics.StoreCallsTotal.WithLabelValues("remove", "error").Inc()
		return mapStoreError(err)
	}
	metrics.StoreCallsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}
