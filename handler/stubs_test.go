package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/repository"
	"github.com/campushub/material-service/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// singleMaterialRepo serves exactly one record; everything else is not
// found. Unused repository methods are left to the embedded interface.
type singleMaterialRepo struct {
	repository.MaterialRepository
	m *models.Material
}

func (r singleMaterialRepo) GetByID(id uuid.UUID) (*models.Material, error) {
	if r.m != nil && r.m.ID == id {
		cp := *r.m
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// stubAccessLog records the paging it was asked for.
type stubAccessLog struct {
	lastLimit  int
	lastOffset int
	records    []*models.AccessRecord
}

func (s *stubAccessLog) Append(record *models.AccessRecord) error { return nil }

func (s *stubAccessLog) ListByMaterial(materialID uuid.UUID, limit, offset int) ([]*models.AccessRecord, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	return s.records, nil
}

type stubObjectStore struct {
	objects       map[string][]byte
	presignBroken bool
}

func newStubObjectStore() *stubObjectStore {
	return &stubObjectStore{objects: make(map[string][]byte)}
}

func (s *stubObjectStore) put(bucket, key string, data []byte) {
	s.objects[bucket+"/"+key] = data
}

func (s *stubObjectStore) PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, contentType string) (*url.URL, error) {
	if s.presignBroken {
		return nil, storage.ErrStoreUnavailable
	}
	return url.Parse(fmt.Sprintf("https://store.local/%s/%s", bucket, key))
}

func (s *stubObjectStore) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	if s.presignBroken {
		return nil, storage.ErrStoreUnavailable
	}
	return url.Parse(fmt.Sprintf("https://store.local/%s/%s?%s", bucket, key, reqParams.Encode()))
}

func (s *stubObjectStore) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{SizeBytes: int64(len(data))}, nil
}

func (s *stubObjectStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{SizeBytes: int64(len(data))}, nil
}

func (s *stubObjectStore) Remove(ctx context.Context, bucket, key string) error {
	delete(s.objects, bucket+"/"+key)
	return nil
}
