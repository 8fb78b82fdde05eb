package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/campushub/material-service/audit"
	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory MaterialRepository.
type fakeRepo struct {
	mu        sync.Mutex
	materials map[uuid.UUID]*models.Material
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{materials: make(map[uuid.UUID]*models.Material)}
}

func (r *fakeRepo) Create(m *models.Material) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.CreatedAt = time.Now()
	for _, existing := range r.materials {
		if existing.ObjectKey == m.ObjectKey {
			return fmt.Errorf("duplicate object key %s", m.ObjectKey)
		}
	}
	cp := *m
	r.materials[m.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(id uuid.UUID) (*models.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeRepo) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.materials, id)
	return nil
}

func (r *fakeRepo) Count() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.materials)), nil
}

func (r *fakeRepo) GetByOwnerWithPagination(ownerID string, page, pageSize int32) ([]*models.Material, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Material
	for _, m := range r.materials {
		if m.OwnerID == ownerID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) ConfirmPending(id uuid.UUID, sizeBytes int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok || m.Status != models.StatusPending {
		return false, nil
	}
	m.Status = models.StatusConfirmed
	m.SizeBytes = &sizeBytes
	return true, nil
}

func (r *fakeRepo) DeletePending(id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok || m.Status != models.StatusPending {
		return false, nil
	}
	delete(r.materials, id)
	return true, nil
}

func (r *fakeRepo) FindPendingOlderThan(cutoff time.Time, limit int) ([]*models.Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Material
	for _, m := range r.materials {
		if m.Status == models.StatusPending && m.CreatedAt.Before(cutoff) {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateMetadata(id uuid.UUID, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := fields["display_name"].(string); ok {
		m.DisplayName = v
	}
	if v, ok := fields["description"].(string); ok {
		m.Description = v
	}
	return nil
}

func (r *fakeRepo) CountByStatus(status string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.materials {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

// fakeStore is an in-memory ObjectStore with per-operation call counters and
// injectable failures.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	calls   map[string]int
	// presignFailures: number of presign calls to fail with presignErr;
	// -1 fails every call.
	presignErr      error
	presignFailures int
	storeErr        error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		calls:   make(map[string]int),
	}
}

func (s *fakeStore) put(bucket, key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = data
}

func (s *fakeStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *fakeStore) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[op]++
}

func (s *fakeStore) presign(method, bucket, key string, params url.Values) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.presignFailures != 0 && s.presignErr != nil {
		if s.presignFailures > 0 {
			s.presignFailures--
		}
		return nil, s.presignErr
	}
	u, _ := url.Parse(fmt.Sprintf("https://store.local/%s/%s", bucket, key))
	q := u.Query()
	q.Set("X-Method", method)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func (s *fakeStore) PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, contentType string) (*url.URL, error) {
	s.record("presign_put")
	params := url.Values{}
	params.Set("Content-Type", contentType)
	return s.presign("PUT", bucket, key, params)
}

func (s *fakeStore) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	s.record("presign_get")
	return s.presign("GET", bucket, key, reqParams)
}

func (s *fakeStore) Stat(ctx context.Context, bucket, key string) (storage.ObjectInfo, error) {
	s.record("stat")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return storage.ObjectInfo{}, s.storeErr
	}
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{SizeBytes: int64(len(data))}, nil
}

func (s *fakeStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.record("get")
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), storage.ObjectInfo{SizeBytes: int64(len(data))}, nil
}

func (s *fakeStore) Remove(ctx context.Context, bucket, key string) error {
	s.record("remove")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return s.storeErr
	}
	delete(s.objects, bucket+"/"+key)
	return nil
}

// memAuditor collects entries in memory.
type memAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *memAuditor) Record(ctx context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *memAuditor) kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Kind)
	}
	return out
}
