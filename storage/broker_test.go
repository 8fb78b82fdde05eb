package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore records presign inputs and can fail a number of calls.
type stubStore struct {
	presignCalls int
	failures     int
	lastExpiry   time.Duration
	lastParams   url.Values
	lastHeaders  string
}

func (s *stubStore) PresignUpload(ctx context.Context, bucket, key string, expiry time.Duration, contentType string) (*url.URL, error) {
	s.presignCalls++
	s.lastExpiry = expiry
	s.lastHeaders = contentType
	return url.Parse(fmt.Sprintf("https://store.local/%s/%s", bucket, key))
}

func (s *stubStore) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	s.presignCalls++
	if s.failures > 0 {
		s.failures--
		return nil, ErrStoreUnavailable
	}
	s.lastExpiry = expiry
	s.lastParams = reqParams
	return url.Parse(fmt.Sprintf("https://store.local/%s/%s?%s", bucket, key, reqParams.Encode()))
}

func (s *stubStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	return ObjectInfo{}, ErrObjectNotFound
}

func (s *stubStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	return nil, ObjectInfo{}, ErrObjectNotFound
}

func (s *stubStore) Remove(ctx context.Context, bucket, key string) error {
	return nil
}

func TestUploadGrantClampsTTL(t *testing.T) {
	store := &stubStore{}
	broker := NewBroker(store, 300*time.Second, time.Hour)

	grant, err := broker.UploadGrant(context.Background(), "b", "k", "application/pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, grant.ExpiresIn)
	assert.Equal(t, 300*time.Second, store.lastExpiry)
	assert.Equal(t, "application/pdf", store.lastHeaders)

	grant, err = broker.UploadGrant(context.Background(), "b", "k", "application/pdf", 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, grant.ExpiresIn)

	grant, err = broker.UploadGrant(context.Background(), "b", "k", "application/pdf", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, grant.ExpiresIn)
}

func TestDownloadGrantDisposition(t *testing.T) {
	store := &stubStore{}
	broker := NewBroker(store, 300*time.Second, time.Hour)

	_, err := broker.DownloadGrant(context.Background(), "b", "k", "Notes.pdf", IntentDownload, 0)
	require.NoError(t, err)
	assert.Equal(t, `attachment; filename="Notes.pdf"`, store.lastParams.Get("response-content-disposition"))

	_, err = broker.DownloadGrant(context.Background(), "b", "k", "Notes.pdf", IntentView, 0)
	require.NoError(t, err)
	assert.Equal(t, "inline", store.lastParams.Get("response-content-disposition"))
}

func TestDownloadGrantRetriesOnceOnUnavailability(t *testing.T) {
	store := &stubStore{failures: 1}
	broker := NewBroker(store, 300*time.Second, time.Hour)

	grant, err := broker.DownloadGrant(context.Background(), "b", "k", "n", IntentView, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, grant.URL)
	assert.Equal(t, 2, store.presignCalls)
}

func TestDownloadGrantGivesUpAfterRetry(t *testing.T) {
	store := &stubStore{failures: 2}
	broker := NewBroker(store, 300*time.Second, time.Hour)

	_, err := broker.DownloadGrant(context.Background(), "b", "k", "n", IntentView, 0)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 2, store.presignCalls, "exactly one retry")
}

func TestBrokerTracksOutstandingGrants(t *testing.T) {
	store := &stubStore{}
	broker := NewBroker(store, 300*time.Second, time.Hour)

	_, err := broker.DownloadGrant(context.Background(), "b", "k", "n", IntentView, 0)
	require.NoError(t, err)
	_, err = broker.DownloadGrant(context.Background(), "b", "k", "n", IntentView, 0)
	require.NoError(t, err)

	// Two grants for the same object are independent entries.
	assert.Equal(t, 2, broker.OutstandingGrants())
}
