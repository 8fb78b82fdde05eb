package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/campushub/material-service/pkg/metrics"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Download intents. view hints inline rendering, download forces an
// attachment with the material's display name.
const (
	IntentView     = "view"
	IntentDownload = "download"
)

type Grant struct {
	URL       string
	Bucket    string
	ExpiresIn time.Duration
	ExpiresAt time.Time
}

// Broker turns (bucket, key) pairs into time-boxed presigned URLs. It owns
// the grant bookkeeping cache: every issued URL is remembered until its own
// expiry, bounded in size, with eviction handled by the cache itself.
type Broker struct {
	store      ObjectStore
	defaultTTL time.Duration
	maxTTL     time.Duration
	issued     *lru.LRU[string, time.Time]
}

const issuedGrantCap = 4096

func NewBroker(store ObjectStore, defaultTTL, maxTTL time.Duration) *Broker {
	return &Broker{
		store:      store,
		defaultTTL: defaultTTL,
		maxTTL:     maxTTL,
		issued:     lru.NewLRU[string, time.Time](issuedGrantCap, nil, maxTTL),
	}
}

// clampTTL applies the default for non-positive requests and caps the rest.
func (b *Broker) clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return b.defaultTTL
	}
	if ttl > b.maxTTL {
		return b.maxTTL
	}
	return ttl
}

func (b *Broker) UploadGrant(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (*Grant, error) {
	ttl = b.clampTTL(ttl)
	u, err := b.store.PresignUpload(ctx, bucket, key, ttl, contentType)
	if err != nil {
		return nil, err
	}
	return b.remember("put", bucket, key, u, ttl), nil
}

// DownloadGrant retries once on unavailability; a transient signing fault
// should not push the caller onto the fallback stream when a second attempt
// would have produced a URL. ErrObjectNotFound is never retried.
func (b *Broker) DownloadGrant(ctx context.Context, bucket, key, displayName, intent string, ttl time.Duration) (*Grant, error) {
	ttl = b.clampTTL(ttl)
	params := dispositionParams(intent, displayName)

	u, err := b.store.PresignDownload(ctx, bucket, key, ttl, params)
	if errors.Is(err, ErrStoreUnavailable) {
		metrics.PresignRetriesTotal.Inc()
		u, err = b.store.PresignDownload(ctx, bucket, key, ttl, params)
	}
	if err != nil {
		return nil, err
	}
	return b.remember("get", bucket, key, u, ttl), nil
}

func (b *Broker) remember(method, bucket, key string, u *url.URL, ttl time.Duration) *Grant {
	expiresAt := time.Now().Add(ttl)
	b.issued.Add(fmt.Sprintf("%s %s/%s %d", method, bucket, key, expiresAt.UnixNano()), expiresAt)
	metrics.GrantsIssuedTotal.WithLabelValues(method).Inc()
	return &Grant{
		URL:       u.String(),
		Bucket:    bucket,
		ExpiresIn: ttl,
		ExpiresAt: expiresAt,
	}
}

// OutstandingGrants reports how many issued URLs have not yet expired.
func (b *Broker) OutstandingGrants() int {
	return b.issued.Len()
}

func dispositionParams(intent, displayName string) url.Values {
	params := url.Values{}
	switch intent {
	case IntentDownload:
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", displayName))
	default:
		params.Set("response-content-disposition", "inline")
	}
	return params
}
