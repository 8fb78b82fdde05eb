package storage

import (
	"context"
	"errors"

	"github.com/minio/minio-go/v7"
)

// Store-level taxonomy. ErrStoreUnavailable means the call never produced an
// authoritative answer (network fault, timeout, 5xx); ErrObjectNotFound means
// the store answered and the object is not there.
var (
	ErrStoreUnavailable = errors.New("object store unavailable")
	ErrObjectNotFound   = errors.New("object not found")
)

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrStoreUnavailable
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return ErrObjectNotFound
	}
	if resp.StatusCode == 404 {
		return ErrObjectNotFound
	}
	return ErrStoreUnavailable
}
