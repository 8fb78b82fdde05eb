package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/campushub/material-service/audit"
	"github.com/campushub/material-service/auth"
	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/pkg/metrics"
	"github.com/campushub/material-service/repository"
	"github.com/campushub/material-service/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DownloadResult is either a redirect to a presigned URL or an open stream,
// never both.
type DownloadResult struct {
	Redirect *storage.Grant

	Stream      io.ReadCloser
	SizeBytes   int64
	ContentType string
	Disposition string
}

// Dispatcher serves reads with two-tier degradation: presigned redirect
// first, backend-mediated streaming when signing fails. Presigned issuance
// can fail independently of object availability, and some clients cannot
// follow cross-origin redirects; the fallback keeps the read working at the
// cost of backend bandwidth.
type Dispatcher struct {
	repo    repository.MaterialRepository
	store   storage.ObjectStore
	broker  *storage.Broker
	auditor audit.Recorder
	log     *logrus.Logger
}

func NewDispatcher(repo repository.MaterialRepository, store storage.ObjectStore, broker *storage.Broker, auditor audit.Recorder, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		store:   store,
		broker:  broker,
		auditor: auditor,
		log:     log,
	}
}

// DownloadURL serves the grant-only endpoint: no fallback, the caller deals
// with a 503 when signing fails even after the broker's retry.
func (d *Dispatcher) DownloadURL(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID, intent string, ttl time.Duration) (*storage.Grant, error) {
	material, err := d.authorize(ctx, requester, originIP, id)
	if err != nil {
		return nil, err
	}
	grant, err := d.broker.DownloadGrant(ctx, material.Bucket, material.ObjectKey, material.DisplayName, intent, ttl)
	if err != nil {
		return nil, err
	}
	d.audit(ctx, material, requester, originIP, "presigned_"+intent)
	return grant, nil
}

// Resolve is the fallback-aware read: AttemptPresigned -> Redirect, else
// AttemptFallbackStream -> Stream, else fail.
func (d *Dispatcher) Resolve(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID, intent string, ttl time.Duration) (*DownloadResult, error) {
	material, err := d.authorize(ctx, requester, originIP, id)
	if err != nil {
		return nil, err
	}

	grant, presignErr := d.broker.DownloadGrant(ctx, material.Bucket, material.ObjectKey, material.DisplayName, intent, ttl)
	if presignErr == nil {
		d.audit(ctx, material, requester, originIP, "presigned_"+intent)
		return &DownloadResult{Redirect: grant}, nil
	}
	d.log.WithFields(logrus.Fields{
		"material_id": id,
		"intent":      intent,
	}).WithError(presignErr).Warn("presign failed, falling back to streaming")

	// The stream is opened on the request context so a client disconnect
	// closes the upstream read promptly.
	rc, info, err := d.store.Open(ctx, material.Bucket, material.ObjectKey)
	if err != nil {
		d.auditor.Record(ctx, audit.Entry{
			MaterialID: material.ID,
			Accessor:   requester.Subject,
			OriginIP:   originIP,
			Kind:       "fallback_" + intent,
			Metadata:   map[string]interface{}{"error": err.Error()},
		})
		return nil, err
	}

	metrics.FallbackStreamsTotal.WithLabelValues(intent).Inc()
	d.audit(ctx, material, requester, originIP, "fallback_"+intent)
	return &DownloadResult{
		Stream:      rc,
		SizeBytes:   info.SizeBytes,
		ContentType: material.ContentType,
		Disposition: disposition(intent, material.DisplayName),
	}, nil
}

// authorize gates before any store interaction: a forbidden caller never
// causes a signing or streaming call.
func (d *Dispatcher) authorize(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID) (*models.Material, error) {
	material, err := d.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load material: %w", err)
	}
	if !material.Confirmed() {
		// A reservation has no existence guarantee; downloads treat it as
		// absent.
		return nil, ErrNotFound
	}
	if !auth.CanRead(requester, material) {
		d.auditor.Record(ctx, audit.Entry{
			MaterialID: material.ID,
			Accessor:   requester.Subject,
			OriginIP:   originIP,
			Kind:       models.AccessDenied,
		})
		return nil, ErrForbidden
	}
	return material, nil
}

func (d *Dispatcher) audit(ctx context.Context, material *models.Material, requester auth.Identity, originIP, kind string) {
	d.auditor.Record(ctx, audit.Entry{
		MaterialID: material.ID,
		Accessor:   requester.Subject,
		OriginIP:   originIP,
		Kind:       kind,
	})
}

func disposition(intent, displayName string) string {
	if intent == storage.IntentDownload {
		return fmt.Sprintf("attachment; filename=%q", displayName)
	}
	return "inline"
}
