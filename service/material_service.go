package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
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

type ReserveRequest struct {
	ContentType string
	DisplayName string
	Visibility  string
	TTL         time.Duration
}

type MetadataUpdate struct {
	DisplayName *string
	Description *string
}

type MaterialService interface {
	Reserve(ctx context.Context, requester auth.Identity, originIP string, req ReserveRequest) (*models.Material, *storage.Grant, error)
	Confirm(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID, update MetadataUpdate) (*models.Material, error)
	GetByID(ctx context.Context, requester auth.Identity, id uuid.UUID) (*models.Material, error)
	ListByOwner(ctx context.Context, requester auth.Identity, page, pageSize int32) ([]*models.Material, int64, error)
	UpdateMetadata(ctx context.Context, requester auth.Identity, id uuid.UUID, update MetadataUpdate) (*models.Material, error)
	Delete(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID) error
}

type MaterialServiceImpl struct {
	repo    repository.MaterialRepository
	store   storage.ObjectStore
	broker  *storage.Broker
	buckets *storage.BucketTable
	auditor audit.Recorder
	log     *logrus.Logger
}

func NewMaterialService(repo repository.MaterialRepository, store storage.ObjectStore, broker *storage.Broker, buckets *storage.BucketTable, auditor audit.Recorder, log *logrus.Logger) *MaterialServiceImpl {
	return &MaterialServiceImpl{
		repo:    repo,
		store:   store,
		broker:  broker,
		buckets: buckets,
		auditor: auditor,
		log:     log,
	}
}

// Reserve allocates a collision-free object key, persists a pending record
// and returns it together with a content-type-constrained PUT grant. The
// record is a reservation only; nothing is trusted until Confirm probes the
// store.
func (s *MaterialServiceImpl) Reserve(ctx context.Context, requester auth.Identity, originIP string, req ReserveRequest) (*models.Material, *storage.Grant, error) {
	if req.ContentType == "" || req.DisplayName == "" {
		return nil, nil, fmt.Errorf("%w: content type and display name are required", ErrInvalidArgument)
	}
	if !models.ValidVisibility(req.Visibility) {
		return nil, nil, fmt.Errorf("%w: unknown visibility %q", ErrInvalidArgument, req.Visibility)
	}
	if req.Visibility != models.VisibilityPrivate && !requester.Admin {
		return nil, nil, fmt.Errorf("%w: only admins may publish %s materials", ErrForbidden, req.Visibility)
	}

	bucket, err := s.buckets.ForVisibility(req.Visibility)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	material := &models.Material{
		OwnerID:     requester.Subject,
		Visibility:  req.Visibility,
		DisplayName: req.DisplayName,
		ContentType: req.ContentType,
		Bucket:      bucket,
		ObjectKey:   objectKey(requester.Subject, req.DisplayName),
		Status:      models.StatusPending,
	}
	if err := s.repo.Create(material); err != nil {
		return nil, nil, fmt.Errorf("failed to save material record: %w", err)
	}

	grant, err := s.broker.UploadGrant(ctx, bucket, material.ObjectKey, req.ContentType, req.TTL)
	if err != nil {
		// The grant never existed, so the reservation is useless: discard it
		// rather than leaving an orphan for the sweeper.
		if _, derr := s.repo.DeletePending(material.ID); derr != nil {
			s.log.WithError(derr).Warn("failed to discard reservation after presign failure")
		}
		return nil, nil, err
	}

	metrics.MaterialsReserved.Inc()
	s.auditor.Record(ctx, audit.Entry{
		MaterialID: material.ID,
		Accessor:   requester.Subject,
		OriginIP:   originIP,
		Kind:       models.AccessCreated,
		Metadata:   map[string]interface{}{"bucket": bucket, "visibility": req.Visibility},
	})
	return material, grant, nil
}

// Confirm bridges the trust gap between "client claims it uploaded" and "the
// object exists": a StatObject probe against the declared bucket is the only
// way a record turns confirmed. A failed probe discards the reservation so
// listings never show phantom entries. Confirming an already-confirmed
// record is an idempotent no-op.
func (s *MaterialServiceImpl) Confirm(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID, update MetadataUpdate) (*models.Material, error) {
	material, err := s.getOwned(id, requester)
	if err != nil {
		return nil, err
	}
	if material.Confirmed() {
		return material, nil
	}

	// The store is ground truth, not the clock: a confirm arriving after the
	// grant TTL still succeeds when the object is there. The probe is never
	// retried; the client retries explicitly.
	info, err := s.store.Stat(ctx, material.Bucket, material.ObjectKey)
	if err != nil {
		if derr := s.DiscardPending(ctx, id); derr != nil && !errors.Is(derr, ErrNotFound) {
			s.log.WithError(derr).Error("failed to discard unverified reservation")
		}
		s.log.WithFields(logrus.Fields{
			"material_id": id,
			"object_key":  material.ObjectKey,
		}).WithError(err).Info("confirmation probe failed, reservation discarded")
		return nil, err
	}

	swapped, err := s.repo.ConfirmPending(id, info.SizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm material: %w", err)
	}
	if !swapped {
		// Lost the race: someone else confirmed or discarded concurrently.
		return s.getOwned(id, requester)
	}

	if update.DisplayName != nil || update.Description != nil {
		if _, err := s.UpdateMetadata(ctx, requester, id, update); err != nil {
			return nil, err
		}
	}

	metrics.MaterialsConfirmed.Inc()
	s.auditor.Record(ctx, audit.Entry{
		MaterialID: id,
		Accessor:   requester.Subject,
		OriginIP:   originIP,
		Kind:       models.AccessConfirmed,
		Metadata:   map[string]interface{}{"size_bytes": info.SizeBytes},
	})
	return s.getOwned(id, requester)
}

func (s *MaterialServiceImpl) GetByID(ctx context.Context, requester auth.Identity, id uuid.UUID) (*models.Material, error) {
	material, err := s.load(id)
	if err != nil {
		return nil, err
	}
	// Pending records are reservations visible only to their owner.
	if !material.Confirmed() && !auth.CanModify(requester, material) {
		return nil, ErrNotFound
	}
	if !auth.CanRead(requester, material) {
		return nil, ErrForbidden
	}
	return material, nil
}

func (s *MaterialServiceImpl) ListByOwner(ctx context.Context, requester auth.Identity, page, pageSize int32) ([]*models.Material, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return s.repo.GetByOwnerWithPagination(requester.Subject, page, pageSize)
}

func (s *MaterialServiceImpl) UpdateMetadata(ctx context.Context, requester auth.Identity, id uuid.UUID, update MetadataUpdate) (*models.Material, error) {
	material, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(requester, material) {
		return nil, ErrForbidden
	}
	fields := map[string]interface{}{}
	if update.DisplayName != nil && *update.DisplayName != "" {
		fields["display_name"] = *update.DisplayName
	}
	if update.Description != nil {
		fields["description"] = *update.Description
	}
	if len(fields) == 0 {
		return material, nil
	}
	if err := s.repo.UpdateMetadata(id, fields); err != nil {
		return nil, fmt.Errorf("failed to update metadata: %w", err)
	}
	return s.load(id)
}

// Delete runs object-first: the blob is removed before the row, and a store
// failure leaves the record intact with the error surfaced. The two systems
// are not transactional; deleting the row first would orphan the object.
func (s *MaterialServiceImpl) Delete(ctx context.Context, requester auth.Identity, originIP string, id uuid.UUID) error {
	material, err := s.load(id)
	if err != nil {
		return err
	}
	if !auth.CanModify(requester, material) {
		return ErrForbidden
	}

	if material.Confirmed() {
		if err := s.store.Remove(ctx, material.Bucket, material.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			return err
		}
		if err := s.repo.Delete(id); err != nil {
			return fmt.Errorf("failed to delete material record: %w", err)
		}
	} else {
		// A pending record has no confirmed object; discarding must not
		// touch the store.
		if _, err := s.repo.DeletePending(id); err != nil {
			return fmt.Errorf("failed to discard reservation: %w", err)
		}
	}

	s.auditor.Record(ctx, audit.Entry{
		MaterialID: id,
		Accessor:   requester.Subject,
		OriginIP:   originIP,
		Kind:       models.AccessDeleted,
	})
	return nil
}

// DiscardPending removes a reservation that failed verification. A confirmed
// record is out of reach here: only the delete saga may remove it.
func (s *MaterialServiceImpl) DiscardPending(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.DeletePending(id)
	if err != nil {
		return fmt.Errorf("failed to discard reservation: %w", err)
	}
	if ok {
		return nil
	}
	material, err := s.load(id)
	if err != nil {
		return err
	}
	if material.Confirmed() {
		return fmt.Errorf("%w: cannot discard a confirmed material", ErrInvalidState)
	}
	return ErrNotFound
}

func (s *MaterialServiceImpl) load(id uuid.UUID) (*models.Material, error) {
	material, err := s.repo.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load material: %w", err)
	}
	return material, nil
}

func (s *MaterialServiceImpl) getOwned(id uuid.UUID, requester auth.Identity) (*models.Material, error) {
	material, err := s.load(id)
	if err != nil {
		return nil, err
	}
	if !auth.CanModify(requester, material) {
		return nil, ErrForbidden
	}
	return material, nil
}

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// objectKey builds "<owner-hash>/<uuid><ext>". The random token makes keys
// collision-free under concurrent reservation; the extension is kept only
// when it is a plain alphanumeric suffix, so client input can never steer
// the key path.
func objectKey(owner, displayName string) string {
	sum := sha256.Sum256([]byte(owner))
	prefix := hex.EncodeToString(sum[:6])
	ext := strings.ToLower(filepath.Ext(displayName))
	if !extPattern.MatchString(ext) {
		ext = ""
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.New().String(), ext)
}
