package repository

import (
	"time"

	"github.com/campushub/material-service/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MaterialRepository interface {
	BaseRepository[models.Material]
	GetByOwnerWithPagination(ownerID string, page, pageSize int32) ([]*models.Material, int64, error)
	// ConfirmPending flips pending->confirmed and stamps the size in one
	// compare-and-swap. Returns false when the row is absent or not pending.
	ConfirmPending(id uuid.UUID, sizeBytes int64) (bool, error)
	// DeletePending removes a row only while it is still pending. Returns
	// false when nothing matched (unknown id or already confirmed).
	DeletePending(id uuid.UUID) (bool, error)
	FindPendingOlderThan(cutoff time.Time, limit int) ([]*models.Material, error)
	UpdateMetadata(id uuid.UUID, fields map[string]interface{}) error
	CountByStatus(status string) (int64, error)
}

type MaterialRepositoryImpl struct {
	*BaseRepositoryImpl[models.Material]
}

func NewMaterialRepository(db *gorm.DB) MaterialRepository {
	return &MaterialRepositoryImpl{
		BaseRepositoryImpl: NewBaseRepository[models.Material](db),
	}
}

func (r *MaterialRepositoryImpl) GetByOwnerWithPagination(ownerID string, page, pageSize int32) ([]*models.Material, int64, error) {
	var materials []*models.Material
	var total int64

	offset := (page - 1) * pageSize

	err := r.db.Model(&models.Material{}).Where("owner_id = ?", ownerID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = r.db.Where("owner_id = ?", ownerID).
		Limit(int(pageSize)).
		Offset(int(offset)).
		Order("created_at DESC").
		Find(&materials).Error
	if err != nil {
		return nil, 0, err
	}

	return materials, total, nil
}

func (r *MaterialRepositoryImpl) ConfirmPending(id uuid.UUID, sizeBytes int64) (bool, error) {
	res := r.db.Model(&models.Material{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusConfirmed,
			"size_bytes": sizeBytes,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MaterialRepositoryImpl) DeletePending(id uuid.UUID) (bool, error) {
	res := r.db.Where("id = ? AND status = ?", id, models.StatusPending).
		Delete(&models.Material{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *MaterialRepositoryImpl) FindPendingOlderThan(cutoff time.Time, limit int) ([]*models.Material, error) {
	var materials []*models.Material
	err := r.db.Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Limit(limit).
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}

func (r *MaterialRepositoryImpl) UpdateMetadata(id uuid.UUID, fields map[string]interface{}) error {
	return r.db.Model(&models.Material{}).Where("id = ?", id).Updates(fields).Error
}

func (r *MaterialRepositoryImpl) CountByStatus(status string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Material{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
