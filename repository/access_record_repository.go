package repository

import (
	"github.com/campushub/material-service/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AccessRecordRepository interface {
	Append(record *models.AccessRecord) error
	ListByMaterial(materialID uuid.UUID, limit, offset int) ([]*models.AccessRecord, error)
}

type AccessRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewAccessRecordRepository(db *gorm.DB) AccessRecordRepository {
	return &AccessRecordRepositoryImpl{db: db}
}

func (r *AccessRecordRepositoryImpl) Append(record *models.AccessRecord) error {
	return r.db.Create(record).Error
}

func (r *AccessRecordRepositoryImpl) ListByMaterial(materialID uuid.UUID, limit, offset int) ([]*models.AccessRecord, error) {
	var records []*models.AccessRecord
	err := r.db.Where("material_id = ?", materialID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	return records, err
}
