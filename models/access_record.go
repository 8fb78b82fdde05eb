package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Access kinds recorded by the auditor.
const (
	AccessCreated           = "created"
	AccessConfirmed         = "confirmed"
	AccessPresignedView     = "presigned_view"
	AccessPresignedDownload = "presigned_download"
	AccessFallbackView      = "fallback_view"
	AccessFallbackDownload  = "fallback_download"
	AccessDenied            = "denied"
	AccessDeleted           = "deleted"
	AccessOrphanReclaimed   = "orphan_reclaimed"
)

// AccessRecord is an append-only audit row. Rows are written once and read
// for listing; nothing updates them.
type AccessRecord struct {
	Base
	MaterialID uuid.UUID      `gorm:"type:uuid;not null;index" json:"material_id"`
	Accessor   string         `gorm:"not null" json:"accessor"`
	OriginIP   string         `json:"origin_ip"`
	Kind       string         `gorm:"type:varchar(50);not null;index" json:"kind"`
	Metadata   datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
}

func (AccessRecord) TableName() string {
	return "access_records"
}
