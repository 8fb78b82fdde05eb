package models

// Visibility determines bucket placement and the default access policy.
// It is fixed at creation.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityGallery = "gallery"
)

// Lifecycle states. A pending record is a reservation, not a fact: the
// object may never arrive. Only the confirmer's store probe promotes it.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
)

type Material struct {
	Base
	OwnerID     string `gorm:"not null;index" json:"owner_id"`
	Visibility  string `gorm:"not null" json:"visibility"`
	DisplayName string `gorm:"not null" json:"display_name"`
	Description string `json:"description"`
	ContentType string `gorm:"not null" json:"content_type"`

	// Bucket is stamped from the visibility table at reserve time and never
	// re-derived afterwards. ObjectKey is a store key, never a URL.
	Bucket    string `gorm:"not null" json:"bucket"`
	ObjectKey string `gorm:"not null;uniqueIndex" json:"object_key"`

	// SizeBytes is nil until the upload has been confirmed against the store.
	SizeBytes *int64 `json:"size_bytes,omitempty"`
	Status    string `gorm:"not null;index;default:'pending'" json:"status"`
}

func (Material) TableName() string {
	return "materials"
}

func (m *Material) Confirmed() bool {
	return m.Status == StatusConfirmed
}

func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityGallery:
		return true
	}
	return false
}
