package storage

import (
	"fmt"

	"github.com/campushub/material-service/config"
	"github.com/campushub/material-service/models"
)

// BucketTableVersion guards the visibility->bucket mapping. Changing the
// mapping without migrating existing object keys breaks every issued link,
// so any change must bump this and ship a migration.
const BucketTableVersion = 1

// BucketTable is the static visibility->bucket mapping. It is resolved once
// at reserve time and the result is stamped on the record; nothing re-derives
// bucket identity from stored URLs or keys later.
type BucketTable struct {
	public  string
	private string
	gallery string
}

func NewBucketTable(cfg config.MinIOConfig) *BucketTable {
	return &BucketTable{
		public:  cfg.PublicBucket,
		private: cfg.PrivateBucket,
		gallery: cfg.GalleryBucket,
	}
}

func (t *BucketTable) ForVisibility(visibility string) (string, error) {
	switch visibility {
	case models.VisibilityPublic:
		return t.public, nil
	case models.VisibilityPrivate:
		return t.private, nil
	case models.VisibilityGallery:
		return t.gallery, nil
	}
	return "", fmt.Errorf("unknown visibility %q", visibility)
}

func (t *BucketTable) All() []string {
	return []string{t.public, t.private, t.gallery}
}
