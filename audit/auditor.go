package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Entry is one access/lifecycle event for a material.
type Entry struct {
	MaterialID uuid.UUID
	Accessor   string
	OriginIP   string
	Kind       string
	Metadata   map[string]interface{}
}

// Recorder is consumed fire-and-forget: callers never branch on audit
// failures.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Auditor appends the access row synchronously and publishes the event to
// Kafka asynchronously. Failures on either leg are logged and counted, never
// propagated to the request path.
type Auditor struct {
	records repository.AccessRecordRepository
	pub     Publisher
	log     *logrus.Logger
}

func NewAuditor(records repository.AccessRecordRepository, pub Publisher, log *logrus.Logger) *Auditor {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Auditor{records: records, pub: pub, log: log}
}

func (a *Auditor) Record(ctx context.Context, e Entry) {
	record := &models.AccessRecord{
		MaterialID: e.MaterialID,
		Accessor:   e.Accessor,
		OriginIP:   e.OriginIP,
		Kind:       e.Kind,
	}
	if e.Metadata != nil {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			record.Metadata = raw
		}
	}
	if err := a.records.Append(record); err != nil {
		a.log.WithFields(logrus.Fields{
			"material_id": e.MaterialID,
			"kind":        e.Kind,
		}).WithError(err).Warn("audit append failed")
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.pub.Publish(ctx, e); err != nil {
			a.log.WithError(err).Warn("audit publish failed")
		}
	}()
}
