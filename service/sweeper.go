package service

import (
	"context"
	"time"

	"github.com/campushub/material-service/audit"
	"github.com/campushub/material-service/models"
	"github.com/campushub/material-service/pkg/metrics"
	"github.com/campushub/material-service/repository"
	"github.com/sirupsen/logrus"
)

const sweepBatchSize = 200

// Sweeper reclaims orphaned reservations: pending rows older than the window
// whose confirm never arrived. No object deletion happens here, since an
// unconfirmed reservation has no verified object; a confirm racing the sweep
// wins if its CAS lands first.
type Sweeper struct {
	repo    repository.MaterialRepository
	auditor audit.Recorder
	window  time.Duration
	every   time.Duration
	log     *logrus.Logger
}

func NewSweeper(repo repository.MaterialRepository, auditor audit.Recorder, window, every time.Duration, log *logrus.Logger) *Sweeper {
	return &Sweeper{
		repo:    repo,
		auditor: auditor,
		window:  window,
		every:   every,
		log:     log,
	}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.SweepOnce(ctx); err != nil {
				s.log.WithError(err).Error("orphan sweep failed")
			} else if n > 0 {
				s.log.WithField("reclaimed", n).Info("orphan sweep finished")
			}
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.window)
	orphans, err := s.repo.FindPendingOlderThan(cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, orphan := range orphans {
		// DeletePending only matches rows still pending, so an orphan that
		// got confirmed between the query and here survives.
		ok, err := s.repo.DeletePending(orphan.ID)
		if err != nil {
			s.log.WithField("material_id", orphan.ID).WithError(err).Warn("failed to reclaim orphan")
			continue
		}
		if !ok {
			continue
		}
		reclaimed++
		metrics.OrphansReclaimed.Inc()
		s.auditor.Record(ctx, audit.Entry{
			MaterialID: orphan.ID,
			Accessor:   orphan.OwnerID,
			Kind:       models.AccessOrphanReclaimed,
			Metadata:   map[string]interface{}{"reserved_at": orphan.CreatedAt},
		})
	}
	// Refresh the backlog gauge while we hold a fresh view of the table.
	if pending, err := s.repo.CountByStatus(models.StatusPending); err == nil {
		metrics.PendingReservations.Set(float64(pending))
	}
	return reclaimed, nil
}
