package service

import (
	"context"

	"go.uber.org/zap"

	"adsim/internal/apperr"
	"adsim/internal/models"
	"adsim/internal/repository"
)

// AutoAdvanceService steps unfinished runs one day per tick. It exists for
// hands-off demo deployments; interactive clients drive runs themselves.
type AutoAdvanceService struct {
	Runs      *RunService
	Repo      repository.Repository
	Logger    *zap.Logger
	BatchSize int
}

func (s *AutoAdvanceService) RunOnce(ctx context.Context) error {
	if s == nil || s.Runs == nil || s.Repo == nil {
		return nil
	}
	batch := s.BatchSize
	if batch <= 0 {
		batch = 20
	}

	var ids []uint64
	for _, status := range []string{models.RunStatusRunning, models.RunStatusPending} {
		found, err := s.Repo.ListRunIDsByStatus(ctx, status, batch-len(ids))
		if err != nil {
			return apperr.Wrap(apperr.KindStorage, err, "list %s runs", status)
		}
		ids = append(ids, found...)
		if len(ids) >= batch {
			break
		}
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, _, err := s.Runs.SimulateDay(ctx, id); err != nil {
			// A run completed by a concurrent caller is not a failure here.
			if apperr.IsInvalidState(err) {
				continue
			}
			if s.Logger != nil {
				s.Logger.Warn("auto advance step failed", zap.Uint64("run_id", id), zap.Error(err))
			}
		}
	}
	return nil
}
