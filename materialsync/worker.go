package materialsync

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/models"
	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
	"bitbucket.org/mmdatafocus/materialsync_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// Worker drives the periodic reconciliation: one pass immediately at
// startup, then one per interval until the context is cancelled.
type Worker struct {
	engine   *Engine
	logger   *logrus.Logger
	interval time.Duration
}

func NewWorker(engine *Engine, logger *logrus.Logger) *Worker {
	interval := time.Duration(intFromEnv("SYNC_INTERVAL_SECONDS", 30)) * time.Second
	return &Worker{
		engine:   engine,
		logger:   logger,
		interval: interval,
	}
}

func (w *Worker) Run(ctx context.Context) {
	w.RunOnce(ctx, models.SyncTriggeredSystem)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx, models.SyncTriggeredSystem)
		}
	}
}

// RunOnce executes one full pass under a global advisory lock so a slow
// pass and the next timer fire (or a manual trigger) never overlap. A held
// lock skips the pass; the next tick self-heals.
func (w *Worker) RunOnce(ctx context.Context, triggeredBy string) {
	if locker := config.GetRedisLock(); locker != nil {
		ttl := 2 * w.interval
		if ttl < time.Minute {
			ttl = time.Minute
		}
		lock, err := locker.Obtain(ctx, "materialsync:pass", ttl, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				w.logger.WithFields(logrus.Fields{"module": "materialsync"}).
					Info("previous pass still running; skipping this run")
				return
			}
			w.logger.WithFields(logrus.Fields{"module": "materialsync"}).
				Errorf("pass lock error: %v", err)
			return
		}
		defer releaseLock(lock)
	}

	startedAt := time.Now()
	run := w.createRun(ctx, triggeredBy, startedAt)

	results := w.engine.SyncMaterials(ctx)

	w.finishRun(ctx, run, startedAt, results)
}

func (w *Worker) createRun(ctx context.Context, triggeredBy string, startedAt time.Time) *models.SyncRun {
	db := config.GetDB()
	if db == nil {
		return nil
	}
	run := &models.SyncRun{
		Status:      models.SyncRunStatusRunning,
		TriggeredBy: triggeredBy,
		StartedAt:   &startedAt,
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		w.logger.WithFields(logrus.Fields{"module": "materialsync"}).
			Warnf("could not record sync run: %v", err)
		return nil
	}
	return run
}

func (w *Worker) finishRun(ctx context.Context, run *models.SyncRun, startedAt time.Time, results []MaterialResult) {
	adjusted, skipped, failed := 0, 0, 0
	stats := map[string]any{}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeSynced:
			adjusted += res.Adjusted
			stats[res.Material] = res.Adjusted
		case OutcomeSkipped:
			skipped++
			stats[res.Material] = res.Reason
		case OutcomeFailed:
			failed++
			stats[res.Material] = res.Err.Error()
		}
	}

	db := config.GetDB()
	if db == nil || run == nil {
		return
	}

	finishedAt := time.Now()
	status := models.SyncRunStatusSuccess
	if failed > 0 && failed == len(results) {
		status = models.SyncRunStatusFailed
	} else if failed > 0 {
		status = models.SyncRunStatusPartial
	}

	statsJSON, _ := utils.MarshalToJSON(stats)
	if err := db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":         status,
		"material_count": len(results),
		"adjusted_count": adjusted,
		"skipped_count":  skipped,
		"error_count":    failed,
		"stats_json":     []byte(statsJSON),
		"finished_at":    finishedAt,
		"duration_ms":    finishedAt.Sub(startedAt).Milliseconds(),
	}).Error; err != nil {
		w.logger.WithFields(logrus.Fields{"module": "materialsync"}).
			Warnf("could not finish sync run record: %v", err)
		return
	}

	for _, res := range results {
		if res.Outcome != OutcomeFailed {
			continue
		}
		errRec := models.SyncRunError{
			SyncRunId: run.ID,
			Material:  res.Material,
			ErrorCode: errorCode(res.Err),
			Message:   res.Err.Error(),
		}
		_ = db.WithContext(ctx).Create(&errRec).Error
	}
}

func errorCode(err error) string {
	var adjErr *AdjustmentError
	if errors.As(err, &adjErr) {
		return "adjustment_rejected"
	}
	var transportErr *shopify.TransportError
	if errors.As(err, &transportErr) {
		return "transport_error"
	}
	return "sync_failed"
}
