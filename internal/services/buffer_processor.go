package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskpulse/domain"
	"github.com/fastygo/taskpulse/internal/infrastructure/buffer"
	"github.com/fastygo/taskpulse/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	Retention  time.Duration
}

// BufferProcessor replays buffered task writes against the task store.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	taskRepo repository.TaskRepository
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	taskRepo repository.TaskRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval < time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		taskRepo: taskRepo,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})
	_, _ = bp.cron.AddFunc("@hourly", func() {
		if err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention)); err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch of buffered writes synchronously.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := bp.processItem(ctx, item)
		switch {
		case err == nil:
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
			}
		case permanent(err):
			bp.logger.Warn("dropping buffer item (rejected by store)",
				zap.String("item_id", item.ID),
				zap.String("task_id", item.TaskID),
				zap.Error(err))
			_ = bp.store.Remove(item)
		case item.Retries+1 >= bp.cfg.MaxRetries:
			bp.logger.Warn("dropping buffer item (max retries reached)",
				zap.String("item_id", item.ID),
				zap.Error(err))
			_ = bp.store.Remove(item)
		default:
			bp.logger.Error("failed to process buffer item",
				zap.String("item_id", item.ID),
				zap.String("entity", item.Entity),
				zap.String("operation", item.Operation),
				zap.Error(err))
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
			// Later writes for the same task depend on this one.
			return nil
		}
	}
	return nil
}

// BufferOperation persists a write that failed against the primary store.
// While the monitor reports the store online it first retries immediately.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	if bp.monitor != nil && bp.monitor.IsOnline() && !bp.queuedAhead(item) {
		if err := bp.processItem(ctx, item); err == nil {
			return nil
		} else if permanent(err) {
			return err
		} else {
			bp.logger.Warn("immediate processing failed, buffering", zap.Error(err))
		}
	}
	return bp.store.Enqueue(item)
}

// queuedAhead reports whether older writes for the same task still wait in the
// buffer; writing through would apply this one before them.
func (bp *BufferProcessor) queuedAhead(item buffer.Item) bool {
	if item.TaskID == "" {
		return false
	}
	pending, err := bp.store.PendingFor(item.TaskID)
	if err != nil {
		bp.logger.Warn("buffer lookup failed", zap.String("task_id", item.TaskID), zap.Error(err))
		return true
	}
	return pending
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case buffer.EntityTask:
		switch item.Operation {
		case buffer.OperationCreate:
			var task domain.Task
			if err := item.Decode(&task); err != nil {
				return err
			}
			_, err := bp.taskRepo.Create(ctx, &task)
			return err
		case buffer.OperationUpdate:
			var patch domain.TaskPatch
			if err := item.Decode(&patch); err != nil {
				return err
			}
			_, err := bp.taskRepo.Update(ctx, item.TaskID, patch)
			return err
		case buffer.OperationDelete:
			return bp.taskRepo.Delete(ctx, item.TaskID)
		}

	case buffer.EntitySubtask:
		switch item.Operation {
		case buffer.OperationCreate:
			var sub domain.Subtask
			if err := item.Decode(&sub); err != nil {
				return err
			}
			_, err := bp.taskRepo.AddSubtask(ctx, item.TaskID, &sub)
			return err
		case buffer.OperationUpdate:
			var patch domain.SubtaskPatch
			if err := item.Decode(&patch); err != nil {
				return err
			}
			_, err := bp.taskRepo.UpdateSubtask(ctx, item.TaskID, item.SubtaskID, patch)
			return err
		case buffer.OperationDelete:
			_, err := bp.taskRepo.DeleteSubtask(ctx, item.TaskID, item.SubtaskID)
			return err
		}

	default:
		return fmt.Errorf("unsupported entity %s", item.Entity)
	}
	return fmt.Errorf("unsupported operation %s", item.Operation)
}

// permanent reports store rejections that no amount of retrying will fix.
func permanent(err error) bool {
	var dErr *domain.Error
	return errors.As(err, &dErr) && dErr.Code != domain.ErrCodeInternal && dErr.Code != domain.ErrCodeUnavailable
}
