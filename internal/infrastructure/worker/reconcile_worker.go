package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/expense-audit/internal/application/service"
	"go.uber.org/zap"
)

// Syncer runs the reconcile and recompute passes
type Syncer interface {
	SyncExternalStatuses(ctx context.Context) (*service.SyncReport, error)
	RecomputeAllExpenseLines(ctx context.Context) (*service.SyncReport, error)
}

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		Interval: 5 * time.Minute,
		Timeout:  2 * time.Minute,
	}
}

// PassResult is the outcome of one reconcile pass
type PassResult struct {
	Reconcile *service.SyncReport `json:"reconcile"`
	Recompute *service.SyncReport `json:"recompute"`
	Duration  time.Duration       `json:"duration"`
}

// WorkerStats reports the worker's progress
type WorkerStats struct {
	IsRunning     bool          `json:"is_running"`
	Passes        int           `json:"passes"`
	FailedPasses  int           `json:"failed_passes"`
	StatusChanges int           `json:"status_changes"`
	LineChanges   int           `json:"line_changes"`
	LastPass      time.Time     `json:"last_pass"`
	LastError     string        `json:"last_error,omitempty"`
	Uptime        time.Duration `json:"uptime"`
}

// ReconcileWorker periodically reconciles reimbursements whose ERP status
// moved and recomputes every expense line
type ReconcileWorker struct {
	config ReconcileWorkerConfig
	syncer Syncer
	logger *zap.Logger

	// Runtime state
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	done          chan struct{}
	isRunning     bool
	passes        int
	failedPasses  int
	statusChanges int
	lineChanges   int
	lastPass      time.Time
	startTime     time.Time
	lastError     error
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(config ReconcileWorkerConfig, syncer Syncer, logger *zap.Logger) *ReconcileWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileWorkerConfig().Interval
	}
	return &ReconcileWorker{
		config: config,
		syncer: syncer,
		logger: logger,
	}
}

// Start begins the worker loop. The first pass runs immediately.
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.startTime = time.Now()
	w.mu.Unlock()

	w.logger.Info("ReconcileWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("timeout", w.config.Timeout))

	go w.loop(w.ctx, w.done)

	return nil
}

// Stop cancels the loop and waits for an in-flight pass to finish
func (w *ReconcileWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}

	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	w.mu.RLock()
	w.logger.Info("ReconcileWorker stopped",
		zap.Int("passes", w.passes),
		zap.Int("failed_passes", w.failedPasses))
	w.mu.RUnlock()

	return nil
}

// Name returns the worker name for identification
func (w *ReconcileWorker) Name() string {
	return "ReconcileWorker"
}

// RunOnce runs a single reconcile pass followed by a recompute pass
func (w *ReconcileWorker) RunOnce(ctx context.Context) (*PassResult, error) {
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	started := time.Now()
	result := &PassResult{}

	reconcile, err := w.syncer.SyncExternalStatuses(ctx)
	result.Reconcile = reconcile
	if err != nil {
		w.record(result, err)
		return result, fmt.Errorf("sync external statuses: %w", err)
	}

	recompute, err := w.syncer.RecomputeAllExpenseLines(ctx)
	result.Recompute = recompute
	result.Duration = time.Since(started)
	if err != nil {
		w.record(result, err)
		return result, fmt.Errorf("recompute expense lines: %w", err)
	}

	w.record(result, nil)
	w.logger.Info("Reconcile pass completed",
		zap.Int("reimbursements", reconcile.Reimbursements),
		zap.Int("status_changes", reconcile.StatusChanges),
		zap.Int("expense_lines", recompute.ExpenseLines),
		zap.Int("line_changes", recompute.LineChanges),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// GetStats returns worker statistics
func (w *ReconcileWorker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := WorkerStats{
		IsRunning:     w.isRunning,
		Passes:        w.passes,
		FailedPasses:  w.failedPasses,
		StatusChanges: w.statusChanges,
		LineChanges:   w.lineChanges,
		LastPass:      w.lastPass,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	if !w.startTime.IsZero() {
		stats.Uptime = time.Since(w.startTime)
	}
	return stats
}

func (w *ReconcileWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Reconcile loop context cancelled")
			return

		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *ReconcileWorker) runPass(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Reconcile pass failed", zap.Error(err))
	}
}

func (w *ReconcileWorker) record(result *PassResult, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.passes++
	w.lastPass = time.Now()
	w.lastError = err
	if err != nil {
		w.failedPasses++
	}
	if result.Reconcile != nil {
		w.statusChanges += result.Reconcile.StatusChanges
	}
	if result.Recompute != nil {
		w.lineChanges += result.Recompute.LineChanges
	}
}
