// Package jobs runs the periodic housekeeping of the service.
package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/renewal"
)

// SessionCleaner is the part of the session store the cleanup job needs
type SessionCleaner interface {
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
	Count(ctx context.Context) (int, error)
}

// RenewalChecker reports the clearance freshness
type RenewalChecker interface {
	Check() renewal.Status
}

// MaintenanceOptions configures a MaintenanceJob. Renewal is optional.
type MaintenanceOptions struct {
	Sessions        SessionCleaner
	Renewal         RenewalChecker
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration
	RenewalInterval time.Duration
	Logger          *zap.Logger
}

// MaintenanceJob deletes idle sessions and watches the anti-bot clearance
type MaintenanceJob struct {
	opts   MaintenanceOptions
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewMaintenanceJob creates the job scheduler
func NewMaintenanceJob(opts MaintenanceOptions) *MaintenanceJob {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Hour
	}
	if opts.CleanupMaxAge <= 0 {
		opts.CleanupMaxAge = 24 * time.Hour
	}
	if opts.RenewalInterval <= 0 {
		opts.RenewalInterval = 10 * time.Minute
	}
	return &MaintenanceJob{
		opts:   opts,
		logger: opts.Logger.With(zap.String("component", "jobs")),
	}
}

// Start begins all scheduled jobs
func (j *MaintenanceJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		j.logger.Info("maintenance jobs already running")
		return
	}
	j.running = true
	j.stop = make(chan struct{})

	j.every(j.opts.CleanupInterval, func() {
		if _, err := j.CleanupSessions(context.Background()); err != nil {
			j.logger.Error("session cleanup failed", zap.Error(err))
		}
	})
	if j.opts.Renewal != nil {
		j.every(j.opts.RenewalInterval, func() { j.CheckRenewal() })
	}
	j.logger.Info("maintenance jobs started",
		zap.Duration("cleanup_interval", j.opts.CleanupInterval),
		zap.Duration("cleanup_max_age", j.opts.CleanupMaxAge))
}

// Stop halts all scheduled jobs and waits for a running one to finish
func (j *MaintenanceJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stop)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Info("maintenance jobs stopped")
}

// every runs fn immediately and then on each tick until Stop
func (j *MaintenanceJob) every(interval time.Duration, fn func()) {
	stop := j.stop
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

// CleanupSessions deletes sessions idle for longer than the max age
func (j *MaintenanceJob) CleanupSessions(ctx context.Context) (int, error) {
	removed, err := j.opts.Sessions.CleanupOlderThan(ctx, j.opts.CleanupMaxAge)
	if err != nil {
		return 0, err
	}
	metrics.SessionsCleanedTotal.Add(float64(removed))

	if total, err := j.opts.Sessions.Count(ctx); err == nil {
		metrics.Sessions.Set(float64(total))
	}
	if removed > 0 {
		j.logger.Info("🧹 idle sessions removed", zap.Int("removed", removed))
	}
	return removed, nil
}

// CheckRenewal updates the clearance gauge and warns when renewal is due
func (j *MaintenanceJob) CheckRenewal() renewal.Status {
	st := j.opts.Renewal.Check()
	if st.NeedsRenewal {
		metrics.ClearanceNeedsRenewal.Set(1)
		j.logger.Warn("🍪 anti-bot clearance needs renewal",
			zap.String("reason", st.Reason),
			zap.String("priority", string(st.Priority)),
			zap.Duration("age", st.Age))
	} else {
		metrics.ClearanceNeedsRenewal.Set(0)
	}
	return st
}
