package maintenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SystemActor is recorded as the unblocker of expired bans.
const SystemActor = "system"

type UserSweeper interface {
	LiftExpiredBans(ctx context.Context, now time.Time, actor string) (int64, error)
	MarkStaleOffline(ctx context.Context, activeBefore time.Time) (int64, error)
}

type Alerter interface {
	SystemAlert(ctx context.Context, text string)
}

type Job struct {
	users         UserSweeper
	alerts        Alerter
	inactiveAfter time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

type Result struct {
	BansLifted    int64
	MarkedOffline int64
}

func New(users UserSweeper, alerts Alerter, inactiveAfter time.Duration, logger *zap.Logger) *Job {
	if inactiveAfter <= 0 {
		inactiveAfter = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		users:         users,
		alerts:        alerts,
		inactiveAfter: inactiveAfter,
		now:           time.Now,
		logger:        logger,
	}
}

func (j *Job) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep lifts expired bans and marks idle users offline. Both steps run
// even when the first one fails.
func (j *Job) Sweep(ctx context.Context) (Result, error) {
	if j.users == nil {
		return Result{}, fmt.Errorf("maintenance user store is not configured")
	}
	now := j.now().UTC()

	var (
		res      Result
		firstErr error
	)
	lifted, err := j.users.LiftExpiredBans(ctx, now, SystemActor)
	if err != nil {
		firstErr = fmt.Errorf("lift expired bans: %w", err)
	} else {
		res.BansLifted = lifted
	}

	offline, err := j.users.MarkStaleOffline(ctx, now.Add(-j.inactiveAfter))
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("mark stale users offline: %w", err)
		} else {
			j.logger.Warn("mark stale users offline", zap.Error(err))
		}
	} else {
		res.MarkedOffline = offline
	}

	if res.BansLifted > 0 || res.MarkedOffline > 0 {
		j.logger.Info("maintenance sweep completed",
			zap.Int64("bans_lifted", res.BansLifted),
			zap.Int64("marked_offline", res.MarkedOffline),
		)
		if j.alerts != nil {
			j.alerts.SystemAlert(ctx, res.summary())
		}
	}
	return res, firstErr
}

func (r Result) summary() string {
	parts := make([]string, 0, 2)
	if r.BansLifted > 0 {
		parts = append(parts, fmt.Sprintf("bans lifted: %d", r.BansLifted))
	}
	if r.MarkedOffline > 0 {
		parts = append(parts, fmt.Sprintf("users marked offline: %d", r.MarkedOffline))
	}
	return "maintenance: " + strings.Join(parts, ", ")
}

// Loop runs the sweep every interval until ctx is done.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.Run(ctx); err != nil {
			j.logger.Warn("maintenance sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
