package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adevnylo/hll-seed-ping/internal/models"
	"github.com/adevnylo/hll-seed-ping/internal/monitor"
	"github.com/adevnylo/hll-seed-ping/internal/store"
)

// FatalError ends the daemon loop; the process should exit non-zero.
type FatalError struct {
	Err   error
	Stack []byte
}

func (e *FatalError) Error() string { return "daemon loop: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

type Cycler interface {
	LoadSettings() (*models.SeedSettings, error)
	Cycle(ctx context.Context, s *models.SeedSettings) (monitor.Result, error)
}

type Saver interface {
	Save(*models.SeedSettings) error
}

// Runner is the continuous mode: load, cycle, sleep for the interval the
// cycle left behind, until ctx is cancelled.
type Runner struct {
	Monitor Cycler
	Store   Saver
	Logger  *zap.Logger
	Now     func() time.Time
	// Wait blocks for d or until ctx is done. Defaults to a timer.
	Wait func(ctx context.Context, d time.Duration) error

	settings *models.SeedSettings
	// pending is set while the in-memory record has not reached disk; the
	// next cycle keeps using it instead of reloading.
	pending bool
}

func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.Monitor == nil {
		return &FatalError{Err: errors.New("runner not configured")}
	}
	log := r.logger()
	log.Info("daemon started")

	for {
		cycleLog := log.With(zap.String("cycle_id", uuid.NewString()))
		wait, err := r.cycle(ctx, cycleLog)
		if err != nil {
			var fe *FatalError
			if errors.As(err, &fe) && len(fe.Stack) > 0 {
				cycleLog.Error("daemon stopped", zap.Error(err), zap.ByteString("stack", fe.Stack))
			} else {
				cycleLog.Error("daemon stopped", zap.Error(err))
			}
			return err
		}
		if ctx.Err() != nil {
			return r.shutdown()
		}

		cycleLog.Info("waiting for next check",
			zap.Duration("wait", wait),
			zap.Time("next_check", r.now().Add(wait)),
		)
		if err := r.wait(ctx, wait); err != nil {
			return r.shutdown()
		}
	}
}

func (r *Runner) cycle(ctx context.Context, log *zap.Logger) (wait time.Duration, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &FatalError{Err: fmt.Errorf("panic: %v", p), Stack: debug.Stack()}
		}
	}()

	if !r.pending || r.settings == nil {
		s, err := r.Monitor.LoadSettings()
		var pe *store.PersistError
		switch {
		case err == nil:
		case errors.As(err, &pe) && s != nil:
			log.Error("default settings not persisted", zap.Error(err))
			r.pending = true
		default:
			return 0, &FatalError{Err: err}
		}
		r.settings = s
	}
	s := r.settings

	res, err := r.Monitor.Cycle(ctx, s)
	var pe *store.PersistError
	switch {
	case errors.As(err, &pe):
		log.Error("settings not persisted, keeping them in memory", zap.Error(err))
		r.pending = true
	case err == nil && res.Checked:
		r.pending = false
	default:
		// Gated or failed fetch: nothing was written this cycle.
		if r.pending {
			r.retrySave(log)
		}
	}

	wait = s.CheckEvery()
	if !res.Checked && err == nil {
		if next := s.NextCheckAt(); next != nil {
			if d := next.Sub(r.now()); d > 0 {
				wait = d
			}
		}
	}
	if wait <= 0 {
		wait = monitor.DefaultFastInterval
	}
	return wait, nil
}

func (r *Runner) retrySave(log *zap.Logger) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Save(r.settings); err != nil {
		log.Error("settings still not persisted", zap.Error(err))
		return
	}
	r.pending = false
}

// shutdown writes the in-memory record once more. Failing to do so is logged
// but does not change the exit status.
func (r *Runner) shutdown() error {
	log := r.logger()
	log.Info("shutdown requested, saving settings")
	if r.settings != nil && r.Store != nil {
		if err := r.Store.Save(r.settings); err != nil {
			log.Error("settings not saved on shutdown", zap.Error(err))
		}
	}
	log.Info("daemon stopped")
	return nil
}

func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if r.Wait != nil {
		return r.Wait(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}
