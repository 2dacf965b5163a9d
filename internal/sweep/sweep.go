// Package sweep drives the reconciliation engine on a timer.
package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"zeiterfassung-backend/config"
	"zeiterfassung-backend/internal/clock"
	"zeiterfassung-backend/internal/reconcile"
)

// Reconciler is the part of the engine the scheduler calls.
type Reconciler interface {
	Tick(ctx context.Context, now time.Time) (reconcile.TickResult, error)
	CheckExcessiveHours(ctx context.Context, now time.Time) (int, error)
	AuditNoShows(ctx context.Context, now time.Time) (int, error)
	CloseForgotten(ctx context.Context, now time.Time) (int, error)
}

// Report summarises one sweep.
type Report struct {
	RunID     string               `json:"run_id"`
	At        time.Time            `json:"at"`
	Tick      reconcile.TickResult `json:"tick"`
	Excessive int                  `json:"excessive_hours"`
	NoShows   int                  `json:"no_shows"`
	Forgotten int                  `json:"forgotten_checkouts"`
	Audited   bool                 `json:"audited"`
	Closed    bool                 `json:"closed"`
}

// Service runs the periodic tick and the once-a-day audits.
type Service struct {
	engine Reconciler
	clock  clock.Clock
	cfg    config.ReconcileConfig
	log    logrus.FieldLogger

	mu          sync.Mutex
	lastAudit   string
	lastClosing string
}

// NewService creates a sweep scheduler.
func NewService(engine Reconciler, c clock.Clock, cfg config.ReconcileConfig, log logrus.FieldLogger) *Service {
	return &Service{engine: engine, clock: c, cfg: cfg, log: log.WithField("component", "sweep")}
}

// Run sweeps once immediately and then every configured interval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info("sweep is disabled, not starting")
		return
	}
	s.log.WithField("interval", s.cfg.Interval).Info("starting sweep service")

	s.RunOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep service shutting down")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// RunOnce performs a single sweep. Each job's failure is logged and does not
// stop the others. The no-show audit runs once per day from the audit hour on,
// the forgotten-checkout pass once per day from the end of day on.
func (s *Service) RunOnce(ctx context.Context) Report {
	now := s.clock.Now()
	rep := Report{RunID: uuid.NewString(), At: now}
	log := s.log.WithField("run_id", rep.RunID)

	var err error
	if rep.Tick, err = s.engine.Tick(ctx, now); err != nil {
		log.WithError(err).Error("auto stamping failed")
	}
	if rep.Excessive, err = s.engine.CheckExcessiveHours(ctx, now); err != nil {
		log.WithError(err).Error("excessive hours check failed")
	}

	day := now.Format(time.DateOnly)
	minute := now.Hour()*60 + now.Minute()
	if now.Hour() >= s.cfg.AuditHour && s.claim(&s.lastAudit, day) {
		rep.Audited = true
		if rep.NoShows, err = s.engine.AuditNoShows(ctx, now); err != nil {
			log.WithError(err).Error("no-show audit failed")
			s.release(&s.lastAudit)
		}
	}
	if minute >= s.cfg.EndOfDayMinute && s.claim(&s.lastClosing, day) {
		rep.Closed = true
		if rep.Forgotten, err = s.engine.CloseForgotten(ctx, now); err != nil {
			log.WithError(err).Error("closing forgotten entries failed")
			s.release(&s.lastClosing)
		}
	}

	log.WithFields(logrus.Fields{
		"checked_in":  rep.Tick.CheckedIn,
		"checked_out": rep.Tick.CheckedOut,
		"failed":      rep.Tick.Failed,
		"excessive":   rep.Excessive,
		"no_shows":    rep.NoShows,
		"forgotten":   rep.Forgotten,
	}).Debug("sweep finished")
	return rep
}

// claim reports whether the daily job keyed by slot has not yet run on day.
func (s *Service) claim(slot *string, day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if *slot == day {
		return false
	}
	*slot = day
	return true
}

// release lets a failed daily job retry on the next sweep.
func (s *Service) release(slot *string) {
	s.mu.Lock()
	*slot = ""
	s.mu.Unlock()
}
