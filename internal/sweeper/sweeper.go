// Package sweeper runs background session maintenance on a cron
// schedule: cancelling sessions that sat in awaiting_confirmation past
// the timeout, and pruning terminal sessions past retention.
package sweeper

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/logging"
)

// Store is the slice of the session store the sweeper needs.
type Store interface {
	ExpireAwaitingConfirmation(maxIdle time.Duration) (int, error)
	PruneTerminal(retention time.Duration) (int, error)
}

// Config controls what each sweep pass does. A zero ConfirmationTimeout
// disables expiry; a zero RetainTerminal keeps terminal sessions
// forever.
type Config struct {
	Schedule            string
	ConfirmationTimeout time.Duration
	RetainTerminal      time.Duration
}

type Sweeper struct {
	store Store
	cfg   Config
	cron  *cron.Cron
	log   *logrus.Entry
}

func New(store Store, cfg Config, logger *logrus.Logger) *Sweeper {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	return &Sweeper{
		store: store,
		cfg:   cfg,
		cron:  cron.New(),
		log:   logging.ForComponent(logger, "sweeper"),
	}
}

// Start registers the sweep job and launches the cron loop. The first
// pass runs after one schedule interval, not immediately.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.Sweep); err != nil {
		return fmt.Errorf("sweeper schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.WithField("schedule", s.cfg.Schedule).Info("sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep runs one maintenance pass. It is exported so the CLI can force
// a pass without waiting for the schedule.
func (s *Sweeper) Sweep() {
	if s.cfg.ConfirmationTimeout > 0 {
		n, err := s.store.ExpireAwaitingConfirmation(s.cfg.ConfirmationTimeout)
		if err != nil {
			s.log.WithError(err).Warn("expiring unconfirmed sessions failed")
		} else if n > 0 {
			s.log.WithField("count", n).Info("cancelled unconfirmed sessions")
		}
	}

	if s.cfg.RetainTerminal > 0 {
		n, err := s.store.PruneTerminal(s.cfg.RetainTerminal)
		if err != nil {
			s.log.WithError(err).Warn("pruning terminal sessions failed")
		} else if n > 0 {
			s.log.WithField("count", n).Info("pruned terminal sessions")
		}
	}
}
