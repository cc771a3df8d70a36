// Package sweeper physically removes echoes long after they stopped being
// visible. Listing never depends on it.
package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/zym9863/Dream-s-Exit/internal/store"
)

var (
	purgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dreams_exit",
			Subsystem: "sweeper",
			Name:      "echoes_purged_total",
			Help:      "Expired echo rows deleted by the sweeper.",
		},
	)

	sweepFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dreams_exit",
			Subsystem: "sweeper",
			Name:      "failures_total",
			Help:      "Sweep cycles that returned an error.",
		},
	)
)

// Config controls retention and polling cadence.
type Config struct {
	Retention time.Duration // rows expired for longer than this are deleted
	Interval  time.Duration // poll interval
}

// Sweeper deletes echo rows whose expiry is older than now - Retention.
type Sweeper struct {
	echoes store.Echoes
	log    zerolog.Logger
	cfg    Config
	now    func() time.Time
}

// New constructs a Sweeper. A zero Interval defaults to one hour.
func New(echoes store.Echoes, cfg Config, log zerolog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Sweeper{echoes: echoes, log: log, cfg: cfg, now: time.Now}
}

// Enabled reports whether a positive retention was configured.
func (s *Sweeper) Enabled() bool { return s.cfg.Retention > 0 }

// Run sweeps once immediately and then on every tick until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.log.Debug().Msg("echo sweeper disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	s.log.Info().Dur("retention", s.cfg.Retention).Dur("interval", s.cfg.Interval).Msg("echo sweeper starting")
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			// Log and continue; next tick retries
			s.log.Error().Err(err).Msg("echo sweep failed")
		}
		select {
		case <-ctx.Done():
			s.log.Info().Msg("echo sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single purge and returns the number of rows removed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.Retention)
	n, err := s.echoes.PurgeExpired(ctx, cutoff)
	if err != nil {
		sweepFailuresTotal.Inc()
		return 0, err
	}
	purgedTotal.Add(float64(n))
	if n > 0 {
		s.log.Debug().Int64("purged", n).Time("cutoff", cutoff).Msg("expired echoes purged")
	}
	return n, nil
}
