package listing

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSweepSchedule runs the sweep daily at a low-traffic hour.
const DefaultSweepSchedule = "0 2 * * *"

// StaleExpirer is the slice of the repository the sweeper needs.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper transitions stale active listings to expired. It runs on a schedule
// with no caller to report to: failures are logged and the next tick fires
// regardless.
type Sweeper struct {
	repo   StaleExpirer
	logger zerolog.Logger
	now    func() time.Time
}

func NewSweeper(repo StaleExpirer, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep runs one batch pass and returns the number of listings expired.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}
	sweptListingsTotal.Add(float64(count))
	return count, nil
}

// Run is the scheduler entry point. It takes no parameters and swallows
// errors; there is nobody to propagate them to.
func (s *Sweeper) Run() {
	count, err := s.Sweep(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("listing sweep failed")
		return
	}
	s.logger.Info().Int64("expired", count).Msg("listing sweep finished")
}

// Schedule registers Run on a fresh cron handle and returns it unstarted.
// The caller owns the handle: it starts it once at boot and stops it on
// shutdown.
func (s *Sweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, s.Run); err != nil {
		return nil, err
	}
	return c, nil
}
