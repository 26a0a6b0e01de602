package player

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keshon/musicbot/pkg/jobmgr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval = 2 * time.Minute
	DefaultEmptyGrace    = 30 * time.Second

	sweepWorkers = 4
)

type SweeperOptions struct {
	Interval time.Duration
	// Grace is how long an emptied channel is kept before leaving.
	Grace  time.Duration
	Logger zerolog.Logger
}

// IdleSweeper disconnects sessions nobody is listening to. It runs a periodic
// sweep and reacts to members leaving the bot's channel.
type IdleSweeper struct {
	ctrl     *Controller
	platform Platform
	interval time.Duration
	grace    time.Duration
	jobs     *jobmgr.Manager
	log      zerolog.Logger
}

func NewIdleSweeper(ctrl *Controller, platform Platform, opts SweeperOptions) *IdleSweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSweepInterval
	}
	if opts.Grace < 0 {
		opts.Grace = DefaultEmptyGrace
	}

	log := opts.Logger.With().Str("component", "sweeper").Logger()
	return &IdleSweeper{
		ctrl:     ctrl,
		platform: platform,
		interval: opts.Interval,
		grace:    opts.Grace,
		jobs: jobmgr.NewManager(func(msg string) {
			log.Debug().Str("job", msg).Msg("delayed disconnect")
		}),
		log: log,
	}
}

// Run sweeps every interval until ctx is done.
func (s *IdleSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.jobs.CancelAll()

	s.log.Info().Dur("interval", s.interval).Msg("idle sweeper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep checks every connected guild once and returns how many were left.
// Disconnect failures are logged, never returned.
func (s *IdleSweeper) Sweep(ctx context.Context) int {
	var left atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepWorkers)
	for _, guildID := range s.platform.ConnectedGuilds() {
		g.Go(func() error {
			ok, err := s.ctrl.DisconnectIfIdle(ctx, guildID)
			if err != nil {
				s.log.Warn().Err(err).Str("guild", guildID).Msg("idle disconnect failed")
			}
			if ok {
				left.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := left.Load(); n > 0 {
		s.log.Info().Int32("guilds", n).Msg("idle sweep finished")
	}
	return int(left.Load())
}

// MembershipChanged reacts to a human joining or leaving voice in guildID.
// If the bot's channel is now empty a delayed disconnect is scheduled,
// replacing any earlier one; if someone is there it is cancelled.
func (s *IdleSweeper) MembershipChanged(guildID string) {
	key := "disconnect:" + guildID

	channelID := s.platform.Voice(guildID).CurrentChannel()
	if channelID == "" || s.platform.HumanCount(guildID, channelID) > 0 {
		s.jobs.Cancel(key)
		return
	}

	s.jobs.Schedule(key, s.grace, func(ctx context.Context) error {
		_, err := s.ctrl.DisconnectIfAlone(ctx, guildID)
		return err
	})
}

// PendingDisconnects lists guild jobs waiting to fire.
func (s *IdleSweeper) PendingDisconnects() []string {
	return s.jobs.List()
}
