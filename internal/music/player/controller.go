// Package player drives per-guild playback: queue decisions, voice session
// control and idle disconnects.
//
// Every guild owns a lane, a goroutine that runs that guild's state changes
// one at a time. Stream completion never touches state directly: it posts an
// advance job carrying the playback token it was started with, and stale
// tokens are ignored.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/keshon/musicbot/internal/metrics"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/music/resolver"
	"github.com/rs/zerolog"
)

const DefaultResolveTimeout = 30 * time.Second

// Status is the outcome shown to users after a playback command.
type Status string

const (
	StatusPlaying Status = "Now Playing"
	StatusAdded   Status = "Added to Queue"
	StatusSkipped Status = "Skipped"
	StatusStopped Status = "Stopped"
	StatusPaused  Status = "Paused"
	StatusResumed Status = "Resumed"
	StatusLeft    Status = "Disconnected"
	StatusRemoved Status = "Removed from Queue"
	StatusError   Status = "Error"
)

func (s Status) StringEmoji() string {
	m := map[Status]string{
		StatusPlaying: "🎵",
		StatusAdded:   "📝",
		StatusSkipped: "⏭️",
		StatusStopped: "⏹️",
		StatusPaused:  "⏸️",
		StatusResumed: "▶️",
		StatusLeft:    "👋",
		StatusRemoved: "🗑️",
		StatusError:   "❌",
	}
	return m[s]
}

// PlayResult describes what Play did with the resolved item.
type PlayResult struct {
	Item     queue.Item
	Enqueued bool
	// Position is the 1-based queue position when Enqueued.
	Position int
}

// TrackEvent is emitted when the queue advances to a new item on its own.
type TrackEvent struct {
	GuildID string
	Item    queue.Item
	Next    queue.Item
	HasNext bool
}

// Snapshot is a read-only copy of a guild's playback state.
type Snapshot struct {
	Current    queue.Item
	HasCurrent bool
	Pending    []queue.Item
	Loop       bool
	Playing    bool
	Paused     bool
}

type Options struct {
	ResolveTimeout time.Duration
	Logger         zerolog.Logger
	// OnTrackStart is called from the guild's lane and must not block.
	OnTrackStart func(TrackEvent)
}

type guildState struct {
	lane *lane
	// token identifies the stream started last. Lane-owned.
	token string
}

// Controller implements the playback commands for all guilds.
type Controller struct {
	platform       Platform
	resolver       MediaResolver
	queues         *queue.Registry
	resolveTimeout time.Duration
	onTrackStart   func(TrackEvent)
	log            zerolog.Logger

	mu        sync.Mutex
	guilds    map[string]*guildState
	done      chan struct{}
	closeOnce sync.Once
}

func NewController(platform Platform, res MediaResolver, queues *queue.Registry, opts Options) *Controller {
	if opts.ResolveTimeout <= 0 {
		opts.ResolveTimeout = DefaultResolveTimeout
	}
	return &Controller{
		platform:       platform,
		resolver:       res,
		queues:         queues,
		resolveTimeout: opts.ResolveTimeout,
		onTrackStart:   opts.OnTrackStart,
		log:            opts.Logger.With().Str("component", "player").Logger(),
		guilds:         make(map[string]*guildState),
		done:           make(chan struct{}),
	}
}

// Close stops all lanes. Pending jobs are dropped.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Controller) guild(guildID string) *guildState {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.guilds[guildID]
	if !ok {
		g = &guildState{lane: newLane(c.done)}
		c.guilds[guildID] = g
	}
	return g
}

// Play connects to the requester's channel if needed, resolves query and
// either starts it or appends it to the queue.
func (c *Controller) Play(ctx context.Context, guildID, userID, query string) (PlayResult, error) {
	log := c.log.With().Str("guild", guildID).Logger()

	channelID, ok := c.platform.MemberChannel(guildID, userID)
	if !ok {
		return PlayResult{}, ErrNotInVoice
	}

	g := c.guild(guildID)

	var err error
	if lerr := g.lane.do(ctx, func() { err = c.ensureConnected(ctx, guildID, channelID) }); lerr != nil {
		return PlayResult{}, lerr
	}
	if err != nil {
		return PlayResult{}, err
	}

	log.Debug().Str("query", query).Msg("resolving")
	item, err := c.resolve(ctx, query)
	if err != nil {
		log.Warn().Err(err).Str("query", query).Msg("resolve failed")
		return PlayResult{}, err
	}

	var res PlayResult
	if lerr := g.lane.do(ctx, func() { res, err = c.commit(g, guildID, item) }); lerr != nil {
		return PlayResult{}, lerr
	}
	return res, err
}

func (c *Controller) ensureConnected(ctx context.Context, guildID, channelID string) error {
	vs := c.platform.Voice(guildID)
	switch cur := vs.CurrentChannel(); {
	case cur == channelID:
		return nil
	case cur != "":
		return ErrWrongChannel
	}

	if err := vs.Connect(ctx, channelID); err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	c.log.Info().Str("guild", guildID).Str("channel", channelID).Msg("joined voice channel")
	return nil
}

func (c *Controller) resolve(ctx context.Context, query string) (queue.Item, error) {
	rctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	item, err := c.resolver.Resolve(rctx, query)
	if err == nil {
		return item, nil
	}

	if errors.Is(err, context.DeadlineExceeded) || (rctx.Err() != nil && ctx.Err() == nil) {
		metrics.ResolveFailures.WithLabelValues("timeout").Inc()
		return queue.Item{}, resolver.ErrResolveTimeout
	}
	metrics.ResolveFailures.WithLabelValues("error").Inc()
	return queue.Item{}, err
}

// commit is the check-then-act step of Play. Runs in the lane.
func (c *Controller) commit(g *guildState, guildID string, item queue.Item) (PlayResult, error) {
	vs := c.platform.Voice(guildID)
	if vs.CurrentChannel() == "" {
		return PlayResult{}, ErrNotConnected
	}

	q := c.queues.Get(guildID)
	_, hasCurrent := q.Current()

	// A set current item without an active stream means an advance is
	// already queued behind us; it will pick this item up in order.
	if vs.IsPlaying() || vs.IsPaused() || hasCurrent {
		q.Add(item)
		metrics.TracksEnqueued.Inc()
		c.log.Info().Str("guild", guildID).Str("title", item.Title).Int("position", q.Len()).Msg("added to queue")
		return PlayResult{Item: item, Enqueued: true, Position: q.Len()}, nil
	}

	if err := c.start(g, guildID, vs, q, item); err != nil {
		return PlayResult{}, err
	}
	return PlayResult{Item: item}, nil
}

// start hands item to the voice session under a fresh token. Runs in the lane.
func (c *Controller) start(g *guildState, guildID string, vs VoiceSession, q *queue.GuildQueue, item queue.Item) error {
	token := uuid.NewString()
	if err := vs.Play(item, c.onComplete(g, guildID, token)); err != nil {
		return &TransportError{Op: "play", Err: err}
	}

	g.token = token
	q.SetCurrent(item)
	metrics.TracksStarted.Inc()
	c.log.Info().Str("guild", guildID).Str("title", item.Title).Msg("now playing")
	return nil
}

func (c *Controller) onComplete(g *guildState, guildID, token string) func(error) {
	return func(err error) {
		if err != nil {
			c.log.Warn().Err(err).Str("guild", guildID).Msg("stream ended with error")
		}
		g.lane.post(func() { c.advance(g, guildID, token) })
	}
}

// advance moves to the next item after a stream ended. Runs in the lane.
func (c *Controller) advance(g *guildState, guildID, token string) {
	if token != g.token {
		c.log.Debug().Str("guild", guildID).Msg("stale completion ignored")
		return
	}

	q := c.queues.Get(guildID)
	vs := c.platform.Voice(guildID)

	if q.Loop() {
		if cur, ok := q.Current(); ok {
			q.Add(cur)
		}
	}

	if vs.CurrentChannel() == "" {
		q.Clear()
		g.token = ""
		return
	}

	for {
		next, ok := q.GetNext()
		if !ok {
			q.ClearCurrent()
			g.token = ""
			c.log.Debug().Str("guild", guildID).Msg("queue finished")
			return
		}
		if err := c.start(g, guildID, vs, q, next); err != nil {
			c.log.Warn().Err(err).Str("guild", guildID).Str("title", next.Title).Msg("dropping item that failed to start")
			continue
		}
		if c.onTrackStart != nil {
			ev := TrackEvent{GuildID: guildID, Item: next}
			if pending := q.Pending(); len(pending) > 0 {
				ev.Next, ev.HasNext = pending[0], true
			}
			c.onTrackStart(ev)
		}
		return
	}
}

// run executes fn in the guild's lane and returns its error.
func (c *Controller) run(ctx context.Context, guildID string, fn func(g *guildState) error) error {
	g := c.guild(guildID)
	var err error
	if lerr := g.lane.do(ctx, func() { err = fn(g) }); lerr != nil {
		return lerr
	}
	return err
}

// Skip ends the current stream; the queue advances as usual.
func (c *Controller) Skip(ctx context.Context, guildID string) (queue.Item, error) {
	var skipped queue.Item
	err := c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		if !vs.IsPlaying() {
			return ErrNothingPlaying
		}
		skipped, _ = c.queues.Get(guildID).Current()
		vs.Stop()
		return nil
	})
	return skipped, err
}

// Stop ends playback and clears the queue. The session stays connected.
func (c *Controller) Stop(ctx context.Context, guildID string) error {
	return c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		if vs.CurrentChannel() == "" {
			return ErrNotConnected
		}
		g.token = ""
		c.queues.Get(guildID).Clear()
		vs.Stop()
		c.log.Info().Str("guild", guildID).Msg("playback stopped")
		return nil
	})
}

func (c *Controller) Pause(ctx context.Context, guildID string) error {
	return c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		if !vs.IsPlaying() {
			return ErrNothingPlaying
		}
		vs.Pause()
		return nil
	})
}

func (c *Controller) Resume(ctx context.Context, guildID string) error {
	return c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		if !vs.IsPaused() {
			return ErrNotPaused
		}
		vs.Resume()
		return nil
	})
}

// Leave disconnects gracefully and clears the queue.
func (c *Controller) Leave(ctx context.Context, guildID string) error {
	return c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		if vs.CurrentChannel() == "" {
			return ErrNotConnected
		}
		if err := vs.Disconnect(ctx, false); err != nil {
			return &TransportError{Op: "disconnect", Err: err}
		}
		g.token = ""
		c.queues.Get(guildID).Clear()
		c.log.Info().Str("guild", guildID).Msg("left voice channel")
		return nil
	})
}

// Remove drops the pending item at 1-based position pos.
func (c *Controller) Remove(ctx context.Context, guildID string, pos int) (queue.Item, error) {
	var removed queue.Item
	err := c.run(ctx, guildID, func(g *guildState) error {
		q := c.queues.Get(guildID)
		if pos < 1 || pos > q.Len() {
			return ErrInvalidPosition
		}
		removed, _ = q.RemoveAt(pos - 1)
		return nil
	})
	return removed, err
}

// ToggleLoop flips the loop flag and returns the new value.
func (c *Controller) ToggleLoop(ctx context.Context, guildID string) (bool, error) {
	var enabled bool
	err := c.run(ctx, guildID, func(g *guildState) error {
		q := c.queues.Get(guildID)
		enabled = !q.Loop()
		q.SetLoop(enabled)
		return nil
	})
	return enabled, err
}

func (c *Controller) Snapshot(ctx context.Context, guildID string) (Snapshot, error) {
	var snap Snapshot
	err := c.run(ctx, guildID, func(g *guildState) error {
		q := c.queues.Get(guildID)
		vs := c.platform.Voice(guildID)
		snap.Current, snap.HasCurrent = q.Current()
		snap.Pending = q.Pending()
		snap.Loop = q.Loop()
		snap.Playing = vs.IsPlaying()
		snap.Paused = vs.IsPaused()
		return nil
	})
	return snap, err
}

// DisconnectIfIdle leaves when nothing is playing or paused and no human is
// in the bot's channel. Reports whether it disconnected.
func (c *Controller) DisconnectIfIdle(ctx context.Context, guildID string) (bool, error) {
	return c.disconnectWhen(ctx, guildID, "sweep", true)
}

// DisconnectIfAlone leaves when no human is in the bot's channel, playing or not.
func (c *Controller) DisconnectIfAlone(ctx context.Context, guildID string) (bool, error) {
	return c.disconnectWhen(ctx, guildID, "empty_channel", false)
}

func (c *Controller) disconnectWhen(ctx context.Context, guildID, trigger string, requireIdle bool) (bool, error) {
	var left bool
	err := c.run(ctx, guildID, func(g *guildState) error {
		vs := c.platform.Voice(guildID)
		channelID := vs.CurrentChannel()
		if channelID == "" {
			return nil
		}
		if requireIdle && (vs.IsPlaying() || vs.IsPaused()) {
			return nil
		}
		if c.platform.HumanCount(guildID, channelID) > 0 {
			return nil
		}

		g.token = ""
		c.queues.Get(guildID).Clear()
		left = true
		metrics.IdleDisconnects.WithLabelValues(trigger).Inc()
		c.log.Info().Str("guild", guildID).Str("trigger", trigger).Msg("disconnecting from idle channel")

		if err := vs.Disconnect(ctx, false); err != nil {
			return fmt.Errorf("idle disconnect: %w", &TransportError{Op: "disconnect", Err: err})
		}
		return nil
	})
	return left, err
}
