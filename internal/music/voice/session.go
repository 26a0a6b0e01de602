// Package voice implements player.VoiceSession and player.Platform on top of
// discordgo voice connections and the gateway state cache.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/music/stream"
	"github.com/rs/zerolog"
)

var (
	ErrNoConnection = errors.New("no voice connection")
	ErrBusy         = errors.New("already playing")
)

// conn is the part of a voice connection a Session drives.
type conn interface {
	Speaking(b bool) error
	Disconnect() error
	Opus() chan<- []byte
}

type dgConn struct{ *discordgo.VoiceConnection }

func (c dgConn) Opus() chan<- []byte { return c.OpusSend }

// joinFunc joins a voice channel deafened.
type joinFunc func(guildID, channelID string) (conn, error)

func gatewayJoin(dg *discordgo.Session) joinFunc {
	return func(guildID, channelID string) (conn, error) {
		vc, err := dg.ChannelVoiceJoin(guildID, channelID, false, true)
		if err != nil {
			return nil, err
		}
		return dgConn{vc}, nil
	}
}

// Session is one guild's voice connection and the stream playing on it.
type Session struct {
	join       joinFunc
	guildID    string
	open       stream.Opener
	newEncoder func() (stream.Encoder, error)
	log        zerolog.Logger

	mu        sync.Mutex
	vc        conn
	channelID string
	pb        *stream.Playback
	// cancel kills the decoder feeding pb, unblocking a stalled read.
	cancel context.CancelFunc
}

func (s *Session) Connect(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.vc != nil && s.channelID == channelID {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	vc, err := s.join(s.guildID, channelID)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	s.mu.Lock()
	s.vc = vc
	s.channelID = channelID
	s.mu.Unlock()

	s.log.Info().Str("channel", channelID).Msg("joined voice channel")
	return nil
}

// Disconnect stops playback and leaves. With force, a failing gateway
// disconnect is ignored.
func (s *Session) Disconnect(ctx context.Context, force bool) error {
	s.mu.Lock()
	vc := s.vc
	s.vc = nil
	s.channelID = ""
	s.mu.Unlock()

	s.Stop()

	if vc == nil {
		return nil
	}
	if err := vc.Disconnect(); err != nil && !force {
		return err
	}
	s.log.Info().Msg("left voice channel")
	return nil
}

func (s *Session) Play(item queue.Item, onComplete func(error)) error {
	s.mu.Lock()
	vc := s.vc
	busy := s.pb != nil
	s.mu.Unlock()

	if vc == nil {
		return ErrNoConnection
	}
	if busy {
		return ErrBusy
	}

	enc, err := s.newEncoder()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	src := stream.NewRecoveryStream(ctx, s.open, item.Locator, item.Duration, s.log)
	if err := src.Open(); err != nil {
		cancel()
		return fmt.Errorf("failed to create PCM stream for track: %w", err)
	}

	pb := stream.NewPlayback()
	s.mu.Lock()
	s.pb = pb
	s.cancel = cancel
	s.mu.Unlock()

	_ = vc.Speaking(true)
	s.log.Debug().Str("title", item.Title).Msg("streaming to voice")

	go func() {
		err := stream.Pump(pb, src, enc, vc.Opus())
		cancel()
		_ = src.Close()
		_ = vc.Speaking(false)

		s.mu.Lock()
		if s.pb == pb {
			s.pb = nil
			s.cancel = nil
		}
		s.mu.Unlock()

		onComplete(err)
		pb.Finish()
	}()
	return nil
}

// Stop ends the running stream and waits for its completion callback.
func (s *Session) Stop() {
	s.mu.Lock()
	pb, cancel := s.pb, s.cancel
	s.mu.Unlock()

	if pb == nil {
		return
	}
	pb.Stop()
	// Pump checks pb between frames only; killing the decoder unblocks a stalled read.
	cancel()
	<-pb.Done()
}

func (s *Session) Pause() {
	s.mu.Lock()
	pb, vc := s.pb, s.vc
	s.mu.Unlock()

	if pb != nil && pb.Pause() && vc != nil {
		_ = vc.Speaking(false)
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	pb, vc := s.pb, s.vc
	s.mu.Unlock()

	if pb != nil && pb.Resume() && vc != nil {
		_ = vc.Speaking(true)
	}
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pb != nil && !s.pb.Paused()
}

func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pb != nil && s.pb.Paused()
}

func (s *Session) CurrentChannel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

// moved records a gateway-side channel change for the bot itself.
// An empty channelID means the bot was disconnected by someone else.
func (s *Session) moved(channelID string) {
	s.mu.Lock()
	if s.channelID == channelID {
		s.mu.Unlock()
		return
	}
	s.channelID = channelID
	if channelID == "" {
		s.vc = nil
	}
	s.mu.Unlock()

	if channelID == "" {
		s.log.Info().Msg("voice connection closed by gateway")
		s.Stop()
	}
}
