package player

import (
	"context"

	"github.com/keshon/musicbot/internal/music/queue"
)

// VoiceSession is one guild's voice connection and audio stream.
// Implementations must be safe for concurrent use.
type VoiceSession interface {
	// Connect joins channelID, moving if already connected elsewhere.
	Connect(ctx context.Context, channelID string) error
	// Disconnect leaves the channel. Any playback is stopped first.
	Disconnect(ctx context.Context, force bool) error
	// Play starts streaming item. onComplete is called exactly once when the
	// stream ends for any reason, with a non-nil error on stream failure.
	Play(item queue.Item, onComplete func(error)) error
	// Stop ends the current stream. onComplete has run by the time it returns.
	Stop()
	Pause()
	Resume()
	// IsPlaying is false while paused.
	IsPlaying() bool
	IsPaused() bool
	// CurrentChannel returns "" when not connected.
	CurrentChannel() string
}

// Platform looks up voice sessions and channel membership.
type Platform interface {
	Voice(guildID string) VoiceSession
	ConnectedGuilds() []string
	MemberChannel(guildID, userID string) (string, bool)
	// HumanCount counts non-bot members in a voice channel.
	HumanCount(guildID, channelID string) int
}

// MediaResolver turns a user query into a playable item.
type MediaResolver interface {
	Resolve(ctx context.Context, query string) (queue.Item, error)
}
