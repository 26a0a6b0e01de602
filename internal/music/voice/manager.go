package voice

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/music/player"
	"github.com/keshon/musicbot/internal/music/stream"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Options struct {
	// FFmpegPath defaults to "ffmpeg" on PATH.
	FFmpegPath string
	Logger     zerolog.Logger
}

// Manager owns the per-guild sessions and answers membership questions from
// the gateway state cache. It implements player.Platform.
type Manager struct {
	dg   *discordgo.Session
	open stream.Opener
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

var _ player.Platform = (*Manager)(nil)

func NewManager(dg *discordgo.Session, opts Options) *Manager {
	return &Manager{
		dg:       dg,
		open:     stream.FFmpeg(opts.FFmpegPath),
		log:      opts.Logger.With().Str("component", "voice").Logger(),
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Voice(guildID string) player.VoiceSession {
	return m.session(guildID)
}

func (m *Manager) session(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[guildID]
	if !ok {
		s = &Session{
			join:       gatewayJoin(m.dg),
			guildID:    guildID,
			open:       m.open,
			newEncoder: stream.NewOpusEncoder,
			log:        m.log.With().Str("guild", guildID).Logger(),
		}
		m.sessions[guildID] = s
	}
	return s
}

func (m *Manager) ConnectedGuilds() []string {
	m.mu.Lock()
	sessions := lo.Values(m.sessions)
	m.mu.Unlock()

	connected := lo.Filter(sessions, func(s *Session, _ int) bool {
		return s.CurrentChannel() != ""
	})
	return lo.Map(connected, func(s *Session, _ int) string { return s.guildID })
}

// MemberChannel returns the voice channel userID is in, if any.
func (m *Manager) MemberChannel(guildID, userID string) (string, bool) {
	vs, err := m.dg.State.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

func (m *Manager) HumanCount(guildID, channelID string) int {
	guild, err := m.dg.State.Guild(guildID)
	if err != nil {
		return 0
	}

	m.dg.State.RLock()
	defer m.dg.State.RUnlock()
	return lo.CountBy(guild.VoiceStates, func(vs *discordgo.VoiceState) bool {
		return vs.ChannelID == channelID && !m.isBot(guild, vs)
	})
}

// isBot is called with the state read lock held. Voice states from
// GUILD_CREATE carry no member, so those are looked up in the guild.
func (m *Manager) isBot(guild *discordgo.Guild, vs *discordgo.VoiceState) bool {
	if m.dg.State.User != nil && vs.UserID == m.dg.State.User.ID {
		return true
	}
	if vs.Member != nil && vs.Member.User != nil {
		return vs.Member.User.Bot
	}
	mem, ok := lo.Find(guild.Members, func(mem *discordgo.Member) bool {
		return mem.User != nil && mem.User.ID == vs.UserID
	})
	return ok && mem.User.Bot
}

// HandleVoiceState keeps sessions in sync with the gateway. It reports
// whether the update came from a human, so callers can re-check idleness.
func (m *Manager) HandleVoiceState(vsu *discordgo.VoiceStateUpdate) bool {
	if vsu == nil || vsu.VoiceState == nil {
		return false
	}

	if m.dg.State.User != nil && vsu.UserID == m.dg.State.User.ID {
		m.session(vsu.GuildID).moved(vsu.ChannelID)
		return false
	}

	if vsu.Member != nil && vsu.Member.User != nil && vsu.Member.User.Bot {
		return false
	}
	if mem, err := m.dg.State.Member(vsu.GuildID, vsu.UserID); err == nil && mem.User != nil && mem.User.Bot {
		return false
	}
	return true
}

// Shutdown disconnects every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := lo.Values(m.sessions)
	m.mu.Unlock()

	for _, s := range sessions {
		if s.CurrentChannel() != "" {
			_ = s.Disconnect(context.Background(), true)
		}
	}
}
