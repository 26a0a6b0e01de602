package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/command"
	"github.com/keshon/musicbot/internal/music/player"
)

func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	human := b.voice.HandleVoiceState(v)
	if v == nil || v.VoiceState == nil {
		return
	}
	b.log.Debug().Str("guild", v.GuildID).Str("channel", v.ChannelID).Bool("human", human).Msg("voice state update")

	// Both a listener leaving and the bot being moved can leave it alone.
	b.sweeper.MembershipChanged(v.GuildID)
}

// announceTrack posts a now-playing message when the queue moves on by
// itself. Called from the guild's lane, so the send happens elsewhere.
func (b *Bot) announceTrack(ev player.TrackEvent) {
	channelID, ok := b.textChannel(ev.GuildID)
	if !ok {
		return
	}

	go func() {
		msg, err := b.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{command.NowPlayingEmbed(ev.Item, ev.Next, ev.HasNext, command.Requester{})},
			Components: []discordgo.MessageComponent{command.ControlRow(false)},
		})
		if err != nil {
			b.log.Warn().Err(err).Str("guild", ev.GuildID).Msg("failed to announce track")
			return
		}
		b.controls.Expire(b.dg, msg)
	}()
}
