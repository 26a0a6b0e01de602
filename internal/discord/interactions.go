package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/command"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		cmd, ok := b.commands.Get(name)
		if !ok {
			b.log.Warn().Str("command", name).Msg("unknown command")
			return
		}
		b.trackChannel(cmd, i)

		ctx := &command.SlashInteractionContext{
			Ctx:     b.runContext(),
			Session: s,
			Event:   i,
			Storage: b.storage,
		}
		if err := cmd.Run(ctx); err != nil {
			b.commandFailed(s, i, name, err)
		}

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		cmd, ok := b.commands.ForComponent(customID)
		if !ok {
			b.log.Warn().Str("custom_id", customID).Msg("no matching component")
			return
		}
		b.trackChannel(cmd, i)

		ch, _ := cmd.(command.ComponentInteractionHandler)
		ctx := &command.ComponentInteractionContext{
			Ctx:     b.runContext(),
			Session: s,
			Event:   i,
			Storage: b.storage,
		}
		if err := ch.Component(ctx); err != nil {
			b.commandFailed(s, i, customID, err)
		}

	default:
		b.log.Debug().Int("type", int(i.Type)).Msg("unknown interaction type")
	}
}

// trackChannel remembers where music is being controlled from, so later
// track announcements land there.
func (b *Bot) trackChannel(cmd command.Command, i *discordgo.InteractionCreate) {
	if cmd.Group() == "music" {
		b.rememberTextChannel(i.GuildID, i.ChannelID)
	}
}

// commandFailed logs err and tells the user, falling back to a followup
// when the interaction was already answered.
func (b *Bot) commandFailed(s *discordgo.Session, i *discordgo.InteractionCreate, name string, err error) {
	b.log.Error().Err(err).Str("guild", i.GuildID).Str("command", name).Msg("error running command")

	embed := command.ErrorEmbed(err)
	if rerr := command.RespondEmbedEphemeral(s, i, embed); rerr == nil {
		return
	}
	if _, ferr := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	}); ferr != nil {
		b.log.Debug().Err(ferr).Str("command", name).Msg("could not report command error")
	}
}
