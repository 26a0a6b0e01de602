package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/command"
	"github.com/keshon/musicbot/pkg/retrylimit"
)

// registerCommands replaces the guild's slash commands with the local set.
// Obsolete commands disappear with the overwrite.
func (b *Bot) registerCommands(ctx context.Context, guildID string) error {
	appID, err := b.appID()
	if err != nil {
		return err
	}

	defs := commandDefinitions(b.commands.All())

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	log := b.log.With().Str("guild", guildID).Logger()
	err = retrylimit.Do(ctx, b.limiter, retrylimit.RegisterBudget, log, func() error {
		_, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs)
		return err
	})
	if err != nil {
		return fmt.Errorf("overwrite commands: %w", err)
	}

	b.log.Info().Str("guild", guildID).Int("commands", len(defs)).Msg("slash commands registered")
	return nil
}

func (b *Bot) appID() (string, error) {
	if b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	user, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("fetch self: %w", err)
	}
	return user.ID, nil
}

// commandDefinitions collects the slash definitions of cmds.
func commandDefinitions(cmds []command.Command) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, cmd := range cmds {
		sp, ok := cmd.(command.SlashProvider)
		if !ok {
			continue
		}
		def := sp.SlashDefinition()
		if def == nil {
			continue
		}
		if def.Type == 0 {
			def.Type = discordgo.ChatApplicationCommand
		}
		defs = append(defs, def)
	}
	return defs
}
