// Package command holds the slash commands and control buttons of the bot,
// the middlewares wrapped around them and the embeds they answer with.
package command

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/music/player"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/storage"
)

type Command interface {
	Name() string
	Description() string
	Aliases() []string
	Group() string
	Category() string
	Run(ctx interface{}) error
}

// SlashProvider describes how the command is registered with Discord.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// ComponentInteractionHandler is implemented by commands owning message
// components. Their custom IDs start with "<name>:".
type ComponentInteractionHandler interface {
	Component(*ComponentInteractionContext) error
}

// SlashInteractionContext is what a slash command receives.
type SlashInteractionContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

type ComponentInteractionContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Storage *storage.Storage
}

// Player is the playback surface music commands drive.
type Player interface {
	Play(ctx context.Context, guildID, userID, query string) (player.PlayResult, error)
	Skip(ctx context.Context, guildID string) (queue.Item, error)
	Stop(ctx context.Context, guildID string) error
	Pause(ctx context.Context, guildID string) error
	Resume(ctx context.Context, guildID string) error
	Leave(ctx context.Context, guildID string) error
	Remove(ctx context.Context, guildID string, pos int) (queue.Item, error)
	ToggleLoop(ctx context.Context, guildID string) (bool, error)
	Snapshot(ctx context.Context, guildID string) (player.Snapshot, error)
}

// interactionUser returns the invoking user in guilds and in DMs.
func interactionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e == nil {
		return nil
	}
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	return e.User
}

// contextOf unwraps the request context carried by a command context.
func contextOf(ctx interface{}) context.Context {
	var c context.Context
	switch v := ctx.(type) {
	case *SlashInteractionContext:
		c = v.Ctx
	case *ComponentInteractionContext:
		c = v.Ctx
	}
	if c == nil {
		c = context.Background()
	}
	return c
}
