package command

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
)

const musicCategory = "🎵 Music"

// musicCommand carries what every music command shares.
type musicCommand struct {
	Player Player
}

func (musicCommand) Aliases() []string { return []string{} }
func (musicCommand) Group() string     { return "music" }
func (musicCommand) Category() string  { return musicCategory }

func slashContext(ctx interface{}) (*SlashInteractionContext, bool) {
	v, ok := ctx.(*SlashInteractionContext)
	return v, ok
}

// reply answers with text in color, or with the error embed when err is set.
func reply(ctx *SlashInteractionContext, text string, color int, err error) error {
	embed := messageEmbed(text, color)
	if err != nil {
		embed = ErrorEmbed(err)
	}
	if rerr := RespondEmbed(ctx.Session, ctx.Event, embed); rerr != nil {
		return fmt.Errorf("respond: %w", rerr)
	}
	return nil
}

type PlayCommand struct {
	musicCommand
	Controls *ControlsCommand
}

func NewPlayCommand(p Player, controls *ControlsCommand) *PlayCommand {
	return &PlayCommand{musicCommand: musicCommand{Player: p}, Controls: controls}
}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "🎶 Play music from a URL or search term" }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Link or search term",
				Required:    true,
			},
		},
	}
}

func (c *PlayCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	s, e := sc.Session, sc.Event

	var query string
	for _, opt := range e.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}

	// resolving may take longer than the interaction deadline
	if err := RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	by := RequesterOf(e)
	res, err := c.Player.Play(contextOf(sc), e.GuildID, interactionUser(e).ID, query)
	if err != nil {
		_, ferr := FollowupEmbed(s, e, ErrorEmbed(err))
		return ferr
	}

	if res.Enqueued {
		_, err := FollowupEmbed(s, e, EnqueuedEmbed(res.Item, res.Position, by))
		return err
	}

	snap, err := c.Player.Snapshot(contextOf(sc), e.GuildID)
	if err != nil {
		return err
	}
	next, hasNext := lo.First(snap.Pending)
	msg, err := FollowupEmbed(s, e, NowPlayingEmbed(res.Item, next, hasNext, by), ControlRow(false))
	if err != nil {
		return err
	}
	if c.Controls != nil {
		c.Controls.Expire(s, msg)
	}
	return nil
}

type SkipCommand struct{ musicCommand }

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "⏭️ Skip the current song" }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *SkipCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	_, err := c.Player.Skip(contextOf(sc), sc.Event.GuildID)
	return reply(sc, "⏭️ Skipped the current song!", colorOrange, err)
}

type StopCommand struct{ musicCommand }

func (c *StopCommand) Name() string        { return "stop" }
func (c *StopCommand) Description() string { return "⏹️ Stop music and clear the queue" }

func (c *StopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *StopCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	err := c.Player.Stop(contextOf(sc), sc.Event.GuildID)
	return reply(sc, "⏹️ Stopped music and cleared the queue!", colorRed, err)
}

type PauseCommand struct{ musicCommand }

func (c *PauseCommand) Name() string        { return "pause" }
func (c *PauseCommand) Description() string { return "⏸️ Pause the current song" }

func (c *PauseCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *PauseCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	err := c.Player.Pause(contextOf(sc), sc.Event.GuildID)
	return reply(sc, "⏸️ Music paused!", colorOrange, err)
}

type ResumeCommand struct{ musicCommand }

func (c *ResumeCommand) Name() string        { return "resume" }
func (c *ResumeCommand) Description() string { return "▶️ Resume the paused song" }

func (c *ResumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *ResumeCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	err := c.Player.Resume(contextOf(sc), sc.Event.GuildID)
	return reply(sc, "▶️ Music resumed!", colorGreen, err)
}

type QueueCommand struct{ musicCommand }

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "📜 Show the current queue" }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *QueueCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	snap, err := c.Player.Snapshot(contextOf(sc), sc.Event.GuildID)
	if err != nil {
		return reply(sc, "", 0, err)
	}
	return RespondEmbed(sc.Session, sc.Event, QueueEmbed(snap))
}

type RemoveCommand struct{ musicCommand }

func (c *RemoveCommand) Name() string        { return "remove" }
func (c *RemoveCommand) Description() string { return "🗑️ Remove a song from queue" }

func (c *RemoveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "position",
				Description: "Position in the queue, as shown by /queue",
				Required:    true,
			},
		},
	}
}

func (c *RemoveCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	var pos int
	for _, opt := range sc.Event.ApplicationCommandData().Options {
		if opt.Name == "position" {
			pos = int(opt.IntValue())
		}
	}
	item, err := c.Player.Remove(contextOf(sc), sc.Event.GuildID, pos)
	return reply(sc, fmt.Sprintf("🗑️ Removed **%s** from queue!", item.Title), colorGreen, err)
}

type LoopCommand struct{ musicCommand }

func (c *LoopCommand) Name() string        { return "loop" }
func (c *LoopCommand) Description() string { return "🔁 Toggle loop mode" }

func (c *LoopCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *LoopCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	on, err := c.Player.ToggleLoop(contextOf(sc), sc.Event.GuildID)
	return reply(sc, loopText(on), colorGreen, err)
}

func loopText(on bool) string {
	if on {
		return "🔁 Loop mode enabled!"
	}
	return "🔁 Loop mode disabled!"
}

type LeaveCommand struct{ musicCommand }

func (c *LeaveCommand) Name() string        { return "leave" }
func (c *LeaveCommand) Description() string { return "👋 Disconnect from voice channel" }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{Name: c.Name(), Description: c.Description()}
}

func (c *LeaveCommand) Run(ctx interface{}) error {
	sc, ok := slashContext(ctx)
	if !ok {
		return nil
	}
	err := c.Player.Leave(contextOf(sc), sc.Event.GuildID)
	return reply(sc, "👋 Disconnected from voice channel and cleared queue!", colorOrange, err)
}

// MusicCommands builds the music slash commands and their control buttons.
func MusicCommands(p Player, controls *ControlsCommand) []Command {
	base := musicCommand{Player: p}
	return []Command{
		NewPlayCommand(p, controls),
		&SkipCommand{base},
		&StopCommand{base},
		&PauseCommand{base},
		&ResumeCommand{base},
		&QueueCommand{base},
		&RemoveCommand{base},
		&LoopCommand{base},
		&LeaveCommand{base},
		controls,
	}
}
