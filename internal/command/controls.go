package command

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const (
	controlsName = "music"

	controlPause  = controlsName + ":pause"
	controlResume = controlsName + ":resume"
	controlSkip   = controlsName + ":skip"
	controlLeave  = controlsName + ":leave"

	DefaultControlsTimeout = 5 * time.Minute
)

// ControlRow is the button row attached to now-playing messages.
func ControlRow(disabled bool) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.Button{Label: "⏸️ Pause", Style: discordgo.PrimaryButton, CustomID: controlPause, Disabled: disabled},
		discordgo.Button{Label: "▶️ Resume", Style: discordgo.SuccessButton, CustomID: controlResume, Disabled: disabled},
		discordgo.Button{Label: "⏭️ Skip", Style: discordgo.SecondaryButton, CustomID: controlSkip, Disabled: disabled},
		discordgo.Button{Label: "👋 Leave", Style: discordgo.DangerButton, CustomID: controlLeave, Disabled: disabled},
	}}
}

// ControlsCommand answers the now-playing buttons. It has no slash command.
type ControlsCommand struct {
	Player  Player
	Timeout time.Duration
	Log     zerolog.Logger
}

func (c *ControlsCommand) Name() string        { return controlsName }
func (c *ControlsCommand) Description() string { return "Now-playing control buttons" }
func (c *ControlsCommand) Aliases() []string   { return []string{} }
func (c *ControlsCommand) Group() string       { return "music" }
func (c *ControlsCommand) Category() string    { return "🎵 Music" }

func (c *ControlsCommand) Run(ctx interface{}) error { return nil }

func (c *ControlsCommand) Component(ctx *ComponentInteractionContext) error {
	e := ctx.Event
	reply, err := c.press(contextOf(ctx), e.GuildID, e.MessageComponentData().CustomID)
	if err != nil {
		reply = ErrorText(err)
	}
	if reply == "" {
		return nil
	}
	return RespondEphemeral(ctx.Session, e, reply)
}

// press runs the action behind a button and returns the confirmation.
func (c *ControlsCommand) press(ctx context.Context, guildID, customID string) (string, error) {
	switch customID {
	case controlPause:
		return "⏸️ Music paused!", c.Player.Pause(ctx, guildID)
	case controlResume:
		return "▶️ Music resumed!", c.Player.Resume(ctx, guildID)
	case controlSkip:
		_, err := c.Player.Skip(ctx, guildID)
		return "⏭️ Skipped the current song!", err
	case controlLeave:
		return "👋 Disconnected and cleared queue!", c.Player.Leave(ctx, guildID)
	}
	c.Log.Debug().Str("custom_id", customID).Msg("unknown control")
	return "", nil
}

// Expire disables the buttons of msg once the timeout passes.
func (c *ControlsCommand) Expire(s *discordgo.Session, msg *discordgo.Message) {
	if msg == nil {
		return
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultControlsTimeout
	}
	channelID, messageID := msg.ChannelID, msg.ID
	time.AfterFunc(timeout, func() {
		components := []discordgo.MessageComponent{ControlRow(true)}
		_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
			Channel:    channelID,
			ID:         messageID,
			Components: &components,
		})
		if err != nil && !isUnknownMessage(err) {
			c.Log.Warn().Err(err).Str("message", messageID).Msg("failed to disable controls")
		}
	})
}

func isUnknownMessage(err error) bool {
	var rerr *discordgo.RESTError
	return errors.As(err, &rerr) && rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeUnknownMessage
}
