package command

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/metrics"
	"github.com/keshon/musicbot/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrappedCommand) Component(ctx *ComponentInteractionContext) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return invoke(w.Command, ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func (w *wrappedCommand) Unwrap() Command { return w.Command }

// invoke routes ctx to Run or Component depending on its type.
func invoke(cmd Command, ctx interface{}) error {
	if v, ok := ctx.(*ComponentInteractionContext); ok {
		if ch, ok := cmd.(ComponentInteractionHandler); ok {
			return ch.Component(v)
		}
		return nil
	}
	return cmd.Run(ctx)
}

// innermost strips middleware wrappers.
func innermost(cmd Command) Command {
	for {
		w, ok := cmd.(interface{ Unwrap() Command })
		if !ok {
			return cmd
		}
		cmd = w.Unwrap()
	}
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

func eventOf(ctx interface{}) (*discordgo.Session, *discordgo.InteractionCreate, *storage.Storage) {
	switch v := ctx.(type) {
	case *SlashInteractionContext:
		return v.Session, v.Event, v.Storage
	case *ComponentInteractionContext:
		return v.Session, v.Event, v.Storage
	}
	return nil, nil, nil
}

// WithGuildOnly drops interactions that did not come from a guild.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if _, e, _ := eventOf(ctx); e != nil && e.GuildID == "" {
					return nil
				}
				return invoke(cmd, ctx)
			},
		}
	}
}

// WithCommandLogger runs the command, then records it in the guild's
// command history and counts it.
func WithCommandLogger(log zerolog.Logger) Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				err := invoke(cmd, ctx)

				s, e, store := eventOf(ctx)
				if e == nil {
					return err
				}
				name, param := commandCall(cmd, e)
				metrics.Commands.WithLabelValues(name).Inc()

				ev := log.Debug()
				if err != nil {
					ev = log.Warn().Err(err)
				}
				ev.Str("guild", e.GuildID).Str("command", name).Msg("command handled")

				if store == nil {
					return err
				}
				rec := storage.CommandHistoryRecord{
					ChannelID: e.ChannelID,
					GuildName: guildName(s, e.GuildID),
					Command:   name,
					Param:     param,
					Datetime:  time.Now(),
				}
				if u := interactionUser(e); u != nil {
					rec.UserID, rec.Username = u.ID, u.Username
				}
				if lerr := store.AppendCommandToHistory(e.GuildID, rec); lerr != nil {
					log.Warn().Err(lerr).Str("command", name).Msg("failed to log command")
				}
				return err
			},
		}
	}
}

// commandCall names what was invoked: the slash command with its options,
// or the component custom ID.
func commandCall(cmd Command, e *discordgo.InteractionCreate) (string, string) {
	if e.Type == discordgo.InteractionMessageComponent {
		return e.MessageComponentData().CustomID, ""
	}
	if e.Type != discordgo.InteractionApplicationCommand {
		return cmd.Name(), ""
	}
	var params []string
	for _, opt := range e.ApplicationCommandData().Options {
		params = append(params, opt.Name+"="+optionString(opt))
	}
	return cmd.Name(), strings.Join(params, " ")
}

func optionString(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch opt.Type {
	case discordgo.ApplicationCommandOptionInteger:
		return strconv.FormatInt(opt.IntValue(), 10)
	case discordgo.ApplicationCommandOptionBoolean:
		if opt.BoolValue() {
			return "true"
		}
		return "false"
	}
	if s, ok := opt.Value.(string); ok {
		return s
	}
	return ""
}

func guildName(s *discordgo.Session, guildID string) string {
	if s == nil || s.State == nil {
		return ""
	}
	g, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return g.Name
}

// UserLimiter hands out a token bucket per user.
type UserLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewUserLimiter allows perSecond commands per user with the given burst.
// A zero rate disables limiting.
func NewUserLimiter(perSecond float64, burst int) *UserLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &UserLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *UserLimiter) Allow(userID string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

const slowDownMessage = "⏳ Slow down, try again in a moment."

// WithRateLimit rejects interactions from users over their budget.
func WithRateLimit(l *UserLimiter) Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				s, e, _ := eventOf(ctx)
				if u := interactionUser(e); u != nil && !l.Allow(u.ID) {
					if s == nil {
						return nil
					}
					return RespondEphemeral(s, e, slowDownMessage)
				}
				return invoke(cmd, ctx)
			},
		}
	}
}
