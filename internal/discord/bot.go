// Package discord connects the player to the Discord gateway: it owns the
// session, dispatches interactions to commands and feeds voice state changes
// to the idle sweeper.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/musicbot/internal/command"
	"github.com/keshon/musicbot/internal/config"
	"github.com/keshon/musicbot/internal/music/player"
	"github.com/keshon/musicbot/internal/music/queue"
	"github.com/keshon/musicbot/internal/music/voice"
	"github.com/keshon/musicbot/internal/storage"
	"github.com/keshon/musicbot/pkg/retrylimit"
	"github.com/rs/zerolog"
)

// Bot is a Discord bot
type Bot struct {
	cfg      *config.Config
	dg       *discordgo.Session
	storage  *storage.Storage
	voice    *voice.Manager
	player   *player.Controller
	sweeper  *player.IdleSweeper
	commands *command.Registry
	controls *command.ControlsCommand
	limiter  *retrylimit.AdaptiveLimiter
	log      zerolog.Logger

	mu sync.RWMutex
	// ctx is the Run context, handed to commands.
	ctx context.Context
	// textChannels remembers where each guild last used a music command.
	textChannels map[string]string
}

type Options struct {
	FFmpegPath string
	Logger     zerolog.Logger
}

// New wires the bot without connecting to Discord.
func New(cfg *config.Config, store *storage.Storage, res player.MediaResolver, opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMembers

	b := &Bot{
		cfg:          cfg,
		dg:           dg,
		storage:      store,
		commands:     command.NewRegistry(),
		limiter:      retrylimit.NewAdaptiveLimiter(5, 1, 20),
		log:          opts.Logger.With().Str("component", "discord").Logger(),
		ctx:          context.Background(),
		textChannels: make(map[string]string),
	}

	command.EmbedColor = cfg.EmbedColor

	b.voice = voice.NewManager(dg, voice.Options{FFmpegPath: opts.FFmpegPath, Logger: opts.Logger})
	b.player = player.NewController(b.voice, res, queue.NewRegistry(), player.Options{
		ResolveTimeout: cfg.ResolveTimeout,
		Logger:         opts.Logger,
		OnTrackStart:   b.announceTrack,
	})
	b.sweeper = player.NewIdleSweeper(b.player, b.voice, player.SweeperOptions{
		Interval: cfg.IdleSweepInterval,
		Grace:    cfg.EmptyChannelGrace,
		Logger:   opts.Logger,
	})
	b.controls = &command.ControlsCommand{
		Player:  b.player,
		Timeout: cfg.ControlsTimeout,
		Log:     b.log,
	}
	b.registerAll()

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onVoiceStateUpdate)
	return b, nil
}

// Sweeper is run next to the bot by the caller.
func (b *Bot) Sweeper() *player.IdleSweeper { return b.sweeper }

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, cleaning up")

	b.player.Close()
	b.voice.Shutdown()
	if err := b.dg.Close(); err != nil {
		b.log.Warn().Err(err).Msg("failed to close session")
	}
	return nil
}

func (b *Bot) runContext() context.Context {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx
}

// registerAll builds the command set and wraps it in middlewares.
func (b *Bot) registerAll() {
	limiter := command.NewUserLimiter(b.cfg.CommandRate, b.cfg.CommandBurst)
	wrap := func(cmd command.Command) command.Command {
		return command.ApplyMiddlewares(cmd,
			command.WithGuildOnly(),
			command.WithRateLimit(limiter),
			command.WithCommandLogger(b.log),
		)
	}

	for _, cmd := range command.MusicCommands(b.player, b.controls) {
		b.commands.Register(wrap(cmd))
	}
	b.commands.Register(wrap(&command.HelpCommand{Registry: b.commands}))
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("discord bot is running")
}

// onGuildCreate fires for every guild on connect and when the bot joins one.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log := b.log.With().Str("guild", g.ID).Str("name", g.Name).Logger()

	if b.cfg.IsBlacklisted(g.ID) {
		log.Info().Msg("leaving blacklisted guild")
		if err := s.GuildLeave(g.ID); err != nil {
			log.Error().Err(err).Msg("failed to leave guild")
		}
		return
	}

	if !b.cfg.InitSlashCommands {
		log.Debug().Msg("registering slash commands skipped")
		return
	}
	go func() {
		if err := b.registerCommands(b.runContext(), g.ID); err != nil {
			log.Error().Err(err).Msg("error registering slash commands")
		}
	}()
}

func (b *Bot) rememberTextChannel(guildID, channelID string) {
	if guildID == "" || channelID == "" {
		return
	}
	b.mu.Lock()
	b.textChannels[guildID] = channelID
	b.mu.Unlock()
}

func (b *Bot) textChannel(guildID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.textChannels[guildID]
	return ch, ok
}
