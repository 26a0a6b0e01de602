package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	DiscordToken           string        `env:"DISCORD_TOKEN,required,notEmpty"`
	StoragePath            string        `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogLevel               string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile                string        `env:"LOG_FILE"`
	ResolveTimeout         time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"30s"`
	IdleSweepInterval      time.Duration `env:"IDLE_SWEEP_INTERVAL" envDefault:"2m"`
	EmptyChannelGrace      time.Duration `env:"EMPTY_CHANNEL_GRACE" envDefault:"30s"`
	ControlsTimeout        time.Duration `env:"CONTROLS_TIMEOUT" envDefault:"5m"`
	GuildBlacklist         []string      `env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands      bool          `env:"INIT_SLASH_COMMANDS" envDefault:"true"`
	MetricsAddr            string        `env:"METRICS_ADDR"`
	YTDLPProxy             string        `env:"YTDLP_PROXY"`
	CommandRate            float64       `env:"COMMAND_RATE" envDefault:"1"`
	CommandBurst           int           `env:"COMMAND_BURST" envDefault:"3"`
	EmbedColor             int           `env:"EMBED_COLOR" envDefault:"3447003"`
	DisableYouTubeFallback bool          `env:"DISABLE_YOUTUBE_FALLBACK"`
}

// StorageConfig is all that offline commands read; no Discord token needed.
type StorageConfig struct {
	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
}

// Load reads envFile (if it exists) and then parses the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	return Parse()
}

// LoadStorage is Load for commands that only touch the local datastore.
func LoadStorage(envFile string) (*StorageConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	var cfg StorageConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.ResolveTimeout <= 0:
		return errors.New("RESOLVE_TIMEOUT must be positive")
	case c.IdleSweepInterval <= 0:
		return errors.New("IDLE_SWEEP_INTERVAL must be positive")
	case c.EmptyChannelGrace < 0:
		return errors.New("EMPTY_CHANNEL_GRACE must not be negative")
	case c.CommandRate < 0:
		return errors.New("COMMAND_RATE must not be negative")
	}
	return nil
}

// IsBlacklisted reports whether the bot should refuse to serve guildID.
func (c *Config) IsBlacklisted(guildID string) bool {
	for _, id := range c.GuildBlacklist {
		if id == guildID {
			return true
		}
	}
	return false
}
