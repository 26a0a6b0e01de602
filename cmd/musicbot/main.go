package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/keshon/musicbot/internal/config"
	"github.com/keshon/musicbot/internal/discord"
	"github.com/keshon/musicbot/internal/logger"
	"github.com/keshon/musicbot/internal/metrics"
	"github.com/keshon/musicbot/internal/music/resolver"
	"github.com/keshon/musicbot/internal/storage"
	v "github.com/keshon/musicbot/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type rootFlags struct {
	envFile    string
	logLevel   string
	ffmpegPath string
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	root := &cobra.Command{
		Use:           v.AppName,
		Short:         "Discord music bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file read before the environment")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&flags.ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary used for transcoding")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Connect to Discord and serve commands (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runBot(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), v.String())
			},
		},
		newHistoryCmd(&flags),
	)
	return root
}

func setup(flags rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.envFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	return cfg, logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}), nil
}

func runBot(parent context.Context, flags rootFlags) error {
	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}
	log.Info().Str("version", v.String()).Msg("starting bot")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Error().Err(err).Msg("failed to open storage")
		return err
	}
	defer store.Close()

	sources := []resolver.Source{resolver.NewYTDLP(cfg.YTDLPProxy)}
	if !cfg.DisableYouTubeFallback {
		sources = append(sources, resolver.NewYouTube())
	}

	bot, err := discord.New(cfg, store, resolver.NewChain(log, sources...), discord.Options{
		FFmpegPath: flags.ffmpegPath,
		Logger:     log,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create bot")
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(ctx) })
	g.Go(func() error { return bot.Sweeper().Run(ctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, log) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("discord bot error")
		return err
	}
	log.Info().Msg("discord bot exited cleanly")
	return nil
}

func newHistoryCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history <guild-id>",
		Short: "Print the last commands used in a guild",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadStorage(flags.envFile)
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.StoragePath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.FetchCommandHistory(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No commands recorded.")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(out, "%s  %-12s /%s %s\n", r.Datetime.Format("2006-01-02 15:04:05"), r.Username, r.Command, r.Param)
			}
			return nil
		},
	}
}
