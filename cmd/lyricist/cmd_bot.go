package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ChuckD30/lyricist/internal/bot"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Discord bot",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if err := cfg.ValidateDiscord(); err != nil {
		return fmt.Errorf("%w (set DISCORD_TOKEN and DISCORD_APPLICATION_ID)", err)
	}

	mode := "production (global commands)"
	if cfg.IsDevelopment() {
		mode = "development (guild " + cfg.GuildID + ")"
	}
	logger.Info().
		Str("mode", mode).
		Str("log_level", cfg.LogLevel).
		Int("default_volume", cfg.DefaultVolume).
		Int("shards", cfg.ShardCount).
		Bool("spotify_search", cfg.GetSpotifyConfig().HasClientCredentials()).
		Bool("spotify_playback", cfg.GetSpotifyConfig().HasUserCredentials()).
		Msg("configuration loaded")

	b, err := bot.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	if err := b.Start(); err != nil {
		return fmt.Errorf("start bot: %w", err)
	}
	logger.Info().Msg("bot is running, press CTRL+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	return b.Stop()
}
