package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/config"
	"github.com/ChuckD30/lyricist/internal/database"
	commands "github.com/ChuckD30/lyricist/internal/features"
	"github.com/ChuckD30/lyricist/internal/features/library"
	"github.com/ChuckD30/lyricist/internal/features/modals"
	"github.com/ChuckD30/lyricist/internal/features/panel"
	"github.com/ChuckD30/lyricist/internal/features/status"
	"github.com/ChuckD30/lyricist/internal/session"
	"github.com/ChuckD30/lyricist/internal/voice"
)

type Bot struct {
	config   *config.Config
	services *Services
	sessions []*discordgo.Session
	manager  *session.Manager
	voice    *voice.Connections
	panel    *panel.Panel
	router   *commands.Router
	log      zerolog.Logger

	started      bool
	cancel       context.CancelFunc
	presenceStop chan struct{}
}

func New(cfg *config.Config, logger zerolog.Logger) (*Bot, error) {
	if err := cfg.ValidateDiscord(); err != nil {
		return nil, err
	}

	b := &Bot{
		config:   cfg,
		services: NewServices(cfg, logger),
		voice:    voice.NewConnections(),
		log:      logger.With().Str("component", "bot").Logger(),
	}

	b.manager = session.NewManager(b.newController)

	awaiter := modals.NewAwaiter()
	lib := library.New(b.services.Library, b.services.Catalog, b.manager, awaiter, logger)
	b.services.Bus.Subscribe(lib.Refresh)

	b.panel = panel.New(b.manager, lib, b.voice, database.NewPanelRepository(b.services.DB), logger)
	st := status.New(b.health, logger)

	b.router = commands.NewRouter(awaiter, []commands.Feature{lib, b.panel, st}, cfg.OwnerID, logger)

	sessions, err := b.openShards()
	if err != nil {
		return nil, err
	}
	b.sessions = sessions
	return b, nil
}

// newController builds the playback session of one guild. Local songs stream
// into the guild's voice connection; Spotify songs play on the configured
// Connect device.
func (b *Bot) newController(guildID string) *session.Controller {
	logger := b.log.With().Str("guild_id", guildID).Logger()
	decode := voice.FFmpeg(b.services.FFmpegPath(), logger)

	ctrl := session.NewController(session.Backends{
		Local:  b.services.LocalBackend(b.voice.Get(guildID).MediaFactory(decode, logger), logger),
		Remote: b.services.RemoteBackend(logger),
	}, b.services.SessionOptions(), logger)

	ctrl.OnChange(func(session.State) {
		b.panel.Changed(guildID)
	})
	return ctrl
}

func (b *Bot) openShards() ([]*discordgo.Session, error) {
	shardCount := b.config.ShardCount
	if shardCount < 1 {
		s, err := discordgo.New("Bot " + b.config.DiscordToken)
		if err != nil {
			return nil, err
		}

		if gw, err := s.GatewayBot(); err == nil && gw.Shards > 0 {
			shardCount = gw.Shards
		} else {
			b.log.Warn().Err(err).Msg("failed to auto-detect shard count, defaulting to 1")
			shardCount = 1
		}
	}

	sessions := make([]*discordgo.Session, 0, shardCount)
	for shard := 0; shard < shardCount; shard++ {
		s, err := discordgo.New("Bot " + b.config.DiscordToken)
		if err != nil {
			return nil, err
		}

		s.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent

		if shardCount > 1 {
			s.Identify.Shard = &[2]int{shard, shardCount}
			s.ShardCount = shardCount
		}

		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (b *Bot) health() status.Health {
	return status.Health{
		Database:       b.services.DB != nil,
		Redis:          b.services.Redis != nil,
		Catalog:        b.services.Catalog.Configured(),
		RemotePlayback: b.services.RemotePlayback(),
		Sessions:       b.manager.Len(),
	}
}

func (b *Bot) Start() error {
	if b.started || len(b.sessions) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	if err := b.services.Bus.Start(ctx); err != nil {
		b.log.Warn().Err(err).Msg("refresh subscription failed; events stay in process")
	}

	for _, s := range b.sessions {
		b.registerHandlers(s)
		b.router.AddHandlers(s)
	}

	if _, err := commands.RegisterCommands(b.sessions[0], b.config.ApplicationID, b.config.GuildID); err != nil {
		b.log.Warn().Err(err).Msg("failed to register slash commands")
	}

	for _, s := range b.sessions {
		if err := s.Open(); err != nil {
			return err
		}
	}

	b.startPresenceUpdater()
	b.started = true
	b.log.Info().Int("shards", len(b.sessions)).Msg("bot session opened")
	return nil
}

func (b *Bot) registerHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if s.State != nil && s.State.User != nil {
			b.log.Info().Str("user", s.State.User.Username).Int("shard", s.ShardID).Msg("bot ready")
		} else {
			b.log.Info().Msg("bot ready")
		}
		b.updatePresence()
	})

	s.AddHandler(func(s *discordgo.Session, g *discordgo.GuildDelete) {
		if g.Unavailable {
			return
		}
		b.log.Info().Str("guild_id", g.ID).Msg("removed from guild")
		b.panel.Forget(g.ID)
		if err := b.manager.Remove(g.ID); err != nil {
			b.log.Warn().Err(err).Str("guild_id", g.ID).Msg("failed to close guild session")
		}
		if err := b.voice.Leave(g.ID); err != nil {
			b.log.Debug().Err(err).Str("guild_id", g.ID).Msg("voice leave failed")
		}
	})
}

func (b *Bot) Stop() error {
	if !b.started {
		return nil
	}

	b.started = false
	b.stopPresenceUpdater()
	b.panel.Close()
	b.manager.Close()
	b.voice.Close()
	if b.cancel != nil {
		b.cancel()
	}

	for _, s := range b.sessions {
		if err := s.Close(); err != nil {
			return err
		}
	}

	b.services.Close()
	b.log.Info().Int("shards", len(b.sessions)).Msg("bot session closed")
	return nil
}
