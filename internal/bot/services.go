package bot

import (
	"context"
	"database/sql"
	"errors"

	redislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ChuckD30/lyricist/config"
	"github.com/ChuckD30/lyricist/internal/catalog"
	"github.com/ChuckD30/lyricist/internal/database"
	"github.com/ChuckD30/lyricist/internal/lyricist"
	"github.com/ChuckD30/lyricist/internal/notify"
	"github.com/ChuckD30/lyricist/internal/playback"
	"github.com/ChuckD30/lyricist/internal/redis"
	"github.com/ChuckD30/lyricist/internal/session"
	"github.com/ChuckD30/lyricist/internal/spotifyconnect"
)

// Services holds the storage, catalog and playback dependencies shared by
// the bot and the CLI. Each is optional; missing configuration degrades the
// matching feature instead of failing startup.
type Services struct {
	DB      *sql.DB
	Redis   *redislib.Client
	Library *lyricist.Service
	Catalog *catalog.Client
	Bus     *notify.Bus

	spotify *config.SpotifyConfig
	player  *config.PlayerConfig
	tokens  oauth2.TokenSource
	devices *spotifyconnect.Client
	log     zerolog.Logger
}

func NewServices(cfg *config.Config, logger zerolog.Logger) *Services {
	svcs := &Services{
		spotify: cfg.GetSpotifyConfig(),
		player:  cfg.GetPlayerConfig(),
		log:     logger,
	}

	if dbCfg := cfg.GetDBConfig(); dbCfg.Enabled {
		err := database.Initialize(&database.Config{
			Host:     dbCfg.Host,
			Port:     dbCfg.Port,
			User:     dbCfg.User,
			Password: dbCfg.Password,
			DBName:   dbCfg.Name,
			SSLMode:  dbCfg.SSLMode,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("database initialization failed")
		} else {
			svcs.DB = database.GetDB()
		}
	} else {
		logger.Warn().Msg("database not configured; lyricists cannot be stored")
	}

	redisCfg := cfg.GetRedisConfig()
	client, err := redis.Init(redis.Config{
		Host:     redisCfg.Host,
		Port:     redisCfg.Port,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	switch {
	case errors.Is(err, redis.ErrNotConfigured):
		logger.Info().Msg("redis not configured; caching and refresh events stay in process")
	case err != nil:
		logger.Warn().Err(err).Msg("redis initialization failed")
	default:
		svcs.Redis = client
	}

	svcs.Bus = notify.NewBus(svcs.Redis, logger.With().Str("component", "notify").Logger())

	var repo lyricist.Repository
	if svcs.DB != nil {
		repo = database.NewLyricistRepository(svcs.DB)
	}
	svcs.Library = lyricist.NewService(repo, svcs.Bus, logger.With().Str("component", "lyricist").Logger())

	svcs.Catalog = catalog.NewClient(svcs.spotify.ClientID, svcs.spotify.ClientSecret, nil, logger.With().Str("component", "catalog").Logger()).
		WithCache(catalog.NewSearchCache(svcs.Redis, cfg.SearchCacheDuration()))
	if !svcs.Catalog.Configured() {
		logger.Warn().Msg("spotify client credentials missing; search returns placeholder results")
	}

	if svcs.spotify.HasUserCredentials() {
		svcs.tokens = spotifyconnect.UserTokenSource(context.Background(), svcs.spotify.ClientID, svcs.spotify.ClientSecret, svcs.spotify.RefreshToken)
		svcs.devices = spotifyconnect.NewClient(context.Background(), svcs.tokens)
	} else {
		logger.Warn().Msg("spotify refresh token missing; remote playback unavailable")
	}

	return svcs
}

// RemotePlayback reports whether a Spotify device can be controlled.
func (s *Services) RemotePlayback() bool {
	return s.devices != nil
}

// RemoteBackend returns a factory for Spotify Connect backends. Without user
// credentials the backends are inert and report unavailable.
func (s *Services) RemoteBackend(logger zerolog.Logger) session.BackendFactory {
	return func(hooks playback.Hooks) playback.Backend {
		var api playback.DeviceAPI
		if s.devices != nil {
			api = s.devices
		}
		b := playback.NewRemoteBackend(api, s.tokens, playback.RemoteConfig{
			DeviceName:          s.spotify.DeviceName,
			PollInterval:        s.player.PollInterval,
			DeviceCheckInterval: s.player.DeviceCheckInterval,
		}, s.player.DefaultVolume, hooks, logger)
		b.Connect()
		return b
	}
}

// LocalBackend returns a factory for local backends that open media with open.
func (s *Services) LocalBackend(open playback.MediaFactory, logger zerolog.Logger) session.BackendFactory {
	return func(hooks playback.Hooks) playback.Backend {
		return playback.NewLocalBackend(open, s.player.DefaultVolume, hooks, logger)
	}
}

func (s *Services) SessionOptions() session.Options {
	return session.Options{
		FallbackAudioURL: s.player.FallbackAudioURL,
		Volume:           s.player.DefaultVolume,
	}
}

func (s *Services) FFmpegPath() string {
	return s.player.FFmpegPath
}

func (s *Services) Close() {
	s.Bus.Close()

	if err := database.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close database")
	}
	if err := redis.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close redis")
	}
}
