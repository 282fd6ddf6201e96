package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultFallbackAudioURL  = "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"
	DefaultSpotifyDeviceName = "Lyricist Web Player"
)

type Config struct {
	DiscordToken  string
	ApplicationID string

	GuildID string
	OwnerID string

	ShardCount int

	LogLevel      string
	DefaultVolume int

	FFmpegPath       string
	FallbackAudioURL string
	MaxDownloadMB    int

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRefreshToken string
	SpotifyDeviceName   string

	PollIntervalMS        int
	DeviceCheckIntervalMS int
	SearchCacheTTL        int
}

// Load reads the environment (and .env when present) without validating the
// Discord settings, so CLI subcommands can run with a partial configuration.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken:  os.Getenv("DISCORD_TOKEN"),
		ApplicationID: os.Getenv("DISCORD_APPLICATION_ID"),

		GuildID: os.Getenv("DISCORD_GUILD_ID"),
		OwnerID: os.Getenv("DISCORD_OWNER_ID"),

		ShardCount: getEnvAsIntWithDefault("SHARD_COUNT", 0),

		LogLevel:      getEnvWithDefault("LOG_LEVEL", "info"),
		DefaultVolume: getEnvAsIntWithDefault("DEFAULT_VOLUME", 50),

		FFmpegPath:       getEnvWithDefault("FFMPEG_PATH", "ffmpeg"),
		FallbackAudioURL: getEnvWithDefault("FALLBACK_AUDIO_URL", DefaultFallbackAudioURL),
		MaxDownloadMB:    getEnvAsIntWithDefault("MAX_DOWNLOAD_MB", 50),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvAsIntWithDefault("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvAsIntWithDefault("REDIS_PORT", 6379),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntWithDefault("REDIS_DB", 0),

		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRefreshToken: os.Getenv("SPOTIFY_REFRESH_TOKEN"),
		SpotifyDeviceName:   getEnvWithDefault("SPOTIFY_DEVICE_NAME", DefaultSpotifyDeviceName),

		PollIntervalMS:        getEnvAsIntWithDefault("POLL_INTERVAL_MS", 100),
		DeviceCheckIntervalMS: getEnvAsIntWithDefault("DEVICE_CHECK_INTERVAL_MS", 2000),
		SearchCacheTTL:        getEnvAsIntWithDefault("SEARCH_CACHE_TTL", 600),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return errors.New("DEFAULT_VOLUME must be between 0 and 100")
	}

	if c.PollIntervalMS < 10 {
		return errors.New("POLL_INTERVAL_MS must be at least 10")
	}

	if c.DeviceCheckIntervalMS < 100 {
		return errors.New("DEVICE_CHECK_INTERVAL_MS must be at least 100")
	}

	if c.MaxDownloadMB < 1 {
		return errors.New("MAX_DOWNLOAD_MB must be at least 1")
	}

	if c.SearchCacheTTL < 0 {
		return errors.New("SEARCH_CACHE_TTL must not be negative")
	}

	return nil
}

// ValidateDiscord checks the settings only the bot needs.
func (c *Config) ValidateDiscord() error {
	if c.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN is required")
	}

	if c.ApplicationID == "" {
		return errors.New("DISCORD_APPLICATION_ID is required")
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.GuildID != ""
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	Enabled  bool
}

func (c *Config) GetDBConfig() *DBConfig {
	return &DBConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Enabled:  c.DBHost != "" && c.DBName != "",
	}
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

func (c *Config) GetRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		Enabled:  c.RedisHost != "",
	}
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	DeviceName   string
}

// HasClientCredentials reports whether catalog search can reach the Web API.
func (s *SpotifyConfig) HasClientCredentials() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// HasUserCredentials reports whether remote device playback can be authorised.
func (s *SpotifyConfig) HasUserCredentials() bool {
	return s.HasClientCredentials() && s.RefreshToken != ""
}

func (c *Config) GetSpotifyConfig() *SpotifyConfig {
	return &SpotifyConfig{
		ClientID:     c.SpotifyClientID,
		ClientSecret: c.SpotifyClientSecret,
		RefreshToken: c.SpotifyRefreshToken,
		DeviceName:   c.SpotifyDeviceName,
	}
}

type PlayerConfig struct {
	FFmpegPath          string
	FallbackAudioURL    string
	MaxDownloadBytes    int64
	DefaultVolume       float64
	PollInterval        time.Duration
	DeviceCheckInterval time.Duration
}

func (c *Config) GetPlayerConfig() *PlayerConfig {
	return &PlayerConfig{
		FFmpegPath:          c.FFmpegPath,
		FallbackAudioURL:    c.FallbackAudioURL,
		MaxDownloadBytes:    int64(c.MaxDownloadMB) << 20,
		DefaultVolume:       float64(c.DefaultVolume) / 100,
		PollInterval:        time.Duration(c.PollIntervalMS) * time.Millisecond,
		DeviceCheckInterval: time.Duration(c.DeviceCheckIntervalMS) * time.Millisecond,
	}
}

func (c *Config) SearchCacheDuration() time.Duration {
	return time.Duration(c.SearchCacheTTL) * time.Second
}
