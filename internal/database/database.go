package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

var (
	db   *sql.DB
	once sync.Once
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (cfg *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.DBName, cfg.SSLMode,
	)

	if cfg.Password != "" {
		connStr += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return connStr
}

// Initialize opens the shared pool, checks connectivity and applies the
// schema once per process.
func Initialize(cfg *Config) error {
	var initError error

	once.Do(func() {
		conn, err := sql.Open("postgres", cfg.ConnectionString())
		if err != nil {
			initError = fmt.Errorf("failed to open database: %w", err)
			return
		}

		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
		conn.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := conn.PingContext(ctx); err != nil {
			_ = conn.Close()
			initError = fmt.Errorf("failed to ping database: %w", err)
			return
		}

		if err := Migrate(ctx, conn); err != nil {
			_ = conn.Close()
			initError = fmt.Errorf("failed to run migrations: %w", err)
			return
		}

		db = conn
		log.Info().Str("host", cfg.Host).Str("database", cfg.DBName).Msg("database connection established")
	})

	return initError
}

var migrations = []string{
	`
	CREATE TABLE IF NOT EXISTS lyricists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL CHECK (name <> ''),
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		lyricist_id TEXT NOT NULL REFERENCES lyricists(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		audio_url TEXT NOT NULL DEFAULT '',
		cover_url TEXT NOT NULL DEFAULT '',
		spotify_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`,
	`CREATE INDEX IF NOT EXISTS songs_lyricist_id_idx ON songs (lyricist_id);`,
	`
	CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		song_id TEXT NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
		text TEXT NOT NULL DEFAULT '',
		start_time DOUBLE PRECISION NOT NULL,
		end_time DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_time >= 0 AND start_time < end_time)
	);
	`,
	`CREATE INDEX IF NOT EXISTS segments_song_id_idx ON segments (song_id);`,
	`
	CREATE TABLE IF NOT EXISTS panel_entries (
		guild_id TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`,
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, conn *sql.DB) error {
	for _, m := range migrations {
		if _, err := conn.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("failed to execute migration: %w\nQuery: %s", err, m)
		}
	}
	log.Debug().Int("statements", len(migrations)).Msg("database migrations completed")
	return nil
}

func GetDB() *sql.DB {
	return db
}

func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
