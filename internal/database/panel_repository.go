package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const panelRepoTimeout = 2 * time.Second

// PanelEntry locates the player panel message of a guild.
type PanelEntry struct {
	GuildID   string
	ChannelID string
	MessageID string
}

type PanelRepository struct {
	db *sql.DB
}

func NewPanelRepository(conn *sql.DB) *PanelRepository {
	return &PanelRepository{db: conn}
}

func (r *PanelRepository) Upsert(ctx context.Context, entry PanelEntry) error {
	if r == nil || r.db == nil {
		return nil
	}
	if entry.GuildID == "" || entry.ChannelID == "" || entry.MessageID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO panel_entries (guild_id, channel_id, message_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (guild_id)
		DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			message_id = EXCLUDED.message_id,
			updated_at = NOW();
	`

	_, err := r.db.ExecContext(ctx, query, entry.GuildID, entry.ChannelID, entry.MessageID)
	return err
}

func (r *PanelRepository) Get(ctx context.Context, guildID string) (PanelEntry, bool, error) {
	if r == nil || r.db == nil || guildID == "" {
		return PanelEntry{}, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	const query = `
		SELECT channel_id, message_id
		FROM panel_entries
		WHERE guild_id = $1
	`

	entry := PanelEntry{GuildID: guildID}
	err := r.db.QueryRowContext(ctx, query, guildID).Scan(&entry.ChannelID, &entry.MessageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PanelEntry{}, false, nil
		}
		return PanelEntry{}, false, err
	}

	return entry, true, nil
}

func (r *PanelRepository) Delete(ctx context.Context, guildID string) error {
	if r == nil || r.db == nil || guildID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, panelRepoTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `DELETE FROM panel_entries WHERE guild_id = $1`, guildID)
	return err
}
