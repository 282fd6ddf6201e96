// Package panel keeps a persistent player message per guild in sync with the
// guild's playback session.
package panel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/internal/database"
	"github.com/ChuckD30/lyricist/internal/features/library"
	"github.com/ChuckD30/lyricist/internal/session"
	"github.com/ChuckD30/lyricist/internal/voice"
)

const DefaultChannelName = "🎤-lyricist"

const (
	updateTickerInterval = 2 * time.Second
	minUpdateInterval    = time.Second
)

var (
	ErrNoPanel    = errors.New("panel message not found")
	ErrNoDiscord  = errors.New("no discord session bound to guild")
	errBadRequest = errors.New("invalid panel update parameters")
)

type renderState struct {
	hash    string
	updated time.Time
}

// Panel renders and refreshes the player panel of every guild.
type Panel struct {
	sessions *session.Manager
	library  *library.Handlers
	voice    *voice.Connections
	repo     *database.PanelRepository
	log      zerolog.Logger

	mu       sync.Mutex
	entries  map[string]database.PanelEntry
	discord  map[string]*discordgo.Session
	renders  map[string]renderState
	updaters map[string]context.CancelFunc
}

func New(sessions *session.Manager, lib *library.Handlers, conns *voice.Connections, repo *database.PanelRepository, logger zerolog.Logger) *Panel {
	return &Panel{
		sessions: sessions,
		library:  lib,
		voice:    conns,
		repo:     repo,
		log:      logger.With().Str("feature", "panel").Logger(),
		entries:  make(map[string]database.PanelEntry),
		discord:  make(map[string]*discordgo.Session),
		renders:  make(map[string]renderState),
		updaters: make(map[string]context.CancelFunc),
	}
}

// Bind remembers which shard serves a guild so refreshes triggered outside an
// interaction can edit its panel.
func (p *Panel) Bind(s *discordgo.Session, guildID string) {
	if s == nil || guildID == "" {
		return
	}
	p.mu.Lock()
	p.discord[guildID] = s
	p.mu.Unlock()
}

// Changed is the session change hook. It refreshes the panel off the
// caller's goroutine.
func (p *Panel) Changed(guildID string) {
	go func() {
		if err := p.Update(guildID); err != nil && !errors.Is(err, ErrNoPanel) && !errors.Is(err, ErrNoDiscord) {
			p.log.Warn().Err(err).Str("guild_id", guildID).Msg("panel update failed")
		}
	}()
}

func (p *Panel) entry(guildID string) (database.PanelEntry, bool, error) {
	p.mu.Lock()
	entry, ok := p.entries[guildID]
	p.mu.Unlock()
	if ok {
		return entry, true, nil
	}

	entry, ok, err := p.repo.Get(context.Background(), guildID)
	if err != nil {
		return database.PanelEntry{}, false, fmt.Errorf("load panel entry: %w", err)
	}
	if !ok {
		return database.PanelEntry{}, false, nil
	}

	p.mu.Lock()
	p.entries[guildID] = entry
	p.mu.Unlock()
	return entry, true, nil
}

func (p *Panel) setEntry(entry database.PanelEntry) {
	p.mu.Lock()
	p.entries[entry.GuildID] = entry
	p.mu.Unlock()

	if err := p.repo.Upsert(context.Background(), entry); err != nil {
		p.log.Warn().Err(err).Str("guild_id", entry.GuildID).Msg("failed to save panel entry")
	}
}

// Forget drops everything the panel holds for a guild.
func (p *Panel) Forget(guildID string) {
	p.stopUpdater(guildID)

	p.mu.Lock()
	delete(p.entries, guildID)
	delete(p.renders, guildID)
	delete(p.discord, guildID)
	p.mu.Unlock()

	if err := p.repo.Delete(context.Background(), guildID); err != nil {
		p.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to delete panel entry")
	}
}

func (p *Panel) Components(guildID string) []discordgo.MessageComponent {
	return BuildComponents(Snapshot(p.sessions.Get(guildID).State()))
}

// Update edits the guild's panel message to match its session.
func (p *Panel) Update(guildID string) error {
	if guildID == "" {
		return errBadRequest
	}

	p.mu.Lock()
	s := p.discord[guildID]
	p.mu.Unlock()
	if s == nil {
		return ErrNoDiscord
	}

	entry, ok, err := p.entry(guildID)
	if err != nil {
		return err
	}
	if !ok || entry.ChannelID == "" || entry.MessageID == "" {
		return ErrNoPanel
	}

	snap := Snapshot(p.sessions.Get(guildID).State())
	if snap.Playing {
		p.startUpdater(guildID)
	} else {
		p.stopUpdater(guildID)
	}

	components := BuildComponents(snap)
	_, err = s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:         entry.MessageID,
		Channel:    entry.ChannelID,
		Components: &components,
		Flags:      discordgo.MessageFlagsIsComponentsV2,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.renders[guildID] = renderState{hash: snap.Hash(), updated: time.Now()}
	p.mu.Unlock()
	return nil
}

func (p *Panel) shouldAutoUpdate(guildID string, snap PlayerSnapshot) bool {
	p.mu.Lock()
	prev, ok := p.renders[guildID]
	p.mu.Unlock()

	if !ok {
		return true
	}
	if time.Since(prev.updated) < minUpdateInterval {
		return false
	}
	return prev.hash != snap.Hash()
}

func (p *Panel) startUpdater(guildID string) {
	p.mu.Lock()
	if _, exists := p.updaters[guildID]; exists {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.updaters[guildID] = cancel
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(updateTickerInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := Snapshot(p.sessions.Get(guildID).State())
				if !snap.Playing {
					p.stopUpdater(guildID)
					_ = p.Update(guildID)
					return
				}
				if !p.shouldAutoUpdate(guildID, snap) {
					continue
				}
				if err := p.Update(guildID); err != nil {
					p.log.Debug().Err(err).Str("guild_id", guildID).Msg("panel auto-update failed")
				}
			}
		}
	}()
}

func (p *Panel) stopUpdater(guildID string) {
	p.mu.Lock()
	cancel, ok := p.updaters[guildID]
	delete(p.updaters, guildID)
	p.mu.Unlock()

	if ok {
		cancel()
	}
}

// Close stops every auto-updater.
func (p *Panel) Close() {
	p.mu.Lock()
	updaters := p.updaters
	p.updaters = make(map[string]context.CancelFunc)
	p.mu.Unlock()

	for _, cancel := range updaters {
		cancel()
	}
}
