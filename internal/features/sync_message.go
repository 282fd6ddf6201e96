package commands

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const syncTrigger = "!sync"

type registerFunc func(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error)

// SyncHandler lets the bot owner push the command list to one guild from a
// chat message, without waiting for global propagation.
type SyncHandler struct {
	ownerID  string
	register registerFunc
	log      zerolog.Logger
}

func NewSyncHandler(ownerID string, register registerFunc, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{ownerID: ownerID, register: register, log: logger}
}

// Handle reports whether m was a sync request.
func (h *SyncHandler) Handle(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	if s == nil || m == nil || m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return false
	}
	if strings.TrimSpace(m.Content) != syncTrigger {
		return false
	}

	reply := h.sync(s, m)
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		h.log.Warn().Err(err).Msg("failed to reply to sync")
	}
	return true
}

func (h *SyncHandler) sync(s *discordgo.Session, m *discordgo.MessageCreate) string {
	if h.ownerID == "" || m.Author.ID != h.ownerID {
		return "Only the bot owner can sync commands."
	}

	appID := ""
	if s.State != nil && s.State.User != nil {
		appID = s.State.User.ID
	}
	if appID == "" {
		return "Sync failed: application ID unknown."
	}

	if _, err := h.register(s, appID, m.GuildID); err != nil {
		h.log.Error().Err(err).Str("guild_id", m.GuildID).Msg("command sync failed")
		return fmt.Sprintf("Sync failed: %v", err)
	}

	h.log.Info().Str("guild_id", m.GuildID).Msg("commands synced")
	return "Commands synced to this server."
}
