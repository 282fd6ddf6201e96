package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ChuckD30/lyricist/internal/features/library"
	"github.com/ChuckD30/lyricist/internal/features/modals"
	"github.com/ChuckD30/lyricist/internal/features/panel"
	"github.com/ChuckD30/lyricist/internal/features/status"
)

// Feature is one command group. Each handler reports whether it consumed the
// interaction.
type Feature interface {
	HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool
	HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool
}

type autocompleter interface {
	HandleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) bool
}

// Router dispatches interactions to the features.
type Router struct {
	modals   *modals.Awaiter
	features []Feature
	sync     *SyncHandler
	log      zerolog.Logger
}

func NewRouter(awaiter *modals.Awaiter, features []Feature, ownerID string, logger zerolog.Logger) *Router {
	l := logger.With().Str("component", "router").Logger()
	return &Router{
		modals:   awaiter,
		features: features,
		sync:     NewSyncHandler(ownerID, RegisterCommands, l),
		log:      l,
	}
}

// CommandList returns every slash command the bot registers.
func CommandList() []*discordgo.ApplicationCommand {
	list := make([]*discordgo.ApplicationCommand, 0, len(library.Commands)+len(panel.Commands)+len(status.Commands))
	list = append(list, library.Commands...)
	list = append(list, panel.Commands...)
	list = append(list, status.Commands...)
	return list
}

func RegisterCommands(s *discordgo.Session, appID string, guildID string) ([]*discordgo.ApplicationCommand, error) {
	scope := "global"
	if guildID != "" {
		scope = fmt.Sprintf("guild:%s", guildID)
	}

	list := CommandList()
	log.Info().Int("count", len(list)).Str("scope", scope).Msg("registering commands")

	cmds, err := s.ApplicationCommandBulkOverwrite(appID, guildID, list)
	if err != nil {
		return nil, fmt.Errorf("cannot bulk overwrite commands: %w", err)
	}
	return cmds, nil
}

// AddHandlers installs the interaction and message handlers on one shard.
func (r *Router) AddHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		r.sync.Handle(s, m)
	})

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		r.Dispatch(s, i)
	})
}

// Dispatch routes one interaction. Modal submissions go to a pending wait
// first.
func (r *Router) Dispatch(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if r.modals.HandleInteraction(i) {
		return true
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		for _, f := range r.features {
			if f.HandleCommand(s, i) {
				return true
			}
		}
		r.log.Debug().Str("command", i.ApplicationCommandData().Name).Msg("unhandled command")
	case discordgo.InteractionApplicationCommandAutocomplete:
		for _, f := range r.features {
			if ac, ok := f.(autocompleter); ok && ac.HandleAutocomplete(s, i) {
				return true
			}
		}
	case discordgo.InteractionMessageComponent:
		for _, f := range r.features {
			if f.HandleComponent(s, i) {
				return true
			}
		}
	}
	return false
}
