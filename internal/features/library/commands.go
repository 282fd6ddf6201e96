package library

import (
	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/features/shared"
)

var minIndex = 1.0
var minSeconds = 0.0

func indexOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        name,
		Description: description,
		Required:    true,
		MinValue:    &minIndex,
	}
}

func lyricistOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         "lyricist",
		Description:  "Lyricist name",
		Required:     true,
		Autocomplete: true,
	}
}

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "lyricist",
		Description: "Manage lyricists",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a lyricist and open it",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Name", Required: true},
					{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Description"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List lyricists, newest first",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "open",
				Description: "Open a lyricist in this server",
				Options:     []*discordgo.ApplicationCommandOption{lyricistOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "edit",
				Description: "Rename or describe the open lyricist",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "New name"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "New description"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Delete a lyricist with all its songs",
				Options:     []*discordgo.ApplicationCommandOption{lyricistOption()},
			},
		},
	},
	{
		Name:        "song",
		Description: "Manage songs of the open lyricist",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "search",
				Description: "Search the catalog and add a result",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "Title or artist", Required: true},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a song by hand or from a Spotify link",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Title"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "artist", Description: "Artist"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "audio_url", Description: "Direct audio URL"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "cover_url", Description: "Cover image URL"},
					{Type: discordgo.ApplicationCommandOptionString, Name: "spotify", Description: "Spotify track link or URI"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "edit",
				Description: "Edit a song",
				Options:     []*discordgo.ApplicationCommandOption{indexOption("song", "Song number")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a song",
				Options:     []*discordgo.ApplicationCommandOption{indexOption("song", "Song number")},
			},
		},
	},
	{
		Name:        "segment",
		Description: "Manage lyric segments",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a segment to a song",
				Options: []*discordgo.ApplicationCommandOption{
					indexOption("song", "Song number"),
					{Type: discordgo.ApplicationCommandOptionNumber, Name: "start", Description: "Start in seconds", Required: true, MinValue: &minSeconds},
					{Type: discordgo.ApplicationCommandOptionNumber, Name: "end", Description: "End in seconds", Required: true, MinValue: &minSeconds},
					{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Lyrics"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "edit",
				Description: "Edit a segment",
				Options: []*discordgo.ApplicationCommandOption{
					indexOption("song", "Song number"),
					indexOption("segment", "Segment number"),
				},
			},
		},
	},
}

// HandleCommand routes a library slash command. It reports false for
// commands it does not own.
func (h *Handlers) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	data := i.ApplicationCommandData()

	var routes map[string]func(*discordgo.Session, *discordgo.InteractionCreate, []*discordgo.ApplicationCommandInteractionDataOption)
	switch data.Name {
	case "lyricist":
		routes = map[string]func(*discordgo.Session, *discordgo.InteractionCreate, []*discordgo.ApplicationCommandInteractionDataOption){
			"create": h.createLyricist,
			"list":   h.listLyricists,
			"open":   h.openLyricist,
			"edit":   h.editLyricist,
			"delete": h.deleteLyricist,
		}
	case "song":
		routes = map[string]func(*discordgo.Session, *discordgo.InteractionCreate, []*discordgo.ApplicationCommandInteractionDataOption){
			"search": h.searchSongs,
			"add":    h.addSong,
			"edit":   h.editSong,
			"remove": h.removeSong,
		}
	case "segment":
		routes = map[string]func(*discordgo.Session, *discordgo.InteractionCreate, []*discordgo.ApplicationCommandInteractionDataOption){
			"add":  h.addSegment,
			"edit": h.editSegment,
		}
	default:
		return false
	}

	if !requireGuild(s, i) {
		return true
	}

	sub := shared.GetSubcommand(data)
	if sub == nil {
		shared.RespondEphemeral(s, i, "Pick a subcommand.")
		return true
	}
	handler, ok := routes[sub.Name]
	if !ok {
		shared.RespondEphemeral(s, i, "Unsupported subcommand.")
		return true
	}

	handler(s, i, sub.Options)
	return true
}

// HandleAutocomplete answers lyricist name completion.
func (h *Handlers) HandleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	data := i.ApplicationCommandData()
	if data.Name != "lyricist" {
		return false
	}

	query := ""
	if sub := shared.GetSubcommand(data); sub != nil {
		for _, opt := range sub.Options {
			if opt.Focused {
				query = opt.StringValue()
			}
		}
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	summaries, err := h.library.ListLyricists(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("autocomplete listing failed")
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: matchLyricists(summaries, query),
		},
	}); err != nil {
		h.log.Warn().Err(err).Msg("autocomplete respond failed")
	}
	return true
}

// HandleComponent routes library message components.
func (h *Handlers) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.MessageComponentData().CustomID != searchSelectID {
		return false
	}
	h.addSearchResult(s, i)
	return true
}
