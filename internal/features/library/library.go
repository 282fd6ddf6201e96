package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/internal/catalog"
	"github.com/ChuckD30/lyricist/internal/features/modals"
	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/lyricist"
	"github.com/ChuckD30/lyricist/internal/session"
)

const requestTimeout = 5 * time.Second

var (
	ErrNoOpenLyricist = errors.New("no lyricist is open in this server")
	ErrSongIndex      = errors.New("song number out of range")
	ErrSegmentIndex   = errors.New("segment number out of range")
)

// Handlers serves the lyricist, song and segment commands.
type Handlers struct {
	library  *lyricist.Service
	catalog  *catalog.Client
	sessions *session.Manager
	modals   *modals.Awaiter
	searches *searchStore
	log      zerolog.Logger
}

func New(library *lyricist.Service, cat *catalog.Client, sessions *session.Manager, awaiter *modals.Awaiter, logger zerolog.Logger) *Handlers {
	return &Handlers{
		library:  library,
		catalog:  cat,
		sessions: sessions,
		modals:   awaiter,
		searches: newSearchStore(),
		log:      logger.With().Str("feature", "library").Logger(),
	}
}

// OpenLyricist loads the lyricist the guild has open.
func (h *Handlers) OpenLyricist(ctx context.Context, guildID string) (*lyricist.Lyricist, error) {
	id := h.sessions.Lyricist(guildID)
	if id == "" {
		return nil, ErrNoOpenLyricist
	}

	l, err := h.library.GetLyricist(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		h.sessions.Leave(guildID)
		return nil, ErrNoOpenLyricist
	}
	return l, nil
}

// SongAt returns the n-th song, counting from 1 as the listing does.
func SongAt(l *lyricist.Lyricist, n int) (lyricist.Song, error) {
	if l == nil || n < 1 || n > len(l.Songs) {
		return lyricist.Song{}, fmt.Errorf("%w: %d", ErrSongIndex, n)
	}
	return l.Songs[n-1], nil
}

func SegmentAt(song lyricist.Song, n int) (lyricist.Segment, error) {
	if n < 1 || n > len(song.Segments) {
		return lyricist.Segment{}, fmt.Errorf("%w: %d", ErrSegmentIndex, n)
	}
	return song.Segments[n-1], nil
}

// Refresh re-resolves the playback selection of every guild viewing
// lyricistID. Guilds whose lyricist was deleted navigate away.
func (h *Handlers) Refresh(lyricistID string) {
	viewers := h.sessions.Viewing(lyricistID)
	if len(viewers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	l, err := h.library.GetLyricist(ctx, lyricistID)
	if err != nil {
		h.log.Warn().Err(err).Str("lyricist_id", lyricistID).Msg("refresh fetch failed")
		return
	}

	for guildID, ctrl := range viewers {
		if l == nil {
			h.log.Info().Str("guild_id", guildID).Str("lyricist_id", lyricistID).Msg("open lyricist was deleted")
			h.sessions.Leave(guildID)
			continue
		}
		ctrl.Refresh(l.Songs)
	}
}

// Describe turns an error into a message for the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, ErrNoOpenLyricist):
		return "No lyricist is open. Use `/lyricist open` first."
	case errors.Is(err, ErrSongIndex):
		return "There is no song with that number."
	case errors.Is(err, ErrSegmentIndex):
		return "There is no segment with that number."
	case errors.Is(err, lyricist.ErrNameRequired):
		return "A lyricist needs a name."
	case errors.Is(err, lyricist.ErrTitleRequired):
		return "A song needs a title."
	case errors.Is(err, lyricist.ErrInvalidSegmentRange):
		return "Segments need `0 <= start < end` (seconds)."
	case errors.Is(err, lyricist.ErrNotFound):
		return "That item no longer exists."
	case errors.Is(err, lyricist.ErrRepositoryNil):
		return "Storage is not configured."
	case errors.Is(err, session.ErrInvalidWindow):
		return "That segment has an invalid time range."
	case errors.Is(err, session.ErrNoBackend):
		return "Playback is not available for this song."
	case errors.Is(err, modals.ErrTimeout):
		return "The form timed out."
	default:
		return "Something went wrong. Please try again."
	}
}

func (h *Handlers) fail(s *discordgo.Session, i *discordgo.InteractionCreate, op string, err error) {
	if !isUserError(err) {
		h.log.Error().Err(err).Str("guild_id", i.GuildID).Str("op", op).Msg("library command failed")
	}
	shared.RespondEphemeral(s, i, Describe(err))
}

func isUserError(err error) bool {
	for _, target := range []error{
		ErrNoOpenLyricist, ErrSongIndex, ErrSegmentIndex,
		lyricist.ErrNameRequired, lyricist.ErrTitleRequired, lyricist.ErrInvalidSegmentRange, lyricist.ErrNotFound,
		modals.ErrTimeout,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func requireGuild(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return false
	}
	return true
}

// matchLyricists filters summaries for an autocomplete query.
func matchLyricists(summaries []lyricist.Summary, query string) []*discordgo.ApplicationCommandOptionChoice {
	query = strings.ToLower(strings.TrimSpace(query))
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, 25)
	for _, sum := range summaries {
		if len(choices) == 25 {
			break
		}
		if query != "" && !strings.Contains(strings.ToLower(sum.Lyricist.Name), query) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  shared.Truncate(fmt.Sprintf("%s (%d songs)", sum.Lyricist.Name, sum.SongCount), 100),
			Value: sum.Lyricist.ID,
		})
	}
	return choices
}
