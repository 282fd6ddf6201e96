package library

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/features/modals"
	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/lyricist"
)

const modalTimeout = 5 * time.Minute

const (
	songModalID    = "song_edit_modal"
	segmentModalID = "segment_edit_modal"
	lyricistModal  = "lyricist_edit_modal"
)

type options = []*discordgo.ApplicationCommandInteractionDataOption

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func (h *Handlers) createLyricist(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	l, err := h.library.CreateLyricist(ctx, shared.GetOptionString(opts, "name"), shared.GetOptionString(opts, "description"))
	if err != nil {
		h.fail(s, i, "create lyricist", err)
		return
	}
	h.sessions.Open(i.GuildID, l.ID)

	h.log.Info().Str("guild_id", i.GuildID).Str("lyricist_id", l.ID).Msg("lyricist created")
	shared.RespondComponents(s, i, BuildLyricistComponents(&l, "", ""), true)
}

func (h *Handlers) listLyricists(s *discordgo.Session, i *discordgo.InteractionCreate, _ options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	summaries, err := h.library.ListLyricists(ctx)
	if err != nil {
		h.fail(s, i, "list lyricists", err)
		return
	}
	shared.RespondComponents(s, i, BuildListComponents(summaries, h.sessions.Lyricist(i.GuildID)), true)
}

func (h *Handlers) openLyricist(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	id := strings.TrimSpace(shared.GetOptionString(opts, "lyricist"))
	l, err := h.library.GetLyricist(ctx, id)
	if err != nil {
		h.fail(s, i, "open lyricist", err)
		return
	}
	if l == nil {
		h.fail(s, i, "open lyricist", lyricist.ErrNotFound)
		return
	}

	ctrl := h.sessions.Open(i.GuildID, l.ID)
	st := ctrl.State()
	songID, segID := "", ""
	if st.Selected() {
		songID, segID = st.Song.ID, st.Segment.ID
	}
	shared.RespondComponents(s, i, BuildLyricistComponents(l, songID, segID), true)
}

func (h *Handlers) editLyricist(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	l, err := h.OpenLyricist(ctx, i.GuildID)
	cancel()
	if err != nil {
		h.fail(s, i, "edit lyricist", err)
		return
	}

	var update lyricist.LyricistUpdate
	if opt, ok := shared.GetOption(opts, "name"); ok {
		name := opt.StringValue()
		update.Name = &name
	}
	if opt, ok := shared.GetOption(opts, "description"); ok {
		desc := opt.StringValue()
		update.Description = &desc
	}

	target := i
	if update.Name == nil && update.Description == nil {
		resp, err := h.awaitModal(s, i, &discordgo.InteractionResponseData{
			CustomID: lyricistModal,
			Title:    "Edit lyricist",
			Components: []discordgo.MessageComponent{
				shared.TextInputRow("name", "Name", l.Name, discordgo.TextInputShort, true),
				shared.TextInputRow("description", "Description", l.Description, discordgo.TextInputParagraph, false),
			},
		})
		if err != nil {
			h.fail(s, i, "edit lyricist", err)
			return
		}
		name, desc := resp.Value("name"), resp.Value("description")
		update.Name, update.Description = &name, &desc
		target = resp.Interaction
	}

	ctx, cancel = contextWithTimeout()
	defer cancel()
	if err := h.library.UpdateLyricist(ctx, l.ID, update); err != nil {
		h.fail(s, target, "edit lyricist", err)
		return
	}
	shared.RespondEphemeral(s, target, "Lyricist updated.")
}

func (h *Handlers) deleteLyricist(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	id := strings.TrimSpace(shared.GetOptionString(opts, "lyricist"))
	if err := h.library.DeleteLyricist(ctx, id); err != nil {
		h.fail(s, i, "delete lyricist", err)
		return
	}
	if h.sessions.Lyricist(i.GuildID) == id {
		h.sessions.Leave(i.GuildID)
	}

	h.log.Info().Str("guild_id", i.GuildID).Str("lyricist_id", id).Msg("lyricist deleted")
	shared.RespondEphemeral(s, i, "Lyricist deleted.")
}

func (h *Handlers) searchSongs(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	query := strings.TrimSpace(shared.GetOptionString(opts, "query"))
	if query == "" {
		shared.RespondEphemeral(s, i, "Enter something to search for.")
		return
	}
	if h.sessions.Lyricist(i.GuildID) == "" {
		h.fail(s, i, "search", ErrNoOpenLyricist)
		return
	}

	if err := shared.DeferEphemeral(s, i); err != nil {
		h.log.Warn().Err(err).Msg("failed to defer search")
		return
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()
	tracks := h.catalog.SearchTracks(ctx, query)

	h.searches.save(i.GuildID, shared.GetInteractionUserID(i), query, tracks)
	shared.FollowupComponents(s, i, BuildSearchComponents(query, tracks))
}

func (h *Handlers) addSearchResult(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := shared.GetInteractionUserID(i)
	res, ok := h.searches.get(i.GuildID, userID)
	if !ok {
		shared.RespondEphemeral(s, i, "That search expired. Run `/song search` again.")
		return
	}

	values := i.MessageComponentData().Values
	if len(values) == 0 {
		shared.RespondEphemeral(s, i, "Pick a result.")
		return
	}
	idx, err := strconv.Atoi(values[0])
	if err != nil || idx < 0 || idx >= len(res.tracks) {
		shared.RespondEphemeral(s, i, "That result is no longer available.")
		return
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	l, err := h.OpenLyricist(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "add search result", err)
		return
	}
	song, err := h.library.AddSong(ctx, l.ID, res.tracks[idx].ToSong())
	if err != nil {
		h.fail(s, i, "add search result", err)
		return
	}
	h.searches.delete(i.GuildID, userID)

	shared.RespondEphemeral(s, i, fmt.Sprintf("Added **%s** as song %d.", shared.EscapeText(song.Title), len(l.Songs)+1))
}

func (h *Handlers) addSong(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	l, err := h.OpenLyricist(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "add song", err)
		return
	}

	song := lyricist.NewSong{
		Title:    shared.GetOptionString(opts, "title"),
		Artist:   shared.GetOptionString(opts, "artist"),
		AudioURL: shared.GetOptionString(opts, "audio_url"),
		CoverURL: shared.GetOptionString(opts, "cover_url"),
	}

	if link := strings.TrimSpace(shared.GetOptionString(opts, "spotify")); link != "" {
		track, err := h.catalog.LookupTrack(ctx, link)
		if err != nil {
			h.log.Warn().Err(err).Str("link", link).Msg("track lookup failed")
			shared.RespondEphemeral(s, i, "Could not look up that Spotify track.")
			return
		}
		song = mergeSong(track.ToSong(), song)
	}

	created, err := h.library.AddSong(ctx, l.ID, song)
	if err != nil {
		h.fail(s, i, "add song", err)
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Added **%s** as song %d.", shared.EscapeText(created.Title), len(l.Songs)+1))
}

// mergeSong fills the blank fields of manual from looked up.
func mergeSong(looked, manual lyricist.NewSong) lyricist.NewSong {
	pick := func(a, b string) string {
		if strings.TrimSpace(a) != "" {
			return a
		}
		return b
	}
	return lyricist.NewSong{
		Title:     pick(manual.Title, looked.Title),
		Artist:    pick(manual.Artist, looked.Artist),
		AudioURL:  pick(manual.AudioURL, looked.AudioURL),
		CoverURL:  pick(manual.CoverURL, looked.CoverURL),
		SpotifyID: looked.SpotifyID,
	}
}

func (h *Handlers) editSong(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	l, err := h.OpenLyricist(ctx, i.GuildID)
	cancel()
	if err != nil {
		h.fail(s, i, "edit song", err)
		return
	}
	song, err := SongAt(l, shared.GetOptionInt(opts, "song"))
	if err != nil {
		h.fail(s, i, "edit song", err)
		return
	}

	resp, err := h.awaitModal(s, i, &discordgo.InteractionResponseData{
		CustomID: songModalID,
		Title:    "Edit song",
		Components: []discordgo.MessageComponent{
			shared.TextInputRow("title", "Title", song.Title, discordgo.TextInputShort, true),
			shared.TextInputRow("artist", "Artist", song.Artist, discordgo.TextInputShort, false),
			shared.TextInputRow("audio_url", "Audio URL", song.AudioURL, discordgo.TextInputShort, false),
			shared.TextInputRow("cover_url", "Cover URL", song.CoverURL, discordgo.TextInputShort, false),
		},
	})
	if err != nil {
		h.fail(s, i, "edit song", err)
		return
	}

	update := lyricist.SongUpdate{
		Title:    resp.Value("title"),
		Artist:   resp.Value("artist"),
		AudioURL: resp.Value("audio_url"),
		CoverURL: resp.Value("cover_url"),
	}

	ctx, cancel = contextWithTimeout()
	defer cancel()
	if err := h.library.UpdateSong(ctx, song.ID, l.ID, update); err != nil {
		h.fail(s, resp.Interaction, "edit song", err)
		return
	}
	shared.RespondEphemeral(s, resp.Interaction, "Song updated.")
}

func (h *Handlers) removeSong(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	l, err := h.OpenLyricist(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "remove song", err)
		return
	}
	song, err := SongAt(l, shared.GetOptionInt(opts, "song"))
	if err != nil {
		h.fail(s, i, "remove song", err)
		return
	}
	if err := h.library.DeleteSong(ctx, song.ID, l.ID); err != nil {
		h.fail(s, i, "remove song", err)
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Removed **%s**.", shared.EscapeText(song.Title)))
}

func (h *Handlers) addSegment(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	defer cancel()

	l, err := h.OpenLyricist(ctx, i.GuildID)
	if err != nil {
		h.fail(s, i, "add segment", err)
		return
	}
	song, err := SongAt(l, shared.GetOptionInt(opts, "song"))
	if err != nil {
		h.fail(s, i, "add segment", err)
		return
	}

	start, _ := shared.GetOptionFloat(opts, "start")
	end, _ := shared.GetOptionFloat(opts, "end")
	seg, err := h.library.AddSegment(ctx, song.ID, l.ID, lyricist.NewSegment{
		Text:      shared.GetOptionString(opts, "text"),
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		h.fail(s, i, "add segment", err)
		return
	}
	shared.RespondEphemeral(s, i, fmt.Sprintf("Added segment %d `%s → %s` to **%s**.",
		len(song.Segments)+1, shared.FormatSeconds(seg.StartTime), shared.FormatSeconds(seg.EndTime), shared.EscapeText(song.Title)))
}

func (h *Handlers) editSegment(s *discordgo.Session, i *discordgo.InteractionCreate, opts options) {
	ctx, cancel := contextWithTimeout()
	l, err := h.OpenLyricist(ctx, i.GuildID)
	cancel()
	if err != nil {
		h.fail(s, i, "edit segment", err)
		return
	}
	song, err := SongAt(l, shared.GetOptionInt(opts, "song"))
	if err != nil {
		h.fail(s, i, "edit segment", err)
		return
	}
	seg, err := SegmentAt(song, shared.GetOptionInt(opts, "segment"))
	if err != nil {
		h.fail(s, i, "edit segment", err)
		return
	}

	resp, err := h.awaitModal(s, i, &discordgo.InteractionResponseData{
		CustomID: segmentModalID,
		Title:    "Edit segment",
		Components: []discordgo.MessageComponent{
			shared.TextInputRow("start", "Start (seconds)", formatInput(seg.StartTime), discordgo.TextInputShort, true),
			shared.TextInputRow("end", "End (seconds)", formatInput(seg.EndTime), discordgo.TextInputShort, true),
			shared.TextInputRow("text", "Lyrics", seg.Text, discordgo.TextInputParagraph, false),
		},
	})
	if err != nil {
		h.fail(s, i, "edit segment", err)
		return
	}

	update, err := parseSegmentUpdate(resp.Value("start"), resp.Value("end"), resp.Value("text"))
	if err != nil {
		h.fail(s, resp.Interaction, "edit segment", err)
		return
	}

	ctx, cancel = contextWithTimeout()
	defer cancel()
	if err := h.library.UpdateSegment(ctx, seg.ID, l.ID, update); err != nil {
		h.fail(s, resp.Interaction, "edit segment", err)
		return
	}
	shared.RespondEphemeral(s, resp.Interaction, "Segment updated.")
}

func (h *Handlers) awaitModal(s *discordgo.Session, i *discordgo.InteractionCreate, modal *discordgo.InteractionResponseData) (*modals.ModalResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), modalTimeout)
	defer cancel()

	return h.modals.ShowAndAwaitModal(ctx, s, i, modal)
}

// parseSegmentUpdate reads the segment form. Bounds accept plain seconds or
// m:ss.s as rendered in listings.
func parseSegmentUpdate(start, end, text string) (lyricist.SegmentUpdate, error) {
	from, err := parseSeconds(start)
	if err != nil {
		return lyricist.SegmentUpdate{}, err
	}
	to, err := parseSeconds(end)
	if err != nil {
		return lyricist.SegmentUpdate{}, err
	}
	return lyricist.SegmentUpdate{Text: text, StartTime: from, EndTime: to}, nil
}

func parseSeconds(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	minutes := 0.0
	if m, rest, ok := strings.Cut(raw, ":"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(m))
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: %q", lyricist.ErrInvalidSegmentRange, raw)
		}
		minutes = float64(n)
		raw = rest
	}
	sec, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", lyricist.ErrInvalidSegmentRange, raw)
	}
	return minutes*60 + sec, nil
}

func formatInput(sec float64) string {
	return strconv.FormatFloat(sec, 'f', -1, 64)
}
