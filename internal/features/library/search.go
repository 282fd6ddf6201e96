package library

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/catalog"
	"github.com/ChuckD30/lyricist/internal/features/shared"
)

const (
	maxSelectOptions = 25
	searchTTL        = 2 * time.Minute
	searchSelectID   = "song_search_select"
)

type searchResult struct {
	query     string
	tracks    []catalog.Track
	createdAt time.Time
}

// searchStore remembers the last result list per guild member so a select
// menu pick can be resolved back to a track.
type searchStore struct {
	mu   sync.RWMutex
	data map[string]searchResult
	now  func() time.Time
}

func newSearchStore() *searchStore {
	return &searchStore{
		data: make(map[string]searchResult),
		now:  time.Now,
	}
}

func searchKey(guildID, userID string) string {
	return guildID + ":" + userID
}

func (st *searchStore) save(guildID, userID, query string, tracks []catalog.Track) {
	if guildID == "" || userID == "" {
		return
	}
	st.mu.Lock()
	st.data[searchKey(guildID, userID)] = searchResult{
		query:     query,
		tracks:    tracks,
		createdAt: st.now(),
	}
	st.mu.Unlock()
}

func (st *searchStore) get(guildID, userID string) (searchResult, bool) {
	st.mu.RLock()
	res, ok := st.data[searchKey(guildID, userID)]
	st.mu.RUnlock()
	if !ok {
		return searchResult{}, false
	}
	if st.now().Sub(res.createdAt) > searchTTL {
		st.delete(guildID, userID)
		return searchResult{}, false
	}
	return res, true
}

func (st *searchStore) delete(guildID, userID string) {
	st.mu.Lock()
	delete(st.data, searchKey(guildID, userID))
	st.mu.Unlock()
}

// BuildSearchComponents renders search results with a select menu that adds
// the picked track to the open lyricist.
func BuildSearchComponents(query string, tracks []catalog.Track) []discordgo.MessageComponent {
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	header := fmt.Sprintf("### Results for **%s**", shared.EscapeText(shared.Truncate(query, 100)))
	if len(tracks) == 0 {
		return []discordgo.MessageComponent{
			discordgo.Container{
				AccentColor: &accent,
				Components: []discordgo.MessageComponent{
					discordgo.TextDisplay{Content: header},
					discordgo.TextDisplay{Content: "Nothing found."},
				},
			},
		}
	}

	lines := make([]string, 0, len(tracks))
	options := make([]discordgo.SelectMenuOption, 0, min(len(tracks), maxSelectOptions))
	for n, track := range tracks {
		if n >= maxSelectOptions {
			break
		}
		lines = append(lines, fmt.Sprintf("`%d` **%s** · %s", n+1, shared.EscapeText(shared.Truncate(track.Name, 80)), shared.EscapeText(track.ArtistNames())))
		options = append(options, discordgo.SelectMenuOption{
			Label:       shared.Truncate(track.Name, 100),
			Description: shared.Truncate(describeTrack(track), 100),
			Value:       fmt.Sprintf("%d", n),
		})
	}

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: header},
				discordgo.TextDisplay{Content: shared.Truncate(strings.Join(lines, "\n"), maxTextDisplay)},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							MenuType:    discordgo.StringSelectMenu,
							CustomID:    searchSelectID,
							Placeholder: "Add a song to the open lyricist",
							Options:     options,
						},
					},
				},
			},
		},
	}
}

func describeTrack(track catalog.Track) string {
	parts := make([]string, 0, 2)
	if artists := track.ArtistNames(); artists != "" {
		parts = append(parts, artists)
	}
	if track.DurationMS > 0 {
		parts = append(parts, shared.FormatSeconds(float64(track.DurationMS)/1000))
	}
	if len(parts) == 0 {
		return "Unknown artist"
	}
	return strings.Join(parts, " · ")
}
