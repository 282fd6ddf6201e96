package library

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/lyricist"
)

const maxTextDisplay = 3500

var accent = 0x3C6AA1

// BuildLyricistComponents renders a lyricist page: every song with its
// numbered segments. selectedSong and selectedSegment mark the playing pair.
func BuildLyricistComponents(l *lyricist.Lyricist, selectedSong, selectedSegment string) []discordgo.MessageComponent {
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	header := fmt.Sprintf("## %s", shared.EscapeText(l.Name))
	if desc := strings.TrimSpace(l.Description); desc != "" {
		header += "\n" + shared.EscapeText(desc)
	}

	components := []discordgo.MessageComponent{
		discordgo.TextDisplay{Content: header},
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
	}

	if len(l.Songs) == 0 {
		components = append(components, discordgo.TextDisplay{Content: "No songs yet. Add one with `/song search` or `/song add`."})
	}

	for n, song := range l.Songs {
		text := shared.Truncate(renderSong(n+1, song, selectedSong, selectedSegment), maxTextDisplay)
		if cover := strings.TrimSpace(song.CoverURL); cover != "" {
			components = append(components, discordgo.Section{
				Components: []discordgo.MessageComponent{discordgo.TextDisplay{Content: text}},
				Accessory: discordgo.Thumbnail{
					Media: discordgo.UnfurledMediaItem{URL: cover},
				},
			})
			continue
		}
		components = append(components, discordgo.TextDisplay{Content: text})
	}

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components:  components,
		},
	}
}

func renderSong(n int, song lyricist.Song, selectedSong, selectedSegment string) string {
	var b strings.Builder

	title := shared.EscapeText(song.Title)
	fmt.Fprintf(&b, "**%d. %s**", n, title)
	if artist := strings.TrimSpace(song.Artist); artist != "" {
		fmt.Fprintf(&b, " · %s", shared.EscapeText(artist))
	}
	if song.IsRemote() {
		b.WriteString(" `spotify`")
	}

	if len(song.Segments) == 0 {
		b.WriteString("\n-# no segments")
		return b.String()
	}

	for m, seg := range song.Segments {
		marker := "▫️"
		if song.ID == selectedSong && seg.ID == selectedSegment {
			marker = "▶️"
		}
		fmt.Fprintf(&b, "\n%s `%d` `%s → %s`", marker, m+1, shared.FormatSeconds(seg.StartTime), shared.FormatSeconds(seg.EndTime))
		if text := strings.TrimSpace(seg.Text); text != "" {
			fmt.Fprintf(&b, " %s", shared.EscapeText(shared.Truncate(text, 120)))
		}
	}
	return b.String()
}

// BuildListComponents renders the lyricist listing, newest first.
func BuildListComponents(summaries []lyricist.Summary, openID string) []discordgo.MessageComponent {
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	lines := make([]string, 0, len(summaries))
	for n, sum := range summaries {
		marker := ""
		if sum.Lyricist.ID == openID {
			marker = " (open)"
		}
		lines = append(lines, fmt.Sprintf("`%d` **%s**%s · %d songs", n+1, shared.EscapeText(sum.Lyricist.Name), marker, sum.SongCount))
	}

	body := "No lyricists yet. Create one with `/lyricist create`."
	if len(lines) > 0 {
		body = shared.Truncate(strings.Join(lines, "\n"), maxTextDisplay)
	}

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: "## Lyricists"},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.TextDisplay{Content: body},
			},
		},
	}
}
