package panel

import (
	"fmt"
	"math"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/playback"
	"github.com/ChuckD30/lyricist/internal/session"
)

const (
	progressBarSize = 14
	autoUpdateStep  = 1.0
	volumeStep      = 0.1
	seekStep        = 5.0
)

const (
	ButtonToggle     = "panel_toggle"
	ButtonBack       = "panel_back"
	ButtonForward    = "panel_forward"
	ButtonVolumeDown = "panel_vol_down"
	ButtonVolumeUp   = "panel_vol_up"
	ButtonMute       = "panel_mute"
)

var accent = 0x3C6AA1

// PlayerSnapshot is what the panel shows: play state, position and the
// bounds of the selected segment.
type PlayerSnapshot struct {
	SongID    string
	SegmentID string
	Title     string
	Artist    string
	Cover     string
	Lyrics    string
	Selected  bool
	Playing   bool
	Position  float64
	Start     float64
	End       float64
	Volume    float64
	Muted     bool
	Backend   playback.Kind
	Device    playback.DeviceState
}

func Snapshot(st session.State) PlayerSnapshot {
	snap := PlayerSnapshot{
		Playing: st.Playing,
		Volume:  st.Player.Volume,
		Muted:   st.Player.Muted,
		Backend: st.Player.Kind,
		Device:  st.Player.Device,
	}
	if !st.Selected() {
		snap.Playing = false
		return snap
	}

	snap.Selected = true
	snap.SongID = st.Song.ID
	snap.SegmentID = st.Segment.ID
	snap.Title = st.Song.Title
	snap.Artist = st.Song.Artist
	snap.Cover = strings.TrimSpace(st.Song.CoverURL)
	snap.Lyrics = strings.TrimSpace(st.Segment.Text)
	snap.Start = st.Segment.StartTime
	snap.End = st.Segment.EndTime
	snap.Position = playback.Window{Start: snap.Start, End: snap.End}.Clamp(st.Player.Position)
	return snap
}

// Hash changes whenever an automatic refresh would render something new.
func (s PlayerSnapshot) Hash() string {
	if !s.Selected {
		return "idle"
	}
	bucket := int(math.Floor((s.Position - s.Start) / autoUpdateStep))
	return fmt.Sprintf("%s:%s:%d:playing=%t:vol=%.1f:muted=%t:device=%s",
		s.SongID, s.SegmentID, bucket, s.Playing, s.Volume, s.Muted, s.Device)
}

func BuildComponents(snap PlayerSnapshot) []discordgo.MessageComponent {
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	components := []discordgo.MessageComponent{
		discordgo.TextDisplay{Content: "🎤 **Lyricist player**"},
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
	}

	body := []discordgo.MessageComponent{
		discordgo.TextDisplay{Content: nowPlayingLine(snap)},
	}
	if snap.Selected {
		body = append(body, discordgo.TextDisplay{Content: fmt.Sprintf("`%s` `%s` `%s`",
			shared.FormatSeconds(snap.Position),
			buildProgressBar(snap.Position, snap.Start, snap.End, progressBarSize),
			shared.FormatSeconds(snap.End))})
		if snap.Lyrics != "" {
			body = append(body, discordgo.TextDisplay{Content: "> " + shared.EscapeText(shared.Truncate(snap.Lyrics, 300))})
		}
	}

	if snap.Cover != "" {
		components = append(components, discordgo.Section{
			Components: body,
			Accessory: discordgo.Thumbnail{
				Media: discordgo.UnfurledMediaItem{URL: snap.Cover},
			},
		})
	} else {
		components = append(components, body...)
	}

	components = append(components,
		discordgo.Separator{Divider: &divider, Spacing: &spacing},
		discordgo.TextDisplay{Content: statusLine(snap)},
		discordgo.ActionsRow{Components: transportButtons(snap)},
		discordgo.ActionsRow{Components: volumeButtons(snap)},
	)

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components:  components,
		},
	}
}

func nowPlayingLine(snap PlayerSnapshot) string {
	if !snap.Selected {
		return "Nothing selected. Use `/play` to pick a segment."
	}
	line := fmt.Sprintf("**%s**", shared.EscapeText(snap.Title))
	if artist := strings.TrimSpace(snap.Artist); artist != "" {
		line += " · " + shared.EscapeText(artist)
	}
	return line
}

func statusLine(snap PlayerSnapshot) string {
	parts := make([]string, 0, 3)
	switch {
	case !snap.Selected:
		parts = append(parts, "⏹️ Stopped")
	case snap.Playing:
		parts = append(parts, "▶️ Playing")
	default:
		parts = append(parts, "⏸️ Paused")
	}

	if snap.Muted {
		parts = append(parts, "🔇 Muted")
	} else {
		parts = append(parts, fmt.Sprintf("🔊 %d%%", int(math.Round(snap.Volume*100))))
	}

	if snap.Backend == playback.KindRemote {
		device := string(snap.Device)
		if device == "" {
			device = "no device"
		}
		parts = append(parts, "Spotify: "+device)
	}
	return strings.Join(parts, " • ")
}

func transportButtons(snap PlayerSnapshot) []discordgo.MessageComponent {
	toggleLabel := "Play"
	toggleStyle := discordgo.SuccessButton
	if snap.Playing {
		toggleLabel = "Pause"
		toggleStyle = discordgo.SecondaryButton
	}
	disabled := !snap.Selected

	return []discordgo.MessageComponent{
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "-5s", CustomID: ButtonBack, Disabled: disabled},
		discordgo.Button{Style: toggleStyle, Label: toggleLabel, CustomID: ButtonToggle, Disabled: disabled},
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "+5s", CustomID: ButtonForward, Disabled: disabled},
	}
}

func volumeButtons(snap PlayerSnapshot) []discordgo.MessageComponent {
	muteLabel := "Mute"
	if snap.Muted {
		muteLabel = "Unmute"
	}
	return []discordgo.MessageComponent{
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "Vol -", CustomID: ButtonVolumeDown, Disabled: snap.Volume <= 0},
		discordgo.Button{Style: discordgo.SecondaryButton, Label: "Vol +", CustomID: ButtonVolumeUp, Disabled: snap.Volume >= 1},
		discordgo.Button{Style: discordgo.PrimaryButton, Label: muteLabel, CustomID: ButtonMute},
	}
}

// buildProgressBar draws position within [start, end].
func buildProgressBar(position, start, end float64, size int) string {
	if size <= 0 {
		size = progressBarSize
	}
	if end <= start {
		return "○" + strings.Repeat("─", size)
	}
	ratio := (position - start) / (end - start)
	ratio = max(0.0, min(1.0, ratio))
	marker := min(size, max(0, int(ratio*float64(size))))
	return strings.Repeat("━", marker) + "◉" + strings.Repeat("─", size-marker)
}
