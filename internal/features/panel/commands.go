package panel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ChuckD30/lyricist/internal/database"
	"github.com/ChuckD30/lyricist/internal/features/library"
	"github.com/ChuckD30/lyricist/internal/features/shared"
	"github.com/ChuckD30/lyricist/internal/session"
	"github.com/ChuckD30/lyricist/internal/voice"
)

const requestTimeout = 5 * time.Second

var minIndex = 1.0

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "play",
		Description: "Play a segment of the open lyricist, or toggle it if it is already selected",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "song", Description: "Song number", Required: true, MinValue: &minIndex},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "segment", Description: "Segment number", Required: true, MinValue: &minIndex},
		},
	},
	{
		Name:        "stop",
		Description: "Stop playback and leave the voice channel",
	},
	{
		Name:        "panel",
		Description: "Post the player panel in a channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "category",
				Description:  "Category to create the panel channel in",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildCategory},
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "channel_name",
				Description: "Panel channel name (default: " + DefaultChannelName + ")",
			},
		},
	},
}

// HandleCommand routes /play, /stop and /panel.
func (p *Panel) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	name := i.ApplicationCommandData().Name
	switch name {
	case "play", "stop", "panel":
	default:
		return false
	}

	if i.GuildID == "" {
		shared.RespondEphemeral(s, i, "This command only works in a server.")
		return true
	}
	p.Bind(s, i.GuildID)

	switch name {
	case "play":
		p.play(s, i)
	case "stop":
		p.stop(s, i)
	case "panel":
		p.setup(s, i)
	}
	return true
}

func (p *Panel) play(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := i.ApplicationCommandData().Options

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	l, err := p.library.OpenLyricist(ctx, i.GuildID)
	if err != nil {
		p.fail(s, i, err)
		return
	}
	song, err := library.SongAt(l, shared.GetOptionInt(opts, "song"))
	if err != nil {
		p.fail(s, i, err)
		return
	}
	seg, err := library.SegmentAt(song, shared.GetOptionInt(opts, "segment"))
	if err != nil {
		p.fail(s, i, err)
		return
	}

	if err := shared.DeferEphemeral(s, i); err != nil {
		p.log.Warn().Err(err).Msg("failed to defer play")
		return
	}

	if !song.IsRemote() {
		conn := p.voice.Get(i.GuildID)
		if err := conn.Join(s, shared.GetInteractionUserID(i)); err != nil {
			if errors.Is(err, voice.ErrNoVoiceChannel) {
				shared.FollowupEphemeral(s, i, "Join a voice channel first.")
				return
			}
			p.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("voice join failed")
			shared.FollowupEphemeral(s, i, "Could not join your voice channel.")
			return
		}
	}

	ctrl := p.sessions.Get(i.GuildID)
	if err := ctrl.Play(song, seg); err != nil {
		p.log.Warn().Err(err).Str("guild_id", i.GuildID).Str("segment_id", seg.ID).Msg("play failed")
		shared.FollowupEphemeral(s, i, library.Describe(err))
		return
	}

	verb := "Paused"
	if ctrl.State().Playing {
		verb = "Playing"
	}
	shared.FollowupEphemeral(s, i, fmt.Sprintf("%s **%s** `%s → %s`.", verb,
		shared.EscapeText(song.Title), shared.FormatSeconds(seg.StartTime), shared.FormatSeconds(seg.EndTime)))
}

func (p *Panel) stop(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p.sessions.Get(i.GuildID).Reset()
	if err := p.voice.Leave(i.GuildID); err != nil {
		p.log.Warn().Err(err).Str("guild_id", i.GuildID).Msg("voice leave failed")
	}
	shared.RespondEphemeral(s, i, "Stopped.")
}

func (p *Panel) fail(s *discordgo.Session, i *discordgo.InteractionCreate, err error) {
	shared.RespondEphemeral(s, i, library.Describe(err))
}

func (p *Panel) setup(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !hasManageChannelsPermission(i) {
		shared.RespondEphemeral(s, i, "You need the Manage Channels permission.")
		return
	}

	categoryID, channelName := parseSetupOptions(i.ApplicationCommandData().Options)
	if channelName == "" {
		channelName = DefaultChannelName
	}

	channelID := ""
	if categoryID == "" && channelName == DefaultChannelName {
		if entry, ok, _ := p.entry(i.GuildID); ok && entry.ChannelID != "" {
			if _, err := s.Channel(entry.ChannelID); err == nil {
				channelID = entry.ChannelID
			}
		}
	}

	if channelID == "" {
		if channels, err := s.GuildChannels(i.GuildID); err == nil {
			channelID = findTextChannel(channels, channelName, categoryID)
		}
	}

	if channelID == "" {
		channel, err := s.GuildChannelCreateComplex(i.GuildID, discordgo.GuildChannelCreateData{
			Name:     channelName,
			Type:     discordgo.ChannelTypeGuildText,
			ParentID: categoryID,
		})
		if err != nil {
			p.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to create panel channel")
			shared.RespondEphemeral(s, i, "Could not create the panel channel.")
			return
		}
		channelID = channel.ID
	}

	if entry, ok, _ := p.entry(i.GuildID); ok && entry.MessageID != "" {
		if err := s.ChannelMessageDelete(entry.ChannelID, entry.MessageID); err != nil {
			p.log.Debug().Err(err).Msg("failed to delete previous panel message")
		}
	}

	msg, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Components: p.Components(i.GuildID),
		Flags:      discordgo.MessageFlagsIsComponentsV2,
	})
	if err != nil {
		p.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to send panel message")
		shared.RespondEphemeral(s, i, "Could not post the panel message.")
		return
	}

	p.setEntry(database.PanelEntry{GuildID: i.GuildID, ChannelID: channelID, MessageID: msg.ID})
	if err := p.Update(i.GuildID); err != nil {
		p.log.Debug().Err(err).Msg("initial panel update failed")
	}

	shared.RespondEphemeral(s, i, fmt.Sprintf("Player panel posted in <#%s>.", channelID))
}

// HandleComponent applies a panel button to the guild's session. The panel
// message itself is refreshed by the session change hook.
func (p *Panel) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, "panel_") {
		return false
	}
	if i.GuildID == "" {
		return true
	}
	p.Bind(s, i.GuildID)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		p.log.Warn().Err(err).Msg("failed to acknowledge panel button")
	}

	if err := applyButton(p.sessions.Get(i.GuildID), customID); err != nil {
		p.log.Debug().Err(err).Str("guild_id", i.GuildID).Str("button", customID).Msg("panel action ignored")
	}
	return true
}

func applyButton(ctrl *session.Controller, customID string) error {
	st := ctrl.State()
	switch customID {
	case ButtonToggle:
		return ctrl.TogglePlaying()
	case ButtonBack:
		ctrl.SeekBy(-seekStep)
	case ButtonForward:
		ctrl.SeekBy(seekStep)
	case ButtonVolumeDown:
		ctrl.SetVolume(stepVolume(st.Player.Volume, -volumeStep))
	case ButtonVolumeUp:
		ctrl.SetVolume(stepVolume(st.Player.Volume, volumeStep))
	case ButtonMute:
		ctrl.SetMuted(!st.Player.Muted)
	default:
		return fmt.Errorf("unknown panel button %q", customID)
	}
	return nil
}

func stepVolume(level, delta float64) float64 {
	next := math.Round((level+delta)*10) / 10
	return max(0, min(1, next))
}

func parseSetupOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, string) {
	var categoryID, channelName string
	for _, opt := range opts {
		switch opt.Name {
		case "category":
			if v, ok := opt.Value.(string); ok {
				categoryID = v
			}
		case "channel_name":
			channelName = strings.TrimSpace(opt.StringValue())
		}
	}
	return categoryID, channelName
}

func findTextChannel(channels []*discordgo.Channel, name, categoryID string) string {
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText || ch.Name != name {
			continue
		}
		if categoryID == "" || ch.ParentID == categoryID {
			return ch.ID
		}
	}
	return ""
}

func hasManageChannelsPermission(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	return i.Member.Permissions&discordgo.PermissionManageChannels != 0
}
