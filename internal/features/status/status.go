// Package status reports bot health: gateway latency, shards and the state of
// the backing services.
package status

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const RefreshButtonID = "status_refresh"

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "status",
		Description: "Show bot and playback service status",
	},
}

// Health describes the services the bot depends on.
type Health struct {
	Database       bool
	Redis          bool
	Catalog        bool
	RemotePlayback bool
	Sessions       int
}

// Probe reports current service health.
type Probe func() Health

type Handlers struct {
	probe     Probe
	startedAt time.Time
	log       zerolog.Logger
}

func New(probe Probe, logger zerolog.Logger) *Handlers {
	return &Handlers{
		probe:     probe,
		startedAt: time.Now(),
		log:       logger.With().Str("feature", "status").Logger(),
	}
}

// Gateway is the shard view rendered by the status message.
type Gateway struct {
	Latency time.Duration
	Guilds  int
	Shards  int
	ShardID int
}

func gatewayOf(s *discordgo.Session) Gateway {
	gw := Gateway{
		Latency: s.HeartbeatLatency().Round(time.Millisecond),
		Shards:  max(1, s.ShardCount),
		ShardID: s.ShardID,
	}
	if s.State != nil {
		gw.Guilds = len(s.State.Guilds)
	}
	return gw
}

func BuildComponents(gw Gateway, health Health, uptime time.Duration, allocMB float64, now time.Time) []discordgo.MessageComponent {
	accent := 0xC8A2C8
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	services := []string{
		fmt.Sprintf("%s Database", mark(health.Database)),
		fmt.Sprintf("%s Redis", mark(health.Redis)),
		fmt.Sprintf("%s Spotify search", mark(health.Catalog)),
		fmt.Sprintf("%s Spotify playback", mark(health.RemotePlayback)),
	}

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &accent,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: "**Lyricist status**"},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.Section{
					Components: []discordgo.MessageComponent{
						discordgo.TextDisplay{Content: fmt.Sprintf("**Gateway latency:** %s", gw.Latency)},
						discordgo.TextDisplay{Content: fmt.Sprintf("**Servers:** %d • **Shard:** %d/%d", gw.Guilds, gw.ShardID+1, gw.Shards)},
						discordgo.TextDisplay{Content: fmt.Sprintf("**Uptime:** %s • **Memory:** %.2f MB • **Sessions:** %d", uptime, allocMB, health.Sessions)},
					},
					Accessory: discordgo.Button{
						Style:    discordgo.PrimaryButton,
						Label:    "Refresh",
						CustomID: RefreshButtonID,
					},
				},
				discordgo.TextDisplay{Content: strings.Join(services, "\n")},
				discordgo.TextDisplay{Content: fmt.Sprintf("-# updated <t:%d:R>", now.Unix())},
			},
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "🟢"
	}
	return "⚪"
}

func (h *Handlers) respond(s *discordgo.Session, i *discordgo.InteractionCreate, respType discordgo.InteractionResponseType) {
	var health Health
	if h.probe != nil {
		health = h.probe()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	components := BuildComponents(
		gatewayOf(s),
		health,
		time.Since(h.startedAt).Round(time.Second),
		float64(mem.Alloc)/1024.0/1024.0,
		time.Now(),
	)

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: respType,
		Data: &discordgo.InteractionResponseData{
			Components: components,
			Flags:      discordgo.MessageFlagsIsComponentsV2 | discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to respond with status")
	}
}

func (h *Handlers) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.ApplicationCommandData().Name != "status" {
		return false
	}
	h.respond(s, i, discordgo.InteractionResponseChannelMessageWithSource)
	return true
}

func (h *Handlers) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.MessageComponentData().CustomID != RefreshButtonID {
		return false
	}
	h.respond(s, i, discordgo.InteractionResponseUpdateMessage)
	return true
}
