package shared

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var AccentColor = 0xC9A0FF

const maxContentLength = 2000

func noticeComponents(content string) []discordgo.MessageComponent {
	divider := true
	spacing := discordgo.SeparatorSpacingSizeSmall

	return []discordgo.MessageComponent{
		discordgo.Container{
			AccentColor: &AccentColor,
			Components: []discordgo.MessageComponent{
				discordgo.TextDisplay{Content: "Lyricist"},
				discordgo.Separator{Divider: &divider, Spacing: &spacing},
				discordgo.TextDisplay{Content: Truncate(content, maxContentLength)},
			},
		},
	}
}

func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if s == nil || i == nil {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Components: noticeComponents(content),
			Flags:      discordgo.MessageFlagsIsComponentsV2 | discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to respond")
	}
}

func RespondComponents(s *discordgo.Session, i *discordgo.InteractionCreate, components []discordgo.MessageComponent, ephemeral bool) {
	if s == nil || i == nil {
		return
	}

	flags := discordgo.MessageFlagsIsComponentsV2
	if ephemeral {
		flags |= discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Components: components,
			Flags:      flags,
		},
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to respond with components")
	}
}

// DeferEphemeral acknowledges an interaction whose work may exceed the
// three second response window.
func DeferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func FollowupEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	FollowupComponents(s, i, noticeComponents(content))
}

func FollowupComponents(s *discordgo.Session, i *discordgo.InteractionCreate, components []discordgo.MessageComponent) {
	if s == nil || i == nil {
		return
	}

	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Components: components,
		Flags:      discordgo.MessageFlagsEphemeral | discordgo.MessageFlagsIsComponentsV2,
	})
	if err != nil {
		log.Warn().Err(err).Msg("followup failed")
	}
}

func GetSubcommand(data discordgo.ApplicationCommandInteractionData) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionSubCommand {
			return opt
		}
	}
	return nil
}

func GetOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, opt := range options {
		if opt.Name == name {
			return opt, true
		}
	}
	return nil, false
}

func GetOptionString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := GetOption(options, name); ok {
		return opt.StringValue()
	}
	return ""
}

func GetOptionInt(options []*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if opt, ok := GetOption(options, name); ok {
		return int(opt.IntValue())
	}
	return 0
}

func GetOptionFloat(options []*discordgo.ApplicationCommandInteractionDataOption, name string) (float64, bool) {
	if opt, ok := GetOption(options, name); ok {
		return opt.FloatValue(), true
	}
	return 0, false
}

func GetInteractionUserID(i *discordgo.InteractionCreate) string {
	if i == nil {
		return ""
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// ModalInputValue finds a text input by custom ID in a submitted modal.
func ModalInputValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, component := range data.Components {
		var row discordgo.ActionsRow
		switch r := component.(type) {
		case discordgo.ActionsRow:
			row = r
		case *discordgo.ActionsRow:
			row = *r
		default:
			continue
		}
		for _, inner := range row.Components {
			switch input := inner.(type) {
			case discordgo.TextInput:
				if input.CustomID == customID {
					return input.Value
				}
			case *discordgo.TextInput:
				if input.CustomID == customID {
					return input.Value
				}
			}
		}
	}
	return ""
}

func TextInputRow(customID, label, value string, style discordgo.TextInputStyle, required bool) discordgo.ActionsRow {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID: customID,
				Label:    label,
				Style:    style,
				Value:    value,
				Required: required,
			},
		},
	}
}

func EscapeText(text string) string {
	replacer := strings.NewReplacer(
		"*", "\\*",
		"_", "\\_",
		"`", "\\`",
		"~", "\\~",
		"|", "\\|",
		">", "\\>",
	)
	return replacer.Replace(text)
}

func Truncate(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	if max == 1 {
		return string(runes[:1])
	}
	return string(runes[:max-1]) + "…"
}

// FormatSeconds renders a position as m:ss.s, the precision segments are
// edited at.
func FormatSeconds(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	minutes := int(sec) / 60
	rest := sec - float64(minutes*60)
	return fmt.Sprintf("%d:%04.1f", minutes, rest)
}
