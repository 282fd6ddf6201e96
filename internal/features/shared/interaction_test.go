package shared

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "0:00.0", FormatSeconds(0))
	assert.Equal(t, "0:30.0", FormatSeconds(30))
	assert.Equal(t, "0:45.2", FormatSeconds(45.2))
	assert.Equal(t, "2:05.5", FormatSeconds(125.5))
	assert.Equal(t, "0:00.0", FormatSeconds(-3))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc…", Truncate("abcdefg", 4))
	assert.Equal(t, "ün…", Truncate("ünïcode", 3))
}

func TestEscapeText(t *testing.T) {
	assert.Equal(t, `\*bold\* \_x\_`, EscapeText("*bold* _x_"))
}

func TestModalInputValue(t *testing.T) {
	data := discordgo.ModalSubmitInteractionData{
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: "title", Value: "Stronger"},
			}},
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{CustomID: "artist", Value: "Kanye West"},
			}},
		},
	}

	assert.Equal(t, "Stronger", ModalInputValue(data, "title"))
	assert.Equal(t, "Kanye West", ModalInputValue(data, "artist"))
	assert.Empty(t, ModalInputValue(data, "missing"))
}

func TestGetInteractionUserID(t *testing.T) {
	member := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m1"}},
	}}
	direct := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u1"},
	}}

	assert.Equal(t, "m1", GetInteractionUserID(member))
	assert.Equal(t, "u1", GetInteractionUserID(direct))
	assert.Empty(t, GetInteractionUserID(nil))
}

func TestGetOptions(t *testing.T) {
	opts := []*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "Kanye"},
		{Name: "song", Type: discordgo.ApplicationCommandOptionInteger, Value: float64(2)},
		{Name: "start", Type: discordgo.ApplicationCommandOptionNumber, Value: 30.5},
	}

	assert.Equal(t, "Kanye", GetOptionString(opts, "name"))
	assert.Equal(t, 2, GetOptionInt(opts, "song"))
	start, ok := GetOptionFloat(opts, "start")
	assert.True(t, ok)
	assert.InDelta(t, 30.5, start, 0.0001)
	_, ok = GetOptionFloat(opts, "end")
	assert.False(t, ok)
}
