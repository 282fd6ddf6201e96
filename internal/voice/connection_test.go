package voice

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUserVoiceChannel(t *testing.T) {
	s := &discordgo.Session{State: discordgo.NewState()}
	require.NoError(t, s.State.GuildAdd(&discordgo.Guild{
		ID: "g1",
		VoiceStates: []*discordgo.VoiceState{
			{UserID: "u1", ChannelID: "vc1", GuildID: "g1"},
		},
	}))

	channel, err := findUserVoiceChannel(s, "g1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "vc1", channel)

	_, err = findUserVoiceChannel(s, "g1", "u2")
	assert.ErrorIs(t, err, ErrNoVoiceChannel)
}

func TestConnectionsReuseAndLeave(t *testing.T) {
	m := NewConnections()

	c := m.Get("g1")
	assert.Same(t, c, m.Get("g1"))
	assert.NoError(t, m.Leave("g1"))
	assert.NotSame(t, c, m.Get("g1"))
	m.Close()
}
