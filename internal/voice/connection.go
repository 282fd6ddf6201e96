package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/internal/playback"
)

var (
	ErrNoVoiceChannel = errors.New("user is not in a voice channel")
	ErrNotConnected   = errors.New("voice connection not established")
	ErrSendTimeout    = errors.New("timed out sending opus frame")
)

const sendTimeout = time.Second

// Connection is the bot's voice link in one guild.
type Connection struct {
	guildID string

	mu sync.Mutex
	vc *discordgo.VoiceConnection
}

func NewConnection(guildID string) *Connection {
	return &Connection{guildID: guildID}
}

func (c *Connection) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc != nil
}

// Join connects through s to the voice channel userID is in, unless already
// connected.
func (c *Connection) Join(s *discordgo.Session, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		return nil
	}
	if s == nil {
		return fmt.Errorf("discord session is nil")
	}

	channelID, err := findUserVoiceChannel(s, c.guildID, userID)
	if err != nil {
		return err
	}

	vc, err := s.ChannelVoiceJoin(c.guildID, channelID, false, true)
	if err != nil {
		return err
	}
	c.vc = vc
	return nil
}

func (c *Connection) Send(ctx context.Context, packet []byte) error {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()

	if vc == nil || !vc.Ready {
		return ErrNotConnected
	}

	select {
	case vc.OpusSend <- packet:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sendTimeout):
		return ErrSendTimeout
	}
}

func (c *Connection) Speaking(speaking bool) {
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()

	if vc == nil || !vc.Ready {
		return
	}
	_ = vc.Speaking(speaking)
}

func (c *Connection) Disconnect() error {
	c.mu.Lock()
	vc := c.vc
	c.vc = nil
	c.mu.Unlock()

	if vc == nil {
		return nil
	}
	return vc.Disconnect()
}

// MediaFactory opens voice streams through this connection. Opening fails
// until Join succeeded.
func (c *Connection) MediaFactory(decode Decoder, logger zerolog.Logger) playback.MediaFactory {
	return func(_ context.Context, url string) (playback.Media, error) {
		if !c.Connected() {
			return nil, ErrNotConnected
		}
		return NewStream(c, decode, url, logger), nil
	}
}

// Connections holds one Connection per guild.
type Connections struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

func NewConnections() *Connections {
	return &Connections{conns: make(map[string]*Connection)}
}

func (m *Connections) Get(guildID string) *Connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conns[guildID]; ok {
		return c
	}
	c := NewConnection(guildID)
	m.conns[guildID] = c
	return c
}

func (m *Connections) Leave(guildID string) error {
	m.mu.Lock()
	c, ok := m.conns[guildID]
	delete(m.conns, guildID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Disconnect()
}

func (m *Connections) Close() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	for _, c := range conns {
		_ = c.Disconnect()
	}
}

func findUserVoiceChannel(s *discordgo.Session, guildID string, userID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("discord session is nil")
	}

	var guild *discordgo.Guild
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			guild = g
		}
	}
	if guild == nil {
		g, err := s.Guild(guildID)
		if err != nil {
			return "", err
		}
		guild = g
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}

	return "", ErrNoVoiceChannel
}
