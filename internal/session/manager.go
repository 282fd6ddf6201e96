package session

import (
	"sync"
)

// ControllerFactory builds the controller for one guild.
type ControllerFactory func(guildID string) *Controller

type guildSession struct {
	controller *Controller
	lyricistID string
}

// Manager keeps one playback session per guild together with the lyricist
// that guild has open.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*guildSession
	factory  ControllerFactory
}

func NewManager(factory ControllerFactory) *Manager {
	return &Manager{
		sessions: make(map[string]*guildSession),
		factory:  factory,
	}
}

func (m *Manager) Get(guildID string) *Controller {
	return m.get(guildID).controller
}

func (m *Manager) get(guildID string) *guildSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[guildID]; ok {
		return s
	}
	s := &guildSession{controller: m.factory(guildID)}
	m.sessions[guildID] = s
	return s
}

// Open switches the guild to a lyricist. Leaving another lyricist resets the
// session.
func (m *Manager) Open(guildID, lyricistID string) *Controller {
	s := m.get(guildID)

	m.mu.Lock()
	previous := s.lyricistID
	s.lyricistID = lyricistID
	m.mu.Unlock()

	if previous != "" && previous != lyricistID {
		s.controller.Reset()
	}
	return s.controller
}

// Lyricist returns the lyricist open in a guild.
func (m *Manager) Lyricist(guildID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[guildID]; ok {
		return s.lyricistID
	}
	return ""
}

// Viewing returns the guilds that have lyricistID open.
func (m *Manager) Viewing(lyricistID string) map[string]*Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]*Controller)
	for guildID, s := range m.sessions {
		if s.lyricistID == lyricistID {
			out[guildID] = s.controller
		}
	}
	return out
}

// Len returns the number of guild sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Playing counts the sessions that are currently playing.
func (m *Manager) Playing() int {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, s := range m.sessions {
		controllers = append(controllers, s.controller)
	}
	m.mu.Unlock()

	n := 0
	for _, c := range controllers {
		if c.State().Playing {
			n++
		}
	}
	return n
}

// Leave resets the session of a guild that navigated away from its lyricist.
func (m *Manager) Leave(guildID string) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	if ok {
		s.lyricistID = ""
	}
	m.mu.Unlock()

	if ok {
		s.controller.Reset()
	}
}

// Remove closes and forgets a guild session.
func (m *Manager) Remove(guildID string) error {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	delete(m.sessions, guildID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return s.controller.Close()
}

func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*guildSession)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.controller.Close()
	}
}
