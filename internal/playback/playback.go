// Package playback plays a bounded window of a track on either a local media
// source or a remote Spotify Connect device.
package playback

import (
	"errors"
	"math"
)

var (
	ErrNoSource    = errors.New("no playback source loaded")
	ErrUnavailable = errors.New("remote playback unavailable")
	ErrDeviceLost  = errors.New("remote device lost")
	ErrLostControl = errors.New("remote device no longer under control")
)

type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// Window is the [Start, End) range of a track, in seconds.
type Window struct {
	Start float64
	End   float64
}

func (w Window) Valid() bool {
	return w.Start >= 0 && w.Start < w.End && !math.IsInf(w.End, 0)
}

func (w Window) Contains(t float64) bool {
	return t >= w.Start && t < w.End
}

// Clamp limits t to [Start, End].
func (w Window) Clamp(t float64) float64 {
	if math.IsNaN(t) || t < w.Start {
		return w.Start
	}
	if t > w.End {
		return w.End
	}
	return t
}

// StartFrom returns the position playback should resume from.
func (w Window) StartFrom(pos float64) float64 {
	if w.Contains(pos) {
		return pos
	}
	return w.Start
}

func (w Window) Overrun(pos float64) bool {
	return pos >= w.End
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}

type Source struct {
	URL      string
	TrackURI string
}

func (s Source) IsZero() bool {
	return s.URL == "" && s.TrackURI == ""
}

// Hooks are always invoked without any backend lock held.
type Hooks struct {
	OnPosition func(pos float64)
	OnEnded    func()
	OnFailed   func(err error)
}

func (h Hooks) position(pos float64) {
	if h.OnPosition != nil {
		h.OnPosition(pos)
	}
}

func (h Hooks) ended() {
	if h.OnEnded != nil {
		h.OnEnded()
	}
}

func (h Hooks) failed(err error) {
	if h.OnFailed != nil {
		h.OnFailed(err)
	}
}

type DeviceState string

const (
	DeviceNone         DeviceState = ""
	DeviceUnavailable  DeviceState = "unavailable"
	DeviceDisconnected DeviceState = "disconnected"
	DeviceConnecting   DeviceState = "connecting"
	DeviceReady        DeviceState = "ready"
	DevicePlaying      DeviceState = "playing"
	DevicePaused       DeviceState = "paused"
)

type Snapshot struct {
	Kind     Kind
	Source   Source
	Window   Window
	Playing  bool
	Position float64
	Volume   float64
	Muted    bool
	Device   DeviceState
}

// Backend is the capability set shared by the local and remote players.
type Backend interface {
	Kind() Kind
	// Load replaces the source and window. Playback stops and the position
	// returns to the window start.
	Load(src Source, w Window)
	// SetWindow changes the bounds without restarting an active playback
	// unless its position falls outside the new window.
	SetWindow(w Window)
	SetPlaying(playing bool)
	Seek(t float64)
	SetVolume(level float64)
	SetMuted(muted bool)
	Snapshot() Snapshot
	Close() error
}

func clampVolume(level float64) float64 {
	if math.IsNaN(level) || level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

func seconds(ms int64) float64 {
	return float64(ms) / 1000
}

func millis(sec float64) int64 {
	return int64(math.Round(sec * 1000))
}
