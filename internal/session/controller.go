package session

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/internal/lyricist"
	"github.com/ChuckD30/lyricist/internal/playback"
)

var (
	ErrNoBackend     = errors.New("no playback backend configured")
	ErrInvalidWindow = errors.New("segment has an invalid time range")
	ErrNoSelection   = errors.New("nothing selected")
)

// BackendFactory builds a backend that reports to hooks.
type BackendFactory func(hooks playback.Hooks) playback.Backend

type Backends struct {
	Local  BackendFactory
	Remote BackendFactory
}

type Options struct {
	FallbackAudioURL string
	Volume           float64
}

// State is what the UI renders for a session.
type State struct {
	Song    *lyricist.Song
	Segment *lyricist.Segment
	Playing bool
	Player  playback.Snapshot
}

func (s State) Selected() bool {
	return s.Song != nil && s.Segment != nil
}

// Controller owns the current song, segment and play intent and routes them
// to the matching backend.
type Controller struct {
	backends Backends
	fallback string
	log      zerolog.Logger

	// opMu serialises operations that drive backends. Hooks never take it.
	opMu sync.Mutex

	mu       sync.Mutex
	song     *lyricist.Song
	segment  *lyricist.Segment
	playing  bool
	active   playback.Backend
	kind     playback.Kind
	volume   float64
	muted    bool
	closed   bool
	onChange func(State)
}

func NewController(backends Backends, opts Options, logger zerolog.Logger) *Controller {
	return &Controller{
		backends: backends,
		fallback: opts.FallbackAudioURL,
		volume:   opts.Volume,
		log:      logger,
	}
}

// OnChange registers fn to be called after selection or play state changes.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Play toggles the current selection or replaces it and starts playing.
func (c *Controller) Play(song lyricist.Song, segment lyricist.Segment) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNoBackend
	}
	if c.isCurrentLocked(song.ID, segment.ID) && c.active != nil {
		c.playing = !c.playing
		playing := c.playing
		backend := c.active
		c.mu.Unlock()

		backend.SetPlaying(playing)
		c.changed()
		return nil
	}
	c.mu.Unlock()

	w := window(segment)
	if !w.Valid() {
		return fmt.Errorf("%w: [%.2f, %.2f)", ErrInvalidWindow, segment.StartTime, segment.EndTime)
	}

	kind, src := c.route(song)
	backend, err := c.backendFor(kind)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.song = &song
	c.segment = &segment
	c.playing = true
	c.mu.Unlock()

	c.log.Debug().
		Str("song_id", song.ID).
		Str("segment_id", segment.ID).
		Str("backend", string(kind)).
		Msg("playing segment")

	backend.Load(src, w)
	backend.SetPlaying(true)
	c.changed()
	return nil
}

// TogglePlaying flips the play state of the current selection.
func (c *Controller) TogglePlaying() error {
	c.mu.Lock()
	if c.song == nil || c.segment == nil {
		c.mu.Unlock()
		return ErrNoSelection
	}
	song, segment := *c.song, *c.segment
	c.mu.Unlock()

	return c.Play(song, segment)
}

// Refresh re-resolves the selection against a freshly loaded song list.
// A deleted song or segment stops playback and clears the selection.
func (c *Controller) Refresh(songs []lyricist.Song) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.song == nil || c.segment == nil {
		c.mu.Unlock()
		return
	}

	fresh, ok := lyricist.FindSong(songs, c.song.ID)
	var seg lyricist.Segment
	if ok {
		seg, ok = fresh.FindSegment(c.segment.ID)
	}
	if !ok || !window(seg).Valid() {
		backend := c.active
		c.clearLocked()
		c.mu.Unlock()

		c.log.Info().Msg("selection removed by refresh; playback stopped")
		if backend != nil {
			backend.SetPlaying(false)
		}
		c.changed()
		return
	}

	oldSong, oldSeg := *c.song, *c.segment
	c.song = &fresh
	c.segment = &seg
	playing := c.playing
	backend := c.active
	c.mu.Unlock()

	oldKind, oldSrc := c.route(oldSong)
	newKind, newSrc := c.route(fresh)
	w := window(seg)

	switch {
	case oldKind != newKind || oldSrc != newSrc || backend == nil:
		next, err := c.backendFor(newKind)
		if err != nil {
			c.log.Error().Err(err).Msg("refresh could not switch backend")
			c.mu.Lock()
			c.playing = false
			c.mu.Unlock()
			break
		}
		next.Load(newSrc, w)
		if playing {
			next.SetPlaying(true)
		}
	case oldSeg.StartTime != seg.StartTime || oldSeg.EndTime != seg.EndTime:
		backend.SetWindow(w)
	}
	c.changed()
}

func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	backend := c.active
	selected := c.segment != nil
	c.mu.Unlock()

	if backend != nil && selected {
		backend.Seek(t)
		c.changed()
	}
}

// SeekBy moves the position relative to the current one.
func (c *Controller) SeekBy(delta float64) {
	st := c.State()
	if !st.Selected() {
		return
	}
	c.Seek(st.Player.Position + delta)
}

func (c *Controller) SetVolume(level float64) {
	c.mu.Lock()
	if math.IsNaN(level) || level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	c.volume = level
	backend := c.active
	c.mu.Unlock()

	if backend != nil {
		backend.SetVolume(level)
	}
	c.changed()
}

func (c *Controller) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	backend := c.active
	c.mu.Unlock()

	if backend != nil {
		backend.SetMuted(muted)
	}
	c.changed()
}

func (c *Controller) State() State {
	c.mu.Lock()
	st := State{Playing: c.playing}
	if c.song != nil {
		song := *c.song
		st.Song = &song
	}
	if c.segment != nil {
		seg := *c.segment
		st.Segment = &seg
	}
	backend := c.active
	volume, muted := c.volume, c.muted
	c.mu.Unlock()

	if backend != nil {
		st.Player = backend.Snapshot()
	} else {
		st.Player = playback.Snapshot{Volume: volume, Muted: muted}
	}
	return st
}

// Reset stops playback and clears the selection, keeping backends for reuse.
func (c *Controller) Reset() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	backend := c.active
	had := c.song != nil
	c.clearLocked()
	c.mu.Unlock()

	if backend != nil {
		backend.SetPlaying(false)
	}
	if had {
		c.changed()
	}
}

// Close tears down the active backend. The controller is unusable afterwards.
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	backend := c.active
	c.active = nil
	c.closed = true
	c.clearLocked()
	c.mu.Unlock()

	if backend == nil {
		return nil
	}
	return backend.Close()
}

func (c *Controller) clearLocked() {
	c.song = nil
	c.segment = nil
	c.playing = false
}

func (c *Controller) isCurrentLocked(songID, segmentID string) bool {
	return c.song != nil && c.segment != nil && c.song.ID == songID && c.segment.ID == segmentID
}

// route picks the backend kind and source for a song.
func (c *Controller) route(song lyricist.Song) (playback.Kind, playback.Source) {
	if song.IsRemote() {
		return playback.KindRemote, playback.Source{TrackURI: song.TrackURI()}
	}
	url := song.AudioURL
	if url == "" {
		url = c.fallback
	}
	return playback.KindLocal, playback.Source{URL: url}
}

// backendFor returns the backend of the given kind, closing the other kind
// when switching. Callers hold opMu.
func (c *Controller) backendFor(kind playback.Kind) (playback.Backend, error) {
	c.mu.Lock()
	if c.active != nil && c.kind == kind {
		backend := c.active
		c.mu.Unlock()
		return backend, nil
	}
	old := c.active
	c.active = nil
	volume, muted := c.volume, c.muted
	c.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			c.log.Warn().Err(err).Str("backend", string(old.Kind())).Msg("failed to close backend")
		}
	}

	factory := c.backends.Local
	if kind == playback.KindRemote {
		factory = c.backends.Remote
	}
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, kind)
	}

	var created playback.Backend
	created = factory(playback.Hooks{
		OnEnded:  func() { c.handleStop(created, nil) },
		OnFailed: func(err error) { c.handleStop(created, err) },
	})
	created.SetVolume(volume)
	created.SetMuted(muted)

	c.mu.Lock()
	c.active = created
	c.kind = kind
	c.mu.Unlock()
	return created, nil
}

// handleStop applies an ended or failed signal from backend b.
func (c *Controller) handleStop(b playback.Backend, err error) {
	// An ended signal racing a restart of the same backend is stale.
	restarted := err == nil && b.Snapshot().Playing

	c.mu.Lock()
	if c.active != b || !c.playing || restarted {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("playback failed")
	}
	c.changed()
}

func (c *Controller) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(c.State())
	}
}

func window(seg lyricist.Segment) playback.Window {
	return playback.Window{Start: seg.StartTime, End: seg.EndTime}
}
