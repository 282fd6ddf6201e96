package session

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuckD30/lyricist/internal/lyricist"
	"github.com/ChuckD30/lyricist/internal/playback"
)

const fallbackURL = "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"

type fakeBackend struct {
	kind  playback.Kind
	hooks playback.Hooks

	mu         sync.Mutex
	calls      []string
	src        playback.Source
	window     playback.Window
	playing    bool
	position   float64
	volume     float64
	closed     bool
	failOnPlay error
}

func (b *fakeBackend) Kind() playback.Kind { return b.kind }

func (b *fakeBackend) Load(src playback.Source, w playback.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "load")
	b.src, b.window, b.position, b.playing = src, w, w.Start, false
}

func (b *fakeBackend) SetWindow(w playback.Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "window")
	b.window = w
	if !b.playing || !w.Contains(b.position) {
		b.position = w.Start
	}
}

func (b *fakeBackend) SetPlaying(playing bool) {
	b.mu.Lock()
	if !playing {
		b.calls = append(b.calls, "pause")
		b.playing = false
		b.mu.Unlock()
		return
	}
	b.calls = append(b.calls, "play")
	if b.failOnPlay != nil {
		err := b.failOnPlay
		b.mu.Unlock()
		b.hooks.OnFailed(err)
		return
	}
	b.playing = true
	b.position = b.window.StartFrom(b.position)
	b.mu.Unlock()
}

func (b *fakeBackend) Seek(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "seek")
	b.position = b.window.Clamp(t)
}

func (b *fakeBackend) SetVolume(level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = level
}

func (b *fakeBackend) SetMuted(bool) {}

func (b *fakeBackend) Snapshot() playback.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return playback.Snapshot{
		Kind:     b.kind,
		Source:   b.src,
		Window:   b.window,
		Playing:  b.playing,
		Position: b.position,
		Volume:   b.volume,
	}
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, "close")
	b.closed = true
	return nil
}

func (b *fakeBackend) end() {
	b.mu.Lock()
	b.playing = false
	b.position = b.window.Start
	b.mu.Unlock()
	b.hooks.OnEnded()
}

func (b *fakeBackend) setPosition(pos float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.position = pos
}

func (b *fakeBackend) callList() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type fakeBackends struct {
	created    []*fakeBackend
	failOnPlay error
}

func (f *fakeBackends) factory(kind playback.Kind) BackendFactory {
	return func(hooks playback.Hooks) playback.Backend {
		b := &fakeBackend{kind: kind, hooks: hooks, failOnPlay: f.failOnPlay}
		f.created = append(f.created, b)
		return b
	}
}

func (f *fakeBackends) last() *fakeBackend {
	return f.created[len(f.created)-1]
}

func newTestController() (*Controller, *fakeBackends) {
	fb := &fakeBackends{}
	c := NewController(Backends{
		Local:  fb.factory(playback.KindLocal),
		Remote: fb.factory(playback.KindRemote),
	}, Options{FallbackAudioURL: fallbackURL, Volume: 0.5}, zerolog.Nop())
	return c, fb
}

func localSong() lyricist.Song {
	return lyricist.Song{
		ID:       "song-a",
		Title:    "Stronger",
		AudioURL: "https://cdn.example.com/stronger.mp3",
		Segments: []lyricist.Segment{
			{ID: "seg-x", SongID: "song-a", StartTime: 10, EndTime: 20},
			{ID: "seg-z", SongID: "song-a", StartTime: 40, EndTime: 50},
		},
	}
}

func remoteSong() lyricist.Song {
	return lyricist.Song{
		ID:        "song-b",
		Title:     "Power",
		SpotifyID: "abc",
		Segments:  []lyricist.Segment{{ID: "seg-y", SongID: "song-b", StartTime: 30, EndTime: 45}},
	}
}

func TestPlaySameSelectionToggles(t *testing.T) {
	c, fb := newTestController()
	song := localSong()

	require.NoError(t, c.Play(song, song.Segments[0]))
	assert.True(t, c.State().Playing)

	fb.last().setPosition(14)
	require.NoError(t, c.Play(song, song.Segments[0]))
	st := c.State()
	assert.False(t, st.Playing)
	assert.Equal(t, 14.0, st.Player.Position)

	require.NoError(t, c.Play(song, song.Segments[0]))
	assert.True(t, c.State().Playing)
	assert.Equal(t, 14.0, c.State().Player.Position)

	assert.Len(t, fb.created, 1)
	assert.Equal(t, []string{"load", "play", "pause", "play"}, fb.last().callList())
}

func TestPlayNewSelectionStartsFromSegmentStart(t *testing.T) {
	c, fb := newTestController()
	song := localSong()

	require.NoError(t, c.Play(song, song.Segments[0]))
	require.NoError(t, c.Play(song, song.Segments[0]))
	assert.False(t, c.State().Playing)

	require.NoError(t, c.Play(song, song.Segments[1]))
	st := c.State()
	assert.True(t, st.Playing)
	assert.Equal(t, "seg-z", st.Segment.ID)
	assert.Equal(t, 40.0, st.Player.Position)
	assert.Equal(t, playback.Window{Start: 40, End: 50}, st.Player.Window)
	assert.Len(t, fb.created, 1)
}

func TestPlayDispatchesRemoteSongs(t *testing.T) {
	c, fb := newTestController()
	song := remoteSong()

	require.NoError(t, c.Play(song, song.Segments[0]))

	b := fb.last()
	assert.Equal(t, playback.KindRemote, b.kind)
	snap := b.Snapshot()
	assert.Equal(t, playback.Source{TrackURI: "spotify:track:abc"}, snap.Source)
	assert.Equal(t, playback.Window{Start: 30, End: 45}, snap.Window)
	assert.True(t, snap.Playing)
	assert.Equal(t, 0.5, snap.Volume)
}

func TestPlayFallsBackToPlaceholderURL(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	song.AudioURL = ""

	require.NoError(t, c.Play(song, song.Segments[0]))
	assert.Equal(t, fallbackURL, fb.last().Snapshot().Source.URL)
	assert.True(t, c.State().Playing)
}

func TestSwitchingBackendKindClosesPrevious(t *testing.T) {
	c, fb := newTestController()
	local, remote := localSong(), remoteSong()

	require.NoError(t, c.Play(local, local.Segments[0]))
	first := fb.last()
	require.NoError(t, c.Play(remote, remote.Segments[0]))

	assert.True(t, first.closed)
	assert.Len(t, fb.created, 2)

	first.end()
	assert.True(t, c.State().Playing, "signals from a closed backend are ignored")
}

func TestEndedClearsPlaying(t *testing.T) {
	c, fb := newTestController()
	song := localSong()

	var mu sync.Mutex
	var changes []bool
	c.OnChange(func(st State) {
		mu.Lock()
		changes = append(changes, st.Playing)
		mu.Unlock()
	})

	require.NoError(t, c.Play(song, song.Segments[0]))
	fb.last().end()

	st := c.State()
	assert.False(t, st.Playing)
	assert.Equal(t, "seg-x", st.Segment.ID)
	assert.Equal(t, 10.0, st.Player.Position)

	mu.Lock()
	assert.Equal(t, []bool{true, false}, changes)
	mu.Unlock()
}

func TestPlayFailureRevertsPlaying(t *testing.T) {
	c, fb := newTestController()
	fb.failOnPlay = errors.New("device unavailable")
	song := remoteSong()

	require.NoError(t, c.Play(song, song.Segments[0]))
	st := c.State()
	assert.False(t, st.Playing)
	assert.Equal(t, "seg-y", st.Segment.ID)
}

func TestPlayRejectsInvalidWindow(t *testing.T) {
	c, fb := newTestController()
	song := localSong()

	err := c.Play(song, lyricist.Segment{ID: "bad", StartTime: 20, EndTime: 10})
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.Empty(t, fb.created)
	assert.False(t, c.State().Selected())
}

func TestRefreshEndTimeEditKeepsPlaying(t *testing.T) {
	c, fb := newTestController()
	song := localSong()

	require.NoError(t, c.Play(song, song.Segments[0]))
	fb.last().setPosition(15)

	edited := localSong()
	edited.Segments[0].EndTime = 30
	edited.Segments[0].Text = "edited"
	c.Refresh([]lyricist.Song{remoteSong(), edited})

	st := c.State()
	assert.True(t, st.Playing)
	assert.Equal(t, "edited", st.Segment.Text)
	assert.Equal(t, 15.0, st.Player.Position)
	assert.Equal(t, playback.Window{Start: 10, End: 30}, st.Player.Window)
	assert.Equal(t, []string{"load", "play", "window"}, fb.last().callList())
}

func TestRefreshReplacesStaleCopy(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	edited := localSong()
	edited.Title = "Stronger (Live)"
	c.Refresh([]lyricist.Song{edited})

	assert.Equal(t, "Stronger (Live)", c.State().Song.Title)
	assert.Equal(t, []string{"load", "play"}, fb.last().callList())
}

func TestRefreshSourceChangeReloads(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	edited := localSong()
	edited.AudioURL = "https://cdn.example.com/stronger-remaster.mp3"
	c.Refresh([]lyricist.Song{edited})

	b := fb.last()
	assert.Equal(t, []string{"load", "play", "load", "play"}, b.callList())
	assert.Equal(t, edited.AudioURL, b.Snapshot().Source.URL)
	assert.True(t, c.State().Playing)
}

func TestRefreshDeletedSegmentStopsAndClears(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	edited := localSong()
	edited.Segments = edited.Segments[1:]
	c.Refresh([]lyricist.Song{edited})

	st := c.State()
	assert.False(t, st.Selected())
	assert.False(t, st.Playing)
	assert.False(t, fb.last().Snapshot().Playing)
}

func TestRefreshDeletedSongStopsAndClears(t *testing.T) {
	c, _ := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	c.Refresh(nil)
	assert.False(t, c.State().Selected())
}

func TestTogglePlayingWithoutSelection(t *testing.T) {
	c, _ := newTestController()
	assert.ErrorIs(t, c.TogglePlaying(), ErrNoSelection)
}

func TestSeekByAndVolume(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	c.SeekBy(5)
	assert.Equal(t, 15.0, c.State().Player.Position)
	c.SeekBy(-20)
	assert.Equal(t, 10.0, c.State().Player.Position)

	c.SetVolume(2)
	assert.Equal(t, 1.0, fb.last().Snapshot().Volume)
}

func TestSetVolumeRejectsNaN(t *testing.T) {
	c, fb := newTestController()
	c.SetVolume(math.NaN())
	assert.Equal(t, 0.0, c.State().Player.Volume)

	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))
	assert.Equal(t, 0.0, fb.last().Snapshot().Volume)
}

func TestResetAndClose(t *testing.T) {
	c, fb := newTestController()
	song := localSong()
	require.NoError(t, c.Play(song, song.Segments[0]))

	c.Reset()
	assert.False(t, c.State().Selected())
	assert.False(t, fb.last().Snapshot().Playing)

	require.NoError(t, c.Close())
	assert.True(t, fb.last().closed)
	assert.ErrorIs(t, c.Play(song, song.Segments[0]), ErrNoBackend)
}
