package speaker

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFormat = beep.Format{SampleRate: 1000, NumChannels: 2, Precision: 2}

type fakeOutput struct {
	mu        sync.Mutex
	streamers []beep.Streamer
}

func (o *fakeOutput) SampleRate() beep.SampleRate { return testFormat.SampleRate }
func (o *fakeOutput) Play(s beep.Streamer)        { o.streamers = append(o.streamers, s) }
func (o *fakeOutput) Lock()                       { o.mu.Lock() }
func (o *fakeOutput) Unlock()                     { o.mu.Unlock() }

// pull mixes up to n chunks from every queued streamer, like the device would.
func (o *fakeOutput) pull(chunks int) {
	buf := make([][2]float64, 256)
	for i := 0; i < chunks; i++ {
		o.Lock()
		for _, s := range o.streamers {
			s.Stream(buf)
		}
		o.Unlock()
	}
}

type nopSeekCloser struct {
	beep.StreamSeeker
}

func (nopSeekCloser) Close() error { return nil }

func newTestMedia(samples int) (*Media, *fakeOutput) {
	buf := beep.NewBuffer(testFormat)
	buf.Append(beep.Silence(samples))

	out := &fakeOutput{}
	return NewMedia(out, nopSeekCloser{buf.Streamer(0, buf.Len())}, testFormat), out
}

func TestMediaSeekAndPosition(t *testing.T) {
	m, _ := newTestMedia(1000)

	require.NoError(t, m.Seek(0.25))
	assert.InDelta(t, 0.25, m.CurrentTime(), 0.001)

	require.NoError(t, m.Seek(5))
	assert.InDelta(t, 1.0, m.CurrentTime(), 0.001)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Seek(0), ErrMediaClosed)
}

func TestMediaSignalsEOF(t *testing.T) {
	m, out := newTestMedia(500)

	require.NoError(t, m.Play(context.Background()))
	out.pull(20)

	select {
	case u := <-m.TimeUpdates():
		assert.True(t, u.EOF)
		assert.InDelta(t, 0.5, u.Position, 0.001)
	case <-time.After(time.Second):
		t.Fatal("no EOF update")
	}

	// A drained track can be replayed after seeking back.
	require.NoError(t, m.Seek(0))
	require.NoError(t, m.Play(context.Background()))
	assert.Len(t, out.streamers, 2)
	require.NoError(t, m.Close())
}

func TestMediaPauseHoldsPosition(t *testing.T) {
	m, out := newTestMedia(5000)

	require.NoError(t, m.Play(context.Background()))
	out.pull(2)
	m.Pause()

	before := m.CurrentTime()
	out.pull(4)
	assert.InDelta(t, before, m.CurrentTime(), 0.0001)
	require.NoError(t, m.Close())
}

func TestMediaVolume(t *testing.T) {
	m, _ := newTestMedia(100)
	require.NoError(t, m.Play(context.Background()))

	m.SetVolume(0.5)
	assert.InDelta(t, -1.0, m.vol.Volume, 0.0001)
	assert.False(t, m.vol.Silent)

	m.SetMuted(true)
	assert.True(t, m.vol.Silent)

	m.SetMuted(false)
	m.SetVolume(0)
	assert.True(t, m.vol.Silent)
	require.NoError(t, m.Close())
}

func TestFactoryRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Factory(&fakeOutput{}, srv.Client(), 0)(context.Background(), srv.URL+"/song.mp3")
	assert.ErrorContains(t, err, "status 404")
}

func TestDownloadEnforcesLimit(t *testing.T) {
	body := bytes.Repeat([]byte{0xff}, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked.mp3" {
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	_, err := download(context.Background(), srv.Client(), srv.URL+"/sized.mp3", 16)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = download(context.Background(), srv.Client(), srv.URL+"/chunked.mp3", 16)
	assert.ErrorIs(t, err, ErrTooLarge)

	data, err := download(context.Background(), srv.Client(), srv.URL+"/chunked.mp3", 64)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}
