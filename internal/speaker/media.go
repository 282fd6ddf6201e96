// Package speaker plays local audio on the host's sound card. The CLI uses
// it in place of a Discord voice channel.
package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"

	"github.com/ChuckD30/lyricist/internal/playback"
)

const (
	updateInterval = 250 * time.Millisecond

	DefaultMaxDownload int64 = 50 << 20
)

var (
	ErrMediaClosed = errors.New("speaker media closed")
	ErrTooLarge    = errors.New("audio source too large")
)

// Output mixes streamers into an audio device. Lock guards every mutation
// of a streamer that is currently being mixed.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
}

// Media plays one decoded track through an Output.
type Media struct {
	out     Output
	stream  beep.StreamSeekCloser
	format  beep.Format
	updates chan playback.TimeUpdate

	mu      sync.Mutex
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	level   float64
	muted   bool
	playing bool
	queued  bool
	closed  bool
	chain   uint64
	cancel  context.CancelFunc
}

func NewMedia(out Output, stream beep.StreamSeekCloser, format beep.Format) *Media {
	return &Media{
		out:     out,
		stream:  stream,
		format:  format,
		updates: make(chan playback.TimeUpdate, 1),
		level:   1,
	}
}

var _ playback.Media = (*Media)(nil)

func (m *Media) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMediaClosed
	}
	if m.playing {
		return nil
	}

	if !m.queued {
		m.queueLocked()
	} else {
		m.out.Lock()
		m.ctrl.Paused = false
		m.out.Unlock()
	}
	m.playing = true

	tickCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	go m.tick(tickCtx)
	return nil
}

// queueLocked hands a fresh streamer chain to the output. The previous
// chain, if any, has already drained.
func (m *Media) queueLocked() {
	m.chain++
	chain := m.chain

	m.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, m.format.SampleRate, m.out.SampleRate(), m.stream)}
	m.vol = &effects.Volume{Streamer: m.ctrl, Base: 2}
	m.applyVolume()
	m.queued = true

	m.out.Play(beep.Seq(m.vol, beep.Callback(func() {
		// Runs with the output locked.
		go m.drained(chain)
	})))
}

func (m *Media) drained(chain uint64) {
	m.mu.Lock()
	if m.chain != chain || m.closed {
		m.mu.Unlock()
		return
	}
	m.queued = false
	wasPlaying := m.playing
	m.stopTickLocked()
	m.playing = false
	pos := m.positionLocked()
	m.mu.Unlock()

	if wasPlaying {
		m.emit(playback.TimeUpdate{Position: pos, EOF: true})
	}
}

func (m *Media) tick(ctx context.Context) {
	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.emit(playback.TimeUpdate{Position: m.CurrentTime()})
		}
	}
}

func (m *Media) emit(u playback.TimeUpdate) {
	for {
		select {
		case m.updates <- u:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

func (m *Media) stopTickLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Media) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.playing {
		return
	}

	m.out.Lock()
	m.ctrl.Paused = true
	m.out.Unlock()
	m.playing = false
	m.stopTickLocked()
}

func (m *Media) Seek(pos float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMediaClosed
	}

	n := m.format.SampleRate.N(time.Duration(pos * float64(time.Second)))
	if n < 0 {
		n = 0
	}
	if l := m.stream.Len(); n > l {
		n = l
	}

	m.out.Lock()
	defer m.out.Unlock()
	return m.stream.Seek(n)
}

func (m *Media) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positionLocked()
}

func (m *Media) positionLocked() float64 {
	m.out.Lock()
	n := m.stream.Position()
	m.out.Unlock()
	return m.format.SampleRate.D(n).Seconds()
}

func (m *Media) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = math.Max(0, math.Min(1, level))
	m.applyLocked()
}

func (m *Media) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
	m.applyLocked()
}

func (m *Media) applyLocked() {
	if m.vol == nil {
		return
	}
	m.out.Lock()
	m.applyVolume()
	m.out.Unlock()
}

// applyVolume maps a linear level onto the exponential volume effect.
func (m *Media) applyVolume() {
	m.vol.Silent = m.muted || m.level <= 0
	if m.level > 0 {
		m.vol.Volume = math.Log2(m.level)
	}
}

func (m *Media) TimeUpdates() <-chan playback.TimeUpdate {
	return m.updates
}

func (m *Media) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.playing = false
	m.stopTickLocked()
	if m.ctrl != nil {
		m.out.Lock()
		m.ctrl.Streamer = nil
		m.out.Unlock()
	}
	m.mu.Unlock()

	return m.stream.Close()
}

// Factory downloads and decodes mp3 sources for out. Sources larger than
// maxBytes are refused; maxBytes <= 0 selects DefaultMaxDownload.
func Factory(out Output, client *http.Client, maxBytes int64) playback.MediaFactory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownload
	}

	return func(ctx context.Context, url string) (playback.Media, error) {
		data, err := download(ctx, client, url, maxBytes)
		if err != nil {
			return nil, err
		}

		stream, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", url, err)
		}
		return NewMedia(out, stream, format), nil
	}
}

func download(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, url, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, url, maxBytes)
	}
	return data, nil
}
