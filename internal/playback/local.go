package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type TimeUpdate struct {
	Position float64
	// EOF marks the source running out before the window end.
	EOF bool
}

// Media is one opened audio source. Implementations must not block inside
// control calls while delivering time updates.
type Media interface {
	Play(ctx context.Context) error
	Pause()
	Seek(pos float64) error
	CurrentTime() float64
	SetVolume(level float64)
	SetMuted(muted bool)
	TimeUpdates() <-chan TimeUpdate
	Close() error
}

// MediaFactory opens the media behind a URL. It may block on network I/O.
type MediaFactory func(ctx context.Context, url string) (Media, error)

// LocalBackend plays a window of a directly addressable audio URL.
type LocalBackend struct {
	open  MediaFactory
	hooks Hooks
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	src      Source
	window   Window
	position float64
	playing  bool
	volume   float64
	muted    bool
	closed   bool
	gen      uint64

	media       Media
	mediaCancel context.CancelFunc
}

func NewLocalBackend(open MediaFactory, volume float64, hooks Hooks, logger zerolog.Logger) *LocalBackend {
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalBackend{
		open:   open,
		hooks:  hooks,
		log:    logger.With().Str("backend", string(KindLocal)).Logger(),
		ctx:    ctx,
		cancel: cancel,
		volume: clampVolume(volume),
	}
}

func (b *LocalBackend) Kind() Kind {
	return KindLocal
}

func (b *LocalBackend) Load(src Source, w Window) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	var old Media
	var oldCancel context.CancelFunc
	if src != b.src {
		old, oldCancel = b.detachLocked()
	}

	b.src = src
	b.window = w
	b.position = w.Start
	b.playing = false
	b.gen++
	if b.media != nil {
		b.media.Pause()
		if err := b.media.Seek(w.Start); err != nil {
			b.log.Debug().Err(err).Msg("seek on reload failed")
		}
	}
	b.mu.Unlock()

	b.release(old, oldCancel)
}

func (b *LocalBackend) SetWindow(w Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.window = w
	if b.playing && w.Contains(b.position) {
		return
	}
	b.position = w.Start
	b.seekMediaLocked(w.Start)
}

func (b *LocalBackend) SetPlaying(playing bool) {
	if playing {
		b.play()
		return
	}
	b.pause()
}

func (b *LocalBackend) play() {
	b.mu.Lock()
	if b.closed || b.playing {
		b.mu.Unlock()
		return
	}
	if b.src.URL == "" {
		b.mu.Unlock()
		b.log.Warn().Msg("play requested without a source")
		b.hooks.failed(ErrNoSource)
		return
	}

	b.position = b.window.StartFrom(b.position)
	b.playing = true
	b.gen++
	gen := b.gen
	src := b.src
	media := b.media
	b.mu.Unlock()

	go b.start(gen, src, media)
}

func (b *LocalBackend) start(gen uint64, src Source, media Media) {
	if media == nil {
		opened, err := b.open(b.ctx, src.URL)
		if err != nil {
			b.fail(gen, fmt.Errorf("open %s: %w", src.URL, err))
			return
		}
		media = b.attach(src, opened)
		if media == nil {
			return
		}
	}

	b.mu.Lock()
	if b.gen != gen || !b.playing || b.media != media {
		b.mu.Unlock()
		return
	}
	if err := media.Seek(b.position); err != nil {
		b.log.Debug().Err(err).Float64("position", b.position).Msg("seek before play failed")
	}
	err := media.Play(b.ctx)
	if err == nil {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.gen++
	b.mu.Unlock()

	b.log.Error().Err(err).Str("url", src.URL).Msg("play request rejected")
	b.hooks.failed(err)
}

// attach installs opened as the current media unless the source changed or
// another start already attached one. It returns the media to play, or nil.
func (b *LocalBackend) attach(src Source, opened Media) Media {
	b.mu.Lock()
	if b.closed || b.src != src {
		b.mu.Unlock()
		_ = opened.Close()
		return nil
	}
	if b.media != nil {
		current := b.media
		b.mu.Unlock()
		_ = opened.Close()
		return current
	}

	ctx, cancel := context.WithCancel(b.ctx)
	b.media = opened
	b.mediaCancel = cancel
	opened.SetVolume(b.volume)
	opened.SetMuted(b.muted)
	b.mu.Unlock()

	go b.readUpdates(ctx, opened)
	return opened
}

func (b *LocalBackend) readUpdates(ctx context.Context, media Media) {
	updates := media.TimeUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(media, u)
		}
	}
}

func (b *LocalBackend) handleUpdate(media Media, u TimeUpdate) {
	b.mu.Lock()
	if b.media != media || !b.playing {
		b.mu.Unlock()
		return
	}

	if u.EOF || b.window.Overrun(u.Position) {
		b.playing = false
		b.gen++
		media.Pause()
		if err := media.Seek(b.window.Start); err != nil {
			b.log.Debug().Err(err).Msg("seek to window start failed")
		}
		b.position = b.window.Start
		b.mu.Unlock()

		b.hooks.ended()
		return
	}

	b.position = u.Position
	b.mu.Unlock()

	b.hooks.position(u.Position)
}

func (b *LocalBackend) pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || !b.playing {
		return
	}

	b.playing = false
	b.gen++
	if b.media != nil {
		b.media.Pause()
		b.position = b.window.Clamp(b.media.CurrentTime())
	}
}

func (b *LocalBackend) fail(gen uint64, err error) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.gen++
	b.mu.Unlock()

	b.log.Error().Err(err).Msg("local playback failed")
	b.hooks.failed(err)
}

func (b *LocalBackend) Seek(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.position = b.window.Clamp(t)
	b.seekMediaLocked(b.position)
}

func (b *LocalBackend) seekMediaLocked(pos float64) {
	if b.media == nil {
		return
	}
	if err := b.media.Seek(pos); err != nil {
		b.log.Debug().Err(err).Float64("position", pos).Msg("seek failed")
	}
}

func (b *LocalBackend) SetVolume(level float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = clampVolume(level)
	if b.media != nil {
		b.media.SetVolume(b.volume)
	}
}

func (b *LocalBackend) SetMuted(muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.muted = muted
	if b.media != nil {
		b.media.SetMuted(muted)
	}
}

func (b *LocalBackend) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Kind:     KindLocal,
		Source:   b.src,
		Window:   b.window,
		Playing:  b.playing,
		Position: b.position,
		Volume:   b.volume,
		Muted:    b.muted,
	}
}

func (b *LocalBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.playing = false
	b.gen++
	media, cancel := b.detachLocked()
	b.mu.Unlock()

	b.cancel()
	return b.release(media, cancel)
}

func (b *LocalBackend) detachLocked() (Media, context.CancelFunc) {
	media, cancel := b.media, b.mediaCancel
	b.media = nil
	b.mediaCancel = nil
	return media, cancel
}

func (b *LocalBackend) release(media Media, cancel context.CancelFunc) error {
	if cancel != nil {
		cancel()
	}
	if media == nil {
		return nil
	}
	media.Pause()
	if err := media.Close(); err != nil {
		b.log.Warn().Err(err).Msg("failed to close media")
		return err
	}
	return nil
}
