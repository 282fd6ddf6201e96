package voice

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ChuckD30/lyricist/internal/playback"
)

const (
	frameDuration  = 20 * time.Millisecond
	updateInterval = 250 * time.Millisecond
)

var ErrStreamClosed = errors.New("voice stream closed")

// Sink delivers opus frames to a listener.
type Sink interface {
	Send(ctx context.Context, packet []byte) error
	Speaking(speaking bool)
}

// Stream plays one audio URL into a Sink. The position is the decoder
// offset plus the frames delivered since the decoder started, so seeking
// and volume changes restart the decoder at the current position.
type Stream struct {
	sink    Sink
	decode  Decoder
	url     string
	log     zerolog.Logger
	updates chan playback.TimeUpdate

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	offset  float64
	frames  int64
	playing bool
	volume  float64
	muted   bool
	closed  bool
	gen     uint64
}

func NewStream(sink Sink, decode Decoder, url string, logger zerolog.Logger) *Stream {
	return &Stream{
		sink:    sink,
		decode:  decode,
		url:     url,
		log:     logger.With().Str("url", url).Logger(),
		updates: make(chan playback.TimeUpdate, 1),
		ctx:     context.Background(),
		volume:  1,
	}
}

var _ playback.Media = (*Stream)(nil)

func (s *Stream) Play(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if s.playing {
		return nil
	}

	s.ctx = ctx
	if err := s.startLocked(); err != nil {
		return err
	}
	s.playing = true
	return nil
}

func (s *Stream) startLocked() error {
	s.gen++
	gen := s.gen

	ctx, cancel := context.WithCancel(s.ctx)
	rc, err := s.decode(ctx, s.url, s.offset, s.volume)
	if err != nil {
		cancel()
		return err
	}

	s.cancel = cancel
	s.frames = 0
	go s.run(ctx, gen, rc)
	return nil
}

func (s *Stream) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.offset = s.currentLocked()
	s.frames = 0
	s.gen++
}

// restartLocked resumes from the current position with fresh decoder settings.
func (s *Stream) restartLocked() {
	s.stopLocked()
	if err := s.startLocked(); err != nil {
		s.log.Error().Err(err).Msg("decoder restart failed")
		s.playing = false
		s.emit(playback.TimeUpdate{Position: s.offset, EOF: true})
	}
}

func (s *Stream) run(ctx context.Context, gen uint64, rc io.ReadCloser) {
	defer rc.Close()

	s.sink.Speaking(true)
	defer s.sink.Speaking(false)

	pages := newOggReader(rc)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	lastUpdate := time.Now()

	for {
		page, err := pages.next()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.log.Warn().Err(err).Msg("ogg stream read failed")
			}
			s.finish(gen)
			return
		}
		if page.isHeader {
			continue
		}

		for _, packet := range page.packets {
			if len(packet) == 0 {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			muted, ok := s.advance(gen)
			if !ok {
				return
			}
			if !muted {
				if err := s.sink.Send(ctx, packet); err != nil && ctx.Err() == nil {
					s.log.Debug().Err(err).Msg("opus frame dropped")
				}
			}

			if time.Since(lastUpdate) >= updateInterval {
				lastUpdate = time.Now()
				s.emit(playback.TimeUpdate{Position: s.CurrentTime()})
			}
		}
	}
}

func (s *Stream) advance(gen uint64) (muted bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false, false
	}
	s.frames++
	return s.muted, true
}

func (s *Stream) finish(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	s.playing = false
	pos := s.offset
	s.mu.Unlock()

	s.emit(playback.TimeUpdate{Position: pos, EOF: true})
}

// emit replaces any unread update so the reader always sees the latest one.
func (s *Stream) emit(u playback.TimeUpdate) {
	for {
		select {
		case s.updates <- u:
			return
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}

func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.stopLocked()
	s.playing = false
}

func (s *Stream) Seek(pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if pos < 0 {
		pos = 0
	}

	if !s.playing {
		s.offset = pos
		s.frames = 0
		return nil
	}

	s.stopLocked()
	s.offset = pos
	if err := s.startLocked(); err != nil {
		s.playing = false
		return err
	}
	return nil
}

func (s *Stream) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *Stream) currentLocked() float64 {
	return s.offset + float64(s.frames)*frameDuration.Seconds()
}

func (s *Stream) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volume == level {
		return
	}
	s.volume = level
	if s.playing {
		s.restartLocked()
	}
}

func (s *Stream) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Stream) TimeUpdates() <-chan playback.TimeUpdate {
	return s.updates
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopLocked()
	s.playing = false
	return nil
}
