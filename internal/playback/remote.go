package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/ChuckD30/lyricist/internal/spotifyconnect"
)

const (
	DefaultPollInterval        = 100 * time.Millisecond
	DefaultDeviceCheckInterval = 2 * time.Second
	DefaultRequestTimeout      = 5 * time.Second

	maxPollFailures = 10
	maxForeignPolls = 20
)

// DeviceAPI is the subset of the Spotify Connect player API the remote
// backend drives.
type DeviceAPI interface {
	FindDevice(ctx context.Context, name string) (spotifyconnect.Device, bool, error)
	Play(ctx context.Context, deviceID, uri string, positionMS int64) error
	Pause(ctx context.Context, deviceID string) error
	Seek(ctx context.Context, deviceID string, positionMS int64) error
	SetVolume(ctx context.Context, deviceID string, percent int) error
	State(ctx context.Context) (*spotifyconnect.PlaybackState, error)
}

type RemoteConfig struct {
	DeviceName          string
	PollInterval        time.Duration
	DeviceCheckInterval time.Duration
	RequestTimeout      time.Duration
}

func (c RemoteConfig) withDefaults() RemoteConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DeviceCheckInterval <= 0 {
		c.DeviceCheckInterval = DefaultDeviceCheckInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

// RemoteBackend plays a window of a Spotify track on a Connect device and
// enforces the window end by polling the player state.
type RemoteBackend struct {
	api   DeviceAPI
	creds oauth2.TokenSource
	cfg   RemoteConfig
	hooks Hooks
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// ctlMu keeps control requests in submission order.
	ctlMu sync.Mutex

	mu         sync.Mutex
	state      DeviceState
	deviceID   string
	src        Source
	window     Window
	position   float64
	playing    bool
	volume     float64
	muted      bool
	closed     bool
	watching   bool
	gen        uint64
	pollCancel context.CancelFunc
}

func NewRemoteBackend(api DeviceAPI, creds oauth2.TokenSource, cfg RemoteConfig, volume float64, hooks Hooks, logger zerolog.Logger) *RemoteBackend {
	ctx, cancel := context.WithCancel(context.Background())
	b := &RemoteBackend{
		api:    api,
		creds:  creds,
		cfg:    cfg.withDefaults(),
		hooks:  hooks,
		log:    logger.With().Str("backend", string(KindRemote)).Logger(),
		ctx:    ctx,
		cancel: cancel,
		state:  DeviceDisconnected,
		volume: clampVolume(volume),
	}
	if api == nil || creds == nil {
		b.state = DeviceUnavailable
	}
	return b
}

func (b *RemoteBackend) Kind() Kind {
	return KindRemote
}

// Connect starts watching for the configured device. Without credentials the
// backend stays unavailable and never contacts the API.
func (b *RemoteBackend) Connect() {
	b.mu.Lock()
	if b.closed || b.watching || b.api == nil || b.creds == nil {
		inert := b.api == nil || b.creds == nil
		b.mu.Unlock()
		if inert {
			b.log.Warn().Msg("spotify credentials missing; remote playback unavailable")
		}
		return
	}
	b.watching = true
	b.state = DeviceConnecting
	b.mu.Unlock()

	go b.watch()
}

func (b *RemoteBackend) watch() {
	ticker := time.NewTicker(b.cfg.DeviceCheckInterval)
	defer ticker.Stop()

	for {
		b.checkDevice()
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (b *RemoteBackend) checkDevice() {
	tok, err := b.creds.Token()
	switch {
	case err == nil && !tok.Valid(), credentialRejected(err):
		b.credentialLost(err)
		return
	case err != nil:
		if b.ctx.Err() == nil {
			b.log.Debug().Err(err).Msg("token refresh failed; keeping device state")
		}
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.RequestTimeout)
	device, ok, err := b.api.FindDevice(ctx, b.cfg.DeviceName)
	cancel()
	if err != nil {
		if b.ctx.Err() == nil {
			b.log.Debug().Err(err).Msg("device lookup failed")
		}
		return
	}
	if !ok {
		b.deviceLost()
		return
	}
	b.deviceReady(device.ID)
}

func (b *RemoteBackend) deviceReady(id string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if b.connectedLocked() && b.deviceID == id {
		b.mu.Unlock()
		return
	}

	b.deviceID = id
	b.state = DeviceReady
	if b.playing {
		b.startLocked()
	}
	percent := b.percentLocked()
	b.mu.Unlock()

	b.log.Info().Str("device_id", id).Str("device", b.cfg.DeviceName).Msg("remote device ready")
	go b.control(func(ctx context.Context) error {
		return b.api.SetVolume(ctx, id, percent)
	})
}

func (b *RemoteBackend) deviceLost() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if !b.connectedLocked() {
		b.state = DeviceDisconnected
		b.mu.Unlock()
		return
	}

	wasPlaying := b.playing
	b.state = DeviceDisconnected
	b.deviceID = ""
	b.playing = false
	b.stopPollLocked()
	b.gen++
	b.mu.Unlock()

	b.log.Warn().Str("device", b.cfg.DeviceName).Msg("remote device not ready")
	if wasPlaying {
		b.hooks.failed(ErrDeviceLost)
	}
}

// credentialRejected reports whether the token endpoint refused the
// credential. Transport failures and server errors are transient.
func credentialRejected(err error) bool {
	var rerr *oauth2.RetrieveError
	if !errors.As(err, &rerr) {
		return false
	}
	if rerr.ErrorCode != "" || rerr.Response == nil {
		return true
	}
	return rerr.Response.StatusCode < http.StatusInternalServerError
}

func (b *RemoteBackend) credentialLost(err error) {
	b.mu.Lock()
	if b.closed || b.state == DeviceUnavailable {
		b.mu.Unlock()
		return
	}

	wasPlaying := b.playing
	b.state = DeviceUnavailable
	b.deviceID = ""
	b.playing = false
	b.stopPollLocked()
	b.gen++
	b.mu.Unlock()

	b.log.Warn().Err(err).Msg("spotify credential invalid; remote playback torn down")
	if wasPlaying {
		b.hooks.failed(ErrUnavailable)
	}
}

func (b *RemoteBackend) Load(src Source, w Window) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	wasPlaying := b.playing
	deviceID := b.deviceID
	b.stopPollLocked()
	b.gen++
	gen := b.gen
	b.playing = false
	b.src = src
	b.window = w
	b.position = w.Start
	if b.state == DevicePlaying || b.state == DevicePaused {
		b.state = DeviceReady
	}
	b.mu.Unlock()

	if wasPlaying && deviceID != "" {
		go b.controlAt(gen, func(ctx context.Context) error {
			return b.api.Pause(ctx, deviceID)
		})
	}
}

func (b *RemoteBackend) SetWindow(w Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.window = w
	if !b.playing {
		b.position = w.Start
		return
	}
	if w.Contains(b.position) {
		return
	}

	b.position = w.Start
	b.seekLocked()
}

func (b *RemoteBackend) SetPlaying(playing bool) {
	if playing {
		b.play()
		return
	}
	b.pause()
}

func (b *RemoteBackend) play() {
	b.mu.Lock()
	if b.closed || b.playing {
		b.mu.Unlock()
		return
	}
	if b.state == DeviceUnavailable {
		b.mu.Unlock()
		b.log.Warn().Msg("remote playback requested without valid credentials")
		b.hooks.failed(ErrUnavailable)
		return
	}
	if b.src.TrackURI == "" {
		b.mu.Unlock()
		b.log.Warn().Msg("play requested without a track")
		b.hooks.failed(ErrNoSource)
		return
	}

	b.playing = true
	if b.connectedLocked() {
		b.startLocked()
	} else {
		b.log.Info().Str("state", string(b.state)).Msg("device not ready; play deferred")
	}
	b.mu.Unlock()
}

// startLocked supersedes any in-flight transfer or poll with a new one.
func (b *RemoteBackend) startLocked() {
	b.stopPollLocked()
	b.gen++
	gen := b.gen
	b.position = b.window.StartFrom(b.position)

	ctx, cancel := context.WithCancel(b.ctx)
	b.pollCancel = cancel
	go b.transfer(ctx, gen, b.deviceID, b.src.TrackURI, b.position)
}

func (b *RemoteBackend) transfer(ctx context.Context, gen uint64, deviceID, uri string, pos float64) {
	b.ctlMu.Lock()
	if !b.current(gen) {
		b.ctlMu.Unlock()
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
	err := b.api.Play(reqCtx, deviceID, uri, millis(pos))
	cancel()
	b.ctlMu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.abandon(gen, fmt.Errorf("transfer playback: %w", err))
		return
	}

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.state = DevicePlaying
	b.mu.Unlock()

	b.log.Debug().Str("uri", uri).Int64("position_ms", millis(pos)).Msg("playback transferred")
	b.monitor(ctx, gen, deviceID, uri)
}

func (b *RemoteBackend) monitor(ctx context.Context, gen uint64, deviceID, uri string) {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	failures, foreign := 0, 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		reqCtx, cancel := context.WithTimeout(ctx, b.cfg.RequestTimeout)
		st, err := b.api.State(reqCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			failures++
			if failures >= maxPollFailures {
				b.abandon(gen, fmt.Errorf("poll player state: %w", err))
				return
			}
			continue
		}
		failures = 0

		if !controls(st, deviceID, uri) {
			foreign++
			if foreign >= maxForeignPolls {
				b.abandon(gen, ErrLostControl)
				return
			}
			continue
		}
		foreign = 0

		if b.observe(gen, seconds(st.ProgressMS)) {
			b.finish(gen, deviceID)
			return
		}
	}
}

func controls(st *spotifyconnect.PlaybackState, deviceID, uri string) bool {
	if st == nil || !st.IsPlaying || st.Device.ID != deviceID {
		return false
	}
	if st.Item != nil && st.Item.URI != "" && st.Item.URI != uri {
		return false
	}
	return true
}

// observe records a polled position and reports whether it overran the window.
func (b *RemoteBackend) observe(gen uint64, pos float64) bool {
	b.mu.Lock()
	if b.gen != gen || !b.playing {
		b.mu.Unlock()
		return false
	}
	if b.window.Overrun(pos) {
		b.playing = false
		b.state = DevicePaused
		b.position = b.window.Start
		b.mu.Unlock()
		return true
	}
	b.position = pos
	b.mu.Unlock()

	b.hooks.position(pos)
	return false
}

func (b *RemoteBackend) finish(gen uint64, deviceID string) {
	b.ctlMu.Lock()
	if b.current(gen) {
		ctx, cancel := context.WithTimeout(b.ctx, b.cfg.RequestTimeout)
		if err := b.api.Pause(ctx, deviceID); err != nil {
			b.log.Warn().Err(err).Msg("pause at window end failed")
		}
		cancel()
	}
	b.ctlMu.Unlock()

	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.stopPollLocked()
	b.mu.Unlock()

	b.hooks.ended()
}

func (b *RemoteBackend) abandon(gen uint64, err error) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.playing = false
	b.stopPollLocked()
	b.gen++
	if b.state == DevicePlaying || b.state == DevicePaused {
		b.state = DeviceReady
	}
	b.mu.Unlock()

	b.log.Error().Err(err).Msg("remote playback stopped")
	b.hooks.failed(err)
}

func (b *RemoteBackend) pause() {
	b.mu.Lock()
	if b.closed || !b.playing {
		b.mu.Unlock()
		return
	}

	b.playing = false
	b.stopPollLocked()
	b.gen++
	gen := b.gen
	if b.state == DevicePlaying {
		b.state = DevicePaused
	}
	deviceID := b.deviceID
	connected := b.connectedLocked()
	b.mu.Unlock()

	if connected && deviceID != "" {
		go b.controlAt(gen, func(ctx context.Context) error {
			return b.api.Pause(ctx, deviceID)
		})
	}
}

func (b *RemoteBackend) Seek(t float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.position = b.window.Clamp(t)
	if b.playing {
		b.seekLocked()
	}
}

// seekLocked moves an active playback to b.position. A transfer that has not
// completed yet is restarted instead.
func (b *RemoteBackend) seekLocked() {
	if b.state != DevicePlaying {
		if b.connectedLocked() {
			b.startLocked()
		}
		return
	}

	gen := b.gen
	deviceID := b.deviceID
	positionMS := millis(b.position)
	go b.controlAt(gen, func(ctx context.Context) error {
		return b.api.Seek(ctx, deviceID, positionMS)
	})
}

func (b *RemoteBackend) SetVolume(level float64) {
	b.mu.Lock()
	b.volume = clampVolume(level)
	b.pushVolumeLocked()
	b.mu.Unlock()
}

func (b *RemoteBackend) SetMuted(muted bool) {
	b.mu.Lock()
	b.muted = muted
	b.pushVolumeLocked()
	b.mu.Unlock()
}

func (b *RemoteBackend) pushVolumeLocked() {
	if b.closed || !b.connectedLocked() {
		return
	}
	deviceID := b.deviceID
	percent := b.percentLocked()
	go b.control(func(ctx context.Context) error {
		return b.api.SetVolume(ctx, deviceID, percent)
	})
}

func (b *RemoteBackend) percentLocked() int {
	if b.muted {
		return 0
	}
	return int(math.Round(b.volume * 100))
}

func (b *RemoteBackend) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Kind:     KindRemote,
		Source:   b.src,
		Window:   b.window,
		Playing:  b.playing,
		Position: b.position,
		Volume:   b.volume,
		Muted:    b.muted,
		Device:   b.state,
	}
}

// Close stops polling and device watching and pauses the device if it was
// playing for us.
func (b *RemoteBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	wasPlaying := b.playing
	deviceID := b.deviceID
	b.playing = false
	b.stopPollLocked()
	b.gen++
	if b.state != DeviceUnavailable {
		b.state = DeviceDisconnected
	}
	b.mu.Unlock()

	b.cancel()

	if !wasPlaying || deviceID == "" {
		return nil
	}

	b.ctlMu.Lock()
	defer b.ctlMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.RequestTimeout)
	defer cancel()
	if err := b.api.Pause(ctx, deviceID); err != nil {
		b.log.Warn().Err(err).Msg("pause on close failed")
		return err
	}
	return nil
}

func (b *RemoteBackend) connectedLocked() bool {
	switch b.state {
	case DeviceReady, DevicePlaying, DevicePaused:
		return b.deviceID != ""
	}
	return false
}

func (b *RemoteBackend) stopPollLocked() {
	if b.pollCancel != nil {
		b.pollCancel()
		b.pollCancel = nil
	}
}

func (b *RemoteBackend) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.gen == gen
}

// controlAt sends a control request unless a newer playback action has
// superseded gen by the time it is its turn.
func (b *RemoteBackend) controlAt(gen uint64, fn func(ctx context.Context) error) {
	b.ctlMu.Lock()
	defer b.ctlMu.Unlock()
	if !b.current(gen) {
		return
	}
	b.send(fn)
}

func (b *RemoteBackend) control(fn func(ctx context.Context) error) {
	b.ctlMu.Lock()
	defer b.ctlMu.Unlock()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	b.send(fn)
}

func (b *RemoteBackend) send(fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.RequestTimeout)
	defer cancel()
	if err := fn(ctx); err != nil && b.ctx.Err() == nil {
		b.log.Warn().Err(err).Msg("remote control request failed")
	}
}
