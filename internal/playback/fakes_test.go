package playback

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/ChuckD30/lyricist/internal/spotifyconnect"
)

type hookRecorder struct {
	mu        sync.Mutex
	ended     int
	failures  []error
	positions []float64
}

func (r *hookRecorder) hooks() Hooks {
	return Hooks{
		OnPosition: func(pos float64) {
			r.mu.Lock()
			r.positions = append(r.positions, pos)
			r.mu.Unlock()
		},
		OnEnded: func() {
			r.mu.Lock()
			r.ended++
			r.mu.Unlock()
		},
		OnFailed: func(err error) {
			r.mu.Lock()
			r.failures = append(r.failures, err)
			r.mu.Unlock()
		},
	}
}

func (r *hookRecorder) endedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

func (r *hookRecorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func (r *hookRecorder) lastFailure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) == 0 {
		return nil
	}
	return r.failures[len(r.failures)-1]
}

type fakeMedia struct {
	url     string
	updates chan TimeUpdate

	mu      sync.Mutex
	calls   []string
	current float64
	playErr error
	closed  bool
	volume  float64
	muted   bool
}

func (m *fakeMedia) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *fakeMedia) Play(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("play")
	return m.playErr
}

func (m *fakeMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("pause")
}

func (m *fakeMedia) Seek(pos float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(fmt.Sprintf("seek:%g", pos))
	m.current = pos
	return nil
}

func (m *fakeMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *fakeMedia) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = level
}

func (m *fakeMedia) SetMuted(muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = muted
}

func (m *fakeMedia) TimeUpdates() <-chan TimeUpdate {
	return m.updates
}

func (m *fakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMedia) callList() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *fakeMedia) count(call string) int {
	n := 0
	for _, c := range m.callList() {
		if c == call {
			n++
		}
	}
	return n
}

func (m *fakeMedia) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeOpener struct {
	mu      sync.Mutex
	opened  []*fakeMedia
	openErr error
	playErr error
}

func (f *fakeOpener) open(ctx context.Context, url string) (Media, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	m := &fakeMedia{
		url:     url,
		updates: make(chan TimeUpdate, 16),
		playErr: f.playErr,
	}
	f.opened = append(f.opened, m)
	return m, nil
}

func (f *fakeOpener) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeOpener) last() *fakeMedia {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return nil
	}
	return f.opened[len(f.opened)-1]
}

type playCall struct {
	deviceID   string
	uri        string
	positionMS int64
}

type fakeDeviceAPI struct {
	mu         sync.Mutex
	deviceName string
	deviceID   string
	playErr    error

	stateDevice string
	isPlaying   bool
	uri         string
	progressMS  int64

	plays      []playCall
	pauses     int
	seeks      []int64
	volumes    []int
	stateCalls int
	findCalls  int
}

func newFakeDeviceAPI(deviceID string) *fakeDeviceAPI {
	return &fakeDeviceAPI{
		deviceName: "Lyricist Web Player",
		deviceID:   deviceID,
	}
}

func (a *fakeDeviceAPI) FindDevice(ctx context.Context, name string) (spotifyconnect.Device, bool, error) {
	if err := ctx.Err(); err != nil {
		return spotifyconnect.Device{}, false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findCalls++
	if a.deviceID == "" || name != a.deviceName {
		return spotifyconnect.Device{}, false, nil
	}
	return spotifyconnect.Device{ID: a.deviceID, Name: a.deviceName}, true, nil
}

func (a *fakeDeviceAPI) Play(ctx context.Context, deviceID, uri string, positionMS int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays = append(a.plays, playCall{deviceID: deviceID, uri: uri, positionMS: positionMS})
	if a.playErr != nil {
		return a.playErr
	}
	a.stateDevice = deviceID
	a.isPlaying = true
	a.uri = uri
	a.progressMS = positionMS
	return nil
}

func (a *fakeDeviceAPI) Pause(ctx context.Context, deviceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pauses++
	a.isPlaying = false
	return nil
}

func (a *fakeDeviceAPI) Seek(ctx context.Context, deviceID string, positionMS int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seeks = append(a.seeks, positionMS)
	a.progressMS = positionMS
	return nil
}

func (a *fakeDeviceAPI) SetVolume(ctx context.Context, deviceID string, percent int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volumes = append(a.volumes, percent)
	return nil
}

func (a *fakeDeviceAPI) State(ctx context.Context) (*spotifyconnect.PlaybackState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateCalls++
	return &spotifyconnect.PlaybackState{
		Device:     spotifyconnect.Device{ID: a.stateDevice},
		ProgressMS: a.progressMS,
		IsPlaying:  a.isPlaying,
		Item:       &spotifyconnect.TrackItem{URI: a.uri},
	}, nil
}

func (a *fakeDeviceAPI) setProgress(ms int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressMS = ms
}

func (a *fakeDeviceAPI) setDevice(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deviceID = id
}

func (a *fakeDeviceAPI) setStateDevice(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stateDevice = id
}

func (a *fakeDeviceAPI) playCalls() []playCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]playCall(nil), a.plays...)
}

func (a *fakeDeviceAPI) pauseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pauses
}

func (a *fakeDeviceAPI) seekCalls() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.seeks...)
}

func (a *fakeDeviceAPI) stateCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateCalls
}

func (a *fakeDeviceAPI) findCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findCalls
}

var errTokenRevoked = &oauth2.RetrieveError{ErrorCode: "invalid_grant", ErrorDescription: "Refresh token revoked"}

type toggleTokenSource struct {
	mu    sync.Mutex
	valid bool
	err   error
}

func (s *toggleTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if !s.valid {
		return nil, errTokenRevoked
	}
	return &oauth2.Token{AccessToken: "user-token"}, nil
}

func (s *toggleTokenSource) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *toggleTokenSource) set(valid bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = valid
}
