package spotifyconnect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const DefaultTokenURL = "https://accounts.spotify.com/api/token"

var (
	ErrRequestFailed = errors.New("spotify player request failed")
	ErrNoDevice      = errors.New("spotify device id is empty")
)

// Client drives the Spotify Web API player endpoints on behalf of a user.
type Client struct {
	api *spotify.Client
}

// NewClient returns a client whose requests carry a bearer token from ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...spotify.ClientOption) *Client {
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 10 * time.Second
	return &Client{api: spotify.New(httpClient, opts...)}
}

// UserTokenSource refreshes user access tokens from a long lived refresh token.
func UserTokenSource(ctx context.Context, clientID, clientSecret, refreshToken string) oauth2.TokenSource {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  DefaultTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

type Device struct {
	ID            string
	Name          string
	Type          string
	IsActive      bool
	VolumePercent int
}

type TrackItem struct {
	URI        string
	DurationMS int64
}

type PlaybackState struct {
	Device     Device
	ProgressMS int64
	IsPlaying  bool
	Item       *TrackItem
}

func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices, err := c.api.PlayerDevices(ctx)
	if err != nil {
		return nil, wrap("devices", err)
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDevice(d))
	}
	return out, nil
}

// FindDevice returns the first device whose name matches, ignoring case.
func (c *Client) FindDevice(ctx context.Context, name string) (Device, bool, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return Device{}, false, err
	}
	for _, d := range devices {
		if strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(name)) && d.ID != "" {
			return d, true, nil
		}
	}
	return Device{}, false, nil
}

// Play transfers playback of uri to the device and starts at positionMS.
func (c *Client) Play(ctx context.Context, deviceID, uri string, positionMS int64) error {
	if deviceID == "" {
		return ErrNoDevice
	}
	opts := deviceOptions(deviceID)
	opts.URIs = []spotify.URI{spotify.URI(uri)}
	opts.PositionMs = spotify.Numeric(positionMS)
	return wrap("play", c.api.PlayOpt(ctx, opts))
}

func (c *Client) Pause(ctx context.Context, deviceID string) error {
	return wrap("pause", c.api.PauseOpt(ctx, deviceOptions(deviceID)))
}

func (c *Client) Seek(ctx context.Context, deviceID string, positionMS int64) error {
	return wrap("seek", c.api.SeekOpt(ctx, int(positionMS), deviceOptions(deviceID)))
}

func (c *Client) SetVolume(ctx context.Context, deviceID string, percent int) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return wrap("volume", c.api.VolumeOpt(ctx, percent, deviceOptions(deviceID)))
}

// State returns nil without error when nothing is playing on the account.
func (c *Client) State(ctx context.Context) (*PlaybackState, error) {
	st, err := c.api.PlayerState(ctx)
	if err != nil {
		return nil, wrap("state", err)
	}
	// An empty player answers 204, which decodes to a zero state.
	if st == nil || (st.Device.ID == "" && st.Item == nil) {
		return nil, nil
	}

	out := &PlaybackState{
		Device:     toDevice(st.Device),
		ProgressMS: int64(st.Progress),
		IsPlaying:  st.Playing,
	}
	if st.Item != nil {
		out.Item = &TrackItem{
			URI:        string(st.Item.URI),
			DurationMS: int64(st.Item.Duration),
		}
	}
	return out, nil
}

func deviceOptions(deviceID string) *spotify.PlayOptions {
	opts := &spotify.PlayOptions{}
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts.DeviceID = &id
	}
	return opts
}

func toDevice(d spotify.PlayerDevice) Device {
	return Device{
		ID:            string(d.ID),
		Name:          d.Name,
		Type:          d.Type,
		IsActive:      d.Active,
		VolumePercent: int(d.Volume),
	}
}

// wrap marks API status errors with ErrRequestFailed. Transport errors pass
// through unchanged.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %s status %d: %s", ErrRequestFailed, op, apiErr.Status, apiErr.Message)
	}
	return fmt.Errorf("%s: %w", op, err)
}
