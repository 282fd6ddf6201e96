package catalog

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultAPIURL   = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
	SearchLimit     = 5
)

var (
	ErrCatalogRequest = errors.New("catalog request failed")
	ErrUnsupportedRef = errors.New("unsupported spotify track reference")
)

// Client searches the Spotify catalog with client credentials.
type Client struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	APIURL       string
	TokenURL     string

	tokens *TokenCache
	cache  *SearchCache
	log    zerolog.Logger
}

func NewClient(clientID, clientSecret string, tokens *TokenCache, logger zerolog.Logger) *Client {
	if tokens == nil {
		tokens = NewTokenCache()
	}
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: 10 * time.Second},
		APIURL:       DefaultAPIURL,
		TokenURL:     DefaultTokenURL,
		tokens:       tokens,
		log:          logger,
	}
}

func (c *Client) WithCache(cache *SearchCache) *Client {
	c.cache = cache
	return c
}

// Configured reports whether the client can reach the real catalog.
func (c *Client) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SearchTracks never fails: without credentials it returns the placeholder
// result set, and request errors are logged and yield no results.
func (c *Client) SearchTracks(ctx context.Context, query string) []Track {
	results, err := c.Search(ctx, query)
	if err != nil {
		c.log.Warn().Err(err).Str("query", query).Msg("catalog search failed")
		return []Track{}
	}
	return results
}

// Search is SearchTracks with the error exposed.
func (c *Client) Search(ctx context.Context, query string) ([]Track, error) {
	if !c.Configured() {
		return placeholderTracks(), nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []Track{}, nil
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, query)
		if err != nil {
			c.log.Debug().Err(err).Msg("search cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("type", "track")
	params.Set("limit", fmt.Sprintf("%d", SearchLimit))
	params.Set("q", query)

	var payload struct {
		Tracks struct {
			Items []Track `json:"items"`
		} `json:"tracks"`
	}
	if err := c.get(ctx, "/search?"+params.Encode(), &payload); err != nil {
		return nil, err
	}

	results := payload.Tracks.Items
	if results == nil {
		results = []Track{}
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, query, results); err != nil {
			c.log.Debug().Err(err).Msg("search cache write failed")
		}
	}
	return results, nil
}

// LookupTrack resolves a track ID, spotify:track: URI or open.spotify.com link.
func (c *Client) LookupTrack(ctx context.Context, input string) (Track, error) {
	trackID := extractTrackID(input)
	if trackID == "" {
		return Track{}, fmt.Errorf("%w: %q", ErrUnsupportedRef, input)
	}
	if !c.Configured() {
		return Track{}, fmt.Errorf("%w: missing spotify client credentials", ErrCatalogRequest)
	}

	var track Track
	if err := c.get(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return Track{}, err
	}
	return track, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(c.APIURL, "/")+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify api status %d", ErrCatalogRequest, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(); ok {
		return tok.AccessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.ClientID, c.ClientSecret))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token status %d", ErrCatalogRequest, resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrCatalogRequest)
	}

	return c.tokens.Store(payload.AccessToken, payload.ExpiresIn).AccessToken, nil
}

func extractTrackID(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if trackID, ok := strings.CutPrefix(input, "spotify:track:"); ok {
		return trackID
	}

	if !strings.Contains(input, "/") && !strings.Contains(input, ":") {
		return input
	}

	u, err := url.Parse(input)
	if err != nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(u.Host), "spotify.com") {
		return ""
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := range len(parts) {
		if parts[i] == "track" && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
