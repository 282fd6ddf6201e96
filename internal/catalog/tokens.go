package catalog

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryMargin is subtracted from the lifetime reported by the token endpoint.
const expiryMargin = 30 * time.Second

// TokenCache holds the client credentials access token of one catalog client.
type TokenCache struct {
	mu    sync.Mutex
	token *oauth2.Token
	now   func() time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Get returns the cached token while it is still usable.
func (c *TokenCache) Get() (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || c.token.AccessToken == "" {
		return nil, false
	}
	if !c.token.Expiry.IsZero() && !c.now().Before(c.token.Expiry) {
		c.token = nil
		return nil, false
	}
	return c.token, true
}

// Store caches accessToken for expiresIn seconds minus a safety margin.
func (c *TokenCache) Store(accessToken string, expiresIn int) *oauth2.Token {
	lifetime := time.Duration(expiresIn)*time.Second - expiryMargin
	if lifetime < 0 {
		lifetime = 0
	}
	tok := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      c.now().Add(lifetime),
	}

	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
	return tok
}

func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
