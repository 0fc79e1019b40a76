package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// tokenExpirySkew is subtracted from a token's lifetime so that it is
// refreshed before the catalog starts rejecting it.
const tokenExpirySkew = 30 * time.Second

const defaultTokenCacheSize = 16

// Token is an access token issued by the catalog's auth endpoint.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be used at the given time.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Add(tokenExpirySkew).Before(t.ExpiresAt)
}

// TokenCache stores access tokens keyed by client id.
type TokenCache interface {
	Get(key string) (Token, bool)
	Set(key string, token Token)
}

// LRUTokenCache is the default in-process TokenCache.
type LRUTokenCache struct {
	cache *lru.Cache
}

// NewLRUTokenCache creates a TokenCache holding at most size tokens.
func NewLRUTokenCache(size int) *LRUTokenCache {
	if size <= 0 {
		size = defaultTokenCacheSize
	}
	cache, _ := lru.New(size)
	return &LRUTokenCache{cache: cache}
}

// Get returns the cached token for key.
func (c *LRUTokenCache) Get(key string) (Token, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return Token{}, false
	}
	token, ok := v.(Token)
	return token, ok
}

// Set stores token under key, evicting the least recently used entry if full.
func (c *LRUTokenCache) Set(key string, token Token) {
	c.cache.Add(key, token)
}

// TokenSource fetches client-credentials tokens and keeps them in a TokenCache.
// Concurrent refreshes for the same client collapse into one request.
type TokenSource struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	cache        TokenCache
	group        singleflight.Group
	now          func() time.Time
}

// NewTokenSource creates a TokenSource. A nil cache falls back to an LRUTokenCache.
func NewTokenSource(httpClient *http.Client, tokenURL, clientID, clientSecret string, cache TokenCache) *TokenSource {
	if cache == nil {
		cache = NewLRUTokenCache(defaultTokenCacheSize)
	}
	return &TokenSource{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		cache:        cache,
		now:          time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid access token, fetching a new one when the cached
// token is missing or about to expire.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := s.cache.Get(s.clientID); ok && token.Valid(s.now()) {
		return token.AccessToken, nil
	}

	v, err, _ := s.group.Do(s.clientID, func() (any, error) {
		// Another caller may have refreshed while we waited.
		if token, ok := s.cache.Get(s.clientID); ok && token.Valid(s.now()) {
			return token, nil
		}
		token, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(s.clientID, token)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(Token).AccessToken, nil
}

// Invalidate drops the cached token so the next call fetches a fresh one.
func (s *TokenSource) Invalidate() {
	s.cache.Set(s.clientID, Token{})
}

func (s *TokenSource) fetch(ctx context.Context) (Token, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("token endpoint returned an empty access token")
	}

	return Token{
		AccessToken: tr.AccessToken,
		ExpiresAt:   s.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
