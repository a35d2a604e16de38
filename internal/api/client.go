// Package api provides the HTTP client for the song lookup API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/glebovdev/voxradio/internal/track"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL   = "https://ai.daongoc.vn/radio/"
	DefaultUserAgent = "ESP32-Radio-Player/1.0"
	LookupPath       = "stream_pcm.php"

	// AuthFailureSentinel appears in the response body when the server
	// rejects the dynamic key.
	AuthFailureSentinel = "ESP32动态密钥验证失败"

	requestTimeout = 30 * time.Second
)

var (
	ErrAuthFailed    = errors.New("device authentication failed")
	ErrNoAudioURL    = errors.New("response has no audio_url")
	ErrEmptyResponse = errors.New("empty response from lookup API")
)

// StatusError reports a non-200 answer from the lookup API.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Status)
}

// Client looks songs up by name.
type Client struct {
	client   *resty.Client
	baseURL  string
	identity auth.Identity

	mu       sync.Mutex
	lastBody string
}

// NewClient creates a lookup client. transport may be nil for the default.
func NewClient(baseURL, userAgent string, identity auth.Identity, transport http.RoundTripper) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
	if transport != nil {
		client.SetTransport(transport)
	}

	return &Client{
		client:   client,
		baseURL:  baseURL,
		identity: identity,
	}
}

// BaseURL is the root relative URLs in responses resolve against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LastBody returns the raw body of the most recent lookup, successful or not.
func (c *Client) LastBody() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBody
}

func (c *Client) setLastBody(body string) {
	c.mu.Lock()
	c.lastBody = body
	c.mu.Unlock()
}

// Lookup fetches metadata for song. URLs in the result are returned as the
// server sent them; see track.ResolveURL.
func (c *Client) Lookup(ctx context.Context, song string) (*track.Metadata, error) {
	c.setLastBody("")

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(c.identity.Headers()).
		SetQueryParam("song", song).
		Get(LookupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch song info for %q: %w", song, err)
	}

	body := resp.String()
	c.setLastBody(body)
	log.Debug().Int("status", resp.StatusCode()).Int("bytes", len(body)).Msg("Lookup response received")

	if resp.StatusCode() != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode(), Status: resp.Status()}
	}

	if strings.Contains(body, AuthFailureSentinel) {
		return nil, fmt.Errorf("%w for song %q", ErrAuthFailed, song)
	}

	if body == "" {
		return nil, ErrEmptyResponse
	}

	var meta track.Metadata
	if err := json.Unmarshal(resp.Body(), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse lookup response: %w", err)
	}

	if meta.Artist != "" || meta.Title != "" {
		log.Info().Str("artist", meta.Artist).Str("title", meta.Title).Msg("Song found")
	}

	if meta.AudioURL == "" {
		return nil, fmt.Errorf("%w for song %q", ErrNoAudioURL, song)
	}

	return &meta, nil
}
