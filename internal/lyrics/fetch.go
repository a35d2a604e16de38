package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	MaxAttempts  = 3
	RetryDelay   = 500 * time.Millisecond
	MaxRedirects = 5

	readSize       = 1024
	requestTimeout = 30 * time.Second
)

var (
	ErrNoLyrics = errors.New("no lyrics available")
	errRedirect = errors.New("redirect not followed")
)

// TextCache stores fetched lyric bodies by URL.
type TextCache interface {
	Get(url string) (string, bool)
	Save(url, body string) error
}

// Fetcher downloads LRC files. Redirects are reported, never followed.
type Fetcher struct {
	client     *resty.Client
	identity   auth.Identity
	cache      TextCache
	retryDelay time.Duration
}

// NewFetcher builds a Fetcher over transport. cache may be nil.
func NewFetcher(transport http.RoundTripper, userAgent string, identity auth.Identity, cache TextCache) *Fetcher {
	client := resty.New().
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/plain").
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	if transport != nil {
		client.SetTransport(transport)
	}

	return &Fetcher{
		client:     client,
		identity:   identity,
		cache:      cache,
		retryDelay: RetryDelay,
	}
}

// Fetch returns the body at url, trying up to MaxAttempts times.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: empty lyric URL", ErrNoLyrics)
	}

	if f.cache != nil {
		if body, ok := f.cache.Get(url); ok {
			log.Debug().Str("url", url).Msg("Lyrics served from cache")
			return body, nil
		}
	}

	var lastErr error
	redirects := 0
	for attempt := 0; attempt < MaxAttempts && redirects < MaxRedirects; attempt++ {
		if attempt > 0 {
			log.Info().Msgf("Retrying lyric download (attempt %d of %d)", attempt+1, MaxAttempts)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.retryDelay):
			}
		}

		body, err := f.fetchOnce(ctx, url)
		if err == nil {
			if body == "" {
				return "", ErrNoLyrics
			}
			log.Info().Int("bytes", len(body)).Msg("Lyrics downloaded")
			if f.cache != nil {
				if err := f.cache.Save(url, body); err != nil {
					log.Debug().Err(err).Msg("Failed to cache lyrics")
				}
			}
			return body, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, errRedirect) {
			redirects++
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("Lyric download failed")
	}

	return "", fmt.Errorf("lyric download failed after %d attempts: %w", MaxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(f.identity.Headers()).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("failed to open lyric URL: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	switch code := resp.StatusCode(); {
	case code == http.StatusMovedPermanently, code == http.StatusFound, code == http.StatusSeeOther,
		code == http.StatusTemporaryRedirect, code == http.StatusPermanentRedirect:
		return "", fmt.Errorf("%w: status %d to %q", errRedirect, code, resp.Header().Get("Location"))
	case code < 200 || code >= 300:
		return "", fmt.Errorf("lyric server returned status %d: %s", code, resp.Status())
	}

	var content strings.Builder
	buf := make([]byte, readSize)
	for {
		n, err := body.Read(buf)
		content.Write(buf[:n])
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return content.String(), nil
		}
		if content.Len() > 0 && ctx.Err() == nil {
			log.Warn().Err(err).Int("bytes", content.Len()).Msg("Lyric read failed after data arrived, keeping what was read")
			return content.String(), nil
		}
		return "", fmt.Errorf("failed to read lyrics: %w", err)
	}
}
