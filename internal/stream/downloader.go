// Package stream pulls a remote audio resource into the bounded chunk buffer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/glebovdev/voxradio/internal/buffer"
	"github.com/rs/zerolog/log"
)

const (
	// ReadSize is the size of every network read and therefore the largest chunk.
	ReadSize = 4096

	progressInterval = 256 * 1024
)

var ErrInvalidURL = errors.New("invalid stream URL")

type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stream returned status %d: %s", e.StatusCode, e.Status)
}

// Downloader fetches an audio stream in fixed-size reads.
type Downloader struct {
	client    *http.Client
	userAgent string
	identity  auth.Identity
}

func NewDownloader(client *http.Client, userAgent string, identity auth.Identity) *Downloader {
	return &Downloader{
		client:    client,
		userAgent: userAgent,
		identity:  identity,
	}
}

// Run streams streamURL into buf until end of stream, a read error, context
// cancellation, or the buffer's producer flag dropping. The caller raises the
// producer flag before starting Run; Run always lowers it on return, which
// wakes any consumer waiting on the buffer.
func (d *Downloader) Run(ctx context.Context, streamURL string, buf *buffer.Buffer) (total int64, err error) {
	defer buf.SetProducing(false)

	if !strings.HasPrefix(streamURL, "http") {
		log.Error().Str("url", streamURL).Msg("Refusing to stream from a non-HTTP URL")
		return 0, fmt.Errorf("%w: %q", ErrInvalidURL, streamURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Range", "bytes=0-")
	d.identity.Apply(req.Header)

	log.Debug().Msgf("Connecting to stream: %s", streamURL)

	resp, err := d.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to audio stream")
		return 0, fmt.Errorf("failed to open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		log.Error().Int("status", resp.StatusCode).Msg("Audio stream request failed")
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	log.Info().Int("status", resp.StatusCode).Msg("Audio stream download started")

	readBuf := make([]byte, ReadSize)
	nextReport := int64(progressInterval)

	for buf.Producing() {
		n, readErr := resp.Body.Read(readBuf)

		if n > 0 {
			if total == 0 {
				format := Sniff(readBuf[:n])
				log.Info().Str("format", format.String()).Msgf("Stream format detected, first bytes % X", readBuf[:min(n, 4)])
			}

			chunk := buffer.NewChunk(readBuf[:n])
			if !buf.Push(chunk) {
				chunk.Release()
				break
			}
			total += int64(n)

			if total >= nextReport {
				log.Debug().Msgf("Downloaded %d bytes, buffered %d", total, buf.Bytes())
				nextReport += progressInterval
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				log.Info().Int64("bytes", total).Msg("Audio stream download complete")
				return total, nil
			}
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			log.Error().Err(readErr).Msg("Error reading audio data from stream")
			return total, fmt.Errorf("network read error: %w", readErr)
		}
	}

	log.Debug().Int64("bytes", total).Msg("Audio stream download stopped")
	return total, nil
}
