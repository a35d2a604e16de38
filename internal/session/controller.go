// Package session drives one streaming session at a time: song lookup, the
// downloader and decoder goroutines, the lyric worker, and their bounded
// shutdown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/voxradio/internal/api"
	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/glebovdev/voxradio/internal/buffer"
	"github.com/glebovdev/voxradio/internal/device"
	"github.com/glebovdev/voxradio/internal/lyrics"
	"github.com/glebovdev/voxradio/internal/player"
	"github.com/glebovdev/voxradio/internal/stream"
	"github.com/glebovdev/voxradio/internal/track"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBufferBytes = 256 * 1024

	StopPollInterval     = 10 * time.Millisecond
	StopTimeout          = time.Second
	CloseDownloadTimeout = 5 * time.Second
	ClosePlaybackTimeout = 3 * time.Second

	lookupTimeout = 30 * time.Second
)

var (
	ErrClosed      = errors.New("session controller is closed")
	ErrNoStreamURL = errors.New("no stream URL")
)

// Lookup resolves a song name to its metadata.
type Lookup interface {
	Lookup(ctx context.Context, song string) (*track.Metadata, error)
	LastBody() string
	BaseURL() string
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Sink    device.AudioSink
	Display device.Display
	State   device.StateService
	// Clients is the network seam. When API or Lyrics is nil, New builds
	// it over the transport of Clients.HTTPClient() so the lookup, lyric and
	// stream requests share one client.
	Clients device.ClientFactory
	API     Lookup
	Lyrics  *lyrics.Fetcher

	// APIBaseURL defaults to api.DefaultBaseURL.
	APIBaseURL string
	// LyricCache, when set, backs a lyric fetcher built by New.
	LyricCache    lyrics.TextCache
	DisableLyrics bool
	// NewDecoder builds frame decoders. Defaults to the go-mp3 decoder.
	NewDecoder func() player.FrameDecoder

	Identity  auth.Identity
	UserAgent string
}

type Options struct {
	BufferBytes int
	DisplayMode device.DisplayMode
	Player      player.Options

	StopPoll             time.Duration
	StopTimeout          time.Duration
	CloseDownloadTimeout time.Duration
	ClosePlaybackTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		BufferBytes:          DefaultBufferBytes,
		DisplayMode:          device.DisplaySpectrum,
		Player:               player.DefaultOptions(),
		StopPoll:             StopPollInterval,
		StopTimeout:          StopTimeout,
		CloseDownloadTimeout: CloseDownloadTimeout,
		ClosePlaybackTimeout: ClosePlaybackTimeout,
	}
}

// Status is a point-in-time view of the controller.
type Status struct {
	Song          string
	Artist        string
	StreamURL     string
	LyricURL      string
	Mode          device.DisplayMode
	Downloading   bool
	Playing       bool
	LyricsRunning bool
	BufferedBytes int
	ElapsedMs     int64
	Frames        int64
	Message       string
}

// workers is the goroutine set of one started stream.
type workers struct {
	pass         *player.Pass
	cancel       context.CancelFunc
	downloadDone chan struct{}
	// detached is set once a stop gave up waiting on the decoder; the decode
	// goroutine then cleans up its own buffer on exit.
	detached atomic.Bool
}

// Controller is the session-level API the command layer talks to.
type Controller struct {
	deps       Deps
	opts       Options
	engine     *player.Engine
	downloader *stream.Downloader
	lyrics     *lyrics.Engine

	// mu serializes lifecycle operations and guards the fields below.
	mu        sync.Mutex
	buf       *buffer.Buffer
	decoder   player.FrameDecoder
	active    *workers
	abandoned bool
	closed    bool
	song      string
	artist    string
	streamURL string
	lyricURL  string

	mode atomic.Int32

	msgMu   sync.Mutex
	message string
}

// New wires a Controller. Deps.Sink, Display, State and Clients are
// required.
func New(deps Deps, opts Options) *Controller {
	transport := deps.Clients.HTTPClient().Transport
	if deps.API == nil {
		base := deps.APIBaseURL
		if base == "" {
			base = api.DefaultBaseURL
		}
		deps.API = api.NewClient(base, deps.UserAgent, deps.Identity, transport)
	}
	if deps.DisableLyrics {
		deps.Lyrics = nil
	} else if deps.Lyrics == nil {
		deps.Lyrics = lyrics.NewFetcher(transport, deps.UserAgent, deps.Identity, deps.LyricCache)
	}
	if deps.NewDecoder == nil {
		deps.NewDecoder = func() player.FrameDecoder { return player.NewMP3Decoder() }
	}
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = DefaultBufferBytes
	}
	if opts.StopPoll <= 0 {
		opts.StopPoll = StopPollInterval
	}

	c := &Controller{
		deps:       deps,
		opts:       opts,
		engine:     player.NewEngine(deps.Sink, deps.Display, deps.State, opts.Player),
		downloader: stream.NewDownloader(deps.Clients.HTTPClient(), deps.UserAgent, deps.Identity),
		buf:        buffer.New(opts.BufferBytes),
		decoder:    deps.NewDecoder(),
	}
	if deps.Lyrics != nil {
		c.lyrics = lyrics.NewEngine(deps.Lyrics, deps.Display)
	}
	c.mode.Store(int32(opts.DisplayMode))

	log.Debug().Int("buffer_bytes", opts.BufferBytes).Str("mode", opts.DisplayMode.String()).Msg("Session controller ready")
	return c
}

// Resolve looks name up and starts streaming it. artist is accepted for the
// command interface but not sent to the lookup API.
func (c *Controller) Resolve(name, artist string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	return c.ResolveContext(ctx, name, artist) == nil
}

func (c *Controller) ResolveContext(ctx context.Context, name, artist string) error {
	log.Info().Str("song", name).Msg("Resolving song")

	meta, err := c.deps.API.Lookup(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("song", name).Msg("Song lookup failed")
		c.setMessage(fmt.Sprintf("lookup failed: %v", err))
		return err
	}

	base := c.deps.API.BaseURL()
	streamURL := track.ResolveURL(base, meta.AudioURL)
	lyricURL := track.ResolveURL(base, meta.LyricURL)
	log.Info().Str("stream", streamURL).Bool("proxied", track.IsProxied(meta.AudioURL)).Msg("Stream URL resolved")
	if lyricURL != "" {
		log.Info().Str("lyrics", lyricURL).Msg("Lyric URL resolved")
	} else {
		log.Warn().Msg("No lyric URL for this song")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.song = name
	c.artist = meta.Artist
	if c.artist == "" {
		c.artist = artist
	}
	c.streamURL = streamURL
	c.lyricURL = lyricURL

	if _, err := c.startLocked(streamURL, name, lyricURL); err != nil {
		return err
	}

	c.setMessage(fmt.Sprintf("playing %s", meta.DisplayName(name)))
	return nil
}

// Start begins streaming url directly, without a lookup.
func (c *Controller) Start(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	_, err := c.startLocked(url, c.song, "")
	return err == nil
}

// startLocked tears down the previous session and launches the workers for
// url. The lyric worker only runs, and only receives playback time, when
// lyricURL is set and the display is in lyrics mode.
func (c *Controller) startLocked(url, name, lyricURL string) (*workers, error) {
	if url == "" {
		log.Error().Msg("Refusing to start streaming without a URL")
		c.setMessage("no stream URL")
		return nil, ErrNoStreamURL
	}

	c.stopWorkersLocked(0, c.opts.StopTimeout)
	if c.lyrics != nil {
		c.lyrics.Stop()
		c.lyrics.Reset()
	}

	if c.abandoned {
		// The detached decoder still holds the old buffer and decoder.
		log.Warn().Msg("Previous decoder was detached, allocating fresh buffer and decoder")
		c.buf = buffer.New(c.opts.BufferBytes)
		c.decoder = c.deps.NewDecoder()
		c.abandoned = false
	} else {
		c.buf.Clear()
		c.decoder.Reset()
	}

	c.buf.SetProducing(true)
	mode := c.DisplayMode()
	pass := player.NewPass(name, mode, c.buf, c.decoder)
	if lyricURL != "" && mode == device.DisplayLyrics && c.lyrics != nil {
		pass.OnTime = c.lyrics.Update
		c.lyrics.Start(lyricURL, pass.Playing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &workers{
		pass:         pass,
		cancel:       cancel,
		downloadDone: make(chan struct{}),
	}

	go c.download(ctx, w, url)
	go c.decode(w)
	c.active = w

	log.Info().Str("url", url).Msg("Streaming goroutines started")
	return w, nil
}

func (c *Controller) download(ctx context.Context, w *workers, url string) {
	defer close(w.downloadDone)

	total, err := c.downloader.Run(ctx, url, w.pass.Buffer)
	switch {
	case err == nil:
		log.Debug().Int64("bytes", total).Msg("Download goroutine finished")
	case errors.Is(err, context.Canceled):
		log.Debug().Int64("bytes", total).Msg("Download cancelled")
	default:
		c.setMessage(fmt.Sprintf("stream error: %v", err))
	}
}

func (c *Controller) decode(w *workers) {
	c.engine.Run(w.pass)

	// The decoder can finish before the download does; nothing will drain
	// the buffer any more, so stop the producer too.
	w.cancel()
	w.pass.Buffer.SetProducing(false)

	if w.detached.Load() {
		w.pass.Buffer.Clear()
		log.Info().Msg("Detached decoder finished and released its buffer")
	}
}

// stopWorkersLocked signals the active workers and joins them. A zero
// downloadTimeout waits for the downloader without limit. It reports whether
// anything was still running.
func (c *Controller) stopWorkersLocked(downloadTimeout, decodeTimeout time.Duration) bool {
	w := c.active
	if w == nil {
		return false
	}
	c.active = nil

	running := w.pass.Playing() || w.pass.Buffer.Producing()

	w.pass.Stop()
	w.pass.Buffer.SetProducing(false)
	w.cancel()

	if downloadTimeout <= 0 {
		<-w.downloadDone
	} else if !waitDone(w.downloadDone, c.opts.StopPoll, downloadTimeout) {
		log.Warn().Dur("timeout", downloadTimeout).Msg("Download goroutine did not exit in time")
	}

	if !waitDone(w.pass.Done(), c.opts.StopPoll, decodeTimeout) {
		w.detached.Store(true)
		c.abandoned = true
		log.Warn().Dur("timeout", decodeTimeout).Msg("Decoder did not exit in time, detaching it")
	}

	return running
}

// waitDone polls done every interval until it closes or timeout passes.
func waitDone(done <-chan struct{}, interval, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return true
		case <-ticker.C:
			if !time.Now().Before(deadline) {
				select {
				case <-done:
					return true
				default:
					return false
				}
			}
		}
	}
}

// Stop ends the current session. It returns within the decoder join ceiling
// and reports whether anything was playing.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.Info().Bool("downloading", c.isDownloadingLocked()).Msg("Stopping stream")

	c.deps.Sink.ResetSampleRate()

	lyricsRunning := c.lyrics != nil && c.lyrics.Running()
	if c.active == nil && !lyricsRunning {
		log.Warn().Msg("No stream is active")
		c.setMessage("nothing playing")
		return false
	}

	c.deps.Display.SetTitle("")
	stopped := c.stopWorkersLocked(0, c.opts.StopTimeout)
	if c.lyrics != nil {
		c.lyrics.Stop()
	}

	if c.DisplayMode() == device.DisplaySpectrum {
		c.deps.Display.StopVisualizer()
	}

	if !stopped && !lyricsRunning {
		c.setMessage("nothing playing")
		return false
	}
	c.setMessage("stopped")
	return true
}

// Close tears the controller down with the longer shutdown ceilings. The
// controller cannot be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	log.Info().Msg("Shutting down session controller")
	c.stopWorkersLocked(c.opts.CloseDownloadTimeout, c.opts.ClosePlaybackTimeout)
	if c.lyrics != nil {
		c.lyrics.Stop()
	}
	c.buf.Clear()
}

func (c *Controller) isDownloadingLocked() bool {
	return c.active != nil && c.active.pass.Buffer.Producing()
}

func (c *Controller) IsDownloading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isDownloadingLocked()
}

func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.pass.Playing()
}

func (c *Controller) BufferedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Bytes()
}

// LastResponseBody is the raw body of the most recent lookup.
func (c *Controller) LastResponseBody() string {
	return c.deps.API.LastBody()
}

// SetDisplayMode selects spectrum or lyrics; it applies from the next session.
func (c *Controller) SetDisplayMode(mode device.DisplayMode) {
	old := device.DisplayMode(c.mode.Swap(int32(mode)))
	log.Info().Msgf("Display mode changed from %s to %s", old, mode)
}

func (c *Controller) DisplayMode() device.DisplayMode {
	return device.DisplayMode(c.mode.Load())
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	s := Status{
		Song:          c.song,
		Artist:        c.artist,
		StreamURL:     c.streamURL,
		LyricURL:      c.lyricURL,
		Mode:          c.DisplayMode(),
		BufferedBytes: c.buf.Bytes(),
	}
	if w := c.active; w != nil {
		s.Downloading = w.pass.Buffer.Producing()
		s.Playing = w.pass.Playing()
		s.ElapsedMs = w.pass.ElapsedMs()
		s.Frames = w.pass.Frames()
	}
	c.mu.Unlock()

	s.LyricsRunning = c.lyrics != nil && c.lyrics.Running()
	s.Message = c.getMessage()
	return s
}

func (c *Controller) setMessage(msg string) {
	c.msgMu.Lock()
	c.message = msg
	c.msgMu.Unlock()
}

func (c *Controller) getMessage() string {
	c.msgMu.Lock()
	defer c.msgMu.Unlock()
	return c.message
}
