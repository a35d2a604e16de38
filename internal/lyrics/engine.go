package lyrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebovdev/voxradio/internal/device"
	"github.com/rs/zerolog/log"
)

// PollInterval is how often the worker re-checks whether it should exit.
const PollInterval = 50 * time.Millisecond

// Engine owns the lyric worker goroutine and the line matcher. The decode
// goroutine drives it through Update.
type Engine struct {
	fetcher *Fetcher
	display device.Display
	matcher *Matcher

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewEngine(fetcher *Fetcher, display device.Display) *Engine {
	return &Engine{
		fetcher: fetcher,
		display: display,
		matcher: NewMatcher(),
	}
}

// Start stops any previous worker, clears the loaded lines and launches a
// worker for url. playing reports whether the audio pass is still alive.
func (e *Engine) Start(url string, playing func() bool) {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.matcher.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running.Store(true)

	go e.run(ctx, url, playing, e.done)
}

func (e *Engine) run(ctx context.Context, url string, playing func() bool, done chan struct{}) {
	defer close(done)
	defer e.running.Store(false)

	log.Debug().Str("url", url).Msg("Lyric worker started")

	body, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load lyrics")
		return
	}
	lines := Parse(body)
	if len(lines) == 0 {
		log.Warn().Msg("Lyric file contained no timed lines")
		return
	}
	e.matcher.Set(lines)

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for e.running.Load() && playing() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}

	log.Debug().Msg("Lyric worker finished")
}

// Stop signals the worker and waits for it to return.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	e.running.Store(false)
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Reset drops the loaded lines and blanks the lyric line on screen. Call it
// between sessions once the worker has stopped.
func (e *Engine) Reset() {
	if e.matcher.Len() == 0 && e.matcher.Index() == NoLine {
		return
	}
	e.matcher.Reset()
	e.display.SetLyricLine("")
}

func (e *Engine) Running() bool {
	return e.running.Load()
}

// Update shows the line due at nowMs if it differs from the one on screen.
func (e *Engine) Update(nowMs int64) {
	line, changed := e.matcher.Match(nowMs)
	if !changed {
		return
	}
	log.Debug().Int64("at_ms", nowMs).Str("text", line.Text).Msg("Lyric line")
	e.display.SetLyricLine(line.Text)
}

// Index is the index of the line on screen, or NoLine.
func (e *Engine) Index() int {
	return e.matcher.Index()
}
