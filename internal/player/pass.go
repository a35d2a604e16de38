package player

import (
	"sync/atomic"

	"github.com/glebovdev/voxradio/internal/buffer"
	"github.com/glebovdev/voxradio/internal/device"
)

// Pass is one playback attempt: the buffer the downloader fills, the decoder
// state, and the counters the decode goroutine publishes. A Pass is never
// reused; an abandoned decode goroutine keeps its own Pass and cannot touch
// the next one.
type Pass struct {
	Name    string
	Mode    device.DisplayMode
	Buffer  *buffer.Buffer
	Decoder FrameDecoder
	// OnTime receives the playback position plus output latency after every
	// emitted frame. May be nil.
	OnTime func(ms int64)

	playing   atomic.Bool
	elapsedUs atomic.Int64
	frames    atomic.Int64
	done      chan struct{}
}

func NewPass(name string, mode device.DisplayMode, buf *buffer.Buffer, dec FrameDecoder) *Pass {
	p := &Pass{
		Name:    name,
		Mode:    mode,
		Buffer:  buf,
		Decoder: dec,
		done:    make(chan struct{}),
	}
	p.playing.Store(true)
	return p
}

func (p *Pass) Playing() bool {
	return p.playing.Load()
}

// Stop clears the playing flag and wakes buffer waiters. A decoder parked in
// an empty-buffer Pop only returns once the producer flag drops as well.
func (p *Pass) Stop() {
	p.playing.Store(false)
	p.Buffer.Wake()
}

// Done is closed when the decode goroutine for this pass has returned.
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// ElapsedMs is the decoded playback time so far.
func (p *Pass) ElapsedMs() int64 {
	return p.elapsedUs.Load() / 1000
}

func (p *Pass) Frames() int64 {
	return p.frames.Load()
}
