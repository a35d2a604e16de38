// Package player decodes the buffered MP3 stream frame by frame and hands
// mono PCM packets to the device's audio sink.
package player

import (
	"fmt"
	"time"

	"github.com/glebovdev/voxradio/internal/device"
	"github.com/rs/zerolog/log"
)

const (
	// WorkingSize is the capacity of the decoder's input window.
	WorkingSize = 8192
	// FillThreshold is the residual level below which another chunk is pulled.
	FillThreshold = 4096

	DefaultLatency   = 600 * time.Millisecond
	DefaultPrebuffer = 32 * 1024

	DefaultPlaybackVolume  = 75
	DefaultQuiescentVolume = 25

	// TitleFormat renders the song name shown once playback clears the idle gate.
	TitleFormat = "《%s》播放中..."

	progressFrames = 1000
)

type Options struct {
	// Latency is added to the decoded position before it is reported, to
	// account for audio still queued in the output path.
	Latency   time.Duration
	Prebuffer int

	PlaybackVolume  int
	QuiescentVolume int

	// VoiceBackoff is the wait after asking a speaking or listening device to
	// go idle; BusyBackoff is the wait for any other non-idle state.
	VoiceBackoff time.Duration
	BusyBackoff  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Latency:         DefaultLatency,
		Prebuffer:       DefaultPrebuffer,
		PlaybackVolume:  DefaultPlaybackVolume,
		QuiescentVolume: DefaultQuiescentVolume,
		VoiceBackoff:    300 * time.Millisecond,
		BusyBackoff:     50 * time.Millisecond,
	}
}

// Engine runs decode passes against the device collaborators.
type Engine struct {
	sink    device.AudioSink
	display device.Display
	state   device.StateService
	opts    Options
}

func NewEngine(sink device.AudioSink, display device.Display, state device.StateService, opts Options) *Engine {
	return &Engine{
		sink:    sink,
		display: display,
		state:   state,
		opts:    opts,
	}
}

// window is the decoder's input buffer; data[off:n] is the unconsumed residual.
type window struct {
	data []byte
	off  int
	n    int
}

func (w *window) residual() []byte {
	return w.data[w.off:w.n]
}

// fill compacts the residual to the front and appends as much of p as fits.
// It reports how many bytes of p were dropped.
func (w *window) fill(p []byte) int {
	if w.off > 0 {
		w.n = copy(w.data, w.data[w.off:w.n])
		w.off = 0
	}
	copied := copy(w.data[w.n:], p)
	w.n += copied
	return len(p) - copied
}

func (w *window) skip(count int) int {
	count = min(count, w.n-w.off)
	w.off += count
	return count
}

// Run decodes p until its playing flag drops or the stream is exhausted. It
// is meant to run on its own goroutine and closes p.Done on return.
func (e *Engine) Run(p *Pass) {
	defer close(p.done)
	defer e.finish(p)

	e.sink.SetVolume(e.opts.PlaybackVolume)

	if !p.Buffer.WaitLevel(e.opts.Prebuffer) {
		log.Info().Msg("Stream ended before any audio was buffered")
		return
	}
	log.Info().Int("buffered", p.Buffer.Bytes()).Msgf("Starting playback of %q", p.Name)

	w := &window{data: make([]byte, WorkingSize)}
	titleShown := false
	id3Checked := false
	id3Pending := 0
	drained := false
	var played int64

	for p.Playing() {
		if !e.waitIdle(p) {
			break
		}

		if !titleShown && p.Name != "" {
			e.display.SetTitle(fmt.Sprintf(TitleFormat, p.Name))
			if p.Mode == device.DisplaySpectrum {
				e.display.StartVisualizer()
			}
			titleShown = true
		}

		if len(w.residual()) < FillThreshold && !drained {
			chunk, ok := p.Buffer.Pop()
			if !ok {
				drained = true
			} else {
				if dropped := w.fill(chunk.Bytes()); dropped > 0 {
					log.Warn().Int("dropped", dropped).Msg("Decoder input window overflow")
				}
				chunk.Release()

				if id3Pending > 0 {
					id3Pending -= w.skip(id3Pending)
				}
				if !id3Checked && len(w.residual()) >= id3HeaderSize {
					if size := ID3Size(w.residual()); size > 0 {
						id3Pending = size - w.skip(size)
						log.Info().Int("bytes", size).Msg("Skipping ID3v2 tag")
					}
					id3Checked = true
				}
			}
			if id3Pending > 0 {
				continue
			}
		}

		res := w.residual()
		pos, hdr := FindFrame(res, 0)
		if pos < 0 {
			if drained {
				break
			}
			// Keep a possible partial header at the tail.
			keep := min(len(res), 3)
			if discard := len(res) - keep; discard > 0 {
				log.Debug().Int("bytes", discard).Msg("No MP3 sync word found, discarding")
				w.skip(discard)
			}
			continue
		}
		w.skip(pos)

		if len(w.residual()) < hdr.FrameSize {
			if drained {
				break
			}
			continue
		}

		pcm, info, err := p.Decoder.Decode(w.residual()[:hdr.FrameSize])
		if err != nil {
			log.Debug().Err(err).Msg("MP3 frame decode failed, resyncing")
			w.skip(1)
			continue
		}
		w.skip(hdr.FrameSize)
		frames := p.frames.Add(1)

		if info.SampleRate == 0 || info.Channels == 0 {
			log.Warn().Int("rate", info.SampleRate).Int("channels", info.Channels).Msg("Invalid frame info, skipping")
			continue
		}

		durationUs := int64(info.OutputSamples) * int64(time.Second/time.Microsecond) / int64(info.SampleRate*info.Channels)
		elapsedMs := p.elapsedUs.Add(durationUs) / 1000
		if p.OnTime != nil {
			p.OnTime(elapsedMs + e.opts.Latency.Milliseconds())
		}

		if info.OutputSamples == 0 {
			continue
		}

		mono := Downmix(pcm[:info.OutputSamples], info.Channels)
		e.sink.PlayPacket(device.Packet{
			SampleRate:      info.SampleRate,
			FrameDurationMs: device.PacketDuration,
			Samples:         mono,
		})
		if p.Mode == device.DisplaySpectrum {
			if spectrum, ok := e.display.(device.SpectrumSink); ok {
				spectrum.PushSamples(mono)
			}
		}
		played += int64(len(mono) * 2)

		if frames%progressFrames == 0 {
			log.Debug().Msgf("Decoded %d frames, %d ms, buffered %d bytes", frames, elapsedMs, p.Buffer.Bytes())
		}
	}

	log.Info().Int64("pcm_bytes", played).Int64("frames", p.Frames()).Msg("Playback finished")
}

// waitIdle blocks until the device is idle. Voice interaction states are asked
// to return to idle; any other busy state is simply waited out. It returns
// false if the pass stopped while waiting.
func (e *Engine) waitIdle(p *Pass) bool {
	if e.state == nil {
		return p.Playing()
	}
	for p.Playing() {
		switch st := e.state.State(); st {
		case device.StateIdle:
			return true
		case device.StateSpeaking, device.StateListening:
			log.Info().Str("state", st.String()).Msg("Device busy with voice interaction, requesting idle")
			e.state.RequestIdle()
			time.Sleep(e.opts.VoiceBackoff)
		default:
			log.Debug().Str("state", st.String()).Msg("Device not idle, holding playback")
			time.Sleep(e.opts.BusyBackoff)
		}
	}
	return false
}

func (e *Engine) finish(p *Pass) {
	p.playing.Store(false)
	if p.Mode == device.DisplaySpectrum {
		e.display.StopVisualizer()
		e.sink.SetVolume(e.opts.QuiescentVolume)
	}
}
