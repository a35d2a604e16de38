// Package output plays decoded PCM packets on the host speaker.
package output

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/glebovdev/voxradio/internal/device"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate   = beep.SampleRate(44100)
	SpeakerBufferSize   = time.Millisecond * 250
	QueueDepth          = 8
	ResampleQuality     = 4
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

type Options struct {
	// SampleRate is the rate the speaker is opened at. Packets at other
	// rates are resampled.
	SampleRate beep.SampleRate
	// Muted skips the speaker entirely. Packets are still paced at their
	// real duration so playback position stays meaningful.
	Muted bool
}

// Sink is a device.AudioSink backed by beep's speaker. The speaker is opened
// lazily on the first packet and a single streamer stays attached to it,
// emitting silence whenever the queue is empty.
type Sink struct {
	mu            sync.Mutex
	opts          Options
	started       bool
	failed        bool
	sourceRate    int
	volumePercent int

	queue     *packetQueue
	resampler *beep.Resampler
	volume    *effects.Volume

	closed    chan struct{}
	closeOnce sync.Once
}

var _ device.AudioSink = (*Sink)(nil)

func NewSink(opts Options) *Sink {
	if opts.SampleRate <= 0 {
		opts.SampleRate = DefaultSampleRate
	}
	return &Sink{
		opts:          opts,
		volumePercent: -1,
		queue:         newPacketQueue(QueueDepth),
		closed:        make(chan struct{}),
	}
}

func (s *Sink) initSpeaker() error {
	if s.started {
		return nil
	}
	rate := s.opts.SampleRate
	if err := speaker.Init(rate, rate.N(SpeakerBufferSize)); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	s.resampler = beep.ResampleRatio(ResampleQuality, 1, s.queue)
	s.volume = &effects.Volume{
		Streamer: s.resampler,
		Base:     2,
	}
	s.applyVolume()
	speaker.Play(s.volume)

	s.started = true
	log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", rate, SpeakerBufferSize)
	return nil
}

// PlayPacket queues pkt for playback. It blocks while the queue is full,
// which paces the decoder to real time.
func (s *Sink) PlayPacket(pkt device.Packet) {
	if len(pkt.Samples) == 0 || pkt.SampleRate <= 0 {
		return
	}

	select {
	case <-s.closed:
		return
	default:
	}

	s.mu.Lock()
	if s.opts.Muted || s.failed {
		s.mu.Unlock()
		s.pace(pkt)
		return
	}
	if err := s.initSpeaker(); err != nil {
		s.failed = true
		s.mu.Unlock()
		log.Error().Err(err).Msg("Audio output unavailable, continuing silently")
		s.pace(pkt)
		return
	}
	if pkt.SampleRate != s.sourceRate {
		s.sourceRate = pkt.SampleRate
		ratio := float64(pkt.SampleRate) / float64(s.opts.SampleRate)
		speaker.Lock()
		s.resampler.SetRatio(ratio)
		speaker.Unlock()
		log.Debug().Msgf("Output resampling %d Hz -> %d Hz", pkt.SampleRate, s.opts.SampleRate)
	}
	s.mu.Unlock()

	select {
	case s.queue.packets <- pkt.Samples:
	case <-s.closed:
	}
}

func (s *Sink) pace(pkt device.Packet) {
	d := time.Duration(len(pkt.Samples)) * time.Second / time.Duration(pkt.SampleRate)
	select {
	case <-time.After(d):
	case <-s.closed:
	}
}

func (s *Sink) SetVolume(volumePercent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volumePercent = volumePercent
	if s.volume == nil {
		log.Debug().Msgf("Volume stored as %d%% (will be applied when playback starts)", volumePercent)
		return
	}

	speaker.Lock()
	s.applyVolume()
	speaker.Unlock()

	log.Debug().Msgf("Volume set to %d%% (%.2f dB)", volumePercent, s.volume.Volume)
}

// applyVolume must run with s.mu held and, once the speaker is playing,
// under the speaker lock.
func (s *Sink) applyVolume() {
	percent := s.volumePercent
	if percent < 0 {
		percent = 100
	}
	s.volume.Volume = percentToExponent(float64(percent))
	s.volume.Silent = percent == 0
}

// ResetSampleRate drops queued audio and returns the resampler to the
// speaker's native rate.
func (s *Sink) ResetSampleRate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.queue.reset()
		return
	}
	speaker.Lock()
	s.queue.reset()
	s.resampler.SetRatio(1)
	speaker.Unlock()
	s.sourceRate = 0
}

// Close releases anything blocked in PlayPacket and silences the speaker.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		speaker.Clear()
	}
	s.queue.reset()
}

// Queued reports how many packets are waiting for the speaker.
func (s *Sink) Queued() int {
	return s.queue.pending()
}

func percentToExponent(p float64) float64 {
	if p <= 0 {
		return MinVolumeDB
	}
	if p >= 100 {
		return 0
	}

	normalized := p / 100.0
	adjusted := math.Pow(normalized, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}
