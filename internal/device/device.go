// Package device defines the collaborators the audio engine consumes: the
// audio output sink, the display, the voice-interaction state machine and the
// network client factory.
package device

import (
	"fmt"
	"net/http"
	"strings"
)

// State mirrors the device-wide voice interaction state machine.
type State int

const (
	StateUnknown State = iota
	StateStarting
	StateConnecting
	StateIdle
	StateListening
	StateSpeaking
	StateUpgrading
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateConnecting:
		return "CONNECTING"
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateSpeaking:
		return "SPEAKING"
	case StateUpgrading:
		return "UPGRADING"
	default:
		return "UNKNOWN"
	}
}

// DisplayMode selects what the screen shows while audio plays.
type DisplayMode int

const (
	DisplaySpectrum DisplayMode = iota
	DisplayLyrics
)

func (m DisplayMode) String() string {
	if m == DisplayLyrics {
		return "lyrics"
	}
	return "spectrum"
}

// ParseDisplayMode accepts "spectrum" or "lyrics" in any case.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spectrum":
		return DisplaySpectrum, nil
	case "lyrics":
		return DisplayLyrics, nil
	default:
		return DisplaySpectrum, fmt.Errorf("unknown display mode %q (want spectrum or lyrics)", s)
	}
}

// PacketDuration is the nominal duration of every packet handed to the sink.
const PacketDuration = 60

// Packet is one block of mono 16-bit PCM for the output sink.
type Packet struct {
	SampleRate      int
	FrameDurationMs int
	Samples         []int16
}

// AudioSink is the output codec's playback queue.
type AudioSink interface {
	PlayPacket(pkt Packet)
	SetVolume(percent int)
	// ResetSampleRate restores the codec's original output sample rate.
	ResetSampleRate()
}

type Display interface {
	SetTitle(text string)
	SetLyricLine(text string)
	StartVisualizer()
	StopVisualizer()
}

// SpectrumSink is optionally implemented by displays that render a visualizer
// from the decoded PCM.
type SpectrumSink interface {
	PushSamples(samples []int16)
}

// StateService queries the interaction state and requests a transition back
// to idle when background audio needs the speaker.
type StateService interface {
	State() State
	RequestIdle()
}

// ClientFactory hands out HTTP clients for the engine's network requests.
type ClientFactory interface {
	HTTPClient() *http.Client
}
