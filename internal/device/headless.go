package device

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LogDisplay is a Display for headless runs that writes every update to the log.
type LogDisplay struct {
	mu    sync.Mutex
	title string
	lyric string
}

func (d *LogDisplay) SetTitle(text string) {
	d.mu.Lock()
	d.title = text
	d.mu.Unlock()
	if text != "" {
		log.Info().Str("title", text).Msg("Display title")
	}
}

func (d *LogDisplay) SetLyricLine(text string) {
	d.mu.Lock()
	d.lyric = text
	d.mu.Unlock()
	log.Info().Str("lyric", text).Msg("Display lyric")
}

func (d *LogDisplay) StartVisualizer() {
	log.Debug().Msg("Visualizer started")
}

func (d *LogDisplay) StopVisualizer() {
	log.Debug().Msg("Visualizer stopped")
}

// Snapshot returns the last title and lyric shown.
func (d *LogDisplay) Snapshot() (title, lyric string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, d.lyric
}

// StaticState is a StateService with a settable state. RequestIdle moves it
// straight to idle, as a device without a voice pipeline would.
type StaticState struct {
	mu    sync.Mutex
	state State
}

func NewStaticState(initial State) *StaticState {
	return &StaticState{state: initial}
}

func (s *StaticState) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StaticState) Set(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != state {
		log.Debug().Msgf("Device state: %s -> %s", s.state, state)
		s.state = state
	}
}

func (s *StaticState) RequestIdle() {
	s.Set(StateIdle)
}

// DiscardSink drops every packet. Used when audio output is disabled.
type DiscardSink struct{}

func (DiscardSink) PlayPacket(Packet) {}
func (DiscardSink) SetVolume(int)     {}
func (DiscardSink) ResetSampleRate()  {}

// StreamClients builds the long-lived HTTP client used for audio streams and
// API requests.
type StreamClients struct {
	once   sync.Once
	client *http.Client
}

func (f *StreamClients) HTTPClient() *http.Client {
	f.once.Do(func() {
		f.client = &http.Client{
			Timeout: 0, // streams are long-lived; requests carry their own deadlines
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				DisableCompression:    true,
			},
		}
	})
	return f.client
}
