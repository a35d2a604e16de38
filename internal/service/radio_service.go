// Package service exposes the radio as named commands with JSON results. A
// voice assistant's tool dispatcher, the headless binary and tests all drive
// the session through it.
package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/glebovdev/voxradio/internal/device"
	"github.com/glebovdev/voxradio/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	ToolPlaySong       = "self.radio.play_song"
	ToolSetDisplayMode = "self.radio.set_display_mode"
	ToolStop           = "self.radio.stop"

	// ArgSong and ArgMode are the argument names the tool dispatcher sends.
	ArgSong = "ten_kenh"
	ArgMode = "che_do"

	MsgPlayFailed   = "Could not load the radio stream, please try again later."
	MsgPlaying      = "The radio has started playing. Enjoy the music!"
	MsgStopped      = "Radio stopped. Thanks for listening!"
	MsgNothingToEnd = "No radio station is playing."
	MsgBadMode      = "Invalid display mode, use 'spectrum' or 'lyrics'."
	MsgUnknownTool  = "Unknown radio command."
)

// Result is the reply returned to the tool dispatcher.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success": false, "message": "internal error"}`
	}
	return string(data)
}

// Radio is the session surface the commands need.
type Radio interface {
	Resolve(name, artist string) bool
	Stop() bool
	SetDisplayMode(mode device.DisplayMode)
	Status() session.Status
	LastResponseBody() string
}

// RadioService maps tool calls onto the session and can report its status
// periodically.
type RadioService struct {
	radio       Radio
	mu          sync.Mutex
	watchTicker *time.Ticker
	stopWatch   chan struct{}
	onStatus    func(session.Status)
}

func NewRadioService(radio Radio) *RadioService {
	return &RadioService{radio: radio}
}

func (s *RadioService) PlaySong(name string) Result {
	name = strings.TrimSpace(name)
	log.Info().Str("song", name).Msg("Radio play requested")

	if name == "" || !s.radio.Resolve(name, "") {
		return Result{Success: false, Message: MsgPlayFailed}
	}

	log.Debug().Msgf("Lookup response: %s", s.radio.LastResponseBody())
	return Result{Success: true, Message: MsgPlaying}
}

// SetDisplayMode accepts the English mode names and their Vietnamese aliases
// in any case. The new mode applies from the next song.
func (s *RadioService) SetDisplayMode(mode string) Result {
	var m device.DisplayMode
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "spectrum", "phổ":
		m = device.DisplaySpectrum
	case "lyrics", "lời":
		m = device.DisplayLyrics
	default:
		log.Warn().Str("mode", mode).Msg("Rejected display mode")
		return Result{Success: false, Message: MsgBadMode}
	}

	s.radio.SetDisplayMode(m)
	log.Info().Str("mode", m.String()).Msg("Display mode set")
	return Result{Success: true, Message: fmt.Sprintf("Display mode set to %s.", m)}
}

func (s *RadioService) Stop() Result {
	log.Info().Msg("Radio stop requested")
	if !s.radio.Stop() {
		log.Warn().Msg("No radio playing to stop")
		return Result{Success: false, Message: MsgNothingToEnd}
	}
	return Result{Success: true, Message: MsgStopped}
}

// Call dispatches a tool by name.
func (s *RadioService) Call(tool string, args map[string]string) Result {
	switch tool {
	case ToolPlaySong:
		return s.PlaySong(args[ArgSong])
	case ToolSetDisplayMode:
		return s.SetDisplayMode(args[ArgMode])
	case ToolStop:
		return s.Stop()
	default:
		log.Warn().Str("tool", tool).Msg("Unknown radio tool")
		return Result{Success: false, Message: MsgUnknownTool}
	}
}

// Tools lists the command names Call understands.
func Tools() []string {
	tools := []string{ToolPlaySong, ToolSetDisplayMode, ToolStop}
	sort.Strings(tools)
	return tools
}

// StartStatusWatch calls callback with the session status every interval
// until StopStatusWatch.
func (s *RadioService) StartStatusWatch(interval time.Duration, callback func(session.Status)) {
	s.StopStatusWatch()

	s.mu.Lock()
	s.onStatus = callback
	s.stopWatch = make(chan struct{})
	s.watchTicker = time.NewTicker(interval)
	ticker := s.watchTicker
	stopCh := s.stopWatch
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				s.reportStatus()
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started status watch")
}

func (s *RadioService) StopStatusWatch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopWatch != nil {
		close(s.stopWatch)
		s.stopWatch = nil
		log.Debug().Msg("Stopped status watch")
	}
}

func (s *RadioService) reportStatus() {
	status := s.radio.Status()

	s.mu.Lock()
	callback := s.onStatus
	s.mu.Unlock()

	if callback != nil {
		callback(status)
	}
}
