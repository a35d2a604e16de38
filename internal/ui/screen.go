package ui

import (
	"math"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/voxradio/internal/device"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	SpectrumBands = 24
	// SpectrumDecay is applied to every band on each animation tick.
	SpectrumDecay = 0.8
	SpectrumFloor = 0.01
)

// Screen is the simulated device: it renders what the engine sends to the
// display and holds the voice interaction state the engine waits on.
type Screen struct {
	mu         sync.Mutex
	title      string
	lyric      string
	visualizer bool
	bands      [SpectrumBands]float64
	state      device.State
	idleAsks   int
}

var (
	_ device.Display      = (*Screen)(nil)
	_ device.SpectrumSink = (*Screen)(nil)
	_ device.StateService = (*Screen)(nil)
)

func NewScreen() *Screen {
	return &Screen{state: device.StateIdle}
}

func (s *Screen) SetTitle(text string) {
	s.mu.Lock()
	s.title = text
	s.mu.Unlock()
}

func (s *Screen) SetLyricLine(text string) {
	s.mu.Lock()
	s.lyric = text
	s.mu.Unlock()
}

func (s *Screen) StartVisualizer() {
	s.mu.Lock()
	s.visualizer = true
	s.mu.Unlock()
}

func (s *Screen) StopVisualizer() {
	s.mu.Lock()
	s.visualizer = false
	s.bands = [SpectrumBands]float64{}
	s.mu.Unlock()
}

// PushSamples splits the packet into equal slices and raises each band to
// the slice's RMS level, normalized to [0, 1].
func (s *Screen) PushSamples(samples []int16) {
	if len(samples) < SpectrumBands {
		return
	}
	levels := bandLevels(samples, SpectrumBands)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visualizer {
		return
	}
	for i, level := range levels {
		s.bands[i] = max(s.bands[i], level)
	}
}

func bandLevels(samples []int16, bands int) []float64 {
	levels := make([]float64, bands)
	per := len(samples) / bands
	if per == 0 {
		return levels
	}
	for b := range levels {
		var sum float64
		for _, v := range samples[b*per : (b+1)*per] {
			f := float64(v) / 32768
			sum += f * f
		}
		levels[b] = min(math.Sqrt(sum/float64(per)), 1)
	}
	return levels
}

// decay lets the bars fall back between packets.
func (s *Screen) decay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bands {
		s.bands[i] *= SpectrumDecay
		if s.bands[i] < SpectrumFloor {
			s.bands[i] = 0
		}
	}
}

func (s *Screen) State() device.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestIdle ends the simulated voice interaction immediately.
func (s *Screen) RequestIdle() {
	s.mu.Lock()
	prev := s.state
	s.state = device.StateIdle
	s.idleAsks++
	s.mu.Unlock()
	log.Info().Str("from", prev.String()).Msg("Device asked to go idle for playback")
}

func (s *Screen) SetState(state device.State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	log.Debug().Str("state", state.String()).Msg("Simulated device state changed")
}

type screenView struct {
	Title      string
	Lyric      string
	Visualizer bool
	Bands      []float64
	State      device.State
	IdleAsks   int
}

func (s *Screen) snapshot() screenView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return screenView{
		Title:      s.title,
		Lyric:      s.lyric,
		Visualizer: s.visualizer,
		Bands:      append([]float64(nil), s.bands[:]...),
		State:      s.state,
		IdleAsks:   s.idleAsks,
	}
}

// barGlyphs are the eighth-block characters used for the top of a bar.
var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// barColumn renders a band level as height cells, bottom first.
func barColumn(level float64, height int) []rune {
	cells := make([]rune, height)
	eighths := int(math.Round(level * float64(height*8)))
	for i := range cells {
		switch fill := eighths - i*8; {
		case fill >= 8:
			cells[i] = barGlyphs[8]
		case fill > 0:
			cells[i] = barGlyphs[fill]
		default:
			cells[i] = ' '
		}
	}
	return cells
}

func (ui *UI) createScreenPanel() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)
	box.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetTitle(" Device ").
		SetTitleColor(ui.colors.foreground)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ix, iy, iw, ih := box.GetInnerRect()
		ui.drawScreen(screen, ix, iy, iw, ih)
		return x, y, width, height
	})
	return box
}

func (ui *UI) drawScreen(screen tcell.Screen, x, y, width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	view := ui.screen.snapshot()

	title := view.Title
	if title == "" {
		title = "-"
	}
	tview.Print(screen, " "+tview.Escape(title), x, y, width, tview.AlignLeft, ui.colors.highlight)

	bodyY := y + 2
	bodyHeight := height - 2
	if bodyHeight <= 0 {
		return
	}

	if view.Visualizer {
		ui.drawSpectrum(screen, x, bodyY, width, bodyHeight, view.Bands)
		return
	}

	lyric := strings.TrimSpace(view.Lyric)
	if lyric == "" {
		return
	}
	tview.Print(screen, tview.Escape(lyric), x, bodyY+bodyHeight/2, width, tview.AlignCenter, ui.colors.lyric)
}

func (ui *UI) drawSpectrum(screen tcell.Screen, x, y, width, height int, bands []float64) {
	if len(bands) == 0 {
		return
	}
	barWidth := max(width/len(bands), 1)
	gap := 1
	if barWidth == 1 {
		gap = 0
	}
	style := tcell.StyleDefault.Foreground(ui.colors.spectrum).Background(ui.colors.background)

	for b, level := range bands {
		column := barColumn(level, height)
		left := x + b*barWidth
		if left+barWidth > x+width {
			break
		}
		for row, r := range column {
			cy := y + height - 1 - row
			for cx := left; cx < left+barWidth-gap; cx++ {
				screen.SetContent(cx, cy, r, nil, style)
			}
		}
	}
}
