package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/voxradio/internal/device"
	"github.com/glebovdev/voxradio/internal/session"
	"github.com/rivo/tview"
)

type StatusRenderer struct {
	isMuted       bool
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int

	bufferCapacity int
	primaryColor   string
}

func NewStatusRenderer(bufferCapacity int) *StatusRenderer {
	return &StatusRenderer{
		maxAnimFrame:   4,
		ticksPerFrame:  8, // Slow down animation (8 ticks per frame)
		bufferCapacity: bufferCapacity,
	}
}

func (s *StatusRenderer) SetMuted(muted bool) {
	s.isMuted = muted
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

func (s *StatusRenderer) Render(st session.Status, state device.State) string {
	switch {
	case st.Playing && st.Frames == 0:
		return s.renderBuffering(st)
	case st.Playing:
		return s.renderPlaying(st, state)
	case st.Downloading:
		return s.renderBuffering(st)
	default:
		return s.renderIdle(st)
	}
}

func (s *StatusRenderer) renderIdle(st session.Status) string {
	parts := []string{"○ IDLE"}
	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}
	if st.Message != "" {
		parts = append(parts, tview.Escape(st.Message))
	} else {
		parts = append(parts, "Request a song")
	}
	return joinParts(parts)
}

func (s *StatusRenderer) renderBuffering(st session.Status) string {
	circles := []string{"◐", "◓", "◑", "◒"}
	return joinParts([]string{
		fmt.Sprintf("%s BUFFERING", circles[s.animFrame]),
		s.formatBufferHealth(s.bufferPercent(st.BufferedBytes)),
	})
}

func (s *StatusRenderer) renderPlaying(st session.Status, state device.State) string {
	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]

	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	parts := []string{dot + " PLAYING"}

	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}
	if state != device.StateIdle {
		parts = append(parts, "[yellow]HELD "+state.String()+"[-]")
	}

	parts = append(parts,
		formatElapsed(st.ElapsedMs),
		modeShort(st.Mode, st.LyricsRunning),
		s.formatBufferHealth(s.bufferPercent(st.BufferedBytes)),
	)

	return joinParts(parts)
}

func (s *StatusRenderer) bufferPercent(buffered int) int {
	if s.bufferCapacity <= 0 {
		return 0
	}
	return buffered * 100 / s.bufferCapacity
}

func (s *StatusRenderer) formatBufferHealth(percent int) string {
	signalBars := []string{"▁", "▂", "▃", "▅", "▇"}
	const numBars = 5

	filled := (percent * numBars) / 100
	if filled > numBars {
		filled = numBars
	}

	bar := ""
	for i := 0; i < numBars; i++ {
		if i < filled {
			bar += signalBars[i]
		} else {
			bar += "▁"
		}
	}

	return bar
}

func formatElapsed(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func modeShort(mode device.DisplayMode, lyricsRunning bool) string {
	if mode == device.DisplayLyrics {
		if lyricsRunning {
			return "LRC"
		}
		return "LRC-"
	}
	return "FFT"
}

func joinParts(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	result := parts[0]
	for i := 1; i < len(parts); i++ {
		result += " │ " + parts[i]
	}
	return result
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.helpHotkey.String()

	muteText := "mute"
	if ui.isMuted {
		muteText = "unmute"
	}

	return fmt.Sprintf(" [%s]/[-] song  [%s]x[-] stop  [%s]d[-] mode  [%s]+/-[-] vol  [%s]m[-] %s  [%s]?[-] help  [%s]q[-] quit ",
		keyColor, keyColor, keyColor, keyColor, keyColor, muteText, keyColor, keyColor)
}

func (ui *UI) handleFooterResize(width int) {
	isWide := width >= FooterBreakpoint
	wasWide := ui.lastFooterWidth >= FooterBreakpoint

	if ui.lastFooterWidth > 0 && isWide != wasWide && ui.contentLayout != nil {
		newHeight := FooterHeightWide
		if !isWide {
			newHeight = FooterHeightNarrow
		}
		ui.contentLayout.ResizeItem(ui.helpPanel, newHeight, 0)
	}
	ui.lastFooterWidth = width
}

func (ui *UI) drawWideFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpWidth := width / 2
	statusWidth := width - helpWidth

	for row := y; row < y+height; row++ {
		for col := x; col < x+helpWidth; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.helpBackground))
		}
	}

	for row := y; row < y+height; row++ {
		for col := x + helpWidth; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.background))
		}
	}

	centerY := y + height/2
	tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignCenter, ui.colors.helpForeground)
	tview.Print(screen, statusText, x+helpWidth, centerY, statusWidth-2, tview.AlignRight, ui.colors.foreground)
}

func (ui *UI) drawNarrowFooter(screen tcell.Screen, x, y, width, height int, helpText, statusText string) {
	helpHeight := max(height/2, 1)
	statusHeight := height - helpHeight
	helpBoxEnd := y + helpHeight

	for row := y; row < helpBoxEnd; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.helpBackground))
		}
	}

	for row := helpBoxEnd; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, tcell.StyleDefault.Background(ui.colors.background))
		}
	}

	tview.Print(screen, helpText, x, y+helpHeight/2, width, tview.AlignCenter, ui.colors.helpForeground)

	if statusHeight > 0 {
		tview.Print(screen, statusText, x, helpBoxEnd+statusHeight/2, width-2, tview.AlignRight, ui.colors.foreground)
	}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)

		helpText := ui.getHelpText()
		statusText := " " + ui.statusRenderer.Render(ui.radioStatus(), ui.screen.State()) + " "

		isWide := width >= FooterBreakpoint
		usedHeight := height
		if isWide && height > FooterHeightWide {
			usedHeight = FooterHeightWide
		}

		if isWide {
			ui.drawWideFooter(screen, x, y, width, usedHeight, helpText, statusText)
		} else {
			ui.drawNarrowFooter(screen, x, y, width, height, helpText, statusText)
		}

		return x, y, width, height
	})

	return box
}
