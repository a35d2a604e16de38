package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/voxradio/internal/config"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (ui *UI) buildVolumeBar(container *tview.Flex) {
	const barHeight = 10

	ui.mu.Lock()
	displayVolume := ui.currentVolume
	isMuted := ui.isMuted
	if isMuted {
		displayVolume = ui.config.MasterVolume
	}
	ui.mu.Unlock()

	// The engine ducks playback below the master level; the ducked share of
	// the bar is drawn hatched.
	outputLevel := ui.outputLevel(displayVolume)
	filledLines := (displayVolume * barHeight) / 100
	emptyLines := barHeight - filledLines
	outputLines := min((outputLevel*barHeight)/100, filledLines)
	duckedLines := filledLines - outputLines

	createText := func(text string, color tcell.Color) *tview.TextView {
		tv := tview.NewTextView()
		tv.SetText(text)
		tv.SetTextAlign(tview.AlignRight)
		tv.SetTextColor(color)
		tv.SetBackgroundColor(ui.colors.background)
		return tv
	}

	createBarLine := func(barText string, barColor tcell.Color, showPercent bool) *tview.Flex {
		line := tview.NewFlex().SetDirection(tview.FlexColumn)
		line.SetBackgroundColor(ui.colors.background)

		if showPercent {
			percentText := fmt.Sprintf("%d%%", displayVolume)

			var percentColor tcell.Color
			if isMuted {
				percentColor = config.GetColor(ui.config.Theme.MutedVolume)
			} else {
				percentColor = ui.colors.highlight
			}

			percentView := createText(percentText, percentColor)
			percentView.SetTextAlign(tview.AlignRight)

			if isMuted {
				percentView.SetTextStyle(tcell.StyleDefault.
					Foreground(percentColor).
					Background(ui.colors.background).
					Attributes(tcell.AttrStrikeThrough))
			}

			line.AddItem(percentView, 4, 0, false)
		} else {
			line.AddItem(createText("    ", ui.colors.foreground), 4, 0, false)
		}

		line.AddItem(createText(barText, barColor), 0, 1, false)

		return line
	}

	container.AddItem(createText("   max", ui.colors.foreground), 1, 0, false)

	for i := 0; i < emptyLines; i++ {
		container.AddItem(createBarLine(" ░░", ui.colors.foreground, false), 1, 0, false)
	}

	barColor := ui.colors.highlight
	if isMuted {
		barColor = config.GetColor(ui.config.Theme.MutedVolume)
	}
	for i := 0; i < filledLines; i++ {
		glyph := " ██"
		if i < duckedLines {
			glyph = " ▒▒"
		}
		container.AddItem(createBarLine(glyph, barColor, i == 0), 1, 0, false)
	}

	container.AddItem(createText("   min", ui.colors.foreground), 1, 0, false)

	container.AddItem(nil, 0, 1, false)
}

func (ui *UI) createGraphicalVolumeBar() *tview.Flex {
	volumeContainer := tview.NewFlex().SetDirection(tview.FlexRow)
	volumeContainer.SetBackgroundColor(ui.colors.background)
	ui.buildVolumeBar(volumeContainer)
	return volumeContainer
}

func (ui *UI) updateVolumeDisplay() {
	if ui.volumeView != nil {
		ui.volumeView.Clear()
		ui.buildVolumeBar(ui.volumeView)
	}
}

func (ui *UI) adjustVolume(delta int) {
	ui.mu.Lock()

	if ui.isMuted {
		ui.currentVolume = ui.config.MasterVolume
		ui.isMuted = false
		ui.statusRenderer.SetMuted(false)
		ui.mu.Unlock()

		ui.applyMaster(ui.currentVolume)
		ui.updateVolumeDisplay()
		log.Debug().Msgf("Auto-unmuted, restored volume to %d%%", ui.currentVolume)
		return
	}

	ui.currentVolume = config.ClampVolume(ui.currentVolume + delta)
	volume := ui.currentVolume
	ui.mu.Unlock()

	ui.applyMaster(volume)
	ui.updateVolumeDisplay()
	ui.SaveConfig()
	log.Debug().Msgf("Volume adjusted to %d%%", volume)
}

func (ui *UI) toggleMute() {
	ui.mu.Lock()
	if ui.isMuted {
		ui.currentVolume = ui.config.MasterVolume
		ui.isMuted = false
		log.Debug().Msgf("Unmuted, restored volume to %d%%", ui.currentVolume)
	} else {
		if ui.currentVolume == 0 {
			ui.config.MasterVolume = config.DefaultMasterVolume
		} else {
			ui.config.MasterVolume = ui.currentVolume
		}
		ui.currentVolume = 0
		ui.isMuted = true
		log.Debug().Msgf("Muted, saved volume %d%%", ui.config.MasterVolume)
	}
	ui.statusRenderer.SetMuted(ui.isMuted)
	volume := ui.currentVolume
	ui.mu.Unlock()

	ui.applyMaster(volume)
	ui.updateVolumeDisplay()
	ui.SaveConfig()
}

// outputLevel is what actually reaches the speaker, or fallback when no
// master control is attached.
func (ui *UI) outputLevel(fallback int) int {
	if ui.master == nil {
		return fallback
	}
	return ui.master.Output()
}

// refreshOutputLevel redraws the volume bar when the engine changed its
// requested level since the last tick.
func (ui *UI) refreshOutputLevel() {
	if ui.master == nil {
		return
	}
	level := ui.master.Output()
	ui.mu.Lock()
	changed := level != ui.lastOutput
	ui.lastOutput = level
	ui.mu.Unlock()
	if changed {
		ui.app.QueueUpdateDraw(ui.updateVolumeDisplay)
	}
}

func (ui *UI) applyMaster(volume int) {
	if ui.master != nil {
		ui.master.SetMaster(volume)
	}
}
