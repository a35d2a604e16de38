package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

func (ui *UI) createSongListTable() *tview.Table {
	table := tview.NewTable().
		SetBorders(false).
		SetSeparator(' ').
		SetSelectable(true, false).
		SetFixed(1, 0)

	table.SetBorder(true).
		SetBorderColor(ui.colors.borders).
		SetTitleColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.background).
		SetBorderPadding(1, 0, 1, 1)

	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(ui.colors.background).
		Background(ui.colors.highlight))

	ui.refreshSongTable(table)
	return table
}

func (ui *UI) refreshSongTable(table *tview.Table) {
	table.Clear()

	table.SetCell(0, 0, tview.NewTableCell(" ").
		SetTextColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.headerBackground).
		SetMaxWidth(2).
		SetSelectable(false))

	table.SetCell(0, 1, tview.NewTableCell("Recent requests").
		SetTextColor(ui.colors.foreground).
		SetBackgroundColor(ui.colors.headerBackground).
		SetExpansion(1).
		SetSelectable(false))

	history := ui.historySnapshot()
	for i := range history {
		ui.setSongRow(table, i+1, history[i])
	}

	table.SetTitle(fmt.Sprintf("Songs (%d)", len(history)))
}

func (ui *UI) setSongRow(table *tview.Table, row int, song string) {
	playIcon := " "
	if song == ui.playingSong() {
		playIcon = ui.getPlayingIndicator()
	}
	table.SetCell(row, 0, tview.NewTableCell(playIcon).
		SetTextColor(ui.colors.highlight).
		SetMaxWidth(2))

	table.SetCell(row, 1, tview.NewTableCell(tview.Escape(song)).
		SetTextColor(ui.colors.foreground).
		SetExpansion(1))
}

func (ui *UI) historySnapshot() []string {
	ui.mu.Lock()
	defer ui.mu.Unlock()
	return append([]string(nil), ui.config.History...)
}

func (ui *UI) selectedSong() string {
	row, _ := ui.songList.GetSelection()
	history := ui.historySnapshot()
	if row <= 0 || row > len(history) {
		return ""
	}
	return history[row-1]
}

// updateSongListPlayingIndicator animates the marker next to the song that
// is currently playing.
func (ui *UI) updateSongListPlayingIndicator() {
	if ui.songList == nil {
		return
	}
	playing := ui.playingSong()
	history := ui.historySnapshot()
	for i, song := range history {
		cell := ui.songList.GetCell(i+1, 0)
		if cell == nil {
			continue
		}
		if song == playing {
			cell.SetText(ui.getPlayingIndicator())
		} else {
			cell.SetText(" ")
		}
	}
}

func (ui *UI) recordRequest(song string) {
	ui.mu.Lock()
	ui.config.AddHistory(song)
	ui.mu.Unlock()

	ui.SaveConfig()
	log.Debug().Str("song", song).Msg("Song added to history")
}
