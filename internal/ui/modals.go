package ui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/voxradio/internal/api"
	"github.com/glebovdev/voxradio/internal/config"
	"github.com/rivo/tview"
)

const (
	errorPage = "error-modal"
	infoPage  = "modal"

	maxErrorLength = 100
)

// friendlyError explains a failed song request in a line or two.
func friendlyError(err error) string {
	var dnsErr *net.DNSError
	var statusErr *api.StatusError

	switch {
	case errors.Is(err, api.ErrAuthFailed):
		return "The radio service rejected this device.\nCheck the device secret in your config."
	case errors.Is(err, api.ErrNoAudioURL), errors.Is(err, api.ErrEmptyResponse):
		return "No stream was found for that song."
	case errors.Is(err, context.DeadlineExceeded):
		return "The song lookup timed out.\nPlease check your internet connection."
	case errors.As(err, &dnsErr):
		return "Unable to reach the radio service.\nPlease check your internet connection."
	case errors.Is(err, syscall.ECONNREFUSED):
		return "The radio service refused the connection.\nIt may be temporarily unavailable."
	case errors.As(err, &statusErr):
		return fmt.Sprintf("The radio service answered %d.\nTry again later.", statusErr.StatusCode)
	}

	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength] + "..."
	}
	return msg
}

// dialog is a centered box over the device panels.
type dialog struct {
	page   string
	title  string
	body   string
	hint   string
	align  int
	width  int
	height int
	border tcell.Color
	// onKey reports whether the key closes the dialog.
	onKey func(event *tcell.EventKey) bool
}

// dialogHeight fits lines of body text plus the frame, hint and padding.
func dialogHeight(body string, minHeight, maxHeight int) int {
	h := strings.Count(body, "\n") + 7
	return min(max(h, minHeight), maxHeight)
}

func (ui *UI) openDialog(d dialog) {
	text := tview.NewTextView().
		SetTextAlign(d.align).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + d.body)
	text.SetTextColor(ui.colors.foreground)
	text.SetBackgroundColor(ui.colors.modalBackground)

	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[::d]" + d.hint + "[::-]")
	hint.SetTextColor(tcell.ColorDarkGray)
	hint.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(text, 0, 1, false).
		AddItem(hint, 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	frame := tview.NewFrame(content).SetBorders(0, 0, 1, 1, 2, 2)
	frame.SetBorder(true).
		SetBorderColor(d.border).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" " + d.title + " ").
		SetTitleColor(ui.colors.highlight)

	grid := tview.NewGrid().
		SetColumns(0, d.width, 0).
		SetRows(0, d.height, 0).
		AddItem(frame, 1, 1, 1, 1, 0, 0, true)
	grid.SetBackgroundColor(ui.colors.background)

	grid.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if d.onKey == nil || d.onKey(event) {
			ui.closeDialog(d.page)
		}
		return nil
	})

	ui.pages.AddPage(d.page, grid, true, true)
	ui.app.SetFocus(grid)
}

func (ui *UI) closeDialog(page string) {
	ui.pages.RemovePage(page)
	ui.app.SetFocus(ui.songList)
}

// showError reports a failed request. R replays the last requested song.
func (ui *UI) showError(err error) {
	message := friendlyError(err)
	ui.openDialog(dialog{
		page:   errorPage,
		title:  "Request failed",
		body:   message,
		hint:   "R retry  •  Esc dismiss",
		align:  tview.AlignCenter,
		width:  50,
		height: dialogHeight(message, 9, 15),
		border: ui.colors.highlight,
		onKey: func(event *tcell.EventKey) bool {
			switch event.Key() {
			case tcell.KeyEscape, tcell.KeyEnter:
				return true
			case tcell.KeyRune:
				if event.Rune() != 'r' && event.Rune() != 'R' {
					return false
				}
				ui.closeDialog(errorPage)
				if song := ui.config.LastSong(); song != "" {
					ui.requestSong(song)
				}
			}
			return false
		},
	})
}

type keyBinding struct {
	keys   string
	action string
}

var helpSections = []struct {
	name     string
	bindings []keyBinding
}{
	{"PLAYBACK", []keyBinding{
		{"/", "Type a song name"},
		{"Enter", "Play song"},
		{"x", "Stop"},
		{"d", "Spectrum / lyrics"},
	}},
	{"DEVICE STATE", []keyBinding{
		{"1", "Idle"},
		{"2", "Listening"},
		{"3", "Speaking"},
		{"4", "Connecting"},
	}},
	{"VOLUME", []keyBinding{
		{"+ / -", "Master volume"},
		{"m", "Mute / unmute"},
	}},
	{"APPLICATION", []keyBinding{
		{"?", "This help"},
		{"a", "About"},
		{"q / Esc", "Quit"},
	}},
}

func (ui *UI) helpText() string {
	keyColor := ui.colors.helpHotkey.String()

	var b strings.Builder
	for i, section := range helpSections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]%s[-]\n", keyColor, section.name)
		for _, kb := range section.bindings {
			fmt.Fprintf(&b, "  [%s]%-8s[-] %s\n", keyColor, kb.keys, kb.action)
		}
	}
	if configPath, err := config.GetConfigPath(); err == nil {
		fmt.Fprintf(&b, "\n[%s]CONFIG[-] %s", keyColor, tview.Escape(configPath))
	}
	return b.String()
}

func (ui *UI) showHelpModal() {
	text := ui.helpText()
	ui.openDialog(dialog{
		page:   infoPage,
		title:  "Help",
		body:   text,
		hint:   "Press any key to close",
		align:  tview.AlignLeft,
		width:  45,
		height: dialogHeight(text, 12, 38),
		border: ui.colors.borders,
	})
}

// aboutText describes the build and the simulated device it talks as.
func (ui *UI) aboutText() string {
	mac := ui.config.Device.MACAddress
	if mac == "" {
		mac = "host interface"
	}
	mode := "spectrum"
	if ui.radio != nil {
		mode = ui.radio.DisplayMode().String()
	}

	return fmt.Sprintf("[::b]%s[::-] v%s\n[gray]%s[-]\n\n"+
		"Project: [skyblue:::%s]%s[-:::-]\n"+
		"Author:  %s\n\n"+
		"Service: %s\n"+
		"Device:  %s\n"+
		"Display: %s",
		config.AppName, config.AppVersion, config.AppTagline,
		config.AppProjectURL, config.AppProjectShort,
		config.AppAuthor,
		tview.Escape(ui.config.APIBaseURL),
		tview.Escape(mac),
		mode)
}

func (ui *UI) showAboutModal() {
	text := ui.aboutText()
	ui.openDialog(dialog{
		page:   infoPage,
		title:  "About",
		body:   text,
		hint:   "Press any key to close",
		align:  tview.AlignLeft,
		width:  50,
		height: dialogHeight(text, 12, 20),
		border: ui.colors.borders,
	})
}
