package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/voxradio/internal/config"
	"github.com/glebovdev/voxradio/internal/device"
	"github.com/glebovdev/voxradio/internal/output"
	"github.com/glebovdev/voxradio/internal/session"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	VolumeStep         = 5
	HeaderHeight       = 3
	FooterHeightWide   = 3 // Wide: 1 row with padding (top + text + bottom)
	FooterHeightNarrow = 6 // Narrow: 2 rows × 3 lines each
	ScreenPanelHeight  = 14
	VolumePanelWidth   = 7
	InputHeight        = 1
	FooterBreakpoint   = 130 // Width threshold for responsive footer
	RequestTimeout     = 15 * time.Second
)

// Radio is the session surface the simulator drives.
type Radio interface {
	ResolveContext(ctx context.Context, name, artist string) error
	Stop() bool
	SetDisplayMode(mode device.DisplayMode)
	DisplayMode() device.DisplayMode
	Status() session.Status
}

type UI struct {
	app             *tview.Application
	radio           Radio
	screen          *Screen
	master          *output.MasterVolume
	screenPanel     *tview.Box
	songList        *tview.Table
	songInput       *tview.InputField
	helpPanel       *tview.Box
	contentLayout   *tview.Flex
	volumeView      *tview.Flex
	mainLayout      *tview.Flex
	pages           *tview.Pages
	stopUpdates     chan struct{}
	currentVolume   int
	lastOutput      int
	isMuted         bool
	config          *config.Config
	initialSong     string
	lastFooterWidth int // Track width to detect layout changes
	mu              sync.Mutex
	animationFrame  int
	playingSpinner  *PlayingSpinner
	statusRenderer  *StatusRenderer
	colors          struct {
		background       tcell.Color
		foreground       tcell.Color
		borders          tcell.Color
		highlight        tcell.Color
		headerBackground tcell.Color
		lyric            tcell.Color
		spectrum         tcell.Color
		helpBackground   tcell.Color
		helpForeground   tcell.Color
		helpHotkey       tcell.Color
		modalBackground  tcell.Color
	}
}

// NewUI builds the simulator around screen, which must also be the display
// and state service handed to the session. initialSong, when set, is
// requested as soon as the interface is up.
func NewUI(cfg *config.Config, screen *Screen, master *output.MasterVolume, initialSong string) *UI {
	ui := &UI{
		app:           tview.NewApplication(),
		screen:        screen,
		master:        master,
		stopUpdates:   make(chan struct{}),
		currentVolume: cfg.MasterVolume,
		config:        cfg,
		initialSong:   initialSong,
	}

	ui.colors.background = config.GetColor(cfg.Theme.Background)
	ui.colors.foreground = config.GetColor(cfg.Theme.Foreground)
	ui.colors.borders = config.GetColor(cfg.Theme.Borders)
	ui.colors.highlight = config.GetColor(cfg.Theme.Highlight)
	ui.colors.headerBackground = config.GetColor(cfg.Theme.HeaderBackground)
	ui.colors.lyric = config.GetColor(cfg.Theme.LyricForeground)
	ui.colors.spectrum = config.GetColor(cfg.Theme.SpectrumBar)
	ui.colors.helpBackground = config.GetColor(cfg.Theme.HelpBackground)
	ui.colors.helpForeground = config.GetColor(cfg.Theme.HelpForeground)
	ui.colors.helpHotkey = config.GetColor(cfg.Theme.HelpHotkey)
	ui.colors.modalBackground = config.GetColor(cfg.Theme.ModalBackground)

	ui.applyMaster(cfg.MasterVolume)
	log.Debug().Msgf("Loaded master volume from config: %d%%", cfg.MasterVolume)

	ui.statusRenderer = NewStatusRenderer(cfg.Buffer.MaxBytes)
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())

	return ui
}

// SetRadio attaches the session. The session is built after the UI because
// the UI's screen is one of its collaborators.
func (ui *UI) SetRadio(r Radio) {
	ui.radio = r
}

func (ui *UI) SaveConfig() {
	ui.mu.Lock()
	if !ui.isMuted {
		ui.config.MasterVolume = ui.currentVolume
	}
	if ui.radio != nil {
		ui.config.DisplayMode = ui.radio.DisplayMode().String()
	}
	ui.mu.Unlock()

	if err := ui.config.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}
}

func (ui *UI) safeCloseChannel() {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.stopUpdates != nil {
		select {
		case <-ui.stopUpdates:
			// Already closed
		default:
			close(ui.stopUpdates)
		}
		ui.stopUpdates = nil
	}
}

func (ui *UI) stop() {
	ui.safeCloseChannel()
	ui.app.Stop()
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	ui.setupUI()
	ui.app.SetRoot(ui.pages, true).EnableMouse(true)
	ui.app.SetFocus(ui.songList)
	ui.configureScreen()

	ui.startAnimation()
	if ui.initialSong != "" {
		ui.requestSong(ui.initialSong)
	}

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

func (ui *UI) setupUI() {
	header := ui.createHeader()

	ui.screenPanel = ui.createScreenPanel()
	ui.volumeView = ui.createGraphicalVolumeBar()

	devicePanel := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(ui.screenPanel, 0, 1, false).
		AddItem(ui.volumeView, VolumePanelWidth, 0, false)
	devicePanel.SetBackgroundColor(ui.colors.background)

	ui.songInput = ui.createSongInput()
	ui.songList = ui.createSongListTable()
	ui.songList.SetSelectedFunc(func(row, column int) {
		if song := ui.selectedSong(); song != "" {
			ui.requestSong(song)
		}
	})

	ui.helpPanel = ui.createFooter()

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(devicePanel, ScreenPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.songInput, InputHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.songList, 0, 1, true).
		AddItem(ui.helpPanel, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	ui.mainLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	ui.mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", ui.mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage("modal") || ui.pages.HasPage("error-modal") {
			return event
		}
		if ui.app.GetFocus() == ui.songInput {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.foreground)
	titleView.SetBackgroundColor(ui.colors.headerBackground)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.foreground)
	versionView.SetBackgroundColor(ui.colors.headerBackground)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false)
	textFlex.SetBackgroundColor(ui.colors.headerBackground)

	topSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	bottomSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	leftSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)
	rightSpacer := tview.NewBox().SetBackgroundColor(ui.colors.headerBackground)

	textWithPadding := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(leftSpacer, 1, 0, false).
		AddItem(textFlex, 0, 1, false).
		AddItem(rightSpacer, 1, 0, false)
	textWithPadding.SetBackgroundColor(ui.colors.headerBackground)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topSpacer, 1, 0, false).
		AddItem(textWithPadding, 1, 0, false).
		AddItem(bottomSpacer, 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.headerBackground)

	return headerFlex
}

func (ui *UI) createSongInput() *tview.InputField {
	input := tview.NewInputField().
		SetLabel(" Song: ").
		SetPlaceholder("type a song name and press Enter").
		SetFieldBackgroundColor(ui.colors.modalBackground).
		SetFieldTextColor(ui.colors.highlight).
		SetLabelColor(ui.colors.foreground).
		SetPlaceholderTextColor(ui.colors.borders)
	input.SetBackgroundColor(ui.colors.background)

	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			song := input.GetText()
			input.SetText("")
			ui.app.SetFocus(ui.songList)
			ui.requestSong(song)
		case tcell.KeyEscape:
			input.SetText("")
			ui.app.SetFocus(ui.songList)
		}
	})
	return input
}

// requestSong records song in the history and resolves it on a background
// goroutine; lookup and stream start never block the draw loop.
func (ui *UI) requestSong(song string) {
	if song == "" || ui.radio == nil {
		return
	}
	ui.recordRequest(song)
	if ui.songList != nil {
		ui.refreshSongTable(ui.songList)
		ui.songList.Select(1, 0)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
		defer cancel()

		log.Info().Msgf("Requesting song: %s", song)
		if err := ui.radio.ResolveContext(ctx, song, ""); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, session.ErrClosed) {
				return
			}
			log.Error().Err(err).Msg("Failed to play song")
			ui.app.QueueUpdateDraw(func() {
				ui.showError(err)
			})
		}
	}()
}

func (ui *UI) stopPlayback() {
	if ui.radio == nil {
		return
	}
	go func() {
		if !ui.radio.Stop() {
			log.Debug().Msg("Stop requested with nothing playing")
		}
	}()
}

func (ui *UI) toggleDisplayMode() {
	if ui.radio == nil {
		return
	}
	mode := device.DisplayLyrics
	if ui.radio.DisplayMode() == device.DisplayLyrics {
		mode = device.DisplaySpectrum
	}
	ui.radio.SetDisplayMode(mode)
	log.Info().Str("mode", mode.String()).Msg("Display mode changed, applies to the next song")
	ui.SaveConfig()
}

func (ui *UI) radioStatus() session.Status {
	if ui.radio == nil {
		return session.Status{}
	}
	return ui.radio.Status()
}

func (ui *UI) playingSong() string {
	st := ui.radioStatus()
	if !st.Playing {
		return ""
	}
	return st.Song
}

type PlayingSpinner struct {
	Frames []string
	FPS    time.Duration
}

func NewPlayingSpinner() *PlayingSpinner {
	return &PlayingSpinner{
		Frames: []string{"⣾ ", "⣽ ", "⣻ ", "⢿ ", "⡿ ", "⣟ ", "⣯ ", "⣷ "},
		FPS:    time.Second / 10,
	}
}

func (ui *UI) getPlayingIndicator() string {
	if ui.playingSpinner == nil {
		ui.playingSpinner = NewPlayingSpinner()
	}

	ui.mu.Lock()
	frame := ui.animationFrame
	ui.mu.Unlock()
	return ui.playingSpinner.Frames[frame%len(ui.playingSpinner.Frames)]
}

// startAnimation drives redraws: the screen and footer read live state in
// their draw functions, so each tick only needs to advance animations.
func (ui *UI) startAnimation() {
	if ui.playingSpinner == nil {
		ui.playingSpinner = NewPlayingSpinner()
	}

	ui.mu.Lock()
	stop := ui.stopUpdates
	ui.mu.Unlock()

	go func() {
		ticker := time.NewTicker(ui.playingSpinner.FPS)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ui.mu.Lock()
				ui.animationFrame++
				ui.mu.Unlock()

				ui.statusRenderer.AdvanceAnimation()
				ui.screen.decay()

				ui.refreshOutputLevel()
				ui.app.QueueUpdateDraw(func() {
					ui.updateSongListPlayingIndicator()
				})
			}
		}
	}()
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case '/':
			ui.app.SetFocus(ui.songInput)
			return nil
		case 'x', 'X':
			ui.stopPlayback()
			return nil
		case 'd', 'D':
			ui.toggleDisplayMode()
			return nil
		case '1':
			ui.screen.SetState(device.StateIdle)
			return nil
		case '2':
			ui.screen.SetState(device.StateListening)
			return nil
		case '3':
			ui.screen.SetState(device.StateSpeaking)
			return nil
		case '4':
			ui.screen.SetState(device.StateConnecting)
			return nil
		case '+', '=':
			ui.adjustVolume(VolumeStep)
			return nil
		case '-', '_':
			ui.adjustVolume(-VolumeStep)
			return nil
		case 'm', 'M':
			ui.toggleMute()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		case 'a', 'A':
			ui.showAboutModal()
			return nil
		}
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		// Right arrow - volume up (hidden shortcut)
		ui.adjustVolume(VolumeStep)
		return nil
	case tcell.KeyLeft:
		// Left arrow - volume down (hidden shortcut)
		ui.adjustVolume(-VolumeStep)
		return nil
	}
	return event
}
