package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/glebovdev/voxradio/internal/auth"
	"github.com/glebovdev/voxradio/internal/cache"
	"github.com/glebovdev/voxradio/internal/config"
	"github.com/glebovdev/voxradio/internal/device"
	"github.com/glebovdev/voxradio/internal/lyrics"
	"github.com/glebovdev/voxradio/internal/output"
	"github.com/glebovdev/voxradio/internal/service"
	"github.com/glebovdev/voxradio/internal/session"
	"github.com/glebovdev/voxradio/internal/ui"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const statusInterval = 5 * time.Second

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	headlessFlag = flag.Bool("headless", false, "Play without the terminal UI and log display updates")
	songFlag     = flag.String("song", "", "Song to request on startup")
	modeFlag     = flag.String("mode", "", "Display mode: spectrum or lyrics (overrides config)")
	muteFlag     = flag.Bool("mute", false, "Do not open the audio device")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}
	if *modeFlag != "" {
		cfg.DisplayMode = *modeFlag
	}
	mode, err := device.ParseDisplayMode(cfg.DisplayMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if *debugFlag {
		if configPath, err := config.GetConfigPath(); err == nil {
			log.Debug().Msgf("Config: %s", configPath)
		}
		if cacheDir, err := cache.GetCacheDir(); err == nil {
			log.Debug().Msgf("Cache: %s", cacheDir)
		}
	}

	identity := deviceIdentity(cfg.Device)

	sink := output.NewSink(output.Options{Muted: *muteFlag})
	defer sink.Close()
	master := output.NewMasterVolume(sink, cfg.MasterVolume)

	opts := session.DefaultOptions()
	opts.BufferBytes = cfg.Buffer.MaxBytes
	opts.DisplayMode = mode
	opts.Player.Prebuffer = cfg.Buffer.PrebufferBytes
	opts.Player.Latency = time.Duration(cfg.LyricLatencyMs) * time.Millisecond
	opts.Player.PlaybackVolume = cfg.Volume
	opts.Player.QuiescentVolume = cfg.QuiescentVolume

	deps := session.Deps{
		Sink:       master,
		Clients:    &device.StreamClients{},
		APIBaseURL: cfg.APIBaseURL,
		LyricCache: lyricCache(cfg.LyricCache),
		Identity:   identity,
		UserAgent:  cfg.UserAgent,
	}

	song := *songFlag
	if *headlessFlag {
		code := runHeadless(deps, opts, song)
		sink.Close()
		os.Exit(code)
	}

	if song == "" {
		song = cfg.LastSong()
	}
	screen := ui.NewScreen()
	deps.Display = screen
	deps.State = screen
	radio := session.New(deps, opts)
	defer radio.Close()

	radioUI := ui.NewUI(cfg, screen, master, song)
	radioUI.SetRadio(radio)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	uiDone := make(chan error, 1)

	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, cleaning up...")
		radioUI.Shutdown()
	}()

	log.Info().Msg("Starting UI...")

	// Run UI in a goroutine so we can handle signals properly
	go func() {
		uiDone <- radioUI.Run()
	}()

	if err := <-uiDone; err != nil {
		log.Error().Err(err).Msg("Error running UI")
		radio.Close()
		os.Exit(1)
	}

	radioUI.SaveConfig()
	log.Info().Msgf("%s stopped", config.AppName)
}

func setupLogging() {
	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)

		cacheDir, err := cache.GetCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
			cacheDir = os.TempDir()
		}
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
		}
		logPath := filepath.Join(cacheDir, "debug.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
			logFile = os.Stderr
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
		fmt.Printf("Debug log: %s\n", logPath)
		log.Info().Msgf("Starting %s v%s (debug mode)", config.AppName, config.AppVersion)
		return
	}

	if *headlessFlag {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}

	// Avoid TUI corruption by only logging errors to /dev/null
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
	if err == nil {
		log.Logger = log.Output(logFile)
	}
}

// runHeadless plays song with a log-backed display and exits when playback
// ends or on a signal.
func runHeadless(deps session.Deps, opts session.Options, song string) int {
	if song == "" {
		fmt.Fprintln(os.Stderr, "Error: -headless needs -song")
		return 2
	}

	deps.Display = &device.LogDisplay{}
	deps.State = device.NewStaticState(device.StateIdle)
	radio := session.New(deps, opts)
	defer radio.Close()

	svc := service.NewRadioService(radio)
	result := svc.PlaySong(song)
	fmt.Println(result.JSON())
	if !result.Success {
		log.Error().Str("status", radio.Status().Message).Msg("Playback did not start")
		return 1
	}

	finished := make(chan struct{}, 1)
	svc.StartStatusWatch(statusInterval, func(st session.Status) {
		log.Info().
			Str("song", st.Song).
			Int64("elapsed_ms", st.ElapsedMs).
			Int("buffered", st.BufferedBytes).
			Bool("downloading", st.Downloading).
			Msg("Playback status")
		if !st.Playing && !st.Downloading {
			select {
			case finished <- struct{}{}:
			default:
			}
		}
	})
	defer svc.StopStatusWatch()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("Received shutdown signal, cleaning up...")
		fmt.Println(svc.Stop().JSON())
	case <-finished:
		log.Info().Msg("Playback finished")
	}
	return 0
}

// lyricCache returns the on-disk lyric cache, or nil when disabled or
// unavailable. Expired entries are pruned in the background.
func lyricCache(enabled bool) lyrics.TextCache {
	if !enabled {
		return nil
	}
	c, err := cache.NewCache()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize lyric cache, lyrics will not be cached")
		return nil
	}
	go func() {
		if err := c.CleanExpired(); err != nil {
			log.Debug().Err(err).Msg("Failed to clean expired cache")
		}
	}()
	return c
}

// deviceIdentity fills a missing MAC address from the first hardware
// interface, mirroring how the device reports its own.
func deviceIdentity(d config.Device) auth.Identity {
	id := auth.Identity{
		MAC:    d.MACAddress,
		ChipID: d.ChipID,
		Secret: d.SecretKey,
	}
	if id.MAC != "" {
		return id
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list network interfaces")
		return id
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		id.MAC = iface.HardwareAddr.String()
		log.Debug().Str("interface", iface.Name).Str("mac", id.MAC).Msg("Using host MAC address")
		break
	}
	if id.MAC == "" {
		log.Warn().Msg("No hardware address found, requests carry an empty device MAC")
	}
	return id
}
