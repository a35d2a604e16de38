package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gdamore/tcell/v2"
	"gopkg.in/yaml.v3"
)

const (
	AppName           = "VoxRadio"
	AppTagline        = "Streaming radio engine"
	AppDescription    = "An MP3 radio player with synchronized lyrics for voice-assistant devices"
	AppAuthor         = "Ilya Glebov"
	AppAuthorURLShort = "ilyaglebov.dev"
	AppProjectURL     = "https://github.com/glebovdev/voxradio"
	AppProjectShort   = "github.com/glebovdev/voxradio"

	ConfigDir      = ".config/voxradio"
	ConfigFileName = "config.yml"

	DefaultAPIBaseURL      = "https://ai.daongoc.vn/radio/"
	DefaultUserAgent       = "ESP32-Radio-Player/1.0"
	DefaultDisplayMode     = "spectrum"
	DefaultVolume          = 75
	DefaultQuiescentVolume = 25
	DefaultMasterVolume    = 100
	DefaultBufferBytes     = 256 * 1024
	DefaultPrebufferBytes  = 32 * 1024
	DefaultLyricLatencyMs  = 600

	MinVolume = 0
	MaxVolume = 100

	// MinBufferBytes keeps room for at least two full download chunks.
	MinBufferBytes = 8 * 1024

	HistoryLimit = 20
)

// ClampVolume ensures volume is within the valid range [0, 100].
func ClampVolume(volume int) int {
	if volume < MinVolume {
		return MinVolume
	}
	if volume > MaxVolume {
		return MaxVolume
	}
	return volume
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/glebovdev/voxradio/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Theme struct {
	Background       string `yaml:"background"`
	Foreground       string `yaml:"foreground"`
	Borders          string `yaml:"borders"`
	Highlight        string `yaml:"highlight"`
	MutedVolume      string `yaml:"muted_volume"`
	HeaderBackground string `yaml:"header_background"`
	LyricForeground  string `yaml:"lyric_foreground"`
	SpectrumBar      string `yaml:"spectrum_bar"`
	HelpBackground   string `yaml:"help_background"`
	HelpForeground   string `yaml:"help_foreground"`
	HelpHotkey       string `yaml:"help_hotkey"`
	ModalBackground  string `yaml:"modal_background"`
}

// Device holds the identity presented to the radio backend. Empty values
// are filled from the host at startup.
type Device struct {
	MACAddress string `yaml:"mac_address"`
	ChipID     string `yaml:"chip_id"`
	SecretKey  string `yaml:"secret_key"`
}

type Buffer struct {
	MaxBytes       int `yaml:"max_bytes"`
	PrebufferBytes int `yaml:"prebuffer_bytes"`
}

type Config struct {
	APIBaseURL      string   `yaml:"api_base_url"`
	UserAgent       string   `yaml:"user_agent"`
	Device          Device   `yaml:"device"`
	DisplayMode     string   `yaml:"display_mode"`
	Volume          int      `yaml:"volume"`
	QuiescentVolume int      `yaml:"quiescent_volume"`
	MasterVolume    int      `yaml:"master_volume"`
	Buffer          Buffer   `yaml:"buffer"`
	LyricLatencyMs  int      `yaml:"lyric_latency_ms"`
	LyricCache      bool     `yaml:"lyric_cache"`
	History         []string `yaml:"history"`
	Theme           Theme    `yaml:"theme"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(home, ConfigDir, ConfigFileName)
	return configPath, nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.normalize()

	return cfg, nil
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:      DefaultAPIBaseURL,
		UserAgent:       DefaultUserAgent,
		DisplayMode:     DefaultDisplayMode,
		Volume:          DefaultVolume,
		QuiescentVolume: DefaultQuiescentVolume,
		MasterVolume:    DefaultMasterVolume,
		Buffer: Buffer{
			MaxBytes:       DefaultBufferBytes,
			PrebufferBytes: DefaultPrebufferBytes,
		},
		LyricLatencyMs: DefaultLyricLatencyMs,
		LyricCache:     true,
		History:        []string{},
		Theme: Theme{
			Background:       "#1a1b25",
			Foreground:       "#a3aacb",
			Borders:          "#40445b",
			Highlight:        "#ff9d65",
			MutedVolume:      "#fe0702",
			HeaderBackground: "#473533",
			LyricForeground:  "#c8d0e8",
			SpectrumBar:      "#7aa2f7",
			HelpBackground:   "#322f45",
			HelpForeground:   "#9aa3c6",
			HelpHotkey:       "#ff9d65",
			ModalBackground:  "#282a36",
		},
	}
}

// normalize clamps numeric settings and restores defaults for values that
// would leave the engine unusable.
func (c *Config) normalize() {
	c.Volume = ClampVolume(c.Volume)
	c.QuiescentVolume = ClampVolume(c.QuiescentVolume)
	c.MasterVolume = ClampVolume(c.MasterVolume)

	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Buffer.MaxBytes < MinBufferBytes {
		c.Buffer.MaxBytes = MinBufferBytes
	}
	if c.Buffer.PrebufferBytes < 0 {
		c.Buffer.PrebufferBytes = 0
	}
	if c.Buffer.PrebufferBytes > c.Buffer.MaxBytes {
		c.Buffer.PrebufferBytes = c.Buffer.MaxBytes
	}
	if c.LyricLatencyMs < 0 {
		c.LyricLatencyMs = 0
	}
}

// AddHistory moves song to the front of the request history.
func (c *Config) AddHistory(song string) {
	song = strings.TrimSpace(song)
	if song == "" {
		return
	}
	history := []string{song}
	for _, s := range c.History {
		if !strings.EqualFold(s, song) {
			history = append(history, s)
		}
	}
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	c.History = history
}

// LastSong returns the most recently requested song, if any.
func (c *Config) LastSong() string {
	if len(c.History) == 0 {
		return ""
	}
	return c.History[0]
}

func GetColor(colorStr string) tcell.Color {
	if colorStr == "" || colorStr == "default" {
		return tcell.ColorDefault
	}
	return tcell.GetColor(colorStr)
}
