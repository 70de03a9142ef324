package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// JST is the timezone every timestamp in logs, commits and messages uses.
var JST = time.FixedZone("JST", 9*60*60)

// Indicator periods. The scanner assumes at least rsiPeriod+atrPeriod candles
// of warm-up before a value is meaningful.
const (
	rsiPeriod = 9
	atrPeriod = 14
)

// GeckoTerminal API parameters.
const (
	gtBaseURL          = "https://api.geckoterminal.com/api/v2"
	gtChain            = "solana"
	gtTrendingDuration = "5m"
	gtOHLCVTimeframe   = "minute"
	gtOHLCVLimit       = 100
	gtRequestInterval  = 2 * time.Second
)

// minCandles is the minimum OHLCV history required before scoring a pair.
const minCandles = 30

// Config holds process-level settings loaded from the environment.
type Config struct {
	TelegramToken string
	ChatID        int64
	WorkDir       string
	GitSSHKey     string
	GitUserName   string
	GitUserEmail  string

	Settings *Settings
}

// BandParams are the tunable parameters for one market-cap band.
type BandParams struct {
	MCMin          float64 `yaml:"mc_min"`
	MCMax          float64 `yaml:"mc_max"`
	OHLCVAggregate int     `yaml:"ohlcv_aggregate"` // candle size in minutes
	RSIOverbought  float64 `yaml:"rsi_overbought"`
	ATRSLMult      float64 `yaml:"atr_sl_mult"`
	ATRTPMult      float64 `yaml:"atr_tp_mult"`
	VolumeSurgeMin float64 `yaml:"volume_surge_min"`
}

// Settings are the scanner parameters persisted in config.yaml. Everything
// here can be changed at runtime (bot commands or the config editor); a
// missing file is replaced by defaults.
type Settings struct {
	MCMin           float64      `yaml:"mc_min"`
	MCMax           float64      `yaml:"mc_max"`
	LiqMin          float64      `yaml:"liq_min"`
	NotifyThreshold int          `yaml:"notify_threshold"`
	ScanInterval    int          `yaml:"scan_interval"` // seconds
	NotifyTTL       int          `yaml:"notify_ttl"`    // seconds
	Bands           []BandParams `yaml:"mc_band_params"`
}

// DefaultSettings mirrors the shipped configuration: three MC bands with
// tighter stops and faster candles at the small end.
func DefaultSettings() *Settings {
	return &Settings{
		MCMin:           300_000,
		MCMax:           50_000_000,
		LiqMin:          10_000,
		NotifyThreshold: 70,
		ScanInterval:    300,
		NotifyTTL:       7200,
		Bands: []BandParams{
			{MCMin: 300_000, MCMax: 1_000_000, OHLCVAggregate: 5, RSIOverbought: 75, ATRSLMult: 1.5, ATRTPMult: 3.0, VolumeSurgeMin: 3.0},
			{MCMin: 1_000_000, MCMax: 5_000_000, OHLCVAggregate: 10, RSIOverbought: 72, ATRSLMult: 1.8, ATRTPMult: 3.5, VolumeSurgeMin: 2.5},
			{MCMin: 5_000_000, MCMax: 50_000_000, OHLCVAggregate: 15, RSIOverbought: 70, ATRSLMult: 2.0, ATRTPMult: 4.0, VolumeSurgeMin: 2.0},
		},
	}
}

// Band returns the parameters for the band containing mc. Market caps below
// the first band use the first band, above the last use the last.
func (s *Settings) Band(mc float64) BandParams {
	for _, b := range s.Bands {
		if mc >= b.MCMin && mc < b.MCMax {
			return b
		}
	}
	if n := len(s.Bands); n > 0 {
		if mc >= s.Bands[n-1].MCMax {
			return s.Bands[n-1]
		}
		return s.Bands[0]
	}
	return BandParams{OHLCVAggregate: 5, RSIOverbought: 70, ATRSLMult: 1.5, ATRTPMult: 3.0, VolumeSurgeMin: 2.0}
}

// settingsRule is a single named validation check: name + predicate + reason.
type settingsRule struct {
	Name   string
	Bad    func(s *Settings) bool
	Reason string
}

var settingsRules = []settingsRule{
	{"mc-range", func(s *Settings) bool { return s.MCMin < 0 || s.MCMin >= s.MCMax }, "mc_min must be >= 0 and below mc_max"},
	{"liq-min", func(s *Settings) bool { return s.LiqMin < 0 }, "liq_min must be >= 0"},
	{"notify-threshold", func(s *Settings) bool { return s.NotifyThreshold < 0 || s.NotifyThreshold > 100 }, "notify_threshold must be within 0..100"},
	{"scan-interval", func(s *Settings) bool { return s.ScanInterval < 60 }, "scan_interval must be at least 60 seconds"},
	{"notify-ttl", func(s *Settings) bool { return s.NotifyTTL <= 0 }, "notify_ttl must be positive"},
	{"bands-present", func(s *Settings) bool { return len(s.Bands) == 0 }, "at least one MC band is required"},
	{"bands-sane", func(s *Settings) bool {
		for _, b := range s.Bands {
			if b.MCMin >= b.MCMax || b.OHLCVAggregate <= 0 || b.ATRSLMult <= 0 || b.ATRTPMult <= 0 || b.VolumeSurgeMin <= 0 {
				return true
			}
		}
		return false
	}, "every band needs mc_min < mc_max and positive parameters"},
}

// Validate checks the settings against all rules and returns the first
// violation.
func (s *Settings) Validate() error {
	for _, r := range settingsRules {
		if r.Bad(s) {
			return fmt.Errorf("invalid settings (%s): %s", r.Name, r.Reason)
		}
	}
	return nil
}

func settingsPath(workDir string) string {
	return filepath.Join(workDir, "config.yaml")
}

// LoadSettings reads config.yaml from workDir, falling back to defaults when
// the file does not exist.
func LoadSettings(workDir string) (*Settings, error) {
	data, err := os.ReadFile(settingsPath(workDir))
	if os.IsNotExist(err) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse config.yaml: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Save validates, then writes the settings to config.yaml via a temp file
// rename so a crash mid-write never leaves a torn config.
func (s *Settings) Save(workDir string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	path := settingsPath(workDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// LoadConfig assembles the process configuration from the environment plus
// config.yaml in the working directory.
func LoadConfig() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatRaw := os.Getenv("TELEGRAM_CHAT_ID")
	if chatRaw == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	chatID, err := strconv.ParseInt(chatRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %v", chatRaw, err)
	}

	workDir := os.Getenv("WORK_DIR")
	if workDir == "" {
		workDir = "."
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolve WORK_DIR: %w", err)
	}

	settings, err := LoadSettings(workDir)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramToken: token,
		ChatID:        chatID,
		WorkDir:       workDir,
		GitSSHKey:     os.Getenv("GIT_SSH_KEY"),
		GitUserName:   os.Getenv("GIT_USER_NAME"),
		GitUserEmail:  os.Getenv("GIT_USER_EMAIL"),
		Settings:      settings,
	}, nil
}

// LogDir is where signal_log.csv and its archives live.
func (c *Config) LogDir() string {
	return filepath.Join(c.WorkDir, "logs")
}
