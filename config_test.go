package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettingsValid(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())
}

func TestSettingsValidateRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"mc min negative", func(s *Settings) { s.MCMin = -1 }},
		{"mc min above max", func(s *Settings) { s.MCMin = s.MCMax + 1 }},
		{"liq negative", func(s *Settings) { s.LiqMin = -5 }},
		{"threshold too high", func(s *Settings) { s.NotifyThreshold = 101 }},
		{"interval too short", func(s *Settings) { s.ScanInterval = 30 }},
		{"ttl zero", func(s *Settings) { s.NotifyTTL = 0 }},
		{"no bands", func(s *Settings) { s.Bands = nil }},
		{"band inverted", func(s *Settings) { s.Bands[0].MCMax = s.Bands[0].MCMin }},
		{"band zero aggregate", func(s *Settings) { s.Bands[1].OHLCVAggregate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSettingsSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := DefaultSettings()
	s.NotifyThreshold = 85
	s.Bands[0].VolumeSurgeMin = 4.5
	require.NoError(t, s.Save(dir))

	loaded, err := LoadSettings(dir)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestLoadSettingsMissingFileUsesDefaults(t *testing.T) {
	loaded, err := LoadSettings(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), loaded)
}

func TestLoadSettingsRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("scan_interval: 5\n"), 0o644))
	_, err := LoadSettings(dir)
	assert.Error(t, err)
}

func TestSettingsSaveRejectsInvalid(t *testing.T) {
	s := DefaultSettings()
	s.ScanInterval = 1
	assert.Error(t, s.Save(t.TempDir()))
}

func TestBandSelection(t *testing.T) {
	s := DefaultSettings()
	tests := []struct {
		mc      float64
		wantAgg int
	}{
		{400_000, 5},
		{999_999, 5},
		{1_000_000, 10},
		{4_999_999, 10},
		{5_000_000, 15},
		{49_000_000, 15},
		{100_000, 5},       // below range clamps to first band
		{900_000_000, 15},  // above range clamps to last band
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantAgg, s.Band(tt.mc).OHLCVAggregate, "mc=%v", tt.mc)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100200300")
	t.Setenv("WORK_DIR", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(-100200300), cfg.ChatID)
	assert.Equal(t, filepath.Join(cfg.WorkDir, "logs"), cfg.LogDir())
	assert.NotNil(t, cfg.Settings)
}

func TestLoadConfigMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "1")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigBadChatID(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "not-a-number")
	_, err := LoadConfig()
	assert.Error(t, err)
}
