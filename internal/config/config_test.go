package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "TARGET_URL", "BROWSER_DRIVER", "BROWSER_HEADLESS", "CHROME_PATH", "BROWSER_FLAGS",
		"BROWSER_CDP_URL", "VIEWPORT_WIDTH", "VIEWPORT_HEIGHT", "GEO_LATITUDE", "GEO_LONGITUDE",
		"SELECTORS_FILE", "NAVIGATION_TIMEOUT", "RESPONSE_TIMEOUT", "LOGIN_SETTLE", "REPLY_SETTLE",
		"TYPING_DELAY", "EXPORT_DIR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, DriverChromedp, cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "https://chatgpt.com/", cfg.Chat.TargetURL)
	assert.Equal(t, 60*time.Second, cfg.Chat.NavigationTimeout)
	assert.Equal(t, 30*time.Second, cfg.Chat.ResponseTimeout)
	assert.Equal(t, 10*time.Second, cfg.Chat.LoginSettle)
	assert.Equal(t, 20*time.Second, cfg.Chat.ReplySettle)
	assert.Equal(t, 50*time.Millisecond, cfg.Chat.TypingDelay)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.Equal(t, LogConfig{Level: "info", Format: "console"}, cfg.Log)

	profile := cfg.Browser.Profile()
	assert.Equal(t, 1920, profile.ViewportWidth)
	assert.Equal(t, 1080, profile.ViewportHeight)
	assert.InDelta(t, 40.7128, profile.Latitude, 1e-9)
	assert.InDelta(t, -74.0060, profile.Longitude, 1e-9)
	assert.Contains(t, profile.Flags, "--no-sandbox")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("BROWSER_DRIVER", "ROD")
	t.Setenv("BROWSER_HEADLESS", "true")
	t.Setenv("BROWSER_FLAGS", "--no-sandbox --lang=en-US")
	t.Setenv("VIEWPORT_WIDTH", "1280")
	t.Setenv("GEO_LATITUDE", "51.5")
	t.Setenv("RESPONSE_TIMEOUT", "45s")
	t.Setenv("TYPING_DELAY", "10")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, DriverRod, cfg.Browser.Driver)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, []string{"--no-sandbox", "--lang=en-US"}, cfg.Browser.Profile().Flags)
	assert.Equal(t, 1280, cfg.Browser.Profile().ViewportWidth)
	assert.Equal(t, 1080, cfg.Browser.Profile().ViewportHeight)
	assert.InDelta(t, 51.5, cfg.Browser.Latitude, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Chat.ResponseTimeout)
	assert.Equal(t, 10*time.Millisecond, cfg.Chat.TypingDelay)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":             "80 80",
		"BROWSER_DRIVER":   "selenium",
		"BROWSER_HEADLESS": "maybe",
		"VIEWPORT_WIDTH":   "-1",
		"GEO_LONGITUDE":    "east",
		"REPLY_SETTLE":     "soon",
		"LOG_FORMAT":       "xml",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
