package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateWindowDefaults(t *testing.T) {
	for _, key := range []string{"GEMINI_RATE_WINDOW", "WP_API_RATE_WINDOW", "IMAGE_RATE_WINDOW", "VIDEO_RATE_WINDOW"} {
		t.Setenv(key, "")
	}
	cfg := Load()

	assert.Equal(t, time.Minute, cfg.GeminiRateWindow)
	assert.Equal(t, time.Minute, cfg.WordPressRateWindow)
	assert.Equal(t, time.Minute, cfg.ImageRateWindow)
	assert.Equal(t, time.Minute, cfg.VideoRateWindow)
}

func TestRateWindowsConfigurablePerService(t *testing.T) {
	t.Setenv("GEMINI_RATE_WINDOW", "30s")
	t.Setenv("WP_API_RATE_WINDOW", "2m")
	t.Setenv("IMAGE_RATE_WINDOW", "90s")
	t.Setenv("VIDEO_RATE_WINDOW", "5m")
	t.Setenv("GEMINI_RATE_LIMIT", "12")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.GeminiRateWindow)
	assert.Equal(t, 2*time.Minute, cfg.WordPressRateWindow)
	assert.Equal(t, 90*time.Second, cfg.ImageRateWindow)
	assert.Equal(t, 5*time.Minute, cfg.VideoRateWindow)
	assert.Equal(t, 12, cfg.GeminiRateLimit)
}

func TestInvalidWindowFallsBackToDefault(t *testing.T) {
	t.Setenv("GEMINI_RATE_WINDOW", "not-a-duration")

	cfg := Load()
	assert.Equal(t, time.Minute, cfg.GeminiRateWindow)
}
