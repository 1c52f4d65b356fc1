package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Animation.Speed)
	assert.Equal(t, Left, cfg.Animation.Direction)
	assert.Equal(t, WebM, cfg.Animation.Format)
	assert.False(t, cfg.Animation.FixColors)
	assert.Equal(t, 600, cfg.Width)
	assert.Equal(t, 600, cfg.Height)
	assert.Equal(t, 60, cfg.FPS)
	assert.Equal(t, 1.0, cfg.GIFScale)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "turntable/progress", cfg.MQTT.Topic)
	assert.Equal(t, "input/models", cfg.Watch.Dir)
	assert.True(t, cfg.STLZUp)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	require.NoError(t, cfg.Validate())
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "turntable.yaml")
	data := `
speed: 10
direction: right
format: gif
fixColors: true
width: 320
height: 240
mqtt:
  url: tcp://localhost:1883
  topic: renders/progress
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Animation.Speed)
	assert.Equal(t, Right, cfg.Animation.Direction)
	assert.Equal(t, GIF, cfg.Animation.Format)
	assert.True(t, cfg.Animation.FixColors)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.URL)
	assert.Equal(t, "renders/progress", cfg.MQTT.Topic)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("TURNTABLE_SPEED", "3")
	t.Setenv("TURNTABLE_DIRECTION", "RIGHT")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Animation.Speed)
	assert.Equal(t, Right, cfg.Animation.Direction)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadDirection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turntable.yaml")
	require.NoError(t, os.WriteFile(path, []byte("direction: up\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"webm", WebM, false},
		{"video", WebM, false},
		{"GIF", GIF, false},
		{"image-sequence", GIF, false},
		{"mp4", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectionSign(t *testing.T) {
	assert.Equal(t, 1.0, Right.Sign())
	assert.Equal(t, -1.0, Left.Sign())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Animation: AnimationConfig{Speed: 5, Direction: Left, Format: WebM},
			Width:     600, Height: 600, FPS: 60, GIFScale: 1,
		}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Animation.Speed = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Animation.Speed = 11
	assert.Error(t, c.Validate())

	c = base()
	c.Animation.Direction = "up"
	assert.Error(t, c.Validate())

	c = base()
	c.FPS = 0
	assert.Error(t, c.Validate())

	c = base()
	c.GIFScale = 2
	assert.Error(t, c.Validate())
}
