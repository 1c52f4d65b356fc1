package config

import (
	"fmt"
	"strings"
)

// Direction is the turntable spin direction.
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
)

// ParseDirection accepts "left" or "right" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Left:
		return Left, nil
	case Right:
		return Right, nil
	}
	return "", fmt.Errorf("unknown direction %q (want left or right)", s)
}

// Sign is +1 for right and -1 for left.
func (d Direction) Sign() float64 {
	if d == Right {
		return 1
	}
	return -1
}

// Format is the output container of an export.
type Format string

const (
	// WebM is the streamed video container.
	WebM Format = "webm"
	// GIF is the looping image-sequence container.
	GIF Format = "gif"
)

// ParseFormat accepts webm/gif and the aliases video/image-sequence.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webm", "video":
		return WebM, nil
	case "gif", "image-sequence":
		return GIF, nil
	}
	return "", fmt.Errorf("unknown output format %q (want webm or gif)", s)
}

// Ext returns the file extension for the format, with the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

const (
	MinSpeed = 1
	MaxSpeed = 10
)

// AnimationConfig is what the user picks before generating an animation.
// It is read-only once a session starts.
type AnimationConfig struct {
	Speed     int
	Direction Direction
	Format    Format
	FixColors bool
	ModelPath string
}

type MQTTConfig struct {
	URL      string
	Username string
	Password string
	Topic    string
	ClientID string
}

type WatchConfig struct {
	Enabled bool
	Dir     string
}

type Config struct {
	Animation AnimationConfig

	Width    int
	Height   int
	FPS      int
	Realtime bool

	OutputPath    string
	VideoEncoder  string
	Quality       int
	Workers       int
	GIFScale      float64
	MaterialsFile string
	ReportPath    string
	ShowStats     bool
	STLZUp        bool

	LogLevel     string
	BuildVersion string

	MQTT  MQTTConfig
	Watch WatchConfig
}

// Validate checks the values a session relies on.
func (c *Config) Validate() error {
	a := c.Animation
	if a.Speed < MinSpeed || a.Speed > MaxSpeed {
		return fmt.Errorf("speed %d out of range [%d, %d]", a.Speed, MinSpeed, MaxSpeed)
	}
	if _, err := ParseDirection(string(a.Direction)); err != nil {
		return err
	}
	if _, err := ParseFormat(string(a.Format)); err != nil {
		return err
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", c.FPS)
	}
	if c.GIFScale < 0 || c.GIFScale > 1 {
		return fmt.Errorf("gif scale %.2f out of range (0, 1]", c.GIFScale)
	}
	return nil
}
