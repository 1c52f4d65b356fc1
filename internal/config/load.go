package config

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. TURNTABLE_SPEED.
const EnvPrefix = "TURNTABLE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("speed", 5)
	v.SetDefault("direction", string(Left))
	v.SetDefault("format", string(WebM))
	v.SetDefault("fixColors", false)
	v.SetDefault("model", "")

	v.SetDefault("width", 600)
	v.SetDefault("height", 600)
	v.SetDefault("fps", 60)
	v.SetDefault("realtime", false)

	v.SetDefault("output", "")
	v.SetDefault("encoder", "")
	v.SetDefault("quality", 0)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("gifScale", 1.0)
	v.SetDefault("materials", "")
	v.SetDefault("report", "")
	v.SetDefault("stats", false)
	v.SetDefault("stlZUp", true)
	v.SetDefault("logLevel", "info")

	v.SetDefault("mqtt.url", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "turntable/progress")
	v.SetDefault("mqtt.clientId", "turntable")

	v.SetDefault("watch.enabled", false)
	v.SetDefault("watch.dir", "input/models")
}

// Load builds a Config from defaults, the optional YAML file at path and
// TURNTABLE_* environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	dir, err := ParseDirection(v.GetString("direction"))
	if err != nil {
		return nil, err
	}
	format, err := ParseFormat(v.GetString("format"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Animation: AnimationConfig{
			Speed:     v.GetInt("speed"),
			Direction: dir,
			Format:    format,
			FixColors: v.GetBool("fixColors"),
			ModelPath: v.GetString("model"),
		},
		Width:         v.GetInt("width"),
		Height:        v.GetInt("height"),
		FPS:           v.GetInt("fps"),
		Realtime:      v.GetBool("realtime"),
		OutputPath:    v.GetString("output"),
		VideoEncoder:  v.GetString("encoder"),
		Quality:       v.GetInt("quality"),
		Workers:       v.GetInt("workers"),
		GIFScale:      v.GetFloat64("gifScale"),
		MaterialsFile: v.GetString("materials"),
		ReportPath:    v.GetString("report"),
		ShowStats:     v.GetBool("stats"),
		STLZUp:        v.GetBool("stlZUp"),
		LogLevel:      v.GetString("logLevel"),
		MQTT: MQTTConfig{
			URL:      v.GetString("mqtt.url"),
			Username: v.GetString("mqtt.username"),
			Password: v.GetString("mqtt.password"),
			Topic:    v.GetString("mqtt.topic"),
			ClientID: v.GetString("mqtt.clientId"),
		},
		Watch: WatchConfig{
			Enabled: v.GetBool("watch.enabled"),
			Dir:     v.GetString("watch.dir"),
		},
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return cfg, nil
}
