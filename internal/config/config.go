package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Duplex/internal/core"
)

type Config struct {
	Mode          string        `mapstructure:"mode"`
	Port          int           `mapstructure:"port"`
	StunServers   []string      `mapstructure:"stun_servers"`
	SignalingURL  string        `mapstructure:"signaling_url"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	LogLevel      string        `mapstructure:"log_level"`
	Capture       bool          `mapstructure:"capture"`

	// Saved device ids; empty or "default" track the system default.
	PlaybackDeviceID string `mapstructure:"playback_device_id"`
	CaptureDeviceID  string `mapstructure:"capture_device_id"`
	CameraDeviceID   string `mapstructure:"camera_device_id"`

	v *viper.Viper
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("stun_servers", []string{})
	v.SetDefault("signaling_url", "")
	v.SetDefault("retry_interval", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("capture", false)
	v.SetDefault("playback_device_id", "default")
	v.SetDefault("capture_device_id", "default")
	v.SetDefault("camera_device_id", "default")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

// SavedDeviceIDs wraps the three saved ids in variables so resolvers can
// track edits live.
type SavedDeviceIDs struct {
	Playback *core.Variable[string]
	Capture  *core.Variable[string]
	Camera   *core.Variable[string]
}

func NewSavedDeviceIDs(cfg *Config) *SavedDeviceIDs {
	return &SavedDeviceIDs{
		Playback: core.NewVariable(cfg.PlaybackDeviceID),
		Capture:  core.NewVariable(cfg.CaptureDeviceID),
		Camera:   core.NewVariable(cfg.CameraDeviceID),
	}
}

// Watch re-reads saved device ids when the config file changes on disk
// and pushes them into the variables. Other fields need a restart.
func (c *Config) Watch(saved *SavedDeviceIDs) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Str("module", "config").Str("file", e.Name).Msg("config changed")
		saved.Playback.Set(c.v.GetString("playback_device_id"))
		saved.Capture.Set(c.v.GetString("capture_device_id"))
		saved.Camera.Set(c.v.GetString("camera_device_id"))
	})
	c.v.WatchConfig()
}
