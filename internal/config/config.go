// Package config loads the painter configuration with viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arduino-trajectory-painter/internal/plotter"
)

const configDirName = "arduino-trajectory-painter"
const configFileName = "painter"

// Config is the application configuration.
type Config struct {
	Canvas     CanvasConfig     `mapstructure:"canvas"`
	Workspace  WorkspaceConfig  `mapstructure:"workspace"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Protocol   ProtocolConfig   `mapstructure:"protocol"`
	Match      MatchConfig      `mapstructure:"match"`
	Trajectory TrajectoryConfig `mapstructure:"trajectory"`
	Log        LogConfig        `mapstructure:"log"`
}

type CanvasConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type WorkspaceConfig struct {
	Width   float64 `mapstructure:"width"`
	Height  float64 `mapstructure:"height"`
	OffsetY float64 `mapstructure:"offset_y"`
}

type SerialConfig struct {
	// Port skips auto-detection when set.
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

type ProtocolConfig struct {
	AckDelay     time.Duration `mapstructure:"ack_delay"`
	PointDelay   time.Duration `mapstructure:"point_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
}

type MatchConfig struct {
	Descriptions []string `mapstructure:"descriptions"`
	Paths        []string `mapstructure:"paths"`
}

type TrajectoryConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs  []string       `mapstructure:"outputs"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default mirrors the plotter defaults.
func Default() Config {
	d := plotter.DefaultConfig()
	return Config{
		Canvas: CanvasConfig{Width: d.CanvasWidth, Height: d.CanvasHeight},
		Workspace: WorkspaceConfig{
			Width:   d.Workspace.Width,
			Height:  d.Workspace.Height,
			OffsetY: d.Workspace.OffsetY,
		},
		Serial: SerialConfig{
			BaudRate:    d.Link.BaudRate,
			ReadTimeout: d.Link.ReadTimeout,
			SettleDelay: d.Link.SettleDelay,
		},
		Protocol: ProtocolConfig{
			AckDelay:     d.Protocol.AckDelay,
			PointDelay:   d.Protocol.PointDelay,
			MaxAttempts:  d.Protocol.MaxAttempts,
			RetryBackoff: d.Protocol.RetryBackoff,
			MaxBackoff:   d.Protocol.MaxBackoff,
		},
		Match: MatchConfig{
			Descriptions: d.Match.Descriptions,
			Paths:        d.Match.Paths,
		},
		Trajectory: TrajectoryConfig{File: d.TrajectoryFile},
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stderr"},
			Rotation: RotationConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
		},
	}
}

// Dir returns the path to the app's config directory.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(base, configDirName), nil
}

// Load reads painter.yaml from path, or from the working directory and
// the user config dir when path is empty. Environment variables prefixed with
// PAINTER_ override file values, e.g. PAINTER_SERIAL_PORT=/dev/ttyUSB0.
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("PAINTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("canvas.width", cfg.Canvas.Width)
	v.SetDefault("canvas.height", cfg.Canvas.Height)
	v.SetDefault("workspace.width", cfg.Workspace.Width)
	v.SetDefault("workspace.height", cfg.Workspace.Height)
	v.SetDefault("workspace.offset_y", cfg.Workspace.OffsetY)
	v.SetDefault("serial.port", cfg.Serial.Port)
	v.SetDefault("serial.baud_rate", cfg.Serial.BaudRate)
	v.SetDefault("serial.read_timeout", cfg.Serial.ReadTimeout)
	v.SetDefault("serial.settle_delay", cfg.Serial.SettleDelay)
	v.SetDefault("protocol.ack_delay", cfg.Protocol.AckDelay)
	v.SetDefault("protocol.point_delay", cfg.Protocol.PointDelay)
	v.SetDefault("protocol.max_attempts", cfg.Protocol.MaxAttempts)
	v.SetDefault("protocol.retry_backoff", cfg.Protocol.RetryBackoff)
	v.SetDefault("protocol.max_backoff", cfg.Protocol.MaxBackoff)
	v.SetDefault("match.descriptions", cfg.Match.Descriptions)
	v.SetDefault("match.paths", cfg.Match.Paths)
	v.SetDefault("trajectory.file", cfg.Trajectory.File)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid serial.baud_rate: %d", c.Serial.BaudRate)
	}
	if c.Protocol.MaxAttempts < 1 {
		return fmt.Errorf("invalid protocol.max_attempts: %d", c.Protocol.MaxAttempts)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
	return nil
}

// Plotter converts c into the core configuration.
func (c Config) Plotter() plotter.Config {
	return plotter.Config{
		CanvasWidth:  c.Canvas.Width,
		CanvasHeight: c.Canvas.Height,
		Workspace: plotter.Workspace{
			Width:   c.Workspace.Width,
			Height:  c.Workspace.Height,
			OffsetY: c.Workspace.OffsetY,
		},
		Port: c.Serial.Port,
		Match: plotter.MatchRules{
			Descriptions: c.Match.Descriptions,
			Paths:        c.Match.Paths,
		},
		Link: plotter.LinkConfig{
			BaudRate:    c.Serial.BaudRate,
			ReadTimeout: c.Serial.ReadTimeout,
			SettleDelay: c.Serial.SettleDelay,
		},
		Protocol: plotter.ProtocolConfig{
			AckDelay:     c.Protocol.AckDelay,
			PointDelay:   c.Protocol.PointDelay,
			MaxAttempts:  c.Protocol.MaxAttempts,
			RetryBackoff: c.Protocol.RetryBackoff,
			MaxBackoff:   c.Protocol.MaxBackoff,
		},
		TrajectoryFile: c.Trajectory.File,
	}
}
