// Package config provides configuration management for sambee using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort        = 8080
	defaultServerTimeout     = 30 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultPreviewQuality    = 85
	defaultPNGCompression    = 6
	defaultMaxDimension      = 4096
	defaultMaxPixelArea      = 100_000_000
	defaultMaxInputSize      = 100 * 1024 * 1024 // 100MB
	defaultSubprocessTimeout = 30 * time.Second
	defaultProbeTimeout      = 5 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Preview PreviewConfig `mapstructure:"preview"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StorageConfig holds the browsable share configuration.
type StorageConfig struct {
	Shares []ShareConfig `mapstructure:"shares"`
}

// ShareConfig is one browsable directory tree.
type ShareConfig struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PreviewConfig holds the image conversion pipeline configuration.
type PreviewConfig struct {
	// Quality is the 1-100 JPEG quality factor for converted previews.
	Quality int `mapstructure:"quality"`
	// PNGCompression is the 0-9 zlib level for PNG previews.
	PNGCompression int `mapstructure:"png_compression"`
	// MaxDimension caps either output dimension; larger sources are
	// downscaled preserving aspect ratio.
	MaxDimension int `mapstructure:"max_dimension"`
	// MaxPixelArea rejects sources whose decoded frame would exceed this
	// many pixels.
	MaxPixelArea int64 `mapstructure:"max_pixel_area"`
	// MaxInputSize is the largest source file accepted for conversion.
	// Supports human-readable values like "100MB" or raw byte counts.
	MaxInputSize ByteSize `mapstructure:"max_input_size"`
	// SubprocessTimeout bounds one external preprocessor invocation.
	SubprocessTimeout time.Duration `mapstructure:"subprocess_timeout"`
	// ProbeTimeout bounds an external tool availability probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	// Preprocessor pins the external tool: auto, imagemagick,
	// graphicsmagick.
	Preprocessor string `mapstructure:"preprocessor"`
	// StripMetadata removes EXIF/IPTC blocks from converted output.
	StripMetadata bool `mapstructure:"strip_metadata"`
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with SAMBEE_ and use underscores for
// nesting. Example: SAMBEE_PREVIEW_QUALITY=90.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sambee")
		v.AddConfigPath("$HOME/.sambee")
	}

	v.SetEnvPrefix("SAMBEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env vars apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file so defaults are in
// place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.shares", []map[string]any{})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Preview defaults
	v.SetDefault("preview.quality", defaultPreviewQuality)
	v.SetDefault("preview.png_compression", defaultPNGCompression)
	v.SetDefault("preview.max_dimension", defaultMaxDimension)
	v.SetDefault("preview.max_pixel_area", defaultMaxPixelArea)
	v.SetDefault("preview.max_input_size", defaultMaxInputSize)
	v.SetDefault("preview.subprocess_timeout", defaultSubprocessTimeout)
	v.SetDefault("preview.probe_timeout", defaultProbeTimeout)
	v.SetDefault("preview.preprocessor", "auto")
	v.SetDefault("preview.strip_metadata", true)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	seen := make(map[string]bool, len(c.Storage.Shares))
	for _, share := range c.Storage.Shares {
		if share.Name == "" {
			return fmt.Errorf("storage.shares entries require a name")
		}
		if share.Path == "" {
			return fmt.Errorf("storage share %q requires a path", share.Name)
		}
		if seen[share.Name] {
			return fmt.Errorf("storage share %q is defined twice", share.Name)
		}
		seen[share.Name] = true
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Preview.Quality < 1 || c.Preview.Quality > 100 {
		return fmt.Errorf("preview.quality must be between 1 and 100")
	}
	if c.Preview.PNGCompression < 0 || c.Preview.PNGCompression > 9 {
		return fmt.Errorf("preview.png_compression must be between 0 and 9")
	}
	if c.Preview.MaxDimension < 1 {
		return fmt.Errorf("preview.max_dimension must be at least 1")
	}
	if c.Preview.MaxPixelArea < 1 {
		return fmt.Errorf("preview.max_pixel_area must be at least 1")
	}
	if c.Preview.MaxInputSize < 1 {
		return fmt.Errorf("preview.max_input_size must be positive")
	}
	if c.Preview.SubprocessTimeout <= 0 {
		return fmt.Errorf("preview.subprocess_timeout must be positive")
	}
	if c.Preview.ProbeTimeout <= 0 {
		return fmt.Errorf("preview.probe_timeout must be positive")
	}
	validPreprocessors := map[string]bool{"auto": true, "imagemagick": true, "graphicsmagick": true}
	if !validPreprocessors[c.Preview.Preprocessor] {
		return fmt.Errorf("preview.preprocessor must be one of: auto, imagemagick, graphicsmagick")
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PreferredPreprocessor returns the forced preprocessor name, or "" when the
// registry should select automatically.
func (c *PreviewConfig) PreferredPreprocessor() string {
	if c.Preprocessor == "auto" {
		return ""
	}
	return c.Preprocessor
}
