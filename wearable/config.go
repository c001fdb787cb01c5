package wearable

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Config holds the wearable link configuration.
//
// Target selection is an explicit identity filter: a device matches when its
// advertised name equals DeviceName exactly, or contains DeviceNameMarker.
// First match wins during a scan.
type Config struct {
	// DeviceName is the exact advertised name of the target wearable.
	// Empty disables exact matching.
	DeviceName string `yaml:"device_name" default:""`

	// DeviceNameMarker is a substring (e.g. vendor prefix) that identifies
	// the target when exact naming is not known up front.
	DeviceNameMarker string `yaml:"device_name_marker" default:"MaternalGuardian"`

	// ScanTimeout bounds a discovery session started without an explicit
	// timeout.
	ScanTimeout time.Duration `yaml:"scan_timeout" default:"15s"`

	// ConnectTimeout bounds link establishment plus service discovery.
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"10s"`

	// LivenessInterval is the period of the connected-link liveness poll.
	LivenessInterval time.Duration `yaml:"liveness_interval" default:"3s"`

	// StreamBuffer is the per-subscriber buffer of each output stream;
	// oldest elements are dropped when a subscriber lags.
	StreamBuffer int `yaml:"stream_buffer" default:"32"`

	// StatusHistory is the capacity of the retained diagnostics ring.
	StatusHistory int `yaml:"status_history" default:"64"`
}

// DefaultConfig returns a Config populated from the default tags.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for usability.
func (c *Config) Validate() error {
	if c.DeviceName == "" && c.DeviceNameMarker == "" {
		return fmt.Errorf("either device_name or device_name_marker must be set")
	}
	if c.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	if c.LivenessInterval <= 0 {
		return fmt.Errorf("liveness_interval must be positive")
	}
	if c.StreamBuffer <= 0 {
		return fmt.Errorf("stream_buffer must be positive")
	}
	if c.StatusHistory <= 0 {
		return fmt.Errorf("status_history must be positive")
	}
	return nil
}

// MatchesTarget reports whether an advertised name identifies the target
// wearable.
func (c *Config) MatchesTarget(name string) bool {
	if name == "" {
		return false
	}
	if c.DeviceName != "" && name == c.DeviceName {
		return true
	}
	return c.DeviceNameMarker != "" && strings.Contains(name, c.DeviceNameMarker)
}
