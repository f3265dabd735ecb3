// Package config loads simulation bench parameters from YAML and wires them
// into the runtime types.
package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/phybus/ethsim"
)

// Config collects the knobs of a PHY-attach simulation bench. Zero values
// take the defaults from [Default] at Validate time where a zero is not
// meaningful.
type Config struct {
	// QueueLimitBytes and QueueLimitFrames bound frame queue occupancy.
	// Zero or negative means unbounded.
	QueueLimitBytes  int `yaml:"queue_limit_bytes"`
	QueueLimitFrames int `yaml:"queue_limit_frames"`
	// IFG is the inter-frame gap in byte-times.
	IFG int `yaml:"ifg"`
	// SpeedBPS is the nominal link speed in bits per second.
	SpeedBPS int64 `yaml:"speed_bps"`
	// MIISelect folds the GMII and RGMII codecs down to nibble-serial
	// low-speed operation.
	MIISelect bool `yaml:"mii_select"`
	// ResetActiveLow inverts the polarity of the bench reset input.
	ResetActiveLow bool `yaml:"reset_active_low"`
	// PeriodNS is the PTP clock period in nanoseconds.
	PeriodNS float64 `yaml:"period_ns"`
	// DriftNum and DriftDenom override the drift fraction derived from
	// PeriodNS when DriftDenom is nonzero.
	DriftNum   uint32 `yaml:"drift_num"`
	DriftDenom uint32 `yaml:"drift_denom"`
}

// Default returns the gigabit bench configuration: 12 byte-time gap,
// 1 Gb/s, 156.25 MHz PTP clock.
func Default() Config {
	return Config{
		IFG:      12,
		SpeedBPS: 1_000_000_000,
		PeriodNS: 6.4,
	}
}

// Load decodes YAML over the defaults and validates the result.
func Load(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the runtime types would panic on or
// silently misbehave with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.IFG < 0:
		return errors.New("config: ifg must not be negative")
	case cfg.SpeedBPS <= 0:
		return errors.New("config: speed_bps must be positive")
	case !(cfg.PeriodNS > 0):
		return errors.New("config: period_ns must be positive")
	case cfg.DriftNum != 0 && cfg.DriftDenom == 0:
		return errors.New("config: drift_num set without drift_denom")
	}
	return nil
}

// ByteTimeNS returns the duration of one byte-time on the configured link
// in nanoseconds.
func (cfg Config) ByteTimeNS() float64 {
	return 8e9 / float64(cfg.SpeedBPS)
}

// NewFrameQueue allocates a frame queue with the configured occupancy
// limits.
func NewFrameQueue() *ethsim.Queue[*ethsim.Frame] {
	return Default().FrameQueue()
}

// FrameQueue allocates a frame queue with this configuration's occupancy
// limits.
func (cfg Config) FrameQueue() *ethsim.Queue[*ethsim.Frame] {
	return ethsim.NewQueue[*ethsim.Frame](cfg.QueueLimitBytes, cfg.QueueLimitFrames)
}
