package robot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/gwillem/cubebot/pkg/cube"
	"github.com/gwillem/cubebot/pkg/odrive"
)

const (
	DefaultConfigFile = "cubebot.json"
	EnvPrefix         = "CUBEBOT_"
)

// Config holds the rig configuration
type Config struct {
	Faces      Calibration `json:"faces"`
	Trajectory Trajectory  `json:"trajectory"`
	Timing     Timing      `json:"timing"`
}

// Trajectory holds the trapezoidal planner limits applied to every face
type Trajectory struct {
	VelLimit   float64 `json:"vel_limit" env:"VEL_LIMIT"`     // turns/s
	AccelLimit float64 `json:"accel_limit" env:"ACCEL_LIMIT"` // turns/s²
	DecelLimit float64 `json:"decel_limit" env:"DECEL_LIMIT"` // turns/s²
}

// TrapTraj converts the limits for the controller.
func (t Trajectory) TrapTraj() odrive.TrapTraj {
	return odrive.TrapTraj{
		VelLimit:   t.VelLimit,
		AccelLimit: t.AccelLimit,
		DecelLimit: t.DecelLimit,
	}
}

// Timing holds the fixed waits of the rig
type Timing struct {
	ConnectTimeout Duration `json:"connect_timeout" env:"CONNECT_TIMEOUT"` // per controller
	StateWait      Duration `json:"state_wait" env:"STATE_WAIT"`           // after requesting closed loop
	Settle         Duration `json:"settle" env:"SETTLE"`                   // after each move
}

// Duration is a time.Duration that reads and writes as "80ms" in JSON and env.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultCalibration returns the face assignment of the reference rig.
func DefaultCalibration() Calibration {
	return Calibration{
		cube.Down:  {Serial: "395634623331"}, // yellow
		cube.Up:    {Serial: "395134633331"}, // white
		cube.Left:  {Serial: "396034693331"}, // blue
		cube.Back:  {Serial: "3971346B3331"}, // red
		cube.Front: {Serial: "395134623331"}, // orange
		cube.Right: {Serial: "395934593331"}, // green
	}
}

// DefaultConfig returns the configuration of the reference rig
func DefaultConfig() *Config {
	return &Config{
		Faces: DefaultCalibration(),
		Trajectory: Trajectory{
			VelLimit:   80,
			AccelLimit: 150,
			DecelLimit: 150,
		},
		Timing: Timing{
			ConnectTimeout: Duration(10 * time.Second),
			StateWait:      Duration(time.Second),
			Settle:         Duration(80 * time.Millisecond),
		},
	}
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Missing fields
// keep their defaults and CUBEBOT_* environment variables override the file.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault loads path if it exists and falls back to the defaults
// (with environment overrides) otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfigFrom(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// ApplyEnv overrides trajectory and timing values from CUBEBOT_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the rig cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Faces.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Trajectory.VelLimit <= 0 || c.Trajectory.AccelLimit <= 0 || c.Trajectory.DecelLimit <= 0 {
		errs = append(errs, errors.New("trajectory limits must be positive"))
	}
	if c.Timing.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect_timeout must be positive"))
	}
	if c.Timing.StateWait < 0 || c.Timing.Settle < 0 {
		errs = append(errs, errors.New("waits must not be negative"))
	}
	return errors.Join(errs...)
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
