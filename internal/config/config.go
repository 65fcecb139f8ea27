package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/forcebridge/forcebridge/internal/comm"
)

const (
	DefaultParticles = 64
	DefaultNNeighs   = 8
	DefaultDt        = 0.005
	DefaultSteps     = 1000
	DefaultCutoff    = 2.5
	DefaultTimeoutMS = 5000
	DefaultEpsilon   = 1.0
	DefaultSigma     = 1.0
)

type Config struct {
	Channel   string `yaml:"channel"`
	Transport string `yaml:"transport"` // auto | host | cuda

	Particles int    `yaml:"particles"`
	NNeighs   int    `yaml:"nneighs"`
	Precision string `yaml:"precision"`  // single | double
	ForceMode string `yaml:"force_mode"` // overwrite | add | ignore | output

	SendNeighbors bool `yaml:"send_neighbors"`
	Virial        bool `yaml:"virial"`

	Dt        float64 `yaml:"dt"`
	Steps     int     `yaml:"steps"`
	Cutoff    float64 `yaml:"cutoff"`
	TimeoutMS int     `yaml:"timeout_ms"`

	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
}

func DefaultConfig() *Config {
	return &Config{
		Channel:       "default",
		Transport:     "auto",
		Particles:     DefaultParticles,
		NNeighs:       DefaultNNeighs,
		Precision:     "single",
		ForceMode:     "overwrite",
		SendNeighbors: true,
		Virial:        false,
		Dt:            DefaultDt,
		Steps:         DefaultSteps,
		Cutoff:        DefaultCutoff,
		TimeoutMS:     DefaultTimeoutMS,
		Epsilon:       DefaultEpsilon,
		Sigma:         DefaultSigma,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Channel == "" {
		return fmt.Errorf("channel name must not be empty")
	}
	if c.Particles < 0 {
		return fmt.Errorf("particles must be non-negative, got %d", c.Particles)
	}
	if c.NNeighs < 0 {
		return fmt.Errorf("nneighs must be non-negative, got %d", c.NNeighs)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", c.Steps)
	}
	if _, err := comm.ParsePrecision(c.Precision); err != nil {
		return err
	}
	if _, err := comm.ParseForceMode(c.ForceMode); err != nil {
		return err
	}
	return nil
}

// GetPrecision returns the parsed precision; Validate must have passed.
func (c *Config) GetPrecision() comm.Precision {
	p, _ := comm.ParsePrecision(c.Precision)
	return p
}

// GetForceMode returns the parsed force mode; Validate must have passed.
func (c *Config) GetForceMode() comm.ForceMode {
	m, _ := comm.ParseForceMode(c.ForceMode)
	return m
}

// Timeout returns the receive timeout as a duration; zero blocks forever.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
