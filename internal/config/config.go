// Package config holds the run configuration of codecbench.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/appnet-org/codecbench/pkg/codec"
)

const (
	DefaultWarmup      = 100
	DefaultIterations  = 1000
	DefaultFixtureSize = 20
)

// Environment overrides for the iteration counts and fixture size.
const (
	EnvWarmup      = "CODECBENCH_WARMUP"
	EnvIterations  = "CODECBENCH_ITERATIONS"
	EnvFixtureSize = "CODECBENCH_FIXTURE_SIZE"
)

var ErrInvalid = errors.New("config: invalid")

// Config holds one benchmark run's settings.
type Config struct {
	Warmup      int
	Iterations  int
	FixtureSize int

	// Formats is the ordered comparison list; Baseline must be one of them.
	Formats  []string
	Baseline string

	NullRefs        bool
	OmitNulls       bool
	Seed            int64
	SchemaPath      string
	ContinueOnError bool
	JSON            bool
}

// Default returns the standard configuration: JSON as baseline against
// MessagePack and Protobuf.
func Default() *Config {
	return &Config{
		Warmup:      DefaultWarmup,
		Iterations:  DefaultIterations,
		FixtureSize: DefaultFixtureSize,
		Formats:     slices.Clone(codec.DefaultFormats),
		Baseline:    codec.DefaultFormats[0],
	}
}

// FromEnv applies environment overrides to base.
func FromEnv(base *Config) (*Config, error) {
	cfg := *base
	cfg.Formats = slices.Clone(base.Formats)
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{EnvWarmup, &cfg.Warmup},
		{EnvIterations, &cfg.Iterations},
		{EnvFixtureSize, &cfg.FixtureSize},
	} {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, v.name, raw, err)
		}
		*v.dst = n
	}
	return &cfg, nil
}

// Validate checks ranges and that every format is registered in reg.
func (c *Config) Validate(reg *codec.Registry) error {
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be >= 0, got %d", ErrInvalid, c.Warmup)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalid, c.Iterations)
	}
	if c.FixtureSize < 1 {
		return fmt.Errorf("%w: fixture size must be >= 1, got %d", ErrInvalid, c.FixtureSize)
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("%w: no formats selected", ErrInvalid)
	}

	seen := make(map[string]bool, len(c.Formats))
	for _, f := range c.Formats {
		if seen[f] {
			return fmt.Errorf("%w: format %s listed twice", ErrInvalid, f)
		}
		seen[f] = true
		if _, ok := reg.Display(f); !ok {
			return fmt.Errorf("%w: %w: %s", ErrInvalid, codec.ErrUnknownCodec, f)
		}
	}
	if !seen[c.Baseline] {
		return fmt.Errorf("%w: baseline %q is not among the selected formats", ErrInvalid, c.Baseline)
	}
	return nil
}
