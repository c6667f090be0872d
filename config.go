package symex

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Path exploration strategies.
const (
	PathsLifo   = "lifo"
	PathsFifo   = "fifo"
	PathsRandom = "random"
)

// Config holds the options controlling symbolic execution.
type Config struct {
	// Maximum number of instructions executed on a path before its guard is
	// forced to false. Zero disables the bound.
	MaxDepth int `yaml:"max_depth"`

	// Default loop unwinding bound and per-loop overrides keyed by loop id.
	// Zero means unbounded.
	Unwind    int            `yaml:"unwind"`
	UnwindSet map[string]int `yaml:"unwind_set"`

	// Maximum number of simultaneously active frames of one function.
	RecursionUnwind int `yaml:"recursion_unwind"`

	// Emit an assertion that fails if a loop can run past its bound.
	UnwindingAssertions bool `yaml:"unwinding_assertions"`

	// Keep paths that exceed an unwinding bound instead of assuming them away.
	PartialLoops bool `yaml:"partial_loops"`

	// Replace "l: goto l" style loops by an assumption of the negated condition.
	SelfLoopsToAssumptions bool `yaml:"self_loops_to_assumptions"`

	// Substitute known constant values while renaming.
	ConstantPropagation bool `yaml:"constant_propagation"`

	// Simplify renamed expressions and the size of the memo cache.
	Simplify          bool `yaml:"simplify"`
	SimplifyCacheSize int  `yaml:"simplify_cache_size"`

	// Skip assertions entirely.
	IgnoreAssertions bool `yaml:"ignore_assertions"`

	// Path exploration strategy. Empty selects multi-path execution with
	// merging at join points.
	Paths string `yaml:"paths"`
	Seed  int64  `yaml:"seed"`

	// Record instruction transitions.
	Coverage bool `yaml:"coverage"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SelfLoopsToAssumptions: true,
		Simplify:               true,
		SimplifyCacheSize:      DefaultSimplifyCacheSize,
	}
}

// DoingPathExploration returns true if paths are explored one at a time.
func (c *Config) DoingPathExploration() bool { return c.Paths != "" }

// UnwindBound returns the unwinding bound for the given loop.
func (c *Config) UnwindBound(loopID string) int {
	if n, ok := c.UnwindSet[loopID]; ok {
		return n
	}
	return c.Unwind
}

// Validate returns an error if the configuration is inconsistent.
func (c *Config) Validate() error {
	switch c.Paths {
	case "", PathsLifo, PathsFifo, PathsRandom:
	default:
		return errors.Errorf("unknown path strategy: %q", c.Paths)
	}
	if c.MaxDepth < 0 || c.Unwind < 0 || c.RecursionUnwind < 0 {
		return errors.New("bounds must not be negative")
	}
	for id, n := range c.UnwindSet {
		if n < 0 {
			return errors.Errorf("negative unwind bound for loop %s", id)
		}
	}
	return nil
}

// LoadConfig reads a YAML configuration file. Options not present in the
// file keep their default values.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	buf, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(buf, &config); err != nil {
		return config, errors.Wrapf(err, "parse config %s", path)
	}
	if err := config.Validate(); err != nil {
		return config, errors.Wrapf(err, "invalid config %s", path)
	}
	return config, nil
}
