// Package flagfile reads and edits the git-tracked flag definition file (flipt.yaml).
// Build-time flags are consumed by the site build, runtime flags are pushed to the flags endpoint.
package flagfile

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tylerearls/folio/pkg/domain"
)

// DefaultPath is the flag file name looked up in the working directory
const DefaultPath = "flipt.yaml"

// ErrFlagNotFound returned when a flag is neither build-time nor runtime
var ErrFlagNotFound = errors.New("flag not found")

// Flag is a single flag definition
type Flag struct {
	Enabled     bool    `yaml:"enabled"`
	Description string  `yaml:"description,omitempty"`
	Message     *string `yaml:"message,omitempty"`
}

// Environment holds per-environment overrides
type Environment struct {
	BuildTimeFlags map[string]Flag `yaml:"build_time_flags,omitempty"`
	RuntimeFlags   map[string]Flag `yaml:"runtime_flags,omitempty"`
}

// Config is the whole flag file
type Config struct {
	Version        string                 `yaml:"version"`
	Namespace      string                 `yaml:"namespace"`
	BuildTimeFlags map[string]Flag        `yaml:"build_time_flags,omitempty"`
	RuntimeFlags   map[string]Flag        `yaml:"runtime_flags,omitempty"`
	Environments   map[string]Environment `yaml:"environments,omitempty"`
}

// Kind of flag
type Kind string

// flag kinds
const (
	BuildTime Kind = "build-time"
	Runtime   Kind = "runtime"
)

// Change describes one updated definition, Environment is empty for the base definition
type Change struct {
	Kind        Kind
	Flag        string
	Environment string
}

// Status summarizes enabled flags of the base definitions
type Status struct {
	BuildTimeEnabled int
	BuildTimeTotal   int
	RuntimeEnabled   int
	RuntimeTotal     int
}

// Load reads flag file from path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read flag file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse flag file %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes flag file to path. Keys are written sorted.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal flag file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // flag file is committed to git
		return fmt.Errorf("write flag file: %w", err)
	}
	return nil
}

// SetEnabled switches a flag in its base definition and in every environment overriding it.
// A key defined both as build-time and runtime flag is updated in both places.
func (c *Config) SetEnabled(key string, enabled bool) ([]Change, error) {
	var changes []Change

	if setIn(c.BuildTimeFlags, key, enabled) {
		changes = append(changes, Change{Kind: BuildTime, Flag: key})
		for _, env := range c.envNames() {
			if setIn(c.Environments[env].BuildTimeFlags, key, enabled) {
				changes = append(changes, Change{Kind: BuildTime, Flag: key, Environment: env})
			}
		}
	}

	if setIn(c.RuntimeFlags, key, enabled) {
		changes = append(changes, Change{Kind: Runtime, Flag: key})
		for _, env := range c.envNames() {
			if setIn(c.Environments[env].RuntimeFlags, key, enabled) {
				changes = append(changes, Change{Kind: Runtime, Flag: key, Environment: env})
			}
		}
	}

	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrFlagNotFound, key)
	}
	return changes, nil
}

// Status counts enabled base flags
func (c *Config) Status() Status {
	res := Status{BuildTimeTotal: len(c.BuildTimeFlags), RuntimeTotal: len(c.RuntimeFlags)}
	for _, f := range c.BuildTimeFlags {
		if f.Enabled {
			res.BuildTimeEnabled++
		}
	}
	for _, f := range c.RuntimeFlags {
		if f.Enabled {
			res.RuntimeEnabled++
		}
	}
	return res
}

// RuntimeFlagSet returns runtime flags of env in the shape served by the flags endpoint.
// Environment without runtime overrides falls back to base flags, snake_case keys become kebab-case.
func (c *Config) RuntimeFlagSet(env string) domain.FeatureFlagSet {
	src := c.RuntimeFlags
	if e, ok := c.Environments[env]; ok && e.RuntimeFlags != nil {
		src = e.RuntimeFlags
	}
	res := make(domain.FeatureFlagSet, len(src))
	for k, f := range src {
		res[strings.ReplaceAll(k, "_", "-")] = domain.Flag{Enabled: f.Enabled, Message: f.Message}
	}
	return res
}

// Names returns sorted names of build-time and runtime flags
func (c *Config) Names() (buildTime, runtime []string) {
	return SortedKeys(c.BuildTimeFlags), SortedKeys(c.RuntimeFlags)
}

// EnvNames returns sorted environment names
func (c *Config) EnvNames() []string {
	return c.envNames()
}

func (c *Config) envNames() []string {
	return SortedKeys(c.Environments)
}

func setIn(flags map[string]Flag, key string, enabled bool) bool {
	f, ok := flags[key]
	if !ok {
		return false
	}
	f.Enabled = enabled
	flags[key] = f
	return true
}

// SortedKeys returns map keys in ascending order
func SortedKeys[M ~map[string]V, V any](m M) []string {
	return slices.Sorted(maps.Keys(m))
}
