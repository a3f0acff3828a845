// Package config resolves the project's hidden state directory and loads or
// persists the feature-toggle and enforcement configuration file that lives
// inside it. Configuration is process-wide state, loaded lazily and written
// on change, guarded by the same advisory lock as the store.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StateDirName is the hidden directory created under the project root.
const StateDirName = ".taskctl"

// EnvDBPath overrides the resolved state directory path entirely.
const EnvDBPath = "TM_DB_PATH"

// EnvLockTimeout overrides the advisory-lock wait, in seconds.
const EnvLockTimeout = "TM_LOCK_TIMEOUT"

// EnvDebug turns on verbose local logging.
const EnvDebug = "TM_DEBUG"

// EnvTestMode disables destructive fallback behavior for tests.
const EnvTestMode = "TM_TEST_MODE"

// Features holds the Core-Loop feature toggles. All default to true; setting
// MinimalMode disables every other field regardless of its own value.
type Features struct {
	SuccessCriteria     bool `yaml:"success_criteria"`
	Feedback            bool `yaml:"feedback"`
	Telemetry           bool `yaml:"telemetry"`
	CompletionSummaries bool `yaml:"completion_summaries"`
	TimeTracking        bool `yaml:"time_tracking"`
	Deadlines           bool `yaml:"deadlines"`
	MinimalMode         bool `yaml:"minimal_mode"`
}

// Enforcement holds the Enforcement Gate's configuration.
type Enforcement struct {
	Level      string `yaml:"level"`
	AutoDetect bool   `yaml:"auto_detect"`
	Enforced   bool   `yaml:"enforced"`
}

// Config is the full contents of config.yaml.
type Config struct {
	Features    Features    `yaml:"features"`
	Enforcement Enforcement `yaml:"enforcement"`

	// path is where this Config was loaded from / will be saved to; not
	// serialized.
	path string `yaml:"-"`
}

// Default returns the all-features-enabled, standard-enforcement config
// written by `init` and used whenever no config.yaml exists yet.
func Default() *Config {
	return &Config{
		Features: Features{
			SuccessCriteria:     true,
			Feedback:            true,
			Telemetry:           true,
			CompletionSummaries: true,
			TimeTracking:        true,
			Deadlines:           true,
			MinimalMode:         false,
		},
		Enforcement: Enforcement{
			Level:      "standard",
			AutoDetect: true,
			Enforced:   false,
		},
	}
}

// StateDir resolves the project's hidden state directory: TM_DB_PATH if set,
// else <cwd>/.taskctl.
func StateDir() (string, error) {
	if v := os.Getenv(EnvDBPath); v != "" {
		return v, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, StateDirName), nil
}

// ConfigPath returns the config.yaml path inside a state directory.
func ConfigPath(stateDir string) string {
	return filepath.Join(stateDir, "config.yaml")
}

// Load reads config.yaml from the state directory. A missing file is not an
// error: the returned Config is Default() with path set so a later Save
// writes it out.
func Load(stateDir string) (*Config, error) {
	path := ConfigPath(stateDir)
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Save writes the config back to its path, creating the state directory if
// necessary. Callers are expected to hold the storage advisory lock.
func (c *Config) Save() error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o644)
}

// Enabled reports whether a named Core-Loop feature is active: false under
// minimal mode regardless of the individual toggle, else the toggle's value.
// Unknown feature names are treated as disabled.
func (c *Config) Enabled(feature string) bool {
	if c.Features.MinimalMode {
		return false
	}
	switch feature {
	case "success_criteria":
		return c.Features.SuccessCriteria
	case "feedback":
		return c.Features.Feedback
	case "telemetry":
		return c.Features.Telemetry
	case "completion_summaries":
		return c.Features.CompletionSummaries
	case "time_tracking":
		return c.Features.TimeTracking
	case "deadlines":
		return c.Features.Deadlines
	default:
		return false
	}
}

// SetFeature toggles a single feature by name, returning false if the name
// is not recognized.
func (c *Config) SetFeature(feature string, value bool) bool {
	switch feature {
	case "success_criteria":
		c.Features.SuccessCriteria = value
	case "feedback":
		c.Features.Feedback = value
	case "telemetry":
		c.Features.Telemetry = value
	case "completion_summaries":
		c.Features.CompletionSummaries = value
	case "time_tracking":
		c.Features.TimeTracking = value
	case "deadlines":
		c.Features.Deadlines = value
	case "minimal_mode":
		c.Features.MinimalMode = value
	default:
		return false
	}
	return true
}

// Reset restores the default configuration in place, preserving the load
// path so a subsequent Save writes it to the same file.
func (c *Config) Reset() {
	path := c.path
	*c = *Default()
	c.path = path
}
