// Package config loads framework settings from a TOML file, filling
// in defaults for everything the file leaves out.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full framework configuration.
type Config struct {
	Session  Session  `toml:"session"`
	Wait     Wait     `toml:"wait"`
	Input    Input    `toml:"input"`
	API      API      `toml:"api"`
	Store    Store    `toml:"store"`
	Monitor  Monitor  `toml:"monitor"`
	GitHub   GitHub   `toml:"github"`
	Generate Generate `toml:"generate"`
}

type Session struct {
	GracePeriodMS  int `toml:"grace_period_ms"`
	TranscriptSize int `toml:"transcript_size"`
}

type Wait struct {
	PollIntervalMS  int `toml:"poll_interval_ms"`
	StableThreshold int `toml:"stable_threshold"`
	TimeoutMS       int `toml:"timeout_ms"`
}

type Input struct {
	KeyDelayMS      int `toml:"key_delay_ms"`
	ResponseDelayMS int `toml:"response_delay_ms"`
}

type API struct {
	ListenAddr string `toml:"listen_addr"`
}

type Store struct {
	Path string `toml:"path"`
}

type Monitor struct {
	IntervalMS    int     `toml:"interval_ms"`
	Window        int     `toml:"window"`
	LoadThreshold float64 `toml:"load_threshold"`
}

type GitHub struct {
	Repo  string `toml:"repo"`
	Token string `toml:"token"`
}

type Generate struct {
	Backend     string `toml:"backend"`
	OpenAIKey   string `toml:"openai_key"`
	OpenAIModel string `toml:"openai_model"`
	GeminiKey   string `toml:"gemini_key"`
	GeminiModel string `toml:"gemini_model"`
	ScenarioDir string `toml:"scenario_dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Session:  Session{GracePeriodMS: 1000, TranscriptSize: 1 << 20},
		Wait:     Wait{PollIntervalMS: 100, StableThreshold: 5, TimeoutMS: 5000},
		Input:    Input{KeyDelayMS: 50, ResponseDelayMS: 100},
		API:      API{ListenAddr: "127.0.0.1:8137"},
		Store:    Store{Path: "results.db"},
		Monitor:  Monitor{IntervalMS: 5000, Window: 120},
		Generate: Generate{Backend: "openai", ScenarioDir: "scenarios"},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown keys %v", path, undecoded)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Wait.PollIntervalMS <= 0 {
		return fmt.Errorf("wait.poll_interval_ms must be positive")
	}
	if c.Wait.StableThreshold <= 0 {
		return fmt.Errorf("wait.stable_threshold must be positive")
	}
	switch c.Generate.Backend {
	case "", "openai", "gemini":
	default:
		return fmt.Errorf("generate.backend must be openai or gemini, got %q", c.Generate.Backend)
	}
	return nil
}

// GracePeriod returns the session kill grace period.
func (c Config) GracePeriod() time.Duration {
	return time.Duration(c.Session.GracePeriodMS) * time.Millisecond
}

// PollInterval returns the stabilization poll interval.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Wait.PollIntervalMS) * time.Millisecond
}

// WaitTimeout returns the default wait timeout.
func (c Config) WaitTimeout() time.Duration {
	return time.Duration(c.Wait.TimeoutMS) * time.Millisecond
}

// MonitorInterval returns the sampling interval.
func (c Config) MonitorInterval() time.Duration {
	return time.Duration(c.Monitor.IntervalMS) * time.Millisecond
}
