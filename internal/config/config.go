package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/canvasync/canvasync/internal/frequency"
	"github.com/canvasync/canvasync/internal/model"
)

// Duration wraps time.Duration with YAML support for the "1h30m" form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// SyncConfig mirrors the user-facing sync settings.
type SyncConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Courses          []string `yaml:"courses"`
	ReminderOffset   Duration `yaml:"reminder_offset"`
	Interval         string   `yaml:"interval"`
	Adaptive         bool     `yaml:"adaptive"`
	WifiOnly         bool     `yaml:"wifi_only"`
	BatteryOptimized bool     `yaml:"battery_optimized"`
	DeleteOrphans    bool     `yaml:"delete_orphans"`
}

// PolicyConfig holds the recommendation thresholds. The values are a
// tunable heuristic, not a contract.
type PolicyConfig struct {
	MinRecords      int     `yaml:"min_records"`
	MinSuccessRate  float64 `yaml:"min_success_rate"`
	MaxOverdueRatio float64 `yaml:"max_overdue_ratio"`
}

// Config is the root of the YAML file.
type Config struct {
	DatabasePath string       `yaml:"database"`
	CalendarID   string       `yaml:"calendar_id"`
	Retention    int          `yaml:"retention"`
	Sync         SyncConfig   `yaml:"sync"`
	Policy       PolicyConfig `yaml:"policy"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	policy := frequency.DefaultPolicy()
	return Config{
		DatabasePath: "canvasync.db",
		Retention:    0, // history.DefaultRetention applies
		Sync: SyncConfig{
			Enabled:        true,
			ReminderOffset: Duration(model.DefaultReminderOffset),
			Interval:       model.Interval1Hour.String(),
			Adaptive:       true,
			DeleteOrphans:  true,
		},
		Policy: PolicyConfig{
			MinRecords:      policy.MinRecords,
			MinSuccessRate:  policy.MinSuccessRate,
			MaxOverdueRatio: policy.MaxOverdueRatio,
		},
	}
}

// Load reads and validates a config file. Unknown keys fail the load.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if _, err := model.ParseSyncInterval(c.Sync.Interval); err != nil {
		return err
	}
	if c.Sync.ReminderOffset < 0 {
		return fmt.Errorf("reminder_offset must not be negative")
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative")
	}
	if c.Policy.MinSuccessRate < 0 || c.Policy.MinSuccessRate > 1 {
		return fmt.Errorf("min_success_rate must be in [0, 1]")
	}
	if c.Policy.MaxOverdueRatio < 0 || c.Policy.MaxOverdueRatio > 1 {
		return fmt.Errorf("max_overdue_ratio must be in [0, 1]")
	}
	return nil
}

// Settings converts the config into the engine's settings snapshot.
func (c Config) Settings() model.SyncSettings {
	interval, _ := model.ParseSyncInterval(c.Sync.Interval)
	return model.SyncSettings{
		IsEnabled:            c.Sync.Enabled,
		EnabledCourseIDs:     c.Sync.Courses,
		ReminderOffset:       time.Duration(c.Sync.ReminderOffset),
		AutoSyncInterval:     interval,
		WifiOnlySync:         c.Sync.WifiOnly,
		BatteryOptimizedSync: c.Sync.BatteryOptimized,
	}
}

// ThresholdPolicy converts the policy thresholds into the frequency
// manager's policy object.
func (c Config) ThresholdPolicy() frequency.ThresholdPolicy {
	return frequency.ThresholdPolicy{
		MinRecords:      c.Policy.MinRecords,
		MinSuccessRate:  c.Policy.MinSuccessRate,
		MaxOverdueRatio: c.Policy.MaxOverdueRatio,
	}
}
