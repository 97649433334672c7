// Package config loads a YAML bootstrap file describing job definitions,
// retry tuning, notifier sinks, poll frequency, and the admin HTTP
// address, following the teacher's viper + go-viper/mapstructure/v2
// config-loading style. It is bootstrap convenience only: the registry it
// produces still lives entirely in the Scheduler's in-memory registry -
// nothing here persists job state.
package config

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/loykin/jobsched/internal/definition"
	"github.com/loykin/jobsched/internal/retrypolicy"
	"github.com/loykin/jobsched/internal/schedule"
)

// Config is the top-level bootstrap document.
type Config struct {
	PollFrequency time.Duration  `mapstructure:"poll_frequency"`
	Jobs          []JobConfig    `mapstructure:"jobs"`
	Notifiers     NotifierConfig `mapstructure:"notifiers"`
	Server        *ServerConfig  `mapstructure:"server"`
	Log           *LogConfig     `mapstructure:"log"`

	configPath string
}

// JobConfig describes one registry entry. Action is a lookup key into the
// map of callables the embedding application supplies to Build; unlike the
// teacher's process specs, a job's actual body can never be expressed in
// YAML, so config only ever wires a name to an already-registered Action.
type JobConfig struct {
	ID       string          `mapstructure:"id"`
	Name     string          `mapstructure:"name"`
	Action   string          `mapstructure:"action"`
	Overlap  bool            `mapstructure:"overlap"`
	Schedule *ScheduleConfig `mapstructure:"schedule"`
	Retry    *RetryConfig    `mapstructure:"retry"`
}

// ScheduleConfig mirrors the internal/schedule options.
type ScheduleConfig struct {
	Cron          string        `mapstructure:"cron"`
	EarliestStart time.Duration `mapstructure:"earliest_start"`
	Jitter        time.Duration `mapstructure:"jitter"`
}

// RetryConfig mirrors retrypolicy.Backoff's tunables.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// NotifierConfig selects the optional audit sinks.
type NotifierConfig struct {
	Log        bool              `mapstructure:"log"`
	Metrics    bool              `mapstructure:"metrics"`
	SQLDSN     string            `mapstructure:"sql_dsn"`
	ClickHouse *ClickHouseConfig `mapstructure:"clickhouse"`
}

// ClickHouseConfig configures the optional ClickHouse audit sink.
type ClickHouseConfig struct {
	Addr     string `mapstructure:"addr"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Table    string `mapstructure:"table"`
}

// ServerConfig configures the optional admin HTTP surface.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LogConfig configures rotation for the scheduler's own operational log.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads and decodes a YAML document at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("poll_frequency", time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{configPath: path}
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook)); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Build turns the loaded JobConfig entries into Definitions, resolving
// each entry's Action key against actions. An entry whose action key is
// absent is rejected rather than silently skipped, since an unregistered
// action almost always means a deploy/config mismatch.
func (c *Config) Build(actions map[string]definition.Action) ([]definition.Definition, error) {
	defs := make([]definition.Definition, 0, len(c.Jobs))
	for _, jc := range c.Jobs {
		if jc.ID == "" {
			return nil, fmt.Errorf("config: job %q missing id", jc.Name)
		}
		action, ok := actions[jc.Action]
		if !ok {
			return nil, fmt.Errorf("config: job %s references unknown action %q", jc.ID, jc.Action)
		}

		opts := []definition.Option{definition.WithOverlap(jc.Overlap)}

		if jc.Schedule != nil {
			schedOpts := make([]schedule.Option, 0, 3)
			if jc.Schedule.Cron != "" {
				schedOpts = append(schedOpts, schedule.WithCron(jc.Schedule.Cron))
			}
			if jc.Schedule.EarliestStart > 0 {
				schedOpts = append(schedOpts, schedule.WithEarliestStart(time.Now().UTC().Add(jc.Schedule.EarliestStart)))
			}
			if jc.Schedule.Jitter > 0 {
				schedOpts = append(schedOpts, schedule.WithJitter(jc.Schedule.Jitter))
			}
			opts = append(opts, definition.WithSchedule(schedule.New(schedOpts...)))
		}

		if jc.Retry != nil {
			opts = append(opts, definition.WithRetryPolicy(&retrypolicy.Backoff{
				MaxAttempts:     jc.Retry.MaxAttempts,
				InitialInterval: jc.Retry.InitialInterval,
				MaxInterval:     jc.Retry.MaxInterval,
				MaxElapsedTime:  jc.Retry.MaxElapsedTime,
			}))
		}

		defs = append(defs, definition.NewAction(jc.ID, jc.Name, action, opts...))
	}
	return defs, nil
}
