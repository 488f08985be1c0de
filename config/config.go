package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/nomis52/vetflow/logging"
)

const redacted = "REDACTED"

const (
	// Default listener settings
	defaultListenAddr = ":8080"

	// Default store settings
	defaultStoreBackend    = StoreMemory
	defaultStoreMaxRetries = 3

	// Default session settings
	defaultSessionTTL  = 30 * time.Minute
	defaultHistorySize = 25
	defaultMaxSessions = 100

	// Default monitoring settings
	defaultMetricsPrefix = "vetflow"
	defaultJobName       = "vetflow"

	// Default housekeeping settings
	defaultSweepSchedule = "*/5 * * * *"
	defaultHistoryMaxAge = 7 * 24 * time.Hour

	// Default check-in settings
	defaultWeightTitle = "Weigh patient"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreDiskv  = "diskv"
	StoreSQLite = "sqlite"
	StoreMySQL  = "mysql"
)

// Config represents the complete application configuration
type Config struct {
	Listener     ListenerConfig     `yaml:"listener"`
	Logging      logging.Config     `yaml:"logging"`
	Store        StoreConfig        `yaml:"store"`
	Session      SessionConfig      `yaml:"session"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Tracing      TracingConfig      `yaml:"tracing"`
	Practice     PracticeConfig     `yaml:"practice"`
	CheckIn      CheckInConfig      `yaml:"checkin"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	// The path to the directory used to store run history and on-disk objects
	StateDir string `yaml:"state_dir"`
}

// ListenerConfig holds HTTP server listener settings.
type ListenerConfig struct {
	// The listen address, defaults to :8080
	Addr string `yaml:"addr"`
	// CertFile and KeyFile enable TLS. The pair is reloaded when either file changes.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// StoreConfig selects and configures the object store.
type StoreConfig struct {
	// Backend is one of memory, diskv, sqlite or mysql
	Backend string `yaml:"backend"`
	// Path is the directory for the diskv and sqlite backends. Defaults to state_dir.
	Path string `yaml:"path"`
	// DSN is the data source name for sql backends
	DSN        string `yaml:"dsn"`
	MaxRetries int    `yaml:"max_retries"`
	// Fixtures is an optional YAML file of objects loaded at startup
	Fixtures string `yaml:"fixtures"`
}

// SessionConfig controls user sessions.
type SessionConfig struct {
	// TTL is how long an idle session lives
	TTL time.Duration `yaml:"ttl"`
	// HistorySize is the number of recent selections kept per context slot
	HistorySize int `yaml:"history_size"`
	MaxSessions int `yaml:"max_sessions"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	// PushURL is a Prometheus remote write endpoint used by the CLI. Optional.
	PushURL       string `yaml:"push_url"`
	MetricsPrefix string `yaml:"metrics_prefix"`
	JobName       string `yaml:"jobname"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	// Stdout writes spans to stdout
	Stdout bool `yaml:"stdout"`
}

// PracticeConfig identifies the practice and location workflows run for.
type PracticeConfig struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// CheckInConfig tunes the check-in workflow.
type CheckInConfig struct {
	// PromptWeight asks whether to weigh the patient
	PromptWeight bool `yaml:"prompt_weight"`
	// PrintForm offers to print the visit form
	PrintForm   bool   `yaml:"print_form"`
	WeightTitle string `yaml:"weight_title"`
	// WorkLists lists the work list names a task may be created in
	WorkLists []string `yaml:"work_lists"`
}

// HousekeepingConfig schedules background maintenance.
type HousekeepingConfig struct {
	// SweepSchedule is the cron spec for expiring sessions and pruning history
	SweepSchedule string `yaml:"sweep_schedule"`
	// HistoryMaxAge is how long finished runs are kept
	HistoryMaxAge time.Duration `yaml:"history_max_age"`
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Practice.Name == "" {
		return errors.New("practice name is required")
	}
	if (c.Listener.CertFile == "") != (c.Listener.KeyFile == "") {
		return errors.New("listener cert_file and key_file must be set together")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreDiskv, StoreSQLite:
		if c.Store.Path == "" && c.Store.DSN == "" {
			return fmt.Errorf("store %s needs a path or state_dir", c.Store.Backend)
		}
	case StoreMySQL:
		if c.Store.DSN == "" {
			return errors.New("store mysql needs a dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.MaxRetries < 0 {
		return errors.New("store max_retries must not be negative")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}
	if c.Session.MaxSessions < 1 {
		return errors.New("session max_sessions must be at least 1")
	}
	if _, err := cron.ParseStandard(c.Housekeeping.SweepSchedule); err != nil {
		return fmt.Errorf("invalid housekeeping sweep_schedule %q: %w", c.Housekeeping.SweepSchedule, err)
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if c.Listener.Addr == "" {
		c.Listener.Addr = defaultListenAddr
	}
	c.Logging.SetDefaults()
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if c.Store.Path == "" {
		c.Store.Path = c.StateDir
	}
	if c.Store.MaxRetries == 0 {
		c.Store.MaxRetries = defaultStoreMaxRetries
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Session.HistorySize == 0 {
		c.Session.HistorySize = defaultHistorySize
	}
	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = defaultMaxSessions
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.CheckIn.WeightTitle == "" {
		c.CheckIn.WeightTitle = defaultWeightTitle
	}
	if c.Housekeeping.SweepSchedule == "" {
		c.Housekeeping.SweepSchedule = defaultSweepSchedule
	}
	if c.Housekeeping.HistoryMaxAge == 0 {
		c.Housekeeping.HistoryMaxAge = defaultHistoryMaxAge
	}
}

// Redacted returns a copy of the config with credentials masked, for display.
func (c Config) Redacted() Config {
	out := c
	if c.Store.Backend == StoreMySQL && c.Store.DSN != "" {
		dsn, err := mysql.ParseDSN(c.Store.DSN)
		if err != nil {
			out.Store.DSN = redacted
		} else {
			if dsn.Passwd != "" {
				dsn.Passwd = redacted
			}
			out.Store.DSN = dsn.FormatDSN()
		}
	}
	if c.Monitoring.PushURL != "" {
		if u, err := url.Parse(c.Monitoring.PushURL); err == nil {
			out.Monitoring.PushURL = u.Redacted()
		}
	}
	return out
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode YAML config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
