package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nicktill/titlefrag/pkg/fragment"
	"github.com/nicktill/titlefrag/pkg/storage/mysql"
)

// EnvPrefix namespaces environment overrides
const EnvPrefix = "TITLEFRAG_"

// File is the YAML configuration file
type File struct {
	Storage  StorageConfig  `yaml:"storage"`
	MySQL    mysql.Config   `yaml:"mysql"`
	Load     LoadConfig     `yaml:"load"`
	Fragment FragmentConfig `yaml:"fragment"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StorageConfig selects and sizes the title store
type StorageConfig struct {
	Backend      string `yaml:"backend"` // memory, badger, mysql
	DataDir      string `yaml:"data_dir"`
	MaxMemoryMB  int64  `yaml:"max_memory_mb"`
	MaxStorageGB int64  `yaml:"max_storage_gb"`
}

// LoadConfig holds loader settings
type LoadConfig struct {
	Policy        string `yaml:"policy"` // skip, abort
	SkipHeader    bool   `yaml:"skip_header"`
	ProgressEvery int64  `yaml:"progress_every"`
}

// FragmentConfig holds analyzer settings
type FragmentConfig struct {
	Budget     int `yaml:"budget"`
	YearColumn int `yaml:"year_column"`
	MinFields  int `yaml:"min_fields"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig holds zap settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns a configuration with every field set
func Default() *File {
	return &File{
		Storage: StorageConfig{
			Backend:      BackendBadger,
			DataDir:      DefaultDataDir,
			MaxMemoryMB:  DefaultMaxMemoryMB,
			MaxStorageGB: DefaultMaxStorageGB,
		},
		MySQL: mysql.Config{
			Host:  DefaultMySQLHost,
			Port:  DefaultMySQLPort,
			Table: DefaultMySQLTable,
		},
		Load: LoadConfig{
			Policy:        "skip",
			ProgressEvery: DefaultProgressEvery,
		},
		Fragment: FragmentConfig{
			Budget:     fragment.DefaultBudget,
			YearColumn: fragment.DefaultYearColumn,
			MinFields:  fragment.DefaultMinFields,
		},
		Server:  ServerConfig{Port: DefaultPort},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads path over the defaults, then applies TITLEFRAG_* environment
// overrides. An empty path skips the file.
func Load(path string) (*File, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values the loaders cannot recover from
func (c *File) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory, BackendBadger, BackendMySQL:
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be %s, %s or %s (got %q)",
			BackendMemory, BackendBadger, BackendMySQL, c.Storage.Backend))
	}
	if c.Storage.Backend == BackendBadger && c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required for the badger backend"))
	}
	if c.Storage.Backend == BackendMySQL && c.MySQL.Database == "" {
		errs = append(errs, errors.New("mysql.database is required for the mysql backend"))
	}
	if c.Fragment.Budget <= 0 {
		errs = append(errs, errors.New("fragment.budget must be at least 1"))
	}
	if c.Fragment.YearColumn < 0 {
		errs = append(errs, errors.New("fragment.year_column must not be negative"))
	}
	switch strings.ToLower(c.Load.Policy) {
	case "", "skip", "abort":
	default:
		errs = append(errs, fmt.Errorf("load.policy must be skip or abort (got %q)", c.Load.Policy))
	}

	return errors.Join(errs...)
}

// applyEnv overrides fields from TITLEFRAG_* variables.
func (c *File) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	var errs []error
	num := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	flag := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("DATA_DIR", &c.Storage.DataDir)
	str("MYSQL_HOST", &c.MySQL.Host)
	num("MYSQL_PORT", &c.MySQL.Port)
	str("MYSQL_USER", &c.MySQL.User)
	str("MYSQL_PASSWORD", &c.MySQL.Password)
	str("MYSQL_DATABASE", &c.MySQL.Database)
	str("MYSQL_TABLE", &c.MySQL.Table)
	str("LOAD_POLICY", &c.Load.Policy)
	flag("SKIP_HEADER", &c.Load.SkipHeader)
	num("FRAGMENT_BUDGET", &c.Fragment.Budget)
	str("PORT", &c.Server.Port)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	flag("METRICS_ENABLED", &c.Metrics.Enabled)

	return errors.Join(errs...)
}

// Analyzer builds a fragment analyzer from the fragment section
func (c *File) Analyzer() *fragment.Analyzer {
	a := fragment.New(c.Fragment.Budget)
	a.YearColumn = c.Fragment.YearColumn
	if c.Fragment.MinFields > 0 {
		a.MinFields = c.Fragment.MinFields
	}
	return a
}
