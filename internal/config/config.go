// Package config loads aigis settings from an optional YAML file overlaid by
// AIGIS_* environment variables. Core packages never read the environment
// themselves; they receive the values below through their constructors.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/koustreak/aigis/internal/errs"
	"github.com/koustreak/aigis/internal/filestore"
	"github.com/koustreak/aigis/internal/logger"
)

// LookupFunc resolves an environment variable. os.LookupEnv in production,
// a map in tests.
type LookupFunc func(string) (string, bool)

type Config struct {
	MasterKey      string           `yaml:"master_key"`
	AppDB          AppDBConfig      `yaml:"app_db"`
	Pool           PoolConfig       `yaml:"pool"`
	ConnectTimeout time.Duration    `yaml:"connect_timeout"`
	Echo           bool             `yaml:"echo"`
	Log            logger.Config    `yaml:"log"`
	Store          StoreConfig      `yaml:"store"`
	ObjectStore    filestore.Config `yaml:"object_store"`
	Ops            OpsConfig        `yaml:"ops"`
}

// AppDBConfig locates the application's own Postgres database. It backs the
// custom connection kind and the Postgres credential store.
type AppDBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// PoolConfig tunes the pooled postgres and custom engines.
type PoolConfig struct {
	Size        int           `yaml:"size"`
	MaxOverflow int           `yaml:"max_overflow"`
	Timeout     time.Duration `yaml:"timeout"` // wait for a pooled connection
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
}

type StoreConfig struct {
	Driver     string `yaml:"driver"` // postgres | sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

type OpsConfig struct {
	Address string `yaml:"address"`
}

// Default returns the settings used when neither file nor environment say
// otherwise.
func Default() Config {
	return Config{
		AppDB: AppDBConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Database: "aigis",
			SSLMode:  "disable",
		},
		Pool: PoolConfig{
			Size:        10,
			MaxOverflow: 20,
			Timeout:     30 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		ConnectTimeout: 10 * time.Second,
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
		Store: StoreConfig{Driver: "postgres"},
		ObjectStore: filestore.Config{
			Provider:      filestore.ProviderMinIO,
			Endpoint:      "localhost:9000",
			DefaultBucket: "aigis-artifacts",
		},
		Ops: OpsConfig{Address: ":9090"},
	}
}

// LoadFromEnv reads path (skipped when empty) and then the process environment.
func LoadFromEnv(path string) (Config, error) {
	var raw []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errs.Wrap(errs.ErrKindConfiguration, "read config file", err)
		}
		raw = b
	}
	return Load(raw, os.LookupEnv)
}

// Load parses the YAML document in raw (may be empty) on top of Default and
// applies environment overrides through lookup.
func Load(raw []byte, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, errs.New(errs.ErrKindConfiguration, "lookup function is required")
	}

	cfg := Default()
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errs.Wrap(errs.ErrKindConfiguration, "parse config file", err)
		}
	}

	steps := []error{
		applyString(lookup, "AIGIS_MASTER_KEY", &cfg.MasterKey),
		applyString(lookup, "AIGIS_APPDB_HOST", &cfg.AppDB.Host),
		applyInt(lookup, "AIGIS_APPDB_PORT", &cfg.AppDB.Port),
		applyString(lookup, "AIGIS_APPDB_USER", &cfg.AppDB.User),
		applyString(lookup, "AIGIS_APPDB_PASSWORD", &cfg.AppDB.Password),
		applyString(lookup, "AIGIS_APPDB_NAME", &cfg.AppDB.Database),
		applyString(lookup, "AIGIS_APPDB_SSLMODE", &cfg.AppDB.SSLMode),
		applyInt(lookup, "AIGIS_POOL_SIZE", &cfg.Pool.Size),
		applyInt(lookup, "AIGIS_POOL_MAX_OVERFLOW", &cfg.Pool.MaxOverflow),
		applyDuration(lookup, "AIGIS_POOL_TIMEOUT", &cfg.Pool.Timeout),
		applyDuration(lookup, "AIGIS_CONNECT_TIMEOUT", &cfg.ConnectTimeout),
		applyBool(lookup, "AIGIS_ECHO", &cfg.Echo),
		applyString(lookup, "AIGIS_LOG_LEVEL", &cfg.Log.Level),
		applyString(lookup, "AIGIS_LOG_FORMAT", &cfg.Log.Format),
		applyString(lookup, "AIGIS_STORE_DRIVER", &cfg.Store.Driver),
		applyString(lookup, "AIGIS_STORE_SQLITE_PATH", &cfg.Store.SQLitePath),
		applyString(lookup, "AIGIS_MINIO_ENDPOINT", &cfg.ObjectStore.Endpoint),
		applyString(lookup, "AIGIS_MINIO_ACCESS_KEY", &cfg.ObjectStore.AccessKey),
		applyString(lookup, "AIGIS_MINIO_SECRET_KEY", &cfg.ObjectStore.SecretKey),
		applyString(lookup, "AIGIS_MINIO_BUCKET", &cfg.ObjectStore.DefaultBucket),
		applyBool(lookup, "AIGIS_MINIO_SSL", &cfg.ObjectStore.UseSSL),
		applyString(lookup, "AIGIS_OPS_ADDR", &cfg.Ops.Address),
	}
	for _, err := range steps {
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Validate checks the settings the core cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.MasterKey) == "" {
		return errs.New(errs.ErrKindConfiguration, "master key is required (AIGIS_MASTER_KEY)")
	}
	if c.Pool.Size <= 0 {
		return errs.Newf(errs.ErrKindConfiguration, "pool size must be positive, got %d", c.Pool.Size)
	}
	if c.Pool.MaxOverflow < 0 {
		return errs.Newf(errs.ErrKindConfiguration, "pool max overflow must not be negative, got %d", c.Pool.MaxOverflow)
	}
	switch c.Store.Driver {
	case "postgres":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errs.New(errs.ErrKindConfiguration, "sqlite store requires a path (AIGIS_STORE_SQLITE_PATH)")
		}
	default:
		return errs.Newf(errs.ErrKindConfiguration, "unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// ObjectStoreEnabled reports whether artifact uploads are configured.
func (c Config) ObjectStoreEnabled() bool {
	return c.ObjectStore.Endpoint != "" && c.ObjectStore.AccessKey != ""
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("invalid %s", key), err)
	}
	*dst = value
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("invalid %s", key), err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("invalid %s", key), err)
	}
	*dst = value
	return nil
}
