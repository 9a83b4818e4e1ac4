// Package config loads ctprun settings.
//
// Sources, later ones winning:
//   - built-in defaults
//   - a YAML file
//   - a .env file
//   - CTPRUN_* environment variables
//
// Command-line flags are applied on top by the caller. The merged result
// is checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ctprun/internal/store"
	"github.com/roach88/ctprun/internal/tracker"
)

//go:embed schema.cue
var schemaCUE string

// Config is the merged configuration.
type Config struct {
	LogLevel   string      `yaml:"log_level" json:"log_level"`
	Store      StoreConfig `yaml:"store" json:"store"`
	Paths      PathsConfig `yaml:"paths" json:"paths"`
	RecentRuns int         `yaml:"recent_runs" json:"recent_runs"`
}

type StoreConfig struct {
	Backend    string   `yaml:"backend" json:"backend"`
	SQLitePath string   `yaml:"sqlite_path" json:"sqlite_path"`
	S3         S3Config `yaml:"s3" json:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	Region    string `yaml:"region" json:"region"`
	AccessKey string `yaml:"access_key" json:"access_key"`
	SecretKey string `yaml:"secret_key" json:"secret_key"`
	Bucket    string `yaml:"bucket" json:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" json:"use_ssl"`
}

// PathsConfig holds the archive path keys.
type PathsConfig struct {
	Config  string `yaml:"config" json:"config"`
	Scalers string `yaml:"scalers" json:"scalers"`
}

// Error reports a configuration problem and where it came from.
type Error struct {
	Source  string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Source, e.Message)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Store: StoreConfig{
			Backend:    store.BackendSQLite,
			SQLitePath: "ctprun.db",
			S3:         S3Config{Region: "us-east-1", Bucket: "ctprun", UseSSL: true},
		},
		Paths: PathsConfig{
			Config:  tracker.DefaultConfigPath,
			Scalers: tracker.DefaultScalersPath,
		},
		RecentRuns: tracker.DefaultRecentRuns,
	}
}

// Load reads path (optional when empty) and ./.env (optional), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit .env location. A missing env file is
// not an error; a missing YAML file is.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Source: path, Message: err.Error()}
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &Error{Source: path, Message: err.Error()}
		}
		slog.Debug("config file loaded", "path", path)
	}

	dotenv := map[string]string{}
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			m, err := godotenv.Read(envFile)
			if err != nil {
				return nil, &Error{Source: envFile, Message: err.Error()}
			}
			dotenv = m
			slog.Debug("env file loaded", "path", envFile, "keys", len(m))
		}
	}

	if err := cfg.applyEnv(func(key string) string {
		return firstNonEmpty(strings.TrimSpace(os.Getenv(key)), strings.TrimSpace(dotenv[key]))
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(get func(string) string) error {
	setString := func(key string, dst *string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}
	setString("CTPRUN_LOG_LEVEL", &c.LogLevel)
	setString("CTPRUN_STORE_BACKEND", &c.Store.Backend)
	setString("CTPRUN_SQLITE_PATH", &c.Store.SQLitePath)
	setString("CTPRUN_S3_ENDPOINT", &c.Store.S3.Endpoint)
	setString("CTPRUN_S3_REGION", &c.Store.S3.Region)
	setString("CTPRUN_S3_ACCESS_KEY", &c.Store.S3.AccessKey)
	setString("CTPRUN_S3_SECRET_KEY", &c.Store.S3.SecretKey)
	setString("CTPRUN_S3_BUCKET", &c.Store.S3.Bucket)
	setString("CTPRUN_CONFIG_PATH", &c.Paths.Config)
	setString("CTPRUN_SCALERS_PATH", &c.Paths.Scalers)

	if v := get("CTPRUN_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &Error{Source: "CTPRUN_S3_USE_SSL", Message: fmt.Sprintf("not a boolean: %q", v)}
		}
		c.Store.S3.UseSSL = b
	}
	if v := get("CTPRUN_RECENT_RUNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Source: "CTPRUN_RECENT_RUNS", Message: fmt.Sprintf("not an integer: %q", v)}
		}
		c.RecentRuns = n
	}
	return nil
}

// Validate checks c against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &Error{Source: "schema", Message: strings.TrimSpace(cueerrors.Details(err, nil))}
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// StoreOptions converts the store section for store.OpenArchive.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:    c.Store.Backend,
		SQLitePath: c.Store.SQLitePath,
		S3: store.S3Config{
			Endpoint:  c.Store.S3.Endpoint,
			Region:    c.Store.S3.Region,
			AccessKey: c.Store.S3.AccessKey,
			SecretKey: c.Store.S3.SecretKey,
			Bucket:    c.Store.S3.Bucket,
			UseSSL:    c.Store.S3.UseSSL,
		},
	}
}

// TrackerOptions converts the tracker-related settings.
func (c *Config) TrackerOptions() []tracker.Option {
	return []tracker.Option{
		tracker.WithPaths(c.Paths.Config, c.Paths.Scalers),
		tracker.WithRecentRuns(c.RecentRuns),
	}
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
