// Package config loads qchat CLI configuration.
//
// Values are layered, later sources winning: built-in defaults, the YAML
// file, a .env file, then QCHAT_* environment variables. Variables already
// present in the environment are never overwritten by the .env file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/quantumchat/client-go/internal/crypto"
)

// Backends.
const (
	BackendHTTP  = "http"
	BackendRedis = "redis"
)

// Config is the CLI configuration.
type Config struct {
	// Username is the local user. Commands that act as a user require it.
	Username string `yaml:"username"`

	// Backend selects the directory and envelope store: "http" or "redis".
	Backend string       `yaml:"backend"`
	Server  ServerConfig `yaml:"server"`
	Redis   RedisConfig  `yaml:"redis"`

	KEM    string `yaml:"kem"`
	Cipher string `yaml:"cipher"`

	// KeyFile is the passphrase-encrypted private key store. The
	// passphrase is only read from QCHAT_PASSPHRASE.
	KeyFile    string `yaml:"key_file"`
	Passphrase string `yaml:"-"`

	LogLevel    string `yaml:"log_level"`
	Concurrency int    `yaml:"concurrency"`

	PollInterval   time.Duration `yaml:"poll_interval"`
	PollMaxBackoff time.Duration `yaml:"poll_max_backoff"`
}

// ServerConfig addresses the chat server's REST API.
type ServerConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Retries int    `yaml:"retries"`
}

// RedisConfig addresses a Redis server used as directory, store and relay.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend: BackendHTTP,
		Server: ServerConfig{
			URL:     "http://localhost:3000",
			Retries: 3,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "qchat",
		},
		KEM:            crypto.DefaultKEM,
		Cipher:         crypto.DefaultCipher,
		KeyFile:        filepath.Join(defaultDir(), "key.json"),
		LogLevel:       "info",
		PollInterval:   2 * time.Second,
		PollMaxBackoff: 30 * time.Second,
	}
}

func defaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".qchat"
	}
	return filepath.Join(dir, "qchat")
}

// DefaultPath is where Load looks when no file is named.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

// Load builds the configuration from path and envFile. An empty path
// means DefaultPath, which may be absent; a named file must exist. A
// missing envFile is ignored.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from QCHAT_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	str("QCHAT_USERNAME", &c.Username)
	str("QCHAT_BACKEND", &c.Backend)
	str("QCHAT_SERVER_URL", &c.Server.URL)
	str("QCHAT_SERVER_TOKEN", &c.Server.Token)
	str("QCHAT_REDIS_ADDR", &c.Redis.Addr)
	str("QCHAT_REDIS_PASSWORD", &c.Redis.Password)
	str("QCHAT_REDIS_PREFIX", &c.Redis.Prefix)
	str("QCHAT_KEM", &c.KEM)
	str("QCHAT_CIPHER", &c.Cipher)
	str("QCHAT_KEY_FILE", &c.KeyFile)
	str("QCHAT_PASSPHRASE", &c.Passphrase)
	str("QCHAT_LOG_LEVEL", &c.LogLevel)

	return errors.Join(
		num("QCHAT_SERVER_RETRIES", &c.Server.Retries),
		num("QCHAT_REDIS_DB", &c.Redis.DB),
		num("QCHAT_CONCURRENCY", &c.Concurrency),
		dur("QCHAT_POLL_INTERVAL", &c.PollInterval),
		dur("QCHAT_POLL_MAX_BACKOFF", &c.PollMaxBackoff),
	)
}

// Validate checks that every value is well formed. It does not check that
// the values needed by a particular command are present.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendHTTP:
		if c.Server.URL == "" {
			errs = append(errs, errors.New("server.url is required for the http backend"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("backend must be %q or %q, got %q", BackendHTTP, BackendRedis, c.Backend))
	}

	if _, err := crypto.KEMByName(c.KEM); err != nil {
		errs = append(errs, fmt.Errorf("kem: %w", err))
	}
	if _, err := crypto.CipherByName(c.Cipher); err != nil {
		errs = append(errs, fmt.Errorf("cipher: %w", err))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Server.Retries < 0 {
		errs = append(errs, fmt.Errorf("server.retries must not be negative, got %d", c.Server.Retries))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db must not be negative, got %d", c.Redis.DB))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.PollInterval < 0 || c.PollMaxBackoff < 0 {
		errs = append(errs, errors.New("poll intervals must not be negative"))
	}
	if c.PollMaxBackoff > 0 && c.PollMaxBackoff < c.PollInterval {
		errs = append(errs, errors.New("poll_max_backoff must not be below poll_interval"))
	}

	return errors.Join(errs...)
}

// Level returns the parsed log level. Call Validate first.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Redacted returns a copy safe to print: secrets are masked.
func (c *Config) Redacted() *Config {
	cp := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	cp.Server.Token = mask(cp.Server.Token)
	cp.Redis.Password = mask(cp.Redis.Password)
	cp.Passphrase = mask(cp.Passphrase)
	return &cp
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, c *Config) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
