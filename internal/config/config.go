package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const (
	DefaultProjectID  = "default"
	DefaultAPIURL     = "http://127.0.0.1:7433"
	DefaultDBFileName = ".transmit.db"
	DefaultBlobDir    = ".transmit-blobs"
	DefaultLogLevel   = "info"

	DefaultArchiveConcurrency            = 4
	DefaultArchiveFetchTimeout           = 30 * time.Second
	DefaultArchiveMaxConcurrentDownloads = 8

	DefaultListLimit    = 100
	DefaultListMaxLimit = 500

	DefaultDocumentMaxUploadBytes int64 = 256 * 1024 * 1024

	DefaultKafkaTopic = "transmittal-events"

	configFileName           = ".transmit.toml"
	configDirEnvKey          = "TRANSMIT_CONFIG_DIR"
	trustProjectConfigEnvKey = "TRANSMIT_TRUST_PROJECT_CONFIG"
)

// ArchiveConfig tunes archive assembly.
type ArchiveConfig struct {
	Concurrency            int           `toml:"concurrency" env:"TRANSMIT_ARCHIVE_CONCURRENCY"`
	FetchTimeout           time.Duration `toml:"fetch_timeout" env:"TRANSMIT_ARCHIVE_FETCH_TIMEOUT"`
	MaxConcurrentDownloads int           `toml:"max_concurrent_downloads" env:"TRANSMIT_ARCHIVE_MAX_DOWNLOADS"`
	SpoolDir               string        `toml:"spool_dir" env:"TRANSMIT_ARCHIVE_SPOOL_DIR"`
}

// ListConfig bounds list paging.
type ListConfig struct {
	DefaultLimit int `toml:"default_limit"`
	MaxLimit     int `toml:"max_limit"`
}

// DocumentConfig bounds document uploads.
type DocumentConfig struct {
	MaxUploadBytes int64 `toml:"max_upload_bytes" env:"TRANSMIT_MAX_UPLOAD_BYTES"`
}

// NotifyConfig selects where lifecycle events are published. Empty brokers
// means events are only logged.
type NotifyConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers" env:"TRANSMIT_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `toml:"kafka_topic" env:"TRANSMIT_KAFKA_TOPIC"`
}

// Config defines runtime configuration for transmit.
type Config struct {
	ProjectID                string         `toml:"project_id" env:"TRANSMIT_PROJECT"`
	APIURL                   string         `toml:"api_url" env:"TRANSMIT_API_URL"`
	DBPath                   string         `toml:"db_path" env:"TRANSMIT_DB"`
	BlobDir                  string         `toml:"blob_dir" env:"TRANSMIT_BLOB_DIR"`
	LogLevel                 string         `toml:"log_level" env:"TRANSMIT_LOG_LEVEL"`
	Archive                  ArchiveConfig  `toml:"archive"`
	List                     ListConfig     `toml:"list"`
	Documents                DocumentConfig `toml:"documents"`
	Notify                   NotifyConfig   `toml:"notify"`
	TrustedProjectConfigPath string         `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		ProjectID: DefaultProjectID,
		APIURL:    DefaultAPIURL,
		LogLevel:  DefaultLogLevel,
		Archive: ArchiveConfig{
			Concurrency:            DefaultArchiveConcurrency,
			FetchTimeout:           DefaultArchiveFetchTimeout,
			MaxConcurrentDownloads: DefaultArchiveMaxConcurrentDownloads,
		},
		List: ListConfig{
			DefaultLimit: DefaultListLimit,
			MaxLimit:     DefaultListMaxLimit,
		},
		Documents: DocumentConfig{
			MaxUploadBytes: DefaultDocumentMaxUploadBytes,
		},
		Notify: NotifyConfig{
			KafkaTopic: DefaultKafkaTopic,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"project_id",
	"api_url",
	"db_path",
	"blob_dir",
	"log_level",
	"archive.concurrency",
	"archive.fetch_timeout",
	"archive.max_concurrent_downloads",
	"archive.spool_dir",
	"list.default_limit",
	"list.max_limit",
	"documents.max_upload_bytes",
	"notify.kafka_brokers",
	"notify.kafka_topic",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "project_id":
		return c.ProjectID, nil
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "blob_dir":
		return c.BlobDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "archive.concurrency":
		return strconv.Itoa(c.Archive.Concurrency), nil
	case "archive.fetch_timeout":
		return c.Archive.FetchTimeout.String(), nil
	case "archive.max_concurrent_downloads":
		return strconv.Itoa(c.Archive.MaxConcurrentDownloads), nil
	case "archive.spool_dir":
		return c.Archive.SpoolDir, nil
	case "list.default_limit":
		return strconv.Itoa(c.List.DefaultLimit), nil
	case "list.max_limit":
		return strconv.Itoa(c.List.MaxLimit), nil
	case "documents.max_upload_bytes":
		return strconv.FormatInt(c.Documents.MaxUploadBytes, 10), nil
	case "notify.kafka_brokers":
		return strings.Join(c.Notify.KafkaBrokers, ","), nil
	case "notify.kafka_topic":
		return c.Notify.KafkaTopic, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				loaded, err := loadFileIfExists(projectPath, &cfg)
				if err != nil {
					return nil, err
				}
				if loaded {
					cfg.TrustedProjectConfigPath = projectPath
				}
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cwd, err := os.Getwd(); err == nil {
		if cfg.DBPath == "" {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
		if cfg.BlobDir == "" {
			cfg.BlobDir = filepath.Join(cwd, DefaultBlobDir)
		}
	}

	cfg.normalize()
	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "archive.concurrency", "archive.max_concurrent_downloads", "list.default_limit", "list.max_limit":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "documents.max_upload_bytes":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "archive.fetch_timeout":
		parsed, err := time.ParseDuration(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive duration such as 30s", key)
		}
		return parsed.String(), nil
	case "notify.kafka_brokers":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (c *Config) normalize() {
	if c.Archive.Concurrency <= 0 {
		c.Archive.Concurrency = DefaultArchiveConcurrency
	}
	if c.Archive.FetchTimeout <= 0 {
		c.Archive.FetchTimeout = DefaultArchiveFetchTimeout
	}
	if c.Archive.MaxConcurrentDownloads <= 0 {
		c.Archive.MaxConcurrentDownloads = DefaultArchiveMaxConcurrentDownloads
	}
	if c.List.DefaultLimit <= 0 {
		c.List.DefaultLimit = DefaultListLimit
	}
	if c.List.MaxLimit <= 0 {
		c.List.MaxLimit = DefaultListMaxLimit
	}
	if c.List.DefaultLimit > c.List.MaxLimit {
		c.List.DefaultLimit = c.List.MaxLimit
	}
	if c.Documents.MaxUploadBytes <= 0 {
		c.Documents.MaxUploadBytes = DefaultDocumentMaxUploadBytes
	}
	if strings.TrimSpace(c.Notify.KafkaTopic) == "" {
		c.Notify.KafkaTopic = DefaultKafkaTopic
	}
	c.Notify.KafkaBrokers = splitCSV(strings.Join(c.Notify.KafkaBrokers, ","))
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	if c.ProjectID == "" {
		c.ProjectID = DefaultProjectID
	}
}
