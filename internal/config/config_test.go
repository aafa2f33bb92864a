package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ProjectID != DefaultProjectID {
		t.Fatalf("expected project %q, got %q", DefaultProjectID, cfg.ProjectID)
	}
	if cfg.APIURL != "http://127.0.0.1:7433" {
		t.Fatalf("expected default API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "" {
		t.Fatalf("expected empty db path, got %q", cfg.DBPath)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Archive.Concurrency != 4 || cfg.Archive.FetchTimeout != 30*time.Second {
		t.Fatalf("unexpected archive defaults %+v", cfg.Archive)
	}
	if cfg.List.DefaultLimit != 100 || cfg.List.MaxLimit != 500 {
		t.Fatalf("unexpected list defaults %+v", cfg.List)
	}
	if cfg.Notify.KafkaTopic != DefaultKafkaTopic || len(cfg.Notify.KafkaBrokers) != 0 {
		t.Fatalf("unexpected notify defaults %+v", cfg.Notify)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".transmit.toml")
	if err := os.WriteFile(path, []byte(`project_id = "tower-b"
api_url = "http://localhost:9999"
log_level = "warn"

[archive]
concurrency = 8
fetch_timeout = "5s"

[notify]
kafka_brokers = ["k1:9092", "k2:9092"]
`), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectID != "tower-b" {
		t.Fatalf("expected project 'tower-b', got %q", cfg.ProjectID)
	}
	if cfg.APIURL != "http://localhost:9999" {
		t.Fatalf("expected api_url 'http://localhost:9999', got %q", cfg.APIURL)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Archive.Concurrency != 8 || cfg.Archive.FetchTimeout != 5*time.Second {
		t.Fatalf("unexpected archive config %+v", cfg.Archive)
	}
	if len(cfg.Notify.KafkaBrokers) != 2 {
		t.Fatalf("expected 2 brokers, got %v", cfg.Notify.KafkaBrokers)
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.transmit.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.ProjectID != DefaultProjectID {
		t.Fatalf("defaults should be preserved")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"project_id",
		"api_url",
		"db_path",
		"blob_dir",
		"log_level",
		"archive.concurrency",
		"archive.fetch_timeout",
		"list.max_limit",
		"notify.kafka_brokers",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKey(t *testing.T) {
	cfg := Config{
		ProjectID: "p1",
		APIURL:    "http://test:1234",
		DBPath:    "/tmp/test.db",
		LogLevel:  "warn",
		Archive:   ArchiveConfig{Concurrency: 2, FetchTimeout: 90 * time.Second, MaxConcurrentDownloads: 3},
		List:      ListConfig{DefaultLimit: 50, MaxLimit: 200},
		Documents: DocumentConfig{MaxUploadBytes: 123},
		Notify:    NotifyConfig{KafkaBrokers: []string{"a:1", "b:2"}, KafkaTopic: "events"},
	}

	cases := map[string]string{
		"project_id":                       "p1",
		"api_url":                          "http://test:1234",
		"db_path":                          "/tmp/test.db",
		"log_level":                        "warn",
		"archive.concurrency":              "2",
		"archive.fetch_timeout":            "1m30s",
		"archive.max_concurrent_downloads": "3",
		"list.default_limit":               "50",
		"list.max_limit":                   "200",
		"documents.max_upload_bytes":       "123",
		"notify.kafka_brokers":             "a:1,b:2",
		"notify.kafka_topic":               "events",
	}
	for key, want := range cases {
		got, err := cfg.Get(key)
		if err != nil || got != want {
			t.Fatalf("%s: expected %q, got %q (err: %v)", key, want, got, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("project_id = \"old\"\napi_url = \"http://keep\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "project_id", "new"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectID != "new" {
		t.Fatalf("expected 'new', got %q", cfg.ProjectID)
	}
	if cfg.APIURL != "http://keep" {
		t.Fatalf("expected preserved api_url 'http://keep', got %q", cfg.APIURL)
	}
}

func TestSetNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.toml")
	if err := SetKey(path, "archive.concurrency", "6"); err != nil {
		t.Fatalf("set concurrency: %v", err)
	}
	if err := SetKey(path, "archive.fetch_timeout", "45s"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}
	if err := SetKey(path, "notify.kafka_brokers", "k1:9092, k2:9092"); err != nil {
		t.Fatalf("set brokers: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Archive.Concurrency != 6 {
		t.Fatalf("expected concurrency 6, got %d", cfg.Archive.Concurrency)
	}
	if cfg.Archive.FetchTimeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", cfg.Archive.FetchTimeout)
	}
	if len(cfg.Notify.KafkaBrokers) != 2 || cfg.Notify.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Notify.KafkaBrokers)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := SetKey(path, "invalid_key", "value"); err == nil {
		t.Fatal("expected error for invalid key")
	}
	if err := SetKey(path, "archive.concurrency", "0"); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
	if err := SetKey(path, "archive.fetch_timeout", "soon"); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRANSMIT_CONFIG_DIR", dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, ".transmit.toml") {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, ".transmit.toml") {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, ".transmit.toml"), []byte("project_id = \"xy\"\napi_url = \"http://127.0.0.1:9001\"\n"), 0644); err != nil {
		t.Fatalf("write override config: %v", err)
	}

	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(workspace, ".transmit.toml"), []byte("project_id = \"zz\"\n"), 0644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}
	chdir(t, workspace)

	t.Setenv("TRANSMIT_CONFIG_DIR", configDir)
	t.Setenv("TRANSMIT_DB", "")
	t.Setenv("TRANSMIT_API_URL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectID != "xy" {
		t.Fatalf("expected config-dir project 'xy', got %q", cfg.ProjectID)
	}
	if cfg.APIURL != "http://127.0.0.1:9001" {
		t.Fatalf("expected config-dir api_url override, got %q", cfg.APIURL)
	}
	if cfg.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.DBPath)
	}
	if cfg.BlobDir != filepath.Join(workspace, DefaultBlobDir) {
		t.Fatalf("expected default workspace blob dir, got %q", cfg.BlobDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRANSMIT_CONFIG_DIR", t.TempDir())
	t.Setenv("TRANSMIT_API_URL", "http://example.com:8080")
	t.Setenv("TRANSMIT_DB", "/tmp/override.db")
	t.Setenv("TRANSMIT_ARCHIVE_CONCURRENCY", "2")
	t.Setenv("TRANSMIT_ARCHIVE_FETCH_TIMEOUT", "2s")
	t.Setenv("TRANSMIT_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://example.com:8080" {
		t.Fatalf("expected env override for API URL, got %q", cfg.APIURL)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override for DB path, got %q", cfg.DBPath)
	}
	if cfg.Archive.Concurrency != 2 || cfg.Archive.FetchTimeout != 2*time.Second {
		t.Fatalf("expected archive env overrides, got %+v", cfg.Archive)
	}
	if len(cfg.Notify.KafkaBrokers) != 2 {
		t.Fatalf("expected brokers from env, got %v", cfg.Notify.KafkaBrokers)
	}
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("TRANSMIT_CONFIG_DIR", t.TempDir())
	t.Setenv("TRANSMIT_ARCHIVE_CONCURRENCY", "many")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed env value")
	}
}

func TestLoadFallsBackToDefaultsWhenConfiguredEmpty(t *testing.T) {
	homeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, ".transmit.toml"), []byte("log_level = \"\"\nproject_id = \"\"\n[list]\ndefault_limit = 900\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	chdir(t, t.TempDir())

	t.Setenv("HOME", homeDir)
	t.Setenv("TRANSMIT_CONFIG_DIR", "")
	t.Setenv("TRANSMIT_TRUST_PROJECT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.ProjectID != DefaultProjectID {
		t.Fatalf("expected default project, got %q", cfg.ProjectID)
	}
	if cfg.List.DefaultLimit != cfg.List.MaxLimit {
		t.Fatalf("expected default limit clamped to max, got %d", cfg.List.DefaultLimit)
	}
}

func TestLoadProjectConfigTrust(t *testing.T) {
	homeDir := t.TempDir()
	workspace := t.TempDir()
	if err := os.WriteFile(filepath.Join(homeDir, ".transmit.toml"), []byte("project_id = \"home\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, ".transmit.toml"), []byte("project_id = \"local\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	chdir(t, workspace)
	t.Setenv("HOME", homeDir)
	t.Setenv("TRANSMIT_CONFIG_DIR", "")
	t.Setenv("TRANSMIT_PROJECT", "")

	t.Setenv("TRANSMIT_TRUST_PROJECT_CONFIG", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ProjectID != "home" || cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected untrusted project config to be ignored, got %q (%q)", cfg.ProjectID, cfg.TrustedProjectConfigPath)
	}

	t.Setenv("TRANSMIT_TRUST_PROJECT_CONFIG", "true")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load trusted: %v", err)
	}
	if cfg.ProjectID != "local" {
		t.Fatalf("expected trusted project config, got %q", cfg.ProjectID)
	}
	if cfg.TrustedProjectConfigPath == "" {
		t.Fatal("expected trusted project config path to be recorded")
	}
}
