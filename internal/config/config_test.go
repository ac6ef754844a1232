package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv(EnvConfigFile, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.Driver != DriverSQLite || cfg.Sync.Schedule != "@every 5m" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.OCR.Provider != OCRNone {
		t.Fatalf("expected no OCR provider, got %q", cfg.OCR.Provider)
	}
}

func TestLoadLayersYAMLDotEnvAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yamlPath := filepath.Join(dir, "souschef.yaml")
	yamlBody := `
server:
  addr: ":9000"
  cors_origins: "https://a.example, https://b.example"
database:
  driver: postgresql
  dsn: postgres://localhost/souschef
auth:
  token_ttl: 2h
ocr:
  provider: http
  endpoint: http://ocr.local/scan
  fields:
    total: $.result.total
`
	if err := os.WriteFile(yamlPath, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SOUSCHEF_LOG_LEVEL=debug\nSOUSCHEF_ADDR=:7000\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("SOUSCHEF_ADDR", ":6000")
	t.Setenv("SOUSCHEF_TOKEN_TTL", "90m")
	t.Setenv("SOUSCHEF_LOG_LEVEL", "")
	os.Unsetenv("SOUSCHEF_LOG_LEVEL")

	cfg, err := Load(yamlPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":6000" {
		t.Fatalf("environment should win over .env and yaml, got %q", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf(".env value not applied: %q", cfg.Logging.Level)
	}
	if cfg.Auth.TokenTTL != 90*time.Minute {
		t.Fatalf("unexpected ttl %v", cfg.Auth.TokenTTL)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Fatalf("driver alias not normalised: %q", cfg.Database.Driver)
	}
	if got := cfg.Server.Origins(); len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
	if cfg.OCR.Fields.Total != "$.result.total" || cfg.OCR.Fields.Text != "$.text" {
		t.Fatalf("unexpected ocr fields %+v", cfg.OCR.Fields)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	if _, err := Load("does-not-exist.yaml"); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":    func(c *Config) { c.Database.Driver = "oracle" },
		"dsn":       func(c *Config) { c.Database.DSN = "" },
		"remote":    func(c *Config) { c.Remote.Enabled = true },
		"sync":      func(c *Config) { c.Sync.Enabled = true },
		"sync mode": func(c *Config) { c.Sync.Mode = "sideways" },
		"genai key": func(c *Config) { c.OCR.Provider = OCRGenAI },
		"ocr url":   func(c *Config) { c.OCR.Provider = OCRHTTP },
		"ocr kind":  func(c *Config) { c.OCR.Provider = "tesseract" },
		"token ttl": func(c *Config) { c.Auth.TokenTTL = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	cfg := Default()
	cfg.Database.Driver = DriverMemory
	cfg.Database.DSN = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory driver needs no dsn: %v", err)
	}
}
