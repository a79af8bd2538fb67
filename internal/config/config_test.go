package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ASF.Server != "http://127.0.0.1" {
		t.Errorf("expected default server http://127.0.0.1, got %s", cfg.ASF.Server)
	}
	if cfg.ASF.Port != 1242 {
		t.Errorf("expected default port 1242, got %d", cfg.ASF.Port)
	}
	if cfg.Transfer.Concurrency != 6 {
		t.Errorf("expected default concurrency 6, got %d", cfg.Transfer.Concurrency)
	}
	if cfg.Transfer.DelayMS != 166 {
		t.Errorf("expected default delay 166ms, got %d", cfg.Transfer.DelayMS)
	}
	if cfg.Transfer.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Transfer.MaxAttempts)
	}
	if cfg.Proxy.Mode != "no-proxy" {
		t.Errorf("expected default proxy mode no-proxy, got %s", cfg.Proxy.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv(EnvASFPassword, "")
	t.Setenv(EnvASFServer, "")
	path := filepath.Join(t.TempDir(), "nested", "config")

	cfg := New()
	cfg.ASF.Server = "http://192.168.1.20"
	cfg.ASF.Port = 8080
	cfg.ASF.Password = "hunter2"
	cfg.ASF.Bot = "main"
	cfg.ASF.SteamID = "76561198000000001"
	cfg.Transfer.Concurrency = 4
	cfg.Interface.AutoStopMinutes = 15
	cfg.Logging.Level = "debug"
	cfg.Proxy.Mode = "basic"
	cfg.Proxy.Host = "proxy.local"
	cfg.Proxy.Port = 3128

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("expected permissions 0600, got %o", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.ASF != cfg.ASF {
		t.Errorf("ASF mismatch: got %+v, want %+v", loaded.ASF, cfg.ASF)
	}
	if loaded.Transfer != cfg.Transfer {
		t.Errorf("Transfer mismatch: got %+v, want %+v", loaded.Transfer, cfg.Transfer)
	}
	if loaded.Interface.AutoStopMinutes != 15 {
		t.Errorf("expected autostop 15, got %d", loaded.Interface.AutoStopMinutes)
	}
	if loaded.Proxy != cfg.Proxy {
		t.Errorf("Proxy mismatch: got %+v, want %+v", loaded.Proxy, cfg.Proxy)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", loaded.Logging.Level)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvASFPassword, "")
	t.Setenv(EnvASFServer, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ASF.Port != 1242 {
		t.Errorf("expected defaults, got port %d", cfg.ASF.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvASFPassword, "from-env")
	t.Setenv(EnvASFServer, "https://asf.example")

	path := filepath.Join(t.TempDir(), "config")
	cfg := New()
	cfg.ASF.Password = "from-file"
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.ASF.Password != "from-env" {
		t.Errorf("expected env password, got %s", loaded.ASF.Password)
	}
	if loaded.ASF.Server != "https://asf.example" {
		t.Errorf("expected env server, got %s", loaded.ASF.Server)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing server", func(c *Config) { c.ASF.Server = " " }, ErrMissingServer},
		{"bad scheme", func(c *Config) { c.ASF.Server = "ftp://host" }, ErrInvalidServer},
		{"bad port", func(c *Config) { c.ASF.Port = 70000 }, ErrInvalidPort},
		{"zero concurrency", func(c *Config) { c.Transfer.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative delay", func(c *Config) { c.Transfer.DelayMS = -1 }, ErrInvalidDelay},
		{"attempts", func(c *Config) { c.Transfer.MaxAttempts = 0 }, ErrInvalidAttempts},
		{"autostop", func(c *Config) { c.Interface.AutoStopMinutes = -5 }, ErrInvalidAutoStop},
		{"proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"proxy host", func(c *Config) { c.Proxy.Mode = "ntlm" }, ErrMissingProxyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSet(t *testing.T) {
	cfg := New()
	if err := cfg.Set("transfer.concurrency", "3"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if cfg.Transfer.Concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", cfg.Transfer.Concurrency)
	}
	if err := cfg.Set("asf.bot", "alt"); err != nil || cfg.ASF.Bot != "alt" {
		t.Errorf("expected bot alt, got %q (%v)", cfg.ASF.Bot, err)
	}
	if err := cfg.Set("asf.nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := cfg.Set("nope", "x"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestHelpers(t *testing.T) {
	cfg := New()
	if cfg.BaseURL() != "http://127.0.0.1:1242" {
		t.Errorf("unexpected base URL %s", cfg.BaseURL())
	}
	if !cfg.IsLocal() {
		t.Error("expected default server to be local")
	}
	cfg.ASF.Server = "http://10.0.0.5/"
	if cfg.IsLocal() || cfg.BaseURL() != "http://10.0.0.5:1242" {
		t.Errorf("unexpected remote handling: %s", cfg.BaseURL())
	}
	if cfg.TransferDelay() != 166*time.Millisecond {
		t.Errorf("unexpected delay %v", cfg.TransferDelay())
	}
}
