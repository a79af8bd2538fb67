// Package config provides configuration management for cs2-int.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/cs2interlink/cs2-int/internal/constants"
)

// Config is the persisted tool configuration.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\cs2-int\config
//   - Unix: ~/.config/cs2-int/config
//
// INI format:
//
//	[asf]
//	server = http://127.0.0.1
//	port = 1242
//	password = <IPC password>
//	bot = <bot name>
//	steam_id = <64-bit steam id>
//
//	[transfer]
//	concurrency = 6
//	delay_ms = 166
//	max_attempts = 3
//	settle_ms = 1000
//
//	[interface]
//	autostop_minutes = 0
//
//	[cache]
//	path = ~/.config/cs2-int/cache.db
//
//	[logging]
//	file =
//	level = info
//
//	[store]
//	currency = USD
//	country = US
//	price_sheet = <path or URL of the store price sheet>
//	tournament = <path or URL of the current tournament layout>
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	password =
//	no_proxy =
type Config struct {
	ASF       ASFConfig
	Transfer  TransferConfig
	Interface InterfaceConfig
	Cache     CacheConfig
	Logging   LoggingConfig
	Store     StoreConfig
	Proxy     ProxyConfig
}

// ASFConfig locates the control-plane service.
type ASFConfig struct {
	Server   string `ini:"server"`
	Port     int    `ini:"port"`
	Password string `ini:"password"`
	// Bot names the bot to act as. When empty it is resolved from SteamID,
	// or the only configured bot is used.
	Bot     string `ini:"bot"`
	SteamID string `ini:"steam_id"`
}

// TransferConfig tunes batch store/retrieve runs.
type TransferConfig struct {
	// Concurrency bounds in-flight transfers. Range 1..32, default 6.
	Concurrency int `ini:"concurrency"`
	// DelayMS is slept after each dispatch.
	DelayMS     int `ini:"delay_ms"`
	MaxAttempts int `ini:"max_attempts"`
	SettleMS    int `ini:"settle_ms"`
}

// InterfaceConfig controls the game interface started on the bot.
type InterfaceConfig struct {
	// AutoStopMinutes stops the interface after this much idle time; 0 never.
	AutoStopMinutes int `ini:"autostop_minutes"`
}

// CacheConfig locates the encrypted response cache.
type CacheConfig struct {
	Path string `ini:"path"`
}

// LoggingConfig configures the optional rotating log file.
type LoggingConfig struct {
	File  string `ini:"file"`
	Level string `ini:"level"`
}

// StoreConfig locates the in-game store data and the wallet currency
// prices are shown in.
type StoreConfig struct {
	Currency   string `ini:"currency"`
	Country    string `ini:"country"`
	PriceSheet string `ini:"price_sheet"`
	Tournament string `ini:"tournament"`
}

// ProxyConfig routes requests to a remote service host through a proxy.
type ProxyConfig struct {
	Mode     string `ini:"mode"` // "no-proxy", "system", "basic", "ntlm"
	Host     string `ini:"host"`
	Port     int    `ini:"port"`
	User     string `ini:"user"`
	Password string `ini:"password"`
	NoProxy  string `ini:"no_proxy"`
}

// Environment overrides
const (
	EnvASFPassword = "CS2INT_ASF_PASSWORD"
	EnvASFServer   = "CS2INT_ASF_SERVER"
)

// Validation errors
var (
	ErrMissingServer      = errors.New("asf server is required")
	ErrInvalidServer      = errors.New("asf server must be an http or https URL")
	ErrInvalidPort        = errors.New("asf port must be between 1 and 65535")
	ErrInvalidConcurrency = errors.New("transfer concurrency must be between 1 and 32")
	ErrInvalidDelay       = errors.New("transfer delay_ms must not be negative")
	ErrInvalidAttempts    = errors.New("transfer max_attempts must be between 1 and 10")
	ErrInvalidAutoStop    = errors.New("interface autostop_minutes must not be negative")
	ErrInvalidProxyMode   = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost   = errors.New("proxy host is required for basic and ntlm modes")
)

// Dir returns the configuration directory.
// - Windows: %USERPROFILE%\.config\cs2-int
// - Unix: ~/.config/cs2-int
func Dir() (string, error) {
	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		return filepath.Join(userProfile, ".config", "cs2-int"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cs2-int"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// New returns a Config with default values.
func New() *Config {
	cachePath := "cache.db"
	if dir, err := Dir(); err == nil {
		cachePath = filepath.Join(dir, "cache.db")
	}
	return &Config{
		ASF: ASFConfig{
			Server: constants.DefaultASFServer,
			Port:   constants.DefaultASFPort,
		},
		Transfer: TransferConfig{
			Concurrency: constants.TransferConcurrency,
			DelayMS:     int(constants.TransferDispatchDelay / time.Millisecond),
			MaxAttempts: constants.TransferMaxAttempts,
			SettleMS:    int(constants.TransferSettleDelay / time.Millisecond),
		},
		Cache:   CacheConfig{Path: cachePath},
		Logging: LoggingConfig{Level: "info"},
		Store:   StoreConfig{Currency: "USD", Country: "US"},
		Proxy:   ProxyConfig{Mode: "no-proxy"},
	}
}

// Load reads configuration from an INI file. A missing file yields the
// defaults and no error. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	asf := f.Section("asf")
	cfg.ASF.Server = asf.Key("server").MustString(cfg.ASF.Server)
	cfg.ASF.Port = asf.Key("port").MustInt(cfg.ASF.Port)
	cfg.ASF.Password = asf.Key("password").String()
	cfg.ASF.Bot = asf.Key("bot").String()
	cfg.ASF.SteamID = asf.Key("steam_id").String()

	tr := f.Section("transfer")
	cfg.Transfer.Concurrency = tr.Key("concurrency").MustInt(cfg.Transfer.Concurrency)
	cfg.Transfer.DelayMS = tr.Key("delay_ms").MustInt(cfg.Transfer.DelayMS)
	cfg.Transfer.MaxAttempts = tr.Key("max_attempts").MustInt(cfg.Transfer.MaxAttempts)
	cfg.Transfer.SettleMS = tr.Key("settle_ms").MustInt(cfg.Transfer.SettleMS)

	cfg.Interface.AutoStopMinutes = f.Section("interface").Key("autostop_minutes").MustInt(0)

	cfg.Cache.Path = expandHome(f.Section("cache").Key("path").MustString(cfg.Cache.Path))

	lg := f.Section("logging")
	cfg.Logging.File = expandHome(lg.Key("file").String())
	cfg.Logging.Level = lg.Key("level").MustString(cfg.Logging.Level)

	st := f.Section("store")
	cfg.Store.Currency = strings.ToUpper(st.Key("currency").MustString(cfg.Store.Currency))
	cfg.Store.Country = strings.ToUpper(st.Key("country").MustString(cfg.Store.Country))
	cfg.Store.PriceSheet = expandHome(st.Key("price_sheet").String())
	cfg.Store.Tournament = expandHome(st.Key("tournament").String())

	px := f.Section("proxy")
	cfg.Proxy.Mode = px.Key("mode").MustString(cfg.Proxy.Mode)
	cfg.Proxy.Host = px.Key("host").String()
	cfg.Proxy.Port = px.Key("port").MustInt(0)
	cfg.Proxy.User = px.Key("user").String()
	cfg.Proxy.Password = px.Key("password").String()
	cfg.Proxy.NoProxy = px.Key("no_proxy").String()

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvASFPassword); v != "" {
		cfg.ASF.Password = v
	}
	if v := os.Getenv(EnvASFServer); v != "" {
		cfg.ASF.Server = v
	}
}

// Save writes configuration to an INI file, creating parent directories.
// The IPC password is stored in the file, so it is written 0600.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f := ini.Empty()
	sections := []struct {
		name string
		v    interface{}
	}{
		{"asf", &cfg.ASF},
		{"transfer", &cfg.Transfer},
		{"interface", &cfg.Interface},
		{"cache", &cfg.Cache},
		{"logging", &cfg.Logging},
		{"store", &cfg.Store},
		{"proxy", &cfg.Proxy},
	}
	for _, s := range sections {
		sec, err := f.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		if err := sec.ReflectFrom(s.v); err != nil {
			return fmt.Errorf("failed to write %s section: %w", s.name, err)
		}
	}

	tmpPath := path + ".tmp"
	if err := f.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks the configuration. It returns the first problem found.
func (cfg *Config) Validate() error {
	server := strings.TrimSpace(cfg.ASF.Server)
	if server == "" {
		return ErrMissingServer
	}
	u, err := url.Parse(server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidServer
	}
	if cfg.ASF.Port < 1 || cfg.ASF.Port > 65535 {
		return ErrInvalidPort
	}
	if cfg.Transfer.Concurrency < 1 || cfg.Transfer.Concurrency > constants.MaxConcurrency {
		return ErrInvalidConcurrency
	}
	if cfg.Transfer.DelayMS < 0 {
		return ErrInvalidDelay
	}
	if cfg.Transfer.MaxAttempts < 1 || cfg.Transfer.MaxAttempts > 10 {
		return ErrInvalidAttempts
	}
	if cfg.Interface.AutoStopMinutes < 0 {
		return ErrInvalidAutoStop
	}
	switch strings.ToLower(cfg.Proxy.Mode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if cfg.Proxy.Host == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}
	return nil
}

// BaseURL returns "<server>:<port>".
func (cfg *Config) BaseURL() string {
	return fmt.Sprintf("%s:%d", strings.TrimRight(cfg.ASF.Server, "/"), cfg.ASF.Port)
}

// IsLocal reports whether the service runs on this machine.
func (cfg *Config) IsLocal() bool {
	u, err := url.Parse(cfg.ASF.Server)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// TransferDelay returns the per-dispatch delay.
func (cfg *Config) TransferDelay() time.Duration {
	return time.Duration(cfg.Transfer.DelayMS) * time.Millisecond
}

// SettleDelay returns the delay before a finished batch is dismissed.
func (cfg *Config) SettleDelay() time.Duration {
	return time.Duration(cfg.Transfer.SettleMS) * time.Millisecond
}

// Set updates one "section.key" setting from its string form.
func (cfg *Config) Set(key, value string) error {
	f := ini.Empty()
	section, name, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("invalid key %q, expected section.key", key)
	}

	var target interface{}
	switch section {
	case "asf":
		target = &cfg.ASF
	case "transfer":
		target = &cfg.Transfer
	case "interface":
		target = &cfg.Interface
	case "cache":
		target = &cfg.Cache
	case "logging":
		target = &cfg.Logging
	case "store":
		target = &cfg.Store
	case "proxy":
		target = &cfg.Proxy
	default:
		return fmt.Errorf("unknown section %q", section)
	}

	sec := f.Section(section)
	if err := sec.ReflectFrom(target); err != nil {
		return err
	}
	if !sec.HasKey(name) {
		return fmt.Errorf("unknown key %q", key)
	}
	sec.Key(name).SetValue(value)
	if err := sec.MapTo(target); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
