package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-widget/internal/slot"
	"github.com/kjstillabower/weather-widget/internal/validation"
)

const defaultAPIURL = "https://api.openweathermap.org/data/2.5/weather"

// minAPIKeyLen matches the client's own length check so a bad key fails at startup.
const minAPIKeyLen = 10

// Config holds widget configuration loaded from YAML and env.
type Config struct {
	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	SlotBackend    string // file, sqlite, memcached or in_memory
	SlotFilePath   string
	SlotSQLitePath string

	MemcachedAddrs        string
	MemcachedNamespace    string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	ServerPort      string
	RequestTimeout  time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout time.Duration

	LogFile      string
	StartOffline bool

	CityMaxLen      int
	StrictCityChars bool
}

type fileConfig struct {
	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Slot struct {
		Backend    string `yaml:"backend"`
		FilePath   string `yaml:"file_path"`
		SQLitePath string `yaml:"sqlite_path"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Namespace    string `yaml:"namespace"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"slot"`

	Server struct {
		Port           string `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Log struct {
		File string `yaml:"file"`
	} `yaml:"log"`

	Connectivity struct {
		StartOffline bool `yaml:"start_offline"`
	} `yaml:"connectivity"`

	Validation struct {
		MaxLen      int  `yaml:"max_len"`
		StrictChars bool `yaml:"strict_chars"`
	} `yaml:"validation"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml,
// relative to the working directory. When ENV_NAME is unset a missing dev.yaml means all
// defaults; a named environment must have its file. API key comes from WEATHER_API_KEY or
// the secrets file.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	explicitEnv := env != ""
	if !explicitEnv {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err) && !explicitEnv:
		// defaults only
	case os.IsNotExist(err):
		return nil, fmt.Errorf("config file not found: %s", configPath)
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.WeatherAPIKey = strings.TrimSpace(os.Getenv("WEATHER_API_KEY"))
	if cfg.WeatherAPIKey == "" {
		key, err := readSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		cfg.WeatherAPIKey = key
	}

	cfg.WeatherAPIURL = firstNonEmpty(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, defaultAPIURL)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)

	cfg.SlotBackend = strings.ToLower(firstNonEmpty(os.Getenv("SLOT_BACKEND"), fc.Slot.Backend, slot.BackendFile))
	dataDir := defaultDataDir()
	cfg.SlotFilePath = firstNonEmpty(fc.Slot.FilePath, filepath.Join(dataDir, "slot.json"))
	cfg.SlotSQLitePath = firstNonEmpty(fc.Slot.SQLitePath, filepath.Join(dataDir, "slot.db"))

	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Slot.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedNamespace = firstNonEmpty(fc.Slot.Memcached.Namespace, "weather-widget")
	cfg.MemcachedTimeout = parseDuration(fc.Slot.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Slot.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.ServerPort = firstNonEmpty(fc.Server.Port, "8080")
	cfg.RequestTimeout = parseDuration(fc.Server.RequestTimeout, 0)
	cfg.RateLimitRPS = fc.Server.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Server.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	cfg.LogFile = strings.TrimSpace(fc.Log.File)
	cfg.StartOffline = fc.Connectivity.StartOffline

	cfg.CityMaxLen = fc.Validation.MaxLen
	cfg.StrictCityChars = fc.Validation.StrictChars

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlotOptions returns the options for slot.Open.
func (c *Config) SlotOptions() slot.Options {
	return slot.Options{
		Backend:               c.SlotBackend,
		FilePath:              c.SlotFilePath,
		SQLitePath:            c.SlotSQLitePath,
		MemcachedAddrs:        c.MemcachedAddrs,
		MemcachedNamespace:    c.MemcachedNamespace,
		MemcachedTimeout:      c.MemcachedTimeout,
		MemcachedMaxIdleConns: c.MemcachedMaxIdleConns,
	}
}

// ValidationRules returns the city input rules.
func (c *Config) ValidationRules() validation.Rules {
	return validation.Rules{MaxLen: c.CityMaxLen, StrictChars: c.StrictCityChars}
}

func readSecrets(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// defaultDataDir is where local slot backends live when no path is configured.
func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "weather-widget")
	}
	return filepath.Join(os.TempDir(), "weather-widget")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. It rejects a missing or short API key,
// a non-positive API timeout, an unusable API URL and an unknown slot backend.
// RequestTimeout is raised to exceed the API timeout when needed.
func validate(cfg *Config) error {
	if cfg.WeatherAPIKey == "" {
		return fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}
	if len(cfg.WeatherAPIKey) < minAPIKeyLen {
		return fmt.Errorf("WEATHER_API_KEY too short (minimum %d characters)", minAPIKeyLen)
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	u, err := url.Parse(cfg.WeatherAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("weather_api.url must be an absolute http(s) URL, got %q", cfg.WeatherAPIURL)
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.SlotBackend {
	case slot.BackendFile, slot.BackendSQLite, slot.BackendMemory:
	case slot.BackendMemcached:
		if cfg.MemcachedAddrs == "" {
			return fmt.Errorf("slot.memcached.addrs required for memcached backend")
		}
	default:
		return fmt.Errorf("slot.backend must be file, sqlite, memcached or in_memory, got %q", cfg.SlotBackend)
	}
	if cfg.CityMaxLen < 0 {
		return fmt.Errorf("validation.max_len must not be negative")
	}
	return nil
}
