package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
	} `yaml:"server"`

	Limits struct {
		MaxUploadBytes int `yaml:"max_upload_bytes"`
		MaxPDFBytes    int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost    string `yaml:"redis_host"`
		RateLimitDB  int    `yaml:"redis_rate_db"`
		StatsDB      int    `yaml:"redis_stats_db"`
		StatsEnabled bool   `yaml:"stats_enabled"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`

	Auth struct {
		Postgres PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`

	Converter ConverterConfig `yaml:"converter"`
}

// PostgresConfig describes the token database connection.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a token database has been configured at all.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// ConverterConfig controls how documents are handed to LibreOffice.
type ConverterConfig struct {
	// Strategy is one of "auto", "direct" or "bridge".
	Strategy     string        `yaml:"strategy"`
	SofficePath  string        `yaml:"soffice_path"`
	Format       string        `yaml:"format"`
	Timeout      time.Duration `yaml:"timeout"`
	UploadDir    string        `yaml:"upload_dir"`
	TempDir      string        `yaml:"temp_dir"`
	SearchPaths  []string      `yaml:"search_paths"`
	ReadRetries  int           `yaml:"read_retries"`
	ReadInterval time.Duration `yaml:"read_interval"`
}

// SofficeEnvVar names the variable that points at an explicit soffice binary.
const SofficeEnvVar = "LIBRE_OFFICE_EXE"

var (
	// AppConfig holds the configuration loaded by LoadConfig.
	AppConfig Config
	configMu  sync.RWMutex
)

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = ""
	cfg.Server.Port = ":3000"
	cfg.Limits.MaxUploadBytes = 50 * 1024 * 1024
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7
	cfg.RateLimiter.Interval = time.Minute
	cfg.Converter.Strategy = "auto"
	cfg.Converter.Format = "pdf"
	cfg.Converter.Timeout = 2 * time.Minute
	cfg.Converter.ReadRetries = 3
	cfg.Converter.ReadInterval = 200 * time.Millisecond
	return cfg
}

// LoadConfig loads .env (if any), then the YAML file named by CONFIG_PATH
// (default config.yaml), and stores the result in AppConfig.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		Warn("Could not load .env file", "error", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg := LoadFrom(path)

	configMu.Lock()
	AppConfig = cfg
	configMu.Unlock()
	return cfg
}

// LoadFrom reads and validates the YAML file at path. A missing file yields
// the defaults; a malformed or invalid one panics.
func LoadFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		Warn("Config file not found, using defaults", "path", path)
	case err != nil:
		panic(fmt.Sprintf("read config %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("parse config %s: %v", path, err))
		}
	}

	if v := strings.TrimSpace(os.Getenv(SofficeEnvVar)); v != "" {
		cfg.Converter.SofficePath = v
	}

	if err := validate(&cfg); err != nil {
		panic(fmt.Sprintf("invalid config %s: %v", path, err))
	}
	return cfg
}

// GetConfig returns the configuration stored by LoadConfig.
func GetConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return AppConfig
}

func validate(cfg *Config) error {
	switch cfg.Converter.Strategy {
	case "":
		cfg.Converter.Strategy = "auto"
	case "auto", "direct", "bridge":
	default:
		return fmt.Errorf("converter.strategy must be auto, direct or bridge, got %q", cfg.Converter.Strategy)
	}
	if cfg.Converter.Format == "" {
		cfg.Converter.Format = "pdf"
	}
	if cfg.Converter.Timeout < 0 {
		return errors.New("converter.timeout must not be negative")
	}
	if cfg.Converter.ReadRetries < 0 {
		return errors.New("converter.read_retries must not be negative")
	}
	if cfg.Limits.MaxUploadBytes <= 0 {
		return errors.New("limits.max_upload_bytes must be positive")
	}
	if cfg.Limits.MaxPDFBytes < 0 {
		return errors.New("limits.max_pdf_bytes must not be negative")
	}
	if cfg.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive")
	}
	if cfg.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	return nil
}
