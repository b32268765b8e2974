// Package config loads runtime settings from .env, environment variables and
// an optional YAML file. Precedence: defaults < YAML file < environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultScheduleSpec   = "@every 1m"
	DefaultWorkers        = 4
	DefaultPublishTimeout = 2 * time.Minute
	DefaultStubDelay      = time.Second
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultLinkedInAPI    = "https://api.linkedin.com"
	DefaultLinkedInRate   = 5.0
)

type Config struct {
	Host          string
	Port          string
	DBPath        string
	AdminPassword string

	// AppURL is the public base URL used to build the OAuth redirect.
	// Empty means derive it from the incoming request.
	AppURL string

	Log        LogConfig
	Scheduler  SchedulerConfig
	Publishers PublishersConfig
	LinkedIn   LinkedInOAuthConfig
}

type LogConfig struct {
	Level  string
	Format string
}

type SchedulerConfig struct {
	// Spec is a cron expression (5 or 6 fields) or descriptor such as "@every 1m".
	Spec           string
	Workers        int
	PublishTimeout time.Duration
}

type PublishersConfig struct {
	StubDelay          time.Duration
	HTTPTimeout        time.Duration
	LinkedInAPIBase    string
	LinkedInRatePerSec float64
}

type LinkedInOAuthConfig struct {
	ClientID     string
	ClientSecret string
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

type fileConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	AppURL   string `yaml:"app_url"`
	LogLevel string `yaml:"log_level"`
	LogFmt   string `yaml:"log_format"`

	Scheduler struct {
		Spec           string `yaml:"spec"`
		Workers        int    `yaml:"workers"`
		PublishTimeout string `yaml:"publish_timeout"`
	} `yaml:"scheduler"`

	Publishers struct {
		StubDelay   string  `yaml:"stub_delay"`
		HTTPTimeout string  `yaml:"http_timeout"`
		LinkedInAPI string  `yaml:"linkedin_api_base"`
		LinkedInRPS float64 `yaml:"linkedin_rate_per_sec"`
	} `yaml:"publishers"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Host:   "127.0.0.1",
		Port:   "3000",
		DBPath: "postpilot.db",
		Log:    LogConfig{Level: "info", Format: "console"},
		Scheduler: SchedulerConfig{
			Spec:           DefaultScheduleSpec,
			Workers:        DefaultWorkers,
			PublishTimeout: DefaultPublishTimeout,
		},
		Publishers: PublishersConfig{
			StubDelay:          DefaultStubDelay,
			HTTPTimeout:        DefaultHTTPTimeout,
			LinkedInAPIBase:    DefaultLinkedInAPI,
			LinkedInRatePerSec: DefaultLinkedInRate,
		},
	}
}

// Load reads .env (if present), the YAML file (if found) and the environment.
// A broken YAML file is reported as an error alongside a usable config built
// from defaults and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	fileErr := applyFile(cfg)
	applyEnv(cfg)
	return cfg, fileErr
}

func applyFile(cfg *Config) error {
	path, err := resolveConfigPath()
	if err != nil || path == "" {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	setString(&cfg.Host, fc.Host)
	setString(&cfg.Port, fc.Port)
	setString(&cfg.DBPath, fc.DBPath)
	setString(&cfg.AppURL, fc.AppURL)
	setString(&cfg.Log.Level, fc.LogLevel)
	setString(&cfg.Log.Format, fc.LogFmt)
	setString(&cfg.Scheduler.Spec, fc.Scheduler.Spec)
	if fc.Scheduler.Workers > 0 {
		cfg.Scheduler.Workers = fc.Scheduler.Workers
	}
	setDuration(&cfg.Scheduler.PublishTimeout, fc.Scheduler.PublishTimeout)
	setDuration(&cfg.Publishers.StubDelay, fc.Publishers.StubDelay)
	setDuration(&cfg.Publishers.HTTPTimeout, fc.Publishers.HTTPTimeout)
	setString(&cfg.Publishers.LinkedInAPIBase, fc.Publishers.LinkedInAPI)
	if fc.Publishers.LinkedInRPS > 0 {
		cfg.Publishers.LinkedInRatePerSec = fc.Publishers.LinkedInRPS
	}
	return nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Host, os.Getenv("HOST"))
	setString(&cfg.Port, os.Getenv("PORT"))
	setString(&cfg.DBPath, os.Getenv("POSTPILOT_DB_PATH"))
	setString(&cfg.AdminPassword, os.Getenv("POSTPILOT_ADMIN_PASSWORD"))
	setString(&cfg.AppURL, os.Getenv("APP_URL"))
	setString(&cfg.Log.Level, os.Getenv("POSTPILOT_LOG_LEVEL"))
	setString(&cfg.Log.Format, os.Getenv("POSTPILOT_LOG_FORMAT"))

	setString(&cfg.Scheduler.Spec, os.Getenv("POSTPILOT_SCHEDULE"))
	if raw := strings.TrimSpace(os.Getenv("POSTPILOT_WORKERS")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cfg.Scheduler.Workers = n
		}
	}
	setDuration(&cfg.Scheduler.PublishTimeout, os.Getenv("POSTPILOT_PUBLISH_TIMEOUT"))
	setDuration(&cfg.Publishers.StubDelay, os.Getenv("POSTPILOT_STUB_DELAY"))
	setDuration(&cfg.Publishers.HTTPTimeout, os.Getenv("POSTPILOT_HTTP_TIMEOUT"))
	setString(&cfg.Publishers.LinkedInAPIBase, os.Getenv("LINKEDIN_API_BASE"))
	if raw := strings.TrimSpace(os.Getenv("LINKEDIN_RATE_PER_SEC")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			cfg.Publishers.LinkedInRatePerSec = v
		}
	}

	setString(&cfg.LinkedIn.ClientID, os.Getenv("LINKEDIN_CLIENT_ID"))
	setString(&cfg.LinkedIn.ClientSecret, os.Getenv("LINKEDIN_CLIENT_SECRET"))
}

func resolveConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("POSTPILOT_CONFIG_FILE")); explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", err
		}
		return explicit, nil
	}

	candidates := []string{
		"config/postpilot.yaml",
		"/etc/postpilot/postpilot.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != "" {
		candidates = append(candidates, filepath.Join(homeDir, ".config", "postpilot", "postpilot.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

// setDuration ignores unparsable or non-positive values and keeps the current one.
func setDuration(dst *time.Duration, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}
