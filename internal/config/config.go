package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

// Config stores runtime configuration for the bot.
type Config struct {
	AppEnv string       `yaml:"app_env"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
	Slack  SlackConfig  `yaml:"slack"`
	Store  StoreConfig  `yaml:"store"`
	Jira   JiraConfig   `yaml:"jira"`
	Daily  DailyConfig  `yaml:"daily"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Console    bool   `yaml:"console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type SlackConfig struct {
	BotToken      string        `yaml:"bot_token"`
	SigningSecret string        `yaml:"signing_secret"`
	Timeout       time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	DatabaseURL   string `yaml:"database_url"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoUsername string `yaml:"mongo_username"`
	MongoPassword string `yaml:"mongo_password"`
	MongoCluster  string `yaml:"mongo_cluster"`
	MongoDatabase string `yaml:"mongo_database"`
}

type JiraConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	PageSize         int           `yaml:"page_size"`
	MaxClients       int           `yaml:"max_clients"`
	ExcludedStatuses []string      `yaml:"excluded_statuses"`
}

type DailyConfig struct {
	Timezone    string `yaml:"timezone"`
	SummaryCron string `yaml:"summary_cron"`
	SummaryMode string `yaml:"summary_mode"`
}

var defaultSearchPaths = []string{"etc/dailybot.yaml", "/etc/dailybot/config.yaml"}

func defaults() Config {
	return Config{
		AppEnv: "dev",
		Server: ServerConfig{Port: "3000"},
		Log:    LogConfig{Level: "info", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Slack:  SlackConfig{Timeout: 10 * time.Second},
		Store:  StoreConfig{Driver: StoreDriverPostgres, MongoDatabase: "daily"},
		Jira: JiraConfig{
			Timeout:          15 * time.Second,
			PageSize:         100,
			MaxClients:       256,
			ExcludedStatuses: []string{"DONE", "TO DO", "Closed"},
		},
		Daily: DailyConfig{Timezone: "UTC", SummaryMode: "compact"},
	}
}

// Load reads the YAML file (explicit path or the first default found), applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := defaults()

	paths := defaultSearchPaths
	if path != "" {
		paths = []string{path}
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return Config{}, fmt.Errorf("read config %s: %w", p, err)
			}
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", p, err)
		}
		break
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envOverride(&cfg.AppEnv, "APP_ENV")
	envOverride(&cfg.Server.Port, "PORT")
	envOverride(&cfg.Log.Level, "LOG_LEVEL")
	envOverride(&cfg.Log.File, "LOG_FILE")
	envOverride(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	envOverrideDuration(&cfg.Slack.Timeout, "SLACK_TIMEOUT")
	envOverride(&cfg.Store.Driver, "STORE_DRIVER")
	envOverride(&cfg.Store.DatabaseURL, "DATABASE_URL")
	envOverride(&cfg.Store.MongoURI, "MONGODB_URI")
	envOverride(&cfg.Store.MongoUsername, "MONGODB_USERNAME")
	envOverride(&cfg.Store.MongoPassword, "MONGODB_PASSWORD")
	envOverride(&cfg.Store.MongoCluster, "CLUSTER_NAME")
	envOverride(&cfg.Store.MongoDatabase, "MONGODB_DATABASE")
	envOverrideDuration(&cfg.Jira.Timeout, "JIRA_TIMEOUT")
	envOverrideInt(&cfg.Jira.PageSize, "JIRA_PAGE_SIZE")
	envOverride(&cfg.Daily.Timezone, "APP_TZ")
	envOverride(&cfg.Daily.SummaryCron, "DAILY_SUMMARY_CRON")
	envOverride(&cfg.Daily.SummaryMode, "SUMMARY_MODE")
}

// Validate checks required settings.
func (c Config) Validate() error {
	var errs []error
	if c.Slack.BotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET is required"))
	}
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case StoreDriverMongo:
		if c.MongoURI() == "" {
			errs = append(errs, errors.New("MONGODB_URI or MONGODB_USERNAME/MONGODB_PASSWORD/CLUSTER_NAME is required for the mongo store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Jira.PageSize <= 0 {
		errs = append(errs, errors.New("jira page size must be positive"))
	}
	if _, err := time.LoadLocation(c.Daily.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Daily.Timezone, err))
	}
	return errors.Join(errs...)
}

// MongoURI returns the explicit URI or builds the Atlas one from its parts.
func (c Config) MongoURI() string {
	if c.Store.MongoURI != "" {
		return c.Store.MongoURI
	}
	s := c.Store
	if s.MongoUsername == "" || s.MongoPassword == "" || s.MongoCluster == "" {
		return ""
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s.mongodb.net/?retryWrites=true&w=majority", s.MongoUsername, s.MongoPassword, s.MongoCluster)
}

// Location returns the timezone dailies are dated in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Daily.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Server.Port, ":")
}

func envOverride(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
