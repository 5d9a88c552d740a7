package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ObservationsIndexer/internal/domain"
	"ObservationsIndexer/internal/identity"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "OBSINDEXER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	Facilities    []FacilityConfig   `yaml:"facilities"`
	Crawler       CrawlerConfig      `yaml:"crawler"`
	Ingest        IngestConfig       `yaml:"ingest"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Schedule      ScheduleConfig     `yaml:"schedule"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// DatabaseConfig describes the catalog database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
	Table  string `yaml:"table"`
}

// LoggingConfig sets the slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FacilityConfig is one telescope with its ground location and trees.
type FacilityConfig struct {
	Name     string          `yaml:"name"`
	Location domain.Location `yaml:"location"`
	Trees    []TreeConfig    `yaml:"trees"`
}

// TreeConfig is one base directory holding files of a single stage.
type TreeConfig struct {
	Name        string `yaml:"name"`
	Stage       string `yaml:"stage"`
	BaseDir     string `yaml:"baseDir"`
	Layout      string `yaml:"layout"`
	DateSegment int    `yaml:"dateSegment"`
}

// CrawlerConfig tunes file discovery and header extraction.
type CrawlerConfig struct {
	Workers       int      `yaml:"workers"`
	ExcludedDirs  []string `yaml:"excludedDirs"`
	Extensions    []string `yaml:"extensions"`
	PipelineKinds []string `yaml:"pipelineKinds"`
}

// IngestConfig tunes batch reporting.
type IngestConfig struct {
	MaxErrorExamples int `yaml:"maxErrorExamples"`
}

// MetricsConfig enables the node_exporter textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// ScheduleConfig defines when watch mode runs.
type ScheduleConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	Trees    []string       `yaml:"trees"`
	location *time.Location `yaml:"-"`
}

// Location resolves the schedule timezone string to a time.Location.
func (s ScheduleConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if fileCfg, err := ReadFile(path); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// ReadFile parses a YAML configuration file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Identity converts the facility section into the classifier configuration.
// Unknown facility names, unknown stages and duplicate tree names are errors.
func (c Config) Identity() (identity.Config, error) {
	out := identity.Config{Locations: map[domain.Facility]domain.Location{}}
	seen := map[string]bool{}

	for _, fc := range c.Facilities {
		facility, err := domain.ParseFacility(fc.Name)
		if err != nil {
			return identity.Config{}, fmt.Errorf("facilities: %w", err)
		}
		out.Locations[facility] = fc.Location

		for _, tc := range fc.Trees {
			stage, err := domain.ParseStage(tc.Stage)
			if err != nil {
				return identity.Config{}, fmt.Errorf("facility %s tree %s: %w", fc.Name, tc.Name, err)
			}
			name := tc.Name
			if name == "" {
				name = strings.ToLower(facility.String()) + "-" + stage.String()
			}
			if seen[name] {
				return identity.Config{}, fmt.Errorf("facility %s: duplicate tree name %s", fc.Name, name)
			}
			seen[name] = true

			layout := tc.Layout
			if layout == "" {
				layout = identity.LayoutDated
			}
			out.Trees = append(out.Trees, identity.Tree{
				Name:        name,
				Facility:    facility,
				Stage:       stage,
				BaseDir:     tc.BaseDir,
				Layout:      layout,
				DateSegment: tc.DateSegment,
			})
		}
	}
	return out, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Schedule.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Schedule.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Schema != "" {
		base.Database.Schema = override.Database.Schema
	}
	if override.Database.Table != "" {
		base.Database.Table = override.Database.Table
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if len(override.Facilities) > 0 {
		base.Facilities = override.Facilities
	}

	if override.Crawler.Workers > 0 {
		base.Crawler.Workers = override.Crawler.Workers
	}
	if override.Crawler.ExcludedDirs != nil {
		base.Crawler.ExcludedDirs = override.Crawler.ExcludedDirs
	}
	if len(override.Crawler.Extensions) > 0 {
		base.Crawler.Extensions = override.Crawler.Extensions
	}
	if len(override.Crawler.PipelineKinds) > 0 {
		base.Crawler.PipelineKinds = override.Crawler.PipelineKinds
	}

	if override.Ingest.MaxErrorExamples > 0 {
		base.Ingest.MaxErrorExamples = override.Ingest.MaxErrorExamples
	}

	if override.Metrics.Textfile != "" {
		base.Metrics.Textfile = override.Metrics.Textfile
	}

	if override.Schedule.Interval > 0 {
		base.Schedule.Interval = override.Schedule.Interval
	}
	if override.Schedule.Timezone != "" {
		base.Schedule.Timezone = override.Schedule.Timezone
	}
	if len(override.Schedule.Trees) > 0 {
		base.Schedule.Trees = override.Schedule.Trees
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{
			Driver: DriverPostgres,
			DSN:    "postgres://observatory@localhost:5432/observations?sslmode=disable",
			Schema: "observations",
			Table:  "observations",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Facilities: []FacilityConfig{
			{
				Name:     "GBT",
				Location: domain.Location{Latitude: 53.240250, Longitude: 6.536444, Altitude: 40},
				Trees: []TreeConfig{
					{Name: "gbt-raw", Stage: "raw", BaseDir: "/net/vega/data/users/observatory/images", Layout: identity.LayoutDated},
					{Name: "gbt-astrom", Stage: "astrom", BaseDir: "/net/dataserver3/data/users/noelstorr/blaauwastrom", Layout: identity.LayoutDated},
					{Name: "gbt-pipe", Stage: "pipeline", BaseDir: "/net/dataserver3/data/users/noelstorr/blaauwpipe", Layout: identity.LayoutPipeline},
				},
			},
			{
				Name:     "LDST",
				Location: domain.Location{Latitude: 53.380, Longitude: 6.200, Altitude: 0},
				Trees: []TreeConfig{
					{Name: "ldst-raw", Stage: "raw", BaseDir: "/net/vega/data/users/observatory/LDST", Layout: identity.LayoutDated},
				},
			},
		},
		Crawler: CrawlerConfig{
			Workers:       4,
			ExcludedDirs:  []string{"2222-22-22", "FISHEYE JAKE 20230407"},
			Extensions:    []string{"fit", "FIT", "fits", "FITS"},
			PipelineKinds: []string{"Raw", "Reduced", "Correction"},
		},
		Ingest:   IngestConfig{MaxErrorExamples: 10},
		Schedule: ScheduleConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, Trees: []string{"gbt-raw", "ldst-raw"}, location: tz},
	}
}
