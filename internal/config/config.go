// Package config loads application configuration from the environment and
// from YAML files. Every loader degrades to documented defaults instead of
// failing: a missing locations file or backfill config must never take the
// pipeline down.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gwakaf/weather-stats-app/internal/logging"
)

var validate = validator.New()

// LocationCoordinate is one configured place the pipelines track.
type LocationCoordinate struct {
	Name      string  `yaml:"name" json:"name" validate:"required"`
	Latitude  float64 `yaml:"lat" json:"lat" validate:"gte=-90,lte=90"`
	Longitude float64 `yaml:"lon" json:"lon" validate:"gte=-180,lte=180"`
}

// LocationSet is an ordered collection of configured locations with
// name-based lookup. Order is configuration order and determines processing
// order in the orchestrators.
type LocationSet struct {
	locations []LocationCoordinate
}

// NewLocationSet builds a LocationSet from a slice of coordinates.
func NewLocationSet(locations []LocationCoordinate) *LocationSet {
	return &LocationSet{locations: locations}
}

// All returns the locations in configuration order.
func (s *LocationSet) All() []LocationCoordinate {
	return s.locations
}

// Names returns the location names in configuration order.
func (s *LocationSet) Names() []string {
	names := make([]string, 0, len(s.locations))
	for _, loc := range s.locations {
		names = append(names, loc.Name)
	}
	return names
}

// Coordinates looks a location up by name.
func (s *LocationSet) Coordinates(name string) (LocationCoordinate, bool) {
	for _, loc := range s.locations {
		if loc.Name == name {
			return loc, true
		}
	}
	return LocationCoordinate{}, false
}

// BackfillConfig holds the parameters of one backfill window.
type BackfillConfig struct {
	StartDate            string        `yaml:"start_date"`
	EndDate              string        `yaml:"end_date"`
	Location             string        `yaml:"location"`
	DelayBetweenRequests time.Duration `yaml:"-"`
	MaxRetries           int           `yaml:"-"`

	API struct {
		DelayBetweenRequestsSeconds int `yaml:"delay_between_requests"`
		MaxRetries                  int `yaml:"max_retries"`
	} `yaml:"api"`
}

// AppConfig is the process-wide configuration.
type AppConfig struct {
	Port        string
	Debug       bool
	HTTPTimeout time.Duration

	// Object store settings.
	Bucket string

	Locations *LocationSet
	Backfill  BackfillConfig

	// Daily schedule (UTC, "HH:MM").
	IngestionTime    string
	QualityCheckTime string
}

// DefaultBackfill is the window used when no backfill config can be loaded.
func DefaultBackfill() BackfillConfig {
	cfg := BackfillConfig{
		StartDate:            "2025-01-01",
		EndDate:              "2025-06-30",
		Location:             "San Francisco, CA",
		DelayBetweenRequests: 1 * time.Second,
		MaxRetries:           3,
	}
	cfg.API.DelayBetweenRequestsSeconds = 1
	cfg.API.MaxRetries = 3
	return cfg
}

// DefaultLocations is the single-location fallback when no locations file can
// be loaded.
func DefaultLocations() *LocationSet {
	return NewLocationSet([]LocationCoordinate{
		{Name: "San Francisco, CA", Latitude: 37.7749, Longitude: -122.4194},
	})
}

// Load reads configuration from environment variables and the YAML files
// referenced by them, with sensible defaults throughout.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		logging.Infof("no .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	cfg.Port = getenvDefault("PORT", "8080")
	cfg.Debug = getenvBool("DEBUG", false)
	cfg.Bucket = getenvDefault("WEATHER_BUCKET", "weather-data-dev")
	cfg.IngestionTime = getenvDefault("DAILY_INGESTION_TIME", "06:00")
	cfg.QualityCheckTime = getenvDefault("QUALITY_CHECK_TIME", "07:00")

	timeoutStr := getenvDefault("HTTP_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}
	cfg.HTTPTimeout = timeout

	cfg.Locations = LoadLocations(getenvDefault("LOCATIONS_CONFIG", "config/locations.yaml"))
	cfg.Backfill = LoadBackfill(getenvDefault("BACKFILL_CONFIG", "config/backfilling_config.yaml"))

	return cfg, nil
}

type locationsFile struct {
	Locations []LocationCoordinate `yaml:"locations"`
}

// LoadLocations reads the locations YAML file. Entries that fail validation
// are dropped with a warning; an unreadable file falls back to the default
// single location.
func LoadLocations(path string) *LocationSet {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warnf("failed to load locations config %s: %v; using default location", path, err)
		return DefaultLocations()
	}

	var file locationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		logging.Warnf("failed to parse locations config %s: %v; using default location", path, err)
		return DefaultLocations()
	}

	valid := make([]LocationCoordinate, 0, len(file.Locations))
	for _, loc := range file.Locations {
		if err := validate.Struct(loc); err != nil {
			logging.Warnf("skipping invalid location entry %q in %s: %v", loc.Name, path, err)
			continue
		}
		valid = append(valid, loc)
	}
	if len(valid) == 0 {
		logging.Warnf("no valid locations in %s; using default location", path)
		return DefaultLocations()
	}

	logging.Infof("loaded %d locations from %s", len(valid), path)
	return NewLocationSet(valid)
}

// LoadBackfill reads the backfill YAML config, falling back to the default
// window when the file is missing or unparseable.
func LoadBackfill(path string) BackfillConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Warnf("failed to load backfill config %s: %v; using default backfill configuration", path, err)
		return DefaultBackfill()
	}

	var cfg BackfillConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logging.Warnf("failed to parse backfill config %s: %v; using default backfill configuration", path, err)
		return DefaultBackfill()
	}

	def := DefaultBackfill()
	if cfg.StartDate == "" {
		cfg.StartDate = def.StartDate
	}
	if cfg.EndDate == "" {
		cfg.EndDate = def.EndDate
	}
	if cfg.Location == "" {
		cfg.Location = def.Location
	}
	if cfg.API.DelayBetweenRequestsSeconds <= 0 {
		cfg.API.DelayBetweenRequestsSeconds = def.API.DelayBetweenRequestsSeconds
	}
	if cfg.API.MaxRetries <= 0 {
		cfg.API.MaxRetries = def.API.MaxRetries
	}
	cfg.DelayBetweenRequests = time.Duration(cfg.API.DelayBetweenRequestsSeconds) * time.Second
	cfg.MaxRetries = cfg.API.MaxRetries

	logging.Infof("loaded backfill config from %s: %s to %s for %s", path, cfg.StartDate, cfg.EndDate, cfg.Location)
	return cfg
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
