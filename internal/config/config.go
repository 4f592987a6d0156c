package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Source dataset. SourceURL wins over SourcePath when both are set.
	SourceURL       string
	SourcePath      string
	SourceTimeout   time.Duration
	SourceWatch     bool
	RefreshInterval time.Duration // 0 disables periodic reloads

	DBDriver     string
	DatabaseURL  string
	H3Resolution int

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	sourceTimeout, err := parseDuration("SOURCE_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "1h", true)
	if err != nil {
		return nil, err
	}

	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s", false)
	if err != nil {
		return nil, err
	}

	h3Resolution, err := parseH3Resolution()
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	kafkaEnabled := brokers != ""
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}
	if brokers == "" {
		brokers = "localhost:9092"
	}

	driver := sharedcfg.EnvOrDefault("DB_DRIVER", DriverSQLite)
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && driver == DriverSQLite {
		databaseURL = "data/incidents.db"
	}

	cfg := &Config{
		SourceURL:       os.Getenv("SOURCE_URL"),
		SourcePath:      sharedcfg.EnvOrDefault("SOURCE_PATH", "data/Dallas_Police_Officer-Involved_Shootings.csv"),
		SourceTimeout:   sourceTimeout,
		SourceWatch:     os.Getenv("SOURCE_WATCH") == "true",
		RefreshInterval: refreshInterval,

		DBDriver:     driver,
		DatabaseURL:  databaseURL,
		H3Resolution: h3Resolution,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   sharedcfg.ParseBrokers(brokers),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "ois-incidents"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),
	}

	if cfg.SourceURL == "" && cfg.SourcePath == "" {
		return nil, errors.New("SOURCE_URL or SOURCE_PATH is required")
	}
	if cfg.SourceWatch && cfg.SourceURL != "" {
		return nil, errors.New("SOURCE_WATCH only applies to SOURCE_PATH, unset SOURCE_URL")
	}
	if cfg.DBDriver != DriverSQLite && cfg.DBDriver != DriverPostgres {
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q", DriverSQLite, DriverPostgres)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseH3Resolution() (int, error) {
	s := os.Getenv("H3_RESOLUTION")
	if s == "" {
		return 9, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 15 {
		return 0, errors.New("invalid H3_RESOLUTION: must be 0-15")
	}
	return n, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
