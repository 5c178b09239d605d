package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BBox is a WGS-84 bounding box for the area of interest.
type BBox struct {
	West, South, East, North float64
}

// Center returns the bounding box center point, used for single-pixel
// climate lookups.
func (b BBox) Center() (lat, lon float64) {
	return (b.South + b.North) / 2, (b.West + b.East) / 2
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	AOI       BBox
	StartDate time.Time
	EndDate   time.Time

	DaymetURL     string
	DaymetTimeout time.Duration

	SentinelEnabled      bool
	SentinelURL          string
	SentinelTokenURL     string
	SentinelClientID     string
	SentinelClientSecret string
	SentinelTimeout      time.Duration

	DBPath    string
	OutputDir string

	KafkaBrokers    []string
	KafkaScoreTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	Schedule        string // cron expression; empty runs once and exits
	ShutdownTimeout time.Duration
}

// Antelope Valley (Palmdale/Lancaster) study area, the project default.
const (
	defaultWest  = -118.3
	defaultSouth = 34.4
	defaultEast  = -117.9
	defaultNorth = 34.7
)

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	aoi, err := parseBBox()
	if err != nil {
		return nil, err
	}

	startDate, err := parseDate("START_DATE", "2015-01-01")
	if err != nil {
		return nil, err
	}
	endDate, err := parseDate("END_DATE", "2023-12-31")
	if err != nil {
		return nil, err
	}

	daymetTimeout, err := parseDuration("DAYMET_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	sentinelTimeout, err := parseDuration("SENTINEL_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	clientID := os.Getenv("SENTINEL_CLIENT_ID")
	clientSecret := os.Getenv("SENTINEL_CLIENT_SECRET")
	sentinelEnabled := clientID != "" && clientSecret != ""
	if v := os.Getenv("SENTINEL_ENABLED"); v != "" {
		sentinelEnabled = v == "true"
	}

	cfg := &Config{
		AOI:       aoi,
		StartDate: startDate,
		EndDate:   endDate,

		DaymetURL:     envOrDefault("DAYMET_URL", "https://daymet.ornl.gov/single-pixel/api/data"),
		DaymetTimeout: daymetTimeout,

		SentinelEnabled:      sentinelEnabled,
		SentinelURL:          envOrDefault("SENTINEL_URL", "https://services.sentinel-hub.com"),
		SentinelTokenURL:     envOrDefault("SENTINEL_TOKEN_URL", "https://services.sentinel-hub.com/auth/realms/main/protocol/openid-connect/token"),
		SentinelClientID:     clientID,
		SentinelClientSecret: clientSecret,
		SentinelTimeout:      sentinelTimeout,

		DBPath:    envOrDefault("DB_PATH", "data/bloomwatch.db"),
		OutputDir: envOrDefault("OUTPUT_DIR", "results"),

		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaScoreTopic: envOrDefault("KAFKA_SCORE_TOPIC", "superbloom-scores"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		Schedule:        os.Getenv("SCHEDULE"),
		ShutdownTimeout: shutdownTimeout,
	}

	if !cfg.StartDate.Before(cfg.EndDate) {
		return nil, errors.New("START_DATE must be before END_DATE")
	}
	if cfg.SentinelEnabled && (cfg.SentinelClientID == "" || cfg.SentinelClientSecret == "") {
		return nil, errors.New("SENTINEL_ENABLED is true but SENTINEL_CLIENT_ID or SENTINEL_CLIENT_SECRET is not set")
	}
	if len(parseBrokers(os.Getenv("KAFKA_BROKERS"))) > 0 && cfg.KafkaScoreTopic == "" {
		return nil, errors.New("KAFKA_SCORE_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseBBox() (BBox, error) {
	west, err := parseFloat("AOI_WEST", defaultWest)
	if err != nil {
		return BBox{}, err
	}
	south, err := parseFloat("AOI_SOUTH", defaultSouth)
	if err != nil {
		return BBox{}, err
	}
	east, err := parseFloat("AOI_EAST", defaultEast)
	if err != nil {
		return BBox{}, err
	}
	north, err := parseFloat("AOI_NORTH", defaultNorth)
	if err != nil {
		return BBox{}, err
	}

	b := BBox{West: west, South: south, East: east, North: north}
	if b.West >= b.East {
		return BBox{}, errors.New("AOI_WEST must be less than AOI_EAST")
	}
	if b.South >= b.North {
		return BBox{}, errors.New("AOI_SOUTH must be less than AOI_NORTH")
	}
	return b, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return v, nil
}

func parseDate(key, fallback string) (time.Time, error) {
	s := envOrDefault(key, fallback)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q (want YYYY-MM-DD)", key, s)
	}
	return t, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	s := envOrDefault(key, fallback)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
