package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/indicator-grid-etl/internal/domain"
)

const (
	defaultGeoURL    = "https://raw.githubusercontent.com/nvkelso/natural-earth-vector/master/geojson/ne_110m_admin_0_countries.geojson"
	defaultOWIDURL   = "https://raw.githubusercontent.com/owid/co2-data/master/owid-co2-data.csv"
	defaultWBBaseURL = "https://api.worldbank.org/v2"
)

// Config holds all build and scheduler settings, populated from environment variables.
type Config struct {
	OutputDir   string
	GeoPath     string
	GeoURL      string
	CatalogPath string
	Notes       string

	// World Bank fetch policy.
	WorldBankBaseURL     string
	WorldBankTimeout     time.Duration
	WorldBankMaxAttempts int
	WorldBankBackoff     time.Duration
	WorldBankRateLimit   float64

	OWIDURL     string
	HTTPTimeout time.Duration

	LogLevel        string
	LogFormat       string
	MetricsTextfile string

	// Optional Kafka fan-out of artifacts.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Scheduler and site server.
	HTTPAddr        string
	ShutdownTimeout time.Duration
	BuildSchedule   string
	BuildTimeout    time.Duration
	BuildOnStart    bool
	SiteDir         string
	FavoritesPath   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	wbTimeout, err := parseDuration("WORLDBANK_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	wbBackoff, err := parseDuration("WORLDBANK_BACKOFF", "500ms")
	if err != nil {
		return nil, err
	}
	httpTimeout, err := parseDuration("HTTP_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	buildTimeout, err := parseDuration("BUILD_TIMEOUT", "30m")
	if err != nil {
		return nil, err
	}

	wbAttempts, err := parsePositiveInt("WORLDBANK_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	wbRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("WORLDBANK_RATE_LIMIT", "5"), 64)
	if err != nil || wbRate < 0 {
		return nil, errors.New("invalid WORLDBANK_RATE_LIMIT")
	}

	cfg := &Config{
		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "public/data"),
		GeoPath:     sharedcfg.EnvOrDefault("GEO_PATH", "public/geo/countries_simplified.geojson"),
		GeoURL:      sharedcfg.EnvOrDefault("GEO_URL", defaultGeoURL),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		Notes:       sharedcfg.EnvOrDefault("MANIFEST_NOTES", domain.DefaultManifestNotes),

		WorldBankBaseURL:     sharedcfg.EnvOrDefault("WORLDBANK_BASE_URL", defaultWBBaseURL),
		WorldBankTimeout:     wbTimeout,
		WorldBankMaxAttempts: wbAttempts,
		WorldBankBackoff:     wbBackoff,
		WorldBankRateLimit:   wbRate,

		OWIDURL:     sharedcfg.EnvOrDefault("OWID_CO2_URL", defaultOWIDURL),
		HTTPTimeout: httpTimeout,

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsTextfile: os.Getenv("METRICS_TEXTFILE"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "indicator-artifacts"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,
		BuildSchedule:   sharedcfg.EnvOrDefault("BUILD_SCHEDULE", "0 3 * * *"),
		BuildTimeout:    buildTimeout,
		BuildOnStart:    sharedcfg.EnvOrDefault("BUILD_ON_START", "true") == "true",
		SiteDir:         sharedcfg.EnvOrDefault("SITE_DIR", "public"),
		FavoritesPath:   sharedcfg.EnvOrDefault("FAVORITES_PATH", "favorites.json"),
	}

	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if cfg.GeoPath == "" {
		return nil, errors.New("GEO_PATH is required")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}

	return cfg, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
