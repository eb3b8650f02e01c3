package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Catalog sources.
const (
	SourceDataStore = "datastore"
	SourceFTP       = "ftp"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	StaticDir    string
	BoundaryFile string
	ScratchDir   string

	// Product catalog.
	CatalogSource     string
	CatalogURL        string
	CatalogCollection string
	CatalogTimeout    time.Duration
	ClientID          string
	ClientSecret      string

	FTPAddr     string
	FTPUser     string
	FTPPassword string
	FTPDir      string

	// Run sinks. Empty values disable the sink.
	RunJournalPath string
	KafkaBrokers   []string
	KafkaTopic     string

	ObjectStoreEndpoint  string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string
	ObjectStoreSecure    bool
}

// Load reads configuration from environment variables, applying defaults where unset.
// Missing Data Store credentials are not an error here; they surface on first use.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("CATALOG_TIMEOUT", "60s"))
	if err != nil || catalogTimeout <= 0 {
		return nil, errors.New("invalid CATALOG_TIMEOUT")
	}

	secure, err := strconv.ParseBool(sharedcfg.EnvOrDefault("OBJECT_STORE_SECURE", "true"))
	if err != nil {
		return nil, errors.New("invalid OBJECT_STORE_SECURE: must be a boolean")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		StaticDir:    sharedcfg.EnvOrDefault("STATIC_DIR", "static"),
		BoundaryFile: sharedcfg.EnvOrDefault("BOUNDARY_FILE", "static/data/countries.geojson"),
		ScratchDir:   sharedcfg.EnvOrDefault("SCRATCH_DIR", "temp_extract"),

		CatalogSource:     sharedcfg.EnvOrDefault("CATALOG_SOURCE", SourceDataStore),
		CatalogURL:        sharedcfg.EnvOrDefault("CATALOG_URL", "https://api.eumetsat.int"),
		CatalogCollection: sharedcfg.EnvOrDefault("CATALOG_COLLECTION", "EO:EUM:DAT:0691"),
		CatalogTimeout:    catalogTimeout,
		ClientID:          os.Getenv("EUMDAC_CLIENT_ID"),
		ClientSecret:      os.Getenv("EUMDAC_CLIENT_SECRET"),

		FTPAddr:     os.Getenv("FTP_ADDR"),
		FTPUser:     sharedcfg.EnvOrDefault("FTP_USER", "anonymous"),
		FTPPassword: sharedcfg.EnvOrDefault("FTP_PASSWORD", "anonymous"),
		FTPDir:      sharedcfg.EnvOrDefault("FTP_DIR", "/"),

		RunJournalPath: runJournalPath(),
		KafkaBrokers:   sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "lightning-overlays"),

		ObjectStoreEndpoint:  os.Getenv("OBJECT_STORE_ENDPOINT"),
		ObjectStoreAccessKey: os.Getenv("OBJECT_STORE_ACCESS_KEY"),
		ObjectStoreSecretKey: os.Getenv("OBJECT_STORE_SECRET_KEY"),
		ObjectStoreBucket:    sharedcfg.EnvOrDefault("OBJECT_STORE_BUCKET", "overlays"),
		ObjectStoreSecure:    secure,
	}

	switch cfg.CatalogSource {
	case SourceDataStore:
	case SourceFTP:
		if cfg.FTPAddr == "" {
			return nil, errors.New("CATALOG_SOURCE is ftp but FTP_ADDR is not set")
		}
	default:
		return nil, fmt.Errorf("invalid CATALOG_SOURCE %q: must be %s or %s", cfg.CatalogSource, SourceDataStore, SourceFTP)
	}
	if cfg.ObjectStoreEnabled() && (cfg.ObjectStoreAccessKey == "" || cfg.ObjectStoreSecretKey == "") {
		return nil, errors.New("OBJECT_STORE_ENDPOINT is set but OBJECT_STORE_ACCESS_KEY or OBJECT_STORE_SECRET_KEY is not")
	}

	return cfg, nil
}

// KafkaEnabled reports whether overlay notifications are published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ObjectStoreEnabled reports whether overlays are mirrored to a bucket.
func (c *Config) ObjectStoreEnabled() bool { return c.ObjectStoreEndpoint != "" }

// runJournalPath distinguishes an explicitly empty RUN_JOURNAL_PATH, which
// disables the journal, from an unset one.
func runJournalPath() string {
	if v, ok := os.LookupEnv("RUN_JOURNAL_PATH"); ok {
		return v
	}
	return "data/runs.db"
}
