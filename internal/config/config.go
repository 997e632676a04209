package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Taipei must resolve on hosts without zoneinfo

	"github.com/spf13/viper"

	"github.com/sanspareilsmyn/parkinglens/internal/occupancy"
)

const (
	defaultKafkaGroupID   = "parkinglens-ingest"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultLogFileEnabled = false
	defaultLogDirectory   = "log"
	defaultLogFilename    = "app.log"
	defaultLogMaxSizeMB   = 100
	defaultLogMaxBackups  = 3
	defaultLogMaxAgeDays  = 7
	defaultLogCompress    = false

	defaultDatabaseMaxConns = 8

	defaultStoreMaxRetries     = 3
	defaultStoreInitialBackoff = 200 * time.Millisecond
	defaultStoreMaxBackoff     = 2 * time.Second
	defaultStoreBreakerTimeout = 30 * time.Second

	defaultIngestBatchSize     = 200
	defaultIngestFlushInterval = 5 * time.Second

	defaultServerAddr         = ":8080"
	defaultServerReadTimeout  = 10 * time.Second
	defaultServerWriteTimeout = 30 * time.Second

	defaultReadingsTTL = 5 * time.Minute
	defaultCatalogTTL  = time.Hour

	defaultTimezone      = "Asia/Taipei"
	defaultPeakThreshold = occupancy.DefaultPeakThreshold
	defaultGranularity   = "1h"
	defaultMaxRangeDays  = 31
	defaultLotID         = "TPE0410"

	// Environment variable prefix
	envPrefix = "PARKINGLENS"
)

type Config struct {
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Server    ServerConfig    `mapstructure:"server"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Log       LogConfig       `mapstructure:"log"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"groupID"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"maxConns"`
}

// StoreConfig controls retries and the circuit breaker around warehouse queries.
type StoreConfig struct {
	MaxRetries     int           `mapstructure:"maxRetries"`
	InitialBackoff time.Duration `mapstructure:"initialBackoff"`
	MaxBackoff     time.Duration `mapstructure:"maxBackoff"`
	BreakerTimeout time.Duration `mapstructure:"breakerTimeout"`
}

type IngestConfig struct {
	BatchSize     int           `mapstructure:"batchSize"`
	FlushInterval time.Duration `mapstructure:"flushInterval"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	AllowOrigins []string      `mapstructure:"allowOrigins"`
}

// CacheConfig holds the memoization TTLs for fetched readings and the lot catalog.
type CacheConfig struct {
	ReadingsTTL time.Duration `mapstructure:"readingsTTL"`
	CatalogTTL  time.Duration `mapstructure:"catalogTTL"`
}

type AnalyticsConfig struct {
	Timezone           string  `mapstructure:"timezone"`
	PeakThreshold      float64 `mapstructure:"peakThreshold"` // percent
	DefaultGranularity string  `mapstructure:"defaultGranularity"`
	MaxRangeDays       int     `mapstructure:"maxRangeDays"`
	DefaultLotID       string  `mapstructure:"defaultLotID"`
}

// Location resolves Timezone. Load has already validated it.
func (a AnalyticsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type LogConfig struct {
	Level              string `mapstructure:"level"`
	Format             string `mapstructure:"format"`
	FileLoggingEnabled bool   `mapstructure:"fileLoggingEnabled"`
	Directory          string `mapstructure:"directory"`
	Filename           string `mapstructure:"filename"`
	MaxSize            int    `mapstructure:"maxSize"`    // Max size in MB
	MaxBackups         int    `mapstructure:"maxBackups"` // Max backup files
	MaxAge             int    `mapstructure:"maxAge"`     // Max days to retain
	Compress           bool   `mapstructure:"compress"`   // Compress rotated files?
}

// Load initializes viper, reads config, applies defaults, unmarshals, and validates.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	configureViper(v, configPath)

	// Set default values before reading config source .yaml
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshallingConfig, err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configureViper sets up viper instance for file and environment variables.
func configureViper(v *viper.Viper, configPath string) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults applies default configuration values using Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.groupID", defaultKafkaGroupID)

	v.SetDefault("database.maxConns", defaultDatabaseMaxConns)

	v.SetDefault("store.maxRetries", defaultStoreMaxRetries)
	v.SetDefault("store.initialBackoff", defaultStoreInitialBackoff)
	v.SetDefault("store.maxBackoff", defaultStoreMaxBackoff)
	v.SetDefault("store.breakerTimeout", defaultStoreBreakerTimeout)

	v.SetDefault("ingest.batchSize", defaultIngestBatchSize)
	v.SetDefault("ingest.flushInterval", defaultIngestFlushInterval)

	v.SetDefault("server.addr", defaultServerAddr)
	v.SetDefault("server.readTimeout", defaultServerReadTimeout)
	v.SetDefault("server.writeTimeout", defaultServerWriteTimeout)
	v.SetDefault("server.allowOrigins", []string{"*"})

	v.SetDefault("cache.readingsTTL", defaultReadingsTTL)
	v.SetDefault("cache.catalogTTL", defaultCatalogTTL)

	v.SetDefault("analytics.timezone", defaultTimezone)
	v.SetDefault("analytics.peakThreshold", defaultPeakThreshold)
	v.SetDefault("analytics.defaultGranularity", defaultGranularity)
	v.SetDefault("analytics.maxRangeDays", defaultMaxRangeDays)
	v.SetDefault("analytics.defaultLotID", defaultLotID)

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.format", defaultLogFormat)
	v.SetDefault("log.fileLoggingEnabled", defaultLogFileEnabled)
	v.SetDefault("log.directory", defaultLogDirectory)
	v.SetDefault("log.filename", defaultLogFilename)
	v.SetDefault("log.maxSize", defaultLogMaxSizeMB)
	v.SetDefault("log.maxBackups", defaultLogMaxBackups)
	v.SetDefault("log.maxAge", defaultLogMaxAgeDays)
	v.SetDefault("log.compress", defaultLogCompress)
}

// readConfigFile attempts to read the configuration file specified in viper.
func readConfigFile(v *viper.Viper) error {
	err := v.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return ErrConfigFileMissing
		}
		return fmt.Errorf("%w: %w", ErrReadingConfigFile, err)
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return ErrEmptyKafkaBrokers
	}
	if cfg.Kafka.Topic == "" {
		return ErrEmptyKafkaTopic
	}
	if cfg.Kafka.GroupID == "" {
		return ErrEmptyKafkaGroupID
	}
	if cfg.Database.DSN == "" {
		return ErrEmptyDatabaseDSN
	}
	if cfg.Store.MaxRetries < 0 || cfg.Store.InitialBackoff <= 0 || cfg.Store.MaxBackoff < 0 {
		return ErrInvalidStoreRetry
	}
	if cfg.Ingest.BatchSize <= 0 || cfg.Ingest.FlushInterval <= 0 {
		return ErrInvalidIngestBatch
	}
	if cfg.Server.Addr == "" {
		return ErrEmptyServerAddr
	}
	if cfg.Cache.ReadingsTTL < 0 || cfg.Cache.CatalogTTL < 0 {
		return ErrInvalidCacheTTL
	}
	if _, err := time.LoadLocation(cfg.Analytics.Timezone); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTimezone, err)
	}
	if cfg.Analytics.PeakThreshold < 0 || cfg.Analytics.PeakThreshold > 100 {
		return ErrInvalidPeakThreshold
	}
	if _, err := occupancy.ParseGranularity(cfg.Analytics.DefaultGranularity); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGranularity, err)
	}
	if cfg.Analytics.MaxRangeDays <= 0 {
		return ErrInvalidMaxRangeDays
	}
	return nil
}
