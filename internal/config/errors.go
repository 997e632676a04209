package config

import "errors"

var (
	ErrReadingConfigFile    = errors.New("failed to read config file")
	ErrUnmarshallingConfig  = errors.New("failed to unmarshal config")
	ErrConfigFileMissing    = errors.New("config file not found")
	ErrEmptyKafkaBrokers    = errors.New("kafka brokers list cannot be empty")
	ErrEmptyKafkaTopic      = errors.New("kafka topic cannot be empty")
	ErrEmptyKafkaGroupID    = errors.New("kafka groupID cannot be empty")
	ErrEmptyDatabaseDSN     = errors.New("database dsn cannot be empty")
	ErrInvalidStoreRetry    = errors.New("store retry settings must be non-negative with a positive initial backoff")
	ErrInvalidIngestBatch   = errors.New("ingest batchSize and flushInterval must be positive")
	ErrEmptyServerAddr      = errors.New("server addr cannot be empty")
	ErrInvalidCacheTTL      = errors.New("cache TTLs cannot be negative")
	ErrInvalidTimezone      = errors.New("analytics timezone is not a known location")
	ErrInvalidPeakThreshold = errors.New("analytics peakThreshold must be within [0, 100]")
	ErrInvalidGranularity   = errors.New("analytics defaultGranularity is not supported")
	ErrInvalidMaxRangeDays  = errors.New("analytics maxRangeDays must be positive")
)
