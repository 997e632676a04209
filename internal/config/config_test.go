package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalYAML = `
kafka:
  brokers: ["localhost:9092"]
  topic: "parking-availability"
database:
  dsn: "postgres://localhost/parkinglens"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Kafka.GroupID != defaultKafkaGroupID {
		t.Errorf("GroupID = %q, want %q", cfg.Kafka.GroupID, defaultKafkaGroupID)
	}
	if cfg.Analytics.Timezone != "Asia/Taipei" {
		t.Errorf("Timezone = %q", cfg.Analytics.Timezone)
	}
	if cfg.Analytics.PeakThreshold != 80 {
		t.Errorf("PeakThreshold = %v, want 80", cfg.Analytics.PeakThreshold)
	}
	if cfg.Analytics.DefaultGranularity != "1h" {
		t.Errorf("DefaultGranularity = %q", cfg.Analytics.DefaultGranularity)
	}
	if cfg.Analytics.MaxRangeDays != 31 {
		t.Errorf("MaxRangeDays = %d", cfg.Analytics.MaxRangeDays)
	}
	if cfg.Analytics.DefaultLotID != "TPE0410" {
		t.Errorf("DefaultLotID = %q", cfg.Analytics.DefaultLotID)
	}
	if cfg.Cache.ReadingsTTL != 5*time.Minute || cfg.Cache.CatalogTTL != time.Hour {
		t.Errorf("cache TTLs = %v/%v", cfg.Cache.ReadingsTTL, cfg.Cache.CatalogTTL)
	}
	if cfg.Ingest.BatchSize != defaultIngestBatchSize || cfg.Ingest.FlushInterval != defaultIngestFlushInterval {
		t.Errorf("ingest = %+v", cfg.Ingest)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PARKINGLENS_ANALYTICS_PEAKTHRESHOLD", "65")
	t.Setenv("PARKINGLENS_SERVER_ADDR", ":9090")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analytics.PeakThreshold != 65 {
		t.Errorf("PeakThreshold = %v, want 65", cfg.Analytics.PeakThreshold)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Server.Addr)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		base  string
		want  error
	}{
		{
			name: "missing brokers",
			base: "kafka:\n  topic: t\ndatabase:\n  dsn: d\n",
			want: ErrEmptyKafkaBrokers,
		},
		{
			name: "missing topic",
			base: "kafka:\n  brokers: [b]\ndatabase:\n  dsn: d\n",
			want: ErrEmptyKafkaTopic,
		},
		{
			name: "missing dsn",
			base: "kafka:\n  brokers: [b]\n  topic: t\n",
			want: ErrEmptyDatabaseDSN,
		},
		{
			name:  "unknown timezone",
			extra: "analytics:\n  timezone: Mars/Olympus\n",
			want:  ErrInvalidTimezone,
		},
		{
			name:  "threshold above 100",
			extra: "analytics:\n  peakThreshold: 120\n",
			want:  ErrInvalidPeakThreshold,
		},
		{
			name:  "granularity not dividing a day",
			extra: "analytics:\n  defaultGranularity: 7h\n",
			want:  ErrInvalidGranularity,
		},
		{
			name:  "zero range days",
			extra: "analytics:\n  maxRangeDays: 0\n",
			want:  ErrInvalidMaxRangeDays,
		},
		{
			name:  "zero batch size",
			extra: "ingest:\n  batchSize: 0\n",
			want:  ErrInvalidIngestBatch,
		},
		{
			name:  "negative cache ttl",
			extra: "cache:\n  readingsTTL: -1s\n",
			want:  ErrInvalidCacheTTL,
		},
		{
			name:  "zero initial backoff",
			extra: "store:\n  initialBackoff: 0s\n",
			want:  ErrInvalidStoreRetry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := tt.base
			if base == "" {
				base = minimalYAML
			}
			_, err := Load(writeConfig(t, base+tt.extra))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, ErrConfigFileMissing) && !errors.Is(err, ErrReadingConfigFile) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAnalyticsLocation(t *testing.T) {
	a := AnalyticsConfig{Timezone: "Asia/Taipei"}
	if got := a.Location().String(); got != "Asia/Taipei" {
		t.Errorf("Location = %q", got)
	}
	bad := AnalyticsConfig{Timezone: "Nowhere/Invalid"}
	if bad.Location() != time.UTC {
		t.Error("invalid timezone should fall back to UTC")
	}
}
