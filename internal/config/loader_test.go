package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/longcipher/sui-indexer/internal/common"
	"github.com/longcipher/sui-indexer/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_Formats(t *testing.T) {
	for _, path := range []string{
		"../../config.example.yaml",
		"../../config.example.json",
		"../../config.example.toml",
	} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := LoadFromFile(path)
			require.NoError(t, err)
			validateConfig(t, cfg, path)
		})
	}
}

func TestLoadFromFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFromFile("config.txt")
	require.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadFromFile_DefaultsOnly(t *testing.T) {
	t.Setenv("SUI_INDEXER__NETWORK__GRPC_URL", "http://127.0.0.1:9000")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:9000", cfg.Network.GRPCURL)
	require.Equal(t, 100, cfg.Events.BatchSize)
	require.Equal(t, 10, cfg.Events.MaxConcurrentBatches)
	require.Equal(t, 10*time.Second, cfg.Events.PollInterval.Duration)
	require.Equal(t, 3, cfg.Network.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.Network.Retry.InitialDelay.Duration)
	require.Equal(t, 10*time.Second, cfg.Network.Retry.MaxDelay.Duration)
	require.InDelta(t, 2.0, cfg.Network.Retry.BackoffMultiplier, 0)
	require.Equal(t, 10, cfg.Network.Pool.MaxConnections)
	require.Equal(t, 20, cfg.Database.MaxConnections)
	require.Equal(t, 5, cfg.Database.MinConnections)
	require.True(t, cfg.Database.MigrationsEnabled())
	require.Equal(t, config.DefaultProcessor, cfg.Events.Processor.Name)
}

func TestLoadFromFile_MissingURL(t *testing.T) {
	_, err := LoadFromFile("")
	require.ErrorContains(t, err, "network.grpc_url is required")
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("SUI_INDEXER__EVENTS__BATCH_SIZE", "7")
	t.Setenv("SUI_INDEXER__DATABASE__URL", "postgres://u:p@db:5432/sui")
	t.Setenv("SUI_INDEXER__NETWORK__RETRY__INITIAL_DELAY", "250ms")

	cfg, err := LoadFromFile("../../config.example.toml")
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Events.BatchSize)
	require.Equal(t, "postgres://u:p@db:5432/sui", cfg.Database.URL)
	require.Equal(t, 250*time.Millisecond, cfg.Network.Retry.InitialDelay.Duration)
}

func TestApplyEnv_InvalidValue(t *testing.T) {
	env := map[string]string{"SUI_INDEXER__EVENTS__BATCH_SIZE": "lots"}

	err := ApplyEnv(&config.Config{}, env)
	require.ErrorContains(t, err, "BatchSize")
}

func TestApplyEnv_CreatesOptionalSections(t *testing.T) {
	env := map[string]string{
		"SUI_INDEXER__NOTIFY__ENABLED":          "true",
		"SUI_INDEXER__LOGGING__DEFAULT_LEVEL":   "debug",
		"SUI_INDEXER__METRICS__LISTEN_ADDRESS":  ":9100",
		"SUI_INDEXER__DATABASE__AUTO_MIGRATE":   "false",
		"SUI_INDEXER__EVENTS__INITIAL_PROGRESS": "0x10",

		"SUI_INDEXER__DATABASE__MAINTENANCE__CHECK_INTERVAL": "5m",
	}

	var cfg config.Config
	require.NoError(t, ApplyEnv(&cfg, env))

	require.NotNil(t, cfg.Notify)
	require.True(t, cfg.Notify.Enabled)
	require.Equal(t, "debug", cfg.Logging.DefaultLevel)
	require.Equal(t, ":9100", cfg.Metrics.ListenAddress)
	require.False(t, cfg.Database.MigrationsEnabled())
	require.Equal(t, uint64(16), cfg.Events.InitialProgress)
	require.NotNil(t, cfg.Database.Maintenance)
	require.False(t, cfg.Database.Maintenance.Enabled)
	require.Equal(t, 5*time.Minute, cfg.Database.Maintenance.CheckInterval.Duration)
	require.Nil(t, cfg.API)
}

func TestApplyEnv_NestedAndCollectionKeys(t *testing.T) {
	env := map[string]string{
		"SUI_INDEXER__METRICS__PATH":                  "/prom",
		"SUI_INDEXER__NETWORK__RETRY__DISABLE_JITTER": "true",
		"SUI_INDEXER__API__MAX_PAGE_SIZE":             "50",
		"SUI_INDEXER__API__READ_TIMEOUT":              "3s",
		"SUI_INDEXER__API__CORS__ENABLED":             "true",
		"SUI_INDEXER__API__CORS__ALLOWED_ORIGINS":     "https://a.example,https://b.example",
		"SUI_INDEXER__DATABASE__JOURNAL_MODE":         "DELETE",
		"SUI_INDEXER__DATABASE__BUSY_TIMEOUT":         "250",
		"SUI_INDEXER__LOGGING__COMPONENT_LEVELS":      "ingester:debug,store:warn",
		"SUI_INDEXER__EVENTS__PROCESSOR__OPTIONS":     "label:navi",
		"SUI_INDEXER__NOTIFY__QUEUE_SIZE":             "  ",

		"SUI_INDEXER__DATABASE__MAINTENANCE__WAL_CHECKPOINT_MODE": "PASSIVE",
	}

	cfg := config.Config{Metrics: &config.MetricsConfig{Enabled: true, ListenAddress: ":9090"}}
	require.NoError(t, ApplyEnv(&cfg, env))

	require.Equal(t, "/prom", cfg.Metrics.Path)
	require.True(t, cfg.Metrics.Enabled, "values absent from the environment are kept")
	require.True(t, cfg.Network.Retry.DisableJitter)
	require.Equal(t, 50, cfg.API.MaxPageSize)
	require.Equal(t, 3*time.Second, cfg.API.ReadTimeout.Duration)
	require.True(t, cfg.API.CORS.Enabled)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.API.CORS.AllowedOrigins)
	require.Equal(t, "DELETE", cfg.Database.JournalMode)
	require.Equal(t, 250, cfg.Database.BusyTimeout)
	require.Equal(t, "PASSIVE", cfg.Database.Maintenance.WALCheckpointMode)
	require.Equal(t, map[string]string{"ingester": "debug", "store": "warn"}, cfg.Logging.ComponentLevels)
	require.Equal(t, "navi", cfg.Events.Processor.Options["label"])
	require.Nil(t, cfg.Notify, "blank variables are ignored")
}

// scalarKeys derives the variable name of every settable leaf of t from its toml tags.
func scalarKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := range t.NumField() {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "" {
			continue
		}
		key := prefix + strings.ToUpper(name)

		ft := f.Type
		if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
			ft = ft.Elem()
		}
		switch {
		case ft == reflect.TypeOf(common.Duration{}):
			keys = append(keys, key)
		case ft.Kind() == reflect.Struct:
			keys = append(keys, scalarKeys(ft, key+EnvSeparator)...)
		case ft.Kind() == reflect.Slice && ft.Elem().Kind() == reflect.Struct:
			// filters are lists of tables, configured in files only
		default:
			keys = append(keys, key)
		}
	}
	return keys
}

func TestEnvKeys_CoverEveryConfigField(t *testing.T) {
	keys, err := EnvKeys()
	require.NoError(t, err)

	expected := scalarKeys(reflect.TypeOf(config.Config{}), EnvPrefix+EnvSeparator)
	require.NotEmpty(t, expected)
	require.ElementsMatch(t, expected, keys)
	require.Contains(t, keys, "SUI_INDEXER__DATABASE__MAINTENANCE__WAL_CHECKPOINT_MODE")
	require.Contains(t, keys, "SUI_INDEXER__API__CORS__ENABLED")
}

func TestLoadFromYAML_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "negative concurrency",
			body:    "network:\n  grpc_url: http://node\nevents:\n  max_concurrent_batches: -1\n",
			wantErr: "max_concurrent_batches",
		},
		{
			name:    "bad scheme",
			body:    "network:\n  grpc_url: ftp://node\n",
			wantErr: "scheme must be http or https",
		},
		{
			name:    "unknown database scheme",
			body:    "network:\n  grpc_url: http://node\ndatabase:\n  url: mysql://x\n",
			wantErr: "unsupported database url scheme",
		},
		{
			name:    "min above max connections",
			body:    "network:\n  grpc_url: http://node\ndatabase:\n  max_connections: 2\n  min_connections: 3\n",
			wantErr: "min_connections",
		},
		{
			name:    "unknown log component",
			body:    "network:\n  grpc_url: http://node\nlogging:\n  component_levels:\n    downloader: debug\n",
			wantErr: "unknown component",
		},
		{
			name:    "initial delay above max",
			body:    "network:\n  grpc_url: http://node\n  retry:\n    initial_delay: 1m\n    max_delay: 1s\n",
			wantErr: "must not exceed max_delay",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, err := LoadFromYAML(path)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

// validateConfig checks that the loaded config has expected values
func validateConfig(t *testing.T, cfg *config.Config, source string) {
	t.Helper()

	require.NotEmpty(t, cfg.Network.GRPCURL, "[%s] network.grpc_url should not be empty", source)
	require.Equal(t, 30*time.Second, cfg.Network.Pool.Timeout.Duration, "[%s] pool timeout", source)
	require.Equal(t, 100, cfg.Events.BatchSize, "[%s] batch size", source)
	require.NotNil(t, cfg.Database.Maintenance, "[%s] maintenance", source)
	require.Equal(t, 30*time.Minute, cfg.Database.Maintenance.CheckInterval.Duration, "[%s] maintenance interval", source)
	require.Len(t, cfg.Events.Filters, 2, "[%s] filters", source)
	require.Equal(t, config.NaviProtocolPackage, cfg.Events.Filters[0].Package, "[%s] first filter", source)
	require.Equal(t, "0x2::coin::CoinMinted", cfg.Events.Filters[1].EventType, "[%s] second filter", source)
	require.Equal(t, "protocol", cfg.Events.Processor.Name, "[%s] processor", source)
	require.Equal(t, "navi_protocol", cfg.Events.Processor.Options["label"], "[%s] processor options", source)

	require.NotNil(t, cfg.Logging, "[%s] logging should be configured", source)
	require.Equal(t, "debug", cfg.Logging.GetComponentLevel("ingester"), "[%s] ingester level", source)
	require.Equal(t, "info", cfg.Logging.GetComponentLevel("store"), "[%s] store level", source)

	require.NotNil(t, cfg.Metrics, "[%s] metrics should be configured", source)
	require.True(t, cfg.Metrics.Enabled, "[%s] metrics enabled", source)
}
