package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/longcipher/sui-indexer/internal/common"
	pkgconfig "github.com/longcipher/sui-indexer/pkg/config"
)

// EnvPrefix prefixes every environment override. Nested keys are joined with "__",
// e.g. SUI_INDEXER__NETWORK__GRPC_URL or SUI_INDEXER__EVENTS__BATCH_SIZE.
// Variable names come from the env/envPrefix tags of pkg/config.
const (
	EnvPrefix    = "SUI_INDEXER"
	EnvSeparator = "__"
)

// optionalSections are the sections held by pointer. A section is allocated only
// when one of its variables is set, so an unset section stays unconfigured.
var optionalSections = []struct {
	key   string
	alloc func(cfg *pkgconfig.Config)
}{
	{"LOGGING", func(c *pkgconfig.Config) {
		if c.Logging == nil {
			c.Logging = &pkgconfig.LoggingConfig{}
		}
	}},
	{"METRICS", func(c *pkgconfig.Config) {
		if c.Metrics == nil {
			c.Metrics = &pkgconfig.MetricsConfig{}
		}
	}},
	{"NOTIFY", func(c *pkgconfig.Config) {
		if c.Notify == nil {
			c.Notify = &pkgconfig.NotifyConfig{}
		}
	}},
	{"API", func(c *pkgconfig.Config) {
		if c.API == nil {
			c.API = &pkgconfig.APIConfig{}
		}
	}},
	{"DATABASE__MAINTENANCE", func(c *pkgconfig.Config) {
		if c.Database.Maintenance == nil {
			c.Database.Maintenance = &pkgconfig.MaintenanceConfig{}
		}
	}},
}

func envOptions(environ map[string]string) env.Options {
	return env.Options{
		Prefix:      EnvPrefix + EnvSeparator,
		Environment: environ,
		FuncMap: map[reflect.Type]env.ParserFunc{
			// sequence numbers may be given in hex
			reflect.TypeOf(uint64(0)): func(v string) (any, error) {
				return common.ParseUint64orHex(&v)
			},
		},
	}
}

// Environ returns the SUI_INDEXER__* variables of the process environment.
func Environ() map[string]string {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix+EnvSeparator) {
			vars[k] = v
		}
	}
	return vars
}

// ApplyEnv overlays SUI_INDEXER__* variables from environ onto cfg. Empty variables
// are ignored; values that do not parse are errors.
func ApplyEnv(cfg *pkgconfig.Config, environ map[string]string) error {
	vars := make(map[string]string, len(environ))
	for k, v := range environ {
		v = strings.TrimSpace(v)
		if v != "" && strings.HasPrefix(k, EnvPrefix+EnvSeparator) {
			vars[k] = v
		}
	}
	if len(vars) == 0 {
		return nil
	}

	for _, section := range optionalSections {
		prefix := EnvPrefix + EnvSeparator + section.key + EnvSeparator
		for k := range vars {
			if strings.HasPrefix(k, prefix) {
				section.alloc(cfg)
				break
			}
		}
	}

	if err := env.ParseWithOptions(cfg, envOptions(vars)); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	return nil
}

// EnvKeys returns every supported environment variable name, sorted.
func EnvKeys() ([]string, error) {
	full := &pkgconfig.Config{}
	for _, section := range optionalSections {
		section.alloc(full)
	}

	params, err := env.GetFieldParamsWithOptions(full, envOptions(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to list environment variables: %w", err)
	}

	keys := make([]string, 0, len(params))
	for _, p := range params {
		keys = append(keys, p.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
