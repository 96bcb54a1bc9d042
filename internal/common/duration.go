package common

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
)

// Duration is a time.Duration that decodes from and encodes to Go duration
// strings ("30s", "1m30s") in YAML, JSON and TOML config files.
type Duration struct {
	time.Duration
}

// NewDuration wraps d.
func NewDuration(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses a duration string such as "300ms" or "2h45m".
func (d *Duration) UnmarshalText(data []byte) error {
	parsed, err := time.ParseDuration(string(data))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(data), err)
	}

	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration.String form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DurationDescription documents the accepted duration syntax in config schemas.
const DurationDescription = "Duration expressed in units: [ns, us, ms, s, m, h], " +
	"e.g. \"300ms\", \"1m\" or \"1h30m\""

// JSONSchema describes Duration as a string in generated config schemas.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Duration",
		Description: DurationDescription,
		Examples:    []any{"1m", "300ms", "10s"},
	}
}
