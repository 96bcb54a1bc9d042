package common

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseUint64orHex converts the given uint64 string into the number.
// It can parse the string with 0x prefix as well.
func ParseUint64orHex(val *string) (uint64, error) {
	if val == nil {
		return 0, nil
	}

	str := *val
	base := 10

	if strings.HasPrefix(str, "0x") {
		str = str[2:]
		base = 16
	}

	return strconv.ParseUint(str, base, 64)
}

// StringUint64 is a uint64 that full nodes encode as a decimal JSON string
// (sequence numbers, timestamps, gas amounts). Plain JSON numbers are
// accepted too.
type StringUint64 uint64

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringUint64) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}

	v, err := ParseUint64orHex(&raw)
	if err != nil {
		return fmt.Errorf("invalid numeric string %s: %w", string(data), err)
	}

	*s = StringUint64(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s StringUint64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(s), 10) + `"`), nil
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
