package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseUint64orHex(t *testing.T) {
	tests := []struct {
		name    string
		input   *string
		want    uint64
		wantErr bool
	}{
		{name: "nil input", input: nil, want: 0},
		{name: "decimal string", input: strPtr("12345"), want: 12345},
		{name: "hex string with 0x prefix", input: strPtr("0x1a2b"), want: 0x1a2b},
		{name: "invalid decimal string", input: strPtr("12abc"), wantErr: true},
		{name: "invalid hex string", input: strPtr("0xGHIJK"), wantErr: true},
		{name: "empty string", input: strPtr(""), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUint64orHex(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStringUint64_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StringUint64
		wantErr bool
	}{
		{name: "decimal string", input: `"1700000000123"`, want: 1700000000123},
		{name: "plain number", input: `42`, want: 42},
		{name: "null", input: `null`, want: 0},
		{name: "empty string", input: `""`, want: 0},
		{name: "garbage", input: `"twelve"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringUint64
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestStringUint64_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(StringUint64(981))
	require.NoError(t, err)
	require.JSONEq(t, `"981"`, string(data))
}

func strPtr(s string) *string {
	return &s
}
