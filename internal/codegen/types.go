package codegen

import (
	"strings"
	"unicode"
)

const (
	rawJSONType = "json.RawMessage"
	stringType  = "string"
)

// stringTypes are Move types rendered as JSON strings.
var stringTypes = map[string]bool{
	"address":             true,
	"u64":                 true,
	"u128":                true,
	"u256":                true,
	"ID":                  true,
	"String":              true,
	"0x1::string::String": true,
	"0x1::ascii::String":  true,
	"0x2::object::ID":     true,
	"std::string::String": true,
	"std::ascii::String":  true,
	"sui::object::ID":     true,
}

// GoTypeName converts a Move type to the Go type its JSON form decodes into.
func GoTypeName(moveType string) string {
	switch moveType {
	case "bool":
		return "bool"
	case "u8":
		return "uint8"
	case "u16":
		return "uint16"
	case "u32":
		return "uint32"
	}

	if stringTypes[moveType] {
		return stringType
	}

	if inner, ok := strings.CutPrefix(moveType, "vector<"); ok && strings.HasSuffix(inner, ">") {
		inner = strings.TrimSuffix(inner, ">")
		// vector<u8> is a JSON array of numbers, which []byte would read as base64.
		if inner == "u8" {
			return rawJSONType
		}
		elem := GoTypeName(inner)
		if elem == rawJSONType {
			return rawJSONType
		}
		return "[]" + elem
	}

	return rawJSONType
}

// IsScalar reports whether a Move type decodes into a Go string, bool or integer.
func IsScalar(moveType string) bool {
	switch GoTypeName(moveType) {
	case stringType, "bool", "uint8", "uint16", "uint32":
		return true
	default:
		return false
	}
}

// AttributeExpr returns the Go expression converting field f of receiver recv to a string.
func AttributeExpr(f EventField, recv string) string {
	sel := recv + "." + GoFieldName(f.Name)
	if GoTypeName(f.Type) == stringType {
		return sel
	}
	return "fmt.Sprint(" + sel + ")"
}

// GoFieldName converts a Move field name to an exported Go field name.
// Examples: "coin_type" -> "CoinType", "pool_id" -> "PoolID"
func GoFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	for i, part := range parts {
		if initialism := strings.ToUpper(part); initialisms[initialism] {
			parts[i] = initialism
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}

	out := strings.Join(parts, "")
	if out == "" || !unicode.IsLetter(rune(out[0])) {
		out = "F" + out
	}
	return out
}

var initialisms = map[string]bool{
	"ID":   true,
	"URL":  true,
	"URI":  true,
	"NFT":  true,
	"JSON": true,
}

// ToSnakeCase converts a string from camelCase or PascalCase to snake_case.
func ToSnakeCase(s string) string {
	result := make([]rune, 0, len(s)+len(s))
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(s[i-1])) {
			result = append(result, '_')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

// ToPascalCase converts a string to PascalCase.
func ToPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})

	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}

	return strings.Join(parts, "")
}
