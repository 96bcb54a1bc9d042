package codegen

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	identRe    = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	structRe   = regexp.MustCompile(`^[A-Z][a-zA-Z0-9_]*$`)
	moveTypeRe = regexp.MustCompile(`^[a-zA-Z0-9_:]+(<.+>)?$`)
)

// EventField is one field of a Move event struct.
type EventField struct {
	Name string // Field name as it appears in the event JSON (e.g., "amount")
	Type string // Move type (e.g., "u64", "address", "vector<u8>")
}

// EventSignature is a parsed Move event declaration.
type EventSignature struct {
	Raw    string       // Original signature string
	Module string       // Move module (e.g., "pool")
	Name   string       // Struct name (e.g., "DepositEvent")
	Fields []EventField // Struct fields
}

// ParseEventSignature parses an event declaration.
// Supported formats:
//   - "pool::DepositEvent"
//   - "pool::DepositEvent()"
//   - "pool::DepositEvent(amount: u64, owner: address, coin_type: 0x1::ascii::String)"
func ParseEventSignature(sig string) (*EventSignature, error) {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return nil, fmt.Errorf("empty signature")
	}

	head, body := sig, ""
	if open := strings.Index(sig, "("); open != -1 {
		if !strings.HasSuffix(sig, ")") {
			return nil, fmt.Errorf("invalid signature: missing closing parenthesis")
		}
		head, body = strings.TrimSpace(sig[:open]), sig[open+1:len(sig)-1]
	} else if strings.Contains(sig, ")") {
		return nil, fmt.Errorf("invalid signature: missing opening parenthesis")
	}

	module, name, ok := strings.Cut(head, "::")
	if !ok {
		return nil, fmt.Errorf("invalid signature: expected module::Struct, got '%s'", head)
	}
	module, name = strings.TrimSpace(module), strings.TrimSpace(name)

	if !identRe.MatchString(module) {
		return nil, fmt.Errorf("invalid module name '%s'", module)
	}
	if !structRe.MatchString(name) {
		return nil, fmt.Errorf("invalid struct name '%s': must start "+
			"with uppercase letter and contain only alphanumeric characters", name)
	}

	fields, err := parseFields(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fields: %w", err)
	}

	return &EventSignature{
		Raw:    sig,
		Module: module,
		Name:   name,
		Fields: fields,
	}, nil
}

func parseFields(body string) ([]EventField, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return []EventField{}, nil
	}

	parts, err := splitFields(body)
	if err != nil {
		return nil, err
	}

	fields := make([]EventField, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for _, part := range parts {
		field, err := parseField(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid field '%s': %w", strings.TrimSpace(part), err)
		}
		if seen[field.Name] {
			return nil, fmt.Errorf("duplicate field name: %s", field.Name)
		}
		seen[field.Name] = true
		fields = append(fields, field)
	}

	return fields, nil
}

// splitFields splits on top-level commas. Commas inside type arguments are kept.
func splitFields(body string) ([]string, error) {
	var (
		fields  []string
		current strings.Builder
		depth   int
	)

	for _, ch := range body {
		switch ch {
		case '<':
			depth++
		case '>':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced type arguments")
			}
		case ',':
			if depth == 0 {
				fields = append(fields, current.String())
				current.Reset()
				continue
			}
		}
		current.WriteRune(ch)
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced type arguments")
	}

	if strings.TrimSpace(current.String()) != "" || len(fields) > 0 {
		fields = append(fields, current.String())
	}
	return fields, nil
}

// parseField parses "name: type".
func parseField(s string) (EventField, error) {
	if s == "" {
		return EventField{}, fmt.Errorf("empty field")
	}

	name, typ, ok := strings.Cut(s, ":")
	// "0x1::string::String" alone has no name; a field needs "name:" first.
	if !ok || strings.HasPrefix(typ, ":") {
		return EventField{}, fmt.Errorf("expected 'name: type'")
	}

	field := EventField{
		Name: strings.TrimSpace(name),
		Type: strings.Join(strings.Fields(typ), ""),
	}

	if !identRe.MatchString(field.Name) {
		return EventField{}, fmt.Errorf("invalid field name: %s", field.Name)
	}
	if !moveTypeRe.MatchString(field.Type) {
		return EventField{}, fmt.Errorf("invalid Move type: %s", field.Type)
	}

	return field, nil
}

// QualifiedName returns "module::Struct".
func (e *EventSignature) QualifiedName() string {
	return e.Module + "::" + e.Name
}

// ScalarFields returns the fields that can be flattened into string attributes.
// A field named "event" is left out: that attribute holds the struct name.
func (e *EventSignature) ScalarFields() []EventField {
	var out []EventField
	for _, f := range e.Fields {
		if IsScalar(f.Type) && f.Name != "event" {
			out = append(out, f)
		}
	}
	return out
}
