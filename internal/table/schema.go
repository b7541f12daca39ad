package table

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Type is the declared type of a field
type Type int

const (
	Text Type = iota + 1
	Integer
	Real
	Blob
	JSON
)

// SQLType returns the SQLite column type used to store t
func (t Type) SQLType() string {
	switch t {
	case Text, JSON:
		return "TEXT"
	case Integer:
		return "INTEGER"
	case Real:
		return "REAL"
	case Blob:
		return "BLOB"
	default:
		return ""
	}
}

func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Blob:
		return "blob"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// IDField is the name of the implicit auto-increment primary key
const IDField = "id"

// Field declares one column
type Field struct {
	Name string
	Type Type
}

// Schema is the ordered list of declared fields, not including the id
type Schema []Field

// Row is a set of field values keyed by field name
type Row map[string]any

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidIdentifier reports whether name can be used as a table or field name
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

func quote(name string) string {
	return `"` + name + `"`
}

// Validate checks field names and types
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if !ValidIdentifier(f.Name) {
			return fmt.Errorf("invalid field name %q", f.Name)
		}
		if strings.EqualFold(f.Name, IDField) {
			return fmt.Errorf("field name %q is reserved", f.Name)
		}
		key := strings.ToLower(f.Name)
		if seen[key] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[key] = true
		if f.Type.SQLType() == "" {
			return fmt.Errorf("field %q has unknown type %d", f.Name, int(f.Type))
		}
	}
	return nil
}

// Names returns the field names in declaration order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// KeysValidationError reports row keys that do not fit the schema
type KeysValidationError struct {
	Missing    []string
	Unexpected []string
}

func (e *KeysValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing keys: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected keys: "+strings.Join(e.Unexpected, ", "))
	}
	return "keys validation failed: " + strings.Join(parts, "; ")
}

// validateKeys checks the keys of row against allowed. With fullMatch every
// allowed key must be present as well.
func validateKeys[V any](row map[string]V, allowed map[string]Type, fullMatch bool) error {
	var verr KeysValidationError
	for k := range row {
		if _, ok := allowed[k]; !ok {
			verr.Unexpected = append(verr.Unexpected, k)
		}
	}
	if fullMatch {
		for k := range allowed {
			if _, ok := row[k]; !ok {
				verr.Missing = append(verr.Missing, k)
			}
		}
	}
	if len(verr.Missing) == 0 && len(verr.Unexpected) == 0 {
		return nil
	}
	sort.Strings(verr.Missing)
	sort.Strings(verr.Unexpected)
	return &verr
}

// TypeMismatchError reports a value that cannot be stored in its field
type TypeMismatchError struct {
	Field string
	Want  Type
	Got   any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("field %s: cannot store %T as %s", e.Field, e.Got, e.Want)
}

// encode converts v into the value bound for a column of type t
func encode(name string, t Type, v any) (any, error) {
	mismatch := &TypeMismatchError{Field: name, Want: t, Got: v}

	if t == JSON {
		data, err := marshalJSON(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		return data, nil
	}

	switch t {
	case Text:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		if i, ok := toInt64(v); ok {
			return i, nil
		}
	case Real:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case Blob:
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
	}
	return nil, mismatch
}

// marshalJSON encodes v without HTML escaping so stored text matches the
// plain characters a substring search asks for.
func marshalJSON(v any) (string, error) {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// jsonNeedle escapes s the way marshalJSON escapes string content.
func jsonNeedle(s string) string {
	quoted, err := marshalJSON(s)
	if err != nil {
		return s
	}
	return quoted[1 : len(quoted)-1]
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case float64:
		// JSON numbers decode as float64
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return int64(n), true
		}
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		if _, isBool := v.(bool); isBool {
			return 0, false
		}
		return float64(i), true
	}
	return 0, false
}
