// Package catalog holds the declarative parameter schemas for every
// supported (service, operation) pair. Schemas are registered once at
// startup and are immutable afterwards; concurrent reads need no locking
// beyond the registry's own.
package catalog

import "fmt"

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
	TypeList    FieldType = "list"
	TypeObject  FieldType = "object"
)

// FieldSpec describes one accepted parameter of an operation.
type FieldSpec struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool
	Default     any       // filled in for absent optional fields after extraction
	Enum        []string  // valid values for TypeEnum
	Min         *int      // lower bound for TypeInteger
	Max         *int      // upper bound for TypeInteger
	Elem        FieldType // element type for TypeList; TypeString when unset
}

// ElemType returns the declared list element type, defaulting to string.
func (f FieldSpec) ElemType() FieldType {
	if f.Elem == "" {
		return TypeString
	}
	return f.Elem
}

// AllowsValue reports whether v is one of the field's enum values.
func (f FieldSpec) AllowsValue(v string) bool {
	for _, e := range f.Enum {
		if e == v {
			return true
		}
	}
	return false
}

// OperationSchema is the declarative contract for a single operation.
// Mutating marks operations that change provider state and therefore
// require an explicit confirmation before execution.
type OperationSchema struct {
	Service     string
	Operation   string
	Description string
	Mutating    bool
	Fields      []FieldSpec
}

func (s *OperationSchema) Key() string {
	return s.Service + "/" + s.Operation
}

// Field returns the spec for name, if declared.
func (s *OperationSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns the declared required fields in schema order.
func (s *OperationSchema) RequiredFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// check verifies the schema's own invariants before registration:
// unique field names, enum fields carry values, required fields carry
// no default (defaults on required fields would mask missing input).
func (s *OperationSchema) check() error {
	if s.Service == "" || s.Operation == "" {
		return fmt.Errorf("schema requires service and operation")
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Key())
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %q", s.Key(), f.Name)
		}
		seen[f.Name] = true
		if f.Type == TypeEnum && len(f.Enum) == 0 {
			return fmt.Errorf("schema %s: enum field %q has no values", s.Key(), f.Name)
		}
		if f.Required && f.Default != nil {
			return fmt.Errorf("schema %s: required field %q must not carry a default", s.Key(), f.Name)
		}
	}
	return nil
}
