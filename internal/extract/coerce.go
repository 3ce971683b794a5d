package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwright/cloudwright/internal/catalog"
)

// coerceValue forces a raw model value into the field's declared type.
// Model output is untyped JSON, so numbers arrive as json.Number and
// quoted scalars as strings; both directions are accepted.
func coerceValue(spec catalog.FieldSpec, raw any) (any, error) {
	switch spec.Type {
	case catalog.TypeString:
		return coerceString(raw)
	case catalog.TypeInteger:
		return coerceInt(raw)
	case catalog.TypeBoolean:
		return coerceBool(raw)
	case catalog.TypeEnum:
		return coerceEnum(spec, raw)
	case catalog.TypeList:
		return coerceList(spec, raw)
	case catalog.TypeObject:
		return coerceObject(raw)
	default:
		return nil, fmt.Errorf("unsupported field type %q", spec.Type)
	}
}

func coerceString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return strconv.FormatBool(v), nil
	}
	return "", fmt.Errorf("cannot read %T as string", raw)
}

func coerceInt(raw any) (int, error) {
	switch v := raw.(type) {
	case json.Number:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", v.String())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", v)
		}
		return n, nil
	case int:
		return v, nil
	case float64:
		n := int(v)
		if float64(n) != v {
			return 0, fmt.Errorf("%v is not a whole number", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("cannot read %T as integer", raw)
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		switch s {
		case "yes", "enabled", "on":
			return true, nil
		case "no", "disabled", "off":
			return false, nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return false, fmt.Errorf("%q is not a boolean", v)
		}
		return b, nil
	case json.Number:
		switch v.String() {
		case "1":
			return true, nil
		case "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("cannot read %T as boolean", raw)
}

// coerceEnum canonicalizes case to the declared value so downstream
// comparisons stay exact.
func coerceEnum(spec catalog.FieldSpec, raw any) (string, error) {
	s, err := coerceString(raw)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	for _, allowed := range spec.Enum {
		if strings.EqualFold(s, allowed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %s", s, strings.Join(spec.Enum, ", "))
}

func coerceList(spec catalog.FieldSpec, raw any) ([]string, error) {
	if spec.ElemType() != catalog.TypeString {
		return nil, fmt.Errorf("unsupported list element type %q", spec.ElemType())
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, err := coerceString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot read %T as list", raw)
}

// coerceObject accepts either a plain key/value map or the Key/Value entry
// list some replies mimic from API examples.
func coerceObject(raw any) (map[string]string, error) {
	switch v := raw.(type) {
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, e := range v {
			s, err := coerceString(e)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = s
		}
		return out, nil
	case []any:
		out := make(map[string]string, len(v))
		for _, e := range v {
			entry, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("cannot read %T as a Key/Value entry", e)
			}
			key, err := coerceString(entry["Key"])
			if err != nil || key == "" {
				return nil, fmt.Errorf("Key/Value entry is missing its Key")
			}
			val, err := coerceString(entry["Value"])
			if err != nil {
				return nil, fmt.Errorf("entry %q: %w", key, err)
			}
			out[key] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot read %T as key/value map", raw)
}
