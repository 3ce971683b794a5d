package catalog

// ParameterSet maps declared field names to typed values for one operation
// instance. Values are stored post-coercion: string, int, bool, []string,
// or map[string]string depending on the field type. Accessors also accept
// the shapes a JSON round trip through the session store produces, where
// ints come back as float64 and typed slices and maps lose their element
// types.
type ParameterSet map[string]any

func (p ParameterSet) Has(name string) bool {
	_, ok := p[name]
	return ok
}

func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case []string:
			cp := make([]string, len(val))
			copy(cp, val)
			out[k] = cp
		case map[string]string:
			cp := make(map[string]string, len(val))
			for mk, mv := range val {
				cp[mk] = mv
			}
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

func (p ParameterSet) String(name string) (string, bool) {
	v, ok := p[name].(string)
	return v, ok
}

func (p ParameterSet) Int(name string) (int, bool) {
	switch v := p[name].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func (p ParameterSet) Bool(name string) (bool, bool) {
	v, ok := p[name].(bool)
	return v, ok
}

func (p ParameterSet) StringSlice(name string) ([]string, bool) {
	switch v := p[name].(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func (p ParameterSet) StringMap(name string) (map[string]string, bool) {
	switch v := p[name].(type) {
	case map[string]string:
		return v, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for mk, mv := range v {
			s, ok := mv.(string)
			if !ok {
				return nil, false
			}
			out[mk] = s
		}
		return out, true
	}
	return nil, false
}
