package gateway

import "github.com/hivellm/synap/internal/synaperr"

// payload is the decoded form of a command envelope's payload object
// (spec.md §6): a loosely-typed map, the same shape a JSON transport would
// hand the gateway after unmarshaling. Handlers extract typed fields from it
// with the helpers below, which return OutOfRange on a missing/mistyped
// required field rather than panicking.
type payload map[string]any

func (p payload) str(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", synaperr.New(synaperr.OutOfRange, "missing required field "+key)
	}
	s, ok := v.(string)
	if !ok {
		return "", synaperr.New(synaperr.OutOfRange, "field "+key+" must be a string")
	}
	return s, nil
}

func (p payload) strOr(key, fallback string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

func (p payload) strs(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, nil
		}
		return nil, synaperr.New(synaperr.OutOfRange, "field "+key+" must be an array")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, synaperr.New(synaperr.OutOfRange, "field "+key+" must be an array of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func (p payload) float(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, synaperr.New(synaperr.OutOfRange, "missing required field "+key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, synaperr.New(synaperr.OutOfRange, "field "+key+" must be a number")
	}
}

func (p payload) floatOr(key string, fallback float64) float64 {
	v, err := p.float(key)
	if err != nil {
		return fallback
	}
	return v
}

func (p payload) int(key string) (int, error) {
	f, err := p.float(key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (p payload) intOr(key string, fallback int) int {
	v, err := p.int(key)
	if err != nil {
		return fallback
	}
	return v
}

func (p payload) int64(key string) (int64, error) {
	f, err := p.float(key)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func (p payload) int64Or(key string, fallback int64) int64 {
	v, err := p.int64(key)
	if err != nil {
		return fallback
	}
	return v
}

func (p payload) boolOr(key string, fallback bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

func (p payload) maps(key string) ([]map[string]any, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, synaperr.New(synaperr.OutOfRange, "field "+key+" must be an array")
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, synaperr.New(synaperr.OutOfRange, "field "+key+" must be an array of objects")
		}
		out = append(out, m)
	}
	return out, nil
}
