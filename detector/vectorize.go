package detector

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Vectorizer turns a FeatureMapping into the fixed-order vector a model was
// trained on. Absent features are zero-filled: extraction sources evolve
// independently of the trained schema.
type Vectorizer struct {
	schema []string
}

// NewVectorizer returns a Vectorizer over the ordered schema. The schema must
// be non-empty and free of duplicates.
func NewVectorizer(schema []string) (*Vectorizer, error) {
	if len(schema) == 0 {
		return nil, fmt.Errorf("empty feature schema")
	}
	seen := make(map[string]struct{}, len(schema))
	for _, name := range schema {
		if name == "" {
			return nil, fmt.Errorf("empty feature name in schema")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate feature name in schema: %s", name)
		}
		seen[name] = struct{}{}
	}
	s := make([]string, len(schema))
	copy(s, schema)
	return &Vectorizer{schema: s}, nil
}

// Schema returns a copy of the ordered feature names.
func (v *Vectorizer) Schema() []string {
	out := make([]string, len(v.schema))
	copy(out, v.schema)
	return out
}

// Size is the vector length N.
func (v *Vectorizer) Size() int {
	return len(v.schema)
}

// Vectorize always returns exactly Size() entries. It fails only when a
// present value has a type no numeric reading exists for.
func (v *Vectorizer) Vectorize(m FeatureMapping) ([]float64, error) {
	out := make([]float64, len(v.schema))
	for i, name := range v.schema {
		raw, ok := m.Get(name)
		if !ok {
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			return nil, vectorizationFailure(err, "feature %q", name)
		}
		out[i] = f
	}
	return out, nil
}

var truthyTokens = map[string]struct{}{
	"yes":  {},
	"true": {},
	"1":    {},
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid number %q: %w", x.String(), err)
		}
		return f, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		if _, ok := truthyTokens[strings.ToLower(x)]; ok {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", raw)
	}
}
