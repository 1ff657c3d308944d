package detector

import (
	"bytes"
	"encoding/json"
)

// Feature is one named raw feature value: a number, a bool, or a string token.
type Feature struct {
	Name  string
	Value any
}

// FeatureMapping is an immutable, insertion-ordered mapping of feature names
// to raw values.
type FeatureMapping struct {
	names  []string
	values map[string]any
}

// NewFeatureMapping builds a mapping from features in order. A repeated name
// keeps its first position and takes the last value.
func NewFeatureMapping(features ...Feature) FeatureMapping {
	m := FeatureMapping{
		names:  make([]string, 0, len(features)),
		values: make(map[string]any, len(features)),
	}
	for _, f := range features {
		if _, ok := m.values[f.Name]; !ok {
			m.names = append(m.names, f.Name)
		}
		m.values[f.Name] = f.Value
	}
	return m
}

// MappingFromValues zips names with values. Both must have the same length.
func MappingFromValues(names []string, values []float64) FeatureMapping {
	features := make([]Feature, len(names))
	for i, name := range names {
		features[i] = Feature{Name: name, Value: values[i]}
	}
	return NewFeatureMapping(features...)
}

func (m FeatureMapping) Get(name string) (any, bool) {
	v, ok := m.values[name]
	return v, ok
}

func (m FeatureMapping) Len() int {
	return len(m.names)
}

// Names returns a copy of the feature names in order.
func (m FeatureMapping) Names() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// MarshalJSON encodes the mapping as a JSON object preserving order.
func (m FeatureMapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range m.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
