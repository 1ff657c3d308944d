package detector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorizeMixedValues(t *testing.T) {
	v, err := NewVectorizer([]string{"A", "B", "C", "D"})
	require.NoError(t, err)

	x, err := v.Vectorize(NewFeatureMapping(
		Feature{"A", 1},
		Feature{"B", "yes"},
		Feature{"C", -1},
	))
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 1.0, -1.0, 0.0}, x)
}

func TestVectorizeMissingSubsets(t *testing.T) {
	schema := []string{"A", "B", "C", "D", "E"}
	v, err := NewVectorizer(schema)
	require.NoError(t, err)

	// every subset of the schema
	for mask := 0; mask < 1<<len(schema); mask++ {
		var features []Feature
		for i, name := range schema {
			if mask&(1<<i) != 0 {
				features = append(features, Feature{name, 2.5})
			}
		}
		x, err := v.Vectorize(NewFeatureMapping(features...))
		require.NoError(t, err, "mask %b", mask)
		require.Len(t, x, len(schema))
		for i := range schema {
			if mask&(1<<i) != 0 {
				assert.Equal(t, 2.5, x[i])
			} else {
				assert.Equal(t, 0.0, x[i])
			}
		}
	}
}

func TestVectorizeStringTokens(t *testing.T) {
	v, err := NewVectorizer([]string{"f"})
	require.NoError(t, err)

	tests := []struct {
		token string
		want  float64
	}{
		{"yes", 1}, {"YES", 1}, {"Yes", 1},
		{"true", 1}, {"True", 1}, {"TRUE", 1},
		{"1", 1}, {" yes ", 0}, {"true\n", 0},
		{"no", 0}, {"false", 0}, {"0", 0}, {"-1", 0},
		{"", 0}, {"maybe", 0}, {"y", 0},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			x, err := v.Vectorize(NewFeatureMapping(Feature{"f", tt.token}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, x[0])
		})
	}
}

func TestVectorizeNumericAndBool(t *testing.T) {
	v, err := NewVectorizer([]string{"a", "b", "c", "d", "e", "f", "g"})
	require.NoError(t, err)

	x, err := v.Vectorize(NewFeatureMapping(
		Feature{"a", int64(-1)},
		Feature{"b", float32(0.5)},
		Feature{"c", true},
		Feature{"d", false},
		Feature{"e", json.Number("3.25")},
		Feature{"f", nil},
		Feature{"g", uint8(7)},
	))
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0.5, 1, 0, 3.25, 0, 7}, x)
}

func TestVectorizeIgnoresUnknownNames(t *testing.T) {
	v, err := NewVectorizer([]string{"a"})
	require.NoError(t, err)

	x, err := v.Vectorize(NewFeatureMapping(Feature{"a", 1}, Feature{"Extra_Feature_1", 5}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, x)
}

func TestVectorizeUnsupportedType(t *testing.T) {
	v, err := NewVectorizer([]string{"a"})
	require.NoError(t, err)

	_, err = v.Vectorize(NewFeatureMapping(Feature{"a", []int{1}}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVectorizationFailure)
	assert.Contains(t, err.Error(), `feature "a"`)
}

func TestNewVectorizerRejectsBadSchema(t *testing.T) {
	_, err := NewVectorizer(nil)
	assert.Error(t, err)

	_, err = NewVectorizer([]string{"a", "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewVectorizer([]string{"a", ""})
	assert.ErrorContains(t, err, "empty feature name")
}

func TestFeatureMappingOrderAndJSON(t *testing.T) {
	m := NewFeatureMapping(Feature{"z", 1}, Feature{"a", "yes"}, Feature{"z", 2})

	assert.Equal(t, []string{"z", "a"}, m.Names())
	assert.Equal(t, 2, m.Len())
	v, ok := m.Get("z")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"z":2,"a":"yes"}`, string(data))
}
