package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	schema := []string{"Symbol@", "HTTPS", "AgeofDomain", "SubDomains", "PageRank"}
	s := Summarize(schema, []float64{-1, 1, 1, 0, -1})

	assert.Len(t, s.Features, 5)
	assert.Equal(t, "dangerous", s.Features[0].Interpretation)
	assert.Equal(t, "safe", s.Features[1].Interpretation)
	assert.Equal(t, "suspicious", s.Features[3].Interpretation)

	assert.Equal(t, 2, s.RiskScore)
	assert.Equal(t, 2, s.SafetyScore)
	assert.Equal(t, []string{"URL contains @ symbol"}, s.RiskFactors)
	assert.Equal(t, []string{"uses trusted HTTPS", "domain is well established"}, s.SafetyFactors)
	assert.Equal(t, "Risk score: 2, safety score: 2. Issues: URL contains @ symbol", s.Reason)
}

func TestSummarizeClean(t *testing.T) {
	s := Summarize([]string{"HTTPS"}, []float64{1})

	assert.Empty(t, s.RiskFactors)
	assert.Equal(t, "Risk score: 0, safety score: 1. No notable risk factors", s.Reason)
}

func TestSummarizeShortVector(t *testing.T) {
	s := Summarize([]string{"a", "b"}, []float64{1})
	assert.Len(t, s.Features, 1)
}
