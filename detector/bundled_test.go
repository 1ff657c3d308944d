package detector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"phishing-detector/detector"
	"phishing-detector/features"
)

func TestBundledModelMatchesSchema(t *testing.T) {
	store := detector.NewStore("../model/model.json", features.Names, zaptest.NewLogger(t))
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Shutdown()

	info := store.Info()
	assert.Equal(t, "logistic", info.ModelType)
	assert.True(t, info.Probabilistic)
	assert.Equal(t, len(features.Names), info.Features)

	legit := make([]float64, len(features.Names))
	phish := make([]float64, len(features.Names))
	for i := range legit {
		legit[i] = features.Legitimate
		phish[i] = features.Phishing
	}

	p, err := store.Predict(legit)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Label)

	p, err = store.Predict(phish)
	require.NoError(t, err)
	assert.Equal(t, -1, p.Label)
	assert.Greater(t, p.Confidence, 0.99)
}
