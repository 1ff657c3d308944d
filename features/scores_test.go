package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrafficScore(t *testing.T) {
	assert.Equal(t, 1, trafficScore(signals{}))
	assert.Equal(t, 10, trafficScore(signals{ageDays: 400, https: true, sslScore: 100, siteExists: true}))
	assert.Equal(t, 6, trafficScore(signals{ageDays: 200, sslScore: 60, siteExists: true}))
}

func TestTrustScore(t *testing.T) {
	best := signals{ageDays: 4000, https: true, sslScore: 90, hasSPF: true, hasDMARC: true}
	assert.Equal(t, 10, trustScore(best))

	worst := signals{ageDays: 3, blacklistCount: 5, googleFlagged: true}
	assert.Equal(t, 1, trustScore(worst))

	// 1 + https 2 + age 1 + one listing 1 + not flagged 1
	assert.Equal(t, 6, trustScore(signals{ageDays: 200, https: true, blacklistCount: 1}))
}

func TestScoreFeatures(t *testing.T) {
	out := make([]float64, slotCount)

	scoreFeatures(signals{ageDays: 400, https: true, sslScore: 100, siteExists: true}, out)
	assert.Equal(t, Legitimate, out[slotWebsiteTraffic])
	assert.Equal(t, Legitimate, out[slotPageRank])

	scoreFeatures(signals{ageDays: 200, sslScore: 60, siteExists: true}, out)
	assert.Equal(t, Suspicious, out[slotWebsiteTraffic])
	assert.Equal(t, Suspicious, out[slotPageRank])

	scoreFeatures(signals{ageDays: 1, googleFlagged: true, blacklistCount: 3}, out)
	assert.Equal(t, Phishing, out[slotWebsiteTraffic])
	assert.Equal(t, Phishing, out[slotPageRank])
}
