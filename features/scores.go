package features

// signals are the probe results the derived heuristics combine.
type signals struct {
	ageDays        int
	https          bool
	sslScore       int
	siteExists     bool
	blacklistCount int
	googleFlagged  bool
	hasSPF         bool
	hasDMARC       bool
}

// trafficScore estimates how established a site is, 1-10.
func trafficScore(s signals) int {
	score := 1

	if s.ageDays > 365 {
		score += 2
	} else if s.ageDays > 180 {
		score++
	}

	if s.https {
		score += 2
	}

	if s.sslScore >= 80 {
		score += 2
	} else if s.sslScore >= 60 {
		score++
	}

	if s.siteExists {
		score += 3
	}

	return clampScore(score)
}

// trustScore rates security and reputation signals, 1-10.
func trustScore(s signals) int {
	score := 1

	if s.https {
		score += 2
	}

	switch {
	case s.ageDays > 365:
		score += 2
	case s.ageDays > 180:
		score++
	case s.ageDays < 60:
		score--
	}

	switch {
	case s.blacklistCount == 0:
		score += 2
	case s.blacklistCount == 1:
		score++
	default:
		score -= s.blacklistCount
	}

	if s.googleFlagged {
		score -= 2
	} else {
		score++
	}

	if s.hasSPF && s.hasDMARC {
		score++
	}

	if s.sslScore >= 80 {
		score++
	}

	return clampScore(score)
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func bucket(score, legit, suspicious int) float64 {
	switch {
	case score >= legit:
		return Legitimate
	case score >= suspicious:
		return Suspicious
	default:
		return Phishing
	}
}

// scoreFeatures fills WebsiteTraffic and PageRank.
func scoreFeatures(s signals, out []float64) {
	out[slotWebsiteTraffic] = bucket(trafficScore(s), 8, 5)
	out[slotPageRank] = bucket(trustScore(s), 7, 4)
}
