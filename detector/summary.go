package detector

import (
	"fmt"
	"strings"
)

// FeatureVerdict interprets a single vector entry on the -1/0/1 scale.
type FeatureVerdict struct {
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	Interpretation string  `json:"interpretation"`
}

// Summary explains a vector in human terms. It does not influence the
// model's verdict.
type Summary struct {
	Features      []FeatureVerdict `json:"feature_analysis"`
	RiskFactors   []string         `json:"risk_factors"`
	SafetyFactors []string         `json:"safety_factors"`
	RiskScore     int              `json:"risk_score"`
	SafetyScore   int              `json:"safety_score"`
	Reason        string           `json:"reason"`
}

// Features whose phishing value is reported as a risk factor.
var riskFactors = map[string]string{
	"Symbol@":           "URL contains @ symbol",
	"Redirecting//":     "URL redirects with //",
	"PrefixSuffix-":     "domain has prefix-suffix dash",
	"HTTPS":             "no trusted HTTPS",
	"RequestURL":        "most embedded objects load from other domains",
	"LinksInScriptTags": "script and link tags point to other domains",
	"DisableRightClick": "right click disabled",
	"IframeRedirection": "invisible iframe redirection",
	"UsingPopupWindow":  "popup window asks for input",
	"StatsReport":       "listed in phishing or abuse reports",
}

// Features whose legitimate value is reported as a safety factor.
var safetyFactors = map[string]string{
	"HTTPS":          "uses trusted HTTPS",
	"DomainRegLen":   "domain registered for a long period",
	"AgeofDomain":    "domain is well established",
	"WebsiteTraffic": "website traffic looks normal",
	"PageRank":       "site reputation is good",
	"GoogleIndex":    "not flagged by Safe Browsing",
}

// Summarize interprets x against the schema it was built from.
func Summarize(schema []string, x []float64) Summary {
	s := Summary{
		Features:      make([]FeatureVerdict, 0, len(x)),
		RiskFactors:   []string{},
		SafetyFactors: []string{},
	}

	for i, name := range schema {
		if i >= len(x) {
			break
		}
		v := x[i]
		fv := FeatureVerdict{Name: name, Value: v}
		switch {
		case v >= 1:
			fv.Interpretation = "safe"
			s.SafetyScore++
			if label, ok := safetyFactors[name]; ok {
				s.SafetyFactors = append(s.SafetyFactors, label)
			}
		case v <= -1:
			fv.Interpretation = "dangerous"
			s.RiskScore++
			if label, ok := riskFactors[name]; ok {
				s.RiskFactors = append(s.RiskFactors, label)
			}
		default:
			fv.Interpretation = "suspicious"
		}
		s.Features = append(s.Features, fv)
	}

	s.Reason = buildReason(s)
	return s
}

func buildReason(s Summary) string {
	if len(s.RiskFactors) == 0 {
		return fmt.Sprintf("Risk score: %d, safety score: %d. No notable risk factors", s.RiskScore, s.SafetyScore)
	}
	return fmt.Sprintf("Risk score: %d, safety score: %d. Issues: %s",
		s.RiskScore, s.SafetyScore, strings.Join(s.RiskFactors, ", "))
}
