package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWhoisDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1997-09-15T04:00:00Z", time.Date(1997, 9, 15, 4, 0, 0, 0, time.UTC)},
		{"2024-08-14 07:01:44", time.Date(2024, 8, 14, 7, 1, 44, 0, time.UTC)},
		{"  2020-01-02 ", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"02-Jan-2006", time.Date(2006, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"2011.03.04", time.Date(2011, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"last tuesday", time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.True(t, tt.want.Equal(parseWhoisDate(tt.in)), "got %v", parseWhoisDate(tt.in))
		})
	}
}

func TestWhoisFeatures(t *testing.T) {
	now := fixedNow
	tests := []struct {
		name   string
		url    string
		rec    *WhoisRecord
		regLen float64
		age    float64
		abnorm float64
	}{
		{
			name:   "established",
			url:    "https://www.example.com/",
			rec:    &WhoisRecord{Domain: "example.com", Created: now.AddDate(-20, 0, 0), Expires: now.AddDate(2, 0, 0)},
			regLen: Legitimate, age: Legitimate, abnorm: Legitimate,
		},
		{
			name:   "fresh short registration",
			url:    "https://login.example-verify.net/",
			rec:    &WhoisRecord{Domain: "example-verify.net", Created: now.AddDate(0, 0, -12), Expires: now.AddDate(0, 11, 0)},
			regLen: Phishing, age: Phishing, abnorm: Legitimate,
		},
		{
			name:   "registered name differs",
			url:    "https://paypal.example/",
			rec:    &WhoisRecord{Domain: "other.example", Created: now.AddDate(-2, 0, 0), Expires: now.AddDate(2, 0, 0)},
			regLen: Legitimate, age: Legitimate, abnorm: Phishing,
		},
		{
			name:   "record without dates or name",
			url:    "https://example.org/",
			rec:    &WhoisRecord{},
			regLen: Phishing, age: Phishing, abnorm: Suspicious,
		},
		{
			name:   "no record",
			url:    "https://example.org/",
			regLen: Phishing, age: Phishing, abnorm: Phishing,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := ValidateURL(tt.url)
			require.NoError(t, err)
			out := make([]float64, slotCount)
			whoisFeatures(target, tt.rec, now, out)

			assert.Equal(t, tt.regLen, out[slotDomainRegLen], "DomainRegLen")
			assert.Equal(t, tt.age, out[slotAgeofDomain], "AgeofDomain")
			assert.Equal(t, tt.abnorm, out[slotAbnormalURL], "AbnormalURL")
		})
	}
}

func TestWhoisAgeDays(t *testing.T) {
	var missing *WhoisRecord
	assert.Zero(t, missing.ageDays(fixedNow))
	assert.Zero(t, (&WhoisRecord{}).ageDays(fixedNow))
	assert.Equal(t, 10, (&WhoisRecord{Created: fixedNow.AddDate(0, 0, -10)}).ageDays(fixedNow))
}
