package features

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesMatchSlots(t *testing.T) {
	assert.Len(t, Names, int(slotCount))
	assert.Equal(t, "UsingIP", Names[slotUsingIP])
	assert.Equal(t, "HTTPS", Names[slotHTTPS])
	assert.Equal(t, "AgeofDomain", Names[slotAgeofDomain])
	assert.Equal(t, "StatsReport", Names[slotStatsReport])

	seen := map[string]bool{}
	for _, n := range Names {
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		domain  string
		wantErr string
	}{
		{raw: "https://www.Example.com/login", host: "www.example.com", domain: "example.com"},
		{raw: "  http://example.com  ", host: "example.com", domain: "example.com"},
		{raw: "http://[::1]:8080/", host: "::1", domain: "::1"},
		{raw: "", wantErr: "url required"},
		{raw: "not-a-valid-url", wantErr: "scheme must be http or https"},
		{raw: "ftp://example.com", wantErr: "scheme must be http or https"},
		{raw: "https://", wantErr: "missing host"},
		{raw: "http://%zz", wantErr: "malformed url"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, err := ValidateURL(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, target.Host)
			assert.Equal(t, tt.domain, target.Domain)
		})
	}
}

func lexical(t *testing.T, raw string) []float64 {
	t.Helper()
	target, err := ValidateURL(raw)
	require.NoError(t, err)
	out := make([]float64, slotCount)
	lexicalFeatures(target, out)
	return out
}

func TestLexicalFeatures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		slot slot
		want float64
	}{
		{"ip host", "http://192.168.10.1/paypal", slotUsingIP, Phishing},
		{"hex ip host", "http://0x58.0xCC.0xCA.0x62/", slotUsingIP, Phishing},
		{"named host", "https://example.com", slotUsingIP, Legitimate},
		{"short url", "https://example.com/a", slotLongURL, Legitimate},
		{"medium url", "https://example.com/" + strings.Repeat("a", 40), slotLongURL, Suspicious},
		{"long url", "https://example.com/" + strings.Repeat("a", 80), slotLongURL, Phishing},
		{"shortener", "https://bit.ly/3xYz", slotShortURL, Phishing},
		{"not shortener", "https://bitlyzer.example.com", slotShortURL, Legitimate},
		{"at symbol", "https://bank.com@evil.example/", slotSymbolAt, Phishing},
		{"no at symbol", "https://bank.com/", slotSymbolAt, Legitimate},
		{"double slash redirect", "https://example.com//http://evil.example", slotRedirecting, Phishing},
		{"scheme slashes only", "https://example.com/path", slotRedirecting, Legitimate},
		{"dash in domain", "https://secure-paypal.example", slotPrefixSuffix, Phishing},
		{"no dash", "https://paypal.com/a-b", slotPrefixSuffix, Legitimate},
		{"one dot", "https://www.example.com", slotSubDomains, Legitimate},
		{"two dots", "https://mail.example.com", slotSubDomains, Suspicious},
		{"many dots", "https://a.b.c.example.com", slotSubDomains, Phishing},
		{"odd port", "https://example.com:8443/", slotNonStdPort, Phishing},
		{"https port", "https://example.com:443/", slotNonStdPort, Legitimate},
		{"default port", "https://example.com/", slotNonStdPort, Legitimate},
		{"https token", "http://https-example.com/", slotHTTPSDomainURL, Phishing},
		{"no https token", "https://example.com/", slotHTTPSDomainURL, Legitimate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := lexical(t, tt.raw)
			assert.Equal(t, tt.want, out[tt.slot], Names[tt.slot])
		})
	}
}
