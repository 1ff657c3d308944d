package features

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDNS(t *testing.T) {
	rec := lookupDNS(context.Background(), cleanResolver(), "example.com", []string{"93.184.216.34"})
	assert.True(t, rec.HasMX)
	assert.True(t, rec.HasSPF)
	assert.True(t, rec.HasDMARC)
	assert.Equal(t, Legitimate, dnsFeature(rec))

	rec = lookupDNS(context.Background(), &fakeResolver{}, "bare.example", []string{"10.0.0.1"})
	assert.False(t, rec.HasMX)
	assert.Equal(t, Suspicious, dnsFeature(rec))

	assert.Equal(t, Phishing, dnsFeature(DNSRecords{}))
}

func TestFirstIPv4(t *testing.T) {
	assert.Equal(t, "1.2.3.4", firstIPv4([]string{"2001:db8::1", "1.2.3.4"}))
	assert.Equal(t, "2001:db8::1", firstIPv4([]string{"2001:db8::1"}))
	assert.Equal(t, "", firstIPv4(nil))
}

func TestHTTPSFeature(t *testing.T) {
	https, _ := ValidateURL("https://example.com")
	plain, _ := ValidateURL("http://example.com")

	assert.Equal(t, Legitimate, httpsFeature(https, TLSResult{Reachable: true, Verified: true, DaysLeft: 30}))
	assert.Equal(t, Suspicious, httpsFeature(https, TLSResult{Reachable: true}))
	assert.Equal(t, Suspicious, httpsFeature(https, TLSResult{Reachable: true, Verified: true, DaysLeft: -3}))
	assert.Equal(t, Phishing, httpsFeature(https, TLSResult{}))
	assert.Equal(t, Phishing, httpsFeature(plain, TLSResult{Reachable: true, Verified: true, DaysLeft: 30}))
}

func TestTLSAddr(t *testing.T) {
	a, _ := ValidateURL("https://example.com/x")
	b, _ := ValidateURL("https://example.com:8443/x")
	c, _ := ValidateURL("http://example.com:8080/x")
	assert.Equal(t, "example.com:443", tlsAddr(a))
	assert.Equal(t, "example.com:8443", tlsAddr(b))
	assert.Equal(t, "example.com:443", tlsAddr(c))
}

func TestDialTLSProbeSelfSigned(t *testing.T) {
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.TLS = &tls.Config{MinVersion: tls.VersionTLS13}
	srv.StartTLS()
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	res := dialTLSProbe(2*time.Second)(context.Background(), "127.0.0.1", u.Host)
	assert.True(t, res.Reachable)
	assert.False(t, res.Verified, "httptest certificates are not in the system pool")
	assert.Equal(t, "TLS1.3", res.Protocol)
	assert.Equal(t, 60, res.Score)
	assert.Greater(t, res.DaysLeft, 0)
}

func TestDialTLSProbeUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	res := dialTLSProbe(500*time.Millisecond)(context.Background(), "127.0.0.1", addr)
	assert.Equal(t, TLSResult{}, res)
}
