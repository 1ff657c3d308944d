package features

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeResolver answers from fixed tables; unknown names are NXDOMAIN.
type fakeResolver struct {
	hosts map[string][]string
	mx    map[string][]*net.MX
	txt   map[string][]string
	delay time.Duration
}

func notFound(name string) error {
	return &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (r *fakeResolver) wait(ctx context.Context) error {
	if r.delay == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.delay):
		return nil
	}
}

func (r *fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	if a, ok := r.hosts[host]; ok {
		return a, nil
	}
	return nil, notFound(host)
}

func (r *fakeResolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	if mx, ok := r.mx[name]; ok {
		return mx, nil
	}
	return nil, notFound(name)
}

func (r *fakeResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if t, ok := r.txt[name]; ok {
		return t, nil
	}
	return nil, notFound(name)
}

type fakePages struct {
	page *Page
	err  error
}

func (f fakePages) Fetch(context.Context, string) (*Page, error) {
	return f.page, f.err
}

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

const cleanPage = `<html><head><link rel="icon" href="/favicon.ico"></head><body>
<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>
<img src="/logo.png"><form action="/login"></form></body></html>`

func newFakeExtractor(t *testing.T, r *fakeResolver, opts ...Option) *Extractor {
	t.Helper()
	base := []Option{
		WithResolver(r),
		WithPageSource(fakePages{page: &Page{Status: 200, HTML: cleanPage}}),
		WithWhois(func(ctx context.Context, domain string) (*WhoisRecord, error) {
			return &WhoisRecord{
				Domain:  domain,
				Created: fixedNow.AddDate(-10, 0, 0),
				Expires: fixedNow.AddDate(3, 0, 0),
			}, nil
		}),
		WithTLSProbe(func(ctx context.Context, host, addr string) TLSResult {
			return TLSResult{Reachable: true, Verified: true, DaysLeft: 200, Protocol: "TLS1.3", Score: 100}
		}),
		WithClock(func() time.Time { return fixedNow }),
	}
	return New(Config{}, zaptest.NewLogger(t), append(base, opts...)...)
}

func cleanResolver() *fakeResolver {
	return &fakeResolver{
		hosts: map[string][]string{"www.example.com": {"93.184.216.34"}},
		mx:    map[string][]*net.MX{"example.com": {{Host: "mail.example.com.", Pref: 10}}},
		txt: map[string][]string{
			"example.com":        {"v=spf1 -all"},
			"_dmarc.example.com": {"v=DMARC1; p=reject"},
		},
	}
}

func TestExtractorFeatureNames(t *testing.T) {
	e := New(Config{}, zaptest.NewLogger(t))
	names := e.FeatureNames()
	assert.Equal(t, Names, names)

	names[0] = "mutated"
	assert.Equal(t, "UsingIP", e.FeatureNames()[0])
}

func TestExtractCleanSite(t *testing.T) {
	e := newFakeExtractor(t, cleanResolver())

	out, err := e.Extract(context.Background(), "https://www.example.com/")
	require.NoError(t, err)
	require.Len(t, out, len(Names))

	for i, v := range out {
		if Names[i] == "GoogleIndex" || Names[i] == "StatsReport" {
			continue
		}
		assert.Equal(t, Legitimate, v, Names[i])
	}
	// reputation feeds are off in the zero Config
	assert.Equal(t, Suspicious, out[slotStatsReport])
	assert.Equal(t, Suspicious, out[slotGoogleIndex])
}

func TestExtractDegradesFailedProbes(t *testing.T) {
	e := newFakeExtractor(t, &fakeResolver{hosts: map[string][]string{"fresh-login.example": {"10.0.0.1"}}},
		WithPageSource(fakePages{err: errors.New("connection reset")}),
		WithWhois(func(context.Context, string) (*WhoisRecord, error) { return nil, errNoWhois }),
		WithTLSProbe(func(context.Context, string, string) TLSResult { return TLSResult{} }),
	)

	out, err := e.Extract(context.Background(), "https://fresh-login.example/")
	require.NoError(t, err)

	assert.Equal(t, Phishing, out[slotHTTPS])
	assert.Equal(t, Phishing, out[slotAgeofDomain])
	assert.Equal(t, Phishing, out[slotDomainRegLen])
	assert.Equal(t, Suspicious, out[slotFavicon])
	assert.Equal(t, Suspicious, out[slotLinksPointingToPage])
	assert.Equal(t, Suspicious, out[slotDNSRecording])
	assert.Equal(t, Phishing, out[slotWebsiteTraffic])
	assert.Equal(t, Phishing, out[slotPrefixSuffix])
}

func TestExtractDNSFailure(t *testing.T) {
	e := newFakeExtractor(t, &fakeResolver{})

	_, err := e.Extract(context.Background(), "https://nx.invalid/")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "dns failure"), err.Error())
}

func TestExtractMalformedURL(t *testing.T) {
	e := newFakeExtractor(t, cleanResolver())

	_, err := e.Extract(context.Background(), "not-a-valid-url")
	assert.ErrorContains(t, err, "malformed url")
}

func TestExtractIPHostSkipsDNS(t *testing.T) {
	var whoisCalls atomic.Int32
	e := newFakeExtractor(t, &fakeResolver{},
		WithWhois(func(context.Context, string) (*WhoisRecord, error) {
			whoisCalls.Add(1)
			return nil, errNoWhois
		}),
	)

	out, err := e.Extract(context.Background(), "http://192.168.10.1/paypal/login")
	require.NoError(t, err)
	assert.Equal(t, Phishing, out[slotUsingIP])
	assert.Equal(t, Phishing, out[slotHTTPS])
	assert.Equal(t, Suspicious, out[slotDNSRecording])
	assert.Zero(t, whoisCalls.Load())
}

func TestExtractHonorsCancellation(t *testing.T) {
	r := cleanResolver()
	r.delay = time.Second
	e := newFakeExtractor(t, r)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Extract(ctx, "https://www.example.com/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractWithReputation(t *testing.T) {
	r := cleanResolver()
	r.hosts["example.com.multi.surbl.org"] = []string{"127.0.0.2"}
	checker := NewReputationChecker(r, nil, "", "", zaptest.NewLogger(t))

	e := newFakeExtractor(t, r, WithReputation(checker))
	out, err := e.Extract(context.Background(), "https://www.example.com/")
	require.NoError(t, err)
	assert.Equal(t, Phishing, out[slotStatsReport])
	assert.Equal(t, Suspicious, out[slotGoogleIndex])
}
