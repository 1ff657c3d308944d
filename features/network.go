package features

import (
	"context"
	"crypto/tls"
	"net"
	"strings"
	"time"
)

// Resolver is the subset of *net.Resolver the probes use.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
}

// NewDNSResolver returns a resolver that sends every query to server
// (host:port). An empty server yields the system resolver.
func NewDNSResolver(server string, timeout time.Duration) *net.Resolver {
	if server == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, "udp", server)
		},
	}
}

// firstIPv4 prefers an IPv4 address, as RBL zones are keyed on them.
func firstIPv4(addrs []string) string {
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return ip.String()
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// DNSRecords holds what the DNS probe learned about a domain.
type DNSRecords struct {
	Addrs    []string `json:"addrs"`
	HasMX    bool     `json:"has_mx"`
	HasSPF   bool     `json:"has_spf"`
	HasDMARC bool     `json:"has_dmarc"`
}

func lookupDNS(ctx context.Context, r Resolver, domain string, addrs []string) DNSRecords {
	rec := DNSRecords{Addrs: addrs}

	if mx, err := r.LookupMX(ctx, domain); err == nil && len(mx) > 0 {
		rec.HasMX = true
	}

	txts, _ := r.LookupTXT(ctx, domain)
	for _, t := range txts {
		if strings.HasPrefix(strings.ToLower(t), "v=spf1") {
			rec.HasSPF = true
		}
	}

	dmarc, _ := r.LookupTXT(ctx, "_dmarc."+domain)
	for _, t := range dmarc {
		if strings.HasPrefix(strings.ToLower(t), "v=dmarc1") {
			rec.HasDMARC = true
		}
	}
	return rec
}

func dnsFeature(rec DNSRecords) float64 {
	switch {
	case len(rec.Addrs) == 0:
		return Phishing
	case rec.HasMX || rec.HasSPF:
		return Legitimate
	default:
		return Suspicious
	}
}

// TLSResult is the outcome of the TLS probe.
type TLSResult struct {
	Reachable bool   `json:"reachable"`
	Verified  bool   `json:"verified"`
	DaysLeft  int    `json:"days_left"`
	Protocol  string `json:"protocol,omitempty"`
	// Score is 0-100.
	Score int `json:"score"`
}

// TLSProbe inspects the certificate served on addr (host:port).
type TLSProbe func(ctx context.Context, host, addr string) TLSResult

func dialTLSProbe(timeout time.Duration) TLSProbe {
	return func(ctx context.Context, host, addr string) TLSResult {
		var res TLSResult

		state, err := tlsHandshake(ctx, addr, timeout, &tls.Config{ServerName: host})
		if err == nil {
			res.Verified = true
		} else {
			state, err = tlsHandshake(ctx, addr, timeout, &tls.Config{ServerName: host, InsecureSkipVerify: true})
			if err != nil {
				return res
			}
		}
		res.Reachable = true

		if len(state.PeerCertificates) > 0 {
			res.DaysLeft = int(time.Until(state.PeerCertificates[0].NotAfter).Hours() / 24)
		}
		res.Protocol = tlsVersionName(state.Version)

		score := 100
		if !res.Verified {
			score -= 40
		}
		if res.Protocol != "TLS1.3" {
			score -= 20
		}
		res.Score = score
		return res
	}
}

func tlsHandshake(ctx context.Context, addr string, timeout time.Duration, cfg *tls.Config) (tls.ConnectionState, error) {
	d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: cfg}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return tls.ConnectionState{}, err
	}
	defer conn.Close()
	return conn.(*tls.Conn).ConnectionState(), nil
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS13:
		return "TLS1.3"
	case tls.VersionTLS12:
		return "TLS1.2"
	default:
		return "weak"
	}
}

func tlsAddr(t *Target) string {
	port := t.URL.Port()
	if port == "" || t.URL.Scheme != "https" {
		port = "443"
	}
	return net.JoinHostPort(t.Host, port)
}

func httpsFeature(t *Target, res TLSResult) float64 {
	switch {
	case t.URL.Scheme != "https":
		return Phishing
	case res.Verified && res.DaysLeft > 0:
		return Legitimate
	case res.Reachable:
		return Suspicious
	default:
		return Phishing
	}
}
