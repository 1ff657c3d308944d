// Package features computes the 30-slot phishing feature vector for a URL
// from its lexical shape, DNS, TLS, WHOIS, page DOM and reputation feeds.
package features

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config tunes the network probes.
type Config struct {
	HTTPTimeout     time.Duration
	DNSServer       string
	RenderJS        bool
	ChromePath      string
	Reputation      bool
	SafeBrowsingKey string
	SpamhausKey     string
}

// Extractor is the default feature extractor. It is safe for concurrent use.
type Extractor struct {
	cfg        Config
	logger     *zap.Logger
	resolver   Resolver
	pages      PageSource
	whois      WhoisLookup
	tls        TLSProbe
	reputation *ReputationChecker
	now        func() time.Time
}

// Option overrides one of the extractor's collaborators.
type Option func(*Extractor)

// WithResolver replaces the resolver used for host lookups and DNS records.
func WithResolver(r Resolver) Option {
	return func(e *Extractor) { e.resolver = r }
}

// WithPageSource replaces the page fetcher.
func WithPageSource(p PageSource) Option {
	return func(e *Extractor) { e.pages = p }
}

// WithWhois replaces the WHOIS lookup.
func WithWhois(w WhoisLookup) Option {
	return func(e *Extractor) { e.whois = w }
}

// WithTLSProbe replaces the TLS probe.
func WithTLSProbe(p TLSProbe) Option {
	return func(e *Extractor) { e.tls = p }
}

// WithReputation replaces the reputation checker.
func WithReputation(c *ReputationChecker) Option {
	return func(e *Extractor) { e.reputation = c }
}

// WithClock fixes the time used for domain age calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New builds an Extractor wired to real network probes unless opts say otherwise.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Extractor {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	logger = logger.Named("features")

	dns := NewDNSResolver(cfg.DNSServer, 2*time.Second)
	var pages PageSource = NewHTTPSource(cfg.HTTPTimeout)
	if cfg.RenderJS {
		pages = &renderedSource{
			http:   pages,
			render: NewChromeSource(cfg.ChromePath, cfg.HTTPTimeout+5*time.Second, logger),
			logger: logger,
		}
	}

	e := &Extractor{
		cfg:      cfg,
		logger:   logger,
		resolver: net.DefaultResolver,
		pages:    pages,
		whois:    whoisClientLookup(cfg.HTTPTimeout),
		tls:      dialTLSProbe(cfg.HTTPTimeout),
		now:      time.Now,
	}
	if cfg.Reputation {
		e.reputation = NewReputationChecker(dns, &http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SafeBrowsingKey, cfg.SpamhausKey, logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FeatureNames returns the canonical feature order.
func (e *Extractor) FeatureNames() []string {
	return append([]string(nil), Names...)
}

// Extract returns one value per FeatureNames entry. It fails only when the
// URL is malformed, the host does not resolve, or ctx ends; any single
// probe failure degrades its own slots instead.
func (e *Extractor) Extract(ctx context.Context, rawURL string) ([]float64, error) {
	target, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	out := make([]float64, slotCount)
	lexicalFeatures(target, out)

	addrs, err := e.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	var (
		page *Page
		cert TLSResult
		reg  *WhoisRecord
		dns  DNSRecords
		rep  Reputation
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := e.pages.Fetch(gctx, target.Raw)
		if err != nil {
			e.logger.Debug("page fetch failed", zap.String("url", target.Raw), zap.Error(err))
			return nil
		}
		page = p
		return nil
	})
	g.Go(func() error {
		if target.URL.Scheme == "https" {
			cert = e.tls(gctx, target.Host, tlsAddr(target))
		}
		return nil
	})
	g.Go(func() error {
		if target.IsIP() {
			return nil
		}
		r, err := e.whois(gctx, target.Domain)
		if err != nil {
			e.logger.Debug("whois lookup failed", zap.String("domain", target.Domain), zap.Error(err))
			return nil
		}
		reg = r
		return nil
	})
	g.Go(func() error {
		if target.IsIP() {
			dns = DNSRecords{Addrs: addrs}
			return nil
		}
		dns = lookupDNS(gctx, e.resolver, target.Domain, addrs)
		return nil
	})
	if e.reputation != nil {
		g.Go(func() error {
			rep = e.reputation.Check(gctx, target.Raw, target.Domain, firstIPv4(addrs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.now()
	pageFeatures(target, page, out)
	out[slotHTTPS] = httpsFeature(target, cert)
	whoisFeatures(target, reg, now, out)
	out[slotDNSRecording] = dnsFeature(dns)
	reputationFeatures(rep, out)
	scoreFeatures(signals{
		ageDays:        reg.ageDays(now),
		https:          out[slotHTTPS] == Legitimate,
		sslScore:       cert.Score,
		siteExists:     page != nil && page.Status >= 200 && page.Status < 400,
		blacklistCount: len(rep.Blacklists),
		googleFlagged:  rep.GoogleFlagged,
		hasSPF:         dns.HasSPF,
		hasDMARC:       dns.HasDMARC,
	}, out)

	e.logger.Debug("features extracted", zap.String("url", target.Raw), zap.Float64s("values", out))
	return out, nil
}

func (e *Extractor) resolve(ctx context.Context, t *Target) ([]string, error) {
	if t.IsIP() {
		if net.ParseIP(t.Host) != nil {
			return []string{t.Host}, nil
		}
		return nil, nil
	}
	addrs, err := e.resolver.LookupHost(ctx, t.Host)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("dns failure: %w", err)
	}
	return addrs, nil
}
