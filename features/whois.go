package features

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"
)

// WhoisRecord is the registration data the extractor relies on.
type WhoisRecord struct {
	Domain  string    `json:"domain"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
	Expires time.Time `json:"expires"`
}

// WhoisLookup fetches the registration record for a domain.
type WhoisLookup func(ctx context.Context, domain string) (*WhoisRecord, error)

var errNoWhois = errors.New("no whois record")

var whoisLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-2006",
	"2006.01.02",
}

func parseWhoisDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, l := range whoisLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func whoisClientLookup(timeout time.Duration) WhoisLookup {
	client := whois.NewClient().SetTimeout(timeout)

	var lookup WhoisLookup
	lookup = func(ctx context.Context, domain string) (*WhoisRecord, error) {
		type reply struct {
			raw string
			err error
		}
		ch := make(chan reply, 1)
		go func() {
			raw, err := client.Whois(domain)
			ch <- reply{raw, err}
		}()

		var r reply
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r = <-ch:
		}
		if r.err != nil {
			return nil, fmt.Errorf("whois %s: %w", domain, r.err)
		}

		p, err := parser.Parse(r.raw)
		if err != nil || p.Domain == nil {
			// subdomains are usually unregistered; try the parent
			parts := strings.Split(domain, ".")
			if len(parts) > 2 {
				return lookup(ctx, strings.Join(parts[1:], "."))
			}
			return nil, errNoWhois
		}

		rec := &WhoisRecord{
			Domain:  strings.ToLower(p.Domain.Domain),
			Created: parseWhoisDate(p.Domain.CreatedDate),
			Updated: parseWhoisDate(p.Domain.UpdatedDate),
			Expires: parseWhoisDate(p.Domain.ExpirationDate),
		}
		if rec.Domain == "" {
			rec.Domain = domain
		}
		return rec, nil
	}
	return lookup
}

// whoisFeatures fills DomainRegLen, AgeofDomain and AbnormalURL. A missing
// record counts against the domain.
func whoisFeatures(t *Target, rec *WhoisRecord, now time.Time, out []float64) {
	if rec == nil {
		out[slotDomainRegLen] = Phishing
		out[slotAgeofDomain] = Phishing
		out[slotAbnormalURL] = Phishing
		return
	}

	out[slotDomainRegLen] = Phishing
	if !rec.Expires.IsZero() && rec.Expires.Sub(now) > 365*24*time.Hour {
		out[slotDomainRegLen] = Legitimate
	}

	out[slotAgeofDomain] = Phishing
	if !rec.Created.IsZero() && now.Sub(rec.Created) >= 180*24*time.Hour {
		out[slotAgeofDomain] = Legitimate
	}

	switch d := strings.TrimSuffix(rec.Domain, "."); {
	case d == "":
		out[slotAbnormalURL] = Suspicious
	case t.Domain == d || strings.HasSuffix(t.Domain, "."+d):
		out[slotAbnormalURL] = Legitimate
	default:
		out[slotAbnormalURL] = Phishing
	}
}

// ageDays is the domain age in whole days, or 0 when unknown.
func (r *WhoisRecord) ageDays(now time.Time) int {
	if r == nil || r.Created.IsZero() {
		return 0
	}
	return int(now.Sub(r.Created).Hours() / 24)
}
