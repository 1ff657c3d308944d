package features

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

// Feature values on the UCI phishing scale.
const (
	Phishing   = -1.0
	Suspicious = 0.0
	Legitimate = 1.0
)

// Names is the canonical feature order the classifier is trained on.
var Names = []string{
	"UsingIP", "LongURL", "ShortURL", "Symbol@", "Redirecting//",
	"PrefixSuffix-", "SubDomains", "HTTPS", "DomainRegLen", "Favicon",
	"NonStdPort", "HTTPSDomainURL", "RequestURL", "AnchorURL", "LinksInScriptTags",
	"ServerFormHandler", "InfoEmail", "AbnormalURL", "WebsiteForwarding", "StatusBarCust",
	"DisableRightClick", "UsingPopupWindow", "IframeRedirection", "AgeofDomain", "DNSRecording",
	"WebsiteTraffic", "PageRank", "GoogleIndex", "LinksPointingToPage", "StatsReport",
}

// slot indexes into a feature vector by name.
type slot int

const (
	slotUsingIP slot = iota
	slotLongURL
	slotShortURL
	slotSymbolAt
	slotRedirecting
	slotPrefixSuffix
	slotSubDomains
	slotHTTPS
	slotDomainRegLen
	slotFavicon
	slotNonStdPort
	slotHTTPSDomainURL
	slotRequestURL
	slotAnchorURL
	slotLinksInScriptTags
	slotServerFormHandler
	slotInfoEmail
	slotAbnormalURL
	slotWebsiteForwarding
	slotStatusBarCust
	slotDisableRightClick
	slotUsingPopupWindow
	slotIframeRedirection
	slotAgeofDomain
	slotDNSRecording
	slotWebsiteTraffic
	slotPageRank
	slotGoogleIndex
	slotLinksPointingToPage
	slotStatsReport
	slotCount
)

var shortenerPattern = regexp.MustCompile(`(?i)\b(bit\.ly|goo\.gl|shorte\.st|go2l\.ink|x\.co|ow\.ly|t\.co|tinyurl|tr\.im|is\.gd|cli\.gs|` +
	`yfrog\.com|migre\.me|ff\.im|tiny\.cc|url4\.eu|twit\.ac|su\.pr|twurl\.nl|snipurl\.com|short\.to|BudURL\.com|ping\.fm|` +
	`post\.ly|Just\.as|bkite\.com|snipr\.com|fic\.kr|loopt\.us|doiop\.com|short\.ie|kl\.am|wp\.me|rubyurl\.com|om\.ly|` +
	`to\.ly|bit\.do|lnkd\.in|db\.tt|qr\.ae|adf\.ly|bitly\.com|cur\.lv|ity\.im|q\.gs|po\.st|bc\.vc|twitthis\.com|` +
	`u\.to|j\.mp|buzurl\.com|cutt\.us|u\.bb|yourls\.org|prettylinkpro\.com|scrnch\.me|filoops\.info|vzturl\.com|` +
	`qr\.net|1url\.com|tweez\.me|v\.gd|link\.zip\.net|rb\.gy|cutt\.ly|shorturl\.at)\b`)

var hexHostPattern = regexp.MustCompile(`(?i)^(0x[0-9a-f]{1,2}\.){3}0x[0-9a-f]{1,2}$`)

// Target is a parsed, validated URL.
type Target struct {
	Raw  string
	URL  *url.URL
	Host string
	// Domain is Host without a leading "www.".
	Domain string
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(raw string) (*Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("url required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("malformed url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("malformed url: scheme must be http or https")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("malformed url: missing host")
	}
	return &Target{Raw: raw, URL: u, Host: host, Domain: NormalizeHost(host)}, nil
}

// NormalizeHost lowercases a host and strips a leading "www.".
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// IsIP reports whether the host is a dotted, bracketed or hex IP literal.
func (t *Target) IsIP() bool {
	return net.ParseIP(t.Host) != nil || hexHostPattern.MatchString(t.Host)
}

// lexicalFeatures fills the slots computable from the URL string alone.
func lexicalFeatures(t *Target, out []float64) {
	out[slotUsingIP] = pick(t.IsIP(), Phishing, Legitimate)

	switch n := len(t.Raw); {
	case n < 54:
		out[slotLongURL] = Legitimate
	case n <= 75:
		out[slotLongURL] = Suspicious
	default:
		out[slotLongURL] = Phishing
	}

	out[slotShortURL] = pick(shortenerPattern.MatchString(t.Host), Phishing, Legitimate)
	out[slotSymbolAt] = pick(strings.Contains(t.Raw, "@"), Phishing, Legitimate)
	out[slotRedirecting] = pick(strings.LastIndex(t.Raw, "//") > 7, Phishing, Legitimate)
	out[slotPrefixSuffix] = pick(strings.Contains(t.Domain, "-"), Phishing, Legitimate)

	if t.IsIP() {
		out[slotSubDomains] = Phishing
	} else {
		switch dots := strings.Count(t.Domain, "."); {
		case dots <= 1:
			out[slotSubDomains] = Legitimate
		case dots == 2:
			out[slotSubDomains] = Suspicious
		default:
			out[slotSubDomains] = Phishing
		}
	}

	port := t.URL.Port()
	out[slotNonStdPort] = pick(port != "" && port != "80" && port != "443", Phishing, Legitimate)
	out[slotHTTPSDomainURL] = pick(strings.Contains(t.Domain, "https"), Phishing, Legitimate)
}

func pick(cond bool, ifTrue, ifFalse float64) float64 {
	if cond {
		return ifTrue
	}
	return ifFalse
}
