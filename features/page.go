package features

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes = 1024 * 1024
	maxRedirects = 10
)

// Page is a fetched document.
type Page struct {
	// URL is the final location after redirects.
	URL       *url.URL
	Status    int
	Redirects int
	HTML      string
}

// PageSource fetches the document behind a URL.
type PageSource interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
}

// HTTPSource fetches pages with a plain HTTP client.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource returns an HTTPSource whose requests time out after timeout.
func NewHTTPSource(timeout time.Duration) *HTTPSource {
	return &HTTPSource{client: &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}}
}

func (s *HTTPSource) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	redirects := 0
	for r := resp.Request.Response; r != nil; r = r.Request.Response {
		redirects++
	}

	return &Page{
		URL:       resp.Request.URL,
		Status:    resp.StatusCode,
		Redirects: redirects,
		HTML:      string(body),
	}, nil
}

var (
	statusBarPattern    = regexp.MustCompile(`(?is)onmouseover\s*=\s*["'][^"']*window\.status`)
	rightClickPattern   = regexp.MustCompile(`(?is)event\.button\s*==+\s*2|oncontextmenu\s*=\s*["']?\s*return\s+false`)
	popupPattern        = regexp.MustCompile(`(?is)window\.open\s*\(|\bprompt\s*\(`)
	mailFunctionPattern = regexp.MustCompile(`(?i)\bmail\s*\(`)
)

// pageStats is what one walk of the DOM collects.
type pageStats struct {
	faviconExternal bool

	resources, externalResources int
	anchors, unsafeAnchors       int
	links, externalLinks         int
	internalAnchors              int

	forms        int
	blankForm    bool
	externalForm bool
	mailtoForm   bool
	iframes      int
	hiddenIframe bool
}

func (s *pageStats) walk(t *Target, base *url.URL, n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "link":
			href := attr(n, "href")
			rel := strings.ToLower(attr(n, "rel"))
			if href != "" {
				s.links++
				external := isExternal(t, base, href)
				if external {
					s.externalLinks++
				}
				if strings.Contains(rel, "icon") && external {
					s.faviconExternal = true
				}
			}
		case "script":
			if src := attr(n, "src"); src != "" {
				s.links++
				if isExternal(t, base, src) {
					s.externalLinks++
				}
			}
		case "img", "audio", "video", "source", "embed":
			if src := attr(n, "src"); src != "" {
				s.resources++
				if isExternal(t, base, src) {
					s.externalResources++
				}
			}
		case "iframe":
			s.iframes++
			if isHiddenFrame(n) {
				s.hiddenIframe = true
			}
			if src := attr(n, "src"); src != "" {
				s.resources++
				if isExternal(t, base, src) {
					s.externalResources++
				}
			}
		case "a":
			href := strings.TrimSpace(attr(n, "href"))
			s.anchors++
			lower := strings.ToLower(href)
			switch {
			case href == "" || strings.HasPrefix(href, "#") ||
				strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:"):
				s.unsafeAnchors++
			case isExternal(t, base, href):
				s.unsafeAnchors++
			default:
				s.internalAnchors++
			}
		case "form":
			s.forms++
			action := strings.TrimSpace(attr(n, "action"))
			lower := strings.ToLower(action)
			switch {
			case action == "" || lower == "about:blank":
				s.blankForm = true
			case strings.HasPrefix(lower, "mailto:"):
				s.mailtoForm = true
			case isExternal(t, base, action):
				s.externalForm = true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(t, base, c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func isHiddenFrame(n *html.Node) bool {
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return true
	}
	return attr(n, "frameborder") == "0" && (attr(n, "width") == "0" || attr(n, "height") == "0")
}

// isExternal reports whether ref points outside the target's domain.
// Relative references are internal.
func isExternal(t *Target, base *url.URL, ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	host := NormalizeHost(u.Hostname())
	if host == "" {
		return false
	}
	return host != t.Domain && !strings.HasSuffix(host, "."+t.Domain)
}

func ratioFeature(part, total int, low, high float64) float64 {
	if total == 0 {
		return Legitimate
	}
	pct := float64(part) / float64(total) * 100
	switch {
	case pct < low:
		return Legitimate
	case pct <= high:
		return Suspicious
	default:
		return Phishing
	}
}

var pageSlots = []slot{
	slotFavicon, slotRequestURL, slotAnchorURL, slotLinksInScriptTags, slotServerFormHandler,
	slotInfoEmail, slotWebsiteForwarding, slotStatusBarCust, slotDisableRightClick,
	slotUsingPopupWindow, slotIframeRedirection, slotLinksPointingToPage,
}

// pageFeatures fills the DOM-derived slots. An unavailable page marks
// every one of them suspicious.
func pageFeatures(t *Target, p *Page, out []float64) {
	if p == nil || p.Status >= 400 {
		for _, s := range pageSlots {
			out[s] = Suspicious
		}
		return
	}

	doc, err := html.Parse(strings.NewReader(p.HTML))
	if err != nil {
		for _, s := range pageSlots {
			out[s] = Suspicious
		}
		return
	}

	base := t.URL
	if p.URL != nil {
		base = p.URL
	}
	var s pageStats
	s.walk(t, base, doc)

	out[slotFavicon] = pick(s.faviconExternal, Phishing, Legitimate)
	out[slotRequestURL] = ratioFeature(s.externalResources, s.resources, 22, 61)
	out[slotAnchorURL] = ratioFeature(s.unsafeAnchors, s.anchors, 31, 67)
	out[slotLinksInScriptTags] = ratioFeature(s.externalLinks, s.links, 17, 81)

	switch {
	case s.blankForm:
		out[slotServerFormHandler] = Phishing
	case s.externalForm:
		out[slotServerFormHandler] = Suspicious
	default:
		out[slotServerFormHandler] = Legitimate
	}

	out[slotInfoEmail] = pick(s.mailtoForm || mailFunctionPattern.MatchString(p.HTML), Phishing, Legitimate)

	switch {
	case p.Redirects <= 1:
		out[slotWebsiteForwarding] = Legitimate
	case p.Redirects < 4:
		out[slotWebsiteForwarding] = Suspicious
	default:
		out[slotWebsiteForwarding] = Phishing
	}

	out[slotStatusBarCust] = pick(statusBarPattern.MatchString(p.HTML), Phishing, Legitimate)
	out[slotDisableRightClick] = pick(rightClickPattern.MatchString(p.HTML), Phishing, Legitimate)
	out[slotUsingPopupWindow] = pick(popupPattern.MatchString(p.HTML), Phishing, Legitimate)

	switch {
	case s.hiddenIframe:
		out[slotIframeRedirection] = Phishing
	case s.iframes > 0:
		out[slotIframeRedirection] = Suspicious
	default:
		out[slotIframeRedirection] = Legitimate
	}

	switch {
	case s.internalAnchors == 0:
		out[slotLinksPointingToPage] = Phishing
	case s.internalAnchors <= 2:
		out[slotLinksPointingToPage] = Suspicious
	default:
		out[slotLinksPointingToPage] = Legitimate
	}
}
