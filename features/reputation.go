package features

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	safeBrowsingEndpoint = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	spamhausEndpoint     = "https://www.spamhaus.org/api/v1/sia-proxy/api/intel/v2/byobject/domain/"
	rblParallelism       = 8
)

// BlacklistEntry is one RBL hit.
type BlacklistEntry struct {
	Source string `json:"source"`
	Listed bool   `json:"listed"`
}

var domainRBLs = []string{
	"multi.surbl.org",
	"ivmuri.invaluement.com",
	"uribl.spameatingmonkey.net",
	"uribl.blacklist.woody.ch",
	"ubl.unsubscore.com",
}

var ipRBLs = []string{
	"zen.spamhaus.org",
	"combined.abuse.ch",
	"dnsbl.abuseat.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
	"dnsbl-1.uceprotect.net",
	"dnsbl-2.uceprotect.net",
	"dnsbl-3.uceprotect.net",
	"bl.mailspike.net",
	"z.mailspike.net",
	"psbl.surriel.com",
	"dnsbl.sorbs.net",
}

// criticalBlacklists mark a host as known-bad on a single hit.
var criticalBlacklists = []string{
	"spamhaus",
	"ivmurl",
	"invaluement",
	"surbl",
	"abusix",
	"abuse.ch",
	"abuseat",
}

var blacklistPenalties = map[string]int{
	"spamcop":          10,
	"barracuda":        10,
	"barracudacentral": 10,
}

var uceprotectPenalties = map[int]int{1: 5, 2: 10, 3: 20}

// BlacklistAnalysis summarizes RBL hits.
type BlacklistAnalysis struct {
	Critical       bool     `json:"critical"`
	CriticalHits   []string `json:"critical_hits,omitempty"`
	TotalPenalty   int      `json:"total_penalty"`
	PenaltyDetails []string `json:"penalty_details,omitempty"`
}

// AnalyzeBlacklists splits hits into critical lists and weighted penalties.
func AnalyzeBlacklists(entries []BlacklistEntry) BlacklistAnalysis {
	var a BlacklistAnalysis
	for _, e := range entries {
		if !e.Listed {
			continue
		}
		source := strings.ToLower(e.Source)

		if isCriticalBlacklist(source) {
			a.Critical = true
			a.CriticalHits = append(a.CriticalHits, e.Source)
			continue
		}

		if strings.Contains(source, "uceprotect") {
			level := uceprotectLevel(source)
			penalty := uceprotectPenalties[level]
			a.TotalPenalty += penalty
			a.PenaltyDetails = append(a.PenaltyDetails, fmt.Sprintf("%s (Level %d: -%d)", e.Source, level, penalty))
			continue
		}

		penalty := blacklistPenalty(source)
		a.TotalPenalty += penalty
		a.PenaltyDetails = append(a.PenaltyDetails, fmt.Sprintf("%s (-%d)", e.Source, penalty))
	}
	return a
}

func isCriticalBlacklist(source string) bool {
	for _, c := range criticalBlacklists {
		if strings.Contains(source, c) {
			return true
		}
	}
	return false
}

func uceprotectLevel(source string) int {
	switch {
	case strings.Contains(source, "dnsbl-3"):
		return 3
	case strings.Contains(source, "dnsbl-2"):
		return 2
	default:
		return 1
	}
}

func blacklistPenalty(source string) int {
	for name, p := range blacklistPenalties {
		if strings.Contains(source, name) {
			return p
		}
	}
	return 10
}

func reverseIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ""
	}
	return parts[3] + "." + parts[2] + "." + parts[1] + "." + parts[0]
}

// SpamhausResponse is the domain overview returned by the Spamhaus intel API.
type SpamhausResponse struct {
	Domain string   `json:"domain"`
	Score  float64  `json:"score"`
	Abused bool     `json:"abused"`
	Tags   []string `json:"tags"`
}

// Reputation is everything the reputation probe gathered.
type Reputation struct {
	Enabled       bool              `json:"enabled"`
	Blacklists    []BlacklistEntry  `json:"blacklists,omitempty"`
	Analysis      BlacklistAnalysis `json:"analysis"`
	GoogleChecked bool              `json:"google_checked"`
	GoogleFlagged bool              `json:"google_flagged"`
	Spamhaus      *SpamhausResponse `json:"spamhaus,omitempty"`
}

// ReputationChecker queries RBL zones and the optional HTTP reputation feeds.
type ReputationChecker struct {
	resolver        Resolver
	client          *http.Client
	rblTimeout      time.Duration
	safeBrowsingKey string
	safeBrowsingURL string
	spamhausKey     string
	spamhausURL     string
	logger          *zap.Logger
}

// NewReputationChecker builds a checker. Feeds whose key is empty are skipped.
func NewReputationChecker(resolver Resolver, client *http.Client, safeBrowsingKey, spamhausKey string, logger *zap.Logger) *ReputationChecker {
	return &ReputationChecker{
		resolver:        resolver,
		client:          client,
		rblTimeout:      3 * time.Second,
		safeBrowsingKey: safeBrowsingKey,
		safeBrowsingURL: safeBrowsingEndpoint,
		spamhausKey:     spamhausKey,
		spamhausURL:     spamhausEndpoint,
		logger:          logger.Named("reputation"),
	}
}

// Check runs every feed concurrently. Feed errors are logged and ignored.
func (c *ReputationChecker) Check(ctx context.Context, rawURL, domain, ip string) Reputation {
	rep := Reputation{Enabled: true}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rep.Blacklists = c.checkRBLs(gctx, domain, ip)
		rep.Analysis = AnalyzeBlacklists(rep.Blacklists)
		return nil
	})
	if c.safeBrowsingKey != "" {
		g.Go(func() error {
			flagged, err := c.checkSafeBrowsing(gctx, rawURL)
			if err != nil {
				c.logger.Debug("safe browsing lookup failed", zap.String("url", rawURL), zap.Error(err))
				return nil
			}
			rep.GoogleChecked = true
			rep.GoogleFlagged = flagged
			return nil
		})
	}
	if c.spamhausKey != "" {
		g.Go(func() error {
			sh, err := c.fetchSpamhaus(gctx, domain)
			if err != nil {
				c.logger.Debug("spamhaus lookup failed", zap.String("domain", domain), zap.Error(err))
				return nil
			}
			rep.Spamhaus = sh
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func (c *ReputationChecker) checkRBLs(ctx context.Context, domain, ip string) []BlacklistEntry {
	queries := make(map[string]string, len(domainRBLs)+len(ipRBLs))
	for _, rbl := range domainRBLs {
		queries[domain+"."+rbl] = rbl
	}
	if rev := reverseIP(ip); rev != "" {
		for _, rbl := range ipRBLs {
			queries[rev+"."+rbl] = rbl
		}
	}

	var (
		mu   sync.Mutex
		hits []BlacklistEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rblParallelism)
	for query, rbl := range queries {
		g.Go(func() error {
			if c.listed(gctx, query) {
				c.logger.Info("listed", zap.String("rbl", rbl), zap.String("query", query))
				mu.Lock()
				hits = append(hits, BlacklistEntry{Source: rbl, Listed: true})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return hits
}

// listed reports a 127.0.0.x answer; anything else is not a listing.
func (c *ReputationChecker) listed(ctx context.Context, query string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.rblTimeout)
	defer cancel()

	addrs, err := c.resolver.LookupHost(ctx, query)
	if err != nil {
		return false
	}
	for _, a := range addrs {
		if strings.HasPrefix(a, "127.0.0.") {
			return true
		}
	}
	c.logger.Debug("ignoring non-standard rbl response", zap.String("query", query), zap.Strings("addrs", addrs))
	return false
}

type safeBrowsingRequest struct {
	Client struct {
		ClientID      string `json:"clientId"`
		ClientVersion string `json:"clientVersion"`
	} `json:"client"`
	ThreatInfo struct {
		ThreatTypes      []string            `json:"threatTypes"`
		PlatformTypes    []string            `json:"platformTypes"`
		ThreatEntryTypes []string            `json:"threatEntryTypes"`
		ThreatEntries    []map[string]string `json:"threatEntries"`
	} `json:"threatInfo"`
}

func (c *ReputationChecker) checkSafeBrowsing(ctx context.Context, rawURL string) (bool, error) {
	var body safeBrowsingRequest
	body.Client.ClientID = "phishing-detector"
	body.Client.ClientVersion = "1.0"
	body.ThreatInfo.ThreatTypes = []string{"MALWARE", "SOCIAL_ENGINEERING", "UNWANTED_SOFTWARE"}
	body.ThreatInfo.PlatformTypes = []string{"ANY_PLATFORM"}
	body.ThreatInfo.ThreatEntryTypes = []string{"URL"}
	body.ThreatInfo.ThreatEntries = []map[string]string{{"url": rawURL}}

	payload, err := json.Marshal(body)
	if err != nil {
		return false, err
	}

	endpoint := c.safeBrowsingURL + "?key=" + url.QueryEscape(c.safeBrowsingKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("safe browsing: %s", resp.Status)
	}

	var result struct {
		Matches []json.RawMessage `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("safe browsing: %w", err)
	}
	return len(result.Matches) > 0, nil
}

func (c *ReputationChecker) fetchSpamhaus(ctx context.Context, domain string) (*SpamhausResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.spamhausURL+url.PathEscape(domain)+"/overview", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.spamhausKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("spamhaus error: %s", resp.Status)
	}

	var data SpamhausResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("spamhaus: %w", err)
	}
	return &data, nil
}

// reputationFeatures fills StatsReport and GoogleIndex.
func reputationFeatures(rep Reputation, out []float64) {
	if !rep.Enabled {
		out[slotStatsReport] = Suspicious
		out[slotGoogleIndex] = Suspicious
		return
	}

	abused := rep.Spamhaus != nil && rep.Spamhaus.Abused
	switch {
	case rep.Analysis.Critical || rep.GoogleFlagged || abused:
		out[slotStatsReport] = Phishing
	case rep.Analysis.TotalPenalty > 0:
		out[slotStatsReport] = Suspicious
	default:
		out[slotStatsReport] = Legitimate
	}

	switch {
	case rep.GoogleFlagged:
		out[slotGoogleIndex] = Phishing
	case rep.GoogleChecked:
		out[slotGoogleIndex] = Legitimate
	default:
		out[slotGoogleIndex] = Suspicious
	}
}
