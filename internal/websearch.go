package internal

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	maxFeedItems = 5
	maxFacts     = 2
	dedupePrefix = 50
)

// Headline is one item from a news feed.
type Headline struct {
	Title   string `json:"title" xml:"title"`
	Link    string `json:"link" xml:"link"`
	PubDate string `json:"pub_date" xml:"pubDate"`
	Source  string `json:"source" xml:"source"`
}

type SearchResult struct {
	Facts        []Fact    `json:"facts"`
	Headlines    []string  `json:"headlines"`
	SearchedAt   time.Time `json:"searched_at"`
	HasNewUpdate bool      `json:"has_new_update"`
}

type rssFeed struct {
	Channel struct {
		Items []Headline `xml:"item"`
	} `xml:"channel"`
}

// WebSearcher queries a Google News style RSS endpoint and keeps facts from
// trusted outlets only.
type WebSearcher struct {
	cfg    NewsConfig
	client *http.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewWebSearcher(cfg NewsConfig, client *http.Client, logger *zap.Logger) *WebSearcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSearcher{
		cfg:    cfg,
		client: client,
		logger: logger.Named("search"),
		now:    time.Now,
	}
}

// Search runs every configured query. Failed queries contribute nothing;
// Search itself never fails.
func (s *WebSearcher) Search(ctx context.Context) *SearchResult {
	perQuery := make([][]Headline, len(s.cfg.Queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, query := range s.cfg.Queries {
		g.Go(func() error {
			items, err := s.fetch(gctx, query)
			if err != nil {
				s.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
				return nil
			}
			perQuery[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var unique []Headline
	seen := make(map[string]bool)
	for _, items := range perQuery {
		for _, item := range items {
			key := dedupeKey(item.Title)
			if seen[key] {
				continue
			}
			seen[key] = true
			unique = append(unique, item)
		}
	}

	trusted := FilterTrusted(unique, s.cfg.Trusted)
	sort.SliceStable(trusted, func(i, j int) bool {
		return SourceTier(tierKey(trusted[i]), s.cfg.Trusted) < SourceTier(tierKey(trusted[j]), s.cfg.Trusted)
	})

	now := s.now()
	facts := ExtractFacts(trusted, now)

	s.logger.Info("search complete",
		zap.Int("unique", len(unique)),
		zap.Int("trusted", len(trusted)),
		zap.Int("facts", len(facts)))

	headlines := make([]string, len(trusted))
	for i, h := range trusted {
		headlines[i] = h.Title
	}

	return &SearchResult{
		Facts:        facts,
		Headlines:    headlines,
		SearchedAt:   now,
		HasNewUpdate: len(facts) > 0,
	}
}

func (s *WebSearcher) fetch(ctx context.Context, query string) ([]Headline, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", "en-US")
	params.Set("gl", "US")
	params.Set("ceid", "US:en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	items := feed.Channel.Items
	if len(items) > maxFeedItems {
		items = items[:maxFeedItems]
	}
	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Link = strings.TrimSpace(items[i].Link)
		items[i].Source = strings.TrimSpace(items[i].Source)
	}
	return items, nil
}

func dedupeKey(title string) string {
	runes := []rune(strings.ToLower(title))
	if len(runes) > dedupePrefix {
		runes = runes[:dedupePrefix]
	}
	return string(runes)
}

func tierKey(h Headline) string {
	if h.Source != "" {
		return h.Source
	}
	return h.Link
}

// FilterTrusted keeps headlines whose source name or link mentions a
// trusted outlet.
func FilterTrusted(items []Headline, trusted TrustedSources) []Headline {
	all := slices.Concat(trusted.Official, trusted.Tier1, trusted.Tier2, trusted.Legal)

	var kept []Headline
	for _, item := range items {
		source := strings.ToLower(item.Source)
		link := strings.ToLower(item.Link)
		if slices.ContainsFunc(all, func(t string) bool {
			return strings.Contains(source, t) || strings.Contains(link, t)
		}) {
			kept = append(kept, item)
		}
	}
	return kept
}

// SourceTier ranks a source: 0 official, 1 and 2 news tiers, 3 legal press,
// 4 anything else.
func SourceTier(source string, trusted TrustedSources) int {
	s := strings.ToLower(source)
	for tier, list := range [][]string{trusted.Official, trusted.Tier1, trusted.Tier2, trusted.Legal} {
		if slices.ContainsFunc(list, func(t string) bool { return strings.Contains(s, t) }) {
			return tier
		}
	}
	return 4
}

var factPatterns = []struct {
	pattern *regexp.Regexp
	kind    string
}{
	{regexp.MustCompile(`(?i)pass(?:ed|es)?`), "status"},
	{regexp.MustCompile(`(?i)fail(?:ed|s)?`), "status"},
	{regexp.MustCompile(`(?i)results?\s+(?:release|out|announced)`), "result_timing"},
	{regexp.MustCompile(`(?i)(?:february|march|may|june)\s+\d{4}`), "date"},
	{regexp.MustCompile(`(?i)attempt\s+#?\d`), "attempt"},
	{regexp.MustCompile(`(?i)bar\s+exam\s+(?:score|results?)`), "result"},
	{regexp.MustCompile(`"[^"]+"`), "quote"},
}

// ExtractFacts takes at most one fact per headline, first matching pattern
// wins, and stops after two facts.
func ExtractFacts(items []Headline, now time.Time) []Fact {
	var facts []Fact
	for _, item := range items {
		for _, fp := range factPatterns {
			m := fp.pattern.FindString(item.Title)
			if m == "" {
				continue
			}
			source := item.Source
			if source == "" {
				source = domainOf(item.Link)
			}
			facts = append(facts, Fact{
				Text:        item.Title,
				Source:      source,
				Type:        fp.kind,
				MatchedFact: m,
				PubDate:     item.PubDate,
				Link:        item.Link,
				FoundAt:     now,
			})
			break
		}
		if len(facts) >= maxFacts {
			break
		}
	}
	return facts
}

func domainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
