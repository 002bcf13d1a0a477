package internal

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	maxHeadlinesPerSource = 5
	minHeadlineLength     = 11
)

type SourceResult struct {
	Source    string    `json:"source"`
	Headlines []string  `json:"headlines"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ScrapeResult struct {
	Results           []SourceResult `json:"results"`
	AllHeadlines      []string       `json:"all_headlines"`
	TotalSources      int            `json:"total_sources"`
	SuccessfulSources int            `json:"successful_sources"`
}

// Scraper pulls headlines from configured news pages.
type Scraper struct {
	sources   []SourceConfig
	timeout   time.Duration
	userAgent string
	client    *http.Client
	logger    *zap.Logger
}

func NewScraper(cfg NewsConfig, client *http.Client, logger *zap.Logger) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		sources:   cfg.Sources,
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		client:    client,
		logger:    logger.Named("scraper"),
	}
}

// ScrapeAll fetches every source concurrently. A failing source is reported
// in its SourceResult and contributes no headlines.
func (s *Scraper) ScrapeAll(ctx context.Context) *ScrapeResult {
	results := make([]SourceResult, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range s.sources {
		g.Go(func() error {
			results[i] = s.scrapeSource(gctx, source)
			return nil
		})
	}
	_ = g.Wait()

	out := &ScrapeResult{
		Results:      results,
		AllHeadlines: []string{},
		TotalSources: len(s.sources),
	}
	for _, r := range results {
		if !r.Success {
			continue
		}
		out.SuccessfulSources++
		out.AllHeadlines = append(out.AllHeadlines, r.Headlines...)
	}

	s.logger.Info("scrape complete",
		zap.Int("sources", out.TotalSources),
		zap.Int("ok", out.SuccessfulSources),
		zap.Int("headlines", len(out.AllHeadlines)))
	return out
}

func (s *Scraper) scrapeSource(ctx context.Context, source SourceConfig) SourceResult {
	result := SourceResult{Source: source.Name, Headlines: []string{}}

	headlines, err := s.fetchHeadlines(ctx, source)
	result.Timestamp = time.Now()
	if err != nil {
		s.logger.Warn("source failed", zap.String("source", source.Name), zap.Error(err))
		result.Error = err.Error()
		return result
	}

	result.Headlines = headlines
	result.Success = true
	s.logger.Debug("source scraped", zap.String("source", source.Name), zap.Int("headlines", len(headlines)))
	return result
}

func (s *Scraper) fetchHeadlines(ctx context.Context, source SourceConfig) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return ExtractHeadlines(doc, source.Selector), nil
}

// ExtractHeadlines returns the text of the first five elements matching
// selector, dropping texts shorter than eleven characters. Selectors are
// of the form ".class" or "tag.class".
func ExtractHeadlines(doc *html.Node, selector string) []string {
	tag, class, _ := strings.Cut(selector, ".")

	var headlines []string
	matched := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if matched >= maxHeadlinesPerSource {
			return
		}
		if n.Type == html.ElementNode && matchesSelector(n, tag, class) {
			matched++
			text := strings.Join(strings.Fields(nodeText(n)), " ")
			if len(text) >= minHeadlineLength {
				headlines = append(headlines, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return headlines
}

func matchesSelector(n *html.Node, tag, class string) bool {
	if tag != "" && n.Data != tag {
		return false
	}
	if class == "" {
		return tag != ""
	}
	for _, attr := range n.Attr {
		if attr.Key == "class" && slices.Contains(strings.Fields(attr.Val), class) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}

type HeadlineMatches struct {
	Matches  []string `json:"matches"`
	Count    int      `json:"count"`
	Keywords []string `json:"keywords"`
}

// SearchHeadlines keeps headlines mentioning any keyword, case-insensitively.
func SearchHeadlines(headlines, keywords []string) HeadlineMatches {
	matches := []string{}
	for _, h := range headlines {
		lower := strings.ToLower(h)
		if slices.ContainsFunc(keywords, func(k string) bool {
			return strings.Contains(lower, strings.ToLower(k))
		}) {
			matches = append(matches, h)
		}
	}
	return HeadlineMatches{Matches: matches, Count: len(matches), Keywords: keywords}
}

var (
	failedPattern = regexp.MustCompile(`(?i)\b(failed|fails|did\s+not\s+pass|didn't\s+pass)\s+(the\s+)?(california\s+)?(baby\s+)?bar\b`)
	passedPattern = regexp.MustCompile(`(?i)\b(passed|passes)\s+(the\s+)?(california\s+)?(baby\s+)?bar\b`)
)

// DetectBreakingNews looks for definitive result language. Fail language is
// checked first so "did not pass the bar" is not read as a pass.
func DetectBreakingNews(headlines []string) (Phase, bool) {
	for _, h := range headlines {
		if failedPattern.MatchString(h) {
			return PhaseFailed, true
		}
	}
	for _, h := range headlines {
		if passedPattern.MatchString(h) {
			return PhasePassed, true
		}
	}
	return "", false
}
