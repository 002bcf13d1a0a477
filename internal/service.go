package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HistoryService handles the git history of a state directory
type HistoryService struct {
	resolver *ScopeResolver
	repoFor  func(Scope) (HistoryRepository, error)
}

func NewHistoryService(
	resolver *ScopeResolver,
	repoFor func(Scope) (HistoryRepository, error),
) *HistoryService {
	return &HistoryService{
		resolver: resolver,
		repoFor:  repoFor,
	}
}

func (s *HistoryService) Commit(ctx context.Context, message, scopeHint string) (*Commit, error) {
	scope := s.resolver.Resolve(scopeHint)
	repo, err := s.repoFor(scope)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	return repo.Commit(ctx, message)
}

func (s *HistoryService) Log(ctx context.Context, limit int, scopeHint string) ([]*Commit, error) {
	scope := s.resolver.Resolve(scopeHint)
	repo, err := s.repoFor(scope)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	return repo.Log(ctx, limit)
}

func (s *HistoryService) Diff(ctx context.Context, ref, scopeHint string) (string, error) {
	scope := s.resolver.Resolve(scopeHint)
	repo, err := s.repoFor(scope)
	if err != nil {
		return "", fmt.Errorf("get repository: %w", err)
	}

	return repo.Diff(ctx, ref)
}

func (s *HistoryService) Revert(ctx context.Context, ref, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	repo, err := s.repoFor(scope)
	if err != nil {
		return fmt.Errorf("get repository: %w", err)
	}

	return repo.Revert(ctx, ref)
}

// MemoryService reads and inspects the anti-repetition record
type MemoryService struct {
	resolver *ScopeResolver
	storeFor func(Scope) *MemoryStore
}

func NewMemoryService(resolver *ScopeResolver, storeFor func(Scope) *MemoryStore) *MemoryService {
	return &MemoryService{resolver: resolver, storeFor: storeFor}
}

func (s *MemoryService) Show(scopeHint string) (*MemoryRecord, error) {
	scope := s.resolver.Resolve(scopeHint)
	if !scope.Initialized() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, scope.Path)
	}
	return s.storeFor(scope).Load(), nil
}

// Check reports how candidate would repeat recent posts without recording it.
func (s *MemoryService) Check(candidate string, meta CaptionMeta, scopeHint string) (*RepetitionReport, error) {
	record, err := s.Show(scopeHint)
	if err != nil {
		return nil, err
	}
	report := CheckRepetition(record, candidate, meta)
	return &report, nil
}

// Reset replaces the record with an empty one.
func (s *MemoryService) Reset(ctx context.Context, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	if !scope.Initialized() {
		return fmt.Errorf("%w: %s", ErrNotInitialized, scope.Path)
	}
	s.storeFor(scope).Save(ctx, NewMemoryRecord())
	return nil
}

type StatusReport struct {
	Scope            string       `json:"scope"`
	Mode             string       `json:"mode"`
	DryRun           bool         `json:"dry_run"`
	Phase            Phase        `json:"phase"`
	DaysUntilExam    int          `json:"days_until_exam"`
	WeeksSinceExam   int          `json:"weeks_since_exam"`
	DaysUntilResults int          `json:"days_until_results"`
	RecentCaptions   int          `json:"recent_captions"`
	UsedImages       int          `json:"used_images"`
	LastStructure    string       `json:"last_structure"`
	LastPost         *LedgerEntry `json:"last_post,omitempty"`
	Provider         string       `json:"provider,omitempty"`
	ImageSource      string       `json:"image_source"`
	Generated        time.Time    `json:"generated"`
}

// StatusService summarizes where the bot stands
type StatusService struct {
	resolver *ScopeResolver
	now      func() time.Time
}

func NewStatusService(resolver *ScopeResolver) *StatusService {
	return &StatusService{resolver: resolver, now: time.Now}
}

func (s *StatusService) Status(ctx context.Context, scopeHint string) (*StatusReport, error) {
	scope := s.resolver.Resolve(scopeHint)
	if !scope.Initialized() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, scope.Path)
	}

	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}
	cal, err := ParseCalendar(cfg.Calendar)
	if err != nil {
		return nil, err
	}

	now := s.now().In(cfg.Location())
	record := NewMemoryStore(scope.MemoryPath(), nil, nil).Load()

	report := &StatusReport{
		Scope:            scope.Path,
		Mode:             cfg.Mode,
		DryRun:           cfg.DryRun,
		Phase:            cal.CurrentPhase(now),
		DaysUntilExam:    cal.DaysUntilExam(now),
		WeeksSinceExam:   cal.WeeksSinceExam(now),
		DaysUntilResults: cal.DaysUntilResults(now),
		RecentCaptions:   len(record.RecentCaptions),
		UsedImages:       len(record.UsedImages),
		LastStructure:    record.LastStructure,
		Provider:         cfg.DefaultProvider,
		ImageSource:      cfg.Images.Source,
		Generated:        now,
	}

	if _, err := os.Stat(scope.LedgerPath()); err == nil {
		ledger, err := OpenLedger(scope.LedgerPath())
		if err != nil {
			return nil, err
		}
		defer ledger.Close()

		recent, err := ledger.Recent(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(recent) > 0 {
			report.LastPost = &recent[0]
		}
	}

	return report, nil
}

// BankService previews the tweet bank
type BankService struct {
	resolver *ScopeResolver
	now      func() time.Time
}

func NewBankService(resolver *ScopeResolver) *BankService {
	return &BankService{resolver: resolver, now: time.Now}
}

// Preview returns the tweet the bank would post today for phase, or for the
// calendar phase when phase is empty.
func (s *BankService) Preview(phase Phase, scopeHint string) (*PickedTweet, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}

	bank, err := LoadTweetBank(scope, cfg)
	if err != nil {
		return nil, err
	}

	picked := bank.PickTweet(phase, s.now().In(cfg.Location()))
	return &picked, nil
}

// PoolSizes reports how many tweets each phase has.
func (s *BankService) PoolSizes(scopeHint string) (map[Phase]int, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}

	bank, err := LoadTweetBank(scope, cfg)
	if err != nil {
		return nil, err
	}

	sizes := make(map[Phase]int, len(Phases))
	for _, p := range Phases {
		sizes[p] = bank.PoolSize(p)
	}
	return sizes, nil
}

type NewsReport struct {
	Search   *SearchResult   `json:"search"`
	Scrape   *ScrapeResult   `json:"scrape"`
	Matches  HeadlineMatches `json:"matches"`
	Breaking Phase           `json:"breaking,omitempty"`
}

// NewsService runs the news gatherers without posting anything
type NewsService struct {
	resolver *ScopeResolver
	client   *http.Client
	logger   *zap.Logger
}

func NewNewsService(resolver *ScopeResolver, client *http.Client, logger *zap.Logger) *NewsService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NewsService{resolver: resolver, client: client, logger: logger}
}

func (s *NewsService) Gather(ctx context.Context, scopeHint string) (*NewsReport, error) {
	cfg, err := LoadConfig(s.resolver.Resolve(scopeHint))
	if err != nil {
		return nil, err
	}

	p := NewPipeline(cfg, nil, nil,
		WithPipelineLogger(s.logger),
		WithNewsSearcher(NewWebSearcher(cfg.News, s.client, s.logger)),
		WithHeadlineScraper(NewScraper(cfg.News, s.client, s.logger)),
	)
	search, scrape := p.gather(ctx)

	all := mergeHeadlines(search.Headlines, scrape.AllHeadlines)
	report := &NewsReport{
		Search:  search,
		Scrape:  scrape,
		Matches: SearchHeadlines(all, cfg.News.Keywords),
	}
	if phase, ok := DetectBreakingNews(all); ok {
		report.Breaking = phase
	}
	return report, nil
}

// PostsService reads the post ledger
type PostsService struct {
	resolver *ScopeResolver
}

func NewPostsService(resolver *ScopeResolver) *PostsService {
	return &PostsService{resolver: resolver}
}

func (s *PostsService) Recent(ctx context.Context, limit int, scopeHint string) ([]LedgerEntry, error) {
	scope := s.resolver.Resolve(scopeHint)
	if !scope.Initialized() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, scope.Path)
	}

	ledger, err := OpenLedger(scope.LedgerPath())
	if err != nil {
		return nil, err
	}
	defer ledger.Close()

	return ledger.Recent(ctx, limit)
}

type HealthCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// HealthService checks credentials and state before a scheduled run
type HealthService struct {
	resolver *ScopeResolver
	getenv   func(string) string
	logger   *zap.Logger
}

func NewHealthService(resolver *ScopeResolver, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthService{resolver: resolver, getenv: os.Getenv, logger: logger}
}

// Check reports every problem it finds rather than stopping at the first.
// With verify set the Twitter credentials are exercised against the API.
func (s *HealthService) Check(ctx context.Context, verify bool, scopeHint string) ([]HealthCheck, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, s.getenv)

	checks := []HealthCheck{{
		Name:   "state",
		OK:     scope.Initialized(),
		Detail: scope.Path,
	}}

	creds := []struct {
		name  string
		value string
	}{
		{"TWITTER_API_KEY", cfg.Twitter.APIKey},
		{"TWITTER_API_SECRET", cfg.Twitter.APISecret},
		{"TWITTER_ACCESS_TOKEN", cfg.Twitter.AccessToken},
		{"TWITTER_ACCESS_TOKEN_SECRET", cfg.Twitter.AccessTokenSecret},
	}
	for _, c := range creds {
		checks = append(checks, HealthCheck{Name: c.name, OK: c.value != ""})
	}

	provider := HealthCheck{Name: "llm provider", OK: true, Detail: cfg.DefaultProvider}
	if cfg.Mode == ModeLLM {
		if _, ok := cfg.Providers[cfg.DefaultProvider]; !ok {
			provider.OK = false
			provider.Detail = "no default provider, captions will use fallbacks"
		}
	}
	checks = append(checks, provider)

	if cfg.Images.Enabled && cfg.Images.Source == ImageSourceGenerate {
		checks = append(checks, HealthCheck{Name: "OPENAI_API_KEY", OK: cfg.Images.OpenAIAPIKey != ""})
	}

	if _, err := ParseCalendar(cfg.Calendar); err != nil {
		checks = append(checks, HealthCheck{Name: "calendar", OK: false, Detail: err.Error()})
	} else {
		checks = append(checks, HealthCheck{Name: "calendar", OK: true})
	}

	if verify {
		checks = append(checks, s.verifyTwitter(ctx, cfg))
	}

	return checks, nil
}

func (s *HealthService) verifyTwitter(ctx context.Context, cfg *Config) HealthCheck {
	check := HealthCheck{Name: "twitter api"}

	client, err := NewTwitterClient(ctx, cfg.Twitter, false, s.logger)
	if err != nil {
		check.Detail = err.Error()
		return check
	}

	user, err := client.VerifyCredentials(ctx)
	if err != nil {
		check.Detail = err.Error()
		return check
	}

	check.OK = true
	check.Detail = "@" + user.Username
	return check
}

// Healthy reports whether every check passed.
func Healthy(checks []HealthCheck) bool {
	for _, c := range checks {
		if !c.OK {
			return false
		}
	}
	return true
}

type ProviderInfo struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
	Default bool   `json:"default"`
}

// ProviderService manages LLM provider configuration
type ProviderService struct {
	resolver    *ScopeResolver
	providerFor func(context.Context, *Config, string) (Provider, error)
}

func NewProviderService(resolver *ScopeResolver) *ProviderService {
	return &ProviderService{
		resolver: resolver,
		providerFor: func(ctx context.Context, cfg *Config, name string) (Provider, error) {
			p, err := ProviderFromConfig(ctx, cfg, name)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

func (s *ProviderService) List(scopeHint string) ([]ProviderInfo, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}

	infos := make([]ProviderInfo, 0, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		infos = append(infos, ProviderInfo{
			Name:    name,
			Model:   pc.Model,
			BaseURL: pc.BaseURL,
			Default: name == cfg.DefaultProvider,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Add stores a provider. The first provider added becomes the default.
func (s *ProviderService) Add(name string, providerCfg ProviderConfig, scopeHint string) error {
	if !isSupportedProvider(name) {
		return fmt.Errorf("unsupported provider %q (supported: %s)", name, strings.Join(SupportedProviders, ", "))
	}

	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	cfg.Providers[name] = providerCfg
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = name
	}
	return SaveConfig(scope, cfg)
}

func (s *ProviderService) Remove(name, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	if _, exists := cfg.Providers[name]; !exists {
		return fmt.Errorf("provider %q: %w", name, ErrNotFound)
	}

	delete(cfg.Providers, name)
	if cfg.DefaultProvider == name {
		cfg.DefaultProvider = ""
	}
	return SaveConfig(scope, cfg)
}

func (s *ProviderService) SetDefault(name, scopeHint string) error {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return err
	}

	if _, exists := cfg.Providers[name]; !exists {
		return fmt.Errorf("provider %q: %w", name, ErrNotFound)
	}

	cfg.DefaultProvider = name
	return SaveConfig(scope, cfg)
}

// Test sends a one-line prompt through the provider and returns the reply.
func (s *ProviderService) Test(ctx context.Context, name, scopeHint string) (string, error) {
	scope := s.resolver.Resolve(scopeHint)
	cfg, err := LoadConfig(scope)
	if err != nil {
		return "", err
	}

	provider, err := s.providerFor(ctx, cfg, name)
	if err != nil {
		return "", fmt.Errorf("create provider: %w", err)
	}

	reply, err := provider.Complete(ctx, "Reply with the single word: ready")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func isSupportedProvider(name string) bool {
	return slices.Contains(SupportedProviders, name)
}
