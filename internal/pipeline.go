package internal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	ImageSourceLocal    = "local"
	ImageSourceScrape   = "scrape"
	ImageSourceGenerate = "generate"

	StructureBank = "bank"
)

// NewsSearcher and HeadlineScraper never fail; upstream errors surface as
// empty results.
type NewsSearcher interface {
	Search(ctx context.Context) *SearchResult
}

type HeadlineScraper interface {
	ScrapeAll(ctx context.Context) *ScrapeResult
}

type RemoteImageSource interface {
	Fetch(ctx context.Context, recentIDs []string) (*ImageCandidate, error)
}

type RunInput struct {
	// Mode overrides the configured mode when set.
	Mode string
	// Phase forces a tweet bank phase instead of the calendar one.
	Phase     Phase
	SkipImage bool
}

type RunReport struct {
	RunID        string          `json:"run_id"`
	Mode         string          `json:"mode"`
	Phase        Phase           `json:"phase,omitempty"`
	Breaking     bool            `json:"breaking"`
	Headlines    []string        `json:"headlines"`
	Facts        []Fact          `json:"facts"`
	HasNewUpdate bool            `json:"has_new_update"`
	Analysis     *StatusAnalysis `json:"analysis,omitempty"`
	Caption      *CaptionResult  `json:"caption,omitempty"`
	Tweet        *PickedTweet    `json:"tweet,omitempty"`
	Text         string          `json:"text"`
	Image        *ImageCandidate `json:"image,omitempty"`
	MediaPath    string          `json:"media_path,omitempty"`
	Post         *PostResult     `json:"post,omitempty"`
	Skipped      bool            `json:"skipped"`
	MemoryDiff   string          `json:"memory_diff,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
}

// Pipeline runs one bot cycle: gather news, decide what to say, pick an
// image, post and record. Every collaborator except the store and the
// poster is optional; a missing one skips its step.
type Pipeline struct {
	cfg    *Config
	store  *MemoryStore
	poster Poster

	searcher  NewsSearcher
	scraper   HeadlineScraper
	analyzer  *Analyzer
	captions  *CaptionGenerator
	bank      *TweetBank
	memes     *MemeCatalog
	fetcher   RemoteImageSource
	generator ImageGenerator
	describer ImageDescriber
	enhancer  *Enhancer
	composer  *Composer
	ledger    *Ledger

	logger *zap.Logger
	now    func() time.Time
}

type PipelineOption func(*Pipeline)

func WithNewsSearcher(s NewsSearcher) PipelineOption {
	return func(p *Pipeline) { p.searcher = s }
}

func WithHeadlineScraper(s HeadlineScraper) PipelineOption {
	return func(p *Pipeline) { p.scraper = s }
}

func WithAnalyzer(a *Analyzer) PipelineOption {
	return func(p *Pipeline) { p.analyzer = a }
}

func WithCaptionGenerator(g *CaptionGenerator) PipelineOption {
	return func(p *Pipeline) { p.captions = g }
}

func WithTweetBank(b *TweetBank) PipelineOption {
	return func(p *Pipeline) { p.bank = b }
}

func WithMemeCatalog(c *MemeCatalog) PipelineOption {
	return func(p *Pipeline) { p.memes = c }
}

func WithImageSource(f RemoteImageSource) PipelineOption {
	return func(p *Pipeline) { p.fetcher = f }
}

func WithImageGenerator(g ImageGenerator) PipelineOption {
	return func(p *Pipeline) { p.generator = g }
}

func WithImageDescriber(d ImageDescriber) PipelineOption {
	return func(p *Pipeline) { p.describer = d }
}

func WithEnhancer(e *Enhancer) PipelineOption {
	return func(p *Pipeline) { p.enhancer = e }
}

func WithComposer(c *Composer) PipelineOption {
	return func(p *Pipeline) { p.composer = c }
}

func WithLedger(l *Ledger) PipelineOption {
	return func(p *Pipeline) { p.ledger = l }
}

func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(cfg *Config, store *MemoryStore, poster Poster, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		store:  store,
		poster: poster,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p
}

// Run executes one cycle. The only error it returns is a failed post (or a
// canceled context); every other failure degrades and is logged.
func (p *Pipeline) Run(ctx context.Context, in RunInput) (*RunReport, error) {
	now := p.now().In(p.cfg.Location())
	report := &RunReport{
		RunID:     ulid.Make().String(),
		Mode:      p.mode(in.Mode),
		StartedAt: now,
	}
	logger := p.logger.With(zap.String("run_id", report.RunID), zap.String("mode", report.Mode))
	logger.Info("run started", zap.Bool("dry_run", p.cfg.DryRun))

	before := p.store.Load()

	search, scrape := p.gather(ctx)
	report.Facts = search.Facts
	report.HasNewUpdate = search.HasNewUpdate
	report.Headlines = mergeHeadlines(search.Headlines, scrape.AllHeadlines)
	logger.Info("news gathered",
		zap.Int("headlines", len(report.Headlines)),
		zap.Int("facts", len(report.Facts)),
		zap.Int("sources_ok", scrape.SuccessfulSources))

	if err := ctx.Err(); err != nil {
		return report, err
	}

	phase, breaking := DetectBreakingNews(report.Headlines)
	report.Breaking = breaking
	switch {
	case in.Phase != "":
		report.Phase = in.Phase
	case breaking:
		report.Phase = phase
		logger.Info("breaking news detected", zap.String("phase", string(phase)))
	case p.bank != nil:
		report.Phase = p.bank.Calendar().CurrentPhase(now)
	}

	var err error
	switch report.Mode {
	case ModeBank:
		err = p.composeFromBank(ctx, report, before, in, now)
	default:
		err = p.composeFromLLM(ctx, report, in, now)
	}
	if err != nil {
		return report, err
	}
	if report.Skipped {
		logger.Info("nothing to post")
		report.FinishedAt = p.now()
		return report, nil
	}

	p.attachMedia(ctx, report)

	mediaID := ""
	if report.MediaPath != "" {
		mediaID, err = p.poster.UploadMedia(ctx, report.MediaPath)
		if err != nil {
			logger.Warn("media upload failed, posting text only", zap.Error(err))
			mediaID = ""
		}
	}

	result, err := p.poster.Post(ctx, report.Text, mediaID)
	report.Post = result
	report.FinishedAt = p.now()
	if err != nil {
		logger.Error("post failed", zap.Error(err))
		return report, err
	}

	p.record(ctx, report, logger)

	if diff, err := DiffRecords(before, p.store.Load()); err == nil {
		report.MemoryDiff = diff
	}

	logger.Info("run finished",
		zap.String("tweet_id", result.ID),
		zap.Bool("dry_run", result.DryRun),
		zap.Int("length", result.Length))
	return report, nil
}

func (p *Pipeline) mode(override string) string {
	mode := p.cfg.Mode
	if override != "" {
		mode = override
	}
	if mode != ModeBank {
		return ModeLLM
	}
	return ModeBank
}

// gather runs the RSS search and the page scraper concurrently.
func (p *Pipeline) gather(ctx context.Context) (*SearchResult, *ScrapeResult) {
	search := &SearchResult{}
	scrape := &ScrapeResult{}

	g, gctx := errgroup.WithContext(ctx)
	if p.searcher != nil {
		g.Go(func() error {
			if r := p.searcher.Search(gctx); r != nil {
				search = r
			}
			return nil
		})
	}
	if p.scraper != nil {
		g.Go(func() error {
			if r := p.scraper.ScrapeAll(gctx); r != nil {
				scrape = r
			}
			return nil
		})
	}
	_ = g.Wait()

	return search, scrape
}

func mergeHeadlines(lists ...[]string) []string {
	merged := []string{}
	for _, list := range lists {
		for _, h := range list {
			if !slices.Contains(merged, h) {
				merged = append(merged, h)
			}
		}
	}
	return merged
}

func (p *Pipeline) composeFromBank(ctx context.Context, report *RunReport, record *MemoryRecord, in RunInput, now time.Time) error {
	if p.bank == nil {
		return fmt.Errorf("bank mode: tweet bank not configured")
	}

	if !in.SkipImage {
		report.Image = p.selectImage(ctx, record.UsedImages, string(report.Phase))
	}

	picked := p.bank.PickTweet(report.Phase, now)
	report.Tweet = &picked
	report.Phase = picked.Phase
	report.Text = picked.Text
	return nil
}

func (p *Pipeline) composeFromLLM(ctx context.Context, report *RunReport, in RunInput, now time.Time) error {
	analysis := NoNewsAnalysis()
	if p.analyzer != nil {
		analysis = p.analyzer.Analyze(ctx, report.Headlines, now)
	}
	if report.Breaking {
		analysis.Status = StatusFailed
		if report.Phase == PhasePassed {
			analysis.Status = StatusPassed
		}
		analysis.ShouldTweet = true
	}
	report.Analysis = analysis

	if !analysis.ShouldTweet {
		report.Skipped = true
		return nil
	}

	record := p.store.Load()
	if !in.SkipImage {
		report.Image = p.selectImage(ctx, record.UsedImages, analysis.ImageKeyword)
	}

	// A definitive result is announced with a fixed message rather than a
	// generated joke.
	if analysis.Status == StatusPassed || analysis.Status == StatusFailed {
		if p.bank != nil {
			picked := p.bank.PickTweet(statusPhase(analysis.Status), now)
			report.Tweet = &picked
			report.Text = picked.Text
		} else {
			report.Text = analysis.Message
		}
		return nil
	}

	if p.captions == nil {
		report.Text = analysis.Message
		return nil
	}

	captionIn := CaptionInput{
		Facts:        report.Facts,
		HasNewUpdate: report.HasNewUpdate,
		Now:          now,
	}
	if report.Image != nil {
		captionIn.ImageDescription = report.Image.Description
		captionIn.ImageID = report.Image.Key()
	}

	caption, err := p.captions.Generate(ctx, captionIn)
	if err != nil {
		return fmt.Errorf("generate caption: %w", err)
	}
	report.Caption = caption
	report.Text = caption.Caption
	return nil
}

func statusPhase(s Status) Phase {
	if s == StatusPassed {
		return PhasePassed
	}
	return PhaseFailed
}

// selectImage finds an image from the configured source, falling back to
// the local meme catalog, then describes and enhances it. Failures leave
// the post without an image.
func (p *Pipeline) selectImage(ctx context.Context, recent []string, keyword string) *ImageCandidate {
	if !p.cfg.Images.Enabled {
		return nil
	}

	var img *ImageCandidate
	var err error
	switch p.cfg.Images.Source {
	case ImageSourceScrape:
		if p.fetcher != nil {
			img, err = p.fetcher.Fetch(ctx, recent)
		}
	case ImageSourceGenerate:
		if p.generator != nil {
			img, err = p.generator.GenerateImage(ctx, imagePrompt(keyword))
		}
	}
	if err != nil {
		p.logger.Warn("image source failed, using local memes",
			zap.String("source", p.cfg.Images.Source), zap.Error(err))
	}

	if img == nil && p.memes != nil {
		if local, ok := p.memes.SelectLocal(recent); ok {
			img = local
		}
	}
	if img == nil {
		p.logger.Info("no image available")
		return nil
	}

	if p.describer != nil && img.Path != "" {
		desc, err := p.describer.Describe(ctx, img.Path)
		if err != nil {
			p.logger.Warn("describe image failed", zap.Error(err))
		} else {
			img.Description = desc
		}
	}

	if p.enhancer != nil {
		enhanced, err := p.enhancer.Enhance(img)
		if err != nil {
			p.logger.Warn("enhance image failed", zap.Error(err))
		} else {
			img = enhanced
		}
	}

	p.logger.Info("image selected",
		zap.String("id", img.ID),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height))
	return img
}

func imagePrompt(keyword string) string {
	if keyword == "" {
		keyword = "waiting"
	}
	return fmt.Sprintf("A playful editorial illustration about waiting for bar exam results, theme: %s. "+
		"Law books, a study desk, a laptop showing a results page. No text, no real people.", keyword)
}

func (p *Pipeline) attachMedia(ctx context.Context, report *RunReport) {
	if report.Image == nil || report.Image.Path == "" {
		return
	}
	report.MediaPath = report.Image.Path

	if p.composer == nil || !p.cfg.Images.Compose {
		return
	}
	composed, err := p.composer.Compose(report.Image.Path, report.Text)
	if err != nil {
		p.logger.Warn("compose failed, posting raw image", zap.Error(err))
		return
	}
	report.MediaPath = composed
}

// record stores the post in memory and the ledger. Both are best effort.
func (p *Pipeline) record(ctx context.Context, report *RunReport, logger *zap.Logger) {
	imageKey := ""
	if report.Image != nil {
		imageKey = report.Image.Key()
	}

	// The caption generator already recorded its own accepted captions.
	if report.Caption == nil || !report.Caption.Success {
		structure := StructureBank
		if report.Caption != nil {
			structure = report.Caption.Structure
		}
		p.store.RecordCaption(ctx, p.store.Load(), report.Text, CaptionMeta{
			Structure: structure,
			ImageID:   imageKey,
		})
	}

	if p.ledger == nil {
		return
	}
	entry := &LedgerEntry{
		RunID:    report.RunID,
		TweetID:  report.Post.ID,
		Text:     report.Post.Text,
		Phase:    string(report.Phase),
		Mode:     report.Mode,
		DryRun:   report.Post.DryRun,
		Image:    imageKey,
		PostedAt: report.Post.Timestamp,
	}
	if err := p.ledger.Record(ctx, entry); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to record post", zap.Error(err))
	}
}
