package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Use case input/output DTOs

type InitInput struct {
	Scope string
	Force bool
}

type InitOutput struct {
	Path    string
	Created bool
}

type RunCommandInput struct {
	Scope     string
	Mode      string
	Phase     Phase
	DryRun    bool
	SkipImage bool
}

type ValidateInput struct {
	Text    string
	HasFact bool
	Scope   string
}

type ValidateOutput struct {
	Verdict   Verdict
	Length    int
	Sentences int
	// Repaired is the caption with invented dates stripped, set only when
	// that is the sole problem and the repair passes.
	Repaired string
}

type CommitInput struct {
	Message string
	Scope   string
}

type CommitOutput struct {
	Hash      string
	Message   string
	Timestamp time.Time
}

type LogInput struct {
	Limit int
	Scope string
}

type LogOutput struct {
	Commits []CommitOutput
}

// Use cases

type InitUseCase struct {
	resolver *ScopeResolver
	getwd    func() (string, error)
}

func NewInitUseCase(resolver *ScopeResolver) *InitUseCase {
	return &InitUseCase{resolver: resolver, getwd: os.Getwd}
}

// Execute creates the state directory with a default config, an empty
// memory record, the meme folder and the history store. An existing state
// directory is left alone unless Force is set, in which case only missing
// pieces are created.
func (uc *InitUseCase) Execute(ctx context.Context, input InitInput) (*InitOutput, error) {
	scope, err := uc.target(input.Scope)
	if err != nil {
		return nil, err
	}

	_, statErr := os.Stat(scope.HistoryPath())
	exists := statErr == nil
	if exists && !input.Force {
		return &InitOutput{Path: scope.Path, Created: false}, nil
	}

	if err := os.MkdirAll(scope.MemesDir(), 0755); err != nil {
		return nil, fmt.Errorf("create memes directory: %w", err)
	}

	if !exists {
		if err := InitStateRepository(scope); err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
	}

	if _, err := os.Stat(scope.ConfigPath()); errors.Is(err, os.ErrNotExist) {
		if err := SaveConfig(scope, DefaultConfig()); err != nil {
			return nil, fmt.Errorf("save config: %w", err)
		}
	}

	if _, err := os.Stat(scope.MemoryPath()); errors.Is(err, os.ErrNotExist) {
		repo, err := NewStateRepository(scope)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		NewMemoryStore(scope.MemoryPath(), repo, nil).Save(ctx, NewMemoryRecord())
	}

	return &InitOutput{Path: scope.Path, Created: true}, nil
}

func (uc *InitUseCase) target(hint string) (Scope, error) {
	switch hint {
	case "global":
		return uc.resolver.Global(), nil
	case "", "project":
		cwd, err := uc.getwd()
		if err != nil {
			return Scope{}, fmt.Errorf("get working directory: %w", err)
		}
		return Scope{Type: ScopeProject, Path: filepath.Join(cwd, StateDirName)}, nil
	default:
		return uc.resolver.Resolve(hint), nil
	}
}

// RunUseCase wires every component from the scope's config and runs one
// pipeline cycle.
type RunUseCase struct {
	resolver    *ScopeResolver
	logger      *zap.Logger
	client      *http.Client
	getenv      func(string) string
	posterFor   func(context.Context, *Config, *zap.Logger) (Poster, error)
	providerFor func(context.Context, *Config) (Provider, error)
}

func NewRunUseCase(resolver *ScopeResolver, logger *zap.Logger) *RunUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunUseCase{
		resolver:    resolver,
		logger:      logger,
		client:      &http.Client{Timeout: 30 * time.Second},
		getenv:      os.Getenv,
		posterFor:   DefaultPoster,
		providerFor: defaultProvider,
	}
}

// DefaultPoster builds the posting client. Missing credentials are fatal
// unless the run is a dry run, which then gets a DryRunPoster.
func DefaultPoster(ctx context.Context, cfg *Config, logger *zap.Logger) (Poster, error) {
	client, err := NewTwitterClient(ctx, cfg.Twitter, cfg.DryRun, logger)
	if errors.Is(err, ErrMissingCredentials) && cfg.DryRun {
		logger.Info("no twitter credentials, dry run only")
		return DryRunPoster{}, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func defaultProvider(ctx context.Context, cfg *Config) (Provider, error) {
	p, err := ProviderFromConfig(ctx, cfg, "")
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (uc *RunUseCase) Execute(ctx context.Context, input RunCommandInput) (*RunReport, error) {
	scope := uc.resolver.Resolve(input.Scope)
	if !scope.Initialized() {
		return nil, fmt.Errorf("%w: %s", ErrNotInitialized, scope.Path)
	}

	cfg, err := LoadConfig(scope)
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, uc.getenv)
	if input.DryRun {
		cfg.DryRun = true
	}

	poster, err := uc.posterFor(ctx, cfg, uc.logger)
	if err != nil {
		return nil, fmt.Errorf("init posting client: %w", err)
	}

	var history HistoryRepository
	if cfg.History.Enabled {
		if repo, err := NewStateRepository(scope); err != nil {
			uc.logger.Warn("history unavailable", zap.Error(err))
		} else {
			history = repo
		}
	}
	store := NewMemoryStore(scope.MemoryPath(), history, uc.logger)

	opts := []PipelineOption{
		WithPipelineLogger(uc.logger),
		WithNewsSearcher(NewWebSearcher(cfg.News, uc.client, uc.logger)),
		WithHeadlineScraper(NewScraper(cfg.News, uc.client, uc.logger)),
		WithMemeCatalog(NewMemeCatalog(scope.MemesDir(), cfg.Images.MinShortSide, uc.logger)),
		WithEnhancer(NewEnhancer(filepath.Join(scope.CacheDir(), "enhanced"), cfg.Images.MinShortSide, uc.logger)),
	}

	provider, err := uc.providerFor(ctx, cfg)
	if err != nil {
		uc.logger.Info("no llm provider, using fallbacks", zap.Error(err))
		provider = nil
	}
	opts = append(opts,
		WithAnalyzer(NewAnalyzer(provider, cfg.Subject, uc.logger)),
		WithCaptionGenerator(NewCaptionGenerator(provider, store, cfg, uc.logger)),
	)

	if bank, err := LoadTweetBank(scope, cfg); err != nil {
		uc.logger.Warn("tweet bank unavailable", zap.Error(err))
	} else {
		opts = append(opts, WithTweetBank(bank))
	}

	ledger, err := OpenLedger(scope.LedgerPath())
	if err != nil {
		uc.logger.Warn("ledger unavailable", zap.Error(err))
	} else {
		defer ledger.Close()
		opts = append(opts, WithLedger(ledger))
	}

	opts = append(opts, uc.imageOptions(ctx, scope, cfg)...)

	return NewPipeline(cfg, store, poster, opts...).Run(ctx, RunInput{
		Mode:      input.Mode,
		Phase:     input.Phase,
		SkipImage: input.SkipImage,
	})
}

// imageOptions builds the optional image collaborators. Each one that
// cannot be built is left out and the pipeline falls back to local memes.
func (uc *RunUseCase) imageOptions(ctx context.Context, scope Scope, cfg *Config) []PipelineOption {
	if !cfg.Images.Enabled {
		return nil
	}

	var opts []PipelineOption
	cache := scope.CacheDir()

	switch cfg.Images.Source {
	case ImageSourceScrape:
		downloader := NewDownloader(filepath.Join(cache, "downloads"), cfg.News.UserAgent, uc.client)
		searcher := NewRodImageScraper(3*cfg.News.Timeout, uc.logger)
		opts = append(opts, WithImageSource(NewImageFetcher(searcher, downloader, cfg.Images.SearchQueries, uc.logger)))
	case ImageSourceGenerate:
		gen, err := NewOpenAIImageGenerator(cfg.Images.OpenAIAPIKey, cfg.Images.OpenAIModel, filepath.Join(cache, "generated"), uc.logger)
		if err != nil {
			uc.logger.Warn("image generator unavailable", zap.Error(err))
		} else {
			opts = append(opts, WithImageGenerator(gen))
		}
	}

	if cfg.Images.GeminiAPIKey != "" {
		describer, err := NewGeminiDescriber(ctx, cfg.Images.GeminiAPIKey, cfg.Images.GeminiModel)
		if err != nil {
			uc.logger.Warn("image describer unavailable", zap.Error(err))
		} else {
			opts = append(opts, WithImageDescriber(describer))
		}
	}

	if cfg.Images.Compose {
		composer, err := NewComposer(filepath.Join(cache, "composed"), uc.logger)
		if err != nil {
			uc.logger.Warn("composer unavailable", zap.Error(err))
		} else {
			opts = append(opts, WithComposer(composer))
		}
	}

	return opts
}

type ValidateUseCase struct {
	resolver *ScopeResolver
}

func NewValidateUseCase(resolver *ScopeResolver) *ValidateUseCase {
	return &ValidateUseCase{resolver: resolver}
}

// Execute validates text with the limits from the scope's config, or the
// defaults when the scope has none.
func (uc *ValidateUseCase) Execute(ctx context.Context, input ValidateInput) (*ValidateOutput, error) {
	cfg, err := LoadConfig(uc.resolver.Resolve(input.Scope))
	if err != nil {
		return nil, err
	}

	opts := cfg.ValidateOptions(input.HasFact)
	out := &ValidateOutput{
		Verdict:   Validate(input.Text, opts),
		Length:    utf8.RuneCountInString(input.Text),
		Sentences: CountSentences(input.Text),
	}

	if out.Verdict.OnlyInventedDate() {
		repaired := StripInventedDates(input.Text)
		if Validate(repaired, opts).OK {
			out.Repaired = repaired
		}
	}
	return out, nil
}

type CommitUseCase struct {
	resolver *ScopeResolver
	repoFor  func(Scope) (HistoryRepository, error)
}

func NewCommitUseCase(
	resolver *ScopeResolver,
	repoFor func(Scope) (HistoryRepository, error),
) *CommitUseCase {
	return &CommitUseCase{
		resolver: resolver,
		repoFor:  repoFor,
	}
}

func (uc *CommitUseCase) Execute(ctx context.Context, input CommitInput) (*CommitOutput, error) {
	scope := uc.resolver.Resolve(input.Scope)
	repo, err := uc.repoFor(scope)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	message := input.Message
	if message == "" {
		message = "memory: manual snapshot"
	}

	commit, err := repo.Commit(ctx, message)
	if err != nil {
		return nil, err
	}

	return &CommitOutput{
		Hash:      commit.Hash,
		Message:   commit.Message,
		Timestamp: commit.Timestamp,
	}, nil
}

type LogUseCase struct {
	resolver *ScopeResolver
	repoFor  func(Scope) (HistoryRepository, error)
}

func NewLogUseCase(
	resolver *ScopeResolver,
	repoFor func(Scope) (HistoryRepository, error),
) *LogUseCase {
	return &LogUseCase{
		resolver: resolver,
		repoFor:  repoFor,
	}
}

func (uc *LogUseCase) Execute(ctx context.Context, input LogInput) (*LogOutput, error) {
	scope := uc.resolver.Resolve(input.Scope)
	repo, err := uc.repoFor(scope)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	commits, err := repo.Log(ctx, input.Limit)
	if err != nil {
		return nil, err
	}

	output := &LogOutput{
		Commits: make([]CommitOutput, len(commits)),
	}

	for i, c := range commits {
		output.Commits[i] = CommitOutput{
			Hash:      c.Hash,
			Message:   c.Message,
			Timestamp: c.Timestamp,
		}
	}

	return output, nil
}
