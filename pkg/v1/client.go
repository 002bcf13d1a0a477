package v1

import (
	"context"
	"fmt"

	"github.com/4thel00z/barwatch/internal"
	"go.uber.org/zap"
)

// Client provides programmatic access to caption validation and the
// anti-repetition memory of a state directory.
type Client struct {
	resolver *internal.ScopeResolver
	validate *internal.ValidateUseCase
	log      *internal.LogUseCase
	memory   *internal.MemoryService
	storeFor func(internal.Scope) *internal.MemoryStore
	state    string
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{history: true}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	resolver := internal.NewScopeResolver()
	histFor := func(scope internal.Scope) (internal.HistoryRepository, error) {
		return internal.NewStateRepository(scope)
	}
	storeFor := func(scope internal.Scope) *internal.MemoryStore {
		var history internal.HistoryRepository
		if cfg.history {
			if repo, err := internal.NewStateRepository(scope); err == nil {
				history = repo
			}
		}
		return internal.NewMemoryStore(scope.MemoryPath(), history, cfg.logger)
	}

	return &Client{
		resolver: resolver,
		validate: internal.NewValidateUseCase(resolver),
		log:      internal.NewLogUseCase(resolver, histFor),
		memory:   internal.NewMemoryService(resolver, storeFor),
		storeFor: storeFor,
		state:    cfg.state,
	}, nil
}

// Validate checks text against the caption rules configured for the state
// directory. hasFact allows dates backed by a sourced news fact.
func (c *Client) Validate(ctx context.Context, text string, hasFact bool) (*Verdict, error) {
	out, err := c.validate.Execute(ctx, internal.ValidateInput{
		Text: text, HasFact: hasFact, Scope: c.state,
	})
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	return &Verdict{
		OK:        out.Verdict.OK,
		Reason:    string(out.Verdict.Reason),
		Detail:    out.Verdict.Detail,
		Length:    out.Length,
		Sentences: out.Sentences,
		Repaired:  out.Repaired,
	}, nil
}

// Memory returns the current anti-repetition record.
func (c *Client) Memory(ctx context.Context) (*Memory, error) {
	record, err := c.memory.Show(c.state)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return toMemory(record), nil
}

// Check reports how caption would repeat recent posts without recording it.
func (c *Client) Check(ctx context.Context, caption string, meta CaptionMeta) (*Repetition, error) {
	report, err := c.memory.Check(caption, toInternalMeta(meta), c.state)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	return &Repetition{Repetitive: report.IsRepetitive, Issues: report.Issues}, nil
}

// Record adds a posted caption to the memory.
func (c *Client) Record(ctx context.Context, caption string, meta CaptionMeta) (*Memory, error) {
	scope := c.resolver.Resolve(c.state)
	if !scope.Initialized() {
		return nil, fmt.Errorf("record: %w: %s", internal.ErrNotInitialized, scope.Path)
	}

	store := c.storeFor(scope)
	record := store.RecordCaption(ctx, store.Load(), caption, toInternalMeta(meta))
	return toMemory(record), nil
}

// Reset clears the memory.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.memory.Reset(ctx, c.state); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}

// History returns up to limit commits of the memory history, newest first.
// A limit of zero returns everything.
func (c *Client) History(ctx context.Context, limit int) ([]Commit, error) {
	out, err := c.log.Execute(ctx, internal.LogInput{Limit: limit, Scope: c.state})
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	commits := make([]Commit, 0, len(out.Commits))
	for _, cm := range out.Commits {
		commits = append(commits, Commit{
			Hash:      cm.Hash,
			Message:   cm.Message,
			Timestamp: cm.Timestamp,
		})
	}
	return commits, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func toMemory(r *internal.MemoryRecord) *Memory {
	r = r.Clone()
	return &Memory{
		RecentCaptions: r.RecentCaptions,
		UsedImages:     r.UsedImages,
		MetaphorsUsed:  r.MetaphorsUsed,
		HashtagCombos:  r.HashtagCombos,
		LastStructure:  r.LastStructure,
		LastSearchHash: r.LastSearchHash,
	}
}

func toInternalMeta(m CaptionMeta) internal.CaptionMeta {
	return internal.CaptionMeta{
		Metaphor:     m.Metaphor,
		HashtagCombo: m.HashtagCombo,
		Structure:    m.Structure,
		ImageID:      m.ImageID,
	}
}
