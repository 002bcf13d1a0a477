package internal

import (
	"context"
	"fmt"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"
)

var SupportedProviders = []string{"openai", "anthropic", "openrouter"}

type FantasyConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string

	// Zero values leave the provider defaults in place.
	Temperature     float64
	MaxOutputTokens int64
}

var _ Provider = (*FantasyProvider)(nil)

type FantasyProvider struct {
	model           fantasy.LanguageModel
	name            string
	temperature     float64
	maxOutputTokens int64
}

func NewFantasyProvider(ctx context.Context, cfg FantasyConfig) (*FantasyProvider, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)

	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		provider, err = openrouter.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}

	return &FantasyProvider{
		model:           model,
		name:            cfg.Provider,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
	}, nil
}

// ProviderFromConfig builds the named provider, or the default one when
// name is empty.
func ProviderFromConfig(ctx context.Context, cfg *Config, name string) (*FantasyProvider, error) {
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		return nil, ErrNoProvider
	}

	pc, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, name)
	}

	return NewFantasyProvider(ctx, FantasyConfig{
		Provider: name,
		APIKey:   pc.APIKey,
		BaseURL:  pc.BaseURL,
		Model:    pc.Model,

		Temperature:     cfg.Caption.Temperature,
		MaxOutputTokens: cfg.Caption.MaxTokens,
	})
}

func (p *FantasyProvider) Name() string {
	return p.name
}

func (p *FantasyProvider) Complete(ctx context.Context, prompt string) (string, error) {
	agent := fantasy.NewAgent(p.model)

	result, err := agent.Generate(ctx, p.call(prompt))
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return result.Response.Content.Text(), nil
}

func (p *FantasyProvider) call(prompt string) fantasy.AgentCall {
	call := fantasy.AgentCall{Prompt: prompt}
	if p.temperature > 0 {
		t := p.temperature
		call.Temperature = &t
	}
	if p.maxOutputTokens > 0 {
		n := p.maxOutputTokens
		call.MaxOutputTokens = &n
	}
	return call
}
