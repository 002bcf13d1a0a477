package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeLLM  = "llm"
	ModeBank = "bank"
)

type ProviderConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model"`
}

type CaptionConfig struct {
	MaxChars         int      `yaml:"max_chars"`
	MaxSentences     int      `yaml:"max_sentences"`
	MaxAttempts      int      `yaml:"max_attempts"`
	Temperature      float64  `yaml:"temperature"`
	MaxTokens        int64    `yaml:"max_tokens"`
	ForcedHashtags   []string `yaml:"forced_hashtags"`
	OptionalHashtags []string `yaml:"optional_hashtags"`
	BannedPhrases    []string `yaml:"banned_phrases"`
}

type SourceConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`
}

type TrustedSources struct {
	Official []string `yaml:"official"`
	Tier1    []string `yaml:"tier1"`
	Tier2    []string `yaml:"tier2"`
	Legal    []string `yaml:"legal"`
}

type NewsConfig struct {
	FeedURL   string         `yaml:"feed_url"`
	Queries   []string       `yaml:"queries"`
	Sources   []SourceConfig `yaml:"sources"`
	Trusted   TrustedSources `yaml:"trusted"`
	Keywords  []string       `yaml:"keywords"`
	Timeout   time.Duration  `yaml:"timeout"`
	UserAgent string         `yaml:"user_agent"`
}

// CalendarConfig holds the exam timeline as RFC 3339 timestamps.
type CalendarConfig struct {
	ExamStart       string `yaml:"exam_start"`
	ExamEnd         string `yaml:"exam_end"`
	ExamWeekStart   string `yaml:"exam_week_start"`
	ResultsExpected string `yaml:"results_expected"`
}

type ImagesConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Source            string   `yaml:"source"`
	Compose           bool     `yaml:"compose"`
	MinShortSide      int      `yaml:"min_short_side"`
	PreferredKeywords []string `yaml:"preferred_keywords"`
	ExcludedKeywords  []string `yaml:"excluded_keywords"`
	SearchQueries     []string `yaml:"search_queries"`
	OpenAIAPIKey      string   `yaml:"openai_api_key,omitempty"`
	OpenAIModel       string   `yaml:"openai_model"`
	GeminiAPIKey      string   `yaml:"gemini_api_key,omitempty"`
	GeminiModel       string   `yaml:"gemini_model"`
}

type TwitterConfig struct {
	APIKey            string `yaml:"api_key,omitempty"`
	APISecret         string `yaml:"api_secret,omitempty"`
	AccessToken       string `yaml:"access_token,omitempty"`
	AccessTokenSecret string `yaml:"access_token_secret,omitempty"`
	APIBaseURL        string `yaml:"api_base_url"`
	UploadBaseURL     string `yaml:"upload_base_url"`
}

type HistoryConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type Config struct {
	Subject         string                    `yaml:"subject"`
	Mode            string                    `yaml:"mode"`
	DryRun          bool                      `yaml:"dry_run"`
	Timezone        string                    `yaml:"timezone"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Caption         CaptionConfig             `yaml:"caption"`
	News            NewsConfig                `yaml:"news"`
	Calendar        CalendarConfig            `yaml:"calendar"`
	Images          ImagesConfig              `yaml:"images"`
	Twitter         TwitterConfig             `yaml:"twitter"`
	History         HistoryConfig             `yaml:"history"`
}

func DefaultConfig() *Config {
	return &Config{
		Subject:   "Kim Kardashian",
		Mode:      ModeLLM,
		Timezone:  "America/Los_Angeles",
		Providers: make(map[string]ProviderConfig),
		Caption: CaptionConfig{
			MaxChars:         DefaultMaxChars,
			MaxSentences:     DefaultMaxSentences,
			MaxAttempts:      3,
			Temperature:      0.9,
			MaxTokens:        512,
			ForcedHashtags:   []string{"#KimKardashian", "#BarExam"},
			OptionalHashtags: []string{"#LawSchool", "#RealityTV", "#CaliforniaBar", "#BarResults"},
			BannedPhrases:    []string{"still waiting", "tick tock", "any day now", "stay tuned"},
		},
		News: NewsConfig{
			FeedURL: "https://news.google.com/rss/search",
			Queries: []string{
				"Kim Kardashian California bar exam results",
				"California bar exam results schedule February 2026",
				"Kim Kardashian law school update",
			},
			Sources: []SourceConfig{
				{Name: "Reuters", URL: "https://www.reuters.com/search/news?blob=kim+kardashian+bar+exam", Selector: ".search-result-title"},
				{Name: "TMZ", URL: "https://www.tmz.com/search/?q=kim+kardashian+bar+exam", Selector: ".search-item__title"},
				{Name: "Variety", URL: "https://variety.com/?s=kim+kardashian+bar+exam", Selector: ".c-title__link"},
			},
			Trusted: TrustedSources{
				Official: []string{"calbar.ca.gov", "state bar of california"},
				Tier1:    []string{"people.com", "usatoday.com", "latimes.com", "tmz.com", "eonline.com", "etonline.com"},
				Tier2:    []string{"nbcnews.com", "newsweek.com", "yahoo.com", "elle.com", "vanityfair.com"},
				Legal:    []string{"abovethelaw.com", "dailyjournal.com", "jdadvising.com", "law360.com"},
			},
			Keywords:  []string{"bar exam", "passed", "failed", "results", "lawyer"},
			Timeout:   10 * time.Second,
			UserAgent: "Mozilla/5.0 (compatible; BarWatch/2.0)",
		},
		Calendar: CalendarConfig{
			ExamStart:       "2026-02-24T00:00:00-08:00",
			ExamEnd:         "2026-02-25T23:59:59-08:00",
			ExamWeekStart:   "2026-02-22T00:00:00-08:00",
			ResultsExpected: "2026-04-10T00:00:00-07:00",
		},
		Images: ImagesConfig{
			Enabled:      true,
			Source:       "local",
			Compose:      true,
			MinShortSide: DefaultMinShortSide,
			PreferredKeywords: []string{
				"business attire", "blazer", "suit", "studying",
				"law books", "interview", "professional", "desk",
				"courtroom", "formal", "portrait", "headshot",
			},
			ExcludedKeywords: []string{
				"bikini", "swimsuit", "lingerie", "revealing",
				"beach", "pool", "cleavage", "risky",
			},
			SearchQueries: []string{
				"Kim Kardashian bar exam",
				"Kim Kardashian lawyer",
				"Kim Kardashian studying law",
			},
			OpenAIModel: "dall-e-3",
			GeminiModel: "gemini-2.5-flash",
		},
		Twitter: TwitterConfig{
			APIBaseURL:    "https://api.twitter.com",
			UploadBaseURL: "https://upload.twitter.com",
		},
		History: HistoryConfig{
			Enabled:  true,
			Debounce: 2 * time.Second,
		},
	}
}

func LoadConfig(scope Scope) (*Config, error) {
	path := scope.ConfigPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}

	return cfg, nil
}

func SaveConfig(scope Scope, cfg *Config) error {
	path := scope.ConfigPath()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// ApplyEnv overlays environment variables on cfg. Unset variables leave the
// file values alone.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	set(&cfg.Twitter.APIKey, "TWITTER_API_KEY")
	set(&cfg.Twitter.APISecret, "TWITTER_API_SECRET")
	set(&cfg.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	set(&cfg.Twitter.AccessTokenSecret, "TWITTER_ACCESS_TOKEN_SECRET")
	set(&cfg.Images.OpenAIAPIKey, "OPENAI_API_KEY")
	set(&cfg.Images.GeminiAPIKey, "GEMINI_API_KEY")
	set(&cfg.Timezone, "TIMEZONE")
	set(&cfg.Mode, "BARWATCH_MODE")

	if v := getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.DryRun = b
		}
	}
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) ValidateOptions(hasFact bool) ValidateOptions {
	return ValidateOptions{
		MaxChars:          c.Caption.MaxChars,
		MaxSentences:      c.Caption.MaxSentences,
		HasFactFromSource: hasFact,
	}
}
