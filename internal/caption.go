package internal

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

var CaptionStructures = []string{"pov", "observation", "question", "statement", "comparison", "quote_riff"}

const StructureFallback = "fallback"

type CaptionInput struct {
	ImageDescription string
	ImageID          string
	Facts            []Fact
	HasNewUpdate     bool
	Now              time.Time
}

type CaptionResult struct {
	Caption      string           `json:"caption"`
	Hashtags     []string         `json:"hashtags"`
	ImageKeyword string           `json:"image_keyword"`
	Structure    string           `json:"structure"`
	Metaphor     string           `json:"metaphor,omitempty"`
	Success      bool             `json:"success"`
	Attempts     int              `json:"attempts"`
	Stage        string           `json:"stage,omitempty"`
	NewSearch    bool             `json:"new_search"`
	Rejections   map[Reason]int   `json:"rejections,omitempty"`
	Repetition   RepetitionReport `json:"repetition"`
}

// CaptionGenerator asks the provider for a caption, validates it and retries
// with feedback. It always produces a caption: when every attempt fails it
// falls back to a deterministic one.
type CaptionGenerator struct {
	provider Provider
	store    *MemoryStore
	cfg      CaptionConfig
	subject  string
	logger   *zap.Logger
	intn     func(int) int
}

func NewCaptionGenerator(provider Provider, store *MemoryStore, cfg *Config, logger *zap.Logger) *CaptionGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptionGenerator{
		provider: provider,
		store:    store,
		cfg:      cfg.Caption,
		subject:  cfg.Subject,
		logger:   logger.Named("caption"),
		intn:     rand.IntN,
	}
}

func (g *CaptionGenerator) Generate(ctx context.Context, in CaptionInput) (*CaptionResult, error) {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	record := g.store.Load()
	anchors := ExtractVisualAnchors(in.ImageDescription)
	g.logger.Debug("visual anchors", zap.Strings("anchors", anchors))

	isNewSearch := g.store.UpdateSearchHash(ctx, record, HashFacts(in.Facts))
	structure := g.pickStructure(record.LastStructure)
	hashtags := g.hashtags(record.HashtagCombos)
	hasFact := len(in.Facts) > 0

	attempts := max(g.cfg.MaxAttempts, 1)
	var rejected []Verdict
	feedback := ""

	for attempt := 1; attempt <= attempts && g.provider != nil; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := g.buildPrompt(promptData{
			anchors:      anchors,
			description:  in.ImageDescription,
			facts:        in.Facts,
			recent:       record.RecentCaptions,
			hasNewUpdate: in.HasNewUpdate && isNewSearch,
			structure:    structure,
			hashtags:     hashtags,
			feedback:     feedback,
			now:          in.Now,
		})

		caption, draft, stage, verdict := g.attempt(ctx, prompt, hasFact)
		if !verdict.OK {
			g.logger.Info("caption rejected",
				zap.Int("attempt", attempt),
				zap.String("reason", string(verdict.Reason)),
				zap.String("detail", verdict.Detail))
			rejected = append(rejected, verdict)
			feedback = verdict.Detail
			continue
		}

		meta := CaptionMeta{
			Metaphor:     draft.Metaphor,
			HashtagCombo: strings.Join(orTags(draft.Hashtags, hashtags), " "),
			Structure:    orString(draft.Structure, structure),
			ImageID:      in.ImageID,
		}

		report := CheckRepetition(record, caption, meta)
		if report.IsRepetitive {
			g.logger.Warn("caption repeats recent posts", zap.Strings("issues", report.Issues))
		}

		g.store.RecordCaption(ctx, record, caption, meta)

		return &CaptionResult{
			Caption:      caption,
			Hashtags:     orTags(draft.Hashtags, hashtags),
			ImageKeyword: orString(draft.ImageKeyword, "waiting"),
			Structure:    meta.Structure,
			Metaphor:     draft.Metaphor,
			Success:      true,
			Attempts:     attempt,
			Stage:        stage,
			NewSearch:    isNewSearch,
			Rejections:   ExplainRejections(rejected),
			Repetition:   report,
		}, nil
	}

	g.logger.Warn("caption generation exhausted, using fallback",
		zap.Int("attempts", len(rejected)),
		zap.Any("rejections", ExplainRejections(rejected)))

	return &CaptionResult{
		Caption:      FallbackCaption(anchors, g.cfg.ForcedHashtags, in.Now),
		Hashtags:     g.cfg.ForcedHashtags,
		ImageKeyword: "waiting",
		Structure:    StructureFallback,
		Success:      false,
		Attempts:     len(rejected),
		NewSearch:    isNewSearch,
		Rejections:   ExplainRejections(rejected),
	}, nil
}

// attempt runs one provider round trip and returns the caption with its
// verdict. An invented date is repaired in place when that is the only
// problem.
func (g *CaptionGenerator) attempt(ctx context.Context, prompt string, hasFact bool) (string, *CaptionDraft, string, Verdict) {
	out, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return "", nil, "", Reject(ReasonParseFailure, fmt.Sprintf("provider error: %v", err))
	}

	draft, stage, err := DecodeCaptionDraft(out)
	if err != nil {
		return "", nil, "", Reject(ReasonParseFailure, "response was not a caption object")
	}

	opts := ValidateOptions{
		MaxChars:          g.cfg.MaxChars,
		MaxSentences:      g.cfg.MaxSentences,
		HasFactFromSource: hasFact,
	}

	caption := TruncateCaption(draft.Caption, maxChars(g.cfg.MaxChars))
	verdict := Validate(caption, opts)
	if verdict.OnlyInventedDate() {
		repaired := StripInventedDates(caption)
		if v := Validate(repaired, opts); v.OK {
			g.logger.Info("stripped invented date from caption")
			return repaired, draft, stage, v
		}
	}

	return caption, draft, stage, verdict
}

func (g *CaptionGenerator) pickStructure(last string) string {
	available := make([]string, 0, len(CaptionStructures))
	for _, s := range CaptionStructures {
		if s != last {
			available = append(available, s)
		}
	}
	return available[g.intn(len(available))]
}

// hashtags returns the forced tags plus one optional tag that avoids a third
// consecutive repeat.
func (g *CaptionGenerator) hashtags(recentCombos []string) []string {
	tags := append([]string{}, g.cfg.ForcedHashtags...)
	if tag := g.optionalHashtag(recentCombos); tag != "" {
		tags = append(tags, tag)
	}
	return tags
}

func (g *CaptionGenerator) optionalHashtag(recentCombos []string) string {
	optional := g.cfg.OptionalHashtags
	if len(optional) == 0 {
		return ""
	}

	if len(recentCombos) >= 2 {
		for _, tag := range optional {
			if !strings.Contains(recentCombos[0], tag) || !strings.Contains(recentCombos[1], tag) {
				return tag
			}
		}
	}
	return optional[g.intn(len(optional))]
}

type promptData struct {
	anchors      []string
	description  string
	facts        []Fact
	recent       []string
	hasNewUpdate bool
	structure    string
	hashtags     []string
	feedback     string
	now          time.Time
}

func (g *CaptionGenerator) buildPrompt(d promptData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You write short, witty captions for a social account tracking %s and the California bar exam. ", g.subject)
	b.WriteString("Be playful and a little dramatic, never cruel.\n\n")
	fmt.Fprintf(&b, "Today is %s.\n\n", d.now.Format("Monday, January 2, 2006"))

	if len(d.anchors) > 0 {
		fmt.Fprintf(&b, "Image shows: %s\n\n", strings.Join(d.anchors, ", "))
	} else if d.description != "" {
		fmt.Fprintf(&b, "Image description: %s\n\n", d.description)
	}

	b.WriteString("FRESH FACTS (use at most one):\n")
	if len(d.facts) == 0 {
		b.WriteString("No new facts available. Do not mention any dates or times.\n")
	}
	for _, f := range d.facts {
		fact := f.MatchedFact
		if fact == "" {
			fact = f.Text
		}
		fmt.Fprintf(&b, "- %s (%s)\n", fact, f.Source)
	}
	b.WriteString("\n")

	if n := min(len(d.recent), 5); n > 0 {
		b.WriteString("AVOID THESE RECENT OPENINGS:\n")
		for _, c := range d.recent[:n] {
			fmt.Fprintf(&b, "- %q\n", openingPhrase(c)+"...")
		}
		b.WriteString("\n")
	}

	if d.hasNewUpdate {
		b.WriteString("There IS new news. Write a breaking-style caption.\n\n")
	} else {
		b.WriteString("There is no new news. Write a funny caption about the wait.\n\n")
	}

	b.WriteString("RULES:\n")
	if len(d.anchors) > 0 {
		fmt.Fprintf(&b, "1. Reference something from the image: %s\n", strings.Join(d.anchors, " or "))
	} else {
		b.WriteString("1. Reference any visual element of the image\n")
	}
	fmt.Fprintf(&b, "2. At most %d characters and %d sentences\n", maxChars(g.cfg.MaxChars), max(g.cfg.MaxSentences, 1))
	fmt.Fprintf(&b, "3. Use the %q structure, but never write a label like \"POV:\" or \"Question:\"\n", d.structure)
	fmt.Fprintf(&b, "4. End with these hashtags: %s\n", strings.Join(d.hashtags, " "))
	if len(g.cfg.BannedPhrases) > 0 {
		fmt.Fprintf(&b, "5. Do not use these phrases: %s\n", strings.Join(g.cfg.BannedPhrases, ", "))
	}

	if d.feedback != "" {
		fmt.Fprintf(&b, "\nYour previous caption was rejected (%s). Fix that.\n", d.feedback)
	}

	fmt.Fprintf(&b, `
OUTPUT JSON only:
{
  "caption": "the full post text including hashtags",
  "metaphor": "key metaphor used, or empty",
  "structure": %q,
  "imageKeyword": "studying|crying|waiting|chaos|results"
}
`, d.structure)

	return b.String()
}

// TruncateCaption shortens caption to limit runes, preferring a word
// boundary near the end, and marks the cut with "...".
func TruncateCaption(caption string, limit int) string {
	if utf8.RuneCountInString(caption) <= limit {
		return caption
	}

	runes := []rune(caption)
	truncated := string(runes[:max(limit-3, 0)])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace >= 0 && utf8.RuneCountInString(truncated[:lastSpace]) > limit-50 {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}

// FallbackCaption is used when the provider never produced a valid caption.
// The template is chosen by day of year so reruns on one day agree.
func FallbackCaption(anchors []string, hashtags []string, now time.Time) string {
	anchor := "the grind"
	if len(anchors) > 0 {
		anchor = anchors[0]
	}

	templates := []string{
		"%s: the saga continues.",
		"Another day, another %s moment.",
		"The %s says it all.",
	}

	idx := now.YearDay() % len(templates)
	subject := anchor
	if idx == 0 {
		subject = capitalize(anchor)
	}

	caption := fmt.Sprintf(templates[idx], subject)
	if len(hashtags) > 0 {
		caption += " " + strings.Join(hashtags, " ")
	}
	return caption
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func maxChars(n int) int {
	if n <= 0 {
		return DefaultMaxChars
	}
	return n
}

func orString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func orTags(v, fallback []string) []string {
	if len(v) == 0 {
		return fallback
	}
	return v
}
