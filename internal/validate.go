package internal

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars     = 260
	DefaultMaxSentences = 2
	DefaultMinShortSide = 600
)

type Reason string

const (
	ReasonTooLong          Reason = "too_long"
	ReasonTooManySentences Reason = "too_many_sentences"
	ReasonBannedPhrase     Reason = "banned_phrase"
	ReasonInventedDate     Reason = "invented_date"
	ReasonParseFailure     Reason = "parse_failure"
)

// Verdict is the outcome of validating a caption. A rejected verdict carries
// the first rule that failed.
type Verdict struct {
	OK     bool   `json:"ok"`
	Reason Reason `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func Accept() Verdict {
	return Verdict{OK: true}
}

func Reject(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

func (v Verdict) String() string {
	if v.OK {
		return "ok"
	}
	return fmt.Sprintf("%s: %s", v.Reason, v.Detail)
}

type ValidateOptions struct {
	MaxChars          int
	MaxSentences      int
	HasFactFromSource bool
}

func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{
		MaxChars:     DefaultMaxChars,
		MaxSentences: DefaultMaxSentences,
	}
}

// Scaffold labels models narrate with instead of writing a caption.
var bannedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(POV:|Insider:|Question:|Statement:|Observation:)`),
	regexp.MustCompile(`(?i)\bFACT:`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(st|nd|rd|th)?\b`),
	regexp.MustCompile(`(?i)\b(May|Nov|Feb|Mar)\s+\d{1,4}\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*((AM|PM)(\s*(PT|EST|PST))?|PT|EST|PST)\b`),
}

var (
	ellipsisPattern     = regexp.MustCompile(`\.{2,}`)
	abbreviationPattern = regexp.MustCompile(`(?i)\b(Mr|Mrs|Ms|Dr|vs|etc|e\.g|i\.e)\.`)
	boundaryPattern     = regexp.MustCompile(`[.!?]\s+`)
	spacesPattern       = regexp.MustCompile(`\s{2,}`)
)

// Validate applies the hard caption rules in order and returns the first
// violation. Zero option values fall back to the defaults.
func Validate(caption string, opts ValidateOptions) Verdict {
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = DefaultMaxSentences
	}

	text := strings.TrimSpace(caption)

	if n := utf8.RuneCountInString(text); n > opts.MaxChars {
		return Reject(ReasonTooLong, fmt.Sprintf("%d > %d chars", n, opts.MaxChars))
	}

	if n := CountSentences(text); n > opts.MaxSentences {
		return Reject(ReasonTooManySentences, fmt.Sprintf("%d > %d sentences", n, opts.MaxSentences))
	}

	for _, pattern := range bannedPatterns {
		if m := pattern.FindString(text); m != "" {
			return Reject(ReasonBannedPhrase, fmt.Sprintf("contains scaffold label %q", m))
		}
	}

	if !opts.HasFactFromSource {
		for _, pattern := range datePatterns {
			if m := pattern.FindString(text); m != "" {
				return Reject(ReasonInventedDate, fmt.Sprintf("contains date without a sourced fact: %q", m))
			}
		}
	}

	return Accept()
}

// CountSentences is a heuristic: ellipses collapse to one period, common
// abbreviations lose their period, and the text splits on terminal
// punctuation followed by whitespace.
func CountSentences(text string) int {
	normalized := ellipsisPattern.ReplaceAllString(text, ".")
	normalized = abbreviationPattern.ReplaceAllString(normalized, "${1}")

	count := 0
	start := 0
	for _, loc := range boundaryPattern.FindAllStringIndex(normalized, -1) {
		if strings.TrimSpace(normalized[start:loc[0]+1]) != "" {
			count++
		}
		start = loc[1]
	}
	if strings.TrimSpace(normalized[start:]) != "" {
		count++
	}
	return count
}

// StripInventedDates removes every date and clock-time match and collapses
// the whitespace left behind.
func StripInventedDates(text string) string {
	result := text
	for _, pattern := range datePatterns {
		result = pattern.ReplaceAllString(result, "")
	}
	return strings.TrimSpace(spacesPattern.ReplaceAllString(result, " "))
}

// OnlyInventedDate reports whether v failed solely on the date rule, which
// StripInventedDates can repair.
func (v Verdict) OnlyInventedDate() bool {
	return !v.OK && v.Reason == ReasonInventedDate
}

func ExplainRejections(rejected []Verdict) map[Reason]int {
	tally := make(map[Reason]int)
	for _, v := range rejected {
		if v.OK {
			continue
		}
		tally[v.Reason]++
	}
	return tally
}

func IsLowRes(width, height, minShortSide int) bool {
	if minShortSide <= 0 {
		minShortSide = DefaultMinShortSide
	}
	return min(max(width, 0), max(height, 0)) < minShortSide
}
