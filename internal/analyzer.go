package internal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

var Tones = []string{"sassy", "supportive", "delusional", "chaotic", "studious", "impatient"}

var toneExamples = map[string]string{
	"sassy":      "Where are the results? Asking for a friend (me)",
	"supportive": "Sending all my energy rn 💫",
	"delusional": "Already passed in my heart ❤️",
	"chaotic":    "If these results take one more week I'm starting a podcast about it",
	"studious":   "Do not disturb mode activated 📵",
	"impatient":  "Me refreshing the California Bar results page every 5 minutes",
}

// ToneFor rotates through Tones by day of year.
func ToneFor(now time.Time) string {
	return Tones[now.YearDay()%len(Tones)]
}

// NoNewsAnalysis is returned whenever the provider cannot produce a usable
// analysis.
func NoNewsAnalysis() *StatusAnalysis {
	return &StatusAnalysis{
		Status:       StatusNoNews,
		Confidence:   1.0,
		ShouldTweet:  true,
		Message:      "Still waiting on bar exam updates! 📚 #KimKardashian #BarExam",
		ImageKeyword: "waiting",
	}
}

type Analyzer struct {
	provider Provider
	subject  string
	logger   *zap.Logger
}

func NewAnalyzer(provider Provider, subject string, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{provider: provider, subject: subject, logger: logger.Named("analyzer")}
}

// Analyze asks the provider whether the headlines contain a real result.
// It never fails: every error path yields NoNewsAnalysis.
func (a *Analyzer) Analyze(ctx context.Context, headlines []string, now time.Time) *StatusAnalysis {
	if a.provider == nil {
		a.logger.Info("no provider, skipping analysis")
		return NoNewsAnalysis()
	}

	out, err := a.provider.Complete(ctx, a.prompt(headlines, now))
	if err != nil {
		a.logger.Warn("analysis failed", zap.Error(err))
		return NoNewsAnalysis()
	}

	analysis, stage, err := DecodeAnalysis(out)
	if err != nil {
		a.logger.Warn("analysis undecodable", zap.Error(err))
		return NoNewsAnalysis()
	}

	switch analysis.Status {
	case StatusPassed, StatusFailed, StatusPending, StatusNoNews:
	default:
		a.logger.Warn("analysis has unknown status", zap.String("status", string(analysis.Status)))
		return NoNewsAnalysis()
	}
	if analysis.ImageKeyword == "" {
		analysis.ImageKeyword = "waiting"
	}

	a.logger.Info("analysis complete",
		zap.String("status", string(analysis.Status)),
		zap.Float64("confidence", analysis.Confidence),
		zap.String("stage", stage))
	return analysis
}

func (a *Analyzer) prompt(headlines []string, now time.Time) string {
	tone := ToneFor(now)

	var news strings.Builder
	if len(headlines) == 0 {
		news.WriteString("No recent news headlines found.\n")
	}
	for i, h := range headlines {
		fmt.Fprintf(&news, "%d. %s\n", i+1, h)
	}

	return fmt.Sprintf(`You run a fan account tracking %[1]s and the California bar exam. You are a supportive superfan with a funny, slightly unhinged voice, but never cruel.

CONTEXT:
- %[1]s is retaking the California bar exam in February 2026.
- Today is %[2]s.

NEWS HEADLINES FOUND:
%[3]s
YOUR TONE TODAY: %[4]s (for example: %[5]q)

TASK:
Decide whether there is a REAL result update.
- If the headlines say passed or failed, write a BREAKING NEWS post with 🚨.
- Otherwise write a creative post about the wait. Do not say "still waiting".
Use the hashtags #KimKardashian #BarExam and stay under 280 characters.

OUTPUT JSON only:
{
  "status": "PASSED" | "FAILED" | "PENDING" | "NO_NEWS",
  "confidence": 0.0-1.0,
  "shouldTweet": true,
  "message": "the post text",
  "imageKeyword": "sad" | "studying" | "confident" | "funny" | "waiting" | "chaos"
}
`, a.subject, now.Format("Monday, January 2, 2006"), news.String(), strings.ToUpper(tone), toneExamples[tone])
}
