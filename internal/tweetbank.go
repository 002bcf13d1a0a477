package internal

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Phase string

const (
	PhaseCountdown      Phase = "countdown"
	PhaseExamWeek       Phase = "exam_week"
	PhaseExamDay        Phase = "exam_day"
	PhaseResultsPending Phase = "results_pending"
	PhasePassed         Phase = "passed"
	PhaseFailed         Phase = "failed"
)

var Phases = []Phase{PhaseCountdown, PhaseExamWeek, PhaseExamDay, PhaseResultsPending, PhasePassed, PhaseFailed}

const GenericTweet = "BarWatch update: still tracking. #KimKardashian #BarWatch"

func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

// Calendar is the parsed exam timeline.
type Calendar struct {
	ExamStart       time.Time
	ExamEnd         time.Time
	ExamWeekStart   time.Time
	ResultsExpected time.Time
}

func ParseCalendar(cfg CalendarConfig) (Calendar, error) {
	var cal Calendar
	fields := []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"exam_start", cfg.ExamStart, &cal.ExamStart},
		{"exam_end", cfg.ExamEnd, &cal.ExamEnd},
		{"exam_week_start", cfg.ExamWeekStart, &cal.ExamWeekStart},
		{"results_expected", cfg.ResultsExpected, &cal.ResultsExpected},
	}
	for _, f := range fields {
		t, err := time.Parse(time.RFC3339, f.value)
		if err != nil {
			return Calendar{}, fmt.Errorf("parse calendar %s: %w", f.name, err)
		}
		*f.dst = t
	}
	if cal.ExamEnd.Before(cal.ExamStart) {
		return Calendar{}, errors.New("parse calendar: exam_end before exam_start")
	}
	return cal, nil
}

// CurrentPhase derives the phase from the calendar alone. passed and failed
// are only reached through an explicit override.
func (c Calendar) CurrentPhase(now time.Time) Phase {
	switch {
	case !now.Before(c.ExamStart) && !now.After(c.ExamEnd):
		return PhaseExamDay
	case !now.Before(c.ExamWeekStart) && now.Before(c.ExamStart):
		return PhaseExamWeek
	case now.Before(c.ExamWeekStart):
		return PhaseCountdown
	default:
		return PhaseResultsPending
	}
}

// DaysUntilExam rounds up and never goes below zero.
func (c Calendar) DaysUntilExam(now time.Time) int {
	days := c.ExamStart.Sub(now).Hours() / 24
	return max(0, int(math.Ceil(days)))
}

// WeeksSinceExam rounds down and never goes below one.
func (c Calendar) WeeksSinceExam(now time.Time) int {
	weeks := now.Sub(c.ExamEnd).Hours() / (24 * 7)
	return max(1, int(math.Floor(weeks)))
}

func (c Calendar) DaysUntilResults(now time.Time) int {
	days := c.ResultsExpected.Sub(now).Hours() / 24
	return max(0, int(math.Ceil(days)))
}

//go:embed tweets.yaml
var defaultTweets []byte

func DefaultTweetPools() (map[Phase][]string, error) {
	return parseTweetPools(defaultTweets)
}

func parseTweetPools(data []byte) (map[Phase][]string, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse tweet pools: %w", err)
	}

	pools := make(map[Phase][]string, len(raw))
	for name, tweets := range raw {
		phase, err := ParsePhase(name)
		if err != nil {
			return nil, fmt.Errorf("parse tweet pools: %w", err)
		}
		pools[phase] = tweets
	}
	return pools, nil
}

// TweetBank holds pre-written tweets per phase.
type TweetBank struct {
	calendar Calendar
	subject  string
	pools    map[Phase][]string
}

func NewTweetBank(calendar Calendar, subject string, pools map[Phase][]string) *TweetBank {
	return &TweetBank{calendar: calendar, subject: subject, pools: pools}
}

// LoadTweetBank builds the bank from cfg, using the scope's tweets.yaml
// in place of the built-in pools when it exists.
func LoadTweetBank(scope Scope, cfg *Config) (*TweetBank, error) {
	calendar, err := ParseCalendar(cfg.Calendar)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(scope.TweetsPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = defaultTweets
	case err != nil:
		return nil, fmt.Errorf("read tweet pools: %w", err)
	}

	pools, err := parseTweetPools(data)
	if err != nil {
		return nil, err
	}
	return NewTweetBank(calendar, cfg.Subject, pools), nil
}

func (b *TweetBank) Calendar() Calendar {
	return b.calendar
}

func (b *TweetBank) PoolSize(phase Phase) int {
	return len(b.pools[phase])
}

type PickedTweet struct {
	Text     string `json:"text"`
	Phase    Phase  `json:"phase"`
	Index    int    `json:"index"`
	PoolSize int    `json:"pool_size"`
}

// PickTweet chooses a tweet for now. An empty phase means the calendar
// phase. The choice is stable within a calendar day.
func (b *TweetBank) PickTweet(phase Phase, now time.Time) PickedTweet {
	if phase == "" {
		phase = b.calendar.CurrentPhase(now)
	}

	pool := b.pools[phase]
	if len(pool) == 0 {
		return PickedTweet{Text: GenericTweet, Phase: phase, Index: -1}
	}

	index := now.YearDay() % len(pool)
	text := strings.NewReplacer(
		"{days}", strconv.Itoa(b.calendar.DaysUntilExam(now)),
		"{weeks}", strconv.Itoa(b.calendar.WeeksSinceExam(now)),
		"{subject}", b.subject,
	).Replace(pool[index])

	return PickedTweet{Text: text, Phase: phase, Index: index, PoolSize: len(pool)}
}
