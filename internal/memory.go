package internal

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNotInitialized     = errors.New("state directory not initialized")
	ErrNoProvider         = errors.New("no llm provider configured")
	ErrUndecodable        = errors.New("llm output could not be decoded")
	ErrMissingCredentials = errors.New("posting credentials missing")
	ErrPostFailed         = errors.New("post failed")
)

const (
	MaxRecentCaptions = 10
	MaxUsedImages     = 10
	MaxMetaphors      = 10
	MaxHashtagCombos  = 3

	openingWords = 5
)

// MemoryRecord is the anti-repetition state persisted between runs.
// Sequences are most-recent-first and capped; the oldest entry is evicted.
type MemoryRecord struct {
	RecentCaptions []string `json:"recentCaptions"`
	LastSearchHash string   `json:"lastSearchHash"`
	UsedImages     []string `json:"usedImages"`
	MetaphorsUsed  []string `json:"metaphorsUsed"`
	HashtagCombos  []string `json:"hashtagCombos"`
	LastStructure  string   `json:"lastStructure"`
}

// MarshalJSON writes unset scalars as null.
func (r MemoryRecord) MarshalJSON() ([]byte, error) {
	type plain MemoryRecord
	return json.Marshal(struct {
		plain
		LastSearchHash *string `json:"lastSearchHash"`
		LastStructure  *string `json:"lastStructure"`
	}{
		plain:          plain(r),
		LastSearchHash: nullable(r.LastSearchHash),
		LastStructure:  nullable(r.LastStructure),
	})
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func NewMemoryRecord() *MemoryRecord {
	return &MemoryRecord{
		RecentCaptions: []string{},
		UsedImages:     []string{},
		MetaphorsUsed:  []string{},
		HashtagCombos:  []string{},
	}
}

// normalize replaces nil slices so a record decoded from a partial file
// behaves like a defaulted one.
func (r *MemoryRecord) normalize() {
	if r.RecentCaptions == nil {
		r.RecentCaptions = []string{}
	}
	if r.UsedImages == nil {
		r.UsedImages = []string{}
	}
	if r.MetaphorsUsed == nil {
		r.MetaphorsUsed = []string{}
	}
	if r.HashtagCombos == nil {
		r.HashtagCombos = []string{}
	}
}

func (r *MemoryRecord) Clone() *MemoryRecord {
	c := *r
	c.RecentCaptions = append([]string{}, r.RecentCaptions...)
	c.UsedImages = append([]string{}, r.UsedImages...)
	c.MetaphorsUsed = append([]string{}, r.MetaphorsUsed...)
	c.HashtagCombos = append([]string{}, r.HashtagCombos...)
	return &c
}

// CaptionMeta describes a caption for repetition tracking. Empty fields are
// not recorded, except Structure which always overwrites LastStructure.
type CaptionMeta struct {
	Metaphor     string
	HashtagCombo string
	Structure    string
	ImageID      string
}

type RepetitionReport struct {
	IsRepetitive bool
	Issues       []string
}

// Fact is a concrete piece of news pulled from a trusted headline.
type Fact struct {
	Text        string    `json:"text"`
	Source      string    `json:"source"`
	Type        string    `json:"type"`
	MatchedFact string    `json:"matched_fact"`
	PubDate     string    `json:"pub_date,omitempty"`
	Link        string    `json:"link,omitempty"`
	FoundAt     time.Time `json:"found_at"`
}

func pushBounded(list []string, item string, limit int) []string {
	out := make([]string, 0, limit)
	out = append(out, item)
	for _, s := range list {
		if len(out) >= limit {
			break
		}
		out = append(out, s)
	}
	return out
}
