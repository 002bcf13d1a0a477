package v1

import "time"

// Verdict is the result of validating a caption.
type Verdict struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Length    int    `json:"length"`
	Sentences int    `json:"sentences"`
	// Repaired is set when stripping unsourced dates makes the caption pass.
	Repaired string `json:"repaired,omitempty"`
}

// Memory is the anti-repetition record. Lists are most recent first.
type Memory struct {
	RecentCaptions []string `json:"recent_captions"`
	UsedImages     []string `json:"used_images"`
	MetaphorsUsed  []string `json:"metaphors_used"`
	HashtagCombos  []string `json:"hashtag_combos"`
	LastStructure  string   `json:"last_structure"`
	LastSearchHash string   `json:"last_search_hash"`
}

// CaptionMeta describes a caption for repetition tracking.
type CaptionMeta struct {
	Metaphor     string `json:"metaphor,omitempty"`
	HashtagCombo string `json:"hashtag_combo,omitempty"`
	Structure    string `json:"structure,omitempty"`
	ImageID      string `json:"image_id,omitempty"`
}

// Repetition lists the ways a caption would repeat recent posts.
type Repetition struct {
	Repetitive bool     `json:"repetitive"`
	Issues     []string `json:"issues,omitempty"`
}

// Commit represents a commit in the state history.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
