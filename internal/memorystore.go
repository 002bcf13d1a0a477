package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// MemoryStore persists the MemoryRecord as a single JSON document. Every
// failure is logged and swallowed: a broken store degrades to memoryless
// behavior instead of aborting a run.
type MemoryStore struct {
	path    string
	history HistoryRepository
	logger  *zap.Logger
}

// NewMemoryStore returns a store for path. history may be nil; when set,
// every successful write is committed.
func NewMemoryStore(path string, history HistoryRepository, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		path:    path,
		history: history,
		logger:  logger.Named("memory"),
	}
}

func (s *MemoryStore) Path() string {
	return s.path
}

// Load reads the record. A missing or unparsable file yields an empty record.
func (s *MemoryStore) Load() *MemoryRecord {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewMemoryRecord()
	}
	if err != nil {
		s.logger.Warn("could not read memory, using defaults", zap.String("path", s.path), zap.Error(err))
		return NewMemoryRecord()
	}

	record := NewMemoryRecord()
	if err := json.Unmarshal(data, record); err != nil {
		s.logger.Warn("could not parse memory, using defaults", zap.String("path", s.path), zap.Error(err))
		return NewMemoryRecord()
	}
	record.normalize()
	return record
}

// Save writes the whole record. Failures are logged, never returned.
func (s *MemoryStore) Save(ctx context.Context, record *MemoryRecord) {
	s.persist(ctx, record, "memory: save")
}

func (s *MemoryStore) persist(ctx context.Context, record *MemoryRecord, message string) {
	if err := s.write(record); err != nil {
		s.logger.Error("failed to save memory", zap.String("path", s.path), zap.Error(err))
		return
	}

	if s.history == nil {
		return
	}
	if _, err := s.history.Commit(ctx, message); err != nil && !errors.Is(err, ErrNothingToCommit) {
		s.logger.Warn("failed to commit memory", zap.Error(err))
	}
}

func (s *MemoryStore) write(record *MemoryRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// RecordCaption pushes caption and its metadata into the bounded histories,
// overwrites LastStructure and persists the record.
func (s *MemoryStore) RecordCaption(ctx context.Context, record *MemoryRecord, caption string, meta CaptionMeta) *MemoryRecord {
	record.normalize()
	record.RecentCaptions = pushBounded(record.RecentCaptions, caption, MaxRecentCaptions)

	if meta.Metaphor != "" {
		record.MetaphorsUsed = pushBounded(record.MetaphorsUsed, meta.Metaphor, MaxMetaphors)
	}
	if meta.HashtagCombo != "" {
		record.HashtagCombos = pushBounded(record.HashtagCombos, meta.HashtagCombo, MaxHashtagCombos)
	}
	record.LastStructure = meta.Structure
	if meta.ImageID != "" {
		record.UsedImages = pushBounded(record.UsedImages, meta.ImageID, MaxUsedImages)
	}

	message := "caption: record"
	if meta.Structure != "" {
		message = fmt.Sprintf("caption: record %s", meta.Structure)
	}
	s.persist(ctx, record, message)
	return record
}

// UpdateSearchHash reports whether hash differs from the stored one, then
// stores and persists it either way. A second call with the same hash
// reports false.
func (s *MemoryStore) UpdateSearchHash(ctx context.Context, record *MemoryRecord, hash string) bool {
	isNew := record.LastSearchHash != hash
	record.LastSearchHash = hash
	s.persist(ctx, record, "search: update hash")
	return isNew
}

// CheckRepetition reports the ways candidate would repeat recent posts.
// It never mutates the record.
func CheckRepetition(record *MemoryRecord, candidate string, meta CaptionMeta) RepetitionReport {
	var issues []string

	opening := openingPhrase(candidate)
	for _, recent := range record.RecentCaptions {
		if openingPhrase(recent) == opening {
			issues = append(issues, fmt.Sprintf("Same opening phrase: %q", opening))
			break
		}
	}

	if meta.Metaphor != "" && slices.Contains(record.MetaphorsUsed, meta.Metaphor) {
		issues = append(issues, fmt.Sprintf("Metaphor already used: %q", meta.Metaphor))
	}

	if meta.HashtagCombo != "" && len(record.HashtagCombos) >= 2 &&
		record.HashtagCombos[0] == meta.HashtagCombo && record.HashtagCombos[1] == meta.HashtagCombo {
		issues = append(issues, "Same hashtag combo 3 times in a row")
	}

	if meta.Structure != "" && meta.Structure == record.LastStructure {
		issues = append(issues, fmt.Sprintf("Same structure back-to-back: %q", meta.Structure))
	}

	return RepetitionReport{
		IsRepetitive: len(issues) > 0,
		Issues:       issues,
	}
}

func WasImageUsedRecently(record *MemoryRecord, imageID string) bool {
	return slices.Contains(record.UsedImages, imageID)
}

func openingPhrase(text string) string {
	words := strings.Fields(text)
	if len(words) > openingWords {
		words = words[:openingWords]
	}
	return strings.ToLower(strings.Join(words, " "))
}

// HashFacts fingerprints a fact list independently of its order. Fields are
// NUL-separated so text containing the separator cannot collide.
func HashFacts(facts []Fact) string {
	if len(facts) == 0 {
		return "empty"
	}

	keys := make([]string, len(facts))
	for i, f := range facts {
		keys[i] = f.Text + "\x00" + f.Source
	}
	slices.Sort(keys)

	var h int32
	for _, c := range strings.Join(keys, "\x00\x00") {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}
