package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHistory struct {
	messages []string
	err      error
}

func (h *recordingHistory) Commit(_ context.Context, message string) (*Commit, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.messages = append(h.messages, message)
	return &Commit{Message: message}, nil
}

func (h *recordingHistory) Log(context.Context, int) ([]*Commit, error)   { return nil, nil }
func (h *recordingHistory) Diff(context.Context, string) (string, error)  { return "", nil }
func (h *recordingHistory) Show(context.Context, string) (*Commit, error) { return nil, ErrNotFound }
func (h *recordingHistory) Revert(context.Context, string) error          { return nil }

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(filepath.Join(t.TempDir(), "data", "memory.json"), nil, nil)
}

func TestMemoryStoreLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	record := store.Load()
	assert.Equal(t, NewMemoryRecord(), record)
}

func TestMemoryStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewMemoryStore(path, nil, nil)
	assert.Equal(t, NewMemoryRecord(), store.Load())
}

func TestMemoryStoreLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"recentCaptions":["hi"],"lastStructure":null}`), 0644))

	record := NewMemoryStore(path, nil, nil).Load()
	assert.Equal(t, []string{"hi"}, record.RecentCaptions)
	assert.NotNil(t, record.HashtagCombos)
	assert.Empty(t, record.LastStructure)
}

func TestMemoryStoreSaveCreatesDirectory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	record := NewMemoryRecord()
	record.LastSearchHash = "abc"
	store.Save(ctx, record)

	loaded := store.Load()
	if diff := cmp.Diff(record, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryStoreSaveFailureIsSwallowed(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// Parent of the memory file is a regular file, so MkdirAll fails.
	store := NewMemoryStore(filepath.Join(blocker, "memory.json"), nil, nil)
	store.Save(context.Background(), NewMemoryRecord())

	assert.Equal(t, NewMemoryRecord(), store.Load())
}

func TestRecordCaptionKeepsLastTen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := store.Load()

	for i := 0; i < 11; i++ {
		record = store.RecordCaption(ctx, record, fmt.Sprintf("caption %d", i), CaptionMeta{})
	}

	require.Len(t, record.RecentCaptions, MaxRecentCaptions)
	assert.Equal(t, "caption 10", record.RecentCaptions[0])
	assert.Equal(t, "caption 1", record.RecentCaptions[9])
	assert.NotContains(t, record.RecentCaptions, "caption 0")

	assert.Equal(t, record.RecentCaptions, store.Load().RecentCaptions)
}

func TestRecordCaptionMetadataCaps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := store.Load()

	for i := 0; i < 12; i++ {
		record = store.RecordCaption(ctx, record, "c", CaptionMeta{
			Metaphor:     fmt.Sprintf("m%d", i),
			HashtagCombo: fmt.Sprintf("#h%d", i),
			ImageID:      fmt.Sprintf("img%d", i),
			Structure:    "question",
		})
	}

	assert.Len(t, record.MetaphorsUsed, MaxMetaphors)
	assert.Len(t, record.HashtagCombos, MaxHashtagCombos)
	assert.Len(t, record.UsedImages, MaxUsedImages)
	assert.Equal(t, []string{"#h11", "#h10", "#h9"}, record.HashtagCombos)
	assert.Equal(t, "question", record.LastStructure)
}

func TestRecordCaptionClearsStructure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := store.Load()

	record = store.RecordCaption(ctx, record, "a", CaptionMeta{Structure: "pov"})
	record = store.RecordCaption(ctx, record, "b", CaptionMeta{})

	assert.Empty(t, record.LastStructure)
	assert.Empty(t, record.MetaphorsUsed)
}

func TestRecordCaptionCommitsHistory(t *testing.T) {
	history := &recordingHistory{}
	store := NewMemoryStore(filepath.Join(t.TempDir(), "memory.json"), history, nil)

	store.RecordCaption(context.Background(), store.Load(), "a", CaptionMeta{Structure: "pov"})

	assert.Equal(t, []string{"caption: record pov"}, history.messages)
}

func TestSaveIgnoresHistoryFailure(t *testing.T) {
	history := &recordingHistory{err: fmt.Errorf("disk full")}
	path := filepath.Join(t.TempDir(), "memory.json")
	store := NewMemoryStore(path, history, nil)

	record := NewMemoryRecord()
	record.LastStructure = "pov"
	store.Save(context.Background(), record)

	assert.Equal(t, "pov", store.Load().LastStructure)
}

func TestCheckRepetitionOpeningPhrase(t *testing.T) {
	record := NewMemoryRecord()
	record.RecentCaptions = []string{"The bar results are still not out today"}

	report := CheckRepetition(record, "the BAR results are STILL pending, friends", CaptionMeta{})
	assert.True(t, report.IsRepetitive)
	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0], "opening phrase")

	report = CheckRepetition(record, "The bar results are never coming", CaptionMeta{})
	assert.False(t, report.IsRepetitive, "sharing four of five opening words must not flag")
}

func TestCheckRepetitionMetaphorAndStructure(t *testing.T) {
	record := NewMemoryRecord()
	record.MetaphorsUsed = []string{"waiting room"}
	record.LastStructure = "question"

	report := CheckRepetition(record, "fresh words here", CaptionMeta{
		Metaphor:  "waiting room",
		Structure: "question",
	})

	assert.True(t, report.IsRepetitive)
	assert.Len(t, report.Issues, 2)
}

func TestCheckRepetitionHashtagCombo(t *testing.T) {
	record := NewMemoryRecord()
	meta := CaptionMeta{HashtagCombo: "#BarExam"}

	assert.False(t, CheckRepetition(record, "x", meta).IsRepetitive, "empty history")

	record.HashtagCombos = []string{"#BarExam"}
	assert.False(t, CheckRepetition(record, "x", meta).IsRepetitive, "one prior use")

	record.HashtagCombos = []string{"#BarExam", "#Other"}
	assert.False(t, CheckRepetition(record, "x", meta).IsRepetitive, "not consecutive")

	record.HashtagCombos = []string{"#BarExam", "#BarExam"}
	assert.True(t, CheckRepetition(record, "x", meta).IsRepetitive, "third in a row")
}

func TestCheckRepetitionDoesNotMutate(t *testing.T) {
	record := NewMemoryRecord()
	record.RecentCaptions = []string{"one two three four five"}
	before := record.Clone()

	CheckRepetition(record, "one two three four five", CaptionMeta{Structure: "pov"})

	if diff := cmp.Diff(before, record); diff != "" {
		t.Errorf("record mutated (-before +after):\n%s", diff)
	}
}

func TestWasImageUsedRecently(t *testing.T) {
	record := NewMemoryRecord()
	record.UsedImages = []string{"meme-1.png"}

	assert.True(t, WasImageUsedRecently(record, "meme-1.png"))
	assert.False(t, WasImageUsedRecently(record, "meme-2.png"))
}

func TestHashFactsOrderIndependent(t *testing.T) {
	a := []Fact{
		{Text: "Results released", Source: "calbar.ca.gov"},
		{Text: "Pass rate 52%", Source: "Reuters"},
		{Text: "Exam delayed", Source: "Law.com"},
	}
	b := []Fact{a[2], a[0], a[1]}

	assert.Equal(t, HashFacts(a), HashFacts(b))
}

func TestHashFactsDiffers(t *testing.T) {
	a := []Fact{{Text: "Results released", Source: "calbar.ca.gov"}}
	b := []Fact{{Text: "Results released", Source: "Reuters"}}
	c := []Fact{{Text: "Results delayed", Source: "calbar.ca.gov"}}

	assert.NotEqual(t, HashFacts(a), HashFacts(b))
	assert.NotEqual(t, HashFacts(a), HashFacts(c))
	assert.Equal(t, "empty", HashFacts(nil))
}

func TestHashFactsSeparatorInText(t *testing.T) {
	a := []Fact{{Text: "a|b", Source: ""}}
	b := []Fact{{Text: "a", Source: "b|"}}
	assert.NotEqual(t, HashFacts(a), HashFacts(b))

	c := []Fact{{Text: "x", Source: "y"}, {Text: "z", Source: ""}}
	d := []Fact{{Text: "x", Source: "y||z"}}
	assert.NotEqual(t, HashFacts(c), HashFacts(d))
}

func TestUpdateSearchHashNovelty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	record := store.Load()

	assert.True(t, store.UpdateSearchHash(ctx, record, "h1"))
	assert.False(t, store.UpdateSearchHash(ctx, record, "h1"))
	assert.True(t, store.UpdateSearchHash(ctx, record, "h2"))

	assert.Equal(t, "h2", store.Load().LastSearchHash)
}
