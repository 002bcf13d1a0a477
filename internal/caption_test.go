package internal

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned responses in order and records prompts.
type scriptedProvider struct {
	responses []string
	errs      []error
	prompts   []string
}

func (p *scriptedProvider) Complete(_ context.Context, prompt string) (string, error) {
	i := len(p.prompts)
	p.prompts = append(p.prompts, prompt)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i >= len(p.responses) {
		return "", errors.New("no more responses")
	}
	return p.responses[i], nil
}

func newTestGenerator(t *testing.T, provider Provider) (*CaptionGenerator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(filepath.Join(t.TempDir(), "memory.json"), nil, nil)
	gen := NewCaptionGenerator(provider, store, DefaultConfig(), nil)
	gen.intn = func(int) int { return 0 }
	return gen, store
}

var testDay = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestGenerateAcceptsFirstValidCaption(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"```json\n{\"caption\":\"Those law books have seen things. #KimKardashian #BarExam\",\"metaphor\":\"witness\",\"structure\":\"observation\"}\n```",
	}}
	gen, store := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{
		ImageDescription: "woman at a desk with law books",
		ImageID:          "desk.png",
		Now:              testDay,
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "fences", result.Stage)
	assert.Equal(t, "observation", result.Structure)
	assert.Contains(t, provider.prompts[0], "law books")

	record := store.Load()
	assert.Equal(t, []string{result.Caption}, record.RecentCaptions)
	assert.Equal(t, []string{"witness"}, record.MetaphorsUsed)
	assert.Equal(t, []string{"desk.png"}, record.UsedImages)
	assert.Equal(t, "observation", record.LastStructure)
	assert.Equal(t, "empty", record.LastSearchHash)
}

func TestGenerateRetriesWithFeedback(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"caption":"POV: you are refreshing again"}`,
		`{"caption":"One. Two. Three."}`,
		`{"caption":"The refresh button is tired too."}`,
	}}
	gen, _ := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{Now: testDay})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, map[Reason]int{ReasonBannedPhrase: 1, ReasonTooManySentences: 1}, result.Rejections)
	require.Len(t, provider.prompts, 3)
	assert.Contains(t, provider.prompts[1], "previous caption was rejected")
	assert.Contains(t, provider.prompts[2], "3 > 2 sentences")
}

func TestGenerateRepairsInventedDate(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"caption":"Results drop February 24 apparently. #BarExam"}`,
	}}
	gen, _ := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{Now: testDay})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Results drop apparently. #BarExam", result.Caption)
}

func TestGenerateKeepsDatesBackedByFacts(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"caption":"Results drop April 10. #BarExam"}`,
	}}
	gen, _ := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{
		Facts: []Fact{{Text: "Results out April 10", Source: "calbar.ca.gov"}},
		Now:   testDay,
	})
	require.NoError(t, err)
	assert.Equal(t, "Results drop April 10. #BarExam", result.Caption)
	assert.True(t, result.NewSearch)
}

func TestGenerateFallsBackAfterExhaustion(t *testing.T) {
	provider := &scriptedProvider{responses: []string{"{", "{", "{"}}
	gen, store := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{
		ImageDescription: "a crying meme",
		Now:              testDay,
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StructureFallback, result.Structure)
	assert.Equal(t, 3, result.Rejections[ReasonParseFailure])
	assert.Equal(t, FallbackCaption([]string{"meme", "crying"}, DefaultConfig().Caption.ForcedHashtags, testDay), result.Caption)
	assert.Empty(t, store.Load().RecentCaptions)
}

func TestGenerateWithoutProviderFallsBack(t *testing.T) {
	gen, _ := newTestGenerator(t, nil)

	result, err := gen.Generate(context.Background(), CaptionInput{Now: testDay})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "The grind: the saga continues. #KimKardashian #BarExam", result.Caption)
}

func TestGenerateProviderErrors(t *testing.T) {
	boom := errors.New("boom")
	provider := &scriptedProvider{errs: []error{boom, boom, boom}}
	gen, _ := newTestGenerator(t, provider)

	result, err := gen.Generate(context.Background(), CaptionInput{Now: testDay})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, provider.prompts, 3)
}

func TestGenerateCanceledContext(t *testing.T) {
	gen, _ := newTestGenerator(t, &scriptedProvider{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.Generate(ctx, CaptionInput{Now: testDay})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPickStructureAvoidsLast(t *testing.T) {
	gen, _ := newTestGenerator(t, nil)
	for i := range CaptionStructures {
		gen.intn = func(int) int { return i % (len(CaptionStructures) - 1) }
		assert.NotEqual(t, "pov", gen.pickStructure("pov"))
	}
}

func TestOptionalHashtagAvoidsThirdRepeat(t *testing.T) {
	gen, _ := newTestGenerator(t, nil)

	combos := []string{"#KimKardashian #BarExam #LawSchool", "#KimKardashian #BarExam #LawSchool"}
	assert.Equal(t, "#RealityTV", gen.optionalHashtag(combos))
}

func TestTruncateCaption(t *testing.T) {
	short := "fits fine"
	assert.Equal(t, short, TruncateCaption(short, 20))

	long := strings.Repeat("word ", 80)
	got := TruncateCaption(long, 260)
	assert.LessOrEqual(t, len([]rune(got)), 260)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.False(t, strings.HasSuffix(got, " ..."))

	noSpaces := strings.Repeat("x", 300)
	assert.Equal(t, strings.Repeat("x", 257)+"...", TruncateCaption(noSpaces, 260))
}

func TestFallbackCaptionDeterministic(t *testing.T) {
	a := FallbackCaption([]string{"law books"}, []string{"#BarExam"}, testDay)
	b := FallbackCaption([]string{"law books"}, []string{"#BarExam"}, testDay.Add(2*time.Hour))
	assert.Equal(t, a, b)
	assert.True(t, strings.HasSuffix(a, "#BarExam"))
	assert.True(t, Validate(a, DefaultValidateOptions()).OK)
}
