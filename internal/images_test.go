package internal

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func TestScoreImage(t *testing.T) {
	crit := ImageCriteria{
		MinWidth:       HDWidth,
		PreferredWidth: UHDWidth,
		Preferred:      []string{"law", "studying"},
		Excluded:       []string{"bikini"},
	}

	tests := []struct {
		name   string
		img    ImageCandidate
		recent []string
		want   int
	}{
		{"recent id", ImageCandidate{ID: "a"}, []string{"a"}, 0},
		{"excluded in tags", ImageCandidate{ID: "b", Tags: []string{"Bikini"}}, nil, 0},
		{"baseline unknown size", ImageCandidate{ID: "c"}, nil, 110},
		{"preferred and 4k", ImageCandidate{ID: "d", Description: "Studying LAW", Width: 4000}, nil, 100 + 40 + 50 + 10},
		{"hd used", ImageCandidate{ID: "e", Width: 1920, UsedRecently: true}, nil, 125},
		{"small", ImageCandidate{ID: "f", Width: 640}, nil, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreImage(tt.img, tt.recent, crit))
		})
	}
}

func TestSelectBestImage(t *testing.T) {
	crit := CriteriaFromConfig(DefaultConfig().Images)
	candidates := []ImageCandidate{
		{ID: "small", Width: 800},
		{ID: "big", Width: 3840},
		{ID: "big-too", Width: 3840},
		{ID: "used", Width: 5000},
	}

	best, ok := SelectBestImage(candidates, []string{"used"}, crit)
	require.True(t, ok)
	assert.Equal(t, "big", best.ID)
	assert.Positive(t, best.Score)

	_, ok = SelectBestImage([]ImageCandidate{{ID: "x"}}, []string{"x"}, crit)
	assert.False(t, ok)

	_, ok = SelectBestImage(nil, nil, crit)
	assert.False(t, ok)
}

func TestExtractVisualAnchors(t *testing.T) {
	assert.Nil(t, ExtractVisualAnchors(""))
	assert.Equal(t, []string{"white blazer", "law books"},
		ExtractVisualAnchors("Woman in a WHITE BLAZER holding law books at a desk"))
	assert.Equal(t, []string{"quote text", `"I passed"`},
		ExtractVisualAnchors(`A card reading "I passed"`))
	assert.Empty(t, ExtractVisualAnchors("a sunset over the ocean"))
}

func TestImageDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	writePNG(t, path, 40, 30)

	w, h, err := ImageDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)

	bogus := filepath.Join(t.TempDir(), "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0644))
	_, _, err = ImageDimensions(bogus)
	assert.Error(t, err)
}

func TestMemeCatalogList(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "law_books-desk.png"), 700, 700)
	writePNG(t, filepath.Join(dir, "tiny.png"), 10, 10)
	writePNG(t, filepath.Join(dir, "skip-me.png"), 10, 10)
	writePNG(t, filepath.Join(dir, ".hidden.png"), 10, 10)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, IgnoreFilename), []byte("skip-*\n"), 0644))

	catalog := NewMemeCatalog(dir, 600, nil)
	memes, err := catalog.List()
	require.NoError(t, err)
	require.Len(t, memes, 2)

	byID := map[string]ImageCandidate{}
	for _, m := range memes {
		byID[m.ID] = m
	}

	books := byID["law_books-desk.png"]
	assert.Equal(t, "law books desk", books.Description)
	assert.True(t, books.Local)
	assert.False(t, books.LowRes)
	assert.Equal(t, 700, books.Width)

	assert.True(t, byID["tiny.png"].LowRes)
}

func TestMemeCatalogMissingDir(t *testing.T) {
	catalog := NewMemeCatalog(filepath.Join(t.TempDir(), "nope"), 0, nil)
	memes, err := catalog.List()
	require.NoError(t, err)
	assert.Empty(t, memes)

	_, ok := catalog.SelectLocal(nil)
	assert.False(t, ok)
}

func TestMemeCatalogSelectLocal(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 5, 5)
	writePNG(t, filepath.Join(dir, "b.png"), 5, 5)

	catalog := NewMemeCatalog(dir, 0, nil)
	catalog.intn = func(int) int { return 0 }

	picked, ok := catalog.SelectLocal([]string{"a.png"})
	require.True(t, ok)
	assert.Equal(t, "b.png", picked.ID)

	picked, ok = catalog.SelectLocal([]string{"a.png", "b.png"})
	require.True(t, ok)
	assert.Equal(t, "a.png", picked.ID)
}
