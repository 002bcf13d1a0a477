package internal

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestEnhancerUpscalesSmallImages(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "small.png")
	writePNG(t, src, 200, 150)

	e := NewEnhancer(filepath.Join(dir, "enhanced"), 600, nil)
	got, err := e.Enhance(&ImageCandidate{ID: "small.png", Path: src})
	require.NoError(t, err)

	assert.Equal(t, 800, got.Width)
	assert.Equal(t, 600, got.Height)
	assert.False(t, got.LowRes)
	assert.NotEqual(t, src, got.Path)

	w, h, err := ImageDimensions(got.Path)
	require.NoError(t, err)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestEnhancerCapsScaleAndSkipsLargeImages(t *testing.T) {
	dir := t.TempDir()
	tiny := filepath.Join(dir, "tiny.png")
	writePNG(t, tiny, 10, 10)

	e := NewEnhancer(filepath.Join(dir, "enhanced"), 600, nil)
	got, err := e.Enhance(&ImageCandidate{Path: tiny})
	require.NoError(t, err)
	assert.Equal(t, 40, got.Width)
	assert.True(t, got.LowRes)

	big := &ImageCandidate{Path: filepath.Join(dir, "big.png"), Width: 1920, Height: 1080}
	same, err := e.Enhance(big)
	require.NoError(t, err)
	assert.Same(t, big, same)
}

func TestOverlayTextAndWrap(t *testing.T) {
	assert.Equal(t, "STILL STUDYING.", OverlayText("Still   studying. #BarExam #KimKardashian"))

	lines := WrapText(strings.Repeat("word ", 20), 38)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 38)
	}
	assert.Equal(t, strings.Repeat("word ", 20), strings.Join(lines, " ")+" ")

	assert.Equal(t, []string{strings.Repeat("x", 50), "tail"}, WrapText(strings.Repeat("x", 50)+" tail", 38))
	assert.Empty(t, WrapText("   ", 38))
}

func TestComposerCompose(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	writePNG(t, src, 640, 640)

	c, err := NewComposer(filepath.Join(dir, "composed"), nil)
	require.NoError(t, err)
	c.intn = func(int) int { return 1 }

	out, err := c.Compose(src, "Those law books have seen things. #BarExam")
	require.NoError(t, err)

	w, h, err := ImageDimensions(out)
	require.NoError(t, err)
	assert.Equal(t, ComposeWidth, w)
	assert.Equal(t, ComposeHeight, h)

	img, err := decodeImageFile(out)
	require.NoError(t, err)
	_, _, _, a := img.At(ComposeWidth/2, ComposeHeight-1).RGBA()
	assert.NotZero(t, a)
}

func TestComposerMissingSource(t *testing.T) {
	c, err := NewComposer(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = c.Compose(filepath.Join(t.TempDir(), "missing.png"), "x")
	assert.Error(t, err)
}

type fakeSearcher struct {
	hits map[string][]RemoteImage
	errs map[string]error
}

func (f *fakeSearcher) SearchImages(_ context.Context, query string, limit int) ([]RemoteImage, error) {
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	hits := f.hits[query]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func TestImageFetcherFetch(t *testing.T) {
	big := append(pngBytes(t, 50, 40), bytes.Repeat([]byte{0}, MinImageBytes)...)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tiny":
			w.Write([]byte("x"))
		case "/good":
			w.Write(big)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	searcher := &fakeSearcher{
		errs: map[string]error{"broken": errors.New("browser crashed")},
		hits: map[string][]RemoteImage{
			"second": {
				{URL: srv.URL + "/used"},
				{URL: srv.URL + "/tiny"},
				{URL: srv.URL + "/missing"},
				{URL: srv.URL + "/good", Alt: "woman at a desk"},
			},
		},
	}

	dl := NewDownloader(t.TempDir(), "", srv.Client())
	fetcher := NewImageFetcher(searcher, dl, []string{"broken", "empty", "second"}, nil)

	got, err := fetcher.Fetch(context.Background(), []string{srv.URL + "/used"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/good", got.URL)
	assert.Equal(t, "woman at a desk", got.Description)
	assert.Equal(t, 50, got.Width)
	assert.Equal(t, 40, got.Height)
	assert.True(t, strings.HasPrefix(got.ID, "scraped_"))
}

func TestImageFetcherNothingFound(t *testing.T) {
	fetcher := NewImageFetcher(&fakeSearcher{}, NewDownloader(t.TempDir(), "", nil), []string{"a"}, nil)
	_, err := fetcher.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoImages)
}

func TestUsableImageURL(t *testing.T) {
	assert.True(t, usableImageURL("https://encrypted-tbn0.gstatic.com/images?q=tbn:"+strings.Repeat("a", 40)))
	assert.False(t, usableImageURL("https://encrypted-tbn0.gstatic.com/x"))
	assert.True(t, usableImageURL("https://example.com/photo.jpg"))
	assert.False(t, usableImageURL("https://example.com/logo.png"))
	assert.False(t, usableImageURL("data:image/gif;base64,AAAA"))
}

func TestOpenAIImageGenerator(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, 64, 32))
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"created":1,"data":[{"b64_json":%q,"revised_prompt":"a desk covered in law books"}]}`, encoded)
	}))
	defer srv.Close()

	dir := t.TempDir()
	gen, err := NewOpenAIImageGenerator("sk-test", "", dir, nil, option.WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	got, err := gen.GenerateImage(context.Background(), "law books")
	require.NoError(t, err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "a desk covered in law books", got.Description)
	assert.Equal(t, 64, got.Width)

	_, err = os.Stat(got.Path)
	assert.NoError(t, err)
}

func TestImageBackendsRequireKeys(t *testing.T) {
	_, err := NewOpenAIImageGenerator("", "", t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewGeminiDescriber(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}
