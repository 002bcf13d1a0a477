package internal

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

const (
	HDWidth  = 1920
	UHDWidth = 3840
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// ImageCandidate is an image the pipeline may attach to a post.
type ImageCandidate struct {
	ID           string   `json:"id"`
	Path         string   `json:"path,omitempty"`
	URL          string   `json:"url,omitempty"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags,omitempty"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Local        bool     `json:"local"`
	UsedRecently bool     `json:"used_recently"`
	LowRes       bool     `json:"low_res"`
	Score        int      `json:"score,omitempty"`
}

// Key identifies the image in the used-images history. Remote images are
// tracked by URL since their local file name changes on every download.
func (c ImageCandidate) Key() string {
	if c.URL != "" {
		return c.URL
	}
	return c.ID
}

type ImageCriteria struct {
	MinWidth       int
	PreferredWidth int
	Preferred      []string
	Excluded       []string
}

func CriteriaFromConfig(cfg ImagesConfig) ImageCriteria {
	return ImageCriteria{
		MinWidth:       HDWidth,
		PreferredWidth: UHDWidth,
		Preferred:      cfg.PreferredKeywords,
		Excluded:       cfg.ExcludedKeywords,
	}
}

// ScoreImage rates a candidate. Zero disqualifies it.
func ScoreImage(img ImageCandidate, recentIDs []string, crit ImageCriteria) int {
	if img.ID != "" && slices.Contains(recentIDs, img.ID) {
		return 0
	}

	desc := strings.ToLower(img.Description)
	tags := make([]string, len(img.Tags))
	for i, t := range img.Tags {
		tags[i] = strings.ToLower(t)
	}
	mentions := func(keyword string) bool {
		if strings.Contains(desc, keyword) {
			return true
		}
		return slices.ContainsFunc(tags, func(t string) bool { return strings.Contains(t, keyword) })
	}

	for _, keyword := range crit.Excluded {
		if mentions(strings.ToLower(keyword)) {
			return 0
		}
	}

	score := 100
	for _, keyword := range crit.Preferred {
		if mentions(strings.ToLower(keyword)) {
			score += 20
		}
	}

	switch {
	case img.Width >= crit.PreferredWidth:
		score += 50
	case img.Width >= crit.MinWidth:
		score += 25
	case img.Width > 0:
		score -= 30
	}

	if !img.UsedRecently {
		score += 10
	}

	return score
}

// SelectBestImage returns the highest scoring candidate that is not
// disqualified. Ties keep input order.
func SelectBestImage(candidates []ImageCandidate, recentIDs []string, crit ImageCriteria) (*ImageCandidate, bool) {
	var scored []ImageCandidate
	for _, c := range candidates {
		c.Score = ScoreImage(c, recentIDs, crit)
		if c.Score > 0 {
			scored = append(scored, c)
		}
	}
	if len(scored) == 0 {
		return nil, false
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return &scored[0], true
}

var anchorPatterns = []struct {
	pattern *regexp.Regexp
	anchor  string
}{
	{regexp.MustCompile(`white\s+blazer`), "white blazer"},
	{regexp.MustCompile(`law\s+books?`), "law books"},
	{regexp.MustCompile(`studying|desk`), "studying"},
	{regexp.MustCompile(`quote\s+card`), "quote card"},
	{regexp.MustCompile(`meme`), "meme"},
	{regexp.MustCompile(`crying|tears`), "crying"},
	{regexp.MustCompile(`screenshot`), "screenshot"},
	{regexp.MustCompile(`results?\s+page`), "results page"},
	{regexp.MustCompile(`refresh`), "refresh button"},
	{regexp.MustCompile(`mental\s+breakdown`), "mental breakdown"},
	{regexp.MustCompile(`psychic`), "psychic"},
	{regexp.MustCompile(`"[^"]+"`), "quote text"},
	{regexp.MustCompile(`courtroom`), "courtroom"},
	{regexp.MustCompile(`red\s+carpet`), "red carpet"},
	{regexp.MustCompile(`interview`), "interview setting"},
}

var quotePattern = regexp.MustCompile(`"([^"]+)"`)

const maxAnchors = 2

// ExtractVisualAnchors finds up to two phrases in an image description a
// caption can point at.
func ExtractVisualAnchors(description string) []string {
	if description == "" {
		return nil
	}

	desc := strings.ToLower(description)
	var anchors []string
	for _, a := range anchorPatterns {
		if a.pattern.MatchString(desc) {
			anchors = append(anchors, a.anchor)
		}
	}

	if m := quotePattern.FindStringSubmatch(description); m != nil {
		anchors = append(anchors, fmt.Sprintf("%q", m[1]))
	}

	if len(anchors) > maxAnchors {
		anchors = anchors[:maxAnchors]
	}
	return anchors
}

// ImageDimensions reads the width and height from the image header.
func ImageDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

func isImageFile(name string) bool {
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(name)))
}

// MemeCatalog is the local directory of curated images.
type MemeCatalog struct {
	dir          string
	minShortSide int
	logger       *zap.Logger
	intn         func(int) int
}

func NewMemeCatalog(dir string, minShortSide int, logger *zap.Logger) *MemeCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemeCatalog{
		dir:          dir,
		minShortSide: minShortSide,
		logger:       logger.Named("memes"),
		intn:         rand.IntN,
	}
}

func (c *MemeCatalog) Dir() string {
	return c.dir
}

// List returns every image in the catalog not excluded by the ignore file.
// A missing directory is an empty catalog.
func (c *MemeCatalog) List() ([]ImageCandidate, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read meme directory: %w", err)
	}

	matcher, err := NewIgnoreMatcher(c.dir)
	if err != nil {
		return nil, fmt.Errorf("load ignore file: %w", err)
	}

	var memes []ImageCandidate
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !isImageFile(name) || matcher.Match(name) {
			continue
		}

		path := filepath.Join(c.dir, name)
		w, h, err := ImageDimensions(path)
		if err != nil {
			c.logger.Debug("could not probe image", zap.String("file", name), zap.Error(err))
		}

		memes = append(memes, ImageCandidate{
			ID:          name,
			Path:        path,
			Description: describeFilename(name),
			Width:       w,
			Height:      h,
			Local:       true,
			LowRes:      IsLowRes(w, h, c.minShortSide),
		})
	}

	return memes, nil
}

// SelectLocal picks a random meme not used recently, or any meme when all
// have been used.
func (c *MemeCatalog) SelectLocal(recentIDs []string) (*ImageCandidate, bool) {
	memes, err := c.List()
	if err != nil {
		c.logger.Warn("could not list memes", zap.Error(err))
		return nil, false
	}
	if len(memes) == 0 {
		return nil, false
	}

	var available []ImageCandidate
	for _, m := range memes {
		if !slices.Contains(recentIDs, m.ID) {
			available = append(available, m)
		}
	}
	if len(available) == 0 {
		c.logger.Info("all memes used recently, picking any")
		available = memes
	}

	picked := available[c.intn(len(available))]
	return &picked, true
}

var separatorPattern = regexp.MustCompile(`[-_]+`)

func describeFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSpace(separatorPattern.ReplaceAllString(base, " "))
}
