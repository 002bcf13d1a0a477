package internal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var ErrNoImages = errors.New("no images could be fetched")

// RemoteImage is a search hit before it is downloaded.
type RemoteImage struct {
	URL    string
	Alt    string
	Width  int
	Height int
}

// ImageSearcher finds candidate images for a query.
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, limit int) ([]RemoteImage, error)
}

// RodImageScraper drives a headless browser through Google Images.
type RodImageScraper struct {
	searchURL string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewRodImageScraper(timeout time.Duration, logger *zap.Logger) *RodImageScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodImageScraper{
		searchURL: "https://www.google.com/search",
		timeout:   timeout,
		logger:    logger.Named("rod"),
	}
}

func (s *RodImageScraper) SearchImages(ctx context.Context, query string, limit int) ([]RemoteImage, error) {
	l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	page = page.Timeout(s.timeout)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: browserUserAgent}); err != nil {
		return nil, fmt.Errorf("set user agent: %w", err)
	}

	params := url.Values{}
	params.Set("tbm", "isch")
	params.Set("q", query)
	params.Set("tbs", "isz:l")
	if err := page.Navigate(s.searchURL + "?" + params.Encode()); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	elements, err := page.Elements("img")
	if err != nil {
		return nil, fmt.Errorf("find images: %w", err)
	}

	var images []RemoteImage
	for _, el := range elements {
		src := firstAttribute(el, "data-src", "src")
		if !usableImageURL(src) || slices.ContainsFunc(images, func(r RemoteImage) bool { return r.URL == src }) {
			continue
		}
		images = append(images, RemoteImage{
			URL:    src,
			Alt:    firstAttribute(el, "alt"),
			Width:  400,
			Height: 400,
		})
		if len(images) >= limit {
			break
		}
	}

	s.logger.Debug("image search", zap.String("query", query), zap.Int("found", len(images)))
	return images, nil
}

func firstAttribute(el *rod.Element, names ...string) string {
	for _, name := range names {
		v, err := el.Attribute(name)
		if err == nil && v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// usableImageURL accepts Google's encrypted thumbnails and plain http(s)
// images that are not logos.
func usableImageURL(src string) bool {
	if strings.Contains(src, "encrypted-tbn") {
		return len(src) > 50
	}
	return strings.HasPrefix(src, "http") && !strings.Contains(src, "logo")
}

// ImageFetcher searches for images and downloads the first usable one.
type ImageFetcher struct {
	searcher   ImageSearcher
	downloader *Downloader
	queries    []string
	logger     *zap.Logger
}

func NewImageFetcher(searcher ImageSearcher, downloader *Downloader, queries []string, logger *zap.Logger) *ImageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageFetcher{
		searcher:   searcher,
		downloader: downloader,
		queries:    queries,
		logger:     logger.Named("fetch"),
	}
}

// Fetch tries each query in order and each hit within it until a download
// succeeds, skipping images used recently.
func (f *ImageFetcher) Fetch(ctx context.Context, recentIDs []string) (*ImageCandidate, error) {
	for _, query := range f.queries {
		hits, err := f.searcher.SearchImages(ctx, query, 5)
		if err != nil {
			f.logger.Warn("image search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		for _, hit := range hits {
			if slices.Contains(recentIDs, hit.URL) {
				continue
			}

			filename := "scraped_" + strings.ToLower(ulid.Make().String()) + ".jpg"
			path, err := f.downloader.Download(ctx, hit.URL, filename, nil)
			if err != nil {
				f.logger.Debug("download failed, trying next", zap.Error(err))
				continue
			}

			description := hit.Alt
			if description == "" {
				description = query
			}
			w, h := hit.Width, hit.Height
			if pw, ph, err := ImageDimensions(path); err == nil {
				w, h = pw, ph
			}

			return &ImageCandidate{
				ID:          filename,
				Path:        path,
				URL:         hit.URL,
				Description: description,
				Width:       w,
				Height:      h,
			}, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return nil, ErrNoImages
}
