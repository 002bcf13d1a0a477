package internal

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const maxUpscale = 4

// Enhancer upscales images whose short side is below a minimum so they do
// not look blurry once posted.
type Enhancer struct {
	dir          string
	minShortSide int
	logger       *zap.Logger
}

func NewEnhancer(dir string, minShortSide int, logger *zap.Logger) *Enhancer {
	if minShortSide <= 0 {
		minShortSide = DefaultMinShortSide
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{dir: dir, minShortSide: minShortSide, logger: logger.Named("enhance")}
}

// Enhance returns img unchanged when it is large enough, otherwise a copy
// upscaled with Catmull-Rom resampling by the smallest integer factor that
// clears the minimum, capped at 4x.
func (e *Enhancer) Enhance(img *ImageCandidate) (*ImageCandidate, error) {
	if img.Path == "" {
		return img, nil
	}

	w, h := img.Width, img.Height
	if w == 0 || h == 0 {
		var err error
		if w, h, err = ImageDimensions(img.Path); err != nil {
			return nil, err
		}
	}
	if !IsLowRes(w, h, e.minShortSide) {
		return img, nil
	}

	src, err := decodeImageFile(img.Path)
	if err != nil {
		return nil, err
	}

	short := min(w, h)
	scale := min((e.minShortSide+short-1)/max(short, 1), maxUpscale)
	scale = max(scale, 1)

	dst := image.NewRGBA(image.Rect(0, 0, w*scale, h*scale))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return nil, fmt.Errorf("create enhanced dir: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(img.Path), filepath.Ext(img.Path))
	out := filepath.Join(e.dir, "enhanced_"+base+".png")
	if err := writePNGFile(out, dst); err != nil {
		return nil, err
	}

	e.logger.Info("image upscaled",
		zap.String("id", img.ID),
		zap.Int("scale", scale),
		zap.Int("width", w*scale),
		zap.Int("height", h*scale))

	enhanced := *img
	enhanced.Path = out
	enhanced.Width = w * scale
	enhanced.Height = h * scale
	enhanced.LowRes = IsLowRes(enhanced.Width, enhanced.Height, e.minShortSide)
	return &enhanced, nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func writePNGFile(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}
