package internal

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/fogleman/gg"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

const (
	ComposeWidth  = 1200
	ComposeHeight = 675

	overlayLineChars  = 38
	overlayLineHeight = 38
	overlayPadding    = 24
	accentBarHeight   = 5
	badgeWidth        = 130
	badgeHeight       = 26
)

var accentColors = []color.RGBA{
	{0xFF, 0xD7, 0x00, 0xFF},
	{0xFF, 0x3B, 0x30, 0xFF},
	{0xFF, 0x95, 0x00, 0xFF},
	{0xFF, 0xFF, 0xFF, 0xFF},
}

var hashtagPattern = regexp.MustCompile(`#\w+`)

// Composer renders a caption banner over a photo, sized for a 16:9 post.
type Composer struct {
	dir     string
	caption font.Face
	badge   font.Face
	logger  *zap.Logger
	intn    func(int) int
}

func NewComposer(dir string, logger *zap.Logger) (*Composer, error) {
	parsed, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	caption, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 32, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("caption face: %w", err)
	}
	badge, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 15, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("badge face: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Composer{
		dir:     dir,
		caption: caption,
		badge:   badge,
		logger:  logger.Named("compose"),
		intn:    rand.IntN,
	}, nil
}

// Compose cover-crops the image at srcPath to 1200x675, draws the caption
// without hashtags and returns the path of the PNG written.
func (c *Composer) Compose(srcPath, caption string) (string, error) {
	src, err := decodeImageFile(srcPath)
	if err != nil {
		return "", err
	}

	dc := gg.NewContextForImage(coverCrop(src, ComposeWidth, ComposeHeight))
	c.drawOverlay(dc, OverlayText(caption))

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("create composed dir: %w", err)
	}
	out := filepath.Join(c.dir, "composed_"+strings.ToLower(ulid.Make().String())+".png")
	if err := writePNGFile(out, dc.Image()); err != nil {
		return "", err
	}

	c.logger.Info("image composed", zap.String("source", filepath.Base(srcPath)), zap.String("path", out))
	return out, nil
}

// OverlayText strips hashtags and upper-cases the caption.
func OverlayText(caption string) string {
	stripped := hashtagPattern.ReplaceAllString(caption, "")
	return strings.ToUpper(strings.Join(strings.Fields(stripped), " "))
}

// WrapText breaks text into lines of at most maxChars characters on word
// boundaries. A single longer word gets a line of its own.
func WrapText(text string, maxChars int) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if len([]rune(candidate)) > maxChars && current != "" {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (c *Composer) drawOverlay(dc *gg.Context, text string) {
	width, height := float64(dc.Width()), float64(dc.Height())
	accent := accentColors[c.intn(len(accentColors))]
	lines := WrapText(text, overlayLineChars)

	bannerHeight := float64(len(lines)*overlayLineHeight + overlayPadding*2 + accentBarHeight)
	bannerY := height - bannerHeight

	scrim := gg.NewLinearGradient(0, bannerY-60, 0, height)
	scrim.AddColorStop(0, color.RGBA{0, 0, 0, 0})
	scrim.AddColorStop(1, color.RGBA{0, 0, 0, 217})
	dc.SetFillStyle(scrim)
	dc.DrawRectangle(0, bannerY-60, width, bannerHeight+60)
	dc.Fill()

	dc.SetColor(accent)
	dc.DrawRectangle(0, bannerY, width, accentBarHeight)
	dc.Fill()

	dc.SetFontFace(c.caption)
	for i, line := range lines {
		y := bannerY + accentBarHeight + overlayPadding + float64(i*overlayLineHeight) + 28
		dc.SetRGBA(0, 0, 0, 0.7)
		dc.DrawString(line, overlayPadding+2, y+2)
		dc.SetRGB(1, 1, 1)
		dc.DrawString(line, overlayPadding, y)
	}

	badgeX := width - badgeWidth - 16
	badgeY := bannerY - badgeHeight - 10
	dc.SetColor(accent)
	dc.DrawRoundedRectangle(badgeX, badgeY, badgeWidth, badgeHeight, 4)
	dc.Fill()

	dc.SetFontFace(c.badge)
	dc.SetRGB(0, 0, 0)
	dc.DrawString("BARWATCH", badgeX+10, badgeY+19)
}

// coverCrop scales src to cover w x h and crops the centre.
func coverCrop(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, w, h))
	}

	scale := max(float64(w)/float64(sw), float64(h)/float64(sh))
	cropW := int(float64(w) / scale)
	cropH := int(float64(h) / scale)
	x0 := b.Min.X + (sw-cropW)/2
	y0 := b.Min.Y + (sh-cropH)/2

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, image.Rect(x0, y0, x0+cropW, y0+cropH), draw.Over, nil)
	return dst
}
