package caption

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"captioner/internal/services"
)

// Face measures and draws caption text.
type Face interface {
	Measure(text string) int
	// Draw renders text with its top-left corner at (x, y).
	Draw(dst draw.Image, x, y int, text string)
}

// Built-in face names resolved without touching the fonts directory.
const (
	BuiltinRegular = "goregular"
	BuiltinBold    = "gobold"
)

// fontFace wraps an x/image face. font.Face implementations keep glyph
// caches that are not safe for concurrent use, so every call holds mu.
type fontFace struct {
	mu     sync.Mutex
	face   font.Face
	src    image.Image
	ascent int
}

// LoadFace resolves a font and color into a Face sized in pixels. name is a
// built-in face, an absolute path, or a file relative to fontsDir.
func LoadFace(fontsDir, name string, size int, colorName string) (Face, error) {
	if size <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "caption", "load face", fmt.Sprintf("font size must be positive, got %d", size), nil)
	}
	fill, err := ParseColor(colorName)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "caption", "load face", "invalid font color", err)
	}
	data, err := fontData(fontsDir, name)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "caption", "load face", fmt.Sprintf("font %q unavailable", name), err)
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "caption", "load face", fmt.Sprintf("parse font %q", name), err)
	}
	// 72 DPI makes one point equal one pixel.
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "caption", "load face", fmt.Sprintf("size font %q", name), err)
	}
	return &fontFace{
		face:   face,
		src:    image.NewUniform(fill),
		ascent: face.Metrics().Ascent.Ceil(),
	}, nil
}

func (f *fontFace) Measure(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return font.MeasureString(f.face, text).Ceil()
}

func (f *fontFace) Draw(dst draw.Image, x, y int, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drawer := font.Drawer{
		Dst:  dst,
		Src:  f.src,
		Face: f.face,
		Dot:  fixed.P(x, y+f.ascent),
	}
	drawer.DrawString(text)
}

func fontData(fontsDir, name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "":
		return nil, errors.New("font name is empty")
	case BuiltinRegular:
		return goregular.TTF, nil
	case BuiltinBold:
		return gobold.TTF, nil
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(fontsDir, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ParseColor accepts a CSS/SVG color name or a #rgb / #rrggbb hex value.
func ParseColor(value string) (color.RGBA, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return color.RGBA{}, errors.New("color is empty")
	}
	if named, ok := colornames.Map[value]; ok {
		return named, nil
	}
	if !strings.HasPrefix(value, "#") {
		return color.RGBA{}, fmt.Errorf("unknown color %q", value)
	}
	hex := value[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("malformed hex color %q", value)
	}
	rgb, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("malformed hex color %q", value)
	}
	return color.RGBA{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 0xff}, nil
}
