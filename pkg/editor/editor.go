package editor

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ViBiOh/flags"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

const (
	baseSizeDivisor    float64 = 12
	builtinSizeDivisor float64 = 20
	jpegQuality                = 95

	defaultOutlineWidth = 2
)

// Service composites caption text onto images and persists the result.
type Service struct {
	font         resolvedFont
	outputDir    string
	textColor    color.RGBA
	outlineColor color.RGBA
	outlineWidth int
}

type Config struct {
	FontPath  string
	OutputDir string
}

func Flags(fs *flag.FlagSet, prefix string, overrides ...flags.Override) *Config {
	var config Config

	flags.New("FontPath", "Path to a TTF font file").Prefix(prefix).DocPrefix("editor").StringVar(fs, &config.FontPath, "", overrides)
	flags.New("OutputDir", "Directory for generated memes").Prefix(prefix).DocPrefix("editor").StringVar(fs, &config.OutputDir, "generated_memes", overrides)

	return &config
}

func New(config *Config) Service {
	return Service{
		font:         resolveFont(strings.TrimSpace(config.FontPath)),
		outputDir:    strings.TrimSpace(config.OutputDir),
		textColor:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		outlineColor: color.RGBA{A: 255},
		outlineWidth: defaultOutlineWidth,
	}
}

// UsesBuiltinFont tells whether the fallback font is in use, for logging.
func (s Service) UsesBuiltinFont() bool {
	return s.font.builtin
}

// Compose draws every caption onto a copy of source. The base font size
// follows image width so captions stay proportionally readable at any
// resolution; the builtin fallback font gets a more conservative base.
func (s Service) Compose(source image.Image, captions []Caption) image.Image {
	dc := gg.NewContextForImage(source)

	width, height := dc.Width(), dc.Height()

	base := float64(width) / baseSizeDivisor
	if s.font.builtin {
		base = float64(width) / builtinSizeDivisor
	}

	for _, caption := range captions {
		size, lines := layoutCaption(caption, width, height, base, s.measure, s.lineHeight)
		if len(lines) == 0 {
			continue
		}

		dc.SetFontFace(s.face(size))

		for _, line := range lines {
			s.drawOutlined(dc, line)
		}
	}

	return dc.Image()
}

// drawOutlined draws the halo first, at every offset around the line, then
// the fill on top. The halo keeps text legible on any background without
// sampling it.
func (s Service) drawOutlined(dc *gg.Context, line placedLine) {
	n := float64(s.outlineWidth)

	dc.SetColor(s.outlineColor)
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}

			dc.DrawStringAnchored(line.text, line.x+dx, line.y+dy, 0.5, 0.5)
		}
	}

	dc.SetColor(s.textColor)
	dc.DrawStringAnchored(line.text, line.x, line.y, 0.5, 0.5)
}

func (s Service) face(size float64) font.Face {
	return truetype.NewFace(s.font.font, &truetype.Options{Size: size})
}

func (s Service) measure(text string, size float64) float64 {
	return float64(font.MeasureString(s.face(size), text) >> 6)
}

func (s Service) lineHeight(size float64) float64 {
	return float64(s.face(size).Metrics().Height >> 6)
}

// Save encodes output into the output directory, JPEG by default or PNG when
// the name asks for it. An empty name gets a random 8 hex character one. The
// write happens only once composition is complete, so a failed render never
// leaves a partial file.
func (s Service) Save(output image.Image, name string) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o700); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if len(name) == 0 {
		name = fmt.Sprintf("meme_%s.jpg", randomID())
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		name += ".jpg"
		ext = ".jpg"
	}

	outputPath := filepath.Join(s.outputDir, name)

	file, err := os.OpenFile(outputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("open output file: %w", err)
	}

	if ext == ".png" {
		err = png.Encode(file, output)
	} else {
		err = jpeg.Encode(file, output, &jpeg.Options{Quality: jpegQuality})
	}

	if closeErr := file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("encode output: %w", err)
	}

	return outputPath, nil
}

func randomID() string {
	content := make([]byte, 4)
	_, _ = rand.Read(content)

	return hex.EncodeToString(content)
}
