package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gomonobold"
)

// Tried in order when no font path is configured or the configured one is
// unusable. First readable file wins.
var systemFontPaths = []string{
	"/Library/Fonts/Arial.ttf",
	"/Library/Fonts/Arial Bold.ttf",
	"/System/Library/Fonts/Supplemental/Impact.ttf",
	"/usr/share/fonts/truetype/msttcorefonts/Impact.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
}

var (
	builtinOnce sync.Once
	builtinFont *truetype.Font
)

type resolvedFont struct {
	font    *truetype.Font
	path    string
	builtin bool
}

func loadFontFile(path string) (*truetype.Font, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font `%s`: %w", path, err)
	}

	parsed, err := truetype.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse font `%s`: %w", path, err)
	}

	return parsed, nil
}

func defaultFont() *truetype.Font {
	builtinOnce.Do(func() {
		parsed, err := truetype.Parse(gomonobold.TTF)
		if err != nil {
			slog.Error("parse builtin font", "err", err)
			return
		}

		builtinFont = parsed
	})

	return builtinFont
}

// resolveFont walks the candidate chain: configured path, known system
// locations, then the compiled-in default. Font errors are logged, never
// surfaced, so a render always has a usable face.
func resolveFont(configured string) resolvedFont {
	candidates := systemFontPaths
	if len(configured) != 0 {
		candidates = append([]string{configured}, systemFontPaths...)
	}

	for _, path := range candidates {
		parsed, err := loadFontFile(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("load font", "path", path, "err", err)
			}
			continue
		}

		return resolvedFont{font: parsed, path: path}
	}

	return resolvedFont{font: defaultFont(), builtin: true}
}
