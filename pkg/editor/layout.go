package editor

import (
	"image"
	"strings"
)

const (
	minFontSize  float64 = 12
	fontSizeStep float64 = 2
	widthBudget  float64 = 0.90
	marginCoeff  float64 = 0.05
	lineSpacing  float64 = 5
)

// Region is a placement slot for a caption on the image.
type Region int

const (
	// Top centers the caption under the top margin, lines stacking downward.
	Top Region = iota
	// Bottom hugs the caption block to the bottom margin, lines stacking upward.
	Bottom
	// Box anchors the caption at a caller-supplied point, lines stacking downward.
	Box
)

// Caption is one piece of text destined for one region of the image.
type Caption struct {
	Text   string
	Region Region
	At     image.Point
}

type placedLine struct {
	text string
	x    float64
	y    float64
}

// measureFunc reports the rendered width of text at a given point size.
type measureFunc func(text string, size float64) float64

// fitSize finds the largest size <= base at which text fits in one line
// within maxWidth, stepping down to the floor. Text longer than maxWidth at
// the floor keeps the floor size and wraps instead.
func fitSize(text string, base, maxWidth float64, measure measureFunc) float64 {
	size := base
	for size > minFontSize && measure(text, size) > maxWidth {
		size -= fontSizeStep
	}

	if size < minFontSize {
		size = minFontSize
	}

	return size
}

// wrapWords packs whitespace-delimited words greedily into lines no wider
// than maxWidth. A single word wider than maxWidth gets its own line, whole.
func wrapWords(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	var current string

	for _, word := range strings.Fields(text) {
		candidate := word
		if len(current) != 0 {
			candidate = current + " " + word
		}

		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}

		if len(current) != 0 {
			lines = append(lines, current)
		}

		current = word
	}

	if len(current) != 0 {
		lines = append(lines, current)
	}

	return lines
}

// layoutCaption resolves a caption into a font size and positioned lines for
// an image of width x height. base is the starting font size, lineHeight is
// queried once the size is resolved.
func layoutCaption(caption Caption, width, height int, base float64, measure measureFunc, lineHeight func(size float64) float64) (float64, []placedLine) {
	text := strings.ToUpper(strings.TrimSpace(caption.Text))
	if len(text) == 0 {
		return 0, nil
	}

	maxWidth := widthBudget * float64(width)

	size := fitSize(text, base, maxWidth, measure)

	lines := []string{text}
	if measure(text, size) > maxWidth {
		lines = wrapWords(text, maxWidth, func(s string) float64 { return measure(s, size) })
	}

	margin := marginCoeff * float64(height)
	step := lineHeight(size) + lineSpacing
	x := float64(width) / 2

	placed := make([]placedLine, len(lines))

	switch caption.Region {
	case Bottom:
		anchor := float64(height) - margin - base
		for i, line := range lines {
			placed[i] = placedLine{
				text: line,
				x:    x,
				y:    anchor - float64(len(lines)-1-i)*step,
			}
		}
	case Box:
		for i, line := range lines {
			placed[i] = placedLine{
				text: line,
				x:    float64(caption.At.X),
				y:    float64(caption.At.Y) + float64(i)*step,
			}
		}
	default:
		anchor := margin + base
		for i, line := range lines {
			placed[i] = placedLine{
				text: line,
				x:    x,
				y:    anchor + float64(i)*step,
			}
		}
	}

	return size, placed
}
