package editor

import (
	"image"
	"math"
	"strings"
	"testing"
)

// charMeasure approximates a monospace face: each rune is 0.6 em wide.
func charMeasure(text string, size float64) float64 {
	return float64(len(text)) * size * 0.6
}

func charLineHeight(size float64) float64 {
	return size * 1.2
}

func TestFitSize(t *testing.T) {
	cases := map[string]struct {
		text     string
		base     float64
		maxWidth float64
		want     float64
	}{
		"fits at base": {
			"SHORT", 100, 1080,
			100,
		},
		"shrinks in steps of two": {
			strings.Repeat("A", 20), 100, 1080,
			90,
		},
		"floors at twelve": {
			strings.Repeat("A", 500), 100, 1080,
			12,
		},
		"floor reached from odd base": {
			strings.Repeat("A", 500), 13, 360,
			12,
		},
	}

	for intention, testCase := range cases {
		t.Run(intention, func(t *testing.T) {
			got := fitSize(testCase.text, testCase.base, testCase.maxWidth, charMeasure)
			if got != testCase.want {
				t.Errorf("fitSize() = %f, want %f", got, testCase.want)
			}

			if got < minFontSize {
				t.Errorf("fitSize() = %f, below floor %f", got, minFontSize)
			}
		})
	}
}

func TestWrapWords(t *testing.T) {
	measure := func(s string) float64 { return charMeasure(s, 10) }

	cases := map[string]struct {
		text     string
		maxWidth float64
		want     []string
	}{
		"single line": {
			"HELLO WORLD", 100,
			[]string{"HELLO WORLD"},
		},
		"greedy packing": {
			"AA BB CC DD", 32,
			[]string{"AA BB", "CC DD"},
		},
		"oversized word kept whole": {
			"HI SUPERCALIFRAGILISTIC HO", 60,
			[]string{"HI", "SUPERCALIFRAGILISTIC", "HO"},
		},
		"collapses whitespace runs": {
			"ONE   TWO\tTHREE", 200,
			[]string{"ONE TWO THREE"},
		},
	}

	for intention, testCase := range cases {
		t.Run(intention, func(t *testing.T) {
			got := wrapWords(testCase.text, testCase.maxWidth, measure)

			if len(got) != len(testCase.want) {
				t.Fatalf("wrapWords() = %v, want %v", got, testCase.want)
			}

			for i := range got {
				if got[i] != testCase.want[i] {
					t.Errorf("wrapWords()[%d] = %q, want %q", i, got[i], testCase.want[i])
				}
			}
		})
	}
}

func TestWrapWordsWidthBound(t *testing.T) {
	measure := func(s string) float64 { return charMeasure(s, 12) }

	lines := wrapWords("A VERY VERY VERY VERY VERY VERY VERY LONG CAPTION THAT MUST WRAP", 360, measure)

	if len(lines) < 2 {
		t.Errorf("wrapWords() = %v, want multiple lines", lines)
	}

	for _, line := range lines {
		if len(strings.Fields(line)) > 1 && measure(line) > 360 {
			t.Errorf("line %q measures %f, exceeds 360", line, measure(line))
		}
	}
}

func TestLayoutCaption(t *testing.T) {
	t.Run("empty caption renders nothing", func(t *testing.T) {
		size, lines := layoutCaption(Caption{Text: "  \t ", Region: Top}, 1200, 800, 100, charMeasure, charLineHeight)
		if size != 0 || lines != nil {
			t.Errorf("layoutCaption() = (%f, %v), want no lines", size, lines)
		}
	})

	t.Run("uppercases at layout time", func(t *testing.T) {
		_, lines := layoutCaption(Caption{Text: "when the code finally works", Region: Top}, 1200, 800, 100, charMeasure, charLineHeight)
		for _, line := range lines {
			if line.text != strings.ToUpper(line.text) {
				t.Errorf("line %q is not uppercased", line.text)
			}
		}
	})

	t.Run("single line stays at base size and is centered", func(t *testing.T) {
		size, lines := layoutCaption(Caption{Text: "SHORT", Region: Top}, 1200, 800, 100, charMeasure, charLineHeight)
		if size != 100 {
			t.Errorf("size = %f, want 100", size)
		}

		if len(lines) != 1 {
			t.Fatalf("lines = %v, want one line", lines)
		}

		if lines[0].x != 600 {
			t.Errorf("x = %f, want 600", lines[0].x)
		}

		wantY := 0.05*800 + 100
		if lines[0].y != wantY {
			t.Errorf("y = %f, want %f", lines[0].y, wantY)
		}
	})

	t.Run("top lines stack downward", func(t *testing.T) {
		_, lines := layoutCaption(Caption{Text: strings.Repeat("WORD ", 40), Region: Top}, 400, 300, 12, charMeasure, charLineHeight)
		if len(lines) < 2 {
			t.Fatalf("lines = %v, want wrapping", lines)
		}

		step := charLineHeight(12) + lineSpacing
		for i := 1; i < len(lines); i++ {
			// accumulated offsets drift by an ulp, compare with a tolerance
			if got := lines[i].y - lines[i-1].y; math.Abs(got-step) > 1e-9 {
				t.Errorf("line %d offset = %f, want %f", i, got, step)
			}
		}
	})

	t.Run("bottom block hugs the bottom margin", func(t *testing.T) {
		height := 800
		_, lines := layoutCaption(Caption{Text: strings.Repeat("LONG WORDS HERE ", 30), Region: Bottom}, 1200, height, 100, charMeasure, charLineHeight)
		if len(lines) < 2 {
			t.Fatalf("lines = %v, want wrapping", lines)
		}

		margin := 0.05 * float64(height)
		anchor := float64(height) - margin - 100

		last := lines[len(lines)-1]
		if last.y != anchor {
			t.Errorf("last line y = %f, want %f", last.y, anchor)
		}

		for i, line := range lines {
			if line.y > anchor {
				t.Errorf("line %d y = %f, sits below the anchor %f", i, line.y, anchor)
			}

			if i > 0 && lines[i-1].y >= line.y {
				t.Errorf("line %d does not sit strictly above line %d", i-1, i)
			}
		}
	})

	t.Run("box region anchors at the supplied point", func(t *testing.T) {
		_, lines := layoutCaption(Caption{Text: "LABEL", Region: Box, At: image.Point{X: 150, Y: 42}}, 1200, 800, 100, charMeasure, charLineHeight)
		if len(lines) != 1 {
			t.Fatalf("lines = %v, want one line", lines)
		}

		if lines[0].x != 150 || lines[0].y != 42 {
			t.Errorf("anchor = (%f, %f), want (150, 42)", lines[0].x, lines[0].y)
		}
	})

	t.Run("wrapped lines respect the width budget", func(t *testing.T) {
		width := 1000
		size, lines := layoutCaption(Caption{Text: strings.Repeat("BUDGET ", 50), Region: Top}, width, 800, float64(width)/12, charMeasure, charLineHeight)

		maxWidth := widthBudget * float64(width)
		for _, line := range lines {
			if len(strings.Fields(line.text)) > 1 && charMeasure(line.text, size) > maxWidth {
				t.Errorf("line %q measures %f, exceeds budget %f", line.text, charMeasure(line.text, size), maxWidth)
			}
		}
	})
}
