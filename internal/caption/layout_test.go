package caption

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// tenPerRune measures every rune as 10 pixels.
func tenPerRune(s string) int { return 10 * utf8.RuneCountInString(s) }

func TestWrapGreedy(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWidth int
		want     []string
	}{
		{"fits on one line", "hello world", 200, []string{"hello world"}},
		{"exact fit", "hello world", 110, []string{"hello world"}},
		{"breaks before overflow", "hello world", 109, []string{"hello", "world"}},
		{"packs greedily", "a bb ccc dddd eeeee", 80, []string{"a bb ccc", "dddd", "eeeee"}},
		{"collapses whitespace", "  one \n two\tthree  ", 500, []string{"one two three"}},
		{"long first word alone", "supercalifragilistic is long", 100, []string{"supercalifragilistic", "is long"}},
		{"long word in middle", "hi supercalifragilistic yo", 100, []string{"hi", "supercalifragilistic", "yo"}},
		{"blank", "   ", 100, nil},
		{"empty", "", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tenPerRune, tt.maxWidth)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Wrap(%q, %d) = %q, want %q", tt.text, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestWrapRespectsWidthAndKeepsWords(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog while an extraordinarily verbose narrator keeps talking"
	for _, maxWidth := range []int{10, 50, 90, 130, 400, 1000} {
		lines := Wrap(text, tenPerRune, maxWidth)
		for _, line := range lines {
			if line == "" {
				t.Fatalf("maxWidth %d: empty line emitted", maxWidth)
			}
			if tenPerRune(line) > maxWidth && strings.Contains(line, " ") {
				t.Fatalf("maxWidth %d: multi-word line %q exceeds width", maxWidth, line)
			}
		}
		if got := strings.Join(lines, " "); got != strings.Join(strings.Fields(text), " ") {
			t.Fatalf("maxWidth %d: words lost or reordered: %q", maxWidth, got)
		}
	}
}

func TestLayoutMaxWidth(t *testing.T) {
	layout := NewLayout(36)
	if got := layout.MaxWidth(1280); got != 1152 {
		t.Fatalf("MaxWidth(1280) = %d, want 1152", got)
	}
	if got := layout.MaxWidth(101); got != 90 {
		t.Fatalf("MaxWidth(101) = %d, want 90", got)
	}
	layout.WidthRatio = 0
	if got := layout.MaxWidth(1000); got != 900 {
		t.Fatalf("invalid ratio should fall back to default, got %d", got)
	}
}

func TestLayoutPlace(t *testing.T) {
	layout := NewLayout(36)
	lines := layout.Place("hello there general", tenPerRune, 200, 720)

	want := []Line{
		{Text: "hello there", X: 45, Y: 720 - 2*41 - 50, Width: 110},
		{Text: "general", X: 65, Y: 720 - 41 - 50, Width: 70},
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("Place = %+v, want %+v", lines, want)
	}
}

func TestLayoutPlaceCentersWithFloor(t *testing.T) {
	measure := func(string) int { return 7 }
	lines := NewLayout(10).Place("x", measure, 100, 100)
	if len(lines) != 1 || lines[0].X != 46 {
		t.Fatalf("expected x=46, got %+v", lines)
	}

	wide := func(string) int { return 103 }
	lines = NewLayout(10).Place("wide", wide, 100, 100)
	if len(lines) != 1 || lines[0].X != -2 {
		t.Fatalf("expected x=-2 for overflowing line, got %+v", lines)
	}
}

func TestLayoutPlaceBlank(t *testing.T) {
	if lines := NewLayout(36).Place(" \n ", tenPerRune, 640, 480); lines != nil {
		t.Fatalf("expected no lines, got %+v", lines)
	}
}

func TestLayoutPlaceOverlongFirstWordKeepsMargin(t *testing.T) {
	layout := NewLayout(36)
	// 180px limit on a 200px frame; the first word alone is 200px.
	lines := layout.Place("abcdefghijklmnopqrst ok", tenPerRune, 200, 720)
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %+v", lines)
	}
	if lines[0].Text != "abcdefghijklmnopqrst" || lines[0].X != 0 {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if want := 720 - 50 - 41; lines[1].Y != want {
		t.Fatalf("last line y = %d, want %d", lines[1].Y, want)
	}
}
