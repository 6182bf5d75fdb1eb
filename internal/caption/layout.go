package caption

import (
	"strings"
)

const (
	DefaultWidthRatio   = 0.9
	DefaultBottomMargin = 50
	DefaultLineSpacing  = 5
)

// MeasureFunc reports the rendered pixel width of a string.
type MeasureFunc func(string) int

// Line is one laid-out caption row. X and Y are the top-left corner of the
// line relative to the frame origin.
type Line struct {
	Text  string
	X     int
	Y     int
	Width int
}

// Layout holds the caption geometry.
type Layout struct {
	FontSize     int
	LineSpacing  int
	BottomMargin int
	WidthRatio   float64
}

// NewLayout returns the default geometry for fontSize.
func NewLayout(fontSize int) Layout {
	return Layout{
		FontSize:     fontSize,
		LineSpacing:  DefaultLineSpacing,
		BottomMargin: DefaultBottomMargin,
		WidthRatio:   DefaultWidthRatio,
	}
}

// MaxWidth is the widest a line may be on a frame of the given width.
func (l Layout) MaxWidth(frameWidth int) int {
	ratio := l.WidthRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultWidthRatio
	}
	return int(float64(frameWidth) * ratio)
}

// LineHeight is the vertical advance between consecutive lines.
func (l Layout) LineHeight() int {
	return l.FontSize + l.LineSpacing
}

// Place wraps text and positions each line on a frameWidth x frameHeight
// frame. Blank text yields no lines.
func (l Layout) Place(text string, measure MeasureFunc, frameWidth, frameHeight int) []Line {
	rows := Wrap(text, measure, l.MaxWidth(frameWidth))
	if len(rows) == 0 {
		return nil
	}
	lineHeight := l.LineHeight()
	top := frameHeight - len(rows)*lineHeight - l.BottomMargin
	lines := make([]Line, len(rows))
	for i, row := range rows {
		width := measure(row)
		lines[i] = Line{
			Text:  row,
			X:     floorHalf(frameWidth - width),
			Y:     top + i*lineHeight,
			Width: width,
		}
	}
	return lines
}

// Wrap splits text on whitespace and packs words greedily into lines whose
// measured width does not exceed maxWidth. A single word wider than maxWidth
// is emitted on its own line unsplit. Empty lines are never produced: a
// naive greedy loop flushes its empty buffer when the first word overflows,
// which would lift the whole caption by one line height.
func Wrap(text string, measure MeasureFunc, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if measure(candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// floorHalf divides by two rounding toward negative infinity, so lines wider
// than the frame start left of the origin.
func floorHalf(v int) int {
	if v >= 0 {
		return v / 2
	}
	return -((-v + 1) / 2)
}
