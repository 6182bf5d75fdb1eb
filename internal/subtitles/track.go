package subtitles

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCue reports a recognition segment that violates 0 <= start < end.
var ErrInvalidCue = errors.New("invalid cue")

// Segment is one timed text span produced by speech recognition.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Cue is a single subtitle entry. Index numbers exist only in the serialized
// form.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// Contains reports whether t falls inside the closed interval [Start, End].
func (c Cue) Contains(t float64) bool {
	return c.Start <= t && t <= c.End
}

// Duration returns the cue length in seconds.
func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// Track is an ordered cue sequence. Order is whatever the producer emitted;
// the track never re-sorts and overlapping cues are allowed.
type Track struct {
	Cues []Cue
}

// FromSegments builds a track with one cue per segment. Text is trimmed and
// segments whose text is blank are skipped since SubRip cannot carry them.
func FromSegments(segments []Segment) (Track, error) {
	cues := make([]Cue, 0, len(segments))
	for i, seg := range segments {
		if !(seg.Start >= 0 && seg.Start < seg.End) {
			return Track{}, fmt.Errorf("segment %d [%v, %v]: %w", i+1, seg.Start, seg.End, ErrInvalidCue)
		}
		text := normalizeText(seg.Text)
		if text == "" {
			continue
		}
		cues = append(cues, Cue{Start: seg.Start, End: seg.End, Text: text})
	}
	return Track{Cues: cues}, nil
}

// Len returns the number of cues.
func (t Track) Len() int {
	return len(t.Cues)
}

// Clone returns a deep copy so callers can mutate text without touching the
// original.
func (t Track) Clone() Track {
	if t.Cues == nil {
		return Track{}
	}
	cues := make([]Cue, len(t.Cues))
	copy(cues, t.Cues)
	return Track{Cues: cues}
}

// ActiveCue returns the first cue whose interval contains at.
func (t Track) ActiveCue(at float64) (Cue, bool) {
	if idx := t.ActiveIndex(at); idx >= 0 {
		return t.Cues[idx], true
	}
	return Cue{}, false
}

// ActiveIndex returns the index of the first cue containing at, or -1.
func (t Track) ActiveIndex(at float64) int {
	for i, cue := range t.Cues {
		if cue.Contains(at) {
			return i
		}
	}
	return -1
}

// Bounds returns the earliest start and latest end across all cues.
func (t Track) Bounds() (first, last float64) {
	if len(t.Cues) == 0 {
		return 0, 0
	}
	first = t.Cues[0].Start
	for _, cue := range t.Cues {
		if cue.Start < first {
			first = cue.Start
		}
		if cue.End > last {
			last = cue.End
		}
	}
	return first, last
}

// Validate reports ordering and overlap problems. An empty result means the
// track is strictly sequential. Overlap is legal for rendering (first match
// wins) so callers decide whether these issues matter.
func (t Track) Validate() []string {
	if len(t.Cues) == 0 {
		return []string{"empty_track"}
	}
	var issues []string
	for i, cue := range t.Cues {
		if cue.Start < 0 {
			issues = append(issues, fmt.Sprintf("cue %d: negative start", i+1))
		}
		if cue.End <= cue.Start {
			issues = append(issues, fmt.Sprintf("cue %d: end not after start", i+1))
		}
		if strings.TrimSpace(cue.Text) == "" {
			issues = append(issues, fmt.Sprintf("cue %d: empty text", i+1))
		}
		if i == 0 {
			continue
		}
		prev := t.Cues[i-1]
		switch {
		case cue.Start < prev.Start:
			issues = append(issues, fmt.Sprintf("cue %d: starts before cue %d", i+1, i))
		case cue.Start < prev.End:
			issues = append(issues, fmt.Sprintf("cue %d: overlaps cue %d", i+1, i))
		}
	}
	return issues
}

// normalizeText trims the text and drops blank interior lines, which would
// otherwise terminate the cue block on disk.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
