package subtitles

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"captioner/internal/timestamp"
)

// MalformedSubtitleError reports a SubRip block that cannot be decoded.
type MalformedSubtitleError struct {
	Block  int
	Reason string
}

func (e *MalformedSubtitleError) Error() string {
	return fmt.Sprintf("malformed subtitle block %d: %s", e.Block, e.Reason)
}

// Marshal renders the track as SubRip text. Output depends only on cue
// content, so re-marshaling an unmodified track is byte-identical.
func (t Track) Marshal() []byte {
	var buf bytes.Buffer
	for i, cue := range t.Cues {
		buf.WriteString(strconv.Itoa(i + 1))
		buf.WriteByte('\n')
		buf.WriteString(timestamp.Format(cue.Start))
		buf.WriteString(" --> ")
		buf.WriteString(timestamp.Format(cue.End))
		buf.WriteByte('\n')
		buf.WriteString(normalizeText(cue.Text))
		buf.WriteString("\n\n")
	}
	return buf.Bytes()
}

// Parse decodes SubRip text. Every block needs an index line, a timing line,
// and at least one text line.
func Parse(data []byte) (Track, error) {
	blocks := splitBlocks(data)
	cues := make([]Cue, 0, len(blocks))
	for i, lines := range blocks {
		cue, err := parseBlock(i+1, lines)
		if err != nil {
			return Track{}, err
		}
		cues = append(cues, cue)
	}
	return Track{Cues: cues}, nil
}

func splitBlocks(data []byte) [][]string {
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var (
		blocks  [][]string
		current []string
	)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseBlock(number int, lines []string) (Cue, error) {
	malformed := func(format string, args ...any) error {
		return &MalformedSubtitleError{Block: number, Reason: fmt.Sprintf(format, args...)}
	}
	if len(lines) < 3 {
		return Cue{}, malformed("expected index, timing and text lines, found %d line(s)", len(lines))
	}
	if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
		return Cue{}, malformed("invalid index %q", lines[0])
	}
	startText, endText, ok := strings.Cut(lines[1], "-->")
	if !ok {
		return Cue{}, malformed("missing timing separator in %q", lines[1])
	}
	start, err := timestamp.Parse(startText)
	if err != nil {
		return Cue{}, malformed("start time: %v", err)
	}
	// Some writers append positioning hints after the end time.
	endFields := strings.Fields(endText)
	if len(endFields) == 0 {
		return Cue{}, malformed("missing end time")
	}
	end, err := timestamp.Parse(endFields[0])
	if err != nil {
		return Cue{}, malformed("end time: %v", err)
	}
	if end < start {
		return Cue{}, malformed("end %s precedes start %s", timestamp.Format(end), timestamp.Format(start))
	}
	return Cue{Start: start, End: end, Text: strings.Join(trimLines(lines[2:]), "\n")}, nil
}

func trimLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		out = append(out, strings.TrimSpace(line))
	}
	return out
}

// ReadFile loads and parses a SubRip file.
func ReadFile(path string) (Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Track{}, fmt.Errorf("read srt: %w", err)
	}
	track, err := Parse(data)
	if err != nil {
		return Track{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return track, nil
}

// WriteFile persists the track through a temp file and rename so readers never
// observe a partially written subtitle file.
func WriteFile(path string, track Track) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subtitle directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp subtitle: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(track.Marshal()); err != nil {
		tmp.Close()
		return fmt.Errorf("write srt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close srt: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod srt: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename srt: %w", err)
	}
	return nil
}
