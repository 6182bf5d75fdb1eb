package staging

import (
	"path/filepath"
	"strings"
)

// Intermediate file suffixes, each prefixed with "<id>-".
const (
	AudioSuffix      = "audio.wav"
	SubtitlesSuffix  = "subtitles.srt"
	TranslatedSuffix = "Translated_subtitles.srt"
	OutputSuffix     = "output_video.mp4"

	lockExt = ".lock"
)

var suffixes = []string{AudioSuffix, SubtitlesSuffix, TranslatedSuffix, OutputSuffix}

// Files are the staging paths of one request.
type Files struct {
	Audio      string
	Subtitles  string
	Translated string
	Output     string
	Lock       string
}

// NewFiles lays out the files of request id under dir.
func NewFiles(dir, id string) Files {
	name := func(suffix string) string {
		return filepath.Join(dir, id+"-"+suffix)
	}
	return Files{
		Audio:      name(AudioSuffix),
		Subtitles:  name(SubtitlesSuffix),
		Translated: name(TranslatedSuffix),
		Output:     name(OutputSuffix),
		Lock:       filepath.Join(dir, id+lockExt),
	}
}

// Intermediates returns every file a run may leave behind, excluding the
// lock.
func (f Files) Intermediates() []string {
	return []string{f.Audio, f.Subtitles, f.Translated, f.Output}
}

// OutputName is the artifact name request id publishes under.
func OutputName(id string) string {
	return id + "-" + OutputSuffix
}

// RequestID reports which request a staging file name belongs to.
func RequestID(name string) (string, bool) {
	if id, ok := strings.CutSuffix(name, lockExt); ok && id != "" {
		return id, true
	}
	for _, suffix := range suffixes {
		if id, ok := strings.CutSuffix(name, "-"+suffix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}
