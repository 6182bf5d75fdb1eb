package workflow

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"captioner/internal/access"
	"captioner/internal/artifacts"
	langpkg "captioner/internal/language"
	"captioner/internal/render"
	"captioner/internal/services"
	"captioner/internal/staging"
	"captioner/internal/translation"
)

// Request describes one render. Empty styling fields take the configured
// caption defaults; an empty ID is replaced by a fresh UUID.
type Request struct {
	VideoPath  string
	TargetLang string
	FontName   string
	FontSize   int
	FontColor  string
	ID         string
}

// Result is what a completed render hands back to the caller.
type Result struct {
	ID                string
	VideoURL          string
	VideoPath         string
	SubtitlesPath     string
	TranslatedSRTPath string
	OutputVideoPath   string
	FontName          string
	FontSize          int
	FontColor         string
	TargetLang        string
	Cues              int
	Translation       translation.Stats
	Render            render.Summary
	Artifact          artifacts.Artifact
	Token             access.Token
	Elapsed           time.Duration
}

// OutputName is the artifact name a request id publishes under.
func OutputName(id string) string {
	return staging.OutputName(id)
}

func (s *Service) normalizeRequest(req Request) (Request, error) {
	req.VideoPath = strings.TrimSpace(req.VideoPath)
	if req.VideoPath == "" {
		return req, services.Wrap(services.ErrValidation, "workflow", "request", "video path is required", nil)
	}
	abs, err := filepath.Abs(req.VideoPath)
	if err != nil {
		return req, services.Wrap(services.ErrValidation, "workflow", "request", "resolve video path", err)
	}
	req.VideoPath = abs

	lang := strings.TrimSpace(req.TargetLang)
	if lang == "" {
		lang = s.cfg.Translation.DefaultTarget
	}
	normalized, err := langpkg.Normalize(lang)
	if err != nil {
		return req, services.Wrap(services.ErrValidation, "workflow", "request", "unrecognized target language", err)
	}
	req.TargetLang = normalized

	if strings.TrimSpace(req.FontName) == "" {
		req.FontName = s.cfg.Caption.FontName
	}
	if req.FontSize == 0 {
		req.FontSize = s.cfg.Caption.FontSize
	}
	if strings.TrimSpace(req.FontColor) == "" {
		req.FontColor = s.cfg.Caption.FontColor
	}

	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		req.ID = s.newID()
	}
	if strings.ContainsAny(req.ID, `/\`+"\x00") || req.ID == "." || req.ID == ".." {
		return req, services.Wrap(services.ErrValidation, "workflow", "request", fmt.Sprintf("id %q must be a plain name", req.ID), nil)
	}
	return req, nil
}
