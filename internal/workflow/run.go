package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"captioner/internal/caption"
	"captioner/internal/deps"
	"captioner/internal/fileutil"
	"captioner/internal/jobs"
	"captioner/internal/logging"
	"captioner/internal/media/ffprobe"
	"captioner/internal/notifications"
	"captioner/internal/preflight"
	"captioner/internal/render"
	"captioner/internal/services"
	"captioner/internal/staging"
	"captioner/internal/subtitles"
	"captioner/internal/translation"
)

// Render converts req.VideoPath into a captioned video in req.TargetLang,
// publishes it, and returns a download link for it.
func (s *Service) Render(ctx context.Context, req Request) (Result, error) {
	started := time.Now()
	req, err := s.normalizeRequest(req)
	if err != nil {
		return Result{}, err
	}
	ctx = services.WithJobID(ctx, req.ID)
	logger := logging.WithContext(ctx, s.logger)

	if err := s.cfg.EnsureDirectories(); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "workflow", "prepare directories", "", err)
	}
	if s.preflight {
		if err := s.runPreflight(ctx); err != nil {
			return Result{}, err
		}
	}

	files := staging.NewFiles(s.cfg.Paths.StagingDir, req.ID)
	lock := flock.New(files.Lock)
	locked, err := lock.TryLock()
	if err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "workflow", "acquire lock", files.Lock, err)
	}
	if !locked {
		return Result{}, services.Wrap(services.ErrValidation, "workflow", "acquire lock", fmt.Sprintf("request %s is already running", req.ID), nil)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(files.Lock)
	}()

	if err := s.recordCreate(ctx, req); err != nil {
		return Result{}, err
	}

	logger.Info("render request started",
		logging.String(logging.FieldEventType, "render_start"),
		logging.String("video", req.VideoPath),
		logging.String("target_lang", req.TargetLang),
		logging.String("font", req.FontName),
		logging.Int("font_size", req.FontSize),
	)

	state := &runState{}
	result, err := s.run(ctx, req, files, state)
	if err != nil {
		s.handleFailure(services.WithStage(ctx, state.stage), req, files, err)
		return Result{}, err
	}
	result.Elapsed = time.Since(started)

	if s.ledger != nil {
		outcome := jobs.Outcome{
			AudioPath:       files.Audio,
			SubtitlesPath:   result.SubtitlesPath,
			TranslatedPath:  result.TranslatedSRTPath,
			OutputPath:      result.OutputVideoPath,
			ArtifactName:    result.Artifact.Name,
			CueCount:        result.Cues,
			TranslatedCount: result.Translation.Translated,
			FallbackCount:   result.Translation.Fallback,
		}
		if err := s.ledger.Complete(ctx, req.ID, outcome); err != nil {
			logging.WarnWithContext(logger, "failed to record completed job", "job_ledger_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "jobs list shows the run as unfinished"),
			)
		}
	}

	s.notifyCompleted(ctx, req, result)

	logger.Info("render request completed",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("artifact", result.Artifact.Name),
		logging.Int("cues", result.Cues),
		logging.Int("translated", result.Translation.Translated),
		logging.Int("fallback", result.Translation.Fallback),
		logging.Int("frames", result.Render.Frames),
		logging.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// runState tracks how far a run got so failures can name the stage.
type runState struct {
	stage string
}

func (s *Service) run(ctx context.Context, req Request, files staging.Files, state *runState) (Result, error) {
	result := Result{
		ID:         req.ID,
		VideoPath:  req.VideoPath,
		FontName:   req.FontName,
		FontSize:   req.FontSize,
		FontColor:  req.FontColor,
		TargetLang: req.TargetLang,
	}

	// Font problems are configuration errors and must surface before any
	// expensive stage runs.
	ctx = s.enterStage(ctx, state, req.ID, jobs.StageSetup)
	face, err := caption.LoadFace(s.cfg.Paths.FontsDir, req.FontName, req.FontSize, req.FontColor)
	if err != nil {
		return result, err
	}
	layout := caption.Layout{
		FontSize:     req.FontSize,
		LineSpacing:  s.cfg.Caption.LineSpacing,
		BottomMargin: s.cfg.Caption.BottomMargin,
		WidthRatio:   s.cfg.Caption.WidthRatio,
	}
	if _, err := os.Stat(req.VideoPath); err != nil {
		return result, services.Wrap(services.ErrValidation, "setup", "open video", req.VideoPath, err)
	}
	s.recordSourceHash(ctx, req)
	info, err := s.media.Probe(ctx, req.VideoPath)
	if err != nil {
		return result, err
	}
	logging.WithContext(ctx, s.logger).Debug("source probed",
		logging.Int("width", info.Width),
		logging.Int("height", info.Height),
		logging.Int("rotation", info.Rotation),
		logging.String("rate", info.Rate),
	)

	ctx = s.enterStage(ctx, state, req.ID, jobs.StageAudio)
	if err := s.media.ExtractAudio(ctx, req.VideoPath, files.Audio); err != nil {
		return result, err
	}

	ctx = s.enterStage(ctx, state, req.ID, jobs.StageTranscribe)
	segments, err := s.recognizer.Transcribe(ctx, files.Audio)
	if err != nil {
		return result, err
	}
	track, err := subtitles.FromSegments(segments)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "transcribe", "build track", "", err)
	}
	if err := subtitles.WriteFile(files.Subtitles, track); err != nil {
		return result, services.Wrap(services.ErrTransient, "transcribe", "write subtitles", files.Subtitles, err)
	}
	result.SubtitlesPath = files.Subtitles
	result.Cues = track.Len()

	ctx = s.enterStage(ctx, state, req.ID, jobs.StageTranslate)
	translated := track.Clone()
	adapter := translation.NewAdapter(s.engine,
		translation.WithCueTimeout(s.cfg.TranslationTimeout()),
		translation.WithWorkers(s.cfg.Translation.Concurrency),
		translation.WithAdapterLogger(s.logger),
	)
	result.Translation = adapter.TranslateTrack(ctx, &translated, req.TargetLang)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if err := subtitles.WriteFile(files.Translated, translated); err != nil {
		return result, services.Wrap(services.ErrTransient, "translate", "write subtitles", files.Translated, err)
	}
	result.TranslatedSRTPath = files.Translated

	ctx = s.enterStage(ctx, state, req.ID, jobs.StageRender)
	// The render consumes the persisted translation, not the in-memory copy.
	burned, err := subtitles.ReadFile(files.Translated)
	if err != nil {
		return result, services.Wrap(services.ErrValidation, "render", "read subtitles", files.Translated, err)
	}
	summary, err := s.renderVideo(ctx, req.VideoPath, files.Output, info, caption.NewCompositor(&burned, face, layout))
	if err != nil {
		return result, err
	}
	result.Render = summary

	ctx = s.enterStage(ctx, state, req.ID, jobs.StagePublish)
	artifact, err := s.store.Publish(ctx, files.Output, OutputName(req.ID))
	if err != nil {
		return result, err
	}
	result.Artifact = artifact
	result.OutputVideoPath = artifact.Location
	token, err := s.tokens.Issue(artifact.Name)
	if err != nil {
		return result, err
	}
	result.Token = token
	result.VideoURL = s.tokens.URL(token)
	return result, nil
}

func (s *Service) renderVideo(ctx context.Context, source, output string, info ffprobe.VideoInfo, compositor render.Compositor) (render.Summary, error) {
	logger := logging.WithContext(ctx, s.logger)
	reader, err := s.media.OpenSource(ctx, source, info)
	if err != nil {
		return render.Summary{}, err
	}
	defer reader.Close()

	sink, err := s.media.OpenSink(ctx, source, output, info)
	if err != nil {
		return render.Summary{}, err
	}

	pipeline := render.NewPipeline(compositor, render.WithLogger(s.logger))
	summary, err := pipeline.Run(ctx, reader, sink, info.FPS)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return summary, err
		}
		return summary, services.Wrap(services.ErrExternalTool, "render", "burn captions", "", err)
	}
	if info.Duration > 0 && summary.Duration+1/info.FPS < info.Duration-0.5 {
		logging.WarnWithContext(logger, "rendered duration is shorter than the source", "render_short_output",
			logging.Float64("source_seconds", info.Duration),
			logging.Float64("rendered_seconds", summary.Duration),
			logging.String(logging.FieldErrorHint, "check the source for a truncated or variable-rate video stream"),
		)
	}
	logger.Info("captions burned",
		logging.Int("frames", summary.Frames),
		logging.Int("captioned_frames", summary.Captioned),
		logging.Float64("fps", summary.FPS),
		logging.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (s *Service) runPreflight(ctx context.Context) error {
	if missing := deps.Missing(preflight.CheckSystemDeps(ctx, s.cfg)); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, dep := range missing {
			names = append(names, dep.Command)
		}
		return services.Wrap(services.ErrConfiguration, "preflight", "binaries", fmt.Sprintf("missing required binaries: %v", names), nil)
	}
	return preflight.Failed(preflight.RunAll(ctx, s.cfg))
}

func (s *Service) enterStage(ctx context.Context, state *runState, id, stage string) context.Context {
	state.stage = stage
	ctx = services.WithStage(ctx, stage)
	logging.WithContext(ctx, s.logger).Debug("stage started")
	if s.ledger != nil {
		if err := s.ledger.UpdateStage(ctx, id, stage); err != nil {
			s.ledgerWarning(ctx, err)
		}
	}
	return ctx
}

func (s *Service) recordCreate(ctx context.Context, req Request) error {
	if s.ledger == nil {
		return nil
	}
	if _, err := s.ledger.Create(ctx, jobs.Job{ID: req.ID, SourcePath: req.VideoPath, TargetLang: req.TargetLang}); err != nil {
		return services.Wrap(services.ErrValidation, "workflow", "record job", fmt.Sprintf("request id %s", req.ID), err)
	}
	return nil
}

func (s *Service) recordSourceHash(ctx context.Context, req Request) {
	if s.ledger == nil {
		return
	}
	hash, err := fileutil.HashFile(req.VideoPath)
	if err != nil {
		s.ledgerWarning(ctx, err)
		return
	}
	if err := s.ledger.SetSourceHash(ctx, req.ID, hash); err != nil {
		s.ledgerWarning(ctx, err)
	}
}

func (s *Service) ledgerWarning(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "job ledger update failed", "job_ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "job history may be incomplete"),
	)
}

// handleFailure discards the run's files and records the failure.
func (s *Service) handleFailure(ctx context.Context, req Request, files staging.Files, cause error) {
	logger := logging.WithContext(ctx, s.logger)
	for _, path := range files.Intermediates() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("failed to remove partial output", logging.String("path", path), logging.Error(err))
		}
	}

	attrs := []logging.Attr{
		logging.String("error_kind", services.Kind(cause)),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		attrs = append(attrs, logging.String(logging.FieldStage, stage))
	}
	logging.ErrorWithContext(logger, "render request failed", "render_failure", attrs...)

	// The request context may already be cancelled; the failure still has
	// to reach the ledger and the notifier.
	detached := context.WithoutCancel(ctx)
	if s.ledger != nil {
		if err := s.ledger.Fail(detached, req.ID, cause); err != nil {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	if errors.Is(cause, context.Canceled) {
		return
	}
	stage, _ := services.StageFromContext(ctx)
	if err := s.notifier.RenderFailed(detached, req.ID, stage, cause); err != nil {
		s.notifyWarning(ctx, err)
	}
}

func (s *Service) notifyCompleted(ctx context.Context, req Request, result Result) {
	done := notifications.Completion{
		ID:         req.ID,
		SourceName: filepath.Base(req.VideoPath),
		TargetLang: req.TargetLang,
		Cues:       result.Cues,
		Translated: result.Translation.Translated,
		Fallback:   result.Translation.Fallback,
		VideoURL:   result.VideoURL,
		Elapsed:    result.Elapsed,
	}
	if err := s.notifier.RenderCompleted(ctx, done); err != nil {
		s.notifyWarning(ctx, err)
	}
}

func (s *Service) notifyWarning(ctx context.Context, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "render outcome was not pushed to ntfy"),
	)
}

func failureHint(err error) string {
	switch services.Kind(err) {
	case "configuration":
		return "fix the configuration or font setting and retry"
	case "validation":
		return "check the request parameters and source video"
	case "external_tool":
		return "run captioner doctor and inspect the tool output above"
	case "timeout":
		return "raise the relevant timeout or retry on a less loaded host"
	default:
		if errors.Is(err, context.Canceled) {
			return "request was cancelled"
		}
		return "retry the request"
	}
}
