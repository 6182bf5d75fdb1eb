package workflow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"

	"captioner/internal/caption"
	"captioner/internal/config"
	"captioner/internal/jobs"
	"captioner/internal/media/ffprobe"
	"captioner/internal/notifications"
	"captioner/internal/render"
	"captioner/internal/services"
	"captioner/internal/subtitles"
	"captioner/internal/testsupport"
	"captioner/internal/translation"
)

type fakeMedia struct {
	mu        sync.Mutex
	info      ffprobe.VideoInfo
	frames    int
	failAt    int
	extracted int
	written   int
	captioned int
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		info:   ffprobe.VideoInfo{Width: 320, Height: 240, FPS: 10, Rate: "10", Duration: 5, HasAudio: true},
		frames: 50,
		failAt: -1,
	}
}

func (m *fakeMedia) Probe(context.Context, string) (ffprobe.VideoInfo, error) {
	return m.info, nil
}

func (m *fakeMedia) ExtractAudio(_ context.Context, _, output string) error {
	m.mu.Lock()
	m.extracted++
	m.mu.Unlock()
	return os.WriteFile(output, []byte("RIFF"), 0o644)
}

func (m *fakeMedia) OpenSource(_ context.Context, _ string, info ffprobe.VideoInfo) (FrameReader, error) {
	return &fakeReader{remaining: m.frames, width: info.Width, height: info.Height}, nil
}

func (m *fakeMedia) OpenSink(_ context.Context, _, output string, _ ffprobe.VideoInfo) (render.FrameSink, error) {
	return &fakeSink{media: m, output: output}, nil
}

type fakeReader struct {
	remaining int
	width     int
	height    int
}

func (r *fakeReader) Next() (*image.RGBA, error) {
	if r.remaining == 0 {
		return nil, io.EOF
	}
	r.remaining--
	return image.NewRGBA(image.Rect(0, 0, r.width, r.height)), nil
}

func (r *fakeReader) Close() error { return nil }

type fakeSink struct {
	media  *fakeMedia
	output string
	blank  *image.RGBA
}

func (s *fakeSink) WriteFrame(frame *image.RGBA) error {
	s.media.mu.Lock()
	defer s.media.mu.Unlock()
	if s.media.failAt >= 0 && s.media.written == s.media.failAt {
		return errors.New("encoder pipe closed")
	}
	s.media.written++
	if s.blank == nil {
		s.blank = image.NewRGBA(frame.Bounds())
	}
	if string(frame.Pix) != string(s.blank.Pix) {
		s.media.captioned++
	}
	return nil
}

func (s *fakeSink) Close() error {
	return os.WriteFile(s.output, []byte("mp4"), 0o644)
}

type fakeRecognizer struct {
	segments []subtitles.Segment
	err      error
	hook     func()
}

func (r *fakeRecognizer) Transcribe(_ context.Context, audioPath string) ([]subtitles.Segment, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("audio missing: %w", err)
	}
	if r.hook != nil {
		r.hook()
	}
	return r.segments, r.err
}

func threeSegments() *fakeRecognizer {
	return &fakeRecognizer{segments: []subtitles.Segment{
		{Start: 0.0, End: 1.2, Text: "hello"},
		{Start: 1.2, End: 2.5, Text: "world"},
		{Start: 2.5, End: 4.0, Text: "bye"},
	}}
}

// upperExceptWorld translates by upper-casing and fails on "world".
var upperExceptWorld = translation.EngineFunc(func(_ context.Context, text, _ string) (string, error) {
	if text == "world" {
		return "", errors.New("rate limited")
	}
	return strings.ToUpper(text), nil
})

type recordingNotifier struct {
	mu        sync.Mutex
	completed []notifications.Completion
	failed    []string
}

func (n *recordingNotifier) RenderCompleted(_ context.Context, done notifications.Completion) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, done)
	return nil
}

func (n *recordingNotifier) RenderFailed(_ context.Context, id, stage string, _ error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, id+"@"+stage)
	return errors.New("ntfy unreachable")
}

func (n *recordingNotifier) TestNotification(context.Context) error { return nil }

func newTestService(t *testing.T, cfg *config.Config, media *fakeMedia, recognizer Recognizer, opts ...Option) (*Service, *jobs.Store) {
	t.Helper()
	ledger := testsupport.MustOpenJobs(t, cfg)
	base := []Option{
		WithJobs(ledger),
		WithMedia(media),
		WithRecognizer(recognizer),
		WithEngine(upperExceptWorld),
		WithPreflight(false),
		WithIDGenerator(func() string { return "req1" }),
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc, ledger
}

func sourceVideo(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "upload.mp4")
	testsupport.WriteSourceVideo(t, path, 4096)
	return path
}

func stagedFiles(t *testing.T, dir, prefix string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			names = append(names, entry.Name())
		}
	}
	return names
}

func TestRenderEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinBold, 12, "white"))
	media := newFakeMedia()
	svc, ledger := newTestService(t, cfg, media, threeSegments())
	video := sourceVideo(t, cfg)

	result, err := svc.Render(context.Background(), Request{VideoPath: video, TargetLang: "French"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}

	if result.ID != "req1" || result.TargetLang != "fr" {
		t.Fatalf("unexpected id/lang %q/%q", result.ID, result.TargetLang)
	}
	if result.FontName != caption.BuiltinBold || result.FontSize != 12 || result.FontColor != "white" {
		t.Fatalf("font defaults not applied: %+v", result)
	}
	if result.Translation != (translation.Stats{Total: 3, Translated: 2, Fallback: 1}) {
		t.Fatalf("unexpected translation stats %+v", result.Translation)
	}
	if result.Render.Frames != 50 || media.written != 50 {
		t.Fatalf("expected 50 frames, summary %+v written %d", result.Render, media.written)
	}
	// Frames 0..40 fall inside a cue; the last cue ends exactly at t=4.0.
	if result.Render.Captioned != 41 || media.captioned != 41 {
		t.Fatalf("expected 41 captioned frames, summary %d sink %d", result.Render.Captioned, media.captioned)
	}

	translated, err := subtitles.ReadFile(result.TranslatedSRTPath)
	if err != nil {
		t.Fatalf("read translated srt: %v", err)
	}
	var texts []string
	for _, cue := range translated.Cues {
		texts = append(texts, cue.Text)
	}
	if strings.Join(texts, "|") != "HELLO|world|BYE" {
		t.Fatalf("unexpected translated cues %v", texts)
	}
	original, err := subtitles.ReadFile(result.SubtitlesPath)
	if err != nil {
		t.Fatalf("read source srt: %v", err)
	}
	if original.Cues[0].Text != "hello" {
		t.Fatalf("source srt must keep the recognized text, got %q", original.Cues[0].Text)
	}
	if filepath.Base(result.TranslatedSRTPath) != "req1-Translated_subtitles.srt" {
		t.Fatalf("unexpected translated srt name %q", result.TranslatedSRTPath)
	}

	wantOutput := filepath.Join(cfg.Paths.OutputDir, "req1-output_video.mp4")
	if result.OutputVideoPath != wantOutput {
		t.Fatalf("output path = %q, want %q", result.OutputVideoPath, wantOutput)
	}
	if _, err := os.Stat(wantOutput); err != nil {
		t.Fatalf("published video missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.StagingDir, "req1.lock")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file should be removed, stat err = %v", err)
	}

	wantPrefix := cfg.Access.BaseURL + "/download_video?"
	if !strings.HasPrefix(result.VideoURL, wantPrefix) || !strings.Contains(result.VideoURL, "filename=req1-output_video.mp4") {
		t.Fatalf("unexpected video url %q", result.VideoURL)
	}
	location, err := svc.Tokens().Redeem(context.Background(), result.Token.Filename, result.Token.Value, result.Token.Expires())
	if err != nil {
		t.Fatalf("Redeem returned error: %v", err)
	}
	if location != wantOutput {
		t.Fatalf("redeemed location %q, want %q", location, wantOutput)
	}

	job, err := ledger.Get(context.Background(), "req1")
	if err != nil || job == nil {
		t.Fatalf("ledger Get: %v %v", job, err)
	}
	if job.Status != jobs.StatusCompleted || job.CueCount != 3 || job.TranslatedCount != 2 || job.FallbackCount != 1 {
		t.Fatalf("unexpected ledger row %+v", job)
	}
	if job.SourceHash == "" || job.ArtifactName != "req1-output_video.mp4" {
		t.Fatalf("ledger missing hash or artifact: %+v", job)
	}
}

func TestRenderMissingFontFailsBeforeExtraction(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	media := newFakeMedia()
	svc, ledger := newTestService(t, cfg, media, threeSegments())

	_, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg), FontName: "Poppins-Bold.ttf"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if media.extracted != 0 {
		t.Fatal("audio extraction must not run when the font is unusable")
	}
	job, _ := ledger.Get(context.Background(), "req1")
	if job == nil || job.Status != jobs.StatusFailed || job.ErrorKind != "configuration" {
		t.Fatalf("unexpected ledger row %+v", job)
	}
}

func TestRenderStageFailureRemovesPartialFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "yellow"))
	media := newFakeMedia()
	media.failAt = 10
	svc, ledger := newTestService(t, cfg, media, threeSegments())

	_, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg), ID: "boom"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if left := stagedFiles(t, cfg.Paths.StagingDir, "boom"); len(left) != 0 {
		t.Fatalf("partial files left behind: %v", left)
	}
	if left := stagedFiles(t, cfg.Paths.OutputDir, "boom"); len(left) != 0 {
		t.Fatalf("nothing should be published: %v", left)
	}
	job, _ := ledger.Get(context.Background(), "boom")
	if job == nil || job.Status != jobs.StatusFailed || job.Stage != jobs.StageRender || job.ErrorKind != "external_tool" {
		t.Fatalf("unexpected ledger row %+v", job)
	}
}

func TestRenderCancellationDiscardsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	recognizer := threeSegments()
	recognizer.hook = cancel
	svc, ledger := newTestService(t, cfg, newFakeMedia(), recognizer)

	_, err := svc.Render(ctx, Request{VideoPath: sourceVideo(t, cfg)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if left := stagedFiles(t, cfg.Paths.StagingDir, "req1"); len(left) != 0 {
		t.Fatalf("partial files left behind: %v", left)
	}
	job, _ := ledger.Get(context.Background(), "req1")
	if job == nil || job.Status != jobs.StatusFailed {
		t.Fatalf("cancelled run should be recorded as failed: %+v", job)
	}
}

func TestRenderRecognizerFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	recognizer := &fakeRecognizer{err: services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "", errors.New("exit 1"))}
	svc, _ := newTestService(t, cfg, newFakeMedia(), recognizer)

	_, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg)})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if left := stagedFiles(t, cfg.Paths.StagingDir, "req1"); len(left) != 0 {
		t.Fatalf("audio should be discarded: %v", left)
	}
}

func TestRenderRejectsInvalidRequests(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	svc, _ := newTestService(t, cfg, newFakeMedia(), threeSegments())
	video := sourceVideo(t, cfg)

	tests := []struct {
		name string
		req  Request
	}{
		{"missing video path", Request{}},
		{"unknown language", Request{VideoPath: video, TargetLang: "not a language"}},
		{"id with separator", Request{VideoPath: video, ID: "../escape"}},
		{"missing video file", Request{VideoPath: filepath.Join(t.TempDir(), "nope.mp4"), ID: "gone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Render(context.Background(), tt.req); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRenderRejectsConcurrentSameID(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	media := newFakeMedia()
	svc, _ := newTestService(t, cfg, media, threeSegments())

	held := flock.New(filepath.Join(cfg.Paths.StagingDir, "busy.lock"))
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock failed: %v", err)
	}
	defer held.Unlock()

	_, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg), ID: "busy"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if media.extracted != 0 {
		t.Fatal("locked request must not run")
	}
}

func TestRenderPreflightMissingBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	t.Setenv("PATH", t.TempDir())
	media := newFakeMedia()
	svc, _ := newTestService(t, cfg, media, threeSegments(), WithPreflight(true))

	_, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg)})
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "ffmpeg") {
		t.Fatalf("expected missing binary configuration error, got %v", err)
	}
	if media.extracted != 0 {
		t.Fatal("preflight failure must stop the run")
	}
}

func TestRenderPreflightPassesWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithFont(caption.BuiltinRegular, 12, "white"),
		testsupport.WithStubbedBinaries(),
	)
	svc, _ := newTestService(t, cfg, newFakeMedia(), threeSegments(), WithPreflight(true))

	if _, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg)}); err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
}

func TestNewServiceBuildsDefaultCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	if svc.Tokens() == nil {
		t.Fatal("expected a token service")
	}
	if _, ok := svc.media.(*FFmpegMedia); !ok {
		t.Fatalf("expected ffmpeg media, got %T", svc.media)
	}
	if _, ok := svc.engine.(translation.Identity); !ok {
		t.Fatalf("provider none should use the identity engine, got %T", svc.engine)
	}
}

func TestOutputName(t *testing.T) {
	if got := OutputName("abc"); got != "abc-output_video.mp4" {
		t.Fatalf("OutputName = %q", got)
	}
}

func TestRenderNotifiesOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFont(caption.BuiltinRegular, 12, "white"))
	notifier := &recordingNotifier{}
	media := newFakeMedia()
	svc, _ := newTestService(t, cfg, media, threeSegments(), WithNotifier(notifier))

	result, err := svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg), TargetLang: "fr"})
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if len(notifier.completed) != 1 {
		t.Fatalf("expected one completion, got %+v", notifier.completed)
	}
	done := notifier.completed[0]
	if done.ID != "req1" || done.SourceName != "upload.mp4" || done.TargetLang != "fr" || done.Cues != 3 || done.VideoURL != result.VideoURL {
		t.Fatalf("unexpected completion %+v", done)
	}

	// A failing notifier never turns a stage failure into something else.
	media.failAt = media.written + 5
	_, err = svc.Render(context.Background(), Request{VideoPath: sourceVideo(t, cfg), ID: "second"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if len(notifier.failed) != 1 || notifier.failed[0] != "second@"+jobs.StageRender {
		t.Fatalf("unexpected failure notifications %v", notifier.failed)
	}
}
