package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"captioner/internal/config"
	langpkg "captioner/internal/language"
	"captioner/internal/logging"
	"captioner/internal/services"
	"captioner/internal/subtitles"
)

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner CommandRunner
	logger        *slog.Logger
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.UVXBinary) == "" {
		cfg.UVXBinary = UVXCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{cfg: cfg, logger: logging.NewComponentLogger(logger, "whisperx")}
}

// NewFromConfig maps the recognition section of cfg onto a Service.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Service {
	return NewService(Config{
		Model:       cfg.Recognition.Model,
		CUDAEnabled: cfg.Recognition.CUDAEnabled,
		VADMethod:   cfg.Recognition.VADMethod,
		HFToken:     cfg.Recognition.HuggingFace,
		Language:    cfg.Recognition.SourceLanguage,
		Timeout:     cfg.RecognitionTimeout(),
		UVXBinary:   cfg.UVXBinary(),
	}, logger)
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, tail(strings.TrimSpace(string(output)), 2048))
	}
	return nil
}

// Transcribe recognizes speech in the WAV at audioPath and returns one
// segment per utterance in transcript order. WhisperX writes its JSON next
// to the audio file.
func (s *Service) Transcribe(ctx context.Context, audioPath string) ([]subtitles.Segment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcribe", "whisperx", "audio path required", nil)
	}
	outputDir := filepath.Dir(audioPath)
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("transcription started",
		logging.String("audio", audioPath),
		logging.String("model", s.Model()),
		logging.Bool("cuda", s.cfg.CUDAEnabled),
	)
	if err := s.run(ctx, s.cfg.UVXBinary, s.buildArgs(audioPath, outputDir)...); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, services.Wrap(services.ErrTimeout, "transcribe", "whisperx", "transcription timed out", err)
		}
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "whisperx", "", err)
	}

	jsonPath := filepath.Join(outputDir, strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))+".json")
	segments, dropped, err := LoadSegments(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcribe", "read transcript", jsonPath, err)
	}
	if dropped > 0 {
		logging.WarnWithContext(logger, "dropped transcript segments with unusable timing", "transcript_segments_dropped",
			logging.Int("dropped", dropped),
			logging.String(logging.FieldErrorHint, "inspect the WhisperX JSON for zero-length segments"),
			logging.String(logging.FieldImpact, "speech in those segments is not captioned"),
		)
	}
	logger.Info("transcription complete", logging.Int("segments", len(segments)))
	return segments, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

type payload struct {
	Segments []segment `json:"segments"`
}

type segment struct {
	Text  string              `json:"text"`
	Start decimal.NullDecimal `json:"start"`
	End   decimal.NullDecimal `json:"end"`
}

// LoadSegments reads a WhisperX JSON transcript. Segments without text are
// skipped silently; segments whose timing is missing or violates
// 0 <= start < end are skipped and counted in dropped.
func LoadSegments(jsonPath string) (segments []subtitles.Segment, dropped int, err error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, 0, err
	}
	return DecodeSegments(data)
}

// DecodeSegments is LoadSegments over an in-memory payload.
func DecodeSegments(data []byte) ([]subtitles.Segment, int, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, 0, fmt.Errorf("parse whisperx json: %w", err)
	}
	segments := make([]subtitles.Segment, 0, len(p.Segments))
	dropped := 0
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if !seg.Start.Valid || !seg.End.Valid || seg.Start.Decimal.IsNegative() || !seg.End.Decimal.GreaterThan(seg.Start.Decimal) {
			dropped++
			continue
		}
		segments = append(segments, subtitles.Segment{
			Start: seg.Start.Decimal.InexactFloat64(),
			End:   seg.End.Decimal.InexactFloat64(),
			Text:  text,
		})
	}
	return segments, dropped, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
