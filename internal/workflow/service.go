package workflow

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"captioner/internal/access"
	"captioner/internal/artifacts"
	"captioner/internal/config"
	"captioner/internal/jobs"
	"captioner/internal/logging"
	"captioner/internal/notifications"
	"captioner/internal/services/whisperx"
	"captioner/internal/subtitles"
	"captioner/internal/translation"
)

// Recognizer turns an extracted audio file into timed speech segments.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) ([]subtitles.Segment, error)
}

// Service coordinates a render request across its collaborators.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	ledger     *jobs.Store
	recognizer Recognizer
	engine     translation.Engine
	media      Media
	store      artifacts.Store
	tokens     *access.Service
	notifier   notifications.Service
	newID      func() string
	preflight  bool
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobs records every run in the jobs ledger.
func WithJobs(store *jobs.Store) Option {
	return func(s *Service) { s.ledger = store }
}

// WithRecognizer replaces the WhisperX recognizer.
func WithRecognizer(r Recognizer) Option {
	return func(s *Service) { s.recognizer = r }
}

// WithEngine replaces the configured translation engine.
func WithEngine(engine translation.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// WithMedia replaces the ffmpeg/ffprobe media boundary.
func WithMedia(media Media) Option {
	return func(s *Service) { s.media = media }
}

// WithArtifactStore replaces the configured artifact store.
func WithArtifactStore(store artifacts.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithTokens replaces the access token service.
func WithTokens(tokens *access.Service) Option {
	return func(s *Service) { s.tokens = tokens }
}

// WithNotifier replaces the configured ntfy notifier.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) { s.notifier = notifier }
}

// WithIDGenerator overrides how request ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithPreflight toggles the binary and filesystem checks run before each
// request. They are on by default.
func WithPreflight(enabled bool) Option {
	return func(s *Service) { s.preflight = enabled }
}

// NewService builds a Service from cfg. Collaborators not supplied through
// options are constructed from the configuration.
func NewService(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{
		cfg:       cfg,
		logger:    logging.NewNop(),
		newID:     uuid.NewString,
		preflight: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "workflow")

	if s.recognizer == nil {
		s.recognizer = whisperx.NewFromConfig(cfg, s.logger)
	}
	if s.engine == nil {
		engine, err := translation.NewEngine(cfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.engine = engine
	}
	if s.media == nil {
		s.media = NewFFmpegMedia(cfg)
	}
	if s.store == nil {
		store, err := artifacts.New(cfg, s.logger)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	if s.notifier == nil {
		s.notifier = notifications.NewService(cfg)
	}
	if s.tokens == nil {
		tokens, err := access.NewFromConfig(cfg, s.store, s.logger)
		if err != nil {
			return nil, err
		}
		s.tokens = tokens
	}
	return s, nil
}

// Tokens exposes the token service so callers can redeem links issued by
// Render.
func (s *Service) Tokens() *access.Service {
	return s.tokens
}
