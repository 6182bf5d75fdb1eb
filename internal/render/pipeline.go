package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"

	"captioner/internal/logging"
)

// FrameSource yields decoded frames in presentation order and returns io.EOF
// after the last one.
type FrameSource interface {
	Next() (*image.RGBA, error)
}

// FrameSink accepts frames in presentation order.
type FrameSink interface {
	WriteFrame(*image.RGBA) error
	Close() error
}

// Compositor draws the caption for timestamp t onto frame.
type Compositor interface {
	Composite(frame *image.RGBA, t float64) *image.RGBA
}

// Summary describes a completed run.
type Summary struct {
	Frames    int
	Captioned int
	FPS       float64
	Duration  float64
	Elapsed   time.Duration
}

// Pipeline composites frames between a source and a sink.
type Pipeline struct {
	compositor    Compositor
	logger        *slog.Logger
	progressEvery int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger attaches a logger for progress output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProgressEvery logs progress every n frames. Zero disables it.
func WithProgressEvery(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.progressEvery = n
		}
	}
}

// NewPipeline builds a pipeline around compositor.
func NewPipeline(compositor Compositor, opts ...Option) *Pipeline {
	p := &Pipeline{
		compositor:    compositor,
		logger:        logging.NewNop(),
		progressEvery: 250,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "render")
	return p
}

// Run composites every frame of src at t = i/fps and writes it to sink. The
// sink is closed on every path; on failure or cancellation its output is
// incomplete and the caller must discard it.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink FrameSink, fps float64) (summary Summary, err error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		_ = sink.Close()
		return Summary{}, fmt.Errorf("render: invalid frame rate %v", fps)
	}
	logger := logging.WithContext(ctx, p.logger)
	started := time.Now()
	summary.FPS = fps

	defer func() {
		closeErr := sink.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("render: finalize output: %w", closeErr)
		}
		summary.Elapsed = time.Since(started)
	}()

	for index := 0; ; index++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, ctxErr
		}
		frame, readErr := src.Next()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return summary, fmt.Errorf("render: read frame %d: %w", index, readErr)
		}
		t := float64(index) / fps
		out := p.compositor.Composite(frame, t)
		if out != frame {
			summary.Captioned++
		}
		if writeErr := sink.WriteFrame(out); writeErr != nil {
			return summary, fmt.Errorf("render: write frame %d: %w", index, writeErr)
		}
		summary.Frames++
		summary.Duration = float64(summary.Frames) / fps
		if p.progressEvery > 0 && summary.Frames%p.progressEvery == 0 {
			logger.Debug("render progress",
				logging.Int("frames", summary.Frames),
				logging.Float64("position_seconds", t),
			)
		}
	}
	logger.Info("render complete",
		logging.Int("frames", summary.Frames),
		logging.Int("captioned_frames", summary.Captioned),
		logging.Float64("duration_seconds", summary.Duration),
	)
	return summary, nil
}
