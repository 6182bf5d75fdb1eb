package workflow

import (
	"context"
	"fmt"

	"captioner/internal/config"
	"captioner/internal/media/ffmpeg"
	"captioner/internal/media/ffprobe"
	"captioner/internal/render"
	"captioner/internal/services"
)

// FrameReader is a frame source that owns a process or file.
type FrameReader interface {
	render.FrameSource
	Close() error
}

// Media is the codec boundary of a render.
type Media interface {
	Probe(ctx context.Context, path string) (ffprobe.VideoInfo, error)
	ExtractAudio(ctx context.Context, source, output string) error
	OpenSource(ctx context.Context, path string, info ffprobe.VideoInfo) (FrameReader, error)
	// OpenSink starts an encoder for output that re-attaches source's audio.
	OpenSink(ctx context.Context, source, output string, info ffprobe.VideoInfo) (render.FrameSink, error)
}

// FFmpegMedia implements Media with the ffmpeg and ffprobe binaries.
type FFmpegMedia struct {
	ffmpegBinary  string
	ffprobeBinary string
	encode        ffmpeg.EncodeOptions
}

// NewFFmpegMedia reads binaries and encoder settings from cfg.
func NewFFmpegMedia(cfg *config.Config) *FFmpegMedia {
	return &FFmpegMedia{
		ffmpegBinary:  cfg.FFmpegBinary(),
		ffprobeBinary: cfg.FFprobeBinary(),
		encode: ffmpeg.EncodeOptions{
			VideoCodec:  cfg.Render.VideoCodec,
			AudioCodec:  cfg.Render.AudioCodec,
			PixelFormat: cfg.Render.PixelFormat,
			Preset:      cfg.Render.Preset,
			CRF:         cfg.Render.CRF,
		},
	}
}

func (m *FFmpegMedia) Probe(ctx context.Context, path string) (ffprobe.VideoInfo, error) {
	result, err := ffprobe.Inspect(ctx, m.ffprobeBinary, path)
	if err != nil {
		return ffprobe.VideoInfo{}, services.Wrap(services.ErrExternalTool, "probe", "ffprobe", path, err)
	}
	info, err := result.VideoInfo()
	if err != nil {
		return ffprobe.VideoInfo{}, services.Wrap(services.ErrValidation, "probe", "video stream", path, err)
	}
	return info, nil
}

func (m *FFmpegMedia) ExtractAudio(ctx context.Context, source, output string) error {
	if err := ffmpeg.ExtractAudio(ctx, m.ffmpegBinary, source, output); err != nil {
		return services.Wrap(services.ErrExternalTool, "extract_audio", "ffmpeg", "", err)
	}
	return nil
}

func (m *FFmpegMedia) OpenSource(ctx context.Context, path string, info ffprobe.VideoInfo) (FrameReader, error) {
	decoder, err := ffmpeg.NewDecoder(ctx, m.ffmpegBinary, path, info.Width, info.Height, info.Rate)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "render", "start decoder", "", err)
	}
	return decoder, nil
}

func (m *FFmpegMedia) OpenSink(ctx context.Context, source, output string, info ffprobe.VideoInfo) (render.FrameSink, error) {
	rate := info.Rate
	if rate == "" {
		rate = fmt.Sprintf("%g", info.FPS)
	}
	encoder, err := ffmpeg.NewEncoder(ctx, m.ffmpegBinary, source, output, info.Width, info.Height, rate, m.encode)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "render", "start encoder", "", err)
	}
	return encoder, nil
}
