package ffmpeg

import (
	"strconv"
	"strings"
)

// EncodeOptions selects codecs and quality for the captioned output.
type EncodeOptions struct {
	VideoCodec  string
	AudioCodec  string
	PixelFormat string
	Preset      string
	CRF         int
}

// DefaultEncodeOptions matches the render defaults.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec:  "libx264",
		AudioCodec:  "aac",
		PixelFormat: "yuv420p",
		Preset:      "medium",
		CRF:         20,
	}
}

func (o EncodeOptions) withDefaults() EncodeOptions {
	def := DefaultEncodeOptions()
	if strings.TrimSpace(o.VideoCodec) == "" {
		o.VideoCodec = def.VideoCodec
	}
	if strings.TrimSpace(o.AudioCodec) == "" {
		o.AudioCodec = def.AudioCodec
	}
	if strings.TrimSpace(o.PixelFormat) == "" {
		o.PixelFormat = def.PixelFormat
	}
	return o
}

// DecodeArgs streams the first video stream of source as RGBA rawvideo on
// stdout at a constant rate, so frame i is presented at i/rate.
//
// Rotated sources are rotated upright on decode, so frames have the
// displayed size reported by ffprobe's VideoInfo.
func DecodeArgs(source, rate string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", source,
		"-map", "0:v:0",
		"-an", "-sn",
	}
	if rate = strings.TrimSpace(rate); rate != "" {
		args = append(args, "-fps_mode", "cfr", "-r", rate)
	}
	return append(args, "-f", "rawvideo", "-pix_fmt", "rgba", "pipe:1")
}

// EncodeArgs reads RGBA rawvideo from stdin and writes output, copying the
// first audio stream of source when it has one.
func EncodeArgs(source, output string, width, height int, rate string, opts EncodeOptions) []string {
	opts = opts.withDefaults()
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(width) + "x" + strconv.Itoa(height),
		"-r", rate,
		"-i", "pipe:0",
		"-i", source,
		"-map", "0:v:0",
		"-map", "1:a:0?",
		"-c:v", opts.VideoCodec,
	}
	if preset := strings.TrimSpace(opts.Preset); preset != "" {
		args = append(args, "-preset", preset)
	}
	if opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(opts.CRF))
	}
	args = append(args,
		"-pix_fmt", opts.PixelFormat,
		"-c:a", opts.AudioCodec,
		"-movflags", "+faststart",
		output,
	)
	return args
}

// ExtractAudioArgs writes a mono 16 kHz PCM WAV of source's audio.
func ExtractAudioArgs(source, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", source,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		output,
	}
}
