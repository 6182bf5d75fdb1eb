package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	BitRate      string `json:"bit_rate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	PixelFormat  string `json:"pix_fmt"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	NBFrames     string `json:"nb_frames"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`

	Tags         map[string]string `json:"tags"`
	SideDataList []SideData        `json:"side_data_list"`
}

// SideData is one entry of a stream's side_data_list. Only the display
// matrix rotation is decoded.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Rotation returns the display rotation in degrees normalized to 0, 90, 180
// or 270. The display matrix wins over the legacy rotate tag.
func (s Stream) Rotation() int {
	for _, side := range s.SideDataList {
		if strings.EqualFold(side.SideDataType, "Display Matrix") || side.Rotation != 0 {
			return normalizeRotation(side.Rotation)
		}
	}
	if tag := strings.TrimSpace(s.Tags["rotate"]); tag != "" {
		if deg, err := strconv.ParseFloat(tag, 64); err == nil {
			return normalizeRotation(deg)
		}
	}
	return 0
}

// normalizeRotation snaps deg to the nearest quarter turn in [0, 360).
func normalizeRotation(deg float64) int {
	quarter := int(math.Round(deg/90)) % 4
	if quarter < 0 {
		quarter += 4
	}
	return quarter * 90
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
	FormatName string `json:"format_name"`
}

// VideoInfo is the geometry and timing of the primary video stream. Width
// and Height are the displayed size: ffmpeg rotates frames on decode, so a
// stream rotated by a quarter turn has its coded dimensions swapped.
type VideoInfo struct {
	Width    int
	Height   int
	Rotation int
	FPS      float64
	Rate     string // r_frame_rate verbatim, e.g. "30000/1001"
	Duration float64
	HasAudio bool
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}
	return Decode(output)
}

// Decode parses an ffprobe JSON payload.
func Decode(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// VideoStreamCount returns the number of video streams discovered.
func (r Result) VideoStreamCount() int {
	return r.countStreams("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countStreams("audio")
}

func (r Result) countStreams(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// VideoInfo describes the first video stream. It fails when the file has no
// video stream or the stream lacks usable dimensions or frame rate.
func (r Result) VideoInfo() (VideoInfo, error) {
	for _, stream := range r.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return VideoInfo{}, fmt.Errorf("video stream %d has invalid size %dx%d", stream.Index, stream.Width, stream.Height)
		}
		rate := stream.RFrameRate
		fps, err := ParseRate(rate)
		if err != nil {
			rate = stream.AvgFrameRate
			if fps, err = ParseRate(rate); err != nil {
				return VideoInfo{}, fmt.Errorf("video stream %d: %w", stream.Index, err)
			}
		}
		duration := r.DurationSeconds()
		if math.IsNaN(duration) || duration <= 0 {
			duration = parseFloat(stream.Duration)
		}
		if math.IsNaN(duration) || duration < 0 {
			duration = 0
		}
		width, height := stream.Width, stream.Height
		rotation := stream.Rotation()
		if rotation == 90 || rotation == 270 {
			width, height = height, width
		}
		return VideoInfo{
			Width:    width,
			Height:   height,
			Rotation: rotation,
			FPS:      fps,
			Rate:     strings.TrimSpace(rate),
			Duration: duration,
			HasAudio: r.AudioStreamCount() > 0,
		}, nil
	}
	return VideoInfo{}, errors.New("no video stream found")
}

// ParseRate converts an ffprobe rational ("30000/1001") or plain number to
// frames per second.
func ParseRate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty frame rate")
	}
	num, den, found := strings.Cut(value, "/")
	numerator, err := decimal.NewFromString(strings.TrimSpace(num))
	if err != nil {
		return 0, fmt.Errorf("invalid frame rate %q", value)
	}
	rate := numerator
	if found {
		denominator, err := decimal.NewFromString(strings.TrimSpace(den))
		if err != nil || denominator.IsZero() {
			return 0, fmt.Errorf("invalid frame rate %q", value)
		}
		rate = numerator.DivRound(denominator, 9)
	}
	if !rate.IsPositive() {
		return 0, fmt.Errorf("invalid frame rate %q", value)
	}
	return rate.InexactFloat64(), nil
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
