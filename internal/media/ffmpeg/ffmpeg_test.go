package ffmpeg

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestDecodeArgs(t *testing.T) {
	got := strings.Join(DecodeArgs("in.mp4", "30000/1001"), " ")
	for _, want := range []string{"-i in.mp4", "-map 0:v:0", "-fps_mode cfr -r 30000/1001", "-f rawvideo -pix_fmt rgba pipe:1"} {
		if !strings.Contains(got, want) {
			t.Fatalf("decode args %q missing %q", got, want)
		}
	}
	if strings.Contains(strings.Join(DecodeArgs("in.mp4", ""), " "), "-r") {
		t.Fatal("rate flag should be omitted when rate is empty")
	}
}

func TestEncodeArgs(t *testing.T) {
	args := EncodeArgs("in.mp4", "out.mp4", 1280, 720, "25/1", EncodeOptions{Preset: "fast", CRF: 18})
	got := strings.Join(args, " ")
	for _, want := range []string{
		"-f rawvideo -pix_fmt rgba -s 1280x720 -r 25/1 -i pipe:0",
		"-i in.mp4",
		"-map 0:v:0 -map 1:a:0?",
		"-c:v libx264 -preset fast -crf 18",
		"-pix_fmt yuv420p -c:a aac",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("encode args %q missing %q", got, want)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output must be last, got %q", args[len(args)-1])
	}
}

func TestExtractAudioArgs(t *testing.T) {
	got := strings.Join(ExtractAudioArgs("in.mp4", "a.wav"), " ")
	if !strings.Contains(got, "-vn -ac 1 -ar 16000 -c:a pcm_s16le a.wav") {
		t.Fatalf("unexpected args %q", got)
	}
}

func TestDecoderStreamsFrames(t *testing.T) {
	stub := writeStub(t, "printf 'abcdefghABCDEFGH'")
	dec, err := NewDecoder(context.Background(), stub, "in.mp4", 2, 1, "25/1")
	if err != nil {
		t.Fatalf("NewDecoder returned error: %v", err)
	}
	var frames []string
	for {
		frame, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		frames = append(frames, string(frame.Pix))
	}
	if len(frames) != 2 || frames[0] != "abcdefgh" || frames[1] != "ABCDEFGH" {
		t.Fatalf("unexpected frames %q", frames)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestDecoderReportsTruncatedFrame(t *testing.T) {
	stub := writeStub(t, "printf 'abcdefghABC'")
	dec, err := NewDecoder(context.Background(), stub, "in.mp4", 2, 1, "")
	if err != nil {
		t.Fatalf("NewDecoder returned error: %v", err)
	}
	if _, err := dec.Next(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := dec.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected truncation error, got %v", err)
	}
}

func TestDecoderSurfacesProcessFailure(t *testing.T) {
	stub := writeStub(t, "echo 'no such file' >&2; exit 1")
	dec, err := NewDecoder(context.Background(), stub, "missing.mp4", 2, 2, "")
	if err != nil {
		t.Fatalf("NewDecoder returned error: %v", err)
	}
	_, err = dec.Next()
	if err == nil || errors.Is(err, io.EOF) || !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("expected process error with stderr, got %v", err)
	}
}

func TestEncoderWritesFrames(t *testing.T) {
	stub := writeStub(t, `for last; do :; done; cat > "$last"`)
	out := filepath.Join(t.TempDir(), "out.raw")
	enc, err := NewEncoder(context.Background(), stub, "in.mp4", out, 2, 1, "25/1", EncodeOptions{})
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}
	frame := image.NewRGBA(image.Rect(0, 0, 2, 1))
	copy(frame.Pix, "abcdefgh")
	if err := enc.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}

	// A sub-image has a wider stride than its width.
	wide := image.NewRGBA(image.Rect(0, 0, 4, 1))
	copy(wide.Pix, "xxxxABCDEFGHyyyy")
	if err := enc.WriteFrame(wide.SubImage(image.Rect(1, 0, 3, 1)).(*image.RGBA)); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}
	if err := enc.WriteFrame(image.NewRGBA(image.Rect(0, 0, 3, 1))); err == nil {
		t.Fatal("expected size mismatch error")
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "abcdefghABCDEFGH" {
		t.Fatalf("unexpected encoder input %q", data)
	}
}

func TestExtractAudio(t *testing.T) {
	stub := writeStub(t, `for last; do :; done; echo "$@" > "$last"`)
	out := filepath.Join(t.TempDir(), "audio.wav")
	if err := ExtractAudio(context.Background(), stub, "in.mp4", out); err != nil {
		t.Fatalf("ExtractAudio returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "-ar 16000") {
		t.Fatalf("unexpected invocation %q", data)
	}

	failing := writeStub(t, "echo 'Output file does not contain any stream' >&2; exit 1")
	err = ExtractAudio(context.Background(), failing, "in.mp4", out)
	if err == nil || !strings.Contains(err.Error(), "does not contain any stream") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestTailBufferKeepsEnd(t *testing.T) {
	buf := &tailBuffer{limit: 4}
	_, _ = buf.Write([]byte("abc"))
	_, _ = buf.Write([]byte("defg"))
	if got := buf.String(); got != "defg" {
		t.Fatalf("tail = %q", got)
	}
}
