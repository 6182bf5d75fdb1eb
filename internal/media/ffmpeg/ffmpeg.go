package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strings"
	"sync"
)

const stderrLimit = 4096

// Decoder yields frames from a running ffmpeg process.
type Decoder struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	reader    *bufio.Reader
	stderr    *tailBuffer
	width     int
	height    int
	frameSize int
	closeOnce sync.Once
	closeErr  error
}

// NewDecoder starts ffmpeg decoding source at width x height. Cancelling ctx
// kills the process.
func NewDecoder(ctx context.Context, binary, source string, width, height int, rate string) (*Decoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ffmpeg decode: invalid frame size %dx%d", width, height)
	}
	cmd := exec.CommandContext(ctx, binaryOrDefault(binary), DecodeArgs(source, rate)...)
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode: start: %w", err)
	}
	return &Decoder{
		cmd:       cmd,
		stdout:    stdout,
		reader:    bufio.NewReaderSize(stdout, width*height*4),
		stderr:    stderr,
		width:     width,
		height:    height,
		frameSize: width * height * 4,
	}, nil
}

// Next returns the next frame, or io.EOF once the stream ends cleanly.
func (d *Decoder) Next() (*image.RGBA, error) {
	frame := image.NewRGBA(image.Rect(0, 0, d.width, d.height))
	n, err := io.ReadFull(d.reader, frame.Pix)
	switch {
	case err == nil:
		return frame, nil
	case errors.Is(err, io.EOF) && n == 0:
		if waitErr := d.Close(); waitErr != nil {
			return nil, waitErr
		}
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		_ = d.Close()
		return nil, fmt.Errorf("ffmpeg decode: truncated frame (%d of %d bytes)", n, d.frameSize)
	default:
		_ = d.Close()
		return nil, fmt.Errorf("ffmpeg decode: read frame: %w", err)
	}
}

// Close stops reading and waits for ffmpeg to exit.
func (d *Decoder) Close() error {
	d.closeOnce.Do(func() {
		_ = d.stdout.Close()
		if err := d.cmd.Wait(); err != nil {
			d.closeErr = processError("ffmpeg decode", err, d.stderr)
		}
	})
	return d.closeErr
}

// Encoder feeds frames to a running ffmpeg process.
type Encoder struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	writer    *bufio.Writer
	stderr    *tailBuffer
	width     int
	height    int
	closeOnce sync.Once
	closeErr  error
}

// NewEncoder starts ffmpeg writing output. Audio is taken from source when
// present. Cancelling ctx kills the process.
func NewEncoder(ctx context.Context, binary, source, output string, width, height int, rate string, opts EncodeOptions) (*Encoder, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ffmpeg encode: invalid frame size %dx%d", width, height)
	}
	if strings.TrimSpace(rate) == "" {
		return nil, errors.New("ffmpeg encode: frame rate required")
	}
	cmd := exec.CommandContext(ctx, binaryOrDefault(binary), EncodeArgs(source, output, width, height, rate, opts)...)
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg encode: start: %w", err)
	}
	return &Encoder{
		cmd:    cmd,
		stdin:  stdin,
		writer: bufio.NewWriterSize(stdin, width*height*4),
		stderr: stderr,
		width:  width,
		height: height,
	}, nil
}

// WriteFrame writes one frame. Frames must match the encoder's size.
func (e *Encoder) WriteFrame(frame *image.RGBA) error {
	bounds := frame.Bounds()
	if bounds.Dx() != e.width || bounds.Dy() != e.height {
		return fmt.Errorf("ffmpeg encode: frame is %dx%d, want %dx%d", bounds.Dx(), bounds.Dy(), e.width, e.height)
	}
	rowBytes := e.width * 4
	if frame.Stride == rowBytes && len(frame.Pix) == rowBytes*e.height {
		if _, err := e.writer.Write(frame.Pix); err != nil {
			return processError("ffmpeg encode", err, e.stderr)
		}
		return nil
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		offset := frame.PixOffset(bounds.Min.X, y)
		if _, err := e.writer.Write(frame.Pix[offset : offset+rowBytes]); err != nil {
			return processError("ffmpeg encode", err, e.stderr)
		}
	}
	return nil
}

// Close flushes pending frames, closes stdin and waits for ffmpeg to finish
// the container.
func (e *Encoder) Close() error {
	e.closeOnce.Do(func() {
		flushErr := e.writer.Flush()
		_ = e.stdin.Close()
		waitErr := e.cmd.Wait()
		switch {
		case waitErr != nil:
			e.closeErr = processError("ffmpeg encode", waitErr, e.stderr)
		case flushErr != nil:
			e.closeErr = processError("ffmpeg encode", flushErr, e.stderr)
		}
	})
	return e.closeErr
}

// ExtractAudio writes source's audio as a mono 16 kHz WAV at output.
func ExtractAudio(ctx context.Context, binary, source, output string) error {
	cmd := exec.CommandContext(ctx, binaryOrDefault(binary), ExtractAudioArgs(source, output)...)
	stderr := &tailBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return processError("ffmpeg extract audio", err, stderr)
	}
	return nil
}

func binaryOrDefault(binary string) string {
	if binary = strings.TrimSpace(binary); binary != "" {
		return binary
	}
	return "ffmpeg"
}

func processError(op string, err error, stderr *tailBuffer) error {
	if detail := stderr.String(); detail != "" {
		return fmt.Errorf("%s: %w: %s", op, err, detail)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(t.buf.String())
}
