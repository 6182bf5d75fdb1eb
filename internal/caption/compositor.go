package caption

import (
	"image"
	"image/draw"

	"captioner/internal/subtitles"
)

// Compositor burns the active cue of a track into frames.
type Compositor struct {
	track  *subtitles.Track
	face   Face
	layout Layout
}

// NewCompositor binds a track, face, and layout. The track must not be
// mutated while frames are being composited.
func NewCompositor(track *subtitles.Track, face Face, layout Layout) *Compositor {
	return &Compositor{track: track, face: face, layout: layout}
}

// Layout returns the compositor's geometry.
func (c *Compositor) Layout() Layout {
	return c.layout
}

// Lines returns the laid-out caption for timestamp t on a frame of the given
// size, or nil when no cue is active.
func (c *Compositor) Lines(t float64, frameWidth, frameHeight int) []Line {
	if c.track == nil {
		return nil
	}
	cue, ok := c.track.ActiveCue(t)
	if !ok {
		return nil
	}
	return c.layout.Place(cue.Text, c.face.Measure, frameWidth, frameHeight)
}

// Composite returns frame with the caption active at t drawn on it. When no
// cue is active the input frame is returned as is. Otherwise the input is
// left untouched and a new frame is returned.
func (c *Compositor) Composite(frame *image.RGBA, t float64) *image.RGBA {
	if frame == nil {
		return nil
	}
	bounds := frame.Bounds()
	lines := c.Lines(t, bounds.Dx(), bounds.Dy())
	if len(lines) == 0 {
		return frame
	}
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)
	for _, line := range lines {
		c.face.Draw(out, bounds.Min.X+line.X, bounds.Min.Y+line.Y, line.Text)
	}
	return out
}
