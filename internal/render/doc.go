// Package render drives frame-by-frame caption burn-in.
//
// A Pipeline pulls frames from a FrameSource, composites the caption active
// at each frame's presentation time, and pushes the result to a FrameSink in
// the same order. Frame count and rate are preserved, so the output keeps
// the source's duration.
package render
