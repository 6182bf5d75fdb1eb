// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes streams and container metadata. VideoInfo
// reduces that to the geometry and timing the caption renderer needs: the
// first video stream's size, its r_frame_rate as an exact rational, and the
// container duration.
package ffprobe
