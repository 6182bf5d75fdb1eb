// Package ffmpeg streams video frames through ffmpeg subprocesses.
//
// Decoder reads raw RGBA frames from an ffmpeg child process's stdout and
// Encoder writes them to another child's stdin, which encodes the video and
// remuxes audio from the source file. ExtractAudio produces the mono 16 kHz
// WAV that speech recognition consumes. Argument builders are exported so
// command lines can be inspected without running ffmpeg.
package ffmpeg
