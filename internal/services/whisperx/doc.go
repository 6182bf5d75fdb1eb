// Package whisperx runs WhisperX speech recognition through uvx.
//
// Transcribe feeds a mono 16 kHz WAV to WhisperX, reads the JSON transcript
// it writes, and returns timed segments ready to become a subtitle track.
// Segment times are decoded as exact decimals so millisecond boundaries do
// not drift through binary floating point.
//
// Configuration options (model, CUDA, VAD method, language) are passed via
// Config.
package whisperx
