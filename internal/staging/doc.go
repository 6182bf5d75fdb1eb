// Package staging owns the per-request file layout in the staging directory
// and sweeps files left behind by runs that never cleaned up after
// themselves (a killed process, a host reboot).
//
// Every request writes "<id>-audio.wav", "<id>-subtitles.srt",
// "<id>-Translated_subtitles.srt" and "<id>-output_video.mp4", guarded by an
// "<id>.lock" flock held for the life of the run.
package staging
