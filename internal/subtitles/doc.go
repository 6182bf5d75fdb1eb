// Package subtitles models timed caption tracks and their SubRip encoding.
//
// A Track is built once from recognition segments, optionally rewritten by the
// translation adapter, persisted as an intermediate .srt file, and read back
// for rendering. Cue order is preserved exactly as produced and active-cue
// lookup picks the first cue whose closed interval contains the requested
// time, so overlapping cues resolve deterministically.
package subtitles
