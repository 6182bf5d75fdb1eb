// Package workflow runs one captioning request end to end.
//
// Service.Render takes a source video and a target language through a fixed
// sequence of stages: audio extraction, WhisperX transcription, per-cue
// translation, frame-by-frame caption burn-in, publishing to the artifact
// store, and issuing a time-limited download token. Stages run strictly in
// order because each consumes the file the previous one wrote; the
// translator is the only stage that fans out.
//
// Every intermediate file is named after the request id
// ("<id>-audio.wav", "<id>-subtitles.srt", "<id>-Translated_subtitles.srt",
// "<id>-output_video.mp4") and lives in the staging directory until the
// output is published. A per-id lock file keeps two runs from sharing those
// names. When any stage fails, or the context is cancelled, the run's files
// are removed and the jobs ledger records the failure; callers see either a
// complete Result or a single error.
//
// Collaborators (Recognizer, Media, translation.Engine, artifacts.Store) are
// injected through options so tests can replace the external tools.
package workflow
