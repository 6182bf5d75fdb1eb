// Package translation rewrites subtitle cue text into a target language.
//
// An Engine performs the actual translation of one string. The Adapter walks a
// track, calls the engine once per cue under a bounded deadline, and keeps the
// original text whenever the engine fails, times out, or returns nothing.
// Failures are logged with event_type=translation_fallback and never reach
// the caller, so one bad cue cannot blank or skip the others.
//
// Engines:
//   - OpenAI: chat completions through github.com/openai/openai-go with
//     exponential backoff on 408/429/5xx and network timeouts
//   - Identity: returns its input, used when translation is disabled
package translation
