// Package timestamp converts between seconds and SubRip timestamps
// (HH:MM:SS,mmm).
//
// Seconds pass through their shortest decimal representation before the
// millisecond component is truncated, so a recognizer value such as 1.2
// renders as 00:00:01,200 instead of the binary-float 00:00:01,199.
package timestamp
