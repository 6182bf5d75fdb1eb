// Package language normalizes user-supplied language identifiers.
//
// Target languages arrive as ISO 639 codes, BCP 47 tags, or English names
// depending on the caller. Everything funnels through golang.org/x/text so the
// translator, recognizer, and job ledger agree on one canonical spelling.
package language
