// Package jobs records render runs in a SQLite ledger.
//
// Each render gets one row keyed by its request id. The row tracks the
// current stage, the intermediate files written under the staging
// directory, translation statistics, and the error classification when a
// run fails, so `captioner jobs` can report on past and in-flight work.
package jobs
