// Package main hosts the captioner CLI entrypoint and command graph.
//
// The Cobra-based command tree runs captioning requests, issues and redeems
// download tokens, inspects and translates SubRip files, lists the jobs
// ledger, and checks the host for the external tools a render needs. It
// centralizes configuration resolution and structured logging setup so
// subcommands can focus on presentation.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
