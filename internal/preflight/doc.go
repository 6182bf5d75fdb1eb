// Package preflight provides readiness checks for the external tools,
// services, and filesystem paths that captioner depends on.
//
// These checks run in two contexts:
//   - The workflow calls RunAll before each render. If any check fails the
//     request is rejected before hours of transcription are spent on it.
//   - The CLI "captioner doctor" command prints every check, including the
//     binary inventory from CheckSystemDeps.
//
// Each check is gated by its config selection; a "none" translation provider
// or a local storage backend skips the corresponding network check.
package preflight
