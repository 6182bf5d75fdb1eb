// Package artifacts publishes finished videos and resolves them for download.
//
// Two backends implement Store: Local keeps files in the configured output
// directory, and Minio uploads them to an S3-compatible bucket and hands out
// presigned URLs. Names are flat; they never contain path separators.
package artifacts
