// Package content manages the site's content bundles end to end.
//
// A bundle is a tar.gz of prerendered pages and assets published to S3 and
// addressed by its SHA-256 digest; an SSM parameter points at the current
// release. The pieces:
//
//   - [Loader] downloads a bundle, checks its digest (and, when configured,
//     its KMS signature) and extracts it to an in-memory filesystem
//   - [Manager] holds the active [Snapshot] behind an atomic pointer so
//     request handlers read it without locks
//   - [Watcher] polls SSM and hot-swaps validated bundles into the Manager
//
// Extraction enforces hard limits on compressed size, per-file size, and
// total extracted size, and rejects any path that could escape the bundle.
package content
