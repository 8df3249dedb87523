// Package storage handles all on-disk file management for the application.
//
// Two directory trees are managed independently:
//
// Manager owns the upload root. Every user gets their own directory
// (user_<id>) with fixed subdirectories for presentations, documents,
// annotation sidecars and temporary files. Stored names are prefixed with a
// random hex ID so concurrent uploads of the same file never collide, and
// all writes go through a hidden temp file followed by a rename, so readers
// never observe partially written uploads. The manager also enforces the
// per-file size cap and the per-user quota, measured by walking the user's
// directory.
//
// Datastore owns the reference dataset root used by the ingredient module.
// It accepts caller-supplied relative paths, which makes safe resolution the
// central concern: absolute paths and any traversal outside the root are
// rejected. Overwrites keep a timestamped .bak copy of the previous file and
// restore it when a write fails. Directories can be streamed as zip archives
// for bulk download.
package storage
