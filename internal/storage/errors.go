package storage

import "errors"

var (
	// ErrEmptyFilename is returned when a file is uploaded without a usable name.
	ErrEmptyFilename = errors.New("filename is empty")

	// ErrExtensionNotAllowed is returned when a file's extension is not on the allow list.
	ErrExtensionNotAllowed = errors.New("file extension is not allowed")

	// ErrFileTooLarge is returned when an upload exceeds the per-file size cap.
	ErrFileTooLarge = errors.New("file exceeds the maximum upload size")

	// ErrQuotaExceeded is returned when an upload would push a user over their storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrPathOutsideRoot is returned when a requested path resolves outside the managed directory.
	ErrPathOutsideRoot = errors.New("path escapes the data directory")
)
