package unpack

import "errors"

var (
	// ErrUnsupportedArchive is returned when a file matches none of the
	// recognized archive kinds.
	ErrUnsupportedArchive = errors.New("archive type not supported")

	// ErrMaxFilesExceeded is returned when an archive contains more entries
	// than the configured maximum.
	ErrMaxFilesExceeded = errors.New("maximum files exceeded")

	// ErrMaxExtractionSizeExceeded is returned when the decompressed content
	// exceeds the configured maximum.
	ErrMaxExtractionSizeExceeded = errors.New("maximum extraction size exceeded")

	// ErrMaxInputSizeExceeded is returned when the archive itself exceeds the
	// configured maximum input size.
	ErrMaxInputSizeExceeded = errors.New("maximum input size exceeded")

	// ErrPathTraversal is returned when an entry name or symlink target would
	// escape the extraction destination.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrFileExists is returned when an entry collides with an existing file
	// and overwriting is not enabled.
	ErrFileExists = errors.New("file already exists")

	// ErrUnsupportedFile is returned when an archive contains an entry that
	// cannot be extracted, e.g., a FIFO or device node, or a symlink while
	// symlink extraction is denied.
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrNoTarPayload is returned when a gzip stream classified as tar.gz does
	// not contain a tar archive.
	ErrNoTarPayload = errors.New("gzip stream does not contain a tar archive")
)
