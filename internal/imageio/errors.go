package imageio

import "errors"

var (
	// ErrNotFound indicates the image path does not exist.
	ErrNotFound = errors.New("image does not exist")

	// ErrIsADirectory indicates a directory was given without directory
	// recursion enabled.
	ErrIsADirectory = errors.New("path is a directory and recursion is not enabled")

	// ErrUnsupportedFormat indicates a recognized container extension whose
	// decoder support is not available.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrFoundImageFile indicates a directory scan found a disk image file
	// among its children; the input is ambiguous and is refused rather than
	// guessed at.
	ErrFoundImageFile = errors.New("directory contains a disk image file")

	// ErrSeek indicates a failed seek against a segment handle.
	ErrSeek = errors.New("seek failed")

	// ErrRead indicates an I/O failure distinct from end-of-data. During
	// sequential iteration this is fatal: the address space is presumed
	// corrupted beyond the failing offset.
	ErrRead = errors.New("read failed")

	// ErrEndOfImage is the expected terminal condition of page iteration,
	// distinct from a short final page. It is not an error the caller
	// should alarm on.
	ErrEndOfImage = errors.New("end of image")
)
