package rgssad

import "errors"

// Sentinel errors returned by this package. Wrapped with
// golang.org/x/xerrors.Errorf("...: %w", ...) at each layer boundary, so
// callers should compare with errors.Is rather than direct equality.
var (
	// ErrUnsupportedFormat is returned when the archive's magic/version
	// bytes don't match a known RGSSAD/Fux2Pack layout.
	ErrUnsupportedFormat = errors.New("rgssad: unsupported archive format")

	// ErrTruncated is returned when the parser hits end-of-file mid
	// record, or a declared entry size extends past the end of the file.
	ErrTruncated = errors.New("rgssad: archive truncated")

	// ErrInvalidUTF8 is returned when a filename fails to decode under
	// the configured filename decoder (strict UTF-8 by default).
	ErrInvalidUTF8 = errors.New("rgssad: filename is not valid UTF-8")

	// ErrNotFound is returned when an inode id is out of range or a
	// child name is absent from a directory.
	ErrNotFound = errors.New("rgssad: not found")

	// ErrNotAFile is not returned by this package itself. The rgssadfs
	// commands wrap it when a listing operation, which needs a directory
	// inode, is given a file inode.
	ErrNotAFile = errors.New("rgssad: not a file")

	// ErrIsADirectory is returned by OpenEntry when the inode is a
	// directory.
	ErrIsADirectory = errors.New("rgssad: is a directory")

	// ErrInvalidArgument is returned by Stream.Seek for a negative
	// resolved position.
	ErrInvalidArgument = errors.New("rgssad: invalid argument")
)
