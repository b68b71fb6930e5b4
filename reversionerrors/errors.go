// Package reversionerrors defines the error taxonomy shared across the
// repository, timeline, workdir and verify packages, so callers can check
// error kinds with errors.Contains instead of type assertions.
package reversionerrors

import "github.com/uplo-tech/errors"

var (
	// ErrIO wraps an underlying filesystem or OS failure.
	ErrIO = errors.New("I/O failure")

	// ErrIncompatibleRepository is returned when no installed provider
	// recognises the format marker at a path.
	ErrIncompatibleRepository = errors.New("no storage provider recognises this repository")

	// ErrInvalidRepository is returned when a provider recognises the
	// repository but it is unreadable.
	ErrInvalidRepository = errors.New("repository is corrupt or unreadable")

	// ErrUnsupportedFormat is returned for a known provider, unknown
	// format version.
	ErrUnsupportedFormat = errors.New("repository format version is not supported")

	// ErrAlreadyExists is returned when create is called against a path
	// that already holds a repository.
	ErrAlreadyExists = errors.New("repository already exists at this path")

	// ErrAlreadyAWorkDir is returned by WorkDirectory.Init when .versioning
	// already exists.
	ErrAlreadyAWorkDir = errors.New("directory is already a working directory")

	// ErrNotAWorkDir is returned by WorkDirectory.Open when .versioning is
	// absent.
	ErrNotAWorkDir = errors.New("directory is not a working directory")

	// ErrRecordAlreadyExists is returned when creating a Tag/Timeline whose
	// unique key collides with an existing record.
	ErrRecordAlreadyExists = errors.New("record with this key already exists")

	// ErrNoSuchFile is returned when a path passed to CreateSnapshot is
	// absent on disk.
	ErrNoSuchFile = errors.New("no such file")

	// ErrValueConvert is returned when a config converter rejects a raw
	// string value.
	ErrValueConvert = errors.New("invalid config value")

	// ErrCancelled is returned when a cooperative cancellation signal
	// fired mid-operation.
	ErrCancelled = errors.New("operation cancelled")

	// ErrDataCorrupt is returned when a verifying checkout detects
	// corruption before writing.
	ErrDataCorrupt = errors.New("data corrupt")

	// ErrNotFound is a generic "no such record" sentinel for store lookups.
	ErrNotFound = errors.New("record not found")
)
