package asset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource marks a source URL that cannot be parsed or has no
	// http(s) scheme. No network I/O happens for it.
	ErrInvalidSource = errors.New("invalid source")

	// ErrTransferFailed covers network, protocol and local I/O errors while
	// fetching and writing an asset.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrChecksumMismatch is wrapped by *ChecksumMismatchError.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedAlgorithm is a configuration error. It aborts a run
	// instead of being retried.
	ErrUnsupportedAlgorithm = errors.New("unsupported digest algorithm")

	// ErrDuplicateID is returned when a batch holds the same ID twice.
	ErrDuplicateID = errors.New("duplicate asset id")

	// ErrDestinationTaken is wrapped by *DestinationTakenError.
	ErrDestinationTaken = errors.New("destination already owned by another asset")
)

// ChecksumMismatchError is returned by the verification gate. Path no longer
// exists on disk when this error is returned (unless deletion failed).
type ChecksumMismatchError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksums do not match, the file might be corrupted: %s (expected %s, got %s)", e.Path, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// UnsupportedAlgorithmError names the algorithm that was requested.
type UnsupportedAlgorithmError struct {
	Algorithm string
}

func (e *UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf("unsupported digest algorithm %q", e.Algorithm)
}

func (e *UnsupportedAlgorithmError) Unwrap() error { return ErrUnsupportedAlgorithm }

// DestinationTakenError is returned when a request resolves to a file that
// another request of the same run already writes. Nothing is written for ID.
type DestinationTakenError struct {
	Path  string
	ID    string
	Owner string
}

func (e *DestinationTakenError) Error() string {
	return fmt.Sprintf("asset %s resolves to %s, which already belongs to asset %s", e.ID, e.Path, e.Owner)
}

func (e *DestinationTakenError) Unwrap() error { return ErrDestinationTaken }

// IsFatal reports whether err will recur on every round and should end the
// run instead of being retried.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnsupportedAlgorithm) || errors.Is(err, ErrDuplicateID)
}
