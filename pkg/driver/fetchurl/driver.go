package fetchurl

import (
	"context"
	"io"
)

// FetchOptions configures a download operation
type FetchOptions struct {
	// URLs to try downloading from (in order)
	URLs []string
	// Hash algorithm (e.g., "sha256", "sha512")
	Algo string
	// Expected hash value
	Hash string
	// Output destination
	Out io.Writer
}

// Driver provides hash-verified downloads from content-addressed mirrors.
type Driver interface {
	// Fetch downloads a file with hash verification
	// Tries URLs in order until one succeeds
	Fetch(ctx context.Context, opts FetchOptions) error
}

// Supports reports whether mirrors can verify digests of the given algorithm.
// Mirrors are content-addressed by cryptographic hashes only.
func Supports(algo string) bool {
	return algo == "sha256" || algo == "sha512"
}
