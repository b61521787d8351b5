package verify

import (
	"fmt"
	"log/slog"
	"os"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/digest"
)

// Compare returns a *asset.ChecksumMismatchError naming path when actual and
// expected differ. It never touches the file.
func Compare(actual, expected, path string) error {
	if digest.Normalize(actual) == digest.Normalize(expected) {
		return nil
	}
	return &asset.ChecksumMismatchError{Path: path, Expected: expected, Actual: actual}
}

// Verify compares the digest computed for path with the expected one. On a
// mismatch the file is removed and a *asset.ChecksumMismatchError is
// returned; a failed removal is logged but never replaces that error.
// On a match the file is left untouched and belongs to the caller.
func Verify(actual, expected, path string) error {
	err := Compare(actual, expected, path)
	if err == nil {
		return nil
	}
	if path != "" {
		if rerr := os.Remove(path); rerr != nil && !os.IsNotExist(rerr) {
			slog.Warn("failed to delete corrupted file", "path", path, "error", rerr)
		}
	}
	return err
}

// CheckFile hashes an existing file and compares it, keeping the file on a
// mismatch.
func CheckFile(path, expected, algo string) error {
	actual, err := sumFile(path, algo)
	if err != nil {
		return err
	}
	return Compare(actual, expected, path)
}

// VerifyFile hashes an existing file and runs Verify on it.
func VerifyFile(path, expected, algo string) error {
	actual, err := sumFile(path, algo)
	if err != nil {
		return err
	}
	return Verify(actual, expected, path)
}

func sumFile(path, algo string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return digest.Sum(f, algo)
}
