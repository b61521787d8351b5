package asset

import "fmt"

// Request is one unit of work: a remote file, the digest it must have, and
// the folder it lands in.
type Request struct {
	ID             string `toml:"id" json:"id"`
	SourceURL      string `toml:"url" json:"url"`
	ExpectedDigest string `toml:"digest" json:"digest"`
	TargetFolder   string `toml:"folder" json:"folder"`
}

func (r Request) String() string {
	return fmt.Sprintf("%s (%s)", r.ID, r.SourceURL)
}

// Outcome is the result of one fetch+verify attempt.
type Outcome struct {
	Request Request
	OK      bool
	Path    string
	Digest  string
	Bytes   int64
	Err     error
}

// ValidateBatch rejects batches where two requests share an ID.
func ValidateBatch(reqs []Request) error {
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}
