package fetcher

import (
	"context"
	"path/filepath"
	"sync"

	"fetchverify/pkg/asset"
)

// Claims records which request owns each destination path. The first request
// to claim a path keeps it for the lifetime of the Claims; retries of the
// same request may claim it again.
type Claims struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewClaims() *Claims {
	return &Claims{owners: map[string]string{}}
}

// Claim reserves path for id, or returns a *asset.DestinationTakenError when
// another id holds it.
func (c *Claims) Claim(path, id string) error {
	key := claimKey(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if owner, ok := c.owners[key]; ok && owner != id {
		return &asset.DestinationTakenError{Path: path, ID: id, Owner: owner}
	}
	c.owners[key] = id
	return nil
}

// Owner returns the id holding path, if any.
func (c *Claims) Owner(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.owners[claimKey(path)]
	return id, ok
}

func claimKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

type claimsKey struct{}

// WithClaims returns a context whose fetches reserve their destination in c
// before writing.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}
