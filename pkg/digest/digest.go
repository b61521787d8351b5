package digest

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"fetchverify/pkg/asset"
)

// Algorithm produces digest strings in one fixed encoding so that expected
// and actual values can be compared as plain strings.
type Algorithm interface {
	ID() string
	New() hash.Hash
	Encode(sum []byte) string
}

const (
	SHA256 = "sha256"
	SHA512 = "sha512"
	CRC32  = "crc32"
)

var (
	mu         sync.RWMutex
	algorithms = make(map[string]Algorithm)
)

func init() {
	Register(hexAlgorithm{id: SHA256, newFn: sha256.New})
	Register(hexAlgorithm{id: SHA512, newFn: sha512.New})
	Register(crcAlgorithm{})
}

func Register(a Algorithm) {
	mu.Lock()
	defer mu.Unlock()
	algorithms[a.ID()] = a
}

// Lookup returns the registered algorithm, or an *asset.UnsupportedAlgorithmError.
func Lookup(id string) (Algorithm, error) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := algorithms[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, &asset.UnsupportedAlgorithmError{Algorithm: id}
	}
	return a, nil
}

// Algorithms lists registered algorithm IDs in sorted order.
func Algorithms() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(algorithms))
	for id := range algorithms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Hasher accumulates a digest while bytes are written through it.
type Hasher struct {
	algo Algorithm
	h    hash.Hash
}

func New(id string) (*Hasher, error) {
	a, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	return &Hasher{algo: a, h: a.New()}, nil
}

func (h *Hasher) Write(p []byte) (int, error) { return h.h.Write(p) }

// Sum returns the encoded digest of everything written so far.
func (h *Hasher) Sum() string { return h.algo.Encode(h.h.Sum(nil)) }

func (h *Hasher) Algorithm() string { return h.algo.ID() }

// Sum drains r and returns its digest.
func Sum(r io.Reader, id string) (string, error) {
	h, err := New(id)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return h.Sum(), nil
}

// Normalize prepares a digest string for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

type hexAlgorithm struct {
	id    string
	newFn func() hash.Hash
}

func (a hexAlgorithm) ID() string               { return a.id }
func (a hexAlgorithm) New() hash.Hash           { return a.newFn() }
func (a hexAlgorithm) Encode(sum []byte) string { return hex.EncodeToString(sum) }

// crcAlgorithm encodes the IEEE CRC-32 as an unsigned decimal integer.
type crcAlgorithm struct{}

func (crcAlgorithm) ID() string     { return CRC32 }
func (crcAlgorithm) New() hash.Hash { return crc32.NewIEEE() }
func (crcAlgorithm) Encode(sum []byte) string {
	return strconv.FormatUint(uint64(binary.BigEndian.Uint32(sum)), 10)
}
