package digest

import (
	"errors"
	"hash/crc32"
	"strconv"
	"strings"
	"testing"

	"fetchverify/pkg/asset"
)

func TestSumKnownValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		algo  string
		input string
		want  string
	}{
		{SHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{CRC32, "abc", strconv.FormatUint(uint64(crc32.ChecksumIEEE([]byte("abc"))), 10)},
		{CRC32, "123456789", "3421780262"},
	}

	for _, tt := range tests {
		t.Run(tt.algo+"/"+tt.input, func(t *testing.T) {
			got, err := Sum(strings.NewReader(tt.input), tt.algo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Sum() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSHA256IsFullWidthLowerHex(t *testing.T) {
	t.Parallel()

	// Pick inputs until one digest has a leading zero nibble so padding is exercised.
	for i := 0; i < 256; i++ {
		got, err := Sum(strings.NewReader(strconv.Itoa(i)), SHA256)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 64 {
			t.Fatalf("expected 64 chars, got %d (%s)", len(got), got)
		}
		if got != strings.ToLower(got) {
			t.Fatalf("expected lower-case digest, got %s", got)
		}
	}
}

func TestSumIsDeterministicAndSensitive(t *testing.T) {
	t.Parallel()

	content := "the quick brown fox"
	for _, algo := range Algorithms() {
		a, err := Sum(strings.NewReader(content), algo)
		if err != nil {
			t.Fatalf("%s: %v", algo, err)
		}
		b, _ := Sum(strings.NewReader(content), algo)
		if a != b {
			t.Errorf("%s: digest not deterministic: %s vs %s", algo, a, b)
		}
		c, _ := Sum(strings.NewReader(content+"x"), algo)
		if a == c {
			t.Errorf("%s: digest did not change after appending a byte", algo)
		}
	}
}

func TestSumDrainsReader(t *testing.T) {
	t.Parallel()

	r := strings.NewReader(strings.Repeat("a", 100000))
	if _, err := Sum(r, SHA256); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected reader to be drained, %d bytes left", r.Len())
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := Sum(strings.NewReader("x"), "md4")
	if !errors.Is(err, asset.ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	var uerr *asset.UnsupportedAlgorithmError
	if !errors.As(err, &uerr) || uerr.Algorithm != "md4" {
		t.Fatalf("expected algorithm name in error, got %v", err)
	}
}

func TestHasherMatchesSum(t *testing.T) {
	t.Parallel()

	h, err := New("SHA256")
	if err != nil {
		t.Fatalf("lookup should be case-insensitive: %v", err)
	}
	h.Write([]byte("ab"))
	h.Write([]byte("c"))
	want, _ := Sum(strings.NewReader("abc"), SHA256)
	if h.Sum() != want {
		t.Errorf("Hasher.Sum() = %s, want %s", h.Sum(), want)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	if got := Normalize("  ABCdef\n"); got != "abcdef" {
		t.Errorf("Normalize() = %q", got)
	}
}
