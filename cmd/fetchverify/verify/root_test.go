package verify

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fetchverify/pkg/asset"
)

const abc = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := GetCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "f1")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerifyMatch(t *testing.T) {
	path := writeFile(t)
	out, err := execute(t, "--expected", abc, path)
	if err != nil || out != path+": OK\n" {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestVerifyMismatchKeepsFile(t *testing.T) {
	path := writeFile(t)
	_, err := execute(t, "--expected", "00", path)
	if !errors.Is(err, asset.ErrChecksumMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file must be kept without --remove: %v", err)
	}
}

func TestVerifyMismatchRemove(t *testing.T) {
	path := writeFile(t)
	_, err := execute(t, "--remove", "--expected", "00", path)
	if !errors.Is(err, asset.ErrChecksumMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file must be removed, stat err = %v", err)
	}
}
