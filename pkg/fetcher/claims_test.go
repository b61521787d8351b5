package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/driver/httpclient"
)

func TestClaims(t *testing.T) {
	t.Parallel()

	c := NewClaims()
	path := filepath.Join(t.TempDir(), "f1")

	if err := c.Claim(path, "a"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := c.Claim(path, "a"); err != nil {
		t.Fatalf("same owner must be able to claim again: %v", err)
	}
	err := c.Claim(filepath.Join(filepath.Dir(path), ".", "f1"), "b")
	if !errors.Is(err, asset.ErrDestinationTaken) {
		t.Fatalf("expected ErrDestinationTaken, got %v", err)
	}
	if owner, ok := c.Owner(path); !ok || owner != "a" {
		t.Fatalf("owner = %q, %t", owner, ok)
	}
}

func TestFetchWithClaimsLeavesOwnedFileAlone(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="f1"`)
		io.WriteString(w, r.URL.Path)
	}))
	defer srv.Close()

	f, err := New(httpclient.Static{C: srv.Client()}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	folder := t.TempDir()
	ctx := WithClaims(context.Background(), NewClaims())

	first, err := f.Fetch(ctx, asset.Request{ID: "a", SourceURL: srv.URL + "/x/f1", TargetFolder: folder})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.Fetch(ctx, asset.Request{ID: "b", SourceURL: srv.URL + "/y/f1", TargetFolder: folder})
	if !errors.Is(err, asset.ErrDestinationTaken) {
		t.Fatalf("expected ErrDestinationTaken, got %v", err)
	}

	data, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/x/f1" {
		t.Fatalf("file was overwritten: %q", data)
	}
}
