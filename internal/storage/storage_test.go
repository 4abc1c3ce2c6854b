package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestStoredName(t *testing.T) {
	cases := map[string]string{
		"facture 12.pdf":         "1700000000000-facture_12.pdf",
		"a  \t b.png":            "1700000000000-a_b.png",
		"../../etc/passwd":       "1700000000000-passwd",
		`C:\Users\me\scan 1.jpg`: "1700000000000-scan_1.jpg",
	}
	for in, want := range cases {
		if got := StoredName(1700000000000, in); got != want {
			t.Fatalf("StoredName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyFromURL(t *testing.T) {
	if got := KeyFromURL("/uploads/1700-a.pdf"); got != "1700-a.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyFromURL("https://cdn.example.com/files/1700-a.pdf?x=1"); got != "1700-a.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	url, err := store.Put(ctx, "1-a.txt", strings.NewReader("hello"), 5, "text/plain")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if url != "/uploads/1-a.txt" {
		t.Fatalf("unexpected url %q", url)
	}

	rc, err := store.Open(ctx, KeyFromURL(url))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hello" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := store.Delete(ctx, "1-a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "1-a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Put(ctx, "../escape", strings.NewReader(""), 0, ""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}
