package main

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	if got := normalizeName("  Home.Dyn.Example.ORG "); got != "home.dyn.example.org." {
		t.Fatalf("normalizeName mismatch: %q", got)
	}
	if got := normalizeName(""); got != "." {
		t.Fatalf("normalizeName empty mismatch: %q", got)
	}
}

func TestNormalizeNames(t *testing.T) {
	got := normalizeNames([]string{"NS1.example.org", "", " ns2.example.org "})
	if len(got) != 2 {
		t.Fatalf("expected 2 normalized names, got %d", len(got))
	}
	if got[0] != "ns1.example.org." || got[1] != "ns2.example.org." {
		t.Fatalf("unexpected names: %#v", got)
	}
}

func TestWriteText(t *testing.T) {
	w := httptest.NewRecorder()
	writeText(w, 200, "good 203.0.113.5")

	if w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "good 203.0.113.5\n" {
		t.Fatalf("expected a trailing newline, got %q", w.Body.String())
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	if err := writeFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("writeFileAtomic: %v", err)
	}
	if err := writeFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "second" {
		t.Fatalf("unexpected content %q", content)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}

	leftovers, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %#v", leftovers)
	}
}

func TestValidToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer abc")
	if !validToken(r, "abc") {
		t.Fatal("expected bearer token to pass")
	}

	r2 := httptest.NewRequest("GET", "/", nil)
	r2.Header.Set("X-API-Token", "xyz")
	if !validToken(r2, "xyz") {
		t.Fatal("expected X-API-Token to pass")
	}

	r3 := httptest.NewRequest("GET", "/", nil)
	r3.Header.Set("Authorization", "Bearer nope")
	if validToken(r3, "abc") {
		t.Fatal("expected a wrong token to fail")
	}

	r4 := httptest.NewRequest("GET", "/", nil)
	if validToken(r4, "abc") {
		t.Fatal("expected a missing token to fail")
	}
}
