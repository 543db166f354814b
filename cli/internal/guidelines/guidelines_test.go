package guidelines

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_inlineText(t *testing.T) {
	t.Parallel()
	got, err := Resolve(context.Background(), "  Use imperative mood.  ", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "Use imperative mood." {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_localFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "CONTRIBUTING.md")
	if err := os.WriteFile(path, []byte("Keep subjects short.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "Keep subjects short." {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_remoteURL(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Prefix every subject.\n"))
	}))
	defer srv.Close()
	got, err := Resolve(context.Background(), srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "Prefix every subject." {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_remoteNon2xxIsFatal(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	if _, err := Resolve(context.Background(), srv.URL, srv.Client()); err == nil {
		t.Fatal("Resolve(404): expected error")
	}
}

func TestResolve_unreachableURLIsFatal(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	if _, err := Resolve(context.Background(), url, nil); err == nil {
		t.Fatal("Resolve(closed server): expected error")
	}
}

func TestResolve_directoryIsInlineText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := Resolve(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != dir {
		t.Errorf("Resolve(directory) = %q, want literal %q", got, dir)
	}
}
