package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func TestGetYAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/index.yml" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("dxvk-2.0:\n  Category: dxvk\n  Channel: stable\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", hclog.NewNullLogger())
	var out map[string]map[string]string
	if err := c.GetYAML(context.Background(), "index.yml", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["dxvk-2.0"]["Channel"] != "stable" {
		t.Errorf("unexpected decode: %v", out)
	}
}

func TestGetYAML_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL, hclog.NewNullLogger())
	var out map[string]interface{}
	if err := c.GetYAML(context.Background(), "missing.yml", &out); err == nil {
		t.Error("expected error on 404")
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, hclog.NewNullLogger())
	dest := filepath.Join(t.TempDir(), "sub", "file.tar.gz")
	n, err := c.Download(context.Background(), srv.URL+"/file.tar.gz", dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("payload")) {
		t.Errorf("n = %d", n)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
}
