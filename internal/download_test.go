package internal

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloaderDownload(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), MinImageBytes+10)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		w.Write(payload)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "scraped")
	d := NewDownloader(dir, "barwatch-test", srv.Client())

	var last int64
	path, err := d.Download(context.Background(), srv.URL, "a.jpg", func(written, total int64) {
		last = written
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("downloaded content mismatch")
	}
	if last != int64(len(payload)) {
		t.Errorf("expected progress %d, got %d", len(payload), last)
	}
	if gotUA != "barwatch-test" {
		t.Errorf("expected user agent to be sent, got %q", gotUA)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain")
	}
}

func TestDownloaderRejectsTinyImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tiny"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(dir, "", srv.Client())

	_, err := d.Download(context.Background(), srv.URL, "tiny.jpg", nil)
	if !errors.Is(err, ErrImageTooSmall) {
		t.Fatalf("expected ErrImageTooSmall, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tiny.jpg")); !os.IsNotExist(err) {
		t.Error("tiny file should be removed")
	}
}

func TestDownloaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDownloader(t.TempDir(), "", srv.Client())
	if _, err := d.Download(context.Background(), srv.URL, "x.jpg", nil); err == nil {
		t.Fatal("expected error for 404")
	}
}
