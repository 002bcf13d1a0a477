package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// MinImageBytes rejects placeholder thumbnails and error pages served as
// images.
const MinImageBytes = 5000

var ErrImageTooSmall = errors.New("downloaded image too small")

type ProgressWriter struct {
	Total      int64
	Written    int64
	OnProgress func(written, total int64)
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.Written += int64(n)
	if pw.OnProgress != nil {
		pw.OnProgress(pw.Written, pw.Total)
	}
	return n, nil
}

// Downloader saves remote images into a directory.
type Downloader struct {
	dir       string
	userAgent string
	minBytes  int64
	client    *http.Client
}

func NewDownloader(dir, userAgent string, client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{
		dir:       dir,
		userAgent: userAgent,
		minBytes:  MinImageBytes,
		client:    client,
	}
}

func (d *Downloader) Dir() string {
	return d.dir
}

// Download fetches url into dir/filename and returns the path. Files smaller
// than MinImageBytes are removed and reported as ErrImageTooSmall.
func (d *Downloader) Download(ctx context.Context, url, filename string, onProgress func(written, total int64)) (string, error) {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	dest := filepath.Join(d.dir, filename)
	written, err := d.download(ctx, url, dest, onProgress)
	if err != nil {
		return "", err
	}

	if written < d.minBytes {
		os.Remove(dest)
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooSmall, written)
	}

	return dest, nil
}

func (d *Downloader) download(ctx context.Context, url, dest string, onProgress func(written, total int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: status %d", resp.StatusCode)
	}

	tmpFile := dest + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	pw := &ProgressWriter{
		Total:      resp.ContentLength,
		OnProgress: onProgress,
	}

	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	closeErr := f.Close()

	if err != nil {
		os.Remove(tmpFile)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpFile)
		return 0, fmt.Errorf("close file: %w", closeErr)
	}

	if err := os.Rename(tmpFile, dest); err != nil {
		os.Remove(tmpFile)
		return 0, fmt.Errorf("rename file: %w", err)
	}

	return pw.Written, nil
}
