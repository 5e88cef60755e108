package embedding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

// Downloader fetches model artifacts into a shared cache directory. A file
// already present is reused; downloads land in a temp file and are renamed
// into place so a partial download is never mistaken for a model.
type Downloader struct {
	cacheDir string
	client   *http.Client
}

// NewDownloader returns a downloader rooted at cacheDir.
func NewDownloader(cacheDir string) *Downloader {
	return &Downloader{cacheDir: cacheDir, client: http.DefaultClient}
}

// Ensure returns the local path of filename, downloading it from url first
// when it is missing.
func (d *Downloader) Ensure(ctx context.Context, url, filename string) (string, error) {
	dest := filepath.Join(d.cacheDir, filename)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(d.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	n, err := d.download(ctx, url, dest)
	if err != nil {
		return "", err
	}
	logger().Info("downloaded model artifact", "file", filename, "size", humanize.Bytes(uint64(n)))
	return dest, nil
}

func (d *Downloader) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	tmp := dest + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("close file: %w", closeErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("rename file: %w", err)
	}
	return n, nil
}
