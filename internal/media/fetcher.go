// Package media resolves stored coin images to raw bytes, whether the
// storage path is an HTTP URL or a path under a local media directory.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mintmarkhq/mintmark/internal/logger"
)

const (
	// maxImageBytes caps a single image read.
	maxImageBytes = 20 << 20

	defaultTimeout = 30 * time.Second
)

// Fetcher loads image bytes by storage path.
type Fetcher struct {
	client  *http.Client
	baseDir string
	logger  logger.Interface
}

// NewFetcher creates a media fetcher. baseDir anchors relative storage
// paths; URLs are fetched over HTTP.
func NewFetcher(baseDir string, log logger.Interface) *Fetcher {
	return &Fetcher{
		client:  &http.Client{Timeout: defaultTimeout},
		baseDir: baseDir,
		logger:  log,
	}
}

// Fetch returns the raw bytes for one stored image.
func (f *Fetcher) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	if strings.HasPrefix(storagePath, "http://") || strings.HasPrefix(storagePath, "https://") {
		return f.fetchURL(ctx, storagePath)
	}
	return f.readFile(storagePath)
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build media request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	full := path
	if f.baseDir != "" && !filepath.IsAbs(path) {
		full = filepath.Join(f.baseDir, path)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read media file: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("media file %s exceeds size limit", path)
	}

	return data, nil
}
