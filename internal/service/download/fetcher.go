// Package download fetches release assets to disk and unpacks them.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"proxyctl/internal/shared/logger"
	"proxyctl/internal/shared/types"
)

const defaultTimeout = 10 * time.Minute

// Fetcher downloads URLs into files. Progress goes to Progress when it is a
// terminal and is suppressed otherwise.
type Fetcher struct {
	client   *http.Client
	progress io.Writer
	isTTY    func(io.Writer) bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithProgress sets where the progress line is drawn.
func WithProgress(w io.Writer) Option {
	return func(f *Fetcher) { f.progress = w }
}

// NewFetcher creates a Fetcher that draws progress on stderr.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		progress: os.Stderr,
		isTTY:    isTerminal,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Client returns the HTTP client used for downloads.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// FetchText GETs url and returns the trimmed body.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.KindDownload, "read "+url, err)
	}
	return strings.TrimSpace(string(body)), nil
}

// FetchWithProgress downloads url into dest. The body is written to a
// temporary file next to dest and renamed into place once complete, so a
// failed download never leaves a truncated dest behind.
func (f *Fetcher) FetchWithProgress(ctx context.Context, url, dest string) error {
	l := logger.WithComponent("Download")
	l.Info().Str("url", url).Msgf("Downloading from: %s", url)

	resp, err := f.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	tmp := filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+"."+uuid.NewString()+".part")
	out, err := os.Create(tmp)
	if err != nil {
		return types.NewError(types.KindDownload, "create "+tmp, err)
	}

	var w io.Writer = out
	var bar *progressBar
	if f.progress != nil && f.isTTY(f.progress) {
		bar = newProgressBar(f.progress, resp.ContentLength)
		w = io.MultiWriter(out, bar)
	}

	_, copyErr := io.Copy(w, resp.Body)
	closeErr := out.Close()
	if bar != nil {
		bar.finish()
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmp)
		return types.NewError(types.KindDownload, "write "+dest, copyErr)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return types.NewError(types.KindDownload, "rename "+dest, err)
	}

	l.Info().Str("path", dest).Msgf("Downloaded to %s", dest)
	return nil
}

func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewError(types.KindDownload, "build request for "+url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindDownload, "GET "+url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, types.NewError(types.KindDownload, "GET "+url, fmt.Errorf("received status code %d", resp.StatusCode))
	}
	return resp, nil
}
