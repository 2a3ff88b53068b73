package installer

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/transfer"
)

// download fetches url into dest, retrying with the partial file removed
// between attempts. Returns the number of bytes written.
func (i *Installer) download(ctx context.Context, url, dest string) (int64, error) {
	attempt := 0
	return i.retry.Do(ctx, func(ctx context.Context) (int64, error) {
		attempt++
		n, err := i.fetch(ctx, url, dest)
		if err != nil {
			_ = os.Remove(dest)
			i.log.Debug("Download attempt failed", "url", url, "attempt", attempt, "error", err)
			return 0, err
		}
		return n, nil
	})
}

func (i *Installer) fetch(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", catalog.UserAgent)

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := transfer.Copy(out, resp.Body, resp.ContentLength, i.Progress)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("failed to write file: %w", err)
	}

	i.log.Debug("Download complete", "url", url, "bytes_written", written)
	return written, nil
}
