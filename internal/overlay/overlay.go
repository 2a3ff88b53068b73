package overlay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/chfctl/internal/characters"
)

const (
	NameFile  = "current_name.txt"
	InfoFile  = "current_info.txt"
	ImageFile = "current_image.jpg"

	// ImageTimeout bounds the preview download
	ImageTimeout = 5 * time.Second
)

// Writer publishes the last installed character for streaming software
// (OBS text and image sources read these files)
type Writer struct {
	dir     string
	enabled bool
	client  *http.Client
	log     *log.Logger
}

// New creates an overlay writer for dir
func New(dir string, enabled bool, logger *log.Logger) *Writer {
	return &Writer{
		dir:     dir,
		enabled: enabled,
		client:  &http.Client{Timeout: ImageTimeout},
		log:     logger,
	}
}

// Dir returns the output directory
func (w *Writer) Dir() string {
	return w.dir
}

// Notify writes the overlay files for c. A disabled writer does nothing.
func (w *Writer) Notify(ctx context.Context, c *characters.Character) error {
	if !w.enabled || w.dir == "" {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(w.dir, NameFile), []byte(c.Name), 0644); err != nil {
		return fmt.Errorf("failed to write overlay name: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, InfoFile), []byte(InfoLine(c)), 0644); err != nil {
		return fmt.Errorf("failed to write overlay info: %w", err)
	}
	if err := w.writeImage(ctx, c.ImageURL); err != nil {
		// text sources are still valid without a picture
		w.log.Warn("Failed to update overlay image", "name", c.Name, "error", err)
	}

	w.log.Debug("Overlay updated", "name", c.Name, "dir", w.dir)
	return nil
}

// InfoLine renders "Author: X | Downloads: N", leaving out unknown parts
func InfoLine(c *characters.Character) string {
	var parts []string
	if c.Author != "" && c.Author != characters.UnknownAuthor {
		parts = append(parts, "Author: "+c.Author)
	}
	if c.Downloads > 0 {
		parts = append(parts, fmt.Sprintf("Downloads: %d", c.Downloads))
	}
	return strings.Join(parts, " | ")
}

func (w *Writer) writeImage(ctx context.Context, src string) error {
	dest := filepath.Join(w.dir, ImageFile)
	if src == "" {
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return w.download(ctx, src, dest)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	return writeAtomic(dest, in)
}

func (w *Writer) download(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("image download failed with status: %d", resp.StatusCode)
	}
	return writeAtomic(dest, resp.Body)
}

func writeAtomic(dest string, r io.Reader) error {
	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}
