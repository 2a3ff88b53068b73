package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/chfctl/internal/transfer"
)

const (
	// ManifestTimeout applies to the version check
	ManifestTimeout = 5 * time.Second
	// DownloadTimeout applies to the release download
	DownloadTimeout = 30 * time.Second
)

var (
	ErrNoManifestURL    = errors.New("no update manifest configured")
	ErrInvalidManifest  = errors.New("invalid update manifest")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Manifest is the published release descriptor
type Manifest struct {
	LatestVersion string   `json:"latest_version"`
	DownloadURL   string   `json:"download_url"`
	SHA256        string   `json:"sha256"`
	Notes         string   `json:"notes,omitempty"`
	Changelog     []string `json:"changelog,omitempty"`
}

// CheckResult contains information about an update check
type CheckResult struct {
	Current   string
	Available bool
	Manifest  *Manifest
}

// Updater checks for and installs new releases of the binary
type Updater struct {
	manifestURL string
	current     string
	client      *http.Client
	download    *http.Client
	log         *log.Logger
}

// New creates an updater comparing against the current version
func New(manifestURL, current string, logger *log.Logger) *Updater {
	return &Updater{
		manifestURL: manifestURL,
		current:     current,
		client:      &http.Client{Timeout: ManifestTimeout},
		download:    &http.Client{Timeout: DownloadTimeout},
		log:         logger,
	}
}

// Check fetches the manifest and reports whether it names a newer version
func (u *Updater) Check(ctx context.Context) (*CheckResult, error) {
	if u.manifestURL == "" {
		return nil, ErrNoManifestURL
	}
	u.log.Debug("Fetching update manifest", "url", u.manifestURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.manifestURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest returned status %d", resp.StatusCode)
	}

	var m Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.LatestVersion == "" {
		return nil, fmt.Errorf("%w: missing latest_version", ErrInvalidManifest)
	}

	result := &CheckResult{
		Current:   u.current,
		Available: CompareVersions(m.LatestVersion, u.current) > 0,
		Manifest:  &m,
	}
	u.log.Info("Update check complete", "current", u.current, "latest", m.LatestVersion, "available", result.Available)
	return result, nil
}

// Download streams url into dest through a .tmp file
func (u *Updater) Download(ctx context.Context, url, dest string, onProgress transfer.Progress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := u.download.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmpPath := dest + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	written, err := transfer.Copy(out, resp.Body, resp.ContentLength, onProgress)
	_ = out.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	u.log.Debug("Download complete", "bytes_written", written)

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

// Apply downloads the release named by m, verifies it and replaces the
// binary at exePath
func (u *Updater) Apply(ctx context.Context, m *Manifest, exePath string, onProgress transfer.Progress) error {
	if m.DownloadURL == "" {
		return fmt.Errorf("%w: missing download_url", ErrInvalidManifest)
	}

	staged := filepath.Join(filepath.Dir(exePath), "."+filepath.Base(exePath)+".new")
	if err := u.Download(ctx, m.DownloadURL, staged, onProgress); err != nil {
		return err
	}

	if m.SHA256 == "" {
		u.log.Warn("Manifest has no checksum, skipping verification")
	} else if err := VerifySHA256(staged, m.SHA256); err != nil {
		_ = os.Remove(staged)
		return err
	}

	if err := os.Chmod(staged, 0755); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to make executable: %w", err)
	}
	if err := os.Rename(staged, exePath); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	u.log.Info("Binary updated", "version", m.LatestVersion, "path", exePath)
	return nil
}

// VerifySHA256 compares the file's SHA-256 with a hex digest
func VerifySHA256(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(got, strings.TrimSpace(expected)) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, got)
	}
	return nil
}

// CompareVersions compares dotted versions ("v1.2.10" > "1.2.9"). A
// pre-release suffix ("1.2.0-rc1") sorts before the release.
func CompareVersions(a, b string) int {
	aCore, aPre := splitVersion(a)
	bCore, bPre := splitVersion(b)

	for i := 0; i < len(aCore) || i < len(bCore); i++ {
		var x, y int
		if i < len(aCore) {
			x = aCore[i]
		}
		if i < len(bCore) {
			y = bCore[i]
		}
		if x != y {
			if x > y {
				return 1
			}
			return -1
		}
	}

	switch {
	case aPre == bPre:
		return 0
	case aPre == "":
		return 1
	case bPre == "":
		return -1
	case aPre > bPre:
		return 1
	default:
		return -1
	}
}

func splitVersion(v string) ([]int, string) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	pre := ""
	if i := strings.IndexAny(v, "-+ "); i >= 0 {
		pre = v[i+1:]
		v = v[:i]
	}
	var parts []int
	for _, p := range strings.Split(v, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		parts = append(parts, n)
	}
	return parts, pre
}
