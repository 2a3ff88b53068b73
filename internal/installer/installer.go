package installer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/transfer"
)

const (
	// DownloadTimeout applies to each download attempt
	DownloadTimeout = 30 * time.Second
	// DefaultMaxAttempts is the number of tries per download
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the base of the linear backoff between tries
	DefaultRetryDelay = time.Second

	// TempPrefix marks partial downloads; the repository scan skips them
	TempPrefix = ".tmp_"
	// SnapshotReason is recorded when an install replaces an existing file
	SnapshotReason = "Pre-Update"
	// UninstallReason is recorded when a file is snapshotted before removal
	UninstallReason = "Pre-Uninstall"
	// FallbackFilename is used when a name sanitizes to nothing
	FallbackFilename = "character"
)

// Notifier is told about every successful install
type Notifier interface {
	Notify(ctx context.Context, c *characters.Character) error
}

// Installer downloads catalog characters into a repository
type Installer struct {
	repo     *characters.Repository
	backups  *backup.Manager
	notifier Notifier
	client   *http.Client
	retry    retry.Retry[int64]
	log      *log.Logger
	now      func() time.Time

	// Progress, when set, receives byte counts during downloads
	Progress transfer.Progress
}

// Option customizes an Installer
type Option func(*installerOptions)

type installerOptions struct {
	client      *http.Client
	notifier    Notifier
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

// WithHTTPClient replaces the download client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *installerOptions) { o.client = hc }
}

// WithNotifier registers the post-install observer
func WithNotifier(n Notifier) Option {
	return func(o *installerOptions) { o.notifier = n }
}

// WithRetry sets download attempts and the backoff base
func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *installerOptions) {
		if attempts > 0 {
			o.maxAttempts = attempts
		}
		o.retryDelay = delay
	}
}

// WithClock replaces the time source used for installed_at
func WithClock(now func() time.Time) Option {
	return func(o *installerOptions) { o.now = now }
}

// New creates an installer writing into repo and snapshotting through backups
func New(repo *characters.Repository, backups *backup.Manager, logger *log.Logger, opts ...Option) *Installer {
	o := installerOptions{
		client:      &http.Client{Timeout: DownloadTimeout},
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Installer{
		repo:     repo,
		backups:  backups,
		notifier: o.notifier,
		client:   o.client,
		retry: retry.New[int64](retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.retryDelay,
			BackoffPolicy: retry.BackoffLinear,
		}),
		log: logger,
		now: o.now,
	}
}

// Install downloads c into the repository. An already installed copy
// (same download URL, or same name and author) is reused without any
// network access. On return c.Status is installed when err is nil and
// error otherwise.
func (i *Installer) Install(ctx context.Context, c *characters.Character) (err error) {
	defer func() {
		if err != nil {
			c.Status = characters.StatusError
			i.log.Error("Install failed", "name", c.Name, "error", err)
			return
		}
		c.Status = characters.StatusInstalled
	}()

	if strings.TrimSpace(c.DownloadURL) == "" {
		return newError(KindNoDownloadURL, c.Name, nil)
	}

	if err := i.repo.EnsureDir(); err != nil {
		return newError(KindDirectoryUnavailable, c.Name, err)
	}

	if existing, ok := i.repo.FindInstalled(c); ok {
		c.LocalFilename = existing
		i.log.Info("Character already installed", "name", c.Name, "file", existing)
		return nil
	}

	c.Status = characters.StatusDownloading
	filename := FilenameFor(c)
	tmpPath := i.repo.Path(TempPrefix + filename)
	finalPath := i.repo.Path(filename)

	i.log.Info("Downloading character", "name", c.Name, "url", c.DownloadURL, "file", filename)
	written, err := i.download(ctx, c.DownloadURL, tmpPath)
	if err != nil {
		_ = os.Remove(tmpPath)
		return newError(KindDownloadFailed, c.Name, err)
	}
	if written == 0 {
		_ = os.Remove(tmpPath)
		return newError(KindEmptyDownload, c.Name, nil)
	}

	if _, err := os.Stat(finalPath); err == nil {
		if _, err := i.backups.CreateSnapshot(finalPath, SnapshotReason); err != nil {
			_ = os.Remove(tmpPath)
			return newError(KindWriteFailed, c.Name, fmt.Errorf("snapshot of %s: %w", filename, err))
		}
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return newError(KindWriteFailed, c.Name, err)
	}

	installedAt := i.now()
	if err := i.repo.WriteMetadata(filename, characters.MetadataFor(c, installedAt)); err != nil {
		i.log.Warn("Failed to write metadata", "file", filename, "error", err)
	}

	c.LocalFilename = filename
	c.InstalledAt = installedAt
	i.log.Info("Character installed", "name", c.Name, "file", filename, "bytes", written)

	if i.notifier != nil {
		if nerr := i.notifier.Notify(ctx, c); nerr != nil {
			i.log.Warn("Overlay update failed", "name", c.Name, "error", nerr)
		}
	}
	return nil
}

// InstallFromURL installs a character straight from a download link,
// naming it after the URL's file stem
func (i *Installer) InstallFromURL(ctx context.Context, rawURL string) (*characters.Character, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, newError(KindInvalidSource, rawURL, fmt.Errorf("not an http(s) URL"))
	}

	name := characters.Stem(urlBase(u))
	if name == "" {
		name = FallbackFilename
	}
	c := &characters.Character{
		Name:        name,
		DownloadURL: u.String(),
		URLDetail:   u.String(),
		Status:      characters.StatusNotInstalled,
	}
	return c, i.Install(ctx, c)
}

// InstallFromFile copies a local .chf into the repository under a name
// that is not taken yet (name_1.chf, name_2.chf, ...). No duplicate
// matching is done. Returns the new filename.
func (i *Installer) InstallFromFile(src string) (string, error) {
	base := filepath.Base(src)
	info, err := os.Stat(src)
	if err != nil {
		return "", newError(KindInvalidSource, base, err)
	}
	if info.IsDir() || !characters.IsCharacterFile(base) {
		return "", newError(KindInvalidSource, base, fmt.Errorf("not a %s file", characters.CharacterExt))
	}

	if err := i.repo.EnsureDir(); err != nil {
		return "", newError(KindDirectoryUnavailable, base, err)
	}

	filename := i.uniqueFilename(base)
	if err := transfer.CreateCopy(src, i.repo.Path(filename)); err != nil {
		return "", newError(KindWriteFailed, base, err)
	}

	i.log.Info("Character imported", "source", src, "file", filename)
	return filename, nil
}

func (i *Installer) uniqueFilename(base string) string {
	stem := characters.Stem(base)
	ext := filepath.Ext(base)
	candidate := base
	for n := 1; ; n++ {
		if _, err := os.Stat(i.repo.Path(candidate)); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

// FilenameFor picks the repository filename for c: the URL's basename
// when it already names a .chf file, else the sanitized name.
func FilenameFor(c *characters.Character) string {
	if u, err := url.Parse(c.DownloadURL); err == nil {
		base := urlBase(u)
		if characters.IsCharacterFile(base) && characters.Stem(base) != "" {
			return base
		}
	}
	name := characters.SanitizeName(c.Name)
	if name == "" {
		name = FallbackFilename
	}
	return name + characters.CharacterExt
}

// Uninstall removes c from the repository, snapshotting the payload first
// when snapshot is set. A failed snapshot aborts the removal.
func (i *Installer) Uninstall(c *characters.Character, snapshot bool) (bool, error) {
	if snapshot && c.LocalFilename != "" {
		if _, err := i.backups.CreateSnapshot(i.repo.Path(c.LocalFilename), UninstallReason); err != nil {
			return false, fmt.Errorf("snapshot before uninstall: %w", err)
		}
	}
	return i.repo.Uninstall(c)
}

// urlBase returns the unescaped last path segment, or "" when it is not
// usable as a local filename
func urlBase(u *url.URL) string {
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if base == "." || base == "/" || strings.HasPrefix(base, ".") || strings.ContainsAny(base, `/\`) {
		return ""
	}
	return base
}
