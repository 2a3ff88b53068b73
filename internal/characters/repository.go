package characters

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

// StorageDirName is the subfolder holding characters parked by loadouts
const StorageDirName = "_storage"

// MaxThumbnailSize bounds the longest edge of a saved thumbnail
const MaxThumbnailSize = 400

var (
	ErrCharacterNotFound    = errors.New("character not found")
	ErrDirectoryUnavailable = errors.New("character directory unavailable")
	ErrInvalidImage         = errors.New("invalid image")
)

// Repository is the CustomCharacters directory of the game client
type Repository struct {
	dir string
	log *log.Logger
}

// NewRepository creates a repository rooted at dir
func NewRepository(dir string, logger *log.Logger) *Repository {
	return &Repository{dir: dir, log: logger}
}

// Dir returns the repository root
func (r *Repository) Dir() string {
	return r.dir
}

// Path joins filename onto the repository root
func (r *Repository) Path(filename string) string {
	return filepath.Join(r.dir, filename)
}

// StorageDir returns the loadout storage folder
func (r *Repository) StorageDir() string {
	return filepath.Join(r.dir, StorageDirName)
}

// EnsureStorageDir creates the storage folder
func (r *Repository) EnsureStorageDir() error {
	if err := os.MkdirAll(r.StorageDir(), 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}

// EnsureDir makes sure the repository exists and is writable.
// The leaf is created only when its parent already exists.
func (r *Repository) EnsureDir() error {
	info, err := os.Stat(r.dir)
	if os.IsNotExist(err) {
		if _, perr := os.Stat(filepath.Dir(r.dir)); perr != nil {
			return fmt.Errorf("%w: parent of %s does not exist", ErrDirectoryUnavailable, r.dir)
		}
		if err := os.Mkdir(r.dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		r.log.Info("Created character directory", "path", r.dir)
		info, err = os.Stat(r.dir)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrDirectoryUnavailable, r.dir)
	}

	probe, err := os.CreateTemp(r.dir, ".chfctl-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable", ErrDirectoryUnavailable, r.dir)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return nil
}

// List scans the repository for installed characters, sorted by filename
func (r *Repository) List() ([]Character, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Character{}, nil
		}
		return nil, fmt.Errorf("failed to read character directory: %w", err)
	}

	list := make([]Character, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isHidden(name) || !IsCharacterFile(name) {
			continue
		}
		list = append(list, r.load(name, entry))
	}
	return list, nil
}

// Get loads one installed character by filename or stem
func (r *Repository) Get(filename string) (*Character, error) {
	if !IsCharacterFile(filename) {
		filename += CharacterExt
	}
	info, err := os.Stat(r.Path(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCharacterNotFound, filename)
		}
		return nil, err
	}
	c := r.load(filename, fileInfoEntry{info})
	return &c, nil
}

type dirEntryInfo interface {
	Info() (os.FileInfo, error)
}

type fileInfoEntry struct{ os.FileInfo }

func (e fileInfoEntry) Info() (os.FileInfo, error) { return e.FileInfo, nil }

func (r *Repository) load(filename string, entry dirEntryInfo) Character {
	c := Character{
		Name:          Stem(filename),
		Status:        StatusInstalled,
		LocalFilename: filename,
	}
	if info, err := entry.Info(); err == nil {
		c.InstalledAt = info.ModTime()
	}

	meta, err := ReadMetadataFile(r.Path(SidecarName(filename)))
	switch {
	case err == nil:
		meta.Apply(&c)
	case !os.IsNotExist(err):
		r.log.Warn("Unreadable character metadata", "file", filename, "error", err)
	}

	thumb := r.Path(ThumbnailName(filename))
	if _, err := os.Stat(thumb); err == nil {
		c.ImageURL = thumb
	}
	return c
}

// FindInstalled looks for an installed copy of c through the sidecars.
// An exact download URL wins; otherwise names must match (trimmed,
// case-insensitive) and authors must match too unless c has no author.
// Returns the .chf filename of the match.
func (r *Repository) FindInstalled(c *Character) (string, bool) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", false
	}

	targetName := normalize(c.Name)
	targetAuthor := normalize(c.Author)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isHidden(name) || !IsMetadataFile(name) {
			continue
		}
		chf := Stem(name) + CharacterExt
		if _, err := os.Stat(r.Path(chf)); err != nil {
			continue
		}
		meta, err := ReadMetadataFile(r.Path(name))
		if err != nil {
			continue
		}

		if c.DownloadURL != "" && meta.DownloadURL == c.DownloadURL {
			return chf, true
		}
		if targetName == "" || normalize(meta.Name) != targetName {
			continue
		}
		if targetAuthor == "" || normalize(meta.Author) == targetAuthor {
			return chf, true
		}
	}
	return "", false
}

// WriteMetadata writes the sidecar for a .chf filename
func (r *Repository) WriteMetadata(filename string, m Metadata) error {
	return WriteMetadataFile(r.Path(SidecarName(filename)), m)
}

// Uninstall deletes a character and its sidecar and thumbnail.
// Returns false when no file could be found for the record. Filesystem
// errors on the payload or sidecar are returned to the caller.
func (r *Repository) Uninstall(c *Character) (bool, error) {
	filename := c.LocalFilename
	if filename == "" {
		filename = sanitize(c.Name, ".") + CharacterExt
	}

	path := r.Path(filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		filename = strings.ReplaceAll(Stem(filename), " ", "_") + CharacterExt
		path = r.Path(filename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			r.log.Warn("Character file not found", "name", c.Name)
			return false, nil
		}
	}

	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", filename, err)
	}
	if err := os.Remove(r.Path(SidecarName(filename))); err != nil && !os.IsNotExist(err) {
		return true, fmt.Errorf("failed to remove metadata for %s: %w", filename, err)
	}
	if err := os.Remove(r.Path(ThumbnailName(filename))); err != nil && !os.IsNotExist(err) {
		r.log.Warn("Failed to remove thumbnail", "file", filename, "error", err)
	}

	c.Status = StatusNotInstalled
	c.LocalFilename = ""
	r.log.Info("Character uninstalled", "name", c.Name, "file", filename)
	return true, nil
}

// MetadataUpdate carries the user-editable sidecar fields. Nil fields are left alone.
type MetadataUpdate struct {
	Name        *string
	Author      *string
	Description *string
	Tags        []string
}

// UpdateMetadata edits the sidecar of filename, keeping keys it does not know about
func (r *Repository) UpdateMetadata(filename string, u MetadataUpdate) error {
	if !IsCharacterFile(filename) {
		filename += CharacterExt
	}
	if _, err := os.Stat(r.Path(filename)); err != nil {
		return fmt.Errorf("%w: %s", ErrCharacterNotFound, filename)
	}

	path := r.Path(SidecarName(filename))
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &doc); err != nil {
			r.log.Warn("Replacing unreadable metadata", "file", filename, "error", err)
			doc = map[string]any{}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if u.Name != nil {
		doc["name"] = *u.Name
	}
	if u.Author != nil {
		doc["author"] = *u.Author
	}
	if u.Description != nil {
		doc["description"] = *u.Description
	}
	if u.Tags != nil {
		doc["tags"] = u.Tags
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	r.log.Info("Metadata updated", "file", filename)
	return nil
}

// SaveThumbnail stores src as the custom thumbnail of filename, scaled to
// MaxThumbnailSize and re-encoded as JPEG
func (r *Repository) SaveThumbnail(filename, src string) (string, error) {
	if !IsCharacterFile(filename) {
		filename += CharacterExt
	}
	if _, err := os.Stat(r.Path(filename)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrCharacterNotFound, filename)
	}

	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer func() { _ = in.Close() }()

	img, _, err := image.Decode(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := r.Path(ThumbnailName(filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = out.Close() }()

	if err := jpeg.Encode(out, fit(img, MaxThumbnailSize), &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	r.log.Info("Thumbnail saved", "file", filename, "path", dst)
	return dst, nil
}

// fit scales img down (nearest neighbour) so neither edge exceeds limit
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}
	nw, nh := limit, limit
	if w > h {
		nh = h * limit / w
	} else {
		nw = w * limit / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := b.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			out.Set(x, y, img.At(b.Min.X+x*w/nw, sy))
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
