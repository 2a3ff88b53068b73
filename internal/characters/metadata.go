package characters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// CharacterExt is the game's character payload extension
	CharacterExt = ".chf"
	// MetadataExt is the sidecar extension
	MetadataExt = ".json"
	// ThumbnailSuffix is appended to the stem for custom thumbnails
	ThumbnailSuffix = "_thumb.jpg"
)

// Timestamp is installed_at in a sidecar. It is written as RFC 3339 and
// also accepts Unix seconds (integer or fractional).
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return fmt.Errorf("invalid installed_at %q: %w", str, err)
		}
		t.Time = parsed
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid installed_at %s: %w", s, err)
	}
	sec, frac := math.Modf(f)
	t.Time = time.Unix(int64(sec), int64(frac*1e9))
	return nil
}

// Metadata is the JSON sidecar stored next to a .chf file
type Metadata struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url"`
	URLDetail   string    `json:"url_detail"`
	DownloadURL string    `json:"download_url"`
	Tags        []string  `json:"tags,omitempty"`
	InstalledAt Timestamp `json:"installed_at"`
}

// MetadataFor builds the sidecar for an installed record
func MetadataFor(c *Character, installedAt time.Time) Metadata {
	return Metadata{
		Name:        c.Name,
		Author:      c.Author,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		URLDetail:   c.URLDetail,
		DownloadURL: c.DownloadURL,
		Tags:        c.Tags,
		InstalledAt: Timestamp{installedAt},
	}
}

// Apply copies sidecar fields onto c, keeping fields the sidecar leaves empty
func (m *Metadata) Apply(c *Character) {
	if m.Name != "" {
		c.Name = m.Name
	}
	c.Author = m.Author
	c.Description = m.Description
	c.ImageURL = m.ImageURL
	c.URLDetail = m.URLDetail
	c.DownloadURL = m.DownloadURL
	if len(m.Tags) > 0 {
		c.Tags = m.Tags
	}
	if !m.InstalledAt.IsZero() {
		c.InstalledAt = m.InstalledAt.Time
	}
}

// ReadMetadataFile decodes a sidecar file
func ReadMetadataFile(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// WriteMetadataFile encodes m to path
func WriteMetadataFile(path string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Stem strips the extension from a filename
func Stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

// SidecarName returns the metadata filename paired with a .chf filename
func SidecarName(filename string) string {
	return Stem(filename) + MetadataExt
}

// ThumbnailName returns the custom thumbnail filename for a .chf filename
func ThumbnailName(filename string) string {
	return Stem(filename) + ThumbnailSuffix
}

// IsCharacterFile matches .chf case-insensitively
func IsCharacterFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), CharacterExt)
}

// IsMetadataFile matches .json case-insensitively
func IsMetadataFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), MetadataExt)
}

// isHidden skips dotfiles such as .tmp_ partial downloads
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// SanitizeName keeps letters, digits, spaces, '-' and '_' and trims the result
func SanitizeName(name string) string {
	return sanitize(name, "")
}

func sanitize(name, extra string) string {
	var b strings.Builder
	for _, r := range name {
		if isAlnum(r) || r == ' ' || r == '-' || r == '_' || strings.ContainsRune(extra, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
