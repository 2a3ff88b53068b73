package characters

import (
	"sort"
	"strings"
	"time"
)

// Status is the lifecycle state of a character record
type Status string

const (
	StatusNotInstalled Status = "not_installed"
	StatusDownloading  Status = "downloading"
	StatusInstalled    Status = "installed"
	StatusError        Status = "error"
)

// NewThreshold is how long after creation a catalog entry counts as new
const NewThreshold = 7 * 24 * time.Hour

// Character is a catalog entry or an installed character file
type Character struct {
	Name        string   `json:"name"`
	Author      string   `json:"author"`
	AuthorImage string   `json:"author_image,omitempty"`
	URLDetail   string   `json:"url_detail"`
	ImageURL    string   `json:"image_url"`
	DownloadURL string   `json:"download_url"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   int      `json:"downloads"`
	Likes       int      `json:"likes"`
	CreatedAt   string   `json:"created_at,omitempty"`

	// Runtime state, rebuilt on every scan or fetch
	Status        Status    `json:"-"`
	LocalFilename string    `json:"-"`
	InstalledAt   time.Time `json:"-"`
}

// IsInstalled reports whether the record points at a file in the repository
func (c *Character) IsInstalled() bool {
	return c.Status == StatusInstalled
}

// Created parses CreatedAt, returning the zero time when absent or malformed
func (c *Character) Created() time.Time {
	if c.CreatedAt == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, c.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsNew returns true if the entry was published recently
func (c *Character) IsNew() bool {
	created := c.Created()
	if created.IsZero() {
		return false
	}
	return time.Since(created) < NewThreshold
}

// SortOrder selects the ordering used by Sort
type SortOrder int

const (
	SortByName SortOrder = iota
	SortByDownloads
	SortByLikes
	SortByRecent
)

func (s SortOrder) String() string {
	switch s {
	case SortByDownloads:
		return "Downloads"
	case SortByLikes:
		return "Likes"
	case SortByRecent:
		return "Recent"
	default:
		return "Name"
	}
}

// Next cycles through the sort orders
func (s SortOrder) Next() SortOrder {
	return (s + 1) % 4
}

// Sort orders list in place
func Sort(list []Character, order SortOrder) {
	switch order {
	case SortByDownloads:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Downloads > list[j].Downloads })
	case SortByLikes:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Likes > list[j].Likes })
	case SortByRecent:
		sort.SliceStable(list, func(i, j int) bool { return list[i].Created().After(list[j].Created()) })
	default:
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
		})
	}
}

// MarkInstalled flags catalog entries whose download URL is already installed
func MarkInstalled(list []Character, installed []Character) {
	byURL := make(map[string]string, len(installed))
	for _, c := range installed {
		if c.DownloadURL != "" {
			byURL[c.DownloadURL] = c.LocalFilename
		}
	}
	for i := range list {
		if filename, ok := byURL[list[i].DownloadURL]; ok {
			list[i].Status = StatusInstalled
			list[i].LocalFilename = filename
		}
	}
}
