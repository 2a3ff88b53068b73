package characters

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/logger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(t.TempDir(), logger.Discard())
}

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeSidecar(t *testing.T, r *Repository, chf string, m Metadata) {
	t.Helper()
	if err := r.WriteMetadata(chf, m); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
}

func TestListMergesSidecarAndThumbnail(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r.Path("zara.chf"), "payload")
	writeFile(t, r.Path("bare.chf"), "payload")
	writeFile(t, r.Path(".tmp_partial.chf"), "junk")
	writeFile(t, r.Path("zara_thumb.jpg"), "jpg")
	writeSidecar(t, r, "zara.chf", Metadata{Name: "Zara", Author: "Kiro", DownloadURL: "https://x/zara.chf"})

	list, err := r.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d entries, want 2 (hidden files skipped)", len(list))
	}

	bare, zara := list[0], list[1]
	if bare.Name != "bare" || bare.LocalFilename != "bare.chf" || bare.Status != StatusInstalled {
		t.Fatalf("unexpected bare entry: %+v", bare)
	}
	if zara.Name != "Zara" || zara.Author != "Kiro" {
		t.Fatalf("sidecar not merged: %+v", zara)
	}
	if zara.ImageURL != r.Path("zara_thumb.jpg") {
		t.Fatalf("ImageURL = %q, want thumbnail path", zara.ImageURL)
	}
}

func TestFindInstalled(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r.Path("zara.chf"), "payload")
	writeSidecar(t, r, "zara.chf", Metadata{Name: "Zara", Author: "", DownloadURL: "https://x/a.chf"})
	writeFile(t, r.Path("nova.chf"), "payload")
	writeSidecar(t, r, "nova.chf", Metadata{Name: " NOVA ", Author: "Kiro", DownloadURL: "https://x/b.chf"})
	// sidecar without payload never counts
	writeSidecar(t, r, "ghost.chf", Metadata{Name: "Ghost", DownloadURL: "https://x/ghost.chf"})

	tests := []struct {
		name     string
		incoming Character
		want     string
		found    bool
	}{
		{"exact url", Character{Name: "Other", DownloadURL: "https://x/a.chf"}, "zara.chf", true},
		{"name and author differ from authorless sidecar", Character{Name: "Zara", Author: "Kiro", DownloadURL: "https://x/new.chf"}, "", false},
		{"name only when incoming has no author", Character{Name: "zara", DownloadURL: "https://x/new.chf"}, "zara.chf", true},
		{"name and author case-insensitive", Character{Name: "nova", Author: "kiro ", DownloadURL: "https://x/c.chf"}, "nova.chf", true},
		{"same name different author", Character{Name: "Nova", Author: "Someone", DownloadURL: "https://x/d.chf"}, "", false},
		{"orphan sidecar", Character{Name: "Ghost", DownloadURL: "https://x/ghost.chf"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.FindInstalled(&tt.incoming)
			if ok != tt.found || got != tt.want {
				t.Fatalf("FindInstalled() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.found)
			}
		})
	}
}

func TestUninstall(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r.Path("Big_Joe.chf"), "payload")
	writeSidecar(t, r, "Big_Joe.chf", Metadata{Name: "Big Joe"})
	writeFile(t, r.Path("Big_Joe_thumb.jpg"), "jpg")

	c := &Character{Name: "Big Joe", Status: StatusInstalled}
	removed, err := r.Uninstall(c)
	if err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if !removed {
		t.Fatal("Uninstall() = false, want true via underscore fallback")
	}
	for _, name := range []string{"Big_Joe.chf", "Big_Joe.json", "Big_Joe_thumb.jpg"} {
		if _, err := os.Stat(r.Path(name)); !os.IsNotExist(err) {
			t.Fatalf("%s still exists", name)
		}
	}
	if c.Status != StatusNotInstalled {
		t.Fatalf("Status = %q, want not_installed", c.Status)
	}

	removed, err = r.Uninstall(&Character{Name: "Missing"})
	if err != nil || removed {
		t.Fatalf("Uninstall(missing) = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestUpdateMetadataKeepsUnknownKeys(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r.Path("zara.chf"), "payload")
	writeFile(t, r.Path("zara.json"), `{"name":"Zara","author":"Kiro","custom":"keep me"}`)

	name := "Zara Prime"
	if err := r.UpdateMetadata("zara", MetadataUpdate{Name: &name, Tags: []string{"pilot"}}); err != nil {
		t.Fatalf("UpdateMetadata() error = %v", err)
	}

	data, err := os.ReadFile(r.Path("zara.json"))
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["name"] != "Zara Prime" || doc["author"] != "Kiro" || doc["custom"] != "keep me" {
		t.Fatalf("unexpected sidecar after update: %v", doc)
	}

	if err := r.UpdateMetadata("nobody", MetadataUpdate{Name: &name}); !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("UpdateMetadata(missing) error = %v, want ErrCharacterNotFound", err)
	}
}

func TestSaveThumbnailScalesDown(t *testing.T) {
	r := newTestRepo(t)
	writeFile(t, r.Path("zara.chf"), "payload")

	src := filepath.Join(t.TempDir(), "big.png")
	img := image.NewRGBA(image.Rect(0, 0, 800, 200))
	img.Set(10, 10, color.White)
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	dst, err := r.SaveThumbnail("zara.chf", src)
	if err != nil {
		t.Fatalf("SaveThumbnail() error = %v", err)
	}
	out, err := os.Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = out.Close() }()
	cfg, format, err := image.DecodeConfig(out)
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || cfg.Width != MaxThumbnailSize || cfg.Height != 100 {
		t.Fatalf("thumbnail = %s %dx%d, want jpeg %dx100", format, cfg.Width, cfg.Height, MaxThumbnailSize)
	}
}

func TestEnsureDir(t *testing.T) {
	parent := t.TempDir()
	r := NewRepository(filepath.Join(parent, "CustomCharacters"), logger.Discard())
	if err := r.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	if info, err := os.Stat(r.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}

	deep := NewRepository(filepath.Join(parent, "missing", "CustomCharacters"), logger.Discard())
	if err := deep.EnsureDir(); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("EnsureDir() error = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestTimestampAcceptsUnixSeconds(t *testing.T) {
	var m Metadata
	if err := json.Unmarshal([]byte(`{"name":"x","installed_at":1700000000.5}`), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := time.Unix(1700000000, 500000000)
	if !m.InstalledAt.Equal(want) {
		t.Fatalf("InstalledAt = %v, want %v", m.InstalledAt.Time, want)
	}

	if err := json.Unmarshal([]byte(`{"installed_at":"2024-05-01T10:00:00Z"}`), &m); err != nil {
		t.Fatalf("Unmarshal(RFC3339) error = %v", err)
	}
	if m.InstalledAt.Year() != 2024 {
		t.Fatalf("InstalledAt = %v", m.InstalledAt.Time)
	}
}

func TestSortAndMarkInstalled(t *testing.T) {
	list := []Character{
		{Name: "beta", Downloads: 5, DownloadURL: "b"},
		{Name: "Alpha", Downloads: 50, DownloadURL: "a"},
	}
	Sort(list, SortByName)
	if list[0].Name != "Alpha" {
		t.Fatalf("SortByName first = %q", list[0].Name)
	}
	Sort(list, SortByDownloads)
	if list[0].Downloads != 50 {
		t.Fatalf("SortByDownloads first = %d", list[0].Downloads)
	}

	MarkInstalled(list, []Character{{DownloadURL: "b", LocalFilename: "beta.chf"}})
	if list[1].Status != StatusInstalled || list[1].LocalFilename != "beta.chf" {
		t.Fatalf("MarkInstalled did not flag beta: %+v", list[1])
	}
	if list[0].Status == StatusInstalled {
		t.Fatal("MarkInstalled flagged alpha")
	}
}
