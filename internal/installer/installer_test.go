package installer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/logger"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type recordingNotifier struct {
	names []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, c *characters.Character) error {
	n.names = append(n.names, c.Name)
	return n.err
}

type fixture struct {
	repo     *characters.Repository
	backups  *backup.Manager
	inst     *Installer
	notifier *recordingNotifier
	hits     *atomic.Int32
	server   *httptest.Server
}

// newFixture serves body for every path except /empty (zero bytes) and
// /broken (500)
func newFixture(t *testing.T, body string) *fixture {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/empty"):
			w.WriteHeader(http.StatusOK)
		case strings.HasPrefix(r.URL.Path, "/broken"):
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	repo := characters.NewRepository(filepath.Join(t.TempDir(), "CustomCharacters"), logger.Discard())
	backups := backup.NewManager(filepath.Join(t.TempDir(), "backups"), fixedClock{now}, logger.Discard())
	notifier := &recordingNotifier{}
	inst := New(repo, backups, logger.Discard(),
		WithRetry(DefaultMaxAttempts, time.Millisecond),
		WithNotifier(notifier),
		WithClock(func() time.Time { return now }),
	)
	return &fixture{repo: repo, backups: backups, inst: inst, notifier: notifier, hits: &hits, server: srv}
}

func TestInstallWritesPayloadAndSidecar(t *testing.T) {
	f := newFixture(t, "dna-payload")
	c := &characters.Character{Name: "Zara", Author: "Kiro", DownloadURL: f.server.URL + "/files/zara_v2.chf"}

	if err := f.inst.Install(context.Background(), c); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if c.Status != characters.StatusInstalled || c.LocalFilename != "zara_v2.chf" {
		t.Fatalf("record = %+v", c)
	}

	data, err := os.ReadFile(f.repo.Path("zara_v2.chf"))
	if err != nil || string(data) != "dna-payload" {
		t.Fatalf("payload = %q, %v", data, err)
	}
	meta, err := characters.ReadMetadataFile(f.repo.Path("zara_v2.json"))
	if err != nil {
		t.Fatalf("sidecar: %v", err)
	}
	if meta.Name != "Zara" || meta.Author != "Kiro" || meta.DownloadURL != c.DownloadURL {
		t.Fatalf("sidecar = %+v", meta)
	}
	if len(f.notifier.names) != 1 || f.notifier.names[0] != "Zara" {
		t.Fatalf("notifier saw %v", f.notifier.names)
	}

	entries, _ := os.ReadDir(f.repo.Dir())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TempPrefix) {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	f := newFixture(t, "dna")
	c := &characters.Character{Name: "Zara", Author: "Kiro", DownloadURL: f.server.URL + "/zara.chf"}

	if err := f.inst.Install(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	again := &characters.Character{Name: "Zara", Author: "Kiro", DownloadURL: f.server.URL + "/zara.chf"}
	if err := f.inst.Install(context.Background(), again); err != nil {
		t.Fatal(err)
	}

	if got := f.hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
	if again.Status != characters.StatusInstalled || again.LocalFilename != "zara.chf" {
		t.Fatalf("second install = %+v", again)
	}
}

func TestInstallDuplicateBySameURLOtherName(t *testing.T) {
	f := newFixture(t, "dna")
	url := f.server.URL + "/z.chf"
	first := &characters.Character{Name: "Zara", Author: "Nova", DownloadURL: url}
	if err := f.inst.Install(context.Background(), first); err != nil {
		t.Fatal(err)
	}

	other := &characters.Character{Name: "Other", Author: "Someone", DownloadURL: url}
	if err := f.inst.Install(context.Background(), other); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	if got := f.hits.Load(); got != 1 {
		t.Fatalf("server hit %d times, want 1", got)
	}
	if other.Status != characters.StatusInstalled || other.LocalFilename != "z.chf" {
		t.Fatalf("second install = %+v", other)
	}

	entries, err := os.ReadDir(f.repo.Dir())
	if err != nil {
		t.Fatal(err)
	}
	chf := 0
	for _, e := range entries {
		if characters.IsCharacterFile(e.Name()) {
			chf++
		}
	}
	if chf != 1 {
		t.Fatalf("%d .chf files on disk, want 1", chf)
	}
}

func TestInstallDuplicateByNameAndAuthor(t *testing.T) {
	tests := []struct {
		name     string
		incoming characters.Character
		wantHit  bool
	}{
		{"same name and author", characters.Character{Name: " zara ", Author: "KIRO"}, false},
		{"same name other author", characters.Character{Name: "Zara", Author: "Someone"}, true},
		{"same name no author", characters.Character{Name: "ZARA"}, false},
		{"different name", characters.Character{Name: "Nova", Author: "Kiro"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "dna")
			first := &characters.Character{Name: "Zara", Author: "Kiro", DownloadURL: f.server.URL + "/a/zara.chf"}
			if err := f.inst.Install(context.Background(), first); err != nil {
				t.Fatal(err)
			}

			incoming := tt.incoming
			incoming.DownloadURL = f.server.URL + "/b/other.chf"
			if err := f.inst.Install(context.Background(), &incoming); err != nil {
				t.Fatal(err)
			}

			downloaded := f.hits.Load() == 2
			if downloaded != tt.wantHit {
				t.Fatalf("downloaded = %v, want %v", downloaded, tt.wantHit)
			}
		})
	}
}

func TestInstallErrors(t *testing.T) {
	f := newFixture(t, "dna")

	t.Run("no download url", func(t *testing.T) {
		c := &characters.Character{Name: "Zara"}
		err := f.inst.Install(context.Background(), c)
		if !errors.Is(err, ErrNoDownloadURL) || KindOf(err) != KindNoDownloadURL {
			t.Fatalf("Install() error = %v, want NoDownloadURL", err)
		}
		if c.Status != characters.StatusError {
			t.Fatalf("Status = %s, want error", c.Status)
		}
	})

	t.Run("empty download", func(t *testing.T) {
		c := &characters.Character{Name: "Void", DownloadURL: f.server.URL + "/empty/void.chf"}
		if err := f.inst.Install(context.Background(), c); !errors.Is(err, ErrEmptyDownload) {
			t.Fatalf("Install() error = %v, want EmptyDownload", err)
		}
		if _, err := os.Stat(f.repo.Path("void.chf")); !os.IsNotExist(err) {
			t.Fatal("empty download should not leave a file")
		}
		if _, err := os.Stat(f.repo.Path(TempPrefix + "void.chf")); !os.IsNotExist(err) {
			t.Fatal("empty download should remove the temp file")
		}
	})

	t.Run("download failed after retries", func(t *testing.T) {
		before := f.hits.Load()
		c := &characters.Character{Name: "Gone", DownloadURL: f.server.URL + "/broken/gone.chf"}
		err := f.inst.Install(context.Background(), c)
		if !errors.Is(err, ErrDownloadFailed) {
			t.Fatalf("Install() error = %v, want DownloadFailed", err)
		}
		if got := f.hits.Load() - before; got != DefaultMaxAttempts {
			t.Fatalf("made %d attempts, want %d", got, DefaultMaxAttempts)
		}
		if c.Status != characters.StatusError {
			t.Fatalf("Status = %s, want error", c.Status)
		}
	})

	t.Run("directory unavailable", func(t *testing.T) {
		repo := characters.NewRepository(filepath.Join(t.TempDir(), "missing", "CustomCharacters"), logger.Discard())
		inst := New(repo, f.backups, logger.Discard())
		c := &characters.Character{Name: "Zara", DownloadURL: f.server.URL + "/zara.chf"}
		if err := inst.Install(context.Background(), c); !errors.Is(err, ErrDirectoryUnavailable) {
			t.Fatalf("Install() error = %v, want DirectoryUnavailable", err)
		}
	})
}

func TestInstallSnapshotsOccupiedPath(t *testing.T) {
	f := newFixture(t, "new-version")
	if err := f.repo.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	// same filename, no sidecar: not a duplicate but a collision
	if err := os.WriteFile(f.repo.Path("zara.chf"), []byte("old-version"), 0644); err != nil {
		t.Fatal(err)
	}

	c := &characters.Character{Name: "Zara", Author: "Kiro", DownloadURL: f.server.URL + "/zara.chf"}
	if err := f.inst.Install(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	history, err := f.backups.ListSnapshots("zara")
	if err != nil || len(history) != 1 {
		t.Fatalf("ListSnapshots() = (%v, %v), want one entry", history, err)
	}
	if history[0].Reason != SnapshotReason {
		t.Fatalf("reason = %q, want %q", history[0].Reason, SnapshotReason)
	}
	data, _ := os.ReadFile(filepath.Join(f.backups.Dir(), "zara", history[0].Filename))
	if string(data) != "old-version" {
		t.Fatalf("snapshot content = %q", data)
	}
	data, _ = os.ReadFile(f.repo.Path("zara.chf"))
	if string(data) != "new-version" {
		t.Fatalf("installed content = %q", data)
	}
}

func TestInstallNotifierFailureIsIgnored(t *testing.T) {
	f := newFixture(t, "dna")
	f.notifier.err = errors.New("overlay offline")

	c := &characters.Character{Name: "Zara", DownloadURL: f.server.URL + "/zara.chf"}
	if err := f.inst.Install(context.Background(), c); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if c.Status != characters.StatusInstalled {
		t.Fatalf("Status = %s, want installed", c.Status)
	}
}

func TestInstallFromURL(t *testing.T) {
	f := newFixture(t, "dna")

	c, err := f.inst.InstallFromURL(context.Background(), f.server.URL+"/dl/Nova%20Prime.chf")
	if err != nil {
		t.Fatalf("InstallFromURL() error = %v", err)
	}
	if c.Name != "Nova Prime" || c.LocalFilename != "Nova Prime.chf" {
		t.Fatalf("record = %+v", c)
	}

	if _, err := f.inst.InstallFromURL(context.Background(), "ftp://example.com/x.chf"); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("InstallFromURL(ftp) error = %v, want InvalidSource", err)
	}
}

func TestInstallFromFileUniquifies(t *testing.T) {
	f := newFixture(t, "")
	src := filepath.Join(t.TempDir(), "zara.chf")
	if err := os.WriteFile(src, []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}

	want := []string{"zara.chf", "zara_1.chf", "zara_2.chf"}
	for _, w := range want {
		got, err := f.inst.InstallFromFile(src)
		if err != nil {
			t.Fatalf("InstallFromFile() error = %v", err)
		}
		if got != w {
			t.Fatalf("InstallFromFile() = %q, want %q", got, w)
		}
	}

	if _, err := f.inst.InstallFromFile(filepath.Join(t.TempDir(), "missing.chf")); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("missing source error = %v, want InvalidSource", err)
	}
	txt := filepath.Join(t.TempDir(), "notes.txt")
	_ = os.WriteFile(txt, []byte("x"), 0644)
	if _, err := f.inst.InstallFromFile(txt); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("non-chf source error = %v, want InvalidSource", err)
	}
}

func TestFilenameFor(t *testing.T) {
	tests := []struct {
		name string
		c    characters.Character
		want string
	}{
		{"url basename", characters.Character{Name: "Zara", DownloadURL: "https://cdn/x/zara_v2.chf"}, "zara_v2.chf"},
		{"escaped basename", characters.Character{Name: "Zara", DownloadURL: "https://cdn/x/Zara%20One.chf"}, "Zara One.chf"},
		{"no extension", characters.Character{Name: "Zara: the Pilot!", DownloadURL: "https://cdn/dna?id=4"}, "Zara the Pilot.chf"},
		{"nothing usable", characters.Character{Name: "???", DownloadURL: "https://cdn/dna"}, "character.chf"},
		{"hidden basename", characters.Character{Name: "Zara", DownloadURL: "https://cdn/.chf"}, "Zara.chf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilenameFor(&tt.c); got != tt.want {
				t.Fatalf("FilenameFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUninstallSnapshotsFirst(t *testing.T) {
	f := newFixture(t, "dna")
	c := &characters.Character{Name: "Zara", DownloadURL: f.server.URL + "/zara.chf"}
	if err := f.inst.Install(context.Background(), c); err != nil {
		t.Fatal(err)
	}

	removed, err := f.inst.Uninstall(c, true)
	if err != nil || !removed {
		t.Fatalf("Uninstall() = (%v, %v)", removed, err)
	}
	if _, err := os.Stat(f.repo.Path("zara.chf")); !os.IsNotExist(err) {
		t.Fatal("payload still present")
	}

	history, err := f.backups.ListSnapshots("zara")
	if err != nil || len(history) != 1 || history[0].Reason != UninstallReason {
		t.Fatalf("ListSnapshots() = (%v, %v)", history, err)
	}
	if _, err := f.backups.RestoreLatest("zara", f.repo.Dir()); err != nil {
		t.Fatalf("RestoreLatest() error = %v", err)
	}
	if _, err := os.Stat(f.repo.Path("zara.chf")); err != nil {
		t.Fatal("restore did not bring the payload back")
	}
}
