package cloudsync

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/logger"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestSyncCopiesCharacterFiles(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"zara.chf":       "dna",
		"zara.json":      `{"name":"Zara"}`,
		"zara_thumb.jpg": "jpg",
		".tmp_nova.chf":  "partial",
	})
	target := t.TempDir()
	s := New(target, logger.Discard())

	result, err := s.Sync(repo)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.Copied != 2 || result.Committed {
		t.Fatalf("Sync() = %+v, want 2 copied and no commit", result)
	}
	if _, err := os.Stat(filepath.Join(target, "zara.chf")); err != nil {
		t.Fatal("zara.chf not synced")
	}
	if _, err := os.Stat(filepath.Join(target, ".tmp_nova.chf")); !os.IsNotExist(err) {
		t.Fatal("partial download should not be synced")
	}
}

func TestSyncMissingTarget(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope"), logger.Discard())
	if _, err := s.Sync(t.TempDir()); !errors.Is(err, ErrTargetMissing) {
		t.Fatalf("Sync() error = %v, want ErrTargetMissing", err)
	}
}

func TestSyncCommitsWhenGitRepo(t *testing.T) {
	repo := writeRepo(t, map[string]string{"zara.chf": "v1", "zara.json": `{"name":"Zara"}`})
	target := filepath.Join(t.TempDir(), "cloud")
	s := New(target, logger.Discard())
	s.now = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if !s.IsGitRepo() {
		t.Fatal("IsGitRepo() = false after Init")
	}

	first, err := s.Sync(repo)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !first.Committed || len(first.Commit) != 40 {
		t.Fatalf("first Sync() = %+v, want a commit", first)
	}

	second, err := s.Sync(repo)
	if err != nil {
		t.Fatal(err)
	}
	if second.Committed {
		t.Fatal("unchanged sync should not commit")
	}

	if err := os.WriteFile(filepath.Join(repo, "zara.chf"), []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}
	third, err := s.Sync(repo)
	if err != nil {
		t.Fatal(err)
	}
	if !third.Committed || third.Commit == first.Commit {
		t.Fatalf("changed sync = %+v, want a new commit", third)
	}

	history, err := s.History(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("History() = %v, want 2 commits", history)
	}
}
