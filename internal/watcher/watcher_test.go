package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/logger"
)

func TestRelevant(t *testing.T) {
	tests := map[string]bool{
		"zara.chf":       true,
		"zara.JSON":      true,
		"zara_thumb.jpg": false,
		".tmp_zara.chf":  false,
		"notes.txt":      false,
	}
	for name, want := range tests {
		if got := Relevant(name); got != want {
			t.Errorf("Relevant(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestRunDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, 50*time.Millisecond, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(files []string) { changes <- files })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	for _, name := range []string{"zara.chf", "zara.json", "ignored.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case files := <-changes:
		if !slices.Equal(files, []string{"zara.chf", "zara.json"}) {
			t.Fatalf("onChange(%v), want the payload and sidecar", files)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func TestRunMissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), 0, logger.Discard())
	if err := w.Run(context.Background(), func([]string) {}); err == nil {
		t.Fatal("Run() on a missing directory should fail")
	}
}
