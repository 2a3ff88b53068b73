package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFileKeepsModTime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "zara.chf")
	if err := os.WriteFile(src, []byte("dna"), 0600); err != nil {
		t.Fatal(err)
	}
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "copy.chf")
	if err := os.WriteFile(dst, []byte("older and longer"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}

	data, _ := os.ReadFile(dst)
	if string(data) != "dna" {
		t.Fatalf("content = %q, want dna", data)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(stamp) {
		t.Fatalf("mtime = %v, want %v", info.ModTime(), stamp)
	}
}

func TestCreateCopyRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.chf")
	dst := filepath.Join(dir, "b.chf")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := CreateCopy(src, dst); !errors.Is(err, os.ErrExist) {
		t.Fatalf("CreateCopy() error = %v, want ErrExist", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "keep" {
		t.Fatalf("existing file overwritten: %q", data)
	}

	fresh := filepath.Join(dir, "c.chf")
	if err := CreateCopy(src, fresh); err != nil {
		t.Fatalf("CreateCopy() error = %v", err)
	}
	if data, _ := os.ReadFile(fresh); string(data) != "new" {
		t.Fatalf("content = %q", data)
	}
}
