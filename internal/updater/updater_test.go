package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/chfctl/internal/logger"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.10", "1.2.9", 1},
		{"v1.2.0", "1.2", 0},
		{"1.0.0", "1.0.1", -1},
		{"2.0.0-rc1", "2.0.0", -1},
		{"2.0.0", "2.0.0-rc1", 1},
		{"2.0.0-rc2", "2.0.0-rc1", 1},
		{"dev", "0.0.1", -1},
	}
	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func newServer(t *testing.T, m Manifest, binary []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(m)
	})
	mux.HandleFunc("/chfctl", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(binary)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	srv := newServer(t, Manifest{LatestVersion: "1.3.0"}, nil)

	res, err := New(srv.URL+"/manifest.json", "1.2.0", logger.Discard()).Check(context.Background())
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !res.Available || res.Manifest.LatestVersion != "1.3.0" {
		t.Fatalf("Check() = %+v", res)
	}

	res, err = New(srv.URL+"/manifest.json", "1.3.0", logger.Discard()).Check(context.Background())
	if err != nil || res.Available {
		t.Fatalf("Check() on latest = %+v, %v", res, err)
	}
}

func TestCheckErrors(t *testing.T) {
	if _, err := New("", "1.0.0", logger.Discard()).Check(context.Background()); !errors.Is(err, ErrNoManifestURL) {
		t.Fatalf("Check() error = %v, want ErrNoManifestURL", err)
	}

	srv := newServer(t, Manifest{}, nil)
	if _, err := New(srv.URL+"/manifest.json", "1.0.0", logger.Discard()).Check(context.Background()); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("Check() error = %v, want ErrInvalidManifest", err)
	}
}

func TestApply(t *testing.T) {
	binary := []byte("#!/bin/sh\necho new\n")
	sum := sha256.Sum256(binary)
	digest := hex.EncodeToString(sum[:])

	t.Run("verified", func(t *testing.T) {
		srv := newServer(t, Manifest{}, binary)
		exe := filepath.Join(t.TempDir(), "chfctl")
		if err := os.WriteFile(exe, []byte("old"), 0755); err != nil {
			t.Fatal(err)
		}

		var last int64
		m := &Manifest{LatestVersion: "2.0.0", DownloadURL: srv.URL + "/chfctl", SHA256: digest}
		err := New("", "1.0.0", logger.Discard()).Apply(context.Background(), m, exe, func(done, _ int64) { last = done })
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		data, _ := os.ReadFile(exe)
		if string(data) != string(binary) || last != int64(len(binary)) {
			t.Fatalf("binary = %q, progress = %d", data, last)
		}
		info, _ := os.Stat(exe)
		if info.Mode().Perm()&0100 == 0 {
			t.Fatalf("mode = %v, want executable", info.Mode())
		}
	})

	t.Run("checksum mismatch keeps old binary", func(t *testing.T) {
		srv := newServer(t, Manifest{}, binary)
		dir := t.TempDir()
		exe := filepath.Join(dir, "chfctl")
		if err := os.WriteFile(exe, []byte("old"), 0755); err != nil {
			t.Fatal(err)
		}

		m := &Manifest{LatestVersion: "2.0.0", DownloadURL: srv.URL + "/chfctl", SHA256: "deadbeef"}
		err := New("", "1.0.0", logger.Discard()).Apply(context.Background(), m, exe, nil)
		if !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("Apply() error = %v, want ErrChecksumMismatch", err)
		}
		data, _ := os.ReadFile(exe)
		if string(data) != "old" {
			t.Fatalf("binary replaced despite mismatch: %q", data)
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Fatalf("staged files left behind: %d entries", len(entries))
		}
	})

	t.Run("missing download url", func(t *testing.T) {
		err := New("", "1.0.0", logger.Discard()).Apply(context.Background(), &Manifest{LatestVersion: "2.0.0"}, "/nowhere", nil)
		if !errors.Is(err, ErrInvalidManifest) {
			t.Fatalf("Apply() error = %v, want ErrInvalidManifest", err)
		}
	})
}
