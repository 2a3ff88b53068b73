package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bnema/chfctl/internal/logger"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"), logger.Discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.OverlayEnabled {
		t.Fatalf("OverlayEnabled = false, want true by default")
	}
	if cfg.CatalogURL != DefaultCatalogURL {
		t.Fatalf("CatalogURL = %q, want %q", cfg.CatalogURL, DefaultCatalogURL)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.GamePath = "/games/sc/CustomCharacters"
	cfg.OverlayEnabled = false
	cfg.CatalogURL = "http://catalog.local/"
	cfg.CustomPTUPath = "/games/ptu/CustomCharacters"

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path, logger.Discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.GamePath != cfg.GamePath {
		t.Fatalf("GamePath = %q, want %q", got.GamePath, cfg.GamePath)
	}
	if got.OverlayEnabled {
		t.Fatalf("OverlayEnabled = true, want false")
	}
	if got.CatalogURL != "http://catalog.local" {
		t.Fatalf("CatalogURL = %q, want trailing slash trimmed", got.CatalogURL)
	}
	if got.CustomPTUPath != cfg.CustomPTUPath {
		t.Fatalf("CustomPTUPath = %q, want %q", got.CustomPTUPath, cfg.CustomPTUPath)
	}
}

func TestLoadCorruptFileIsBackedUp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("game_path = [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, logger.Discard())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CatalogURL != DefaultCatalogURL {
		t.Fatalf("expected defaults after corrupt config, got %+v", cfg)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup of corrupt config: %v", err)
	}
}

func TestGameDirEnvOverride(t *testing.T) {
	t.Setenv("CHFCTL_GAME_DIR", "/override/CustomCharacters")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.GamePath != "/override/CustomCharacters" {
		t.Fatalf("GamePath = %q", cfg.GamePath)
	}
}

func TestValidateGamePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing dir", root, false},
		{"missing leaf with parent", filepath.Join(root, CustomCharactersDir), false},
		{"missing parent", filepath.Join(root, "a", "b", CustomCharactersDir), true},
		{"regular file", file, true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGamePath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateGamePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestResolvePathsHonoursXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("CHFCTL_CONFIG", "")

	p := ResolvePaths()
	if p.DataDir != filepath.Join("/xdg/data", AppName) {
		t.Fatalf("DataDir = %q", p.DataDir)
	}
	if !strings.HasPrefix(p.ConfigFile, "/xdg/config") {
		t.Fatalf("ConfigFile = %q", p.ConfigFile)
	}
	if p.BackupsDir() != filepath.Join("/xdg/data", AppName, "backups") {
		t.Fatalf("BackupsDir = %q", p.BackupsDir())
	}
}
