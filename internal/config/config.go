package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

const (
	// AppName names the config, data and cache subdirectories
	AppName = "chfctl"

	// DefaultCatalogURL is the community character catalog
	DefaultCatalogURL = "https://www.star-citizen-characters.com"

	// DefaultNewsURL is the RSI comm-link listing
	DefaultNewsURL = "https://robertsspaceindustries.com/comm-link"

	// CustomCharactersDir is the leaf folder the game reads characters from
	CustomCharactersDir = "CustomCharacters"
)

var ErrInvalidGamePath = errors.New("invalid character directory")

// Config is the persisted user configuration
type Config struct {
	// GamePath is the CustomCharacters directory of the live client
	GamePath string `toml:"game_path"`

	// OverlayEnabled toggles the stream overlay files written on install
	OverlayEnabled bool   `toml:"overlay_enabled"`
	OverlayPath    string `toml:"overlay_path"`

	// CloudSyncPath mirrors the repository into a (git) folder when set
	CloudSyncPath string `toml:"cloud_sync_path,omitempty"`

	// CustomPTUPath is an extra CustomCharacters folder for deploy-ptu
	CustomPTUPath string `toml:"custom_ptu_path,omitempty"`

	CatalogURL        string `toml:"catalog_url"`
	NewsURL           string `toml:"news_url"`
	UpdateManifestURL string `toml:"update_manifest_url,omitempty"`

	// RetryDelayMillis is the base delay of the linear download/page backoff
	RetryDelayMillis int `toml:"retry_delay_ms"`
	MaxRetries       int `toml:"max_retries"`
}

// Paths holds the resolved application directories
type Paths struct {
	ConfigFile string
	DataDir    string
	CacheDir   string
}

// ResolvePaths resolves XDG directories with env overrides
func ResolvePaths() Paths {
	homeDir, _ := os.UserHomeDir()

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		configDir = filepath.Join(homeDir, ".config")
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		cacheDir = filepath.Join(homeDir, ".cache")
	}

	configFile := os.Getenv("CHFCTL_CONFIG")
	if configFile == "" {
		configFile = filepath.Join(configDir, AppName, "config.toml")
	}

	return Paths{
		ConfigFile: configFile,
		DataDir:    filepath.Join(dataDir, AppName),
		CacheDir:   filepath.Join(cacheDir, AppName),
	}
}

// BackupsDir holds snapshot history and zip backups
func (p Paths) BackupsDir() string {
	return filepath.Join(p.DataDir, "backups")
}

// CollectionsFile is the collections JSON document
func (p Paths) CollectionsFile() string {
	return filepath.Join(p.DataDir, "collections.json")
}

// Default returns a config populated with defaults
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		GamePath:         DetectGamePath(homeDir),
		OverlayEnabled:   true,
		OverlayPath:      filepath.Join(homeDir, "Documents", "BioMetrics", "StreamKit"),
		CatalogURL:       DefaultCatalogURL,
		NewsURL:          DefaultNewsURL,
		RetryDelayMillis: 1000,
		MaxRetries:       3,
	}
}

// RetryDelay returns the backoff base as a duration
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMillis) * time.Millisecond
}

// Read decodes a config from r on top of the defaults
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// Write encodes cfg to w
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads the config file at path.
// A missing file yields defaults. A corrupt file is moved to <path>.bak and
// defaults are used. CHFCTL_GAME_DIR overrides the game path.
func Load(path string, logger *log.Logger) (*Config, error) {
	cfg, err := load(path, logger)
	if err != nil {
		return nil, err
	}
	if dir := os.Getenv("CHFCTL_GAME_DIR"); dir != "" {
		cfg.GamePath = dir
	}
	return cfg, nil
}

func load(path string, logger *log.Logger) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("No config file, using defaults", "path", path)
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, err := Read(f)
	if err != nil {
		backup := path + ".bak"
		logger.Warn("Config file is corrupt, resetting to defaults", "path", path, "backup", backup, "error", err)
		_ = f.Close()
		if rerr := os.Rename(path, backup); rerr != nil {
			logger.Warn("Failed to back up corrupt config", "error", rerr)
		}
		return Default(), nil
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Write(f, cfg)
}

func (c *Config) normalize() {
	def := Default()
	if c.CatalogURL == "" {
		c.CatalogURL = def.CatalogURL
	}
	c.CatalogURL = strings.TrimRight(c.CatalogURL, "/")
	if c.NewsURL == "" {
		c.NewsURL = def.NewsURL
	}
	if c.RetryDelayMillis < 0 {
		c.RetryDelayMillis = def.RetryDelayMillis
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = def.MaxRetries
	}
}

// ValidateGamePath checks that path is (or can become) a CustomCharacters directory.
// A missing leaf is accepted when its parent exists.
func ValidateGamePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidGamePath)
	}
	info, err := os.Stat(path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%w: %s is not a directory", ErrInvalidGamePath, path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrInvalidGamePath, err)
	}
	if parent, perr := os.Stat(filepath.Dir(path)); perr != nil || !parent.IsDir() {
		return fmt.Errorf("%w: parent of %s does not exist", ErrInvalidGamePath, path)
	}
	return nil
}

// DetectGamePath probes the usual Wine/Lutris prefixes for a LIVE client
func DetectGamePath(homeDir string) string {
	client := filepath.Join("Roberts Space Industries", "StarCitizen", "LIVE", "user", "client", "0", CustomCharactersDir)
	candidates := []string{
		filepath.Join(homeDir, "Games", "star-citizen", "drive_c", "Program Files", client),
		filepath.Join(homeDir, "Games", "star-citizen", "drive_c", "Program Files (x86)", client),
		filepath.Join(homeDir, ".wine", "drive_c", "Program Files", client),
	}
	for _, c := range candidates {
		if ValidateGamePath(c) == nil {
			return c
		}
	}
	return candidates[0]
}
