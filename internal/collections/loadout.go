package collections

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/characters"
)

const (
	// ManifestName is the pack descriptor inside an exported zip
	ManifestName = "manifest.json"
	// ManifestVersion is written into exported packs
	ManifestVersion = 1
	// ManifestType marks a collection pack
	ManifestType = "collection"
	// PackExt is the conventional extension for exported packs
	PackExt = ".scpack"
)

var ErrEmptyCollection = errors.New("collection is empty")

// Manifest describes an exported collection pack
type Manifest struct {
	Version        int      `json:"version"`
	Type           string   `json:"type"`
	CollectionName string   `json:"collection_name"`
	Characters     []string `json:"characters"`
}

// Deployer swaps the active repository contents for a collection
type Deployer struct {
	repo        *characters.Repository
	collections *Manager
	log         *log.Logger
}

// NewDeployer creates a deployer for repo using collections
func NewDeployer(repo *characters.Repository, collections *Manager, logger *log.Logger) *Deployer {
	return &Deployer{repo: repo, collections: collections, log: logger}
}

// Deploy moves every character of the repository root into storage, then
// moves the members of the named collection back. Custom thumbnails move
// with their character. Single-file failures
// are logged and skipped. Returns how many members were deployed and how
// many characters were moved into storage.
func (d *Deployer) Deploy(name string) (deployed, stored int, err error) {
	members, ok := d.collections.Members(name)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	root := d.repo.Dir()
	if _, err := os.Stat(root); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", characters.ErrDirectoryUnavailable, err)
	}
	if err := d.repo.EnsureStorageDir(); err != nil {
		return 0, 0, err
	}
	storage := d.repo.StorageDir()

	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read character directory: %w", err)
	}
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || strings.HasPrefix(fname, ".") || !backup.IsBackupFile(fname) {
			continue
		}
		if err := os.Rename(filepath.Join(root, fname), filepath.Join(storage, fname)); err != nil {
			d.log.Error("Failed to move to storage", "file", fname, "error", err)
			continue
		}
		if characters.IsCharacterFile(fname) {
			stored++
			d.moveCompanion(root, storage, characters.ThumbnailName(fname))
		}
	}

	index := d.storageIndex()
	for _, member := range members {
		stem, ok := index[member]
		if !ok {
			stem = member
		}
		chf := stem + characters.CharacterExt
		if _, err := os.Stat(filepath.Join(storage, chf)); err != nil {
			d.log.Warn("Collection member not found in storage", "collection", name, "member", member)
			continue
		}
		if err := os.Rename(filepath.Join(storage, chf), filepath.Join(root, chf)); err != nil {
			d.log.Error("Failed to deploy character", "member", member, "error", err)
			continue
		}
		sidecar := characters.SidecarName(chf)
		if err := os.Rename(filepath.Join(storage, sidecar), filepath.Join(root, sidecar)); err != nil && !os.IsNotExist(err) {
			d.log.Warn("Failed to deploy metadata", "member", member, "error", err)
		}
		d.moveCompanion(storage, root, characters.ThumbnailName(chf))
		deployed++
	}

	d.log.Info("Loadout deployed", "collection", name, "deployed", deployed, "stored", stored)
	return deployed, stored, nil
}

// moveCompanion moves an optional file that travels with a .chf
func (d *Deployer) moveCompanion(from, to, name string) {
	if err := os.Rename(filepath.Join(from, name), filepath.Join(to, name)); err != nil && !os.IsNotExist(err) {
		d.log.Warn("Failed to move companion file", "file", name, "error", err)
	}
}

// storageIndex maps sidecar names to file stems for pairs in storage
func (d *Deployer) storageIndex() map[string]string {
	storage := d.repo.StorageDir()
	entries, err := os.ReadDir(storage)
	if err != nil {
		return map[string]string{}
	}

	index := make(map[string]string)
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || !characters.IsMetadataFile(fname) {
			continue
		}
		stem := characters.Stem(fname)
		if _, err := os.Stat(filepath.Join(storage, stem+characters.CharacterExt)); err != nil {
			continue
		}
		meta, err := characters.ReadMetadataFile(filepath.Join(storage, fname))
		if err != nil || meta.Name == "" {
			continue
		}
		if _, taken := index[meta.Name]; !taken {
			index[meta.Name] = stem
		}
	}
	return index
}

// Export zips the installed members of a collection with a manifest.
// Members are matched by sidecar name, then by filename stem. Returns
// how many characters were packed.
func (d *Deployer) Export(name, zipPath string) (int, error) {
	members, ok := d.collections.Members(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(members) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptyCollection, name)
	}

	installed, err := d.repo.List()
	if err != nil {
		return 0, err
	}
	byName := make(map[string]string)
	byStem := make(map[string]string)
	for _, c := range installed {
		if _, taken := byName[c.Name]; !taken {
			byName[c.Name] = c.LocalFilename
		}
		byStem[characters.Stem(c.LocalFilename)] = c.LocalFilename
	}

	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return 0, err
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create pack: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	fail := func(err error) (int, error) {
		_ = zw.Close()
		_ = os.Remove(zipPath)
		return 0, err
	}

	manifest, err := json.MarshalIndent(Manifest{
		Version:        ManifestVersion,
		Type:           ManifestType,
		CollectionName: name,
		Characters:     members,
	}, "", "  ")
	if err != nil {
		return fail(err)
	}
	w, err := zw.Create(ManifestName)
	if err != nil {
		return fail(err)
	}
	if _, err := w.Write(manifest); err != nil {
		return fail(err)
	}

	packed := 0
	for _, member := range members {
		filename, ok := byName[member]
		if !ok {
			filename, ok = byStem[member]
		}
		if !ok {
			d.log.Warn("Collection member not installed, skipping", "member", member)
			continue
		}
		if err := backup.AddFile(zw, d.repo.Path(filename), filename); err != nil {
			return fail(fmt.Errorf("failed to pack %s: %w", filename, err))
		}
		for _, companion := range []string{characters.SidecarName(filename), characters.ThumbnailName(filename)} {
			if _, err := os.Stat(d.repo.Path(companion)); err != nil {
				continue
			}
			if err := backup.AddFile(zw, d.repo.Path(companion), companion); err != nil {
				return fail(fmt.Errorf("failed to pack %s: %w", companion, err))
			}
		}
		packed++
	}

	if err := zw.Close(); err != nil {
		_ = os.Remove(zipPath)
		return 0, fmt.Errorf("failed to finalize pack: %w", err)
	}
	d.log.Info("Collection exported", "collection", name, "path", zipPath, "characters", packed)
	return packed, nil
}

// ImportResult describes an imported pack
type ImportResult struct {
	Collection string
	Characters int
	Files      int
}

// Import extracts a pack into the repository root and, when it carries a
// manifest, recreates its collection
func (d *Deployer) Import(zipPath string) (*ImportResult, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", backup.ErrSourceMissing, zipPath)
		}
		return nil, fmt.Errorf("%w: %v", backup.ErrInvalidArchive, err)
	}
	defer func() { _ = zr.Close() }()

	if err := d.repo.EnsureDir(); err != nil {
		return nil, err
	}

	result := &ImportResult{}
	var manifest *Manifest
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if UnsafeEntry(f.Name) {
			d.log.Warn("Skipping unsafe pack entry", "entry", f.Name)
			continue
		}
		if f.Name == ManifestName {
			m, err := readManifest(f)
			if err != nil {
				d.log.Warn("Ignoring unreadable pack manifest", "error", err)
				continue
			}
			manifest = m
			continue
		}
		if !packable(f.Name) {
			continue
		}
		if err := backup.ExtractFile(f, d.repo.Path(f.Name)); err != nil {
			return result, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		result.Files++
		if characters.IsCharacterFile(f.Name) {
			result.Characters++
		}
	}

	if manifest != nil && manifest.CollectionName != "" {
		if _, err := d.collections.Create(manifest.CollectionName); err != nil {
			return result, err
		}
		for _, member := range manifest.Characters {
			if err := d.collections.AddMember(manifest.CollectionName, member); err != nil {
				return result, err
			}
		}
		result.Collection = manifest.CollectionName
	}

	d.log.Info("Pack imported", "path", zipPath, "collection", result.Collection, "characters", result.Characters)
	return result, nil
}

// UnsafeEntry rejects pack entries outside the flat root
func UnsafeEntry(name string) bool {
	return backup.UnsafeArchivePath(name) || strings.ContainsAny(name, `/\`)
}

func packable(name string) bool {
	if backup.IsBackupFile(name) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jpg" || ext == ".jpeg"
}

func readManifest(f *zip.File) (*Manifest, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, 1<<20))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Summary pairs each collection with its member count, in order
type Summary struct {
	Name    string
	Members int
}

// Summaries lists collections with their sizes
func (m *Manager) Summaries() []Summary {
	names := m.Names()
	out := make([]Summary, 0, len(names))
	for _, n := range names {
		items, _ := m.Members(n)
		out = append(out, Summary{Name: n, Members: len(items)})
	}
	return out
}
