package backup

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MaxAutoBackups is how many automatic zips are kept
	MaxAutoBackups = 5
	// AutoBackupPrefix names automatic zips in the backups root
	AutoBackupPrefix = "AutoBackup_"
)

var (
	ErrInvalidArchive = errors.New("invalid backup archive")
	ErrSourceMissing  = errors.New("backup source missing")
)

// IsBackupFile reports whether name is a .chf or .json file
func IsBackupFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".chf" || ext == ".json"
}

// UnsafeArchivePath rejects entries that could escape the extraction root
func UnsafeArchivePath(name string) bool {
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return true
	}
	return !filepath.IsLocal(filepath.FromSlash(name))
}

// CreateFullBackup zips every top-level .chf and .json of repoDir into
// zipPath and returns the number of files written
func (m *Manager) CreateFullBackup(repoDir, zipPath string) (int, error) {
	entries, err := os.ReadDir(repoDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrSourceMissing, repoDir)
		}
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(zipPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create backup directory: %w", err)
	}
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsBackupFile(name) {
			continue
		}
		if err := AddFile(zw, filepath.Join(repoDir, name), name); err != nil {
			_ = zw.Close()
			_ = os.Remove(zipPath)
			return 0, fmt.Errorf("failed to archive %s: %w", name, err)
		}
		count++
	}
	if err := zw.Close(); err != nil {
		_ = os.Remove(zipPath)
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	m.log.Info("Backup archive created", "path", zipPath, "files", count)
	return count, nil
}

// AddFile deflates the file at path into zw under name
func AddFile(zw *zip.Writer, path, name string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

// RestoreFullBackup extracts the top-level .chf and .json entries of
// zipPath into repoDir and returns how many .chf files were restored.
// Entries in subfolders or that could escape repoDir are skipped.
func (m *Manager) RestoreFullBackup(zipPath, repoDir string) (int, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrSourceMissing, zipPath)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer func() { _ = zr.Close() }()

	if err := os.MkdirAll(repoDir, 0755); err != nil {
		return 0, err
	}

	restored := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !IsBackupFile(f.Name) {
			continue
		}
		if UnsafeArchivePath(f.Name) {
			m.log.Warn("Skipping unsafe archive entry", "entry", f.Name)
			continue
		}
		// the repository is flat
		if strings.ContainsAny(f.Name, `/\`) {
			m.log.Warn("Skipping nested archive entry", "entry", f.Name)
			continue
		}
		if err := ExtractFile(f, filepath.Join(repoDir, f.Name)); err != nil {
			if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrAlgorithm) {
				return restored, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
			}
			return restored, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		if strings.EqualFold(filepath.Ext(f.Name), ".chf") {
			restored++
		}
	}
	m.log.Info("Backup archive restored", "path", zipPath, "characters", restored)
	return restored, nil
}

// ExtractFile writes one archive entry to dest
func ExtractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// AutoBackup writes AutoBackup_<timestamp>.zip of repoDir into the backups
// root and prunes all but the newest MaxAutoBackups
func (m *Manager) AutoBackup(repoDir string) (string, error) {
	path := filepath.Join(m.dir, AutoBackupPrefix+m.clock.Now().Format(TimestampFormat)+".zip")
	if _, err := m.CreateFullBackup(repoDir, path); err != nil {
		return "", err
	}

	backups, err := m.ListAutoBackups()
	if err != nil {
		return path, err
	}
	for _, old := range backups[min(len(backups), MaxAutoBackups):] {
		if err := os.Remove(old); err != nil {
			m.log.Warn("Failed to prune automatic backup", "path", old, "error", err)
		} else {
			m.log.Debug("Pruned automatic backup", "path", old)
		}
	}
	return path, nil
}

// ListAutoBackups returns automatic zips, newest first
func (m *Manager) ListAutoBackups() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(m.dir, AutoBackupPrefix+"*.zip"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}
