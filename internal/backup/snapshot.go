package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/chfctl/internal/transfer"
)

const (
	// MaxSnapshots is the history length kept per character
	MaxSnapshots = 10
	// TimestampFormat prefixes snapshot filenames
	TimestampFormat = "20060102_150405"
	// HistoryFile is the per-character manifest
	HistoryFile = "history.json"

	// prefixLen is len(TimestampFormat) plus the joining underscore
	prefixLen = len(TimestampFormat) + 1
)

var (
	ErrNoSnapshots     = errors.New("no snapshots")
	ErrSnapshotMissing = errors.New("snapshot file missing")
)

// Clock abstracts time so snapshot names are deterministic in tests
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Entry is one snapshot in a character's history
type Entry struct {
	Timestamp    string `json:"timestamp"`
	Reason       string `json:"reason"`
	Filename     string `json:"filename"`
	OriginalPath string `json:"original_path"`
	OriginalName string `json:"original_name,omitempty"`
}

// RestoreName is the filename the snapshot restores to
func (e Entry) RestoreName() string {
	if e.OriginalName != "" {
		return e.OriginalName
	}
	if len(e.Filename) > prefixLen {
		return e.Filename[prefixLen:]
	}
	return e.Filename
}

// Manager keeps snapshot history and zip backups under one directory
type Manager struct {
	dir   string
	clock Clock
	log   *log.Logger
}

// NewManager creates a manager rooted at dir
func NewManager(dir string, clock Clock, logger *log.Logger) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	return &Manager{dir: dir, clock: clock, log: logger}
}

// Dir returns the backups root
func (m *Manager) Dir() string {
	return m.dir
}

// folder maps a .chf filename or a bare stem to its history folder. Only
// a .chf extension is stripped, so "Zara.v2" and "Zara.v2.chf" agree.
func (m *Manager) folder(name string) string {
	base := filepath.Base(name)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".chf") {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(m.dir, base)
}

// CreateSnapshot copies path (and its .json sidecar if any) into the
// character's history folder. A missing source is a no-op returning "".
// Entries beyond MaxSnapshots are dropped along with their files.
func (m *Manager) CreateSnapshot(path, reason string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	base := filepath.Base(path)
	folder := m.folder(base)
	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	ts := m.clock.Now().Format(TimestampFormat)
	filename := ts + "_" + base
	dest := filepath.Join(folder, filename)
	if err := transfer.CopyFile(path, dest); err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", base, err)
	}

	sidecar := strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	if _, err := os.Stat(sidecar); err == nil {
		if err := transfer.CopyFile(sidecar, filepath.Join(folder, sidecarSnapshot(ts, base))); err != nil {
			m.log.Warn("Failed to snapshot metadata", "file", sidecar, "error", err)
		}
	}

	history, err := m.readHistory(folder)
	if err != nil {
		m.log.Warn("Resetting unreadable snapshot history", "folder", folder, "error", err)
		history = nil
	}

	entry := Entry{
		Timestamp:    ts,
		Reason:       reason,
		Filename:     filename,
		OriginalPath: path,
		OriginalName: base,
	}
	next := []Entry{entry}
	for _, e := range history {
		// same second, same file: the new copy already replaced it
		if e.Filename != filename {
			next = append(next, e)
		}
	}
	if len(next) > MaxSnapshots {
		for _, old := range next[MaxSnapshots:] {
			m.removeSnapshotFiles(folder, old)
		}
		next = next[:MaxSnapshots]
	}

	if err := m.writeHistory(folder, next); err != nil {
		return dest, err
	}

	m.log.Info("Snapshot created", "file", base, "reason", reason, "path", dest)
	return dest, nil
}

// ListSnapshots returns a character's history, newest first
func (m *Manager) ListSnapshots(name string) ([]Entry, error) {
	history, err := m.readHistory(m.folder(name))
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []Entry{}
	}
	return history, nil
}

// RestoreLatest restores the newest snapshot of name into targetDir
func (m *Manager) RestoreLatest(name, targetDir string) (string, error) {
	history, err := m.ListSnapshots(name)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoSnapshots, name)
	}
	return m.RestoreSnapshot(name, history[0], targetDir)
}

// RestoreSnapshot copies a specific snapshot (and its sidecar) back into targetDir
func (m *Manager) RestoreSnapshot(name string, entry Entry, targetDir string) (string, error) {
	folder := m.folder(name)
	src := filepath.Join(folder, entry.Filename)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSnapshotMissing, entry.Filename)
	}

	original := entry.RestoreName()
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", err
	}
	dest := filepath.Join(targetDir, original)
	if err := transfer.CopyFile(src, dest); err != nil {
		return "", fmt.Errorf("failed to restore %s: %w", original, err)
	}

	sidecar := filepath.Join(folder, sidecarSnapshot(entry.Timestamp, original))
	if _, err := os.Stat(sidecar); err == nil {
		if err := transfer.CopyFile(sidecar, filepath.Join(targetDir, stem(original)+".json")); err != nil {
			m.log.Warn("Failed to restore metadata", "file", original, "error", err)
		}
	}

	m.log.Info("Snapshot restored", "file", original, "timestamp", entry.Timestamp)
	return dest, nil
}

func (m *Manager) removeSnapshotFiles(folder string, e Entry) {
	for _, name := range []string{e.Filename, sidecarSnapshot(e.Timestamp, e.RestoreName())} {
		if err := os.Remove(filepath.Join(folder, name)); err != nil && !os.IsNotExist(err) {
			m.log.Warn("Failed to remove old snapshot", "file", name, "error", err)
		}
	}
}

func (m *Manager) readHistory(folder string) ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(folder, HistoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var history []Entry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot history: %w", err)
	}
	return history, nil
}

func (m *Manager) writeHistory(folder string, history []Entry) error {
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(folder, HistoryFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot history: %w", err)
	}
	return nil
}

func sidecarSnapshot(ts, filename string) string {
	return ts + "_" + stem(filename) + ".json"
}

func stem(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
