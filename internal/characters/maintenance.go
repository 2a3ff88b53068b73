package characters

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Repair defaults for synthesized sidecars
const (
	RecoveredDescription = "Recovered by maintenance"
	RecoveredTag         = "Recovered"
	UnknownAuthor        = "Unknown"
)

// RepairResult contains the outcome of a repair pass
type RepairResult struct {
	TotalScanned      int
	OrphanedMetadata  []string // sidecars deleted because their .chf is gone
	RecoveredMetadata []string // sidecars synthesized for bare .chf files
	Failures          []string
}

// IssuesFound counts what the pass touched or failed on
func (r *RepairResult) IssuesFound() int {
	return len(r.OrphanedMetadata) + len(r.RecoveredMetadata) + len(r.Failures)
}

// Repair reconciles payloads and sidecars. The directory is listed once;
// orphan sidecars are deleted, then bare payloads get a synthesized sidecar.
// Running it twice in a row changes nothing the second time.
func (r *Repository) Repair() (*RepairResult, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read character directory: %w", err)
	}

	var chfFiles, jsonFiles []string
	chfStems := make(map[string]bool)
	jsonStems := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || isHidden(name) {
			continue
		}
		switch {
		case IsCharacterFile(name):
			chfFiles = append(chfFiles, name)
			chfStems[Stem(name)] = true
		case IsMetadataFile(name):
			jsonFiles = append(jsonFiles, name)
			jsonStems[Stem(name)] = true
		}
	}

	result := &RepairResult{TotalScanned: len(chfFiles)}

	for _, name := range jsonFiles {
		if chfStems[Stem(name)] {
			continue
		}
		if err := os.Remove(r.Path(name)); err != nil {
			r.log.Warn("Failed to remove orphaned metadata", "file", name, "error", err)
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		r.log.Info("Removed orphaned metadata", "file", name)
		result.OrphanedMetadata = append(result.OrphanedMetadata, name)
	}

	for _, name := range chfFiles {
		if jsonStems[Stem(name)] {
			continue
		}
		if err := r.recoverMetadata(name); err != nil {
			r.log.Warn("Failed to recover metadata", "file", name, "error", err)
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		r.log.Info("Recovered metadata", "file", name)
		result.RecoveredMetadata = append(result.RecoveredMetadata, SidecarName(name))
	}

	return result, nil
}

func (r *Repository) recoverMetadata(filename string) error {
	info, err := os.Stat(r.Path(filename))
	if err != nil {
		return err
	}
	stem := Stem(filename)
	meta := Metadata{
		ID:          stem,
		Name:        RecoveredName(stem),
		Author:      UnknownAuthor,
		Description: RecoveredDescription,
		Tags:        []string{RecoveredTag},
		InstalledAt: Timestamp{info.ModTime()},
	}
	return r.WriteMetadata(filename, meta)
}

// RecoveredName turns a file stem into a display name: underscores become
// spaces and words are title-cased
func RecoveredName(stem string) string {
	return cases.Title(language.Und).String(strings.ReplaceAll(stem, "_", " "))
}

// IntegrityIssue is a payload that failed validation
type IntegrityIssue struct {
	Filename string
	Problem  string
}

// ValidateIntegrity flags empty or unreadable .chf files
func (r *Repository) ValidateIntegrity() ([]IntegrityIssue, error) {
	files, err := r.characterFiles()
	if err != nil {
		return nil, err
	}

	var issues []IntegrityIssue
	for _, name := range files {
		if problem := checkPayload(r.Path(name)); problem != "" {
			issues = append(issues, IntegrityIssue{Filename: name, Problem: problem})
		}
	}
	return issues, nil
}

func checkPayload(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Sprintf("Unreadable: %v", err)
	}
	if info.Size() == 0 {
		return "Empty file (0 bytes)"
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("Unreadable: %v", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Read(make([]byte, 4)); err != nil {
		return fmt.Sprintf("Unreadable: %v", err)
	}
	return ""
}

// DuplicateGroup is a set of payloads with identical content
type DuplicateGroup struct {
	Hash  string
	Files []string
}

// FindDuplicates groups .chf files by MD5 of their content
func (r *Repository) FindDuplicates() ([]DuplicateGroup, error) {
	files, err := r.characterFiles()
	if err != nil {
		return nil, err
	}

	byHash := make(map[string][]string)
	for _, name := range files {
		sum, err := hashFile(r.Path(name))
		if err != nil {
			r.log.Warn("Failed to hash character", "file", name, "error", err)
			continue
		}
		byHash[sum] = append(byHash[sum], name)
	}

	var groups []DuplicateGroup
	for sum, names := range byHash {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		groups = append(groups, DuplicateGroup{Hash: sum, Files: names})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Files[0] < groups[j].Files[0] })
	return groups, nil
}

// RemoveDuplicates keeps the first file of each group and deletes the rest
// along with their sidecars and thumbnails. Failures are skipped.
func (r *Repository) RemoveDuplicates(groups []DuplicateGroup) (removed, failed int) {
	for _, g := range groups {
		if len(g.Files) < 2 {
			continue
		}
		for _, name := range g.Files[1:] {
			if err := os.Remove(r.Path(name)); err != nil {
				r.log.Warn("Failed to remove duplicate", "file", name, "error", err)
				failed++
				continue
			}
			for _, companion := range []string{SidecarName(name), ThumbnailName(name)} {
				if err := os.Remove(r.Path(companion)); err != nil && !os.IsNotExist(err) {
					r.log.Warn("Failed to remove companion file", "file", companion, "error", err)
				}
			}
			r.log.Info("Removed duplicate", "file", name, "kept", g.Files[0])
			removed++
		}
	}
	return removed, failed
}

func (r *Repository) characterFiles() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read character directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && !isHidden(name) && IsCharacterFile(name) {
			files = append(files, name)
		}
	}
	return files, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
