package cloudsync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/bnema/chfctl/internal/backup"
	"github.com/bnema/chfctl/internal/transfer"
)

const (
	// CommitAuthor signs sync commits
	CommitAuthor = "chfctl"
	CommitEmail  = "chfctl@localhost"
)

var (
	ErrTargetMissing = errors.New("sync directory does not exist")
	ErrNotGitRepo    = errors.New("not a git repository")
)

// Result describes one sync run
type Result struct {
	Copied    int
	Committed bool
	Commit    string
}

// Syncer mirrors the character repository into a sync directory (a cloud
// drive folder) and versions it when that directory is a git repository
type Syncer struct {
	dir string
	log *log.Logger
	now func() time.Time
}

// New creates a syncer targeting dir
func New(dir string, logger *log.Logger) *Syncer {
	return &Syncer{dir: dir, log: logger, now: time.Now}
}

// Dir returns the sync directory
func (s *Syncer) Dir() string {
	return s.dir
}

// IsGitRepo checks if the sync directory is a git repository
func (s *Syncer) IsGitRepo() bool {
	_, err := git.PlainOpen(s.dir)
	return err == nil
}

// Init turns the sync directory into a git repository, creating it if needed
func (s *Syncer) Init() error {
	if s.IsGitRepo() {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create sync directory: %w", err)
	}
	if _, err := git.PlainInit(s.dir, false); err != nil {
		return fmt.Errorf("failed to init repository: %w", err)
	}
	s.log.Info("Initialized sync repository", "path", s.dir)
	return nil
}

// Sync copies every top-level .chf and .json of repoDir into the sync
// directory. When the directory is a git repository, changes are staged
// and committed.
func (s *Syncer) Sync(repoDir string) (*Result, error) {
	if s.dir == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrTargetMissing)
	}
	if info, err := os.Stat(s.dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrTargetMissing, s.dir)
	}

	entries, err := os.ReadDir(repoDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read character directory: %w", err)
	}

	result := &Result{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !backup.IsBackupFile(name) {
			continue
		}
		if err := transfer.CopyFile(filepath.Join(repoDir, name), filepath.Join(s.dir, name)); err != nil {
			return result, fmt.Errorf("failed to sync %s: %w", name, err)
		}
		result.Copied++
	}
	s.log.Info("Files synced", "count", result.Copied, "path", s.dir)

	if !s.IsGitRepo() {
		return result, nil
	}

	hash, err := s.commit(fmt.Sprintf("Sync %d character files", result.Copied))
	if err != nil {
		return result, err
	}
	if hash != "" {
		result.Committed = true
		result.Commit = hash
	}
	return result, nil
}

// commit stages everything and commits it, returning "" when clean
func (s *Syncer) commit(message string) (string, error) {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotGitRepo, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("failed to stage changes: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	if status.IsClean() {
		s.log.Debug("Sync repository already up to date")
		return "", nil
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  CommitAuthor,
			Email: CommitEmail,
			When:  s.now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Info("Sync committed", "commit", hash.String()[:7])
	return hash.String(), nil
}

// History returns up to limit commit summaries, newest first
func (s *Syncer) History(limit int) ([]string, error) {
	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotGitRepo, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var lines []string
	for len(lines) < limit {
		c, err := iter.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return lines, err
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			c.Hash.String()[:7], c.Author.When.Format("2006-01-02 15:04"), strings.TrimSpace(c.Message)))
	}
	return lines, nil
}
