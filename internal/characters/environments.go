package characters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bnema/chfctl/internal/transfer"
)

// GameRootName is the install folder holding one directory per environment
const GameRootName = "StarCitizen"

// envDepth is how far CustomCharacters sits below its environment folder
// (<env>/user/client/0/CustomCharacters)
const envDepth = 4

// TestEnvironments are the sibling clients characters are mirrored into
var TestEnvironments = []string{"PTU", "EPTU", "TECH-PREVIEW"}

// Environment is one mirror target
type Environment struct {
	Name string
	Dir  string
}

// MirrorResult summarizes a mirror pass
type MirrorResult struct {
	Copied       int
	Environments []Environment
	Failures     []string
}

// Environments lists the mirror targets of the repository: custom when it
// is an existing directory, then every test environment installed next to
// the repository's own environment. The environment the repository
// belongs to is never a target.
func (r *Repository) Environments(custom string) []Environment {
	var envs []Environment
	if custom != "" && filepath.Clean(custom) != filepath.Clean(r.dir) {
		if info, err := os.Stat(custom); err == nil && info.IsDir() {
			envs = append(envs, Environment{Name: "Custom", Dir: custom})
		}
	}

	envDir, ok := r.environmentDir()
	if !ok {
		return envs
	}
	root := filepath.Dir(envDir)
	rel, err := filepath.Rel(envDir, r.dir)
	if err != nil {
		return envs
	}

	for _, name := range TestEnvironments {
		if strings.EqualFold(name, filepath.Base(envDir)) {
			continue
		}
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			continue
		}
		envs = append(envs, Environment{Name: name, Dir: filepath.Join(root, name, rel)})
	}
	return envs
}

// environmentDir finds the repository's environment folder: the child of
// the StarCitizen folder on the way up, else the folder envDepth levels up.
func (r *Repository) environmentDir() (string, bool) {
	dir := filepath.Clean(r.dir)
	for range 6 {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		if filepath.Base(parent) == GameRootName {
			return dir, true
		}
		dir = parent
	}

	dir = filepath.Clean(r.dir)
	for range envDepth {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
	return dir, true
}

// MirrorToEnvironments copies every character and its sidecar into the
// targets returned by Environments, creating their CustomCharacters
// folders. Per-file failures are collected and the pass continues.
func (r *Repository) MirrorToEnvironments(custom string) (*MirrorResult, error) {
	if _, err := os.Stat(r.dir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	files, err := r.characterFiles()
	if err != nil {
		return nil, err
	}

	result := &MirrorResult{}
	for _, env := range r.Environments(custom) {
		if err := os.MkdirAll(env.Dir, 0755); err != nil {
			r.log.Warn("Skipping environment", "env", env.Name, "error", err)
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", env.Name, err))
			continue
		}
		result.Environments = append(result.Environments, env)
	}
	if len(result.Environments) == 0 {
		return result, nil
	}

	for _, name := range files {
		ok := true
		for _, env := range result.Environments {
			for _, f := range []string{name, SidecarName(name)} {
				src := filepath.Join(r.dir, f)
				if f != name {
					if _, err := os.Stat(src); err != nil {
						continue
					}
				}
				if err := transfer.CopyFile(src, filepath.Join(env.Dir, f)); err != nil {
					r.log.Error("Failed to mirror character", "file", f, "env", env.Name, "error", err)
					result.Failures = append(result.Failures, fmt.Sprintf("%s -> %s: %v", f, env.Name, err))
					ok = false
				}
			}
		}
		if ok {
			result.Copied++
		}
	}

	r.log.Info("Characters mirrored", "copied", result.Copied, "environments", len(result.Environments), "failures", len(result.Failures))
	return result, nil
}
