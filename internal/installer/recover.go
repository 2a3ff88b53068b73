package installer

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/chfctl/internal/characters"
)

// RecoverWorkers bounds concurrent catalog lookups during recovery
const RecoverWorkers = 5

// Searcher looks characters up in the catalog
type Searcher interface {
	Page(ctx context.Context, page int, search string) ([]characters.Character, error)
}

// RecoverResult summarizes a metadata recovery run
type RecoverResult struct {
	Scanned   int
	Recovered []string
	NotFound  []string
	Failures  []string
}

// RecoverMetadata searches the catalog for every .chf without a sidecar
// and writes the first hit's metadata next to it
func (i *Installer) RecoverMetadata(ctx context.Context, search Searcher) (*RecoverResult, error) {
	entries, err := os.ReadDir(i.repo.Dir())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}

	present := make(map[string]bool)
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		present[name] = true
		if characters.IsCharacterFile(name) {
			candidates = append(candidates, name)
		}
	}

	result := &RecoverResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(RecoverWorkers)

	for _, filename := range candidates {
		if present[characters.SidecarName(filename)] {
			continue
		}
		result.Scanned++

		g.Go(func() error {
			outcome, err := i.recoverOne(gctx, search, filename)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", filename, err))
			case outcome:
				result.Recovered = append(result.Recovered, filename)
			default:
				result.NotFound = append(result.NotFound, filename)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(result.Recovered)
	sort.Strings(result.NotFound)
	sort.Strings(result.Failures)

	i.log.Info("Metadata recovery complete",
		"scanned", result.Scanned,
		"recovered", len(result.Recovered),
		"not_found", len(result.NotFound),
		"failed", len(result.Failures),
	)
	return result, ctx.Err()
}

func (i *Installer) recoverOne(ctx context.Context, search Searcher, filename string) (bool, error) {
	query := strings.ReplaceAll(characters.Stem(filename), "_", " ")
	hits, err := search.Page(ctx, 1, query)
	if err != nil {
		return false, err
	}
	if len(hits) == 0 {
		i.log.Debug("No catalog match", "file", filename, "query", query)
		return false, nil
	}

	installedAt := i.now()
	if info, err := os.Stat(i.repo.Path(filename)); err == nil {
		installedAt = info.ModTime()
	}

	hit := hits[0]
	if err := i.repo.WriteMetadata(filename, characters.MetadataFor(&hit, installedAt)); err != nil {
		return false, err
	}
	i.log.Info("Recovered metadata", "file", filename, "name", hit.Name, "author", hit.Author)
	return true, nil
}
