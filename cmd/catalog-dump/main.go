// catalog-dump is a standalone tool that fetches the whole community
// catalog into a JSON snapshot. It is used to seed offline caches and to
// diff the catalog between runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/chfctl/internal/catalog"
	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/config"
	"github.com/bnema/chfctl/internal/logger"
)

func main() {
	outputPath := flag.String("output", "data/catalog.json", "Output path for the catalog JSON")
	baseURL := flag.String("url", config.DefaultCatalogURL, "Catalog base URL")
	verbose := flag.Bool("verbose", false, "Log every request")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *outputPath, *baseURL, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outputPath, baseURL string, verbose bool) error {
	fmt.Println("=== Catalog Dump ===")
	fmt.Println()

	existing := loadExisting(outputPath)
	fmt.Printf("Loaded %d characters from previous dump\n", len(existing))

	client := catalog.NewClient(baseURL, logger.New(os.Stderr, verbose))

	fmt.Printf("Fetching %s...\n", baseURL)
	startTime := time.Now()
	list := client.FetchAll(ctx, func(first, last int) {
		fmt.Printf("pages %d-%d (%s elapsed)\n", first, last, time.Since(startTime).Round(time.Second))
	}, func() bool { return ctx.Err() != nil })
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if len(list) == 0 {
		return fmt.Errorf("catalog returned no characters")
	}

	newCount := 0
	for _, c := range list {
		if !existing[c.DownloadURL] {
			newCount++
		}
	}
	characters.Sort(list, characters.SortByName)

	now := time.Now().UTC()
	snap := catalog.Snapshot{
		GeneratedAt: now,
		SourceURL:   baseURL,
		Count:       len(list),
		Characters:  list,
	}

	fmt.Printf("Writing catalog to %s...\n", outputPath)
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog: %w", err)
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Total characters: %d\n", len(list))
	fmt.Printf("New characters:   %d\n", newCount)
	fmt.Printf("Generated:        %s\n", now.Format(time.RFC3339))
	fmt.Printf("Output:           %s\n", outputPath)
	return nil
}

// loadExisting returns the download URLs of a previous dump
func loadExisting(path string) map[string]bool {
	seen := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return seen
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return seen
	}
	for _, c := range snap.Characters {
		seen[c.DownloadURL] = true
	}
	return seen
}
