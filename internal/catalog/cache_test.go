package catalog

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/characters"
	"github.com/bnema/chfctl/internal/logger"
)

func TestCacheGet(t *testing.T) {
	var hits atomic.Int32
	pages := map[int]string{1: pageBody("https://dl/a.chf", "https://dl/b.chf")}
	client := newTestClient(pagedTransport(t, pages, &hits), WithBatch(2, 2))
	cache := NewCache(t.TempDir(), logger.Discard())

	list, err := cache.Get(context.Background(), client, false, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Get() returned %d entries, want 2", len(list))
	}
	first := hits.Load()

	// fresh cache, no network
	if _, err := cache.Get(context.Background(), client, false, nil); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != first {
		t.Fatal("fresh cache should not trigger a sync")
	}

	info := cache.Info()
	if !info.HasCache || info.IsStale || info.Total != 2 {
		t.Fatalf("Info() = %+v", info)
	}
}

func TestCacheFallsBackToStale(t *testing.T) {
	cache := NewCache(t.TempDir(), logger.Discard())
	stale := &Snapshot{
		GeneratedAt: time.Now().Add(-48 * time.Hour),
		Characters:  []characters.Character{{Name: "Old", DownloadURL: "https://dl/old.chf"}},
		Count:       1,
	}
	if err := cache.Save(stale); err != nil {
		t.Fatal(err)
	}

	down := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("offline")
	}))

	list, err := cache.Get(context.Background(), down, false, nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "Old" {
		t.Fatalf("Get() = %v, want stale cache", list)
	}
	if !cache.Info().IsStale {
		t.Fatal("Info().IsStale = false, want true")
	}
}

func TestCacheEmptyWithoutFallback(t *testing.T) {
	cache := NewCache(t.TempDir(), logger.Discard())
	empty := newTestClient(pagedTransport(t, nil, nil))

	if _, err := cache.Get(context.Background(), empty, true, nil); !errors.Is(err, ErrEmptyCatalog) {
		t.Fatalf("Get() error = %v, want ErrEmptyCatalog", err)
	}
}
