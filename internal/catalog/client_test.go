package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/chfctl/internal/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// pageBody renders a catalog page whose rows carry the given download URLs
func pageBody(urls ...string) string {
	rows := make([]string, len(urls))
	for i, u := range urls {
		rows[i] = fmt.Sprintf(`{"id":%d,"title":"Char %s","dnaUrl":%q,"user":{"name":"Kiro"}}`, i+1, u, u)
	}
	return `{"body":{"rows":[` + strings.Join(rows, ",") + `]}}`
}

func newTestClient(rt http.RoundTripper, opts ...Option) *Client {
	opts = append([]Option{
		WithHTTPClient(&http.Client{Transport: rt}),
		WithRetry(DefaultMaxAttempts, time.Millisecond),
	}, opts...)
	return NewClient("https://catalog.test/", logger.Discard(), opts...)
}

// pagedTransport serves pages[n] for ?page=n and an empty page otherwise
func pagedTransport(t *testing.T, pages map[int]string, hits *atomic.Int32) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if hits != nil {
			hits.Add(1)
		}
		if req.URL.Path != "/api/heads" {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		if body, ok := pages[page]; ok {
			return jsonResponse(http.StatusOK, body), nil
		}
		return jsonResponse(http.StatusOK, `{"body":{"rows":[]}}`), nil
	})
}

func TestPageMapsRows(t *testing.T) {
	body := `{"body":{"rows":[
		{"id":42,"title":"Zara","previewUrl":"https://img/zara.jpg","dnaUrl":"https://dl/zara.chf",
		 "tags":["pilot","medic"],"createdAt":"2024-01-02T03:04:05.000Z",
		 "user":{"name":"Kiro","image":"https://img/kiro.png"},
		 "_count":{"characterDownloads":12,"characterLikes":3}},
		{"id":"abc","title":"","dnaUrl":"https://dl/nameless.chf","user":"not-an-object","tags":[{"name":"npc"}]},
		{"id":7,"title":"No Download"},
		{"title":"Portrait Only","dnaUrl":"https://dl/p.chf","user":{"image":"https://img/avatar.png"}}
	]}}`

	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("User-Agent") == "" || req.Header.Get("Accept") != "application/json" {
			t.Fatal("expected browser User-Agent and JSON Accept headers")
		}
		if got := req.URL.Query().Get("search"); got != "zara" {
			t.Fatalf("search = %q, want zara", got)
		}
		return jsonResponse(http.StatusOK, body), nil
	}))

	list, err := c.Page(context.Background(), 1, "zara")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Page() returned %d rows, want 3 (row without dnaUrl skipped)", len(list))
	}

	zara := list[0]
	if zara.Name != "Zara" || zara.Author != "Kiro" || zara.URLDetail != "https://catalog.test/character/42" {
		t.Fatalf("unexpected mapping: %+v", zara)
	}
	if zara.ImageURL != "https://img/zara.jpg" || zara.AuthorImage != "https://img/kiro.png" {
		t.Fatalf("unexpected images: %+v", zara)
	}
	if zara.Downloads != 12 || zara.Likes != 3 || len(zara.Tags) != 2 {
		t.Fatalf("unexpected counts/tags: %+v", zara)
	}

	nameless := list[1]
	if nameless.Name != UnknownName || nameless.Author != UnknownName {
		t.Fatalf("defaults not applied: %+v", nameless)
	}
	if nameless.URLDetail != "https://catalog.test/character/abc" || len(nameless.Tags) != 1 || nameless.Tags[0] != "npc" {
		t.Fatalf("unexpected nameless mapping: %+v", nameless)
	}

	portrait := list[2]
	if portrait.ImageURL != "https://img/avatar.png" {
		t.Fatalf("ImageURL = %q, want author image fallback", portrait.ImageURL)
	}
	if portrait.URLDetail != "https://catalog.test" {
		t.Fatalf("URLDetail = %q, want base URL without id", portrait.URLDetail)
	}
}

func TestPageRetriesThenGivesUp(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits.Add(1)
		return jsonResponse(http.StatusInternalServerError, "oops"), nil
	}))

	if _, err := c.Page(context.Background(), 1, ""); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("Page() error = %v, want ErrFetchFailed", err)
	}
	if got := hits.Load(); got != DefaultMaxAttempts {
		t.Fatalf("made %d requests, want %d", got, DefaultMaxAttempts)
	}

	if list := c.FetchPage(context.Background(), 1, ""); len(list) != 0 {
		t.Fatalf("FetchPage() = %v, want empty on failure", list)
	}
}

func TestPageRetryRecovers(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if hits.Add(1) < 3 {
			return nil, errors.New("connection reset")
		}
		return jsonResponse(http.StatusOK, pageBody("https://dl/a.chf")), nil
	}))

	list, err := c.Page(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Page() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Page() returned %d rows, want 1", len(list))
	}
}

func TestPageBackoffIsLinear(t *testing.T) {
	const delay = 50 * time.Millisecond
	var (
		mu    sync.Mutex
		times []time.Time
	)
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return nil, errors.New("connection refused")
	}), WithRetry(4, delay))

	if _, err := c.Page(context.Background(), 1, ""); err == nil {
		t.Fatal("Page() should fail")
	}
	if len(times) != 4 {
		t.Fatalf("made %d requests, want 4", len(times))
	}

	// gaps are delay, 2*delay, 3*delay
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		want := time.Duration(i) * delay
		if gap < want || gap >= want+delay*3/4 {
			t.Errorf("gap %d = %v, want about %v", i, gap, want)
		}
	}
}

func TestPageMalformedJSONIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits.Add(1)
		return jsonResponse(http.StatusOK, "<html>not json</html>"), nil
	}))

	if _, err := c.Page(context.Background(), 1, ""); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Page() error = %v, want ErrMalformedResponse", err)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("made %d requests, want 1", got)
	}
}

func TestPageUnexpectedStructureIsEmpty(t *testing.T) {
	c := newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":[1,2,3]}`), nil
	}))

	list, err := c.Page(context.Background(), 1, "")
	if err != nil || len(list) != 0 {
		t.Fatalf("Page() = (%v, %v), want empty without error", list, err)
	}
}

func TestFetchAllStopsAtFirstEmptyPage(t *testing.T) {
	pages := map[int]string{
		1: pageBody("https://dl/1a.chf", "https://dl/1b.chf"),
		2: pageBody("https://dl/2a.chf", "https://dl/1a.chf"),
		3: `{"body":{"rows":[]}}`,
		4: pageBody("https://dl/4a.chf"),
	}
	c := newTestClient(pagedTransport(t, pages, nil), WithBatch(5, 3))

	var batches [][2]int
	list := c.FetchAll(context.Background(), func(first, last int) {
		batches = append(batches, [2]int{first, last})
	}, nil)

	got := make([]string, len(list))
	for i, ch := range list {
		got[i] = ch.DownloadURL
	}
	want := []string{"https://dl/1a.chf", "https://dl/1b.chf", "https://dl/2a.chf"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("FetchAll() = %v, want %v", got, want)
	}
	if len(batches) != 1 || batches[0] != [2]int{1, 5} {
		t.Fatalf("progress batches = %v, want [[1 5]]", batches)
	}
}

func TestFetchAllSpansBatches(t *testing.T) {
	pages := map[int]string{
		1: pageBody("https://dl/1.chf"),
		2: pageBody("https://dl/2.chf"),
		3: pageBody("https://dl/3.chf"),
	}
	var hits atomic.Int32
	c := newTestClient(pagedTransport(t, pages, &hits), WithBatch(2, 2))

	list := c.FetchAll(context.Background(), nil, nil)
	if len(list) != 3 {
		t.Fatalf("FetchAll() returned %d entries, want 3", len(list))
	}
	if got := hits.Load(); got != 4 {
		t.Fatalf("made %d page requests, want 4", got)
	}
}

func TestFetchAllHonoursCancellation(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(pagedTransport(t, map[int]string{1: pageBody("https://dl/1.chf")}, &hits))

	list := c.FetchAll(context.Background(), nil, func() bool { return true })
	if len(list) != 0 {
		t.Fatalf("FetchAll() = %v, want empty when cancelled up front", list)
	}
	if hits.Load() != 0 {
		t.Fatalf("made %d requests after cancellation", hits.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if list := c.FetchAll(ctx, nil, nil); len(list) != 0 {
		t.Fatalf("FetchAll(cancelled ctx) = %v, want empty", list)
	}
}

func TestFetchAllPartialOnMidBatchCancel(t *testing.T) {
	pages := map[int]string{
		1: pageBody("https://dl/1.chf"),
		2: pageBody("https://dl/2.chf"),
		3: pageBody("https://dl/3.chf"),
	}
	c := newTestClient(pagedTransport(t, pages, nil), WithBatch(1, 1))

	batches := 0
	list := c.FetchAll(context.Background(), func(first, last int) { batches++ }, func() bool {
		return batches >= 2
	})
	// the second batch is cancelled while collecting, keeping only page 1
	if len(list) != 1 || list[0].DownloadURL != "https://dl/1.chf" {
		t.Fatalf("FetchAll() = %v, want only page 1", list)
	}
}
