package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixgeelhaar/fortify/retry"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/chfctl/internal/characters"
)

const (
	// DefaultBatchSize is how many pages FetchAll requests per round
	DefaultBatchSize = 20
	// DefaultWorkers bounds concurrent page requests
	DefaultWorkers = 10
	// DefaultTimeout applies to each page request
	DefaultTimeout = 10 * time.Second
	// DefaultMaxAttempts is the number of tries per page
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the base of the linear backoff between tries
	DefaultRetryDelay = time.Second

	// UserAgent mimics a desktop browser; the catalog rejects bare clients
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// UnknownName fills missing titles and authors
	UnknownName = "Unknown"
)

var (
	ErrFetchFailed       = errors.New("catalog request failed")
	ErrMalformedResponse = errors.New("malformed catalog response")
)

// ProgressFunc reports the page range of the batch being fetched
type ProgressFunc func(firstPage, lastPage int)

// Client talks to the community character catalog
type Client struct {
	baseURL     string
	client      *http.Client
	log         *log.Logger
	retryDelay  time.Duration
	maxAttempts int
	batchSize   int
	workers     int
	retry       retry.Retry[[]byte]
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRetry sets attempts per page and the backoff base
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		c.retryDelay = delay
	}
}

// WithBatch sets the FetchAll batch size and worker count
func WithBatch(size, workers int) Option {
	return func(c *Client) {
		if size > 0 {
			c.batchSize = size
		}
		if workers > 0 {
			c.workers = workers
		}
	}
}

// NewClient creates a catalog client for baseURL
func NewClient(baseURL string, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		log:         logger,
		retryDelay:  DefaultRetryDelay,
		maxAttempts: DefaultMaxAttempts,
		batchSize:   DefaultBatchSize,
		workers:     DefaultWorkers,
	}
	for _, opt := range opts {
		opt(c)
	}

	// waits delay * attempt between tries
	c.retry = retry.New[[]byte](retry.Config{
		MaxAttempts:   c.maxAttempts,
		InitialDelay:  c.retryDelay,
		BackoffPolicy: retry.BackoffLinear,
	})
	return c
}

// BaseURL returns the catalog root
func (c *Client) BaseURL() string {
	return c.baseURL
}

type apiRow struct {
	ID         json.RawMessage `json:"id"`
	Title      string          `json:"title"`
	PreviewURL string          `json:"previewUrl"`
	DNAURL     string          `json:"dnaUrl"`
	Tags       json.RawMessage `json:"tags"`
	CreatedAt  string          `json:"createdAt"`
	User       json.RawMessage `json:"user"`
	Count      struct {
		CharacterDownloads int `json:"characterDownloads"`
		CharacterLikes     int `json:"characterLikes"`
	} `json:"_count"`
}

type apiUser struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Page fetches one catalog page. Transport failures and non-2xx answers
// are retried; an undecodable body fails at once; a body without
// body.rows is an empty page.
func (c *Client) Page(ctx context.Context, page int, search string) ([]characters.Character, error) {
	params := url.Values{"page": {strconv.Itoa(page)}}
	if search != "" {
		params.Set("search", search)
	}
	endpoint := c.baseURL + "/api/heads?" + params.Encode()

	data, err := c.retry.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrFetchFailed, page, err)
	}

	var envelope struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrMalformedResponse, page, err)
	}
	var body struct {
		Rows []json.RawMessage `json:"rows"`
	}
	if len(envelope.Body) == 0 || json.Unmarshal(envelope.Body, &body) != nil || body.Rows == nil {
		c.log.Warn("Unexpected catalog response structure", "page", page)
		return []characters.Character{}, nil
	}

	list := make([]characters.Character, 0, len(body.Rows))
	for _, raw := range body.Rows {
		var row apiRow
		if err := json.Unmarshal(raw, &row); err != nil {
			c.log.Debug("Skipping unreadable catalog row", "page", page, "error", err)
			continue
		}
		if ch, ok := c.toCharacter(row); ok {
			list = append(list, ch)
		}
	}
	return list, nil
}

// FetchPage is Page with failures logged and reported as an empty page
func (c *Client) FetchPage(ctx context.Context, page int, search string) []characters.Character {
	list, err := c.Page(ctx, page, search)
	if err != nil {
		c.log.Warn("Failed to fetch catalog page", "page", page, "search", search, "error", err)
		return []characters.Character{}
	}
	return list
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	c.log.Debug("Fetching catalog page", "url", endpoint)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) toCharacter(row apiRow) (characters.Character, bool) {
	if row.DNAURL == "" {
		return characters.Character{}, false
	}

	ch := characters.Character{
		Name:        row.Title,
		Author:      UnknownName,
		ImageURL:    row.PreviewURL,
		DownloadURL: row.DNAURL,
		URLDetail:   c.baseURL,
		Tags:        decodeTags(row.Tags),
		Downloads:   row.Count.CharacterDownloads,
		Likes:       row.Count.CharacterLikes,
		CreatedAt:   row.CreatedAt,
		Status:      characters.StatusNotInstalled,
	}
	if ch.Name == "" {
		ch.Name = UnknownName
	}

	var user apiUser
	if len(row.User) > 0 && json.Unmarshal(row.User, &user) == nil {
		if user.Name != "" {
			ch.Author = user.Name
		}
		ch.AuthorImage = user.Image
		if ch.ImageURL == "" {
			ch.ImageURL = user.Image
		}
	}

	if id := decodeID(row.ID); id != "" {
		ch.URLDetail = c.baseURL + "/character/" + id
	}
	return ch, true
}

// decodeID accepts numeric or string identifiers
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeTags accepts ["a","b"] or [{"name":"a"}]
func decodeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		for _, o := range objects {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
	}
	return names
}

type pageResult struct {
	page int
	rows []characters.Character
}

// FetchAll walks the whole catalog. Pages are fetched in concurrent
// batches and consumed in page order; the first empty page ends the walk
// and later pages of its batch are discarded. Entries are deduplicated by
// download URL. cancelled (and ctx) are checked before each batch and on
// every collected page; cancellation returns what was accumulated.
func (c *Client) FetchAll(ctx context.Context, progress ProgressFunc, cancelled func() bool) []characters.Character {
	stop := func() bool {
		return ctx.Err() != nil || (cancelled != nil && cancelled())
	}

	all := []characters.Character{}
	seen := make(map[string]bool)

	for first := 1; ; first += c.batchSize {
		if stop() {
			c.log.Info("Catalog sync cancelled", "characters", len(all))
			return all
		}
		if progress != nil {
			progress(first, first+c.batchSize-1)
		}

		pages, ok := c.fetchBatch(ctx, first, stop)
		if !ok {
			c.log.Info("Catalog sync cancelled", "characters", len(all))
			return all
		}

		for p := first; p < first+c.batchSize; p++ {
			rows := pages[p]
			if len(rows) == 0 {
				c.log.Info("Catalog sync complete", "characters", len(all), "last_page", p-1)
				return all
			}
			for _, ch := range rows {
				if seen[ch.DownloadURL] {
					continue
				}
				seen[ch.DownloadURL] = true
				all = append(all, ch)
			}
		}
	}
}

func (c *Client) fetchBatch(ctx context.Context, first int, stop func() bool) (map[int][]characters.Character, bool) {
	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pageResult, c.batchSize)
	g, gctx := errgroup.WithContext(bctx)
	g.SetLimit(c.workers)

	go func() {
		for i := 0; i < c.batchSize; i++ {
			page := first + i
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}
				results <- pageResult{page: page, rows: c.FetchPage(gctx, page, "")}
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	pages := make(map[int][]characters.Character, c.batchSize)
	for r := range results {
		if stop() {
			return nil, false
		}
		pages[r.page] = r.rows
	}
	if stop() {
		return nil, false
	}
	return pages, true
}
