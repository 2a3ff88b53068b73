package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"

	"github.com/bnema/chfctl/internal/catalog"
)

const (
	// Timeout applies to each listing request
	Timeout = 10 * time.Second
	// Source labels every item
	Source = "Roberts Space Industries"
	// DefaultTitle replaces empty link texts
	DefaultTitle = "Star Citizen News"
)

// Item is one comm-link transmission
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Source      string `json:"source"`
}

// Fetcher scrapes the comm-link listing
type Fetcher struct {
	listURL string
	client  *http.Client
	log     *log.Logger
}

// NewFetcher creates a fetcher for the comm-link listing at listURL
func NewFetcher(listURL string, logger *log.Logger) *Fetcher {
	return &Fetcher{
		listURL: listURL,
		client:  &http.Client{Timeout: Timeout},
		log:     logger,
	}
}

var (
	transmissionPattern = regexp.MustCompile(`/comm-link/transmission/\d+`)
	backgroundPattern   = regexp.MustCompile(`url\(['"]?(.*?)['"]?\)`)
)

// Fetch returns the transmissions listed on page (1-based)
func (f *Fetcher) Fetch(ctx context.Context, page int) ([]Item, error) {
	u, err := url.Parse(f.listURL)
	if err != nil {
		return nil, fmt.Errorf("invalid news URL: %w", err)
	}
	if page > 1 {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", catalog.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	items, err := Parse(string(body), u)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	f.log.Debug("News fetched", "page", page, "items", len(items))
	return items, nil
}

// Parse extracts transmission links from a comm-link page. Relative
// links and images resolve against base.
func Parse(htmlContent string, base *url.URL) ([]Item, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var items []Item
	seen := make(map[string]bool)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			href := getAttr(n, "href")
			if transmissionPattern.MatchString(href) && !seen[href] {
				seen[href] = true
				items = append(items, itemFromAnchor(n, href, base))
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return items, nil
}

func itemFromAnchor(a *html.Node, href string, base *url.URL) Item {
	item := Item{
		Link:   resolve(base, href),
		Source: Source,
	}

	item.Title = strings.Join(strings.Fields(getTextContent(a)), " ")
	if t := findElement(a, func(n *html.Node) bool {
		return strings.Contains(strings.ToLower(getAttr(n, "class")), "title")
	}); t != nil {
		item.Title = getTextContent(t)
	}
	if item.Title == "" {
		item.Title = DefaultTitle
	}

	if bg := findElement(a, func(n *html.Node) bool {
		return n.Data == "div" && hasClass(n, "background")
	}); bg != nil {
		if m := backgroundPattern.FindStringSubmatch(getAttr(bg, "style")); m != nil {
			item.ImageURL = m[1]
		}
	}
	if item.ImageURL == "" {
		if img := findElement(a, func(n *html.Node) bool { return n.Data == "img" }); img != nil {
			item.ImageURL = getAttr(img, "src")
		}
	}
	if item.ImageURL != "" {
		item.ImageURL = resolve(base, item.ImageURL)
	}

	if body := findElement(a, func(n *html.Node) bool {
		return hasClass(n, "body") || hasClass(n, "description")
	}); body != nil {
		item.Description = getTextContent(body)
	}
	return item
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// findElement returns the first element below n matching match
func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// getAttr gets an attribute value from an HTML node
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// getTextContent extracts text content from a node
func getTextContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := getTextContent(c); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
