// Package fetcher drives networks that publish their search results as
// RSS or Atom feeds. It implements the automation session contract over
// plain HTTP, gofeed and goquery.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"social_monitor/internal/automation"
)

// DefaultSearchURL is used when no search URL template is configured.
// {origin} expands to the network origin including the scheme, {network}
// to the bare host and {query} to the escaped keyword.
const DefaultSearchURL = "https://{network}/search/rss?q={query}"

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Fetcher downloads and parses search feeds.
type Fetcher struct {
	client    HTTPClient
	timeout   time.Duration
	searchURL string
}

// New creates a Fetcher with the given HTTP client and search URL
// template. An empty template selects DefaultSearchURL.
func New(client HTTPClient, searchURL string) *Fetcher {
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	return &Fetcher{
		client:    client,
		timeout:   30 * time.Second,
		searchURL: searchURL,
	}
}

// Launch opens a fresh session. It satisfies automation.Launcher.
func (f *Fetcher) Launch(_ context.Context) (automation.Session, error) {
	return &Session{f: f}, nil
}

// Fetch downloads and parses a feed from the given URL. Transport errors
// and server-side statuses are marked transient.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*gofeed.Feed, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SocialMonitor/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, automation.Transient(fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, automation.Transient(err)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, automation.Transient(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

// Session is a feed-backed automation session. It remembers the network
// and the items of the most recent search.
type Session struct {
	f             *Fetcher
	origin        string
	host          string
	loginRequired bool
	feed          *gofeed.Feed
}

// EnsureSession probes the network origin. A 401 or 403 answer marks the
// session as requiring login.
func (s *Session) EnsureSession(ctx context.Context, network string) error {
	origin, host, err := parseNetwork(network)
	if err != nil {
		return err
	}
	s.origin, s.host = origin, host
	s.loginRequired = false
	s.feed = nil

	_, err = s.f.get(ctx, origin+"/")
	var se *StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden):
		s.loginRequired = true
		return nil
	default:
		return fmt.Errorf("probe %s: %w", host, err)
	}
}

// IsLoginRequired reports the outcome of the last EnsureSession probe.
func (s *Session) IsLoginRequired(_ context.Context) (bool, error) {
	return s.loginRequired, nil
}

// Search fetches the search feed for keyword and orders its items newest
// first.
func (s *Session) Search(ctx context.Context, keyword string) error {
	if s.origin == "" {
		return errors.New("search before session was ensured")
	}
	s.feed = nil

	r := strings.NewReplacer(
		"{origin}", s.origin,
		"{network}", s.host,
		"{query}", url.QueryEscape(keyword),
	)
	feed, err := s.f.Fetch(ctx, r.Replace(s.f.searchURL))
	if err != nil {
		return fmt.Errorf("search %q: %w", keyword, err)
	}
	sortNewestFirst(feed)
	s.feed = feed
	return nil
}

// ListCandidates returns up to max entries of the last search.
func (s *Session) ListCandidates(_ context.Context, max int) ([]automation.RawItem, error) {
	if s.feed == nil {
		return nil, nil
	}
	items := s.feed.Items
	if max > 0 && len(items) > max {
		items = items[:max]
	}

	out := make([]automation.RawItem, 0, len(items))
	for i, item := range items {
		out = append(out, automation.RawItem{
			Index:   i,
			Preview: preview(item),
			Ref:     itemRef(item),
		})
	}
	return out, nil
}

// Open extracts the post behind a listing entry.
func (s *Session) Open(_ context.Context, raw automation.RawItem) (automation.Extraction, error) {
	if s.feed == nil || raw.Index < 0 || raw.Index >= len(s.feed.Items) {
		return automation.Extraction{}, automation.Transient(errors.New("listing entry detached"))
	}
	item := s.feed.Items[raw.Index]
	if itemRef(item) != raw.Ref {
		return automation.Extraction{}, automation.Transient(errors.New("listing entry detached"))
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return automation.Extraction{}, fmt.Errorf("parse item body: %w", err)
	}

	date := item.Published
	if date == "" {
		date = item.Updated
	}

	return automation.Extraction{
		ChannelName: channelName(s.feed, item),
		ChannelID:   channelHandle(item.Link),
		MemberText:  custom(item, "members", "subscribers"),
		Text:        collapse(doc.Text()),
		IsVideo:     hasVideo(item, doc),
		ViewText:    custom(item, "views", "viewCount"),
		DateText:    date,
		URL:         item.Link,
		NativeID:    item.GUID,
	}, nil
}

// Close releases the session.
func (s *Session) Close() error {
	s.feed = nil
	return nil
}

func parseNetwork(network string) (origin, host string, err error) {
	network = strings.TrimRight(strings.TrimSpace(network), "/")
	if network == "" {
		return "", "", errors.New("empty network")
	}
	if !strings.Contains(network, "://") {
		network = "https://" + network
	}
	u, err := url.Parse(network)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("invalid network %q", network)
	}
	return u.Scheme + "://" + u.Host, u.Host, nil
}

// sortNewestFirst orders items by publish time when every item has one
// and keeps the feed order otherwise.
func sortNewestFirst(feed *gofeed.Feed) {
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			return
		}
	}
	sort.Stable(sort.Reverse(feed))
}

func itemRef(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	return item.GUID
}

func preview(item *gofeed.Item) string {
	text := item.Description
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		text = doc.Text()
	}
	return collapse(item.Title + " " + text)
}

func channelName(feed *gofeed.Feed, item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	return strings.TrimSpace(feed.Title)
}

var handleRe = regexp.MustCompile(`/(@[\w.]+)`)

func channelHandle(link string) string {
	m := handleRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

func custom(item *gofeed.Item, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(item.Custom[k]); v != "" {
			return v
		}
	}
	return ""
}

func hasVideo(item *gofeed.Item, doc *goquery.Document) bool {
	for _, e := range item.Enclosures {
		if e != nil && strings.HasPrefix(strings.ToLower(e.Type), "video/") {
			return true
		}
	}
	return doc.Find("video").Length() > 0
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
