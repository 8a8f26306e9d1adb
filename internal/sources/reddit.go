package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"

	"github.com/wefunai/reddit-leads-bot/internal/models"
)

// Reddit blocks default Go user agents on its RSS endpoints.
const redditUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// requestDelay paces consecutive feed requests to stay under Reddit's
// unauthenticated rate limits.
const requestDelay = 300 * time.Millisecond

// RedditClient fetches and parses Reddit's public RSS endpoints. It paces
// requests, so all Reddit-backed sources should share one instance. No API
// credentials are needed. Not safe for concurrent use; the orchestrator runs
// feeds sequentially.
type RedditClient struct {
	client      *resty.Client
	parser      *gofeed.Parser
	converter   *md.Converter
	baseURL     string
	lastRequest time.Time
}

// NewRedditClient creates a client against the public reddit.com endpoints.
func NewRedditClient() *RedditClient {
	return &RedditClient{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", redditUserAgent),
		parser:    gofeed.NewParser(),
		converter: md.NewConverter("", true, nil),
		baseURL:   "https://www.reddit.com",
	}
}

// SetBaseURL overrides the Reddit endpoint, used by tests.
func (c *RedditClient) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// fetchFeed downloads and parses one RSS path relative to the base URL,
// waiting out the pacing delay since the previous request first.
func (c *RedditClient) fetchFeed(ctx context.Context, path string) (*gofeed.Feed, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("%s returned status %d", path, resp.StatusCode())
	}

	feed, err := c.parser.ParseString(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return feed, nil
}

// pace waits out the remainder of requestDelay since the last request. The
// first request of a run goes out immediately.
func (c *RedditClient) pace(ctx context.Context) error {
	if !c.lastRequest.IsZero() {
		if wait := requestDelay - time.Since(c.lastRequest); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *RedditClient) toPost(kind, forum string, item *gofeed.Item) models.Post {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	created := time.Time{}
	if item.PublishedParsed != nil {
		created = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		created = *item.UpdatedParsed
	}

	author := "unknown"
	if item.Author != nil && item.Author.Name != "" {
		author = item.Author.Name
	}

	body := item.Content
	if body == "" {
		body = item.Description
	}

	return models.Post{
		ID:        id,
		Kind:      kind,
		Forum:     forum,
		Title:     item.Title,
		Body:      c.cleanBody(body),
		Author:    author,
		URL:       item.Link,
		CreatedAt: created,
	}
}

// cleanBody converts the feed's HTML payload to markdown so downstream
// prompts and cards get readable text. Falls back to the raw payload if
// conversion fails.
func (c *RedditClient) cleanBody(html string) string {
	if html == "" {
		return ""
	}
	text, err := c.converter.ConvertString(html)
	if err != nil {
		logrus.Debugf("HTML conversion failed, keeping raw body: %v", err)
		return strings.TrimSpace(html)
	}
	return strings.TrimSpace(text)
}

// RedditSource yields new submissions from each configured subreddit.
type RedditSource struct {
	client *RedditClient
	forums []string
	limit  int
}

var _ FeedSource = (*RedditSource)(nil)

// NewRedditSource creates a submission source fetching up to limit posts per
// forum per call.
func NewRedditSource(client *RedditClient, forums []string, limit int) *RedditSource {
	if limit <= 0 {
		limit = 10
	}
	return &RedditSource{client: client, forums: forums, limit: limit}
}

func (r *RedditSource) Name() string {
	return "reddit-posts"
}

func (r *RedditSource) Scopes() []string {
	return r.forums
}

// Fetch downloads and parses /r/<forum>/new.rss.
func (r *RedditSource) Fetch(ctx context.Context, forum string) ([]models.Post, error) {
	feed, err := r.client.fetchFeed(ctx, fmt.Sprintf("/r/%s/new.rss?limit=%d", forum, r.limit))
	if err != nil {
		return nil, fmt.Errorf("r/%s posts: %w", forum, err)
	}

	posts := make([]models.Post, 0, len(feed.Items))
	for _, item := range feed.Items {
		if len(posts) >= r.limit {
			break
		}
		posts = append(posts, r.client.toPost(models.KindPost, forum, item))
	}

	logrus.Debugf("Fetched %d posts from r/%s", len(posts), forum)
	return posts, nil
}
